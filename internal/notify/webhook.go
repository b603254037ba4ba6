package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/ticket-sync/pkg/util/errorutil"
)

// consentRequest is posted once to ask the receiving end whether alerts
// are wanted. 2xx grants, 403 denies, anything else leaves the state
// undetermined.
type consentRequest struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

type alertRequest struct {
	Type  string `json:"type"`
	Alert Alert  `json:"alert"`
}

// WebhookAlerter delivers alerts as JSON POSTs.
type WebhookAlerter struct {
	url     string
	timeout time.Duration

	mu         sync.RWMutex
	permission Permission
}

// NewWebhookAlerter starts in the configured permission state.
func NewWebhookAlerter(url string, timeout time.Duration, initial Permission) *WebhookAlerter {
	return &WebhookAlerter{url: url, timeout: timeout, permission: initial}
}

func (w *WebhookAlerter) Permission() Permission {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.permission
}

func (w *WebhookAlerter) RequestPermission(ctx context.Context) (Permission, error) {
	status, err := w.post(ctx, consentRequest{Type: "consent", Title: AlertTitle})
	if err != nil {
		return w.Permission(), err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case status >= 200 && status < 300:
		w.permission = PermissionGranted
	case status == http.StatusForbidden:
		w.permission = PermissionDenied
	default:
		return w.permission, apperrors.NewRemoteError(status, "")
	}
	return w.permission, nil
}

func (w *WebhookAlerter) Show(ctx context.Context, alert Alert) error {
	status, err := w.post(ctx, alertRequest{Type: "alert", Alert: alert})
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return apperrors.NewRemoteError(status, "")
	}
	return nil
}

func (w *WebhookAlerter) post(ctx context.Context, body any) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, apperrors.NewInternalError(err)
	}

	agent := fiber.Post(w.url)
	agent.Body(payload).ContentType(fiber.MIMEApplicationJSON)
	if w.timeout > 0 {
		agent.Timeout(w.timeout)
	}
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return 0, apperrors.NewInternalError(err)
	}

	type result struct {
		status int
		errs   []error
	}
	done := make(chan result, 1)
	go func() {
		status, _, errs := agent.Bytes()
		done <- result{status: status, errs: errs}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-done:
		if len(res.errs) > 0 {
			return 0, apperrors.NewNetworkError(res.errs[0])
		}
		return res.status, nil
	}
}
