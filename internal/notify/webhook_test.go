package notify

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webhookServer(t *testing.T, consentStatus int, received chan<- alertRequest) string {
	t.Helper()
	app := fiber.New()
	app.Post("/hook", func(c *fiber.Ctx) error {
		var probe struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(c.Body(), &probe))
		if probe.Type == "consent" {
			return c.SendStatus(consentStatus)
		}
		var req alertRequest
		require.NoError(t, json.Unmarshal(c.Body(), &req))
		received <- req
		return c.SendStatus(fiber.StatusAccepted)
	})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String() + "/hook"
}

func TestWebhookConsentGrantsAndDelivers(t *testing.T) {
	received := make(chan alertRequest, 1)
	w := NewWebhookAlerter(webhookServer(t, fiber.StatusNoContent, received), time.Second, PermissionUndetermined)

	perm, err := w.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionGranted, perm)
	assert.Equal(t, PermissionGranted, w.Permission())

	alert := Alert{ID: "a1", Title: AlertTitle, Body: "New reply on ticket: VPN", TicketID: "t9"}
	require.NoError(t, w.Show(context.Background(), alert))

	select {
	case got := <-received:
		assert.Equal(t, "alert", got.Type)
		assert.Equal(t, "t9", got.Alert.TicketID)
		assert.Equal(t, AlertTitle, got.Alert.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never received the alert")
	}
}

func TestWebhookConsentDenied(t *testing.T) {
	w := NewWebhookAlerter(webhookServer(t, fiber.StatusForbidden, nil), time.Second, PermissionUndetermined)
	perm, err := w.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionDenied, perm)
}

func TestWebhookUnreachableKeepsState(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	w := NewWebhookAlerter("http://"+addr+"/hook", time.Second, PermissionUndetermined)
	perm, err := w.RequestPermission(context.Background())
	assert.Error(t, err)
	assert.Equal(t, PermissionUndetermined, perm)
}
