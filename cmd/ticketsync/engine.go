package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/auth"
	"github.com/spec-kit/ticket-sync/internal/clock"
	"github.com/spec-kit/ticket-sync/internal/config"
	"github.com/spec-kit/ticket-sync/internal/observability"
	"github.com/spec-kit/ticket-sync/internal/retry"
	"github.com/spec-kit/ticket-sync/internal/service"
	"github.com/spec-kit/ticket-sync/internal/store"
	"github.com/spec-kit/ticket-sync/internal/transport"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util/errorutil"
)

const loginHint = "the desk rejected your access token; mint a new one with `supportd token <user-id>` and set SUPPORT_ACCESS_TOKEN"

// engine holds the collaborators every command shares.
type engine struct {
	cfg     *config.Config
	logger  *zap.Logger
	session *auth.TokenSession
	client  *transport.HTTPClient
	store   *store.Store
	policy  *retry.Policy
	support *service.SupportService
}

func newEngine(c *cli.Context) (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if token := c.String("token"); token != "" {
		cfg.Auth.AccessToken = token
	}
	if u := c.String("api-url"); u != "" {
		cfg.API.BaseURL = strings.TrimRight(u, "/")
	}

	logger, err := observability.NewLogger(cfg.Logger, "ticketsync")
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	session, err := auth.NewTokenSession(cfg.Auth.AccessToken)
	if err != nil {
		if errors.Is(err, auth.ErrNoCredential) {
			return nil, cli.Exit("no access token: pass --token or set SUPPORT_ACCESS_TOKEN", 2)
		}
		return nil, fmt.Errorf("invalid access token: %w", err)
	}

	client := transport.NewHTTPClient(cfg.API.BaseURL, cfg.API.Timeout, session)
	st := store.New()
	policy := retry.NewPolicy(cfg.Sync, clock.Real(), logger.Named("retry"))
	policy.OnSessionInvalid = func(error) { session.Invalidate() }

	return &engine{
		cfg:     cfg,
		logger:  logger,
		session: session,
		client:  client,
		store:   st,
		policy:  policy,
		support: service.NewSupportService(client, st, logger.Named("support")),
	}, nil
}

// sync pulls the full ticket list once, with retries, into the store.
func (e *engine) sync(ctx context.Context) error {
	tickets, err := retry.Do(ctx, e.policy, e.client.FetchTickets)
	if err != nil {
		return e.explain(err)
	}
	e.store.UpsertAll(tickets)
	return nil
}

// explain turns a rejected credential into an actionable exit.
func (e *engine) explain(err error) error {
	if apperrors.IsAuth(err) {
		return cli.Exit(loginHint, 3)
	}
	return err
}

func (e *engine) close() {
	_ = e.logger.Sync()
}
