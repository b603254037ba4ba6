package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	httpapi "github.com/spec-kit/ticket-sync/internal/api/http"
	"github.com/spec-kit/ticket-sync/internal/auth"
	"github.com/spec-kit/ticket-sync/internal/config"
	"github.com/spec-kit/ticket-sync/internal/events"
	"github.com/spec-kit/ticket-sync/internal/observability"
	"github.com/spec-kit/ticket-sync/internal/persistence"
	"github.com/spec-kit/ticket-sync/internal/repository"
	"github.com/spec-kit/ticket-sync/internal/service"
	"github.com/spec-kit/ticket-sync/internal/worker"
)

func main() {
	app := &cli.App{
		Name:  "supportd",
		Usage: "Support desk API and push publisher",
		Commands: []*cli.Command{
			serveCommand(),
			tokenCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the desk API and relay ticket changes to the push channel",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "Listen address (defaults to APP_HOST:APP_PORT)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := observability.NewLogger(cfg.Logger, "supportd")
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			redis := persistence.NewRedis(cfg.Redis, logger)
			defer redis.Close()

			dispatcher := events.NewInMemoryDispatcher()
			desk := service.NewDeskService(repository.NewTicketRepository(), dispatcher)
			worker.StartPushRelay(dispatcher, redis, cfg.Push.Channel, logger.Named("push"))

			app := httpapi.NewApp(httpapi.ServerDeps{
				Name:    cfg.App.Name,
				Version: cfg.App.Version,
				Timeout: cfg.App.RequestTimeout(),
				Logger:  logger,
				Metrics: observability.NewMetrics(),
				Tokens:  auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
				Desk:    desk,
				Redis:   redis,
			})

			addr := c.String("addr")
			if addr == "" {
				addr = cfg.App.Addr()
			}
			go func() {
				logger.Info("desk api listening", zap.String("addr", addr), zap.String("push_channel", cfg.Push.Channel))
				if err := app.Listen(addr); err != nil {
					logger.Fatal("fiber listen", zap.Error(err))
				}
			}()

			waitForShutdown(c.Context, logger)
			return app.Shutdown()
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "Mint an access token for a user or staff member",
		ArgsUsage: "<subject>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "staff",
				Usage: "Grant the staff role",
			},
		},
		Action: func(c *cli.Context) error {
			subject := c.Args().First()
			if subject == "" {
				return cli.Exit("subject is required", 1)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			role := auth.RoleUser
			if c.Bool("staff") {
				role = auth.RoleStaff
			}
			tm := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
			token, expiresAt, err := tm.GenerateToken(subject, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			fmt.Fprintf(c.App.ErrWriter, "expires %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
	}
}
