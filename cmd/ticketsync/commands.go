package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/clock"
	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/events"
	"github.com/spec-kit/ticket-sync/internal/notify"
	"github.com/spec-kit/ticket-sync/internal/observability"
	"github.com/spec-kit/ticket-sync/internal/persistence"
	"github.com/spec-kit/ticket-sync/internal/scheduler"
	"github.com/spec-kit/ticket-sync/internal/transport"
	"github.com/spec-kit/ticket-sync/internal/view"
	"github.com/spec-kit/ticket-sync/internal/worker"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Poll and listen for ticket updates, alerting on new staff replies",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Poll interval (overrides SYNC_POLL_INTERVAL)",
			},
			&cli.BoolFlag{
				Name:  "no-push",
				Usage: "Poll only, without subscribing to the push channel",
			},
		},
		Action: func(c *cli.Context) error {
			e, err := newEngine(c)
			if err != nil {
				return err
			}
			defer e.close()

			interval := e.cfg.Sync.PollInterval
			if d := c.Duration("interval"); d > 0 {
				interval = d
			}

			var push transport.PushChannel
			if !c.Bool("no-push") {
				redis := persistence.NewRedis(e.cfg.Redis, e.logger)
				defer redis.Close()
				push = transport.NewRedisPushChannel(redis, e.cfg.Push.Channel, e.session.UserID(),
					e.cfg.Push.ReconnectDelay, clock.Real(), e.logger.Named("push"))
			}

			metrics := observability.NewMetrics()
			dispatcher := events.NewInMemoryDispatcher()
			sched := scheduler.New(e.client, push, e.store, e.session, e.policy, scheduler.Options{
				Interval:   interval,
				Logger:     e.logger.Named("scheduler"),
				Metrics:    metrics,
				Dispatcher: dispatcher,
			})

			trigger := notify.NewTrigger(newAlerter(e), notify.TriggerConfig{
				Window:  e.cfg.Notification.Window,
				Logger:  e.logger.Named("notify"),
				Metrics: metrics,
			})
			defer trigger.Wait()
			worker.StartNotificationWorker(dispatcher, trigger, e.session, e.logger.Named("notification"))

			out := c.App.Writer
			dispatcher.Subscribe(events.EventSyncCompleted, func(_ context.Context, event events.Event) error {
				p, ok := event.Payload.(events.SyncCompletedPayload)
				if !ok || (p.Changed == 0 && p.Sequence > 1) {
					return nil
				}
				printSummary(out, e.support.Summary())
				return nil
			})

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			e.logger.Info("watching tickets",
				zap.String("user_id", e.session.UserID()),
				zap.Duration("interval", interval),
				zap.Bool("push", push != nil))
			err = sched.Run(ctx)
			switch {
			case errors.Is(err, scheduler.ErrReauthRequired):
				return cli.Exit(loginHint, 3)
			case errors.Is(err, context.Canceled):
				return nil
			}
			return err
		},
	}
}

func newAlerter(e *engine) notify.Alerter {
	if e.cfg.Notification.WebhookURL == "" {
		return notify.NewLogAlerter(e.logger.Named("alert"))
	}
	return notify.NewWebhookAlerter(
		e.cfg.Notification.WebhookURL,
		e.cfg.API.Timeout,
		notify.ParsePermission(e.cfg.Notification.Permission),
	)
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List your tickets",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Usage: "open, in_progress, resolved or closed"},
			&cli.StringFlag{Name: "category", Usage: "Filter by category"},
			&cli.StringFlag{Name: "priority", Usage: "Filter by priority"},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Match subject or message"},
			&cli.StringFlag{Name: "order", Value: string(view.OrderNewest), Usage: "newest, oldest or priority"},
		},
		Action: func(c *cli.Context) error {
			order, err := view.ParseOrder(c.String("order"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			filter := view.Filter{
				Status:   domain.TicketStatus(c.String("status")),
				Category: domain.TicketCategory(c.String("category")),
				Priority: domain.TicketPriority(c.String("priority")),
				Query:    c.String("query"),
			}

			e, err := newEngine(c)
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.sync(c.Context); err != nil {
				return err
			}

			tickets := e.support.Tickets(filter, order)
			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tCATEGORY\tREPLIES\tCREATED\tSUBJECT")
			for _, t := range tickets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					t.ID, t.Status, t.Priority, t.Category, len(t.Replies),
					t.CreatedAt.Local().Format(time.DateTime), t.Subject)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			printSummary(c.App.Writer, e.support.Summary())
			return nil
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one ticket and its conversation",
		ArgsUsage: "<ticket-id>",
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if id == "" {
				return cli.Exit("ticket id is required", 1)
			}
			e, err := newEngine(c)
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.sync(c.Context); err != nil {
				return err
			}

			var sel view.Selection
			ticket, ok := sel.Select(id, e.store)
			if !ok {
				return cli.Exit(fmt.Sprintf("ticket %s not found", id), 1)
			}
			printTicket(c.App.Writer, ticket)
			return nil
		},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Open a new ticket",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Required: true},
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Required: true},
			&cli.StringFlag{Name: "category", Value: string(domain.CategoryGeneral)},
			&cli.StringFlag{Name: "priority", Value: string(domain.TicketPriorityMedium)},
		},
		Action: func(c *cli.Context) error {
			e, err := newEngine(c)
			if err != nil {
				return err
			}
			defer e.close()

			ticket, err := e.support.CreateTicket(c.Context, domain.TicketDraft{
				Subject:  c.String("subject"),
				Message:  c.String("message"),
				Category: domain.TicketCategory(c.String("category")),
				Priority: domain.TicketPriority(c.String("priority")),
			})
			if err != nil {
				return e.explain(err)
			}
			fmt.Fprintln(c.App.Writer, ticket.ID)
			return nil
		},
	}
}

func replyCommand() *cli.Command {
	return &cli.Command{
		Name:      "reply",
		Usage:     "Add a reply to one of your tickets",
		ArgsUsage: "<ticket-id> <message>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return cli.Exit("usage: ticketsync reply <ticket-id> <message>", 1)
			}
			id := c.Args().Get(0)
			message := strings.Join(c.Args().Slice()[1:], " ")

			e, err := newEngine(c)
			if err != nil {
				return err
			}
			defer e.close()
			// Load the list first so a closed ticket is refused locally.
			if err := e.sync(c.Context); err != nil {
				return err
			}
			ticket, err := e.support.AddReply(c.Context, id, message)
			if err != nil {
				return e.explain(err)
			}
			printTicket(c.App.Writer, ticket)
			return nil
		},
	}
}

func printSummary(w io.Writer, s view.Summary) {
	fmt.Fprintf(w, "%d tickets: %d open, %d in progress, %d resolved, %d closed\n",
		s.Total,
		s.ByStatus[domain.TicketStatusOpen],
		s.ByStatus[domain.TicketStatusInProgress],
		s.ByStatus[domain.TicketStatusResolved],
		s.ByStatus[domain.TicketStatusClosed])
}

func printTicket(w io.Writer, t domain.Ticket) {
	fmt.Fprintf(w, "%s  [%s/%s/%s]\n", t.Subject, t.Status, t.Priority, t.Category)
	fmt.Fprintf(w, "id %s, opened %s\n\n", t.ID, t.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintln(w, t.Message)
	for _, r := range t.Replies {
		who := "you"
		if r.IsAdmin {
			who = "support"
		}
		fmt.Fprintf(w, "\n%s, %s:\n%s\n", who, r.Timestamp.Local().Format(time.DateTime), r.Message)
	}
}
