// Package orderboard is the orders mode: it lists the shopper's orders with
// their cancellation countdowns, cancels and prints invoices, and with -watch
// keeps the board live from broker status updates.
package orderboard

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bakery-storefront/internal/invoice"
	"bakery-storefront/internal/notify"
	"bakery-storefront/internal/orders"
	"bakery-storefront/internal/orderwatch"
	"bakery-storefront/internal/shopper"
	"bakery-storefront/internal/xpkg/config"
	"bakery-storefront/internal/xpkg/logger"
	"bakery-storefront/pkg/rabbitmq"

	apperr "bakery-storefront/internal/xpkg/errors"

	"golang.org/x/sync/errgroup"
)

type params struct {
	watch      bool
	cancel     int64
	invoice    int64
	configPath string
	cfg        *config.Config
}

func Execute(ctx context.Context, mylog logger.Logger, args []string) error {
	newCtx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	params, err := parseParams(args)
	if err != nil {
		mylog.Action("command_parse_failed").Error("Invalid command received", err)
		return err
	}
	mylog.Action("command_parse_completed").Debug("Received params",
		"watch", params.watch, "cancel", params.cancel, "invoice", params.invoice, "config_path", params.configPath)

	if err = validateParams(params); err != nil {
		mylog.Action("command_validation_failed").Error("Invalid command received", err)
		return err
	}
	mylog.SetLevel(params.cfg.LogLevel)

	app, err := shopper.Open(newCtx, params.cfg, os.Stdout, mylog)
	if err != nil {
		mylog.Action("app_open_failed").Error("Failed to start storefront", err)
		return err
	}
	defer app.Close()

	return run(newCtx, app, params, mylog)
}

func run(ctx context.Context, app *shopper.App, params *params, mylog logger.Logger) error {
	board := orders.NewBoard(app.Client, app.Sessions, orders.RealClock{}, newConsole(app.Out, params.watch), app.Notifier, mylog)
	defer board.Close()

	if err := board.Refresh(ctx); err != nil {
		return err
	}
	if params.cancel > 0 {
		if err := board.RequestCancel(ctx, params.cancel); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				notify.Failure(app.Notifier, "That order isn't in your list.", err)
			}
			return err
		}
	}
	if params.invoice > 0 {
		if err := printInvoice(ctx, app, board, params.invoice, mylog); err != nil {
			return err
		}
	}
	if params.watch {
		return watch(ctx, app, board, mylog)
	}
	return nil
}

// printInvoice writes the invoice and, when a bucket is configured, archives it.
func printInvoice(ctx context.Context, app *shopper.App, board *orders.Board, orderID int64, mylog logger.Logger) error {
	var found bool
	var view orders.View
	for _, v := range board.Orders() {
		if v.Order.ID == orderID {
			view, found = v, true
			break
		}
	}
	if !found {
		err := fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
		notify.Failure(app.Notifier, "That order isn't in your list.", err)
		return err
	}

	app.Out.Write(invoice.Render(view.Order))

	if !app.Cfg.InvoicesEnabled() {
		return nil
	}
	sess, _ := app.Sessions.Current()
	store, err := invoice.NewR2Store(ctx, app.Cfg.Invoices)
	if err != nil {
		mylog.Action("invoice_store_failed").Error("Failed to configure invoice storage", err)
		return err
	}
	location, err := invoice.NewArchiver(store, app.Cfg.Invoices.PublicBaseURL, mylog).Archive(ctx, sess.UserID, view.Order)
	if err != nil {
		notify.Failure(app.Notifier, "Couldn't save your invoice. Try again.", err)
		return err
	}
	notify.Info(app.Notifier, "Invoice saved: "+location)
	return nil
}

// watch keeps the countdowns running until ctx ends. When the broker is
// reachable, status updates for this shopper refresh the board.
func watch(ctx context.Context, app *shopper.App, board *orders.Board, mylog logger.Logger) error {
	sess, _ := app.Sessions.Current()
	g, gctx := errgroup.WithContext(ctx)

	mb, err := rabbitmq.Connect(app.Cfg.RMQ, mylog)
	if err != nil {
		mylog.Action("mb_connection_failed").Warn("Live order updates are off", "reason", err.Error())
	} else {
		defer mb.Close()
		queue := fmt.Sprintf("%s.%s", app.Cfg.RMQ.Queue, sess.UserID)
		if err := mb.DeclareQueue(queue); err != nil {
			return err
		}
		watcher := orderwatch.New(mb, queue, board, app.Sessions, app.Notifier, mylog)
		g.Go(func() error {
			return consume(gctx, mb, watcher, queue, time.Second, mylog)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		board.Close()
		return nil
	})

	notify.Info(app.Notifier, "Watching your orders. Press Ctrl+C to stop.")
	return g.Wait()
}

// consume runs the watcher and reconnects whenever the broker drops it. When the
// connection is still up it waits retryDelay and redeclares the queue instead.
func consume(ctx context.Context, mb IBroker, watcher orderWatcher, queue string, retryDelay time.Duration, mylog logger.Logger) error {
	for {
		err := watcher.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if mb.IsAlive() {
			mylog.Action("orderwatch_interrupted").Warn("Order updates interrupted, retrying", "reason", errString(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
		} else {
			mylog.Action("orderwatch_interrupted").Warn("Order updates interrupted, reconnecting", "reason", errString(err))
			if err := mb.Reconnect(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
		if err := mb.DeclareQueue(queue); err != nil {
			return err
		}
	}
}

// IBroker is the part of the broker connection consume depends on.
type IBroker interface {
	IsAlive() bool
	Reconnect(ctx context.Context) error
	DeclareQueue(queue string) error
}

type orderWatcher interface {
	Run(ctx context.Context) error
}

func errString(err error) string {
	if err == nil {
		return "stopped"
	}
	return err.Error()
}

func parseParams(args []string) (*params, error) {
	fs := flag.NewFlagSet("orders", flag.ContinueOnError)
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config-path", "config.yaml", "path for config yaml")
	watch := fs.Bool("watch", false, "Keep the board open with live countdowns and order updates")
	cancel := fs.Int64("cancel", 0, "Cancel this order if it is still in its cancellation window")
	inv := fs.Int64("invoice", 0, "Print the invoice of this order")

	if err := fs.Parse(args); err != nil {
		return nil, apperr.ErrParseCmd
	}
	if *showHelp {
		fs.Usage()
		return nil, apperr.ErrHelp
	}
	return &params{
		watch:      *watch,
		cancel:     *cancel,
		invoice:    *inv,
		configPath: *configPath,
	}, nil
}

func validateParams(params *params) error {
	if params.cancel < 0 || params.invoice < 0 {
		return fmt.Errorf("order ids must be positive: %w", apperr.ErrValidation)
	}
	cfg, err := config.LoadConfig(params.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	params.cfg = cfg
	return nil
}
