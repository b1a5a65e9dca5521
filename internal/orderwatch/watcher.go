// Package orderwatch listens for order status notifications and refreshes the
// order board when one concerns the logged-in shopper.
package orderwatch

import (
	"context"
	"encoding/json"
	"fmt"

	"bakery-storefront/internal/notify"
	"bakery-storefront/internal/session"
	"bakery-storefront/internal/xpkg/logger"
	"bakery-storefront/pkg/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

type IBroker interface {
	ConsumeMessage(ctx context.Context, queue, consumer string) (<-chan amqp.Delivery, error)
}

type IBoard interface {
	Refresh(ctx context.Context) error
}

type ISessions interface {
	Current() (session.Session, bool)
}

type Watcher struct {
	broker   IBroker
	queue    string
	board    IBoard
	sessions ISessions
	notifier notify.Notifier
	mylog    logger.Logger
}

func New(
	broker IBroker,
	queue string,
	board IBoard,
	sessions ISessions,
	notifier notify.Notifier,
	mylog logger.Logger,
) *Watcher {
	return &Watcher{
		broker:   broker,
		queue:    queue,
		board:    board,
		sessions: sessions,
		notifier: notifier,
		mylog:    mylog,
	}
}

// Run consumes status updates until ctx is done or the delivery channel closes.
func (w *Watcher) Run(ctx context.Context) error {
	deliveries, err := w.broker.ConsumeMessage(ctx, w.queue, "")
	if err != nil {
		return fmt.Errorf("failed to consume message from rabbitmq: %w", err)
	}
	w.mylog.Action("orderwatch_started").Info("Watching order updates", "queue", w.queue)
	return w.work(ctx, deliveries)
}

func (w *Watcher) work(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			w.mylog.Action("work_shutdown").Info("Stopping message consumption due to context cancel")
			return nil

		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("order update channel closed")
			}
			if requeue, err := w.process(ctx, msg); err != nil {
				w.mylog.Action("process_msg").Error("Failed to process order update", err)
				if err := msg.Nack(false, requeue); err != nil {
					w.mylog.Action("nack").Error("Failed to nack", err)
				}
			}
		}
	}
}

// process handles one delivery. On error the caller nacks; requeue reports
// whether the message may succeed on redelivery.
func (w *Watcher) process(ctx context.Context, msg amqp.Delivery) (bool, error) {
	var update models.StatusUpdateMessage
	if err := json.Unmarshal(msg.Body, &update); err != nil {
		return false, fmt.Errorf("unmarshal message: %w", err)
	}
	mylog := w.mylog.WithGroup("details").With("order_id", update.OrderID, "new_status", string(update.NewStatus))

	sess, ok := w.sessions.Current()
	if !ok || sess.UserID != update.UserID {
		mylog.Action("update_skipped").Debug("Status update is for another shopper")
		if err := msg.Ack(false); err != nil {
			return true, fmt.Errorf("acknowledge message: %w", err)
		}
		return false, nil
	}

	mylog.Action("update_received").Info("Received status update for order")
	notify.Info(w.notifier, fmt.Sprintf("Order #%d is now %s.", update.OrderID, update.NewStatus))

	if err := w.board.Refresh(ctx); err != nil {
		// the board already told the shopper; the next update refreshes again
		mylog.Action("board_refresh_failed").Warn("Board refresh after status update failed", "reason", err.Error())
	}

	if err := msg.Ack(false); err != nil {
		return true, fmt.Errorf("acknowledge message: %w", err)
	}
	return false, nil
}
