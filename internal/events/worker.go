package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Notifier tells the next assignee that a document is waiting for them.
type Notifier interface {
	Notify(ctx context.Context, evt Transitioned) error
}

// LogNotifier records hand-offs in the log.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, evt Transitioned) error {
	n.Logger.Info("document handed off",
		zap.String("document_id", evt.DocumentID),
		zap.String("action", evt.Action),
		zap.String("from", evt.From),
		zap.String("to", evt.To),
		zap.String("actor_id", evt.ActorID),
		zap.String("next_assignee_id", evt.NextAssigneeID),
	)
	return nil
}

// NotificationWorker consumes transition events.
type NotificationWorker struct {
	conn      *amqp.Connection
	queueName string
	notifier  Notifier
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewNotificationWorker(conn *amqp.Connection, queueName string, notifier Notifier, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		conn:      conn,
		queueName: queueName,
		notifier:  notifier,
		logger:    logger,
	}
}

func (w *NotificationWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := declareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	return nil
}

// handle acks processed deliveries. Malformed payloads are dropped; a failed
// notification is requeued once and dropped on redelivery.
func (w *NotificationWorker) handle(ctx context.Context, d amqp.Delivery) {
	var evt Transitioned
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		w.logger.Warn("decode event failed", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	if err := evt.Validate(); err != nil {
		w.logger.Warn("invalid event", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := w.notifier.Notify(ctx, evt); err != nil {
		w.logger.Error("notify failed",
			zap.String("document_id", evt.DocumentID),
			zap.Bool("redelivered", d.Redelivered),
			zap.Error(err),
		)
		_ = d.Nack(false, !d.Redelivered)
		return
	}

	_ = d.Ack(false)
}

func (w *NotificationWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
