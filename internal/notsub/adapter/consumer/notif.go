package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"order-router/internal/routing/domain/dto"
	"order-router/internal/xpkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const resubscribeInterval = 5 * time.Second

var ErrMalformedMessage = errors.New("malformed status update")

// Broker is the part of the rabbitmq adapter the subscriber needs.
type Broker interface {
	DeclareQueue(queue string) error
	ConsumeMessage(ctx context.Context, queue, consumerName string) (<-chan amqp.Delivery, error)
	Close() error
}

type Notification struct {
	mb    Broker
	queue string
	out   io.Writer
	mylog logger.Logger
	ctx   context.Context

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewNotification(ctx context.Context, mb Broker, queue string, mylog logger.Logger) *Notification {
	return &Notification{
		ctx:   ctx,
		mb:    mb,
		queue: queue,
		out:   os.Stdout,
		mylog: mylog,
	}
}

// SetOutput redirects the printed notifications.
func (n *Notification) SetOutput(w io.Writer) {
	n.out = w
}

// Run declares the queue and consumes until ctx is cancelled. A closed
// delivery channel triggers a new subscription.
func (n *Notification) Run() error {
	mylog := n.mylog.Action("run_notifications")

	if err := n.mb.DeclareQueue(n.queue); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	mylog.Info("Subscribed to status updates", "queue", n.queue)

	for {
		deliveries, err := n.mb.ConsumeMessage(n.ctx, n.queue, "")
		if err != nil {
			mylog.Warn("Failed to start consuming, retrying", "error", err.Error())
		} else {
			n.work(deliveries)
		}

		select {
		case <-n.ctx.Done():
			return nil
		case <-time.After(resubscribeInterval):
		}
	}
}

func (n *Notification) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.mylog.Action("graceful_shutdown_started").Info("Shutting down")

	n.wg.Wait()

	if n.mb != nil {
		if err := n.mb.Close(); err != nil {
			n.mylog.Action("mb_close_failed").Error("Failed to close message broker", err)
			return fmt.Errorf("mb close: %w", err)
		}
		n.mylog.Action("mb_closed").Info("Message broker closed")
	}

	n.mylog.Action("graceful_shutdown_completed").Info("Successfully shut down")
	return nil
}

func (n *Notification) work(deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-n.ctx.Done():
			n.mylog.Action("work_shutdown").Info("Stopping message consumption due to context cancel")
			return

		case msg, ok := <-deliveries:
			if !ok {
				n.mylog.Action("deliveries_closed").Warn("Delivery channel closed")
				return
			}
			n.wg.Add(1)
			func() {
				defer n.wg.Done()
				n.handle(msg)
			}()
		}
	}
}

// handle acks a processed message. Malformed messages are dropped without
// requeue; other failures are requeued.
func (n *Notification) handle(msg amqp.Delivery) {
	if err := n.processMsg(msg.Body); err != nil {
		requeue := !errors.Is(err, ErrMalformedMessage)
		n.mylog.Action("process_msg_failed").Error("Failed to process status update", err, "requeue", requeue)
		if err := msg.Nack(false, requeue); err != nil {
			n.mylog.Action("nack_failed").Error("Failed to nack", err)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		n.mylog.Action("ack_failed").Error("Failed to acknowledge message", err)
	}
}

func (n *Notification) processMsg(body []byte) error {
	var update dto.StatusUpdateMessage
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if update.OrderID == "" || update.NewStatus == "" {
		return fmt.Errorf("%w: order_id and new_status are required", ErrMalformedMessage)
	}

	n.mylog.WithGroup("details").With("order_id", update.OrderID, "new_status", update.NewStatus).
		Action("notification_received").Info("Received status update for order")

	line := fmt.Sprintf("Notification for order %s: status changed from '%s' to '%s' by %s", update.OrderCode, update.OldStatus, update.NewStatus, update.ChangedBy)
	if update.StoreID != "" {
		line += fmt.Sprintf(" (store %s)", update.StoreID)
	}
	if _, err := fmt.Fprintln(n.out, line+"."); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}
