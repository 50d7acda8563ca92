package brokermessage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"order-router/internal/routing/domain/dto"
	"order-router/internal/xpkg/config"
	xerrors "order-router/internal/xpkg/errors"
	"order-router/internal/xpkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const reconnectInterval = 5 * time.Second

var ErrNotConfirmed = errors.New("message was not confirmed by the broker")

type RabbitMQ struct {
	ctx          context.Context
	cfg          *config.RabbitMQ
	conn         *amqp.Connection
	ch           *amqp.Channel
	mylog        logger.Logger
	reconnecting bool
	mu           sync.Mutex

	prefetch int
}

// New connects to rabbitmq and declares the notifications exchange.
// ctx bounds the background reconnect loop.
func New(ctx context.Context, rabbitmqCfg *config.RabbitMQ, mylog logger.Logger, prefetch int) (*RabbitMQ, error) {
	r := &RabbitMQ{
		ctx:      ctx,
		cfg:      rabbitmqCfg,
		mylog:    mylog,
		prefetch: prefetch,
	}
	if err := r.connect(); err != nil {
		return nil, err
	}
	return r, nil
}

// connect to rabbitmq
func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.cfg.URL())
	if err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrMBConn, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: %v", xerrors.ErrMBCh, err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("enable publisher confirms: %w", err)
	}

	if r.prefetch > 0 {
		if err := ch.Qos(r.prefetch, 0, false); err != nil {
			conn.Close()
			return fmt.Errorf("set prefetch: %w", err)
		}
	}

	if err := ch.ExchangeDeclare(r.cfg.Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", r.cfg.Exchange, err)
	}

	if old := r.swap(conn, ch); old != nil {
		if err := retire(old); err != nil {
			r.mylog.Action("rabbitmq_old_conn_close_failed").Warn("Failed to close replaced connection", "error", err.Error())
		}
	}
	return nil
}

// connection is the part of *amqp.Connection needed to retire it.
type connection interface {
	IsClosed() bool
	Close() error
}

// swap installs conn and ch and returns the connection they replace.
func (r *RabbitMQ) swap(conn *amqp.Connection, ch *amqp.Channel) *amqp.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.conn
	r.conn = conn
	r.ch = ch
	if old == conn {
		return nil
	}
	return old
}

// retire closes a replaced connection that is still open. Its channels
// close with it.
func retire(old connection) error {
	if old.IsClosed() {
		return nil
	}
	return old.Close()
}

func (r *RabbitMQ) IsAlive() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil || r.conn.IsClosed() {
		return xerrors.ErrMBConn
	}
	if r.ch == nil || r.ch.IsClosed() {
		return xerrors.ErrMBCh
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch != nil && !r.ch.IsClosed() {
		if err := r.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}

func (r *RabbitMQ) channel() (*amqp.Channel, error) {
	if err := r.IsAlive(); err != nil {
		go r.reconnect(r.ctx)
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch, nil
}

// PublishStatusUpdate publishes msg to the fanout exchange and waits for
// the broker confirm.
func (r *RabbitMQ) PublishStatusUpdate(ctx context.Context, message dto.StatusUpdateMessage) error {
	ch, err := r.channel()
	if err != nil {
		r.mylog.Action("publish_skipped").Error("Connection to rabbitmq is closed", err)
		return err
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal status update: %w", err)
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, r.cfg.Exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    message.Timestamp,
		MessageId:    message.OrderID,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish status update: %w", err)
	}
	if confirm == nil {
		return nil
	}

	ok, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for confirm: %w", err)
	}
	if !ok {
		return ErrNotConfirmed
	}
	return nil
}

// DeclareQueue declares a durable queue bound to the exchange.
func (r *RabbitMQ) DeclareQueue(queue string) error {
	ch, err := r.channel()
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, "", r.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", queue, err)
	}
	return nil
}

// ConsumeMessage starts a manual-ack consumer on queue.
func (r *RabbitMQ) ConsumeMessage(ctx context.Context, queue, consumerName string) (<-chan amqp.Delivery, error) {
	ch, err := r.channel()
	if err != nil {
		return nil, err
	}
	return ch.ConsumeWithContext(ctx, queue, consumerName, false, false, false, false, nil)
}

func (r *RabbitMQ) reconnect(ctx context.Context) {
	r.mu.Lock()
	if r.reconnecting {
		r.mu.Unlock()
		return
	}
	r.reconnecting = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.reconnecting = false
		r.mu.Unlock()
	}()

	t := time.NewTicker(reconnectInterval)
	defer t.Stop()
	log := r.mylog.Action("rabbitmq_reconnecting")

	for {
		select {
		case <-t.C:
			if err := r.connect(); err != nil {
				log.Warn("rabbitmq failed to reconnect", "error", err.Error())
				continue
			}
			log.Info("rabbitmq reconnected")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Noop is used when rabbitmq is disabled.
type Noop struct{}

func (Noop) PublishStatusUpdate(context.Context, dto.StatusUpdateMessage) error { return nil }

func (Noop) Close() error { return nil }
