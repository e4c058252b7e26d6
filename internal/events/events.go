// Package events publishes order lifecycle events to RabbitMQ.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xenking/store-checkout/internal/domain/order"
)

// DefaultExchange receives order events, routed by event type.
const DefaultExchange = "store.orders"

var _ order.Publisher = (*Publisher)(nil)

// Publisher sends order events to a durable topic exchange. A single channel
// is shared, so publishes are serialized.
type Publisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch *amqp.Channel
}

// Dial connects to the broker at url and declares the exchange.
func Dial(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare exchange %s", exchange)
	}

	return &Publisher{conn: conn, exchange: exchange, ch: ch}, nil
}

// Publish sends e as a persistent JSON message with e.Type as routing key.
func (p *Publisher) Publish(ctx context.Context, e order.Event) error {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    e.OccurredAt,
		Type:         e.Type,
		Body:         Encode(e),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, p.exchange, e.Type, false, false, msg); err != nil {
		return errors.Wrapf(err, "publish %s", e.Type)
	}
	return nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	chErr := p.ch.Close()
	connErr := p.conn.Close()
	if chErr != nil {
		return errors.Wrap(chErr, "close channel")
	}
	if connErr != nil {
		return errors.Wrap(connErr, "close connection")
	}
	return nil
}

// Encode renders e as the JSON message body.
func Encode(e order.Event) []byte {
	var w jx.Encoder
	w.ObjStart()
	w.FieldStart("type")
	w.Str(e.Type)
	w.FieldStart("orderId")
	w.Str(e.OrderID)
	w.FieldStart("owner")
	w.Str(e.Owner)
	w.FieldStart("finalPrice")
	w.Num(jx.Num(e.FinalPrice.StringFixed(2)))
	if e.DiscountCode != "" {
		w.FieldStart("discountCode")
		w.Str(e.DiscountCode)
	}
	w.FieldStart("occurredAt")
	w.Str(e.OccurredAt.UTC().Format(time.RFC3339Nano))
	w.ObjEnd()
	return w.Bytes()
}
