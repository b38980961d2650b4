package broadcast

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Bus owns the AMQP connection used for invalidation traffic: a fanout
// exchange and a server-named exclusive queue bound to it.
type Bus struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	deliveries <-chan amqp.Delivery
}

// Dial connects to url, declares exchange and starts consuming.
func Dial(url, exchange string) (*Bus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("broadcast: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("broadcast: open channel: %w", err)
	}

	bus := &Bus{conn: conn, ch: ch, exchange: exchange}
	if err := bus.setup(); err != nil {
		_ = bus.Close()
		return nil, err
	}
	return bus, nil
}

func (b *Bus) setup() error {
	err := b.ch.ExchangeDeclare(
		b.exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("broadcast: declare exchange %q: %w", b.exchange, err)
	}

	q, err := b.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("broadcast: declare queue: %w", err)
	}
	if err := b.ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		return fmt.Errorf("broadcast: bind queue: %w", err)
	}

	deliveries, err := b.ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("broadcast: consume: %w", err)
	}
	b.deliveries = deliveries
	return nil
}

// Publisher returns a publisher on the bus channel for instance.
func (b *Bus) Publisher(instance string) *Publisher {
	return NewPublisher(b.ch, b.exchange, instance)
}

func (b *Bus) Deliveries() <-chan amqp.Delivery {
	return b.deliveries
}

func (b *Bus) Close() error {
	var errs []error
	if b.ch != nil {
		if err := b.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if b.conn != nil {
		if err := b.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
