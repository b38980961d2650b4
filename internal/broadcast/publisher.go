package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/goliatone/go-listings/repositorycache"
)

// DefaultPublishTimeout bounds a single publish.
const DefaultPublishTimeout = 2 * time.Second

// publishChannel is the part of *amqp.Channel the publisher needs.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Publisher struct {
	ch       publishChannel
	exchange string
	instance string
	timeout  time.Duration
	now      func() time.Time
}

func NewPublisher(ch publishChannel, exchange, instance string) *Publisher {
	return &Publisher{
		ch:       ch,
		exchange: exchange,
		instance: instance,
		timeout:  DefaultPublishTimeout,
		now:      time.Now,
	}
}

// Publish announces a mutation to every instance bound to the exchange.
func (p *Publisher) Publish(ctx context.Context, kind repositorycache.Mutation, id string) error {
	body, err := Event{Instance: p.instance, Kind: kind, ID: id}.Encode()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType: ContentType,
		Body:        body,
		Timestamp:   p.now(),
		AppId:       p.instance,
	})
	if err != nil {
		return fmt.Errorf("publish invalidation for %s %s: %w", kind, id, err)
	}
	return nil
}

// Policy runs the local invalidation policy and then publishes the event.
// Both steps always run; their errors are joined.
type Policy struct {
	local     repositorycache.InvalidationPolicy
	publisher *Publisher
	logger    *slog.Logger
}

func NewPolicy(local repositorycache.InvalidationPolicy, publisher *Publisher, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Policy{
		local:     local,
		publisher: publisher,
		logger:    logger.With("component", "broadcast"),
	}
}

func (p *Policy) Invalidate(ctx context.Context, kind repositorycache.Mutation, id string) error {
	localErr := p.local.Invalidate(ctx, kind, id)
	pubErr := p.publisher.Publish(ctx, kind, id)
	if pubErr == nil {
		p.logger.DebugContext(ctx, "invalidation published", "mutation", string(kind), "listing_id", id)
	}
	return errors.Join(localErr, pubErr)
}
