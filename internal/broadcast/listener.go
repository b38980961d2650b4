package broadcast

import (
	"context"
	"io"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/goliatone/go-listings/repositorycache"
)

// Listener applies invalidations published by other instances.
type Listener struct {
	local    repositorycache.InvalidationPolicy
	instance string
	logger   *slog.Logger
}

func NewListener(local repositorycache.InvalidationPolicy, instance string, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Listener{
		local:    local,
		instance: instance,
		logger:   logger.With("component", "broadcast_listener"),
	}
}

// Run consumes deliveries until ctx is done or the channel closes.
// Deliveries are expected to be auto-acknowledged.
func (l *Listener) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				l.logger.InfoContext(ctx, "delivery channel closed")
				return nil
			}
			l.handle(ctx, d)
		}
	}
}

func (l *Listener) handle(ctx context.Context, d amqp.Delivery) {
	e, err := DecodeEvent(d.Body)
	if err != nil {
		l.logger.WarnContext(ctx, "dropping malformed invalidation event", "error", err)
		return
	}
	if e.Instance == l.instance {
		return
	}

	if err := l.local.Invalidate(ctx, e.Kind, e.ID); err != nil {
		l.logger.WarnContext(ctx, "remote invalidation failed",
			"origin", e.Instance,
			"mutation", string(e.Kind),
			"listing_id", e.ID,
			"error", err,
		)
		return
	}
	l.logger.DebugContext(ctx, "remote invalidation applied",
		"origin", e.Instance,
		"mutation", string(e.Kind),
		"listing_id", e.ID,
	)
}
