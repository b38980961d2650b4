// Package broadcast fans cache invalidations out to other service
// instances over a RabbitMQ fanout exchange.
//
// Each instance applies its own invalidation first, then publishes an Event.
// Every instance consumes the exchange through a private queue and applies
// the same invalidation to its local cache, skipping events it published.
package broadcast

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-listings/repositorycache"
)

// ContentType of encoded events.
const ContentType = "application/msgpack"

// Event announces a successful mutation of listing ID.
type Event struct {
	Instance string                   `msgpack:"instance"`
	Kind     repositorycache.Mutation `msgpack:"kind"`
	ID       string                   `msgpack:"id"`
}

func (e Event) Encode() ([]byte, error) {
	b, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}

func DecodeEvent(b []byte) (Event, error) {
	var e Event
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}
