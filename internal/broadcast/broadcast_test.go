package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/goliatone/go-listings/repositorycache"
)

type published struct {
	exchange string
	msg      amqp.Publishing
}

type mockChannel struct {
	calls []published
	err   error
}

func (m *mockChannel) PublishWithContext(_ context.Context, exchange, _ string, _, _ bool, msg amqp.Publishing) error {
	m.calls = append(m.calls, published{exchange: exchange, msg: msg})
	return m.err
}

// recordingPolicy records invalidations as "kind:id".
type recordingPolicy struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (p *recordingPolicy) Invalidate(_ context.Context, kind repositorycache.Mutation, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, fmt.Sprintf("%s:%s", kind, id))
	return p.err
}

func (p *recordingPolicy) getCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func TestEvent_Encode(t *testing.T) {
	in := Event{Instance: "node-a", Kind: repositorycache.Updated, ID: "lst-1"}
	b, err := in.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeEvent(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Errorf("expected %+v, got %+v", in, out)
	}

	if _, err := DecodeEvent([]byte{0xc1}); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestPublisher_Publish(t *testing.T) {
	ch := &mockChannel{}
	p := NewPublisher(ch, "listings.invalidate", "node-a")
	p.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	if err := p.Publish(context.Background(), repositorycache.Deleted, "lst-9"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(ch.calls) != 1 {
		t.Fatalf("expected one publish, got %d", len(ch.calls))
	}

	call := ch.calls[0]
	if call.exchange != "listings.invalidate" {
		t.Errorf("unexpected exchange %q", call.exchange)
	}
	if call.msg.ContentType != ContentType || call.msg.AppId != "node-a" {
		t.Errorf("unexpected publishing headers %+v", call.msg)
	}
	e, err := DecodeEvent(call.msg.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Kind != repositorycache.Deleted || e.ID != "lst-9" || e.Instance != "node-a" {
		t.Errorf("unexpected event %+v", e)
	}
}

func TestPolicy(t *testing.T) {
	tests := []struct {
		name     string
		localErr error
		pubErr   error
		wantErr  bool
	}{
		{"both succeed", nil, nil, false},
		{"local fails", errors.New("cache down"), nil, true},
		{"publish fails", nil, errors.New("broker down"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := &recordingPolicy{err: tt.localErr}
			ch := &mockChannel{err: tt.pubErr}
			policy := NewPolicy(local, NewPublisher(ch, "x", "node-a"), nil)

			err := policy.Invalidate(context.Background(), repositorycache.Created, "lst-1")
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
			if got := local.getCalls(); len(got) != 1 || got[0] != "created:lst-1" {
				t.Errorf("expected local invalidation, got %v", got)
			}
			if len(ch.calls) != 1 {
				t.Errorf("publish must run even when local invalidation fails, got %d calls", len(ch.calls))
			}
		})
	}
}

func delivery(t *testing.T, e Event) amqp.Delivery {
	t.Helper()
	b, err := e.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return amqp.Delivery{Body: b}
}

func TestListener_Run(t *testing.T) {
	local := &recordingPolicy{}
	l := NewListener(local, "node-a", nil)

	deliveries := make(chan amqp.Delivery, 4)
	deliveries <- delivery(t, Event{Instance: "node-a", Kind: repositorycache.Updated, ID: "own"})
	deliveries <- delivery(t, Event{Instance: "node-b", Kind: repositorycache.Updated, ID: "lst-1"})
	deliveries <- amqp.Delivery{Body: []byte("garbage")}
	deliveries <- delivery(t, Event{Instance: "node-c", Kind: repositorycache.Created, ID: "lst-2"})
	close(deliveries)

	if err := l.Run(context.Background(), deliveries); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := local.getCalls()
	want := []string{"updated:lst-1", "created:lst-2"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestListener_StopsOnContext(t *testing.T) {
	l := NewListener(&recordingPolicy{}, "node-a", nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, make(chan amqp.Delivery)) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListener_FailedInvalidationContinues(t *testing.T) {
	local := &recordingPolicy{err: errors.New("cache down")}
	l := NewListener(local, "node-a", nil)

	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- delivery(t, Event{Instance: "node-b", Kind: repositorycache.Deleted, ID: "lst-1"})
	deliveries <- delivery(t, Event{Instance: "node-b", Kind: repositorycache.Deleted, ID: "lst-2"})
	close(deliveries)

	if err := l.Run(context.Background(), deliveries); err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := len(local.getCalls()); n != 2 {
		t.Errorf("expected both events handled, got %d", n)
	}
}
