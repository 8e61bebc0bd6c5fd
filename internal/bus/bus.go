package bus

import (
	"context"
	"errors"
	"time"

	"github.com/gridwise/energysim/core/model"
)

// ErrUnavailable is returned when a publish or subscribe cannot be served,
// typically because the bus is closed. Callers retry with backoff or
// escalate; the bus never drops a message silently.
var ErrUnavailable = errors.New("bus: unavailable")

// Envelope wraps a payload on the bus. Offsets increase monotonically per
// topic; consumers must be idempotent on (topic, offset) because delivery
// is at-least-once. Cross-topic ordering is not guaranteed, which is why
// every payload carries its own tick.
type Envelope struct {
	Topic   string
	Offset  int64
	Tick    model.Tick
	Time    time.Time
	Payload any
}

// Subscription is a restartable cursor over one topic's log.
type Subscription struct {
	// C delivers envelopes in publish order, starting at the requested
	// offset. It is closed when the subscription is cancelled or the bus
	// shuts down.
	C <-chan Envelope

	cancel func()
}

// Cancel stops delivery and releases the cursor.
func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Bus is an ordered, at-least-once message log per topic. It carries no
// business logic.
type Bus interface {
	// Publish appends the payload to the topic log and returns its offset.
	Publish(topic string, tick model.Tick, payload any) (int64, error)
	// Subscribe returns a lazy sequence of messages from the given offset
	// onward. Offset 0 replays the topic from the beginning.
	Subscribe(topic string, fromOffset int64) (*Subscription, error)
	Close()
}

// Retry publishes with exponential backoff until ctx is done or attempts
// are exhausted. Only ErrUnavailable is retried; it is the transient
// failure mode of the bus.
func Retry(ctx context.Context, b Bus, topic string, tick model.Tick, payload any, attempts int, backoff time.Duration) (int64, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var (
		off int64
		err error
	)
	for i := 0; i < attempts; i++ {
		off, err = b.Publish(topic, tick, payload)
		if err == nil || !errors.Is(err, ErrUnavailable) {
			return off, err
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(backoff << i):
		}
	}
	return off, err
}
