package bus

import (
	"sync"
	"time"

	"github.com/gridwise/energysim/core/model"
)

// MemoryBus is the in-process Bus implementation. Each topic keeps an
// append-only slice of envelopes guarded by a mutex; subscribers run a
// pump goroutine that follows the log with a condition variable, so a slow
// consumer never loses messages, it only lags.
type MemoryBus struct {
	mu     sync.Mutex
	topics map[string]*topicLog
	closed bool
}

type topicLog struct {
	mu   sync.Mutex
	cond *sync.Cond
	log  []Envelope
	done bool
}

func newTopicLog() *topicLog {
	t := &topicLog{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// NewMemory creates an empty MemoryBus.
func NewMemory() *MemoryBus {
	return &MemoryBus{topics: make(map[string]*topicLog)}
}

func (b *MemoryBus) topic(name string) (*topicLog, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false
	}
	t, ok := b.topics[name]
	if !ok {
		t = newTopicLog()
		b.topics[name] = t
	}
	return t, true
}

// Publish appends the payload to the topic log and wakes subscribers.
func (b *MemoryBus) Publish(topic string, tick model.Tick, payload any) (int64, error) {
	t, ok := b.topic(topic)
	if !ok {
		return 0, ErrUnavailable
	}
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return 0, ErrUnavailable
	}
	off := int64(len(t.log)) + 1
	t.log = append(t.log, Envelope{
		Topic:   topic,
		Offset:  off,
		Tick:    tick,
		Time:    time.Now(),
		Payload: payload,
	})
	t.cond.Broadcast()
	t.mu.Unlock()
	return off, nil
}

// Subscribe returns a cursor over the topic starting at fromOffset. The
// cursor survives bus restarts of the consumer: resubscribing with the last
// processed offset resumes exactly where it left off (messages before that
// offset are simply replayed from the log).
func (b *MemoryBus) Subscribe(topic string, fromOffset int64) (*Subscription, error) {
	t, ok := b.topic(topic)
	if !ok {
		return nil, ErrUnavailable
	}
	ch := make(chan Envelope, 16)
	stop := make(chan struct{})
	var once sync.Once
	sub := &Subscription{C: ch, cancel: func() {
		once.Do(func() {
			close(stop)
			// Wake the pump so it notices the stop signal.
			t.mu.Lock()
			t.cond.Broadcast()
			t.mu.Unlock()
		})
	}}
	go t.pump(ch, stop, fromOffset)
	return sub, nil
}

// pump follows the log from the cursor, blocking on the condition variable
// when caught up. Delivery to the channel is blocking: backpressure, not
// loss.
func (t *topicLog) pump(ch chan<- Envelope, stop <-chan struct{}, from int64) {
	defer close(ch)
	cursor := from
	if cursor < 0 {
		cursor = 0
	}
	for {
		t.mu.Lock()
		for int64(len(t.log)) <= cursor && !t.done && !stopped(stop) {
			t.cond.Wait()
		}
		if t.done || stopped(stop) {
			t.mu.Unlock()
			return
		}
		env := t.log[cursor]
		t.mu.Unlock()

		select {
		case ch <- env:
			cursor++
		case <-stop:
			return
		}
	}
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// Len returns the number of messages appended to the topic so far.
func (b *MemoryBus) Len(topic string) int64 {
	b.mu.Lock()
	t, ok := b.topics[topic]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return int64(len(t.log))
}

// Close shuts the bus down. Pending subscriptions drain and close; further
// publishes fail with ErrUnavailable.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	topics := make([]*topicLog, 0, len(b.topics))
	for _, t := range b.topics {
		topics = append(topics, t)
	}
	b.mu.Unlock()
	for _, t := range topics {
		t.mu.Lock()
		t.done = true
		t.cond.Broadcast()
		t.mu.Unlock()
	}
}
