package bus

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPublishOrdering(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	for i := 0; i < 5; i++ {
		off, err := b.Publish(TopicOrders, int64(i), i)
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
		if off != int64(i)+1 {
			t.Fatalf("expected offset %d got %d", i+1, off)
		}
	}
	sub, err := b.Subscribe(TopicOrders, 0)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()
	for i := 0; i < 5; i++ {
		env := <-sub.C
		if env.Offset != int64(i)+1 || env.Payload.(int) != i {
			t.Fatalf("out of order: offset=%d payload=%v", env.Offset, env.Payload)
		}
	}
}

func TestSubscribeResume(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	for i := 0; i < 10; i++ {
		if _, err := b.Publish(TopicTrades, 1, i); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	sub, err := b.Subscribe(TopicTrades, 0)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	var last int64
	for i := 0; i < 4; i++ {
		env := <-sub.C
		last = env.Offset
	}
	sub.Cancel()

	// Resuming from the last processed offset continues without loss.
	resumed, err := b.Subscribe(TopicTrades, last)
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	defer resumed.Cancel()
	for i := 4; i < 10; i++ {
		env := <-resumed.C
		if env.Offset != int64(i)+1 {
			t.Fatalf("expected offset %d got %d", i+1, env.Offset)
		}
	}
}

func TestSubscribeTailsNewMessages(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	sub, err := b.Subscribe(TopicGrid, 0)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()
	go func() {
		_, _ = b.Publish(TopicGrid, 7, "verdict")
	}()
	select {
	case env := <-sub.C:
		if env.Tick != 7 || env.Payload.(string) != "verdict" {
			t.Fatalf("unexpected envelope %+v", env)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive published message")
	}
}

func TestClosedBusUnavailable(t *testing.T) {
	b := NewMemory()
	b.Close()
	if _, err := b.Publish(TopicOrders, 1, nil); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable got %v", err)
	}
	if _, err := b.Subscribe(TopicOrders, 0); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable got %v", err)
	}
}

func TestCloseDrainsSubscribers(t *testing.T) {
	b := NewMemory()
	sub, err := b.Subscribe(TopicTicks, 0)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	b.Close()
	select {
	case _, ok := <-sub.C:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber channel not closed on bus shutdown")
	}
}

func TestRetryGivesUpOnClosedBus(t *testing.T) {
	b := NewMemory()
	b.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := Retry(ctx, b, TopicOrders, 1, nil, 3, time.Millisecond)
	if err == nil {
		t.Fatal("expected error from retry against closed bus")
	}
}
