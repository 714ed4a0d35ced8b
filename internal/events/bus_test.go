package events

import (
	"testing"
	"time"
)

// TestBus_TopicDelivery verifies topic subscribers only see their topic.
func TestBus_TopicDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	stepCh := bus.Subscribe(TopicStep, 4)
	chainCh := bus.Subscribe(TopicChain, 4)

	bus.Publish(TopicStep, StepStartedEvent{Task: "install", Timestamp: time.Now()})

	select {
	case ev := <-stepCh:
		if ev.Step() != "install" {
			t.Errorf("Expected step 'install', got %q", ev.Step())
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for step event")
	}

	select {
	case ev := <-chainCh:
		t.Errorf("Chain subscriber received unexpected event: %v", ev)
	default:
	}
}

// TestBus_SubscribeAll verifies cross-topic delivery.
func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	all := bus.SubscribeAll(8)
	bus.Publish(TopicStep, StepCompletedEvent{Task: "lock"})
	bus.Publish(TopicChain, ChainProgressEvent{Target: "test", Total: 3, Done: 1})

	got := 0
	timeout := time.After(time.Second)
	for got < 2 {
		select {
		case <-all:
			got++
		case <-timeout:
			t.Fatalf("Timed out; received %d of 2 events", got)
		}
	}
}

// TestBus_NonBlockingPublish verifies a full subscriber drops events
// instead of stalling the publisher.
func TestBus_NonBlockingPublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	_ = bus.Subscribe(TopicStep, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(TopicStep, StepOutputEvent{Task: "cov", Line: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on full subscriber channel")
	}
}

// TestBus_CloseIdempotent verifies Close can be called repeatedly and
// subscriptions after Close return closed channels.
func TestBus_CloseIdempotent(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(TopicStep, 1)
	bus.Close()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("Expected subscriber channel to be closed")
	}
	late := bus.Subscribe(TopicStep, 1)
	if _, ok := <-late; ok {
		t.Error("Expected post-close subscription to be closed")
	}
	// Publish after close must not panic.
	bus.Publish(TopicStep, StepStartedEvent{Task: "noop"})
}
