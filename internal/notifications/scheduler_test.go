package notifications

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFlushDeliversQueueAsSingleEvent(t *testing.T) {
	registry := NewRegistry(nil)
	busy := &recordingTransport{}
	idle := &recordingTransport{}
	registry.Register("user-a", busy)
	registry.Register("user-b", idle)
	registry.Enqueue("user-a", notification("user-a", "n1"))
	registry.Enqueue("user-a", notification("user-a", "n2"))

	scheduler, err := NewScheduler(SchedulerConfig{Registry: registry})
	if err != nil {
		t.Fatalf("failed to build scheduler: %v", err)
	}

	if delivered := scheduler.Flush(); delivered != 1 {
		t.Fatalf("expected one delivered event, got %d", delivered)
	}
	batches := busy.Batches()
	if len(batches) != 1 || !equalIDs(batches[0], "n1", "n2") {
		t.Fatalf("expected a single [n1 n2] event, got %v", batches)
	}
	if len(idle.Batches()) != 0 {
		t.Fatalf("empty queue must not produce an event")
	}
	if len(registry.Pending("user-a")) != 0 {
		t.Fatalf("expected pending queue to be cleared")
	}

	if delivered := scheduler.Flush(); delivered != 0 {
		t.Fatalf("expected nothing on the next cycle, got %d", delivered)
	}
}

func TestFlushContinuesPastBrokenTransport(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	registry := NewRegistry(nil)
	broken := &recordingTransport{err: errTransportClosed}
	healthy := &recordingTransport{}
	registry.Register("user-a", broken)
	registry.Register("user-b", healthy)
	registry.Enqueue("user-a", notification("user-a", "n1"))
	registry.Enqueue("user-b", notification("user-b", "n2"))

	scheduler, err := NewScheduler(SchedulerConfig{Registry: registry, Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("failed to build scheduler: %v", err)
	}

	if delivered := scheduler.Flush(); delivered != 1 {
		t.Fatalf("expected the healthy connection to be delivered, got %d", delivered)
	}
	if batches := healthy.Batches(); len(batches) != 1 || !equalIDs(batches[0], "n2") {
		t.Fatalf("unexpected healthy batches %v", batches)
	}
	entries := logs.FilterMessage("notification delivery failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one delivery failure log, got %d", len(entries))
	}
	if entries[0].ContextMap()["user_id"] != "user-a" {
		t.Fatalf("unexpected log fields %v", entries[0].ContextMap())
	}
}

func TestSchedulerStartAndStop(t *testing.T) {
	registry := NewRegistry(nil)
	transport := &recordingTransport{}
	registry.Register("user-a", transport)

	scheduler, err := NewScheduler(SchedulerConfig{Registry: registry, Interval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("failed to build scheduler: %v", err)
	}
	scheduler.Start(context.Background())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	registry.Enqueue("user-a", notification("user-a", "n1"))

	deadline := time.Now().Add(2 * time.Second)
	for len(transport.Batches()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected the ticker to flush the queue")
		}
		time.Sleep(5 * time.Millisecond)
	}

	scheduler.Stop()
	scheduler.Stop()
	registry.Enqueue("user-a", notification("user-a", "n2"))
	time.Sleep(50 * time.Millisecond)
	if len(transport.Batches()) != 1 {
		t.Fatalf("expected no deliveries after stop")
	}
}

func TestNewSchedulerRequiresRegistry(t *testing.T) {
	if _, err := NewScheduler(SchedulerConfig{}); err == nil {
		t.Fatalf("expected error without registry")
	}
}

func TestFlushMovesBatchToReplacementConnection(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	registry := NewRegistry(nil)
	replacement := &recordingTransport{}
	registry.Register("user-a", &reconnectingTransport{registry: registry, userID: "user-a", replacement: replacement})
	registry.Enqueue("user-a", notification("user-a", "n1"))
	registry.Enqueue("user-a", notification("user-a", "n2"))

	scheduler, err := NewScheduler(SchedulerConfig{Registry: registry, Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("failed to build scheduler: %v", err)
	}

	if delivered := scheduler.Flush(); delivered != 0 {
		t.Fatalf("expected the in-flight batch to be rejected, got %d", delivered)
	}
	if !equalIDs(registry.Pending("user-a"), "n1", "n2") {
		t.Fatalf("expected the batch to wait on the replacement, got %v", registry.Pending("user-a"))
	}
	registry.Enqueue("user-a", notification("user-a", "n3"))

	if delivered := scheduler.Flush(); delivered != 1 {
		t.Fatalf("expected the replacement to receive one event, got %d", delivered)
	}
	batches := replacement.Batches()
	if len(batches) != 1 || !equalIDs(batches[0], "n1", "n2", "n3") {
		t.Fatalf("expected [n1 n2 n3] on the replacement, got %v", batches)
	}
	if logs.Len() != 0 {
		t.Fatalf("a moved batch is not a delivery failure, got %d warnings", logs.Len())
	}
}
