package notifications

import "testing"

func TestRegisterReplacesAndCarriesPending(t *testing.T) {
	registry := NewRegistry(nil)
	first := &recordingTransport{}
	second := &recordingTransport{}

	original := registry.Register("user-a", first)
	registry.Enqueue("user-a", notification("user-a", "n1"))
	registry.Enqueue("user-a", notification("user-a", "n2"))

	replacement := registry.Register("user-a", second)

	if registry.Len() != 1 {
		t.Fatalf("expected one connection, got %d", registry.Len())
	}
	current, ok := registry.Connection("user-a")
	if !ok || current != replacement || current.Transport() != second {
		t.Fatalf("expected the replacement connection bound to the second transport")
	}
	if pending := registry.Pending("user-a"); !equalIDs(pending, "n1", "n2") {
		t.Fatalf("expected carried queue [n1 n2], got %v", notificationIDs(pending))
	}

	select {
	case <-original.Replaced():
	default:
		t.Fatalf("expected the original connection to be signalled as replaced")
	}
	select {
	case <-replacement.Replaced():
		t.Fatalf("replacement must not be signalled")
	default:
	}

	registry.Enqueue("user-a", notification("user-a", "n3"))
	if pending := registry.Pending("user-a"); !equalIDs(pending, "n1", "n2", "n3") {
		t.Fatalf("expected [n1 n2 n3], got %v", notificationIDs(pending))
	}
}

func TestReleaseIgnoresReplacedConnection(t *testing.T) {
	registry := NewRegistry(nil)
	original := registry.Register("user-a", &recordingTransport{})
	replacement := registry.Register("user-a", &recordingTransport{})

	if registry.Release(original) {
		t.Fatalf("a replaced connection must not release its successor")
	}
	if registry.Len() != 1 {
		t.Fatalf("expected the replacement to stay registered")
	}
	if !registry.Release(replacement) {
		t.Fatalf("expected the current connection to be released")
	}
	if registry.Len() != 0 {
		t.Fatalf("expected registry to be empty")
	}
	if registry.Release(nil) {
		t.Fatalf("releasing nil must be a no-op")
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Register("user-a", &recordingTransport{})

	registry.Unregister("user-a")
	registry.Unregister("user-a")
	registry.Unregister("user-b")

	if registry.Len() != 0 {
		t.Fatalf("expected no connections, got %d", registry.Len())
	}
	if registry.Enqueue("user-a", notification("user-a", "n1")) {
		t.Fatalf("enqueue after unregister must not queue anything")
	}
}

func TestEnqueueWithoutConnectionIsNoop(t *testing.T) {
	registry := NewRegistry(nil)
	if registry.Enqueue("ghost", notification("ghost", "n1")) {
		t.Fatalf("expected enqueue to report no connection")
	}
	if registry.Pending("ghost") != nil {
		t.Fatalf("expected no pending queue for an unconnected user")
	}
}

func TestDrainTakesOnlyNonEmptyQueues(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Register("user-a", &recordingTransport{})
	registry.Register("user-b", &recordingTransport{})
	registry.Enqueue("user-a", notification("user-a", "n1"))

	batches := registry.Drain()
	if len(batches) != 1 {
		t.Fatalf("expected one batch, got %d", len(batches))
	}
	if batches[0].Connection.UserID() != "user-a" || !equalIDs(batches[0].Notifications, "n1") {
		t.Fatalf("unexpected batch %+v", batches[0])
	}
	if len(registry.Pending("user-a")) != 0 {
		t.Fatalf("expected drained queue to be empty")
	}
	if len(registry.Drain()) != 0 {
		t.Fatalf("expected nothing left to drain")
	}

	visited := 0
	registry.ForEach(func(*Connection) { visited++ })
	if visited != 2 {
		t.Fatalf("expected both connections to stay registered, visited %d", visited)
	}
}

func TestRequeueOnlyTargetsReplacement(t *testing.T) {
	registry := NewRegistry(nil)
	first := registry.Register("user-a", &recordingTransport{})
	batch := Batch{Connection: first, Notifications: []Notification{notification("user-a", "n1")}}

	if registry.Requeue(batch) {
		t.Fatalf("a batch must not be requeued onto its own connection")
	}

	registry.Register("user-a", &recordingTransport{})
	registry.Enqueue("user-a", notification("user-a", "n2"))
	if !registry.Requeue(batch) {
		t.Fatalf("expected the batch to move to the replacement")
	}
	if !equalIDs(registry.Pending("user-a"), "n1", "n2") {
		t.Fatalf("expected the older batch ahead of newer items, got %v", registry.Pending("user-a"))
	}

	registry.Unregister("user-a")
	if registry.Requeue(batch) {
		t.Fatalf("a user without a connection cannot take a batch")
	}
}
