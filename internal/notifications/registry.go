package notifications

import (
	"sync"

	"go.uber.org/zap"
)

// Transport is the output side of a live subscription. Deliver must not block;
// it reports an error when the stream is closed or cannot accept the batch.
type Transport interface {
	Deliver(batch []Notification) error
}

// Connection is a registered live subscription. Its pending queue is owned by
// the Registry and only touched under the registry lock.
type Connection struct {
	userID    string
	transport Transport
	pending   []Notification
	replaced  chan struct{}
}

// UserID reports the subscribed user.
func (c *Connection) UserID() string {
	return c.userID
}

// Transport returns the stream the connection writes to.
func (c *Connection) Transport() Transport {
	return c.transport
}

// Replaced is closed once a newer subscription for the same user takes over.
func (c *Connection) Replaced() <-chan struct{} {
	return c.replaced
}

// Batch is one flushed pending queue.
type Batch struct {
	Connection    *Connection
	Notifications []Notification
}

// Registry maps each user to at most one live Connection.
type Registry struct {
	mu          sync.Mutex
	connections map[string]*Connection
	logger      *zap.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		connections: make(map[string]*Connection),
		logger:      logger,
	}
}

// Register binds transport to userID. An existing connection for the user is
// replaced and its unflushed queue moves to the new connection.
func (r *Registry) Register(userID string, transport Transport) *Connection {
	connection := &Connection{
		userID:    userID,
		transport: transport,
		replaced:  make(chan struct{}),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if previous, ok := r.connections[userID]; ok {
		connection.pending = previous.pending
		previous.pending = nil
		close(previous.replaced)
		r.logger.Debug("live connection replaced",
			zap.String("user_id", userID),
			zap.Int("carried", len(connection.pending)),
		)
	}
	r.connections[userID] = connection
	return connection
}

// Unregister drops the user's connection. Missing users are ignored.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	delete(r.connections, userID)
	r.mu.Unlock()
}

// Release drops connection only while it is still the user's current one, so a
// stream that was replaced cannot unregister its successor.
func (r *Registry) Release(connection *Connection) bool {
	if connection == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.connections[connection.userID] != connection {
		return false
	}
	delete(r.connections, connection.userID)
	return true
}

// Enqueue appends notification to the user's pending queue. It reports false
// when the user has no live connection.
func (r *Registry) Enqueue(userID string, notification Notification) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	connection, ok := r.connections[userID]
	if !ok {
		return false
	}
	connection.pending = append(connection.pending, notification)
	return true
}

// ForEach visits every registered connection under the registry lock. The
// visitor must not call back into the registry.
func (r *Registry) ForEach(visit func(*Connection)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, connection := range r.connections {
		visit(connection)
	}
}

// Drain takes every non-empty pending queue, leaving them empty.
func (r *Registry) Drain() []Batch {
	var batches []Batch
	r.ForEach(func(connection *Connection) {
		if len(connection.pending) == 0 {
			return
		}
		batches = append(batches, Batch{Connection: connection, Notifications: connection.pending})
		connection.pending = nil
	})
	return batches
}

// Requeue hands a batch that its connection failed to deliver to the user's
// newer connection, ahead of anything queued there since. It reports false
// when the batch's connection is still current or the user has none.
func (r *Registry) Requeue(batch Batch) bool {
	if batch.Connection == nil || len(batch.Notifications) == 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.connections[batch.Connection.userID]
	if !ok || current == batch.Connection {
		return false
	}
	pending := make([]Notification, 0, len(batch.Notifications)+len(current.pending))
	pending = append(pending, batch.Notifications...)
	current.pending = append(pending, current.pending...)
	return true
}

// Pending returns a copy of the user's unflushed queue.
func (r *Registry) Pending(userID string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	connection, ok := r.connections[userID]
	if !ok {
		return nil
	}
	return append([]Notification(nil), connection.pending...)
}

// Connection returns the user's current connection, if any.
func (r *Registry) Connection(userID string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	connection, ok := r.connections[userID]
	return connection, ok
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections)
}
