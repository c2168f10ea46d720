package notifications

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var errTransportClosed = errors.New("transport closed")

type recordingTransport struct {
	mu      sync.Mutex
	batches [][]Notification
	err     error
}

func (t *recordingTransport) Deliver(batch []Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.batches = append(t.batches, append([]Notification(nil), batch...))
	return nil
}

func (t *recordingTransport) Batches() [][]Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]Notification(nil), t.batches...)
}

type staticDirectory struct {
	users map[string]bool
	err   error
}

func (d staticDirectory) Exists(_ context.Context, userID string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return d.users[userID], nil
}

type sequenceIDProvider struct {
	mu   sync.Mutex
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("n-%03d", p.next), nil
}

type steppingClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(time.Second)
	return c.current
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "notifications.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Notification{}); err != nil {
		t.Fatalf("failed to migrate notifications: %v", err)
	}
	return db
}

func notification(userID, id string) Notification {
	return Notification{UserID: userID, ID: id, Message: "message " + id, Active: true}
}

func notificationIDs(values []Notification) []string {
	ids := make([]string, 0, len(values))
	for _, value := range values {
		ids = append(ids, value.ID)
	}
	return ids
}

func equalIDs(got []Notification, want ...string) bool {
	ids := notificationIDs(got)
	if len(ids) != len(want) {
		return false
	}
	for index := range ids {
		if ids[index] != want[index] {
			return false
		}
	}
	return true
}

// reconnectingTransport simulates a client reconnecting while a batch is in
// flight: the replacement registers before Deliver reports the old stream closed.
type reconnectingTransport struct {
	registry    *Registry
	userID      string
	replacement Transport
}

func (t *reconnectingTransport) Deliver([]Notification) error {
	t.registry.Register(t.userID, t.replacement)
	return errTransportClosed
}
