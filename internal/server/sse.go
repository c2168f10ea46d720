package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/quantumtracker/backend/internal/notifications"
)

const (
	eventNewNotifications = "newNotifications"
	streamBufferSize      = 8
)

var (
	errStreamClosed = errors.New("notification stream closed")
	errStreamBusy   = errors.New("notification stream backlog full")
)

// streamTransport hands flushed batches to the request goroutine that owns the
// response writer. Deliver never blocks.
type streamTransport struct {
	mu      sync.Mutex
	closed  bool
	batches chan []notifications.Notification
}

func newStreamTransport() *streamTransport {
	return &streamTransport{batches: make(chan []notifications.Notification, streamBufferSize)}
}

func (t *streamTransport) Deliver(batch []notifications.Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errStreamClosed
	}
	select {
	case t.batches <- batch:
		return nil
	default:
		return errStreamBusy
	}
}

func (t *streamTransport) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// writeEvent frames payload as a single server-sent event.
func writeEvent(w io.Writer, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
