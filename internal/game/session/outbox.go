// Package session provides per-connection session state and the concurrent
// registry of live sessions.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultOutboxSize is used when a non-positive outbox size is requested.
const DefaultOutboxSize = 64

// ErrOutboxClosed is returned by Push after the outbox has been closed.
var ErrOutboxClosed = errors.New("outbox closed")

// ErrOutboxFull is returned by Push when the outbound queue has no free slot.
var ErrOutboxFull = errors.New("outbox full")

// Outbox is a bounded queue of encoded events waiting to be written to one
// connection. Push never blocks, so the lobby can deliver while holding its lock.
type Outbox struct {
	id     string
	events chan []byte
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox for the given session ID.
//
// Precondition: id must be non-empty.
// Postcondition: Returns an Outbox with an open events channel.
func NewOutbox(id string, size int) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	return &Outbox{
		id:     id,
		events: make(chan []byte, size),
	}
}

// Push enqueues data for delivery.
//
// Postcondition: data is enqueued, or ErrOutboxClosed / ErrOutboxFull is returned
// wrapped with the session ID.
func (o *Outbox) Push(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("session %s: %w", o.id, ErrOutboxClosed)
	}
	select {
	case o.events <- data:
		return nil
	default:
		return fmt.Errorf("session %s: %w", o.id, ErrOutboxFull)
	}
}

// Events returns the read-only events channel drained by the connection writer.
// The channel is closed by Close.
func (o *Outbox) Events() <-chan []byte {
	return o.events
}

// Close marks the outbox as closed and closes the events channel.
//
// Postcondition: The events channel is closed. Further Push calls return an error.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.events)
	}
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
