package chat

import (
	"fmt"
	"sync"
)

// Outbound is a client's bounded write queue. It serializes command replies
// and relayed broadcasts onto the single socket write path; the outbound
// writer goroutine is the only consumer.
type Outbound struct {
	mu     sync.Mutex
	lines  chan string
	closed bool
}

// NewOutbound creates an Outbound queue with the given capacity.
func NewOutbound(capacity int) *Outbound {
	if capacity <= 0 {
		capacity = 100
	}
	return &Outbound{
		lines: make(chan string, capacity),
	}
}

// Push enqueues a preformatted wire line without blocking.
//
// Postcondition: The line is queued, or an error is returned if the queue
// is closed or full. Callers treat errors as best-effort drops.
func (o *Outbound) Push(line string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbound queue is closed")
	}
	select {
	case o.lines <- line:
		return nil
	default:
		return fmt.Errorf("outbound queue full")
	}
}

// Lines returns the read-only queue channel. The outbound writer drains it
// until it is closed.
func (o *Outbound) Lines() <-chan string {
	return o.lines
}

// Close marks the queue as closed and closes the channel, letting the
// writer drain the remaining lines and exit. Safe to call more than once.
func (o *Outbound) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.lines)
	}
}

// IsClosed reports whether the queue has been closed.
func (o *Outbound) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
