package chat

import "sync"

// defaultFanoutBuffer is the per-subscriber channel capacity used when no
// capacity is configured.
const defaultFanoutBuffer = 1000

// Fanout is a bounded multi-producer/multi-consumer broadcast channel.
// Every subscriber independently receives every published message, subject
// to its own buffer. Publishing is serialized, so each subscriber observes
// messages in publish order.
type Fanout struct {
	mu     sync.Mutex
	buffer int
	subs   map[*Subscription]struct{}
}

// Subscription is one subscriber's handle on a Fanout.
type Subscription struct {
	fanout *Fanout
	ch     chan Message
	once   sync.Once
}

// NewFanout creates a Fanout whose subscribers buffer up to bufferSize
// messages each.
func NewFanout(bufferSize int) *Fanout {
	if bufferSize <= 0 {
		bufferSize = defaultFanoutBuffer
	}
	return &Fanout{
		buffer: bufferSize,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber receiving every future published
// message.
//
// Postcondition: Returns a Subscription whose channel is open until Cancel.
func (f *Fanout) Subscribe() *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub := &Subscription{
		fanout: f,
		ch:     make(chan Message, f.buffer),
	}
	f.subs[sub] = struct{}{}
	return sub
}

// Publish enqueues msg to every current subscriber. Delivery is best-effort:
// a subscriber whose buffer is full loses its oldest undelivered message to
// make room. The publisher never blocks and is not notified of drops.
// Publishing with no subscribers is a no-op.
func (f *Fanout) Publish(msg Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for sub := range f.subs {
		select {
		case sub.ch <- msg:
		default:
			// Buffer full: drop the oldest queued message, then retry once.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- msg:
			default:
			}
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (f *Fanout) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Messages returns the receive side of the subscription. The channel is
// closed when the subscription is cancelled.
func (s *Subscription) Messages() <-chan Message {
	return s.ch
}

// Cancel removes the subscription from the fanout and closes its channel.
// Safe to call more than once. The close happens under the fanout lock, so
// no publisher can race a send against it.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.fanout.mu.Lock()
		delete(s.fanout.subs, s)
		close(s.ch)
		s.fanout.mu.Unlock()
	})
}
