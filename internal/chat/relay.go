package chat

// Relay drains one room subscription into a client's outbound queue,
// excluding the client's own messages. A session runs exactly one relay
// per active room subscription and must cancel it before subscribing to
// another room; an uncancelled relay keeps delivering from the abandoned
// room.
type Relay struct {
	sub  *Subscription
	done chan struct{}
}

// StartRelay spawns the relay goroutine for the given subscription.
//
// Precondition: sub and out must be non-nil.
// Postcondition: Messages published to the subscription are rendered and
// pushed to out until the relay is cancelled.
func StartRelay(sub *Subscription, out *Outbound, self ClientID) *Relay {
	r := &Relay{
		sub:  sub,
		done: make(chan struct{}),
	}
	go r.run(out, self)
	return r
}

func (r *Relay) run(out *Outbound, self ClientID) {
	defer close(r.done)
	for msg := range r.sub.Messages() {
		if msg.SenderID == self {
			continue
		}
		// Full or closed outbound queue drops the line; the publisher is
		// never notified.
		_ = out.Push(msg.Render())
	}
}

// Cancel unsubscribes from the room's fanout and waits for the relay
// goroutine to exit. Safe to call more than once.
func (r *Relay) Cancel() {
	r.sub.Cancel()
	<-r.done
}
