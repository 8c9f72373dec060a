package chat

import "sync"

// Room is a named broadcast domain. It holds the membership mapping and the
// fanout channel shared by all current and departing members. The membership
// lock is independent of the registry lock; callers always acquire the
// registry first, then the room.
type Room struct {
	id     string
	fanout *Fanout

	mu      sync.RWMutex
	members map[ClientID]string
}

func newRoom(id string, fanoutBuffer int) *Room {
	return &Room{
		id:      id,
		fanout:  NewFanout(fanoutBuffer),
		members: make(map[ClientID]string),
	}
}

// ID returns the room's registry identifier.
func (r *Room) ID() string {
	return r.id
}

// AddMember records a client as a member of the room.
func (r *Room) AddMember(id ClientID, nickname string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[id] = nickname
}

// RemoveMember removes a client from the room's membership and returns the
// number of remaining members. Removing a non-member is a no-op.
func (r *Room) RemoveMember(id ClientID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, id)
	return len(r.members)
}

// MemberCount returns the current number of members.
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Members returns a copy of the membership mapping.
func (r *Room) Members() map[ClientID]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[ClientID]string, len(r.members))
	for id, nick := range r.members {
		out[id] = nick
	}
	return out
}

// Subscribe attaches a new fanout subscriber to the room.
func (r *Room) Subscribe() *Subscription {
	return r.fanout.Subscribe()
}

// Publish broadcasts a message to every current subscriber of the room.
// Best-effort; see Fanout.Publish for the drop policy.
func (r *Room) Publish(senderID ClientID, nickname, text string) {
	r.fanout.Publish(Message{
		SenderID: senderID,
		Nickname: nickname,
		Text:     text,
	})
}
