package chat

import (
	"crypto/rand"
	"math/big"
	"sync"
)

const (
	roomIDPrefix    = "room-"
	roomIDAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"
	roomIDSuffixLen = 5
)

// Registry maps room identifiers to live rooms. It creates rooms with
// collision-free identifiers and garbage-collects rooms whose membership
// reaches zero. A reader/writer lock allows many concurrent lookups with
// exclusive insert/remove.
type Registry struct {
	mu           sync.RWMutex
	rooms        map[string]*Room
	fanoutBuffer int
}

// NewRegistry creates an empty Registry whose rooms use the given
// per-subscriber fanout buffer capacity.
func NewRegistry(fanoutBuffer int) *Registry {
	return &Registry{
		rooms:        make(map[string]*Room),
		fanoutBuffer: fanoutBuffer,
	}
}

// Create generates a fresh room identifier, inserts an empty room under it,
// and returns the room. Identifiers are drawn from a random generator and
// re-drawn on collision with a live room, so an id is never silently reused.
func (g *Registry) Create() *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		id := roomIDPrefix + randomSuffix()
		if _, exists := g.rooms[id]; exists {
			continue
		}
		room := newRoom(id, g.fanoutBuffer)
		g.rooms[id] = room
		return room
	}
}

// Get looks up a room by identifier.
//
// Postcondition: Returns (room, true) if the room is live, or (nil, false).
func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[id]
	return room, ok
}

// RemoveIfEmpty removes the room only if its membership is currently empty.
// Idempotent; called after every membership removal.
func (g *Registry) RemoveIfEmpty(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[id]
	if !ok {
		return
	}
	if room.MemberCount() == 0 {
		delete(g.rooms, id)
	}
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// randomSuffix returns roomIDSuffixLen random characters from the room id
// alphabet.
//
// Panics with "chat: crypto/rand failure: <err>" if crypto/rand fails.
func randomSuffix() string {
	buf := make([]byte, roomIDSuffixLen)
	max := big.NewInt(int64(len(roomIDAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("chat: crypto/rand failure: " + err.Error())
		}
		buf[i] = roomIDAlphabet[n.Int64()]
	}
	return string(buf)
}
