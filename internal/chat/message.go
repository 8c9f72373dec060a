// Package chat implements the room registry, per-room broadcast fanout, and
// the per-connection session pipeline for the chat server.
package chat

import "strings"

// ClientID uniquely identifies a connected client for the lifetime of the
// server process. IDs are monotonically increasing and never reused.
type ClientID uint64

// Message is a single fanout item: one chat line or system notice published
// to a room.
type Message struct {
	// SenderID is the publishing client; relays use it to suppress
	// self-delivery.
	SenderID ClientID
	// Nickname is the sender's display name at publish time.
	Nickname string
	// Text is the message body. Bracket-delimited bodies are system
	// notices and render verbatim.
	Text string
}

// Render formats the message as a wire line including the trailing newline.
// System notices such as "[alice joined]" pass through verbatim; chat text
// is prefixed with the sender's nickname.
func (m Message) Render() string {
	if strings.HasPrefix(m.Text, "[") {
		return m.Text + "\n"
	}
	return m.Nickname + ": " + m.Text + "\n"
}

// truncateRunes returns s cut to at most max runes.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
