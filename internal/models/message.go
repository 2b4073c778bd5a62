package models

import "time"

// Message is a one-shot display overlay routed to viewers. Messages are not
// persistent state; the room keeps only a short tail for late joiners.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Color     string    `json:"color,omitempty"`
	Bold      bool      `json:"bold,omitempty"`
	Uppercase bool      `json:"uppercase,omitempty"`
	Flashing  bool      `json:"flashing,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MaxMessageContentLen bounds display_message payloads; longer content is
// rejected as invalid input.
const MaxMessageContentLen = 1024
