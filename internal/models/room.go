package models

import "time"

// Room groups a set of timers and the devices watching them. The id is a
// short URL-safe token used in page URLs and the WebSocket path.
type Room struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	PasswordHash  string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	TimerOrder    []string  `json:"timer_order"`
	ActiveTimerID string    `json:"active_timer_id,omitempty"`
}

// HasPassword reports whether the room requires a password at connect time.
func (r *Room) HasPassword() bool {
	return r.PasswordHash != ""
}

// RoomSnapshot is the serializable view returned by the HTTP surface and
// persisted by the store.
type RoomSnapshot struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"created_at"`
	TimerOrder    []string  `json:"timer_order"`
	ActiveTimerID string    `json:"active_timer_id,omitempty"`
	DeviceCount   int       `json:"device_count"`
}
