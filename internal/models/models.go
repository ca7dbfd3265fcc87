package models

import "time"

// Persona represents an AI-voiced chat participant from the user's catalog.
// Rooms reference personas by ID only, so editing a persona's voice
// propagates to every room it belongs to.
type Persona struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Voice     string    `json:"voice"`
	CreatedAt time.Time `json:"created_at"`
}

// Room represents a chat room with one human user and its persona members.
// LastMessageAt/LastMessageText are a denormalized cache for list views,
// refreshed together with every successful message append.
type Room struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	CreatedAt       time.Time `json:"created_at"`
	LastMessageAt   float64   `json:"last_message_at"`
	LastMessageText string    `json:"last_message_text"`
}

// SenderType defines who authored a message
type SenderType string

const (
	SenderTypeUser    SenderType = "user"
	SenderTypePersona SenderType = "persona"
)

// Message represents a single immutable message in a room's log.
// Timestamp is float seconds since epoch and never decreases within a
// room; ties are broken by insertion order (ascending ID).
type Message struct {
	ID           int64      `json:"id"`
	RoomID       int64      `json:"room_id"`
	SenderType   SenderType `json:"sender_type"`
	SenderID     *int64     `json:"sender_id,omitempty"`
	SenderName   string     `json:"sender_name,omitempty"`
	SenderAvatar string     `json:"sender_avatar,omitempty"`
	Content      string     `json:"content"`
	Timestamp    float64    `json:"timestamp"`
}

// RoomMember represents persona membership in a room
type RoomMember struct {
	RoomID    int64 `json:"room_id"`
	PersonaID int64 `json:"persona_id"`
}

// ReadMark is the per-(user, room) read watermark: everything authored
// by a non-user sender at or before LastRead counts as read. It only
// moves forward in time.
type ReadMark struct {
	UserID   string  `json:"user_id"`
	RoomID   int64   `json:"room_id"`
	LastRead float64 `json:"last_read"`
}

// QuotaState tracks a user's sends in the current accounting window.
// Bonus is extra quota granted by reward events; both Count and Bonus
// reset when the window rolls over.
type QuotaState struct {
	UserID      string    `json:"user_id"`
	Count       int       `json:"count"`
	Bonus       int       `json:"bonus"`
	WindowReset time.Time `json:"window_reset"`
}
