// Package model contains the core domain entities for chatguard.
// These models represent the core business objects and are independent of external concerns.
package model

import (
	"time"
)

// Message represents a single entry in a channel's history.
// The ID is opaque and unique within its channel.
type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAuthor reports whether the message carries an author reference.
// Messages without one are treated as invalid and never displayed.
func (m Message) HasAuthor() bool {
	return m.AuthorID != ""
}

// EventType identifies the kind of remote mutation carried by an Event.
type EventType int

const (
	EventInsert EventType = iota + 1
	EventUpdate
	EventDelete
)

func (t EventType) String() string {
	switch t {
	case EventInsert:
		return "insert"
	case EventUpdate:
		return "update"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a change notification for a single message.
// Delete events only need Message.ID and Message.ChannelID populated.
type Event struct {
	Type    EventType
	Message Message
}
