package model

import (
	"time"
)

// BanRecord is a suspension of a user, either account-wide (ChannelID empty)
// or limited to a single channel. A record with LiftedAt set is inactive.
type BanRecord struct {
	ID        int64
	UserID    string
	ChannelID string
	Reason    string
	AdminID   string
	AdminName string
	CreatedAt time.Time
	LiftedAt  *time.Time
	LiftedBy  string
}

// IsGlobal reports whether the record applies to every channel.
func (b BanRecord) IsGlobal() bool {
	return b.ChannelID == ""
}

// Active reports whether the record has not been lifted.
func (b BanRecord) Active() bool {
	return b.LiftedAt == nil
}

// Resolution is the derived answer to "may this user post here".
// Err carries the diagnostic when the lookup degraded to the permissive default.
type Resolution struct {
	Banned    bool      `json:"banned"`
	Reason    string    `json:"reason,omitempty"`
	AdminID   string    `json:"admin_id,omitempty"`
	AdminName string    `json:"admin_name,omitempty"`
	Global    bool      `json:"global"`
	Since     time.Time `json:"since,omitzero"`
	Err       error     `json:"-"`
}
