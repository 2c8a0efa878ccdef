package activity

import (
	"time"

	"user_manager/internal/user"
)

// Entry is one row of the user activity journal.
type Entry struct {
	ID         int64     `json:"id"`
	EventID    string    `json:"event_id"`
	SessionID  string    `json:"session_id"`
	Action     string    `json:"action"`
	UserID     int       `json:"user_id"`
	UserName   string    `json:"user_name"`
	OccurredAt time.Time `json:"occurred_at"`
	RecordedAt time.Time `json:"recorded_at"`
}

func FromEvent(e user.Event) *Entry {
	return &Entry{
		EventID:    e.EventID,
		SessionID:  e.SessionID,
		Action:     string(e.Action),
		UserID:     e.UserID,
		UserName:   e.UserName,
		OccurredAt: e.OccurredAt,
	}
}
