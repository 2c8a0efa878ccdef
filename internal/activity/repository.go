package activity

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"
)

type ActivityRepository struct{}

type ActivityRepositoryInterface interface {
	Create(ctx context.Context, tx *sql.Tx, entry *Entry) (bool, error)
	ListRecent(ctx context.Context, db *sql.DB, limit int) ([]*Entry, error)
}

func NewActivityRepository() ActivityRepositoryInterface {
	return &ActivityRepository{}
}

// Create inserts entry. It reports false when the event was already recorded.
func (r *ActivityRepository) Create(ctx context.Context, tx *sql.Tx, entry *Entry) (bool, error) {
	query := `
		INSERT INTO user_activity (
			event_id, session_id, action, user_id, user_name, occurred_at, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (event_id) DO NOTHING
		RETURNING id, recorded_at
	`

	err := tx.QueryRowContext(
		ctx,
		query,
		entry.EventID,
		entry.SessionID,
		entry.Action,
		entry.UserID,
		entry.UserName,
		entry.OccurredAt,
	).Scan(&entry.ID, &entry.RecordedAt)

	if err == sql.ErrNoRows {
		logrus.WithField("event_id", entry.EventID).Info("Activity already recorded, skipping")
		return false, nil
	}
	if err != nil {
		logrus.WithError(err).Error("Failed to record activity")
		return false, err
	}

	return true, nil
}

// ListRecent returns the newest entries first.
func (r *ActivityRepository) ListRecent(ctx context.Context, db *sql.DB, limit int) ([]*Entry, error) {
	query := `
		SELECT
			id, event_id, session_id, action, user_id, user_name,
			occurred_at, recorded_at
		FROM user_activity
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1
	`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID,
			&e.EventID,
			&e.SessionID,
			&e.Action,
			&e.UserID,
			&e.UserName,
			&e.OccurredAt,
			&e.RecordedAt,
		); err != nil {
			logrus.Error("Error scanning activity row: ", err)
			continue
		}
		entries = append(entries, &e)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
