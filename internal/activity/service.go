package activity

import (
	"context"
	"database/sql"
	"fmt"

	"user_manager/internal/observability"
	"user_manager/internal/utils"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type ActivityServiceInterface interface {
	Record(ctx context.Context, entry *Entry) error
	Recent(ctx context.Context, limit int) ([]*Entry, error)
}

type ActivityService struct {
	repo    ActivityRepositoryInterface
	db      *sql.DB
	metrics *observability.Metrics
}

func NewActivityService(repo ActivityRepositoryInterface, db *sql.DB, metrics *observability.Metrics) *ActivityService {
	return &ActivityService{
		repo:    repo,
		db:      db,
		metrics: metrics,
	}
}

// Record writes entry once; replays of the same event are ignored.
func (s *ActivityService) Record(ctx context.Context, entry *Entry) error {
	if entry.EventID == "" || entry.SessionID == "" || entry.Action == "" {
		return fmt.Errorf("invalid activity entry")
	}

	var inserted bool
	if err := utils.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		inserted, err = s.repo.Create(ctx, tx, entry)
		return err
	}); err != nil {
		if s.metrics != nil {
			s.metrics.ActivityFailedTotal.WithLabelValues("insert").Inc()
		}
		return err
	}

	if inserted && s.metrics != nil {
		s.metrics.ActivityRecordedTotal.WithLabelValues(entry.Action).Inc()
	}
	return nil
}

// Recent clamps limit to [1, MaxLimit], defaulting to DefaultLimit.
func (s *ActivityService) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	return s.repo.ListRecent(ctx, s.db, ClampLimit(limit))
}

func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
