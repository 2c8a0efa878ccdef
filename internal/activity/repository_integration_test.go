//go:build integration

package activity

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"user_manager/internal/config"
	"user_manager/internal/db"
	"user_manager/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err)
	if !cfg.DB.Enabled() {
		t.Skip("DB_HOST not set")
	}

	database, err := db.Init(&cfg.DB)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(database))

	t.Cleanup(func() {
		_, _ = database.Exec("TRUNCATE user_activity")
		_ = database.Close()
	})
	_, err = database.Exec("TRUNCATE user_activity")
	require.NoError(t, err)
	return database
}

func TestActivityRepository_CreateIsIdempotent(t *testing.T) {
	database := setupTestDB(t)
	repo := NewActivityRepository()
	ctx := context.Background()

	entry := &Entry{
		EventID:    uuid.NewString(),
		SessionID:  "s1",
		Action:     "created",
		UserID:     11,
		UserName:   "Jane Doe",
		OccurredAt: time.Now().UTC(),
	}

	var inserted bool
	err := utils.WithTransaction(ctx, database, func(tx *sql.Tx) error {
		var err error
		inserted, err = repo.Create(ctx, tx, entry)
		return err
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Greater(t, entry.ID, int64(0))

	replay := *entry
	err = utils.WithTransaction(ctx, database, func(tx *sql.Tx) error {
		var err error
		inserted, err = repo.Create(ctx, tx, &replay)
		return err
	})
	require.NoError(t, err)
	assert.False(t, inserted)

	entries, err := repo.ListRecent(ctx, database, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestActivityService_RecentNewestFirst(t *testing.T) {
	database := setupTestDB(t)
	service := NewActivityService(NewActivityRepository(), database, nil)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, action := range []string{"created", "updated", "deleted"} {
		require.NoError(t, service.Record(ctx, &Entry{
			EventID:    uuid.NewString(),
			SessionID:  "s1",
			Action:     action,
			UserID:     1,
			UserName:   "Leanne Graham",
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := service.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "deleted", entries[0].Action)
	assert.Equal(t, "updated", entries[1].Action)
}
