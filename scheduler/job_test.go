package scheduler

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestJobStore(t *testing.T) *GormJobStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Job{}))
	return NewGormJobStore(db)
}

func TestGormJobStore_CreateGetUpdate(t *testing.T) {
	store := newTestJobStore(t)
	ctx := context.Background()

	job := &Job{ID: "job-1", SourceID: "google", Stream: "calendar", Status: StatusPending}
	require.NoError(t, store.Create(ctx, job))

	fetched, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, StatusPending, fetched.Status)

	fetched.Status = StatusSucceeded
	fetched.RecordsProcessed = 42
	require.NoError(t, store.Update(ctx, fetched))

	reloaded, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, reloaded.Status)
	require.Equal(t, 42, reloaded.RecordsProcessed)
}
