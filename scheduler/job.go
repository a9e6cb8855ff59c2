package scheduler

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Job is the persisted job record: id, an optional parent_id, status,
// created_at, started_at, completed_at, records_processed, and an
// optional error.
type Job struct {
	ID               string `gorm:"primaryKey"`
	ParentID         *string
	SourceID         string
	Stream           string
	Status           Status
	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	RecordsProcessed int
	Error            *string
}

func (Job) TableName() string { return "jobs" }

// JobStore persists jobs so WaitForJobCompletion can observe them by
// polling, and so a running job can be looked up for cancellation.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	Update(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
}

// GormJobStore is the default JobStore, backed by the same relational
// database as the ontology tables.
type GormJobStore struct {
	db *gorm.DB
}

// NewGormJobStore constructs a GormJobStore. The caller must have already
// migrated the jobs table (see internal/migration).
func NewGormJobStore(db *gorm.DB) *GormJobStore {
	return &GormJobStore{db: db}
}

func (s *GormJobStore) Create(ctx context.Context, job *Job) error {
	return s.db.WithContext(ctx).Create(job).Error
}

func (s *GormJobStore) Update(ctx context.Context, job *Job) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "started_at", "completed_at", "records_processed", "error"}),
	}).Save(job).Error
}

func (s *GormJobStore) Get(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}
