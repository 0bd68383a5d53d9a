package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/rsync-studio/syncengine/internal/domain"
)

// ListOptions carries common pagination for list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// JobRepository is the persistence port for job definitions.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	List(ctx context.Context, opts ListOptions) ([]domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// InvocationRepository is the persistence port for execution records.
type InvocationRepository interface {
	Create(ctx context.Context, inv *domain.Invocation) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Invocation, error)
	Update(ctx context.Context, inv *domain.Invocation) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByJob(ctx context.Context, jobID uuid.UUID, opts ListOptions) ([]domain.Invocation, error)
	ListAll(ctx context.Context, opts ListOptions) ([]domain.Invocation, error)
	DeleteByJob(ctx context.Context, jobID uuid.UUID) error
	// LatestForJob returns the most recently started invocation for a job,
	// or ErrNotFound if none exists. Used by the scheduler to compute
	// last_run.
	LatestForJob(ctx context.Context, jobID uuid.UUID) (*domain.Invocation, error)
}

// SnapshotRepository is the persistence port for snapshot records. Must
// cascade on job delete.
type SnapshotRepository interface {
	Create(ctx context.Context, snap *domain.SnapshotRecord) error
	GetLatestForJob(ctx context.Context, jobID uuid.UUID) (*domain.SnapshotRecord, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.SnapshotRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByJob(ctx context.Context, jobID uuid.UUID) error
}

// StatisticsRepository is the persistence port for run statistics.
type StatisticsRepository interface {
	Record(ctx context.Context, stat *domain.RunStatistic) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.RunStatistic, error)
	ListAll(ctx context.Context) ([]domain.RunStatistic, error)
	DeleteByJob(ctx context.Context, jobID uuid.UUID) error
	DeleteAll(ctx context.Context) error
}

// SettingsRepository is the persistence port for the flat key/value
// settings map.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error) // ErrNotFound if absent
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	GetMany(ctx context.Context, prefix string) (map[string]string, error)
}
