package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rsync-studio/syncengine/internal/domain"
	"github.com/rsync-studio/syncengine/internal/repository"
)

// jobRepository is the GORM implementation of repository.JobRepository:
// one struct per port, wrapping a shared *gorm.DB.
type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository returns a repository.JobRepository backed by db.
func NewJobRepository(db *gorm.DB) repository.JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(ctx context.Context, job *domain.Job) error {
	row, err := jobToRow(job)
	if err != nil {
		return fmt.Errorf("gormstore: jobs: create: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("gormstore: jobs: create: %w", err)
	}
	return nil
}

func (r *jobRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	var row jobRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gormstore: jobs: get: %w", err)
	}
	job, err := rowToJob(&row)
	if err != nil {
		return nil, fmt.Errorf("gormstore: jobs: get: %w", err)
	}
	return job, nil
}

func (r *jobRepository) List(ctx context.Context, opts repository.ListOptions) ([]domain.Job, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var rows []jobRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gormstore: jobs: list: %w", err)
	}

	jobs := make([]domain.Job, 0, len(rows))
	for i := range rows {
		job, err := rowToJob(&rows[i])
		if err != nil {
			return nil, fmt.Errorf("gormstore: jobs: list: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func (r *jobRepository) Update(ctx context.Context, job *domain.Job) error {
	row, err := jobToRow(job)
	if err != nil {
		return fmt.Errorf("gormstore: jobs: update: %w", err)
	}
	result := r.db.WithContext(ctx).Save(row)
	if result.Error != nil {
		return fmt.Errorf("gormstore: jobs: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a job and cascades to its invocations, snapshots, and
// statistics. The migration declares ON DELETE CASCADE foreign keys, but PRAGMA
// foreign_keys is off by default on some sqlite connections, so the cascade
// is additionally performed explicitly here inside one transaction to avoid
// relying on driver-specific pragma state.
func (r *jobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", id).Delete(&statisticRow{}).Error; err != nil {
			return fmt.Errorf("gormstore: jobs: delete statistics: %w", err)
		}
		if err := tx.Where("job_id = ?", id).Delete(&snapshotRow{}).Error; err != nil {
			return fmt.Errorf("gormstore: jobs: delete snapshots: %w", err)
		}
		if err := tx.Where("job_id = ?", id).Delete(&invocationRow{}).Error; err != nil {
			return fmt.Errorf("gormstore: jobs: delete invocations: %w", err)
		}
		result := tx.Delete(&jobRow{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("gormstore: jobs: delete: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}
