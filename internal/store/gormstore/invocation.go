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

// invocationRepository is the GORM implementation of
// repository.InvocationRepository.
type invocationRepository struct {
	db *gorm.DB
}

// NewInvocationRepository returns a repository.InvocationRepository backed
// by db.
func NewInvocationRepository(db *gorm.DB) repository.InvocationRepository {
	return &invocationRepository{db: db}
}

func (r *invocationRepository) Create(ctx context.Context, inv *domain.Invocation) error {
	if err := r.db.WithContext(ctx).Create(invocationToRow(inv)).Error; err != nil {
		return fmt.Errorf("gormstore: invocations: create: %w", err)
	}
	return nil
}

func (r *invocationRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Invocation, error) {
	var row invocationRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gormstore: invocations: get: %w", err)
	}
	inv := rowToInvocation(&row)
	return &inv, nil
}

func (r *invocationRepository) Update(ctx context.Context, inv *domain.Invocation) error {
	result := r.db.WithContext(ctx).Save(invocationToRow(inv))
	if result.Error != nil {
		return fmt.Errorf("gormstore: invocations: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *invocationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&invocationRow{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("gormstore: invocations: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *invocationRepository) ListByJob(ctx context.Context, jobID uuid.UUID, opts repository.ListOptions) ([]domain.Invocation, error) {
	q := r.db.WithContext(ctx).Where("job_id = ?", jobID).Order("started_at DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var rows []invocationRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gormstore: invocations: list by job: %w", err)
	}
	return rowsToInvocations(rows), nil
}

func (r *invocationRepository) ListAll(ctx context.Context, opts repository.ListOptions) ([]domain.Invocation, error) {
	q := r.db.WithContext(ctx).Order("started_at DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var rows []invocationRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gormstore: invocations: list all: %w", err)
	}
	return rowsToInvocations(rows), nil
}

func (r *invocationRepository) DeleteByJob(ctx context.Context, jobID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&invocationRow{}).Error; err != nil {
		return fmt.Errorf("gormstore: invocations: delete by job: %w", err)
	}
	return nil
}

// LatestForJob returns the most recently started invocation for jobID, used
// by the scheduler to compute last_run.
func (r *invocationRepository) LatestForJob(ctx context.Context, jobID uuid.UUID) (*domain.Invocation, error) {
	var row invocationRow
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("started_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gormstore: invocations: latest for job: %w", err)
	}
	inv := rowToInvocation(&row)
	return &inv, nil
}

func rowsToInvocations(rows []invocationRow) []domain.Invocation {
	out := make([]domain.Invocation, 0, len(rows))
	for i := range rows {
		out = append(out, rowToInvocation(&rows[i]))
	}
	return out
}
