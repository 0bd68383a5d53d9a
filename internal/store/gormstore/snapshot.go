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

// snapshotRepository is the GORM implementation of
// repository.SnapshotRepository.
type snapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository returns a repository.SnapshotRepository backed by
// db.
func NewSnapshotRepository(db *gorm.DB) repository.SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) Create(ctx context.Context, snap *domain.SnapshotRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if snap.IsLatest {
			if err := tx.Model(&snapshotRow{}).
				Where("job_id = ?", snap.JobID).
				Update("is_latest", false).Error; err != nil {
				return fmt.Errorf("gormstore: snapshots: clear previous latest: %w", err)
			}
		}
		if err := tx.Create(snapshotToRow(snap)).Error; err != nil {
			return fmt.Errorf("gormstore: snapshots: create: %w", err)
		}
		return nil
	})
}

// GetLatestForJob returns the snapshot row flagged IsLatest for jobID. Falls
// back to the most recently created row if no row is flagged (defensive —
// every Create call above clears the prior flag before setting a new one).
func (r *snapshotRepository) GetLatestForJob(ctx context.Context, jobID uuid.UUID) (*domain.SnapshotRecord, error) {
	var row snapshotRow
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND is_latest = ?", jobID, true).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = r.db.WithContext(ctx).
			Where("job_id = ?", jobID).
			Order("created_at DESC").
			First(&row).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gormstore: snapshots: get latest for job: %w", err)
	}
	snap := rowToSnapshot(&row)
	return &snap, nil
}

func (r *snapshotRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.SnapshotRecord, error) {
	var rows []snapshotRow
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gormstore: snapshots: list by job: %w", err)
	}
	out := make([]domain.SnapshotRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rowToSnapshot(&rows[i]))
	}
	return out, nil
}

func (r *snapshotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&snapshotRow{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("gormstore: snapshots: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *snapshotRepository) DeleteByJob(ctx context.Context, jobID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&snapshotRow{}).Error; err != nil {
		return fmt.Errorf("gormstore: snapshots: delete by job: %w", err)
	}
	return nil
}
