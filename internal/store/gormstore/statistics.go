package gormstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rsync-studio/syncengine/internal/domain"
	"github.com/rsync-studio/syncengine/internal/repository"
)

// statisticsRepository is the GORM implementation of
// repository.StatisticsRepository.
type statisticsRepository struct {
	db *gorm.DB
}

// NewStatisticsRepository returns a repository.StatisticsRepository backed
// by db.
func NewStatisticsRepository(db *gorm.DB) repository.StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) Record(ctx context.Context, stat *domain.RunStatistic) error {
	if err := r.db.WithContext(ctx).Create(statisticToRow(stat)).Error; err != nil {
		return fmt.Errorf("gormstore: statistics: record: %w", err)
	}
	return nil
}

func (r *statisticsRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.RunStatistic, error) {
	var rows []statisticRow
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("recorded_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gormstore: statistics: list by job: %w", err)
	}
	return rowsToStatistics(rows), nil
}

func (r *statisticsRepository) ListAll(ctx context.Context) ([]domain.RunStatistic, error) {
	var rows []statisticRow
	if err := r.db.WithContext(ctx).Order("recorded_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gormstore: statistics: list all: %w", err)
	}
	return rowsToStatistics(rows), nil
}

func (r *statisticsRepository) DeleteByJob(ctx context.Context, jobID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&statisticRow{}).Error; err != nil {
		return fmt.Errorf("gormstore: statistics: delete by job: %w", err)
	}
	return nil
}

func (r *statisticsRepository) DeleteAll(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&statisticRow{}).Error; err != nil {
		return fmt.Errorf("gormstore: statistics: delete all: %w", err)
	}
	return nil
}

func rowsToStatistics(rows []statisticRow) []domain.RunStatistic {
	out := make([]domain.RunStatistic, 0, len(rows))
	for i := range rows {
		out = append(out, rowToStatistic(&rows[i]))
	}
	return out
}
