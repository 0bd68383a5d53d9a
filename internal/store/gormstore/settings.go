package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rsync-studio/syncengine/internal/repository"
)

// settingsRepository is the GORM implementation of
// repository.SettingsRepository, over the flat key/value settings table.
type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository returns a repository.SettingsRepository backed by
// db.
func NewSettingsRepository(db *gorm.DB) repository.SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (string, error) {
	var row settingRow
	if err := r.db.WithContext(ctx).First(&row, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("gormstore: settings: get: %w", err)
	}
	return row.Value, nil
}

// Set upserts key's value, following gorm's clause.OnConflict idiom for a
// flat key/value table (no separate read-then-write round trip needed).
func (r *settingsRepository) Set(ctx context.Context, key, value string) error {
	row := settingRow{Key: key, Value: value}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("gormstore: settings: set: %w", err)
	}
	return nil
}

func (r *settingsRepository) Delete(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Delete(&settingRow{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("gormstore: settings: delete: %w", err)
	}
	return nil
}

// GetMany returns every key whose name starts with prefix, as a map. An
// empty prefix returns every setting.
func (r *settingsRepository) GetMany(ctx context.Context, prefix string) (map[string]string, error) {
	q := r.db.WithContext(ctx)
	if prefix != "" {
		q = q.Where("key LIKE ?", prefix+"%")
	}
	var rows []settingRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gormstore: settings: get many: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}
