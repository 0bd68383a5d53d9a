// Package gormstore is the reference relational implementation of every
// repository port in internal/repository, backed by gorm.io/gorm with a
// pure-Go SQLite driver (modernc.org/sqlite) or PostgreSQL.
//
// Complex domain values (Location, BackupMode, TransferOptions, SSHConfig,
// Schedule) are stored as JSON text columns rather than normalized into
// per-variant tables.
package gormstore

import (
	"time"

	"github.com/google/uuid"
)

// jobRow is the GORM row for a Job definition.
type jobRow struct {
	ID          uuid.UUID `gorm:"type:text;primaryKey"`
	Name        string    `gorm:"not null"`
	Description string

	SourceJSON      string `gorm:"column:source_json;type:text;not null"`
	DestinationJSON string `gorm:"column:destination_json;type:text;not null"`
	ModeJSON        string `gorm:"column:mode_json;type:text;not null"`
	OptionsJSON     string `gorm:"column:options_json;type:text;not null"`
	SSHJSON         string `gorm:"column:ssh_json;type:text"`
	SchedJSON       string `gorm:"column:sched_json;type:text"`

	Enabled bool `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (jobRow) TableName() string { return "jobs" }

// invocationRow is the GORM row for an Invocation.
type invocationRow struct {
	ID    uuid.UUID `gorm:"type:text;primaryKey"`
	JobID uuid.UUID `gorm:"type:text;not null;index"`

	StartedAt  time.Time `gorm:"not null;index"`
	FinishedAt *time.Time

	Status  string `gorm:"not null"`
	Trigger string `gorm:"not null"`

	BytesTransferred int64
	FilesTransferred int64
	TotalFiles       int64

	CommandExecuted string `gorm:"type:text;not null"`
	ExitCode        *int
	SnapshotPath    *string
	LogFilePath     *string
	ErrorMessage    string
}

func (invocationRow) TableName() string { return "invocations" }

// snapshotRow is the GORM row for a Snapshot Record.
type snapshotRow struct {
	ID           uuid.UUID `gorm:"type:text;primaryKey"`
	JobID        uuid.UUID `gorm:"type:text;not null;index"`
	InvocationID uuid.UUID `gorm:"type:text;not null"`

	SnapshotPath string `gorm:"not null"`
	LinkDestPath *string

	CreatedAt time.Time `gorm:"not null;index"`
	SizeBytes int64
	FileCount int64
	IsLatest  bool `gorm:"not null;default:false"`
}

func (snapshotRow) TableName() string { return "snapshots" }

// statisticRow is the GORM row for a Run Statistic.
type statisticRow struct {
	ID           uuid.UUID `gorm:"type:text;primaryKey"`
	JobID        uuid.UUID `gorm:"type:text;not null;index"`
	InvocationID uuid.UUID `gorm:"type:text;not null"`

	RecordedAt       time.Time `gorm:"not null"`
	FilesTransferred int64
	BytesTransferred int64
	DurationSecs     float64
	Speedup          *float64
}

func (statisticRow) TableName() string { return "statistics" }

// settingRow is the GORM row for one Settings key/value pair.
type settingRow struct {
	Key   string `gorm:"type:text;primaryKey"`
	Value string `gorm:"type:text;not null"`
}

func (settingRow) TableName() string { return "settings" }
