// Package exportimport serializes job definitions to a portable JSON
// document and back, regenerating identity and timestamps on import so an
// imported job never collides with an existing one.
package exportimport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rsync-studio/syncengine/internal/domain"
)

// ExportVersion is the current export document schema version. Import
// rejects any document whose version exceeds this.
const ExportVersion = 1

// document is the on-disk export format.
type document struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Jobs       []jobDoc  `json:"jobs"`
}

type jobDoc struct {
	ID          uuid.UUID              `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Source      locationDoc            `json:"source"`
	Destination locationDoc            `json:"destination"`
	Mode        backupModeDoc          `json:"mode"`
	Options     domain.TransferOptions `json:"options"`
	SSH         *sshConfigDoc          `json:"ssh,omitempty"`
	Schedule    *scheduleDoc           `json:"schedule,omitempty"`
	Enabled     bool                   `json:"enabled"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

type locationDoc struct {
	Kind     string `json:"kind"` // "local", "remote_shell", "remote_native"
	Path     string `json:"path,omitempty"`
	User     string `json:"user,omitempty"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Identity string `json:"identity,omitempty"`
	Module   string `json:"module,omitempty"`
}

type backupModeDoc struct {
	Kind            string                 `json:"kind"` // "mirror", "versioned", "snapshot"
	BackupDir       string                 `json:"backup_dir,omitempty"`
	RetentionPolicy domain.RetentionPolicy `json:"retention_policy"`
}

type sshConfigDoc struct {
	Port                  int    `json:"port"`
	Identity              string `json:"identity,omitempty"`
	StrictHostKeyChecking bool   `json:"strict_host_key_checking"`
	CustomSSHCommand      string `json:"custom_ssh_command,omitempty"`
}

type scheduleDoc struct {
	Kind       string `json:"kind"` // "cron", "interval"
	Expression string `json:"expression,omitempty"`
	Minutes    int    `json:"minutes,omitempty"`
	Enabled    bool   `json:"enabled"`
}

func toLocationDoc(l domain.Location) locationDoc {
	switch l.Kind {
	case domain.LocationRemoteShell:
		return locationDoc{Kind: "remote_shell", User: l.User, Host: l.Host, Port: l.Port, Path: l.Path, Identity: l.Identity}
	case domain.LocationRemoteNative:
		return locationDoc{Kind: "remote_native", Host: l.Host, Module: l.Module, Path: l.Path}
	default:
		return locationDoc{Kind: "local", Path: l.Path}
	}
}

func fromLocationDoc(d locationDoc) domain.Location {
	switch d.Kind {
	case "remote_shell":
		return domain.NewRemoteShell(d.User, d.Host, d.Port, d.Path, d.Identity)
	case "remote_native":
		return domain.NewRemoteNative(d.Host, d.Module, d.Path)
	default:
		return domain.NewLocal(d.Path)
	}
}

func toBackupModeDoc(m domain.BackupMode) backupModeDoc {
	switch m.Kind {
	case domain.ModeVersioned:
		return backupModeDoc{Kind: "versioned", BackupDir: m.BackupDir}
	case domain.ModeSnapshot:
		return backupModeDoc{Kind: "snapshot", RetentionPolicy: m.RetentionPolicy}
	default:
		return backupModeDoc{Kind: "mirror"}
	}
}

func fromBackupModeDoc(d backupModeDoc) domain.BackupMode {
	switch d.Kind {
	case "versioned":
		return domain.NewVersionedMode(d.BackupDir)
	case "snapshot":
		return domain.NewSnapshotMode(d.RetentionPolicy)
	default:
		return domain.NewMirrorMode()
	}
}

func toSSHConfigDoc(c *domain.SSHConfig) *sshConfigDoc {
	if c == nil {
		return nil
	}
	return &sshConfigDoc{
		Port:                  c.Port,
		Identity:              c.Identity,
		StrictHostKeyChecking: c.StrictHostKeyChecking,
		CustomSSHCommand:      c.CustomSSHCommand,
	}
}

func fromSSHConfigDoc(d *sshConfigDoc) *domain.SSHConfig {
	if d == nil {
		return nil
	}
	return &domain.SSHConfig{
		Port:                  d.Port,
		Identity:              d.Identity,
		StrictHostKeyChecking: d.StrictHostKeyChecking,
		CustomSSHCommand:      d.CustomSSHCommand,
	}
}

func toScheduleDoc(s *domain.Schedule) *scheduleDoc {
	if s == nil {
		return nil
	}
	if s.Kind == domain.ScheduleInterval {
		return &scheduleDoc{Kind: "interval", Minutes: s.Minutes, Enabled: s.Enabled}
	}
	return &scheduleDoc{Kind: "cron", Expression: s.Expression, Enabled: s.Enabled}
}

func fromScheduleDoc(d *scheduleDoc) *domain.Schedule {
	if d == nil {
		return nil
	}
	var s domain.Schedule
	if d.Kind == "interval" {
		s = domain.NewIntervalSchedule(d.Minutes, d.Enabled)
	} else {
		s = domain.NewCronSchedule(d.Expression, d.Enabled)
	}
	return &s
}

func toJobDoc(j domain.Job) jobDoc {
	return jobDoc{
		ID:          j.ID,
		Name:        j.Name,
		Description: j.Description,
		Source:      toLocationDoc(j.Source),
		Destination: toLocationDoc(j.Destination),
		Mode:        toBackupModeDoc(j.Mode),
		Options:     j.Options,
		SSH:         toSSHConfigDoc(j.SSH),
		Schedule:    toScheduleDoc(j.Sched),
		Enabled:     j.Enabled,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

func fromJobDoc(d jobDoc) domain.Job {
	return domain.Job{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Source:      fromLocationDoc(d.Source),
		Destination: fromLocationDoc(d.Destination),
		Mode:        fromBackupModeDoc(d.Mode),
		Options:     d.Options,
		SSH:         fromSSHConfigDoc(d.SSH),
		Sched:       fromScheduleDoc(d.Schedule),
		Enabled:     d.Enabled,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// Export renders jobs as a pretty-printed export document.
func Export(jobs []domain.Job, exportedAt time.Time) (string, error) {
	docs := make([]jobDoc, len(jobs))
	for i, j := range jobs {
		docs[i] = toJobDoc(j)
	}
	doc := document{Version: ExportVersion, ExportedAt: exportedAt, Jobs: docs}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("exportimport: serialize: %w", err)
	}
	return string(b), nil
}

// Import parses an export document and returns its jobs with freshly
// generated ids and timestamps, so an import never collides with existing
// data. Rejects documents from a newer schema version and documents with
// no jobs.
func Import(rawJSON string, now time.Time, newID func() uuid.UUID) ([]domain.Job, error) {
	var doc document
	if err := json.Unmarshal([]byte(rawJSON), &doc); err != nil {
		return nil, fmt.Errorf("exportimport: invalid export file: %w", err)
	}

	if doc.Version > ExportVersion {
		return nil, fmt.Errorf("exportimport: unsupported export version %d (max supported: %d)", doc.Version, ExportVersion)
	}

	if len(doc.Jobs) == 0 {
		return nil, fmt.Errorf("exportimport: export file contains no jobs")
	}

	jobs := make([]domain.Job, len(doc.Jobs))
	for i, jd := range doc.Jobs {
		job := fromJobDoc(jd)
		job.ID = newID()
		job.CreatedAt = now
		job.UpdatedAt = now
		jobs[i] = job
	}
	return jobs, nil
}
