package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// BackupModeKind discriminates the BackupMode tagged variant.
type BackupModeKind int

const (
	ModeMirror BackupModeKind = iota
	ModeVersioned
	ModeSnapshot
)

// RetentionPolicy is the {daily, weekly, monthly} budget controlling
// snapshot survival (see internal/retention).
type RetentionPolicy struct {
	KeepDaily   int
	KeepWeekly  int
	KeepMonthly int
}

// BackupMode is a tagged variant: Mirror, Versioned{BackupDir}, or
// Snapshot{RetentionPolicy}. Only Snapshot participates in snapshot
// recording and retention.
type BackupMode struct {
	Kind            BackupModeKind
	BackupDir       string          // Versioned
	RetentionPolicy RetentionPolicy // Snapshot
}

func NewMirrorMode() BackupMode { return BackupMode{Kind: ModeMirror} }

func NewVersionedMode(backupDir string) BackupMode {
	return BackupMode{Kind: ModeVersioned, BackupDir: backupDir}
}

func NewSnapshotMode(policy RetentionPolicy) BackupMode {
	return BackupMode{Kind: ModeSnapshot, RetentionPolicy: policy}
}

func (m BackupMode) IsSnapshot() bool { return m.Kind == ModeSnapshot }

// CoreTransferOptions covers the archive/compress/partial/dry-run group.
// Archive defaults to true; every other boolean defaults to false.
type CoreTransferOptions struct {
	Archive  bool
	Compress bool
	Partial  bool
	DryRun   bool
}

// DefaultCoreTransferOptions returns the documented defaults (archive=true).
func DefaultCoreTransferOptions() CoreTransferOptions {
	return CoreTransferOptions{Archive: true}
}

// FileHandlingOptions covers delete/size-only/checksum/update/whole-file/
// ignore-existing/one-file-system.
type FileHandlingOptions struct {
	Delete         bool
	SizeOnly       bool
	Checksum       bool
	Update         bool
	WholeFile      bool
	IgnoreExisting bool
	OneFileSystem  bool
}

// MetadataOptions covers hard-links/acls/xattrs/numeric-ids.
type MetadataOptions struct {
	HardLinks  bool
	ACLs       bool
	XAttrs     bool
	NumericIDs bool
}

// OutputOptions covers verbose/progress/human-readable/stats/itemize-changes.
type OutputOptions struct {
	Verbose        bool
	Progress       bool
	HumanReadable  bool
	Stats          bool
	ItemizeChanges bool
}

// AdvancedOptions covers exclude/include patterns, bandwidth limit, and
// trailing custom arguments. Pattern slices preserve input order.
type AdvancedOptions struct {
	ExcludePatterns []string
	IncludePatterns []string
	BandwidthLimit  *int // KB/s; nil means unset
	CustomArgs      []string
}

// TransferOptions groups the five independent sub-records that together
// describe how a transfer is run.
type TransferOptions struct {
	Core         CoreTransferOptions
	FileHandling FileHandlingOptions
	Metadata     MetadataOptions
	Output       OutputOptions
	Advanced     AdvancedOptions
}

// DefaultTransferOptions returns TransferOptions with every field at its
// documented default (all false except Core.Archive).
func DefaultTransferOptions() TransferOptions {
	return TransferOptions{Core: DefaultCoreTransferOptions()}
}

// SSHConfig is the optional transport-shell configuration used when the
// Command Builder needs to emit an -e token for a RemoteShell location.
type SSHConfig struct {
	Port                  int // 0 means "use the default (22)"
	Identity              string
	StrictHostKeyChecking bool
	CustomSSHCommand      string // if set, emitted verbatim as a single -e token
}

// DefaultSSHConfig returns the defaults: port 22, strict host key checking
// enabled.
func DefaultSSHConfig() SSHConfig {
	return SSHConfig{Port: 22, StrictHostKeyChecking: true}
}

// ScheduleKind discriminates the Schedule tagged variant.
type ScheduleKind int

const (
	ScheduleCron ScheduleKind = iota
	ScheduleInterval
)

// Schedule is a tagged variant Cron{Expression} or Interval{Minutes}, plus
// an Enabled flag. The schedule is advisory — the owning Job's own Enabled
// flag gates execution regardless of this flag.
type Schedule struct {
	Kind       ScheduleKind
	Expression string // Cron
	Minutes    int    // Interval
	Enabled    bool
}

func NewCronSchedule(expr string, enabled bool) Schedule {
	return Schedule{Kind: ScheduleCron, Expression: expr, Enabled: enabled}
}

func NewIntervalSchedule(minutes int, enabled bool) Schedule {
	return Schedule{Kind: ScheduleInterval, Minutes: minutes, Enabled: enabled}
}

// Job is a durable job definition: unique identity, human name, optional
// description, transfer config (source/destination/mode), transfer options,
// an optional transport-shell config, an optional schedule, an enabled flag,
// and created/updated timestamps.
//
// Identity is immutable. Timestamps are set by whoever mutates the job: the
// engine never modifies a Job, and the repository stores them as given.
type Job struct {
	ID          uuid.UUID
	Name        string
	Description string

	Source      Location
	Destination Location
	Mode        BackupMode

	Options TransferOptions
	SSH     *SSHConfig
	Sched   *Schedule

	Enabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrimmedName returns Name with leading/trailing whitespace removed. A Job's
// Name must be non-empty after trimming — callers validate with this at the
// CRUD boundary; the domain type itself does not enforce it so that partial
// construction (e.g. during import) stays possible.
func (j Job) TrimmedName() string {
	return strings.TrimSpace(j.Name)
}

// Valid reports whether the job satisfies the data model's name invariant.
func (j Job) Valid() bool {
	return j.TrimmedName() != ""
}
