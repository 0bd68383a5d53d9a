// Package preflight runs a job's pre-execution validation checks: rsync
// availability, source/destination reachability, disk space, and (for
// remote jobs) SSH connectivity via a dry-run probe.
package preflight

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rsync-studio/syncengine/internal/command"
	"github.com/rsync-studio/syncengine/internal/domain"
	"github.com/rsync-studio/syncengine/internal/metrics"
)

// CheckType names one of the fixed checks run for every job.
type CheckType int

const (
	CheckRsyncInstalled CheckType = iota
	CheckSourceExists
	CheckDestinationWritable
	CheckDiskSpace
	CheckSSHConnectivity
)

func (t CheckType) String() string {
	switch t {
	case CheckRsyncInstalled:
		return "rsync_installed"
	case CheckSourceExists:
		return "source_exists"
	case CheckDestinationWritable:
		return "destination_writable"
	case CheckDiskSpace:
		return "disk_space"
	case CheckSSHConnectivity:
		return "ssh_connectivity"
	default:
		return "unknown"
	}
}

// Severity distinguishes a hard failure from an informational notice that
// still allows the overall result to pass.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Check is the outcome of one validation check.
type Check struct {
	Type     CheckType
	Passed   bool
	Message  string
	Severity Severity
}

// Result is the full preflight outcome for one job.
type Result struct {
	JobID       string
	Checks      []Check
	OverallPass bool
}

// FileSystem is the minimal filesystem port preflight needs, kept narrow
// so tests can supply an in-memory double.
type FileSystem interface {
	Exists(path string) bool
	IsDir(path string) bool
	IsFile(path string) bool
	AvailableSpace(path string) (int64, error)
	DirSize(path string) (int64, error)
	WalkDir(root string, fn func(path string, isDir bool) error) error
}

// FilesystemTyper is an optional capability a FileSystem implementation may
// also satisfy, reporting the filesystem type backing a path so the disk
// space check can note whether hard-link dedup (--link-dest) is meaningful
// there. Informational only; never gates the check.
type FilesystemTyper interface {
	FilesystemType(path string) (string, error)
}

// TransferClient is the minimal transfer-tool port preflight needs: a
// version probe and a dry-run execution.
type TransferClient interface {
	Version(ctx context.Context) (string, error)
	DryRun(ctx context.Context, args []string) (exitCode int, stderr string, err error)
}

// Run executes every applicable check for job and returns the aggregate
// result. SSH connectivity is only checked when source or destination is
// non-local.
func Run(ctx context.Context, job domain.Job, fs FileSystem, rsync TransferClient) Result {
	var checks []Check

	checks = append(checks, checkRsyncInstalled(ctx, rsync))
	checks = append(checks, checkSourceExists(job.Source, fs))
	checks = append(checks, checkDestinationWritable(job.Destination, fs))
	checks = append(checks, checkDiskSpace(job.Source, job.Destination, fs))

	if !job.Source.IsLocal() || !job.Destination.IsLocal() {
		checks = append(checks, checkSSHConnectivity(ctx, job, rsync))
	}

	overall := true
	for _, c := range checks {
		metrics.RecordPreflightCheck(c.Type.String(), c.Passed)
		if !c.Passed && c.Severity != SeverityWarning {
			overall = false
		}
	}

	return Result{JobID: job.ID.String(), Checks: checks, OverallPass: overall}
}

func checkRsyncInstalled(ctx context.Context, rsync TransferClient) Check {
	version, err := rsync.Version(ctx)
	if err != nil {
		return Check{
			Type:     CheckRsyncInstalled,
			Passed:   false,
			Message:  "rsync is not installed or not found in PATH",
			Severity: SeverityError,
		}
	}
	return Check{
		Type:     CheckRsyncInstalled,
		Passed:   true,
		Message:  fmt.Sprintf("rsync is installed (%s)", strings.TrimSpace(version)),
		Severity: SeverityError,
	}
}

func checkSourceExists(source domain.Location, fs FileSystem) Check {
	if !source.IsLocal() {
		return Check{
			Type:     CheckSourceExists,
			Passed:   true,
			Message:  "Remote source — cannot verify locally",
			Severity: SeverityWarning,
		}
	}
	exists := fs.Exists(source.Path)
	msg := fmt.Sprintf("Source path does not exist: %s", source.Path)
	if exists {
		msg = fmt.Sprintf("Source path exists: %s", source.Path)
	}
	return Check{Type: CheckSourceExists, Passed: exists, Message: msg, Severity: SeverityError}
}

func checkDestinationWritable(dest domain.Location, fs FileSystem) Check {
	if !dest.IsLocal() {
		return Check{
			Type:     CheckDestinationWritable,
			Passed:   true,
			Message:  "Remote destination — cannot verify locally",
			Severity: SeverityWarning,
		}
	}

	if fs.Exists(dest.Path) && fs.IsDir(dest.Path) {
		return Check{
			Type:     CheckDestinationWritable,
			Passed:   true,
			Message:  fmt.Sprintf("Destination directory exists: %s", dest.Path),
			Severity: SeverityError,
		}
	}
	if fs.Exists(dest.Path) {
		return Check{
			Type:     CheckDestinationWritable,
			Passed:   false,
			Message:  fmt.Sprintf("Destination exists but is not a directory: %s", dest.Path),
			Severity: SeverityError,
		}
	}

	parent := filepath.Dir(dest.Path)
	parentOK := fs.Exists(parent) && fs.IsDir(parent)
	msg := fmt.Sprintf("Destination and its parent directory do not exist: %s", dest.Path)
	if parentOK {
		msg = fmt.Sprintf("Destination does not exist but parent directory is valid: %s", dest.Path)
	}
	return Check{Type: CheckDestinationWritable, Passed: parentOK, Message: msg, Severity: SeverityError}
}

func checkDiskSpace(source, dest domain.Location, fs FileSystem) Check {
	if !source.IsLocal() || !dest.IsLocal() {
		return Check{
			Type:     CheckDiskSpace,
			Passed:   true,
			Message:  "Disk space check skipped for remote locations",
			Severity: SeverityWarning,
		}
	}

	srcSize, _ := fs.DirSize(source.Path)
	dstAvail, _ := fs.AvailableSpace(dest.Path)

	if srcSize == 0 {
		return Check{
			Type:     CheckDiskSpace,
			Passed:   true,
			Message:  "Source is empty or size could not be determined",
			Severity: SeverityWarning,
		}
	}

	enough := dstAvail >= srcSize
	severity := SeverityWarning
	verb := "Sufficient"
	if !enough {
		severity = SeverityError
		verb = "Insufficient"
	}
	msg := fmt.Sprintf("%s disk space (%s available, %s needed)", verb, formatBytes(dstAvail), formatBytes(srcSize))
	if typer, ok := fs.(FilesystemTyper); ok {
		if fsType, err := typer.FilesystemType(dest.Path); err == nil && fsType != "unknown" {
			msg = fmt.Sprintf("%s (destination filesystem: %s)", msg, fsType)
		}
	}
	return Check{
		Type:     CheckDiskSpace,
		Passed:   enough,
		Message:  msg,
		Severity: severity,
	}
}

func checkSSHConnectivity(ctx context.Context, job domain.Job, rsync TransferClient) Check {
	testOpts := job.Options
	testOpts.Core.DryRun = true

	args := command.Build(job.Source, job.Destination, testOpts, job.SSH, "", false)

	exitCode, stderr, err := rsync.DryRun(ctx, args)
	if err != nil {
		return Check{
			Type:     CheckSSHConnectivity,
			Passed:   false,
			Message:  fmt.Sprintf("SSH connectivity test failed: %s", err),
			Severity: SeverityError,
		}
	}
	if exitCode == 0 {
		return Check{
			Type:     CheckSSHConnectivity,
			Passed:   true,
			Message:  "SSH connectivity test passed (dry-run succeeded)",
			Severity: SeverityError,
		}
	}

	firstLine := strings.SplitN(stderr, "\n", 2)[0]
	if firstLine == "" {
		firstLine = "unknown error"
	}
	return Check{
		Type:     CheckSSHConnectivity,
		Passed:   false,
		Message:  fmt.Sprintf("SSH connectivity test failed (exit code %d): %s", exitCode, firstLine),
		Severity: SeverityError,
	}
}

// formatBytes renders a byte count in the 1024-based display units used
// for human-facing messages. This is deliberately distinct from the 1000-
// based convention the progress parser uses for rsync's own output.
func formatBytes(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
