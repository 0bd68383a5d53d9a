// Package engine implements the Execution Engine: it composes the Command
// Builder, the Process Supervisor, and the output parsers into a full job
// run, managing the invocation lifecycle, writing the log file, and
// persisting results through the repository ports.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rsync-studio/syncengine/internal/command"
	"github.com/rsync-studio/syncengine/internal/domain"
	"github.com/rsync-studio/syncengine/internal/metrics"
	"github.com/rsync-studio/syncengine/internal/parser"
	"github.com/rsync-studio/syncengine/internal/registry"
	"github.com/rsync-studio/syncengine/internal/repository"
	"github.com/rsync-studio/syncengine/internal/retention"
	"github.com/rsync-studio/syncengine/internal/transfer"
)

// ErrAlreadyRunning is returned by Execute when the job id is already
// present in the running-jobs registry.
var ErrAlreadyRunning = errors.New("engine: job already running")

// EventSink is the port through which the engine reports lines, progress,
// and lifecycle transitions. Implementations must be safe for concurrent
// use — the engine delivers every invocation's events from its own
// consumer goroutine, and multiple invocations run concurrently.
type EventSink interface {
	OnLogLine(domain.LogLine)
	OnProgress(domain.ProgressUpdate)
	OnItemizedChange(domain.ItemizedChangeEvent)
	OnStatusChange(domain.JobStatusEvent)
}

// Engine composes the supervisor, command builder, and parsers into full
// job runs against the repository ports.
type Engine struct {
	supervisor *transfer.Supervisor
	registry   *registry.Registry

	invocations   repository.InvocationRepository
	snapshots     repository.SnapshotRepository
	statistics    repository.StatisticsRepository
	settings      domain.SettingsReader
	defaultLogDir string

	logger *zap.Logger

	wg sync.WaitGroup
}

// Config groups Engine's constructor arguments.
type Config struct {
	Supervisor    *transfer.Supervisor
	Registry      *registry.Registry
	Invocations   repository.InvocationRepository
	Snapshots     repository.SnapshotRepository
	Statistics    repository.StatisticsRepository
	Settings      domain.SettingsReader
	DefaultLogDir string
	Logger        *zap.Logger
}

// New constructs an Engine. A nil Logger is replaced with zap.NewNop().
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		supervisor:    cfg.Supervisor,
		registry:      cfg.Registry,
		invocations:   cfg.Invocations,
		snapshots:     cfg.Snapshots,
		statistics:    cfg.Statistics,
		settings:      cfg.Settings,
		defaultLogDir: cfg.DefaultLogDir,
		logger:        logger.Named("engine"),
	}
}

// snapshotContext holds the resolved snapshot-mode overrides for one run,
// or the zero value for non-snapshot modes.
type snapshotContext struct {
	snapshotPath string
	linkDest     string
}

// resolveSnapshotContext computes the effective destination and link-dest
// for Snapshot-mode jobs. Only called when job.Mode.IsSnapshot().
func (e *Engine) resolveSnapshotContext(ctx context.Context, job domain.Job, now time.Time) (snapshotContext, domain.Location) {
	base := strings.TrimRight(job.Destination.Path, "/")
	dirName := domain.SnapshotDirName(now)
	snapPath := base + "/" + dirName

	effectiveDest := job.Destination
	effectiveDest.Path = snapPath + "/"

	var linkDest string
	if latest, err := e.snapshots.GetLatestForJob(ctx, job.ID); err == nil && latest != nil {
		linkDest = latest.SnapshotPath
	}

	return snapshotContext{snapshotPath: snapPath, linkDest: linkDest}, effectiveDest
}

// Execute starts a new invocation of job under trigger, streaming events to
// sink, and returns the new invocation's id.
func (e *Engine) Execute(ctx context.Context, job domain.Job, trigger domain.InvocationTrigger, sink EventSink) (uuid.UUID, error) {
	if e.registry.IsRunning(job.ID) {
		return uuid.Nil, ErrAlreadyRunning
	}

	now := time.Now().UTC()
	isSnapshotMode := job.Mode.IsSnapshot()

	var snapCtx snapshotContext
	effectiveDest := job.Destination
	if isSnapshotMode {
		snapCtx, effectiveDest = e.resolveSnapshotContext(ctx, job, now)
	}

	autoTrailingSlash := true
	if e.settings != nil {
		autoTrailingSlash = domain.BoolSetting(e.settings, domain.KeyAutoTrailingSlash)
	}

	args := command.Build(job.Source, effectiveDest, job.Options, job.SSH, snapCtx.linkDest, autoTrailingSlash)
	commandStr := command.Join("rsync", args)

	logDir := e.defaultLogDir
	if e.settings != nil {
		if v, ok := e.settings.Get(domain.KeyLogDirectory); ok && v != "" {
			logDir = v
		}
	}

	invocationID := uuid.Must(uuid.NewV7())
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		e.logger.Warn("failed to create log directory", zap.String("dir", logDir), zap.Error(err))
	}
	logFilePath := filepath.Join(logDir, invocationID.String()+".log")

	var snapshotPathForRecord *string
	if isSnapshotMode {
		p := snapCtx.snapshotPath
		snapshotPathForRecord = &p
	}
	logFilePathCopy := logFilePath

	inv := domain.NewInvocation(job.ID, trigger, now, commandStr, snapshotPathForRecord, &logFilePathCopy)
	inv.ID = invocationID
	if err := e.invocations.Create(ctx, &inv); err != nil {
		return uuid.Nil, fmt.Errorf("engine: create invocation: %w", err)
	}

	sink.OnStatusChange(domain.JobStatusEvent{
		JobID:        job.ID,
		InvocationID: invocationID,
		Status:       domain.StatusRunning,
	})

	handle, events, err := e.supervisor.Start(ctx, args)
	if err != nil {
		inv.Status = domain.StatusFailed
		inv.ErrorMessage = err.Error()
		finished := time.Now().UTC()
		inv.FinishedAt = &finished
		_ = e.invocations.Update(ctx, &inv)
		sink.OnStatusChange(domain.JobStatusEvent{
			JobID:        job.ID,
			InvocationID: invocationID,
			Status:       domain.StatusFailed,
			ErrorMessage: err.Error(),
		})
		return uuid.Nil, fmt.Errorf("engine: start transfer: %w", err)
	}

	if !e.registry.TryInsert(job.ID, handle) {
		// Lost the race against a concurrent Execute for this job. Kill the
		// process we just started, drain its event stream so the reader
		// goroutines can exit, drop the never-run invocation row, and
		// surface the conflict.
		_ = handle.Cancel()
		go func() {
			for range events {
			}
		}()
		if err := e.invocations.Delete(ctx, inv.ID); err != nil {
			e.logger.Warn("failed to delete invocation after lost start race", zap.String("invocation_id", inv.ID.String()), zap.Error(err))
		}
		return uuid.Nil, ErrAlreadyRunning
	}

	metrics.UpdateActiveInvocations(e.registry.Len())

	e.wg.Add(1)
	go e.consume(ctx, job, inv, snapCtx, isSnapshotMode, events, logFilePath, sink)

	return invocationID, nil
}

// Cancel kills the running subprocess for jobID, if any. It returns false
// when the job was not running.
func (e *Engine) Cancel(jobID uuid.UUID) bool {
	return e.registry.Cancel(jobID)
}

// Wait blocks until every consumer goroutine spawned by Execute has
// finished. Intended for graceful shutdown.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// consume drains one invocation's event stream, writes its log file,
// updates last-known progress, and on stream closure finalizes the
// invocation row, records statistics/snapshot/retention, and reports the
// terminal status.
func (e *Engine) consume(
	ctx context.Context,
	job domain.Job,
	inv domain.Invocation,
	snapCtx snapshotContext,
	isSnapshotMode bool,
	events <-chan domain.ExecutionEvent,
	logFilePath string,
	sink EventSink,
) {
	defer e.wg.Done()

	var (
		lastBytes        int64
		lastFiles        int64
		lastTotal        int64
		lastSpeedup      *float64
		summarySentBytes *int64
		exitCode         *int
	)

	logFile, logErr := os.Create(logFilePath)
	if logErr != nil {
		e.logger.Warn("failed to create log file", zap.String("path", logFilePath), zap.Error(logErr))
	}
	var writer *bufio.Writer
	if logFile != nil {
		writer = bufio.NewWriter(logFile)
	}
	writeLine := func(line string) {
		if writer == nil {
			return
		}
		_, _ = writer.WriteString(line)
	}

	isDryRun := job.Options.Core.DryRun

	for ev := range events {
		switch ev.Kind {
		case domain.EventProgress:
			if ev.Progress != nil {
				p := *ev.Progress
				p.InvocationID = inv.ID
				lastBytes = p.Bytes
				lastFiles = p.FilesTransferred
				lastTotal = p.FilesTotal
				sink.OnProgress(p)
			}
		case domain.EventStdoutLine:
			ts := time.Now().UTC().Format("2006-01-02 15:04:05")
			writeLine(fmt.Sprintf("[%s] %s\n", ts, ev.Line))
			if s, ok := parser.ParseSummary(ev.Line); ok {
				sent := s.SentBytes
				summarySentBytes = &sent
			}
			if v, ok := parser.ParseSpeedup(ev.Line); ok {
				lastSpeedup = &v
			}
			sink.OnLogLine(domain.LogLine{InvocationID: inv.ID, Timestamp: time.Now().UTC(), Line: ev.Line, IsStderr: false})
		case domain.EventStderrLine:
			ts := time.Now().UTC().Format("2006-01-02 15:04:05")
			writeLine(fmt.Sprintf("[%s] STDERR: %s\n", ts, ev.Line))
			sink.OnLogLine(domain.LogLine{InvocationID: inv.ID, Timestamp: time.Now().UTC(), Line: ev.Line, IsStderr: true})
		case domain.EventItemizedChange:
			// Forwarded to the sink only; not persisted line-by-line.
			if ev.ItemizedChange != nil {
				sink.OnItemizedChange(domain.ItemizedChangeEvent{InvocationID: inv.ID, Change: *ev.ItemizedChange})
			}
		case domain.EventFinished:
			exitCode = ev.ExitCode
		}
	}

	if writer != nil {
		_ = writer.Flush()
	}
	if logFile != nil {
		_ = logFile.Close()
	}

	e.registry.Remove(job.ID)
	metrics.UpdateActiveInvocations(e.registry.Len())

	var status domain.InvocationStatus
	switch {
	case exitCode == nil:
		status = domain.StatusCancelled
	case *exitCode == 0:
		status = domain.StatusSucceeded
	default:
		status = domain.StatusFailed
	}

	finalBytes := lastBytes
	if summarySentBytes != nil {
		finalBytes = *summarySentBytes
	}

	finished := time.Now().UTC()
	inv.FinishedAt = &finished
	inv.Status = status
	inv.Stats = domain.TransferStats{
		BytesTransferred: finalBytes,
		FilesTransferred: lastFiles,
		TotalFiles:       lastTotal,
	}
	inv.Output.ExitCode = exitCode
	if status == domain.StatusFailed {
		code := -1
		if exitCode != nil {
			code = *exitCode
		}
		inv.ErrorMessage = fmt.Sprintf("rsync exited with code %d", code)
	}

	if err := e.invocations.Update(ctx, &inv); err != nil {
		e.logger.Error("failed to update invocation", zap.String("invocation_id", inv.ID.String()), zap.Error(err))
	}

	metrics.RecordInvocation(job.ID.String(), status.String(), finished.Sub(inv.StartedAt), finalBytes)

	if status == domain.StatusSucceeded && !isDryRun {
		duration := finished.Sub(inv.StartedAt).Seconds()
		stat := domain.RunStatistic{
			ID:               uuid.Must(uuid.NewV7()),
			JobID:            job.ID,
			InvocationID:     inv.ID,
			RecordedAt:       finished,
			FilesTransferred: lastFiles,
			BytesTransferred: finalBytes,
			DurationSecs:     duration,
			Speedup:          lastSpeedup,
		}
		if err := e.statistics.Record(ctx, &stat); err != nil {
			e.logger.Error("failed to record run statistics", zap.Error(err))
		}
	}

	if status == domain.StatusSucceeded && isSnapshotMode && !isDryRun {
		e.recordSnapshotAndApplyRetention(ctx, job, inv, snapCtx, lastBytes, lastFiles)
	}

	jobStatus := status
	sink.OnStatusChange(domain.JobStatusEvent{
		JobID:        job.ID,
		InvocationID: inv.ID,
		Status:       jobStatus,
		ExitCode:     exitCode,
		ErrorMessage: inv.ErrorMessage,
	})
}

// recordSnapshotAndApplyRetention persists the new snapshot row and prunes
// old ones per the job's retention policy, removing pruned directories from
// disk best-effort.
func (e *Engine) recordSnapshotAndApplyRetention(ctx context.Context, job domain.Job, inv domain.Invocation, snapCtx snapshotContext, sizeBytes, fileCount int64) {
	var linkDestPath *string
	if snapCtx.linkDest != "" {
		ld := snapCtx.linkDest
		linkDestPath = &ld
	}

	snap := domain.SnapshotRecord{
		ID:           uuid.Must(uuid.NewV7()),
		JobID:        job.ID,
		InvocationID: inv.ID,
		SnapshotPath: snapCtx.snapshotPath,
		LinkDestPath: linkDestPath,
		CreatedAt:    time.Now().UTC(),
		SizeBytes:    sizeBytes,
		FileCount:    fileCount,
		IsLatest:     true,
	}
	if err := e.snapshots.Create(ctx, &snap); err != nil {
		e.logger.Error("failed to record snapshot", zap.Error(err))
		return
	}

	all, err := e.snapshots.ListByJob(ctx, job.ID)
	if err != nil {
		e.logger.Error("failed to list snapshots for retention", zap.Error(err))
		return
	}

	toDelete := retention.SnapshotsToDelete(all, job.Mode.RetentionPolicy)
	byID := make(map[uuid.UUID]domain.SnapshotRecord, len(all))
	for _, s := range all {
		byID[s.ID] = s
	}

	metrics.RecordSnapshotsPruned(job.ID.String(), len(toDelete))

	for _, id := range toDelete {
		s, ok := byID[id]
		if !ok {
			continue
		}
		if err := e.snapshots.Delete(ctx, id); err != nil {
			e.logger.Error("failed to delete snapshot row", zap.String("snapshot_id", id.String()), zap.Error(err))
			continue
		}
		e.logger.Info("retention: pruned snapshot", zap.String("path", s.SnapshotPath))
		if err := os.RemoveAll(s.SnapshotPath); err != nil {
			e.logger.Error("failed to remove pruned snapshot directory", zap.String("path", s.SnapshotPath), zap.Error(err))
		}
	}
}
