package gormstore

import (
	"encoding/json"
	"fmt"

	"github.com/rsync-studio/syncengine/internal/domain"
)

// jobToRow flattens a domain.Job into its GORM row, JSON-encoding the
// tagged-variant sub-structures.
func jobToRow(j *domain.Job) (*jobRow, error) {
	source, err := json.Marshal(j.Source)
	if err != nil {
		return nil, fmt.Errorf("gormstore: marshal source: %w", err)
	}
	dest, err := json.Marshal(j.Destination)
	if err != nil {
		return nil, fmt.Errorf("gormstore: marshal destination: %w", err)
	}
	mode, err := json.Marshal(j.Mode)
	if err != nil {
		return nil, fmt.Errorf("gormstore: marshal mode: %w", err)
	}
	options, err := json.Marshal(j.Options)
	if err != nil {
		return nil, fmt.Errorf("gormstore: marshal options: %w", err)
	}

	row := &jobRow{
		ID:              j.ID,
		Name:            j.Name,
		Description:     j.Description,
		SourceJSON:      string(source),
		DestinationJSON: string(dest),
		ModeJSON:        string(mode),
		OptionsJSON:     string(options),
		Enabled:         j.Enabled,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}

	if j.SSH != nil {
		ssh, err := json.Marshal(j.SSH)
		if err != nil {
			return nil, fmt.Errorf("gormstore: marshal ssh: %w", err)
		}
		row.SSHJSON = string(ssh)
	}
	if j.Sched != nil {
		sched, err := json.Marshal(j.Sched)
		if err != nil {
			return nil, fmt.Errorf("gormstore: marshal schedule: %w", err)
		}
		row.SchedJSON = string(sched)
	}

	return row, nil
}

// rowToJob reconstructs a domain.Job from its GORM row.
func rowToJob(r *jobRow) (*domain.Job, error) {
	j := &domain.Job{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Enabled:     r.Enabled,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	if err := json.Unmarshal([]byte(r.SourceJSON), &j.Source); err != nil {
		return nil, fmt.Errorf("gormstore: unmarshal source: %w", err)
	}
	if err := json.Unmarshal([]byte(r.DestinationJSON), &j.Destination); err != nil {
		return nil, fmt.Errorf("gormstore: unmarshal destination: %w", err)
	}
	if err := json.Unmarshal([]byte(r.ModeJSON), &j.Mode); err != nil {
		return nil, fmt.Errorf("gormstore: unmarshal mode: %w", err)
	}
	if err := json.Unmarshal([]byte(r.OptionsJSON), &j.Options); err != nil {
		return nil, fmt.Errorf("gormstore: unmarshal options: %w", err)
	}

	if r.SSHJSON != "" {
		var ssh domain.SSHConfig
		if err := json.Unmarshal([]byte(r.SSHJSON), &ssh); err != nil {
			return nil, fmt.Errorf("gormstore: unmarshal ssh: %w", err)
		}
		j.SSH = &ssh
	}
	if r.SchedJSON != "" {
		var sched domain.Schedule
		if err := json.Unmarshal([]byte(r.SchedJSON), &sched); err != nil {
			return nil, fmt.Errorf("gormstore: unmarshal schedule: %w", err)
		}
		j.Sched = &sched
	}

	return j, nil
}

func invocationToRow(inv *domain.Invocation) *invocationRow {
	return &invocationRow{
		ID:               inv.ID,
		JobID:            inv.JobID,
		StartedAt:        inv.StartedAt,
		FinishedAt:       inv.FinishedAt,
		Status:           inv.Status.String(),
		Trigger:          inv.Trigger.String(),
		BytesTransferred: inv.Stats.BytesTransferred,
		FilesTransferred: inv.Stats.FilesTransferred,
		TotalFiles:       inv.Stats.TotalFiles,
		CommandExecuted:  inv.Output.CommandExecuted,
		ExitCode:         inv.Output.ExitCode,
		SnapshotPath:     inv.Output.SnapshotPath,
		LogFilePath:      inv.Output.LogFilePath,
		ErrorMessage:     inv.ErrorMessage,
	}
}

func rowToInvocation(r *invocationRow) domain.Invocation {
	return domain.Invocation{
		ID:         r.ID,
		JobID:      r.JobID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Status:     parseStatus(r.Status),
		Trigger:    parseTrigger(r.Trigger),
		Stats: domain.TransferStats{
			BytesTransferred: r.BytesTransferred,
			FilesTransferred: r.FilesTransferred,
			TotalFiles:       r.TotalFiles,
		},
		Output: domain.ExecutionOutput{
			CommandExecuted: r.CommandExecuted,
			ExitCode:        r.ExitCode,
			SnapshotPath:    r.SnapshotPath,
			LogFilePath:     r.LogFilePath,
		},
		ErrorMessage: r.ErrorMessage,
	}
}

func parseStatus(s string) domain.InvocationStatus {
	switch s {
	case domain.StatusSucceeded.String():
		return domain.StatusSucceeded
	case domain.StatusFailed.String():
		return domain.StatusFailed
	case domain.StatusCancelled.String():
		return domain.StatusCancelled
	default:
		return domain.StatusRunning
	}
}

func parseTrigger(s string) domain.InvocationTrigger {
	if s == domain.TriggerScheduled.String() {
		return domain.TriggerScheduled
	}
	return domain.TriggerManual
}

func snapshotToRow(s *domain.SnapshotRecord) *snapshotRow {
	return &snapshotRow{
		ID:           s.ID,
		JobID:        s.JobID,
		InvocationID: s.InvocationID,
		SnapshotPath: s.SnapshotPath,
		LinkDestPath: s.LinkDestPath,
		CreatedAt:    s.CreatedAt,
		SizeBytes:    s.SizeBytes,
		FileCount:    s.FileCount,
		IsLatest:     s.IsLatest,
	}
}

func rowToSnapshot(r *snapshotRow) domain.SnapshotRecord {
	return domain.SnapshotRecord{
		ID:           r.ID,
		JobID:        r.JobID,
		InvocationID: r.InvocationID,
		SnapshotPath: r.SnapshotPath,
		LinkDestPath: r.LinkDestPath,
		CreatedAt:    r.CreatedAt,
		SizeBytes:    r.SizeBytes,
		FileCount:    r.FileCount,
		IsLatest:     r.IsLatest,
	}
}

func statisticToRow(s *domain.RunStatistic) *statisticRow {
	return &statisticRow{
		ID:               s.ID,
		JobID:            s.JobID,
		InvocationID:     s.InvocationID,
		RecordedAt:       s.RecordedAt,
		FilesTransferred: s.FilesTransferred,
		BytesTransferred: s.BytesTransferred,
		DurationSecs:     s.DurationSecs,
		Speedup:          s.Speedup,
	}
}

func rowToStatistic(r *statisticRow) domain.RunStatistic {
	return domain.RunStatistic{
		ID:               r.ID,
		JobID:            r.JobID,
		InvocationID:     r.InvocationID,
		RecordedAt:       r.RecordedAt,
		FilesTransferred: r.FilesTransferred,
		BytesTransferred: r.BytesTransferred,
		DurationSecs:     r.DurationSecs,
		Speedup:          r.Speedup,
	}
}
