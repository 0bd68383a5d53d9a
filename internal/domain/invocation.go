package domain

import (
	"time"

	"github.com/google/uuid"
)

// InvocationStatus is the terminal-or-running state of one execution.
type InvocationStatus int

const (
	StatusRunning InvocationStatus = iota
	StatusSucceeded
	StatusFailed
	StatusCancelled
)

func (s InvocationStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether this status ends the invocation's lifecycle.
func (s InvocationStatus) Terminal() bool { return s != StatusRunning }

// InvocationTrigger records why an invocation was started.
type InvocationTrigger int

const (
	TriggerManual InvocationTrigger = iota
	TriggerScheduled
)

func (t InvocationTrigger) String() string {
	if t == TriggerScheduled {
		return "scheduled"
	}
	return "manual"
}

// TransferStats holds the byte/file counters recorded for an invocation.
type TransferStats struct {
	BytesTransferred int64
	FilesTransferred int64
	TotalFiles       int64
}

// ExecutionOutput holds the process-level result of running the transfer
// tool: the exact joined command string, its exit code, and where its
// artifacts landed.
type ExecutionOutput struct {
	CommandExecuted string
	ExitCode        *int // nil means the process never produced one (killed)
	SnapshotPath    *string
	LogFilePath     *string
}

// Invocation is a record of one execution of one job: identity, job
// reference, started/finished timestamps, status, trigger, transfer stats,
// and execution output. Invocations are created in Running state and
// updated in-place exactly once on termination.
type Invocation struct {
	ID    uuid.UUID
	JobID uuid.UUID

	StartedAt  time.Time
	FinishedAt *time.Time

	Status  InvocationStatus
	Trigger InvocationTrigger

	Stats  TransferStats
	Output ExecutionOutput

	ErrorMessage string
}

// NewInvocation constructs a fresh invocation in the Running state, as
// created at the start of the Execution Engine's lifecycle.
func NewInvocation(jobID uuid.UUID, trigger InvocationTrigger, startedAt time.Time, commandExecuted string, snapshotPath, logFilePath *string) Invocation {
	return Invocation{
		ID:        uuid.Must(uuid.NewV7()),
		JobID:     jobID,
		StartedAt: startedAt,
		Status:    StatusRunning,
		Trigger:   trigger,
		Output: ExecutionOutput{
			CommandExecuted: commandExecuted,
			SnapshotPath:    snapshotPath,
			LogFilePath:     logFilePath,
		},
	}
}
