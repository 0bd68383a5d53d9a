package domain

import (
	"time"

	"github.com/google/uuid"
)

// LogLine is delivered to the Event Sink port for every line read from the
// subprocess, verbatim, in addition to any parsed record extracted from it.
type LogLine struct {
	InvocationID uuid.UUID
	Timestamp    time.Time
	Line         string
	IsStderr     bool
}

// ProgressUpdate is delivered to the Event Sink port whenever the progress
// parser matches a line.
type ProgressUpdate struct {
	InvocationID     uuid.UUID
	Bytes            int64
	Pct              int
	Rate             string
	Elapsed          string
	FilesTransferred int64
	FilesRemaining   int64
	FilesTotal       int64
}

// JobStatusEvent is delivered to the Event Sink port on every lifecycle
// transition (Running, then exactly one terminal status).
type JobStatusEvent struct {
	JobID        uuid.UUID
	InvocationID uuid.UUID
	Status       InvocationStatus
	ExitCode     *int
	ErrorMessage string
}

// DifferenceKind enumerates the attributes an itemized-change flag position
// can report.
type DifferenceKind int

const (
	DiffChecksum DifferenceKind = iota
	DiffSize
	DiffTimestamp
	DiffPermissions
	DiffOwner
	DiffGroup
	DiffACL
	DiffXAttrs
	DiffNewlyCreated
)

func (d DifferenceKind) String() string {
	switch d {
	case DiffChecksum:
		return "checksum"
	case DiffSize:
		return "size"
	case DiffTimestamp:
		return "timestamp"
	case DiffPermissions:
		return "permissions"
	case DiffOwner:
		return "owner"
	case DiffGroup:
		return "group"
	case DiffACL:
		return "acl"
	case DiffXAttrs:
		return "xattrs"
	case DiffNewlyCreated:
		return "newly_created"
	default:
		return "unknown"
	}
}

// TransferType is character 0 of an itemized-change code.
type TransferType rune

const (
	TransferUpdated  TransferType = '>'
	TransferLocal    TransferType = '<'
	TransferLocalChg TransferType = 'c'
	TransferNoChange TransferType = '.'
	TransferMessage  TransferType = '*'
)

// FileType is character 1 of an itemized-change code.
type FileType rune

const (
	FileRegular   FileType = 'f'
	FileDirectory FileType = 'd'
	FileSymlink   FileType = 'L'
	FileDevice    FileType = 'D'
	FileSpecial   FileType = 'S'
)

// ItemizedChange is a per-file status line emitted by the transfer tool
// describing the exact delta applied.
type ItemizedChange struct {
	Transfer    TransferType
	File        FileType
	Differences []DifferenceKind
	Path        string
	Message     string // set instead of Transfer/File/Differences for '*'-prefixed message lines
}

// ItemizedChangeEvent pairs a parsed itemized change with the invocation
// that produced it, as delivered to the Event Sink port.
type ItemizedChangeEvent struct {
	InvocationID uuid.UUID
	Change       ItemizedChange
}

// ExecutionEventKind discriminates the ExecutionEvent union the Process
// Supervisor emits.
type ExecutionEventKind int

const (
	EventStdoutLine ExecutionEventKind = iota
	EventStderrLine
	EventProgress
	EventItemizedChange
	EventFinished
)

// ExecutionEvent is one value in the ordered sequence the Process Supervisor
// delivers on its receive endpoint.
type ExecutionEvent struct {
	Kind           ExecutionEventKind
	Line           string
	Progress       *ProgressUpdate
	ItemizedChange *ItemizedChange
	ExitCode       *int // set only on EventFinished; nil means killed/no exit code
}
