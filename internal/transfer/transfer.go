// Package transfer wraps the rsync binary: the Process Supervisor that
// spawns it, streams its output concurrently, and turns raw lines into the
// parsed event sequence the Execution Engine consumes.
package transfer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/rsync-studio/syncengine/internal/domain"
	"github.com/rsync-studio/syncengine/internal/parser"
)

// ErrBinaryNotFound is returned when the configured rsync binary cannot be
// located on PATH.
var ErrBinaryNotFound = errors.New("transfer: rsync binary not found")

// ProcessError is raised when a subprocess exits non-zero and the supervisor
// is used synchronously via Run.
type ProcessError struct {
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("transfer: rsync exited %d: %s", e.ExitCode, e.Stderr)
}

// Handle is the shared, mutex-guarded child-process handle the running-jobs
// registry hands out. Both the engine's cancellation path and the consumer
// goroutine's wait path hold this value.
type Handle struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	waited  bool
	waitErr error
}

// Cancel locks, kills, and unlocks without blocking on Wait. A subsequent
// Wait from the draining goroutine then observes the killed process's exit.
func (h *Handle) Cancel() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}

// wait locks, waits, and unlocks, caching the result so a handle can be
// waited on safely even if Cancel raced with process exit.
func (h *Handle) wait() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.waited {
		h.waitErr = h.cmd.Wait()
		h.waited = true
	}
	return h.waitErr
}

// Supervisor spawns rsync subprocesses and streams their output as an
// ordered ExecutionEvent sequence.
type Supervisor struct {
	binary string
}

// NewSupervisor constructs a Supervisor invoking the named binary (looked up
// on PATH at spawn time, same as os/exec's default resolution).
func NewSupervisor(binary string) *Supervisor {
	if binary == "" {
		binary = "rsync"
	}
	return &Supervisor{binary: binary}
}

// Start spawns the subprocess and returns its shared Handle and a receive
// channel of ExecutionEvent values. Once both the stdout and stderr reader
// goroutines have terminated, the supervisor waits on the process itself and
// sends the exit code as the last event (Kind == EventFinished) before the
// channel closes; the caller only drains the channel.
func (s *Supervisor) Start(ctx context.Context, args []string) (*Handle, <-chan domain.ExecutionEvent, error) {
	cmd := exec.CommandContext(ctx, s.binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("transfer: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("transfer: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, nil, ErrBinaryNotFound
		}
		return nil, nil, fmt.Errorf("transfer: spawn: %w", err)
	}

	handle := &Handle{cmd: cmd}
	events := make(chan domain.ExecutionEvent, 64)

	var wg sync.WaitGroup
	wg.Add(2)
	go pumpLines(&wg, stdout, events, false)
	go pumpLines(&wg, stderr, events, true)

	go func() {
		wg.Wait()
		exitCode := finishedExitCode(handle)
		events <- domain.ExecutionEvent{Kind: domain.EventFinished, ExitCode: exitCode}
		close(events)
	}()

	return handle, events, nil
}

// pumpLines reads one stream line-by-line, emitting the parsed Progress
// record (if any), then the parsed ItemizedChange (if any), then the raw
// StdoutLine/StderrLine event, in that order. Ordering across the stdout
// and stderr streams is not coordinated; each runs in its own goroutine.
func pumpLines(wg *sync.WaitGroup, r io.Reader, events chan<- domain.ExecutionEvent, isStderr bool) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if !isStderr {
			if progress, ok := parser.ParseProgress(line); ok {
				events <- domain.ExecutionEvent{Kind: domain.EventProgress, Progress: &progress}
			}
			if itemized, ok := parser.ParseItemize(line); ok {
				events <- domain.ExecutionEvent{Kind: domain.EventItemizedChange, ItemizedChange: &itemized}
			}
		}

		kind := domain.EventStdoutLine
		if isStderr {
			kind = domain.EventStderrLine
		}
		events <- domain.ExecutionEvent{Kind: kind, Line: line}
	}
}

// finishedExitCode waits on the handle and maps the result to an exit code
// pointer, nil meaning the process was killed (no exit code) — the engine
// interprets a nil exit code as Cancelled.
func finishedExitCode(h *Handle) *int {
	err := h.wait()
	if err == nil {
		code := 0
		return &code
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ProcessState == nil {
			return nil
		}
		code := exitErr.ProcessState.ExitCode()
		if code == -1 {
			// Killed by signal: no exit code was ever assigned.
			return nil
		}
		return &code
	}
	return nil
}

// Run executes the subprocess synchronously to completion, collecting all
// output, for callers that don't need streaming (e.g. preflight checks,
// --version probes). A non-zero exit raises ProcessError.
func Run(ctx context.Context, binary string, args []string) (stdout string, stderr string, err error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var outBuf, errBuf []byte
	var outErr, errErr error

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", fmt.Errorf("transfer: stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", "", fmt.Errorf("transfer: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", ErrBinaryNotFound
		}
		return "", "", fmt.Errorf("transfer: spawn: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); outBuf, outErr = io.ReadAll(stdoutPipe) }()
	go func() { defer wg.Done(); errBuf, errErr = io.ReadAll(stderrPipe) }()
	wg.Wait()

	waitErr := cmd.Wait()
	if outErr != nil {
		return "", "", fmt.Errorf("transfer: read stdout: %w", outErr)
	}
	if errErr != nil {
		return "", "", fmt.Errorf("transfer: read stderr: %w", errErr)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return string(outBuf), string(errBuf), &ProcessError{
				ExitCode: exitErr.ExitCode(),
				Stderr:   string(errBuf),
			}
		}
		return "", "", fmt.Errorf("transfer: wait: %w", waitErr)
	}

	return string(outBuf), string(errBuf), nil
}

// Client exposes the synchronous entry points the preflight checks consume:
// a version probe and a dry-run execution.
type Client struct {
	binary string
}

// NewClient constructs a Client invoking the named binary, defaulting to
// "rsync" when empty, same as NewSupervisor.
func NewClient(binary string) *Client {
	if binary == "" {
		binary = "rsync"
	}
	return &Client{binary: binary}
}

// Version probes the binary with --version and returns the first output
// line (e.g. "rsync  version 3.2.7  protocol version 31").
func (c *Client) Version(ctx context.Context) (string, error) {
	stdout, _, err := Run(ctx, c.binary, []string{"--version"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.SplitN(stdout, "\n", 2)[0]), nil
}

// DryRun executes the argument vector to completion and reports the exit
// code and stderr. A non-zero exit is a result, not an error — the
// connectivity check inspects the code and first stderr line itself.
func (c *Client) DryRun(ctx context.Context, args []string) (int, string, error) {
	_, stderr, err := Run(ctx, c.binary, args)
	if err != nil {
		var procErr *ProcessError
		if errors.As(err, &procErr) {
			return procErr.ExitCode, procErr.Stderr, nil
		}
		return 0, stderr, err
	}
	return 0, stderr, nil
}
