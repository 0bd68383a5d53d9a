package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rsync-studio/syncengine/internal/domain"
	"github.com/rsync-studio/syncengine/internal/registry"
	"github.com/rsync-studio/syncengine/internal/repository"
	"github.com/rsync-studio/syncengine/internal/transfer"
)

// fakeInvocations is a minimal in-memory InvocationRepository.
type fakeInvocations struct {
	byID map[uuid.UUID]domain.Invocation
}

func newFakeInvocations() *fakeInvocations {
	return &fakeInvocations{byID: make(map[uuid.UUID]domain.Invocation)}
}

func (f *fakeInvocations) Create(_ context.Context, inv *domain.Invocation) error {
	f.byID[inv.ID] = *inv
	return nil
}
func (f *fakeInvocations) Get(_ context.Context, id uuid.UUID) (*domain.Invocation, error) {
	v, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}
func (f *fakeInvocations) Update(_ context.Context, inv *domain.Invocation) error {
	f.byID[inv.ID] = *inv
	return nil
}
func (f *fakeInvocations) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}
func (f *fakeInvocations) ListByJob(_ context.Context, jobID uuid.UUID, _ repository.ListOptions) ([]domain.Invocation, error) {
	var out []domain.Invocation
	for _, v := range f.byID {
		if v.JobID == jobID {
			out = append(out, v)
		}
	}
	return out, nil
}
func (f *fakeInvocations) ListAll(_ context.Context, _ repository.ListOptions) ([]domain.Invocation, error) {
	var out []domain.Invocation
	for _, v := range f.byID {
		out = append(out, v)
	}
	return out, nil
}
func (f *fakeInvocations) DeleteByJob(_ context.Context, jobID uuid.UUID) error {
	for id, v := range f.byID {
		if v.JobID == jobID {
			delete(f.byID, id)
		}
	}
	return nil
}
func (f *fakeInvocations) LatestForJob(_ context.Context, jobID uuid.UUID) (*domain.Invocation, error) {
	var latest *domain.Invocation
	for _, v := range f.byID {
		v := v
		if v.JobID != jobID {
			continue
		}
		if latest == nil || v.StartedAt.After(latest.StartedAt) {
			latest = &v
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

// fakeSnapshots is a minimal in-memory SnapshotRepository.
type fakeSnapshots struct {
	byID map[uuid.UUID]domain.SnapshotRecord
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{byID: make(map[uuid.UUID]domain.SnapshotRecord)}
}

func (f *fakeSnapshots) Create(_ context.Context, s *domain.SnapshotRecord) error {
	f.byID[s.ID] = *s
	return nil
}
func (f *fakeSnapshots) GetLatestForJob(_ context.Context, jobID uuid.UUID) (*domain.SnapshotRecord, error) {
	var latest *domain.SnapshotRecord
	for _, v := range f.byID {
		v := v
		if v.JobID != jobID {
			continue
		}
		if latest == nil || v.CreatedAt.After(latest.CreatedAt) {
			latest = &v
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}
func (f *fakeSnapshots) ListByJob(_ context.Context, jobID uuid.UUID) ([]domain.SnapshotRecord, error) {
	var out []domain.SnapshotRecord
	for _, v := range f.byID {
		if v.JobID == jobID {
			out = append(out, v)
		}
	}
	return out, nil
}
func (f *fakeSnapshots) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}
func (f *fakeSnapshots) DeleteByJob(_ context.Context, jobID uuid.UUID) error {
	for id, v := range f.byID {
		if v.JobID == jobID {
			delete(f.byID, id)
		}
	}
	return nil
}

// fakeStatistics is a minimal in-memory StatisticsRepository.
type fakeStatistics struct {
	recorded []domain.RunStatistic
}

func (f *fakeStatistics) Record(_ context.Context, s *domain.RunStatistic) error {
	f.recorded = append(f.recorded, *s)
	return nil
}
func (f *fakeStatistics) ListByJob(_ context.Context, jobID uuid.UUID) ([]domain.RunStatistic, error) {
	var out []domain.RunStatistic
	for _, s := range f.recorded {
		if s.JobID == jobID {
			out = append(out, s)
		}
	}
	return out, nil
}
func (f *fakeStatistics) ListAll(_ context.Context) ([]domain.RunStatistic, error) {
	return f.recorded, nil
}
func (f *fakeStatistics) DeleteByJob(_ context.Context, jobID uuid.UUID) error { return nil }
func (f *fakeStatistics) DeleteAll(_ context.Context) error                   { return nil }

// fakeSink records every callback it receives.
type fakeSink struct {
	logLines []domain.LogLine
	progress []domain.ProgressUpdate
	itemized []domain.ItemizedChangeEvent
	statuses []domain.JobStatusEvent
}

func (s *fakeSink) OnLogLine(l domain.LogLine)         { s.logLines = append(s.logLines, l) }
func (s *fakeSink) OnProgress(p domain.ProgressUpdate) { s.progress = append(s.progress, p) }
func (s *fakeSink) OnItemizedChange(e domain.ItemizedChangeEvent) {
	s.itemized = append(s.itemized, e)
}
func (s *fakeSink) OnStatusChange(e domain.JobStatusEvent) { s.statuses = append(s.statuses, e) }

func testJob(mode domain.BackupMode) domain.Job {
	return domain.Job{
		ID:          uuid.Must(uuid.NewV7()),
		Name:        "test-job",
		Source:      domain.NewLocal("/src"),
		Destination: domain.NewLocal("/dst"),
		Mode:        mode,
		Options:     domain.DefaultTransferOptions(),
		Enabled:     true,
	}
}

func newTestEngine(t *testing.T, invs *fakeInvocations, snaps *fakeSnapshots, stats *fakeStatistics) *Engine {
	t.Helper()
	return New(Config{
		Supervisor:    transfer.NewSupervisor("rsync"),
		Registry:      registry.New(),
		Invocations:   invs,
		Snapshots:     snaps,
		Statistics:    stats,
		Settings:      domain.MapSettings{},
		DefaultLogDir: t.TempDir(),
	})
}

func TestConsume_SuccessRecordsStatsAndStatus(t *testing.T) {
	invs := newFakeInvocations()
	snaps := newFakeSnapshots()
	stats := &fakeStatistics{}
	e := newTestEngine(t, invs, snaps, stats)

	job := testJob(domain.NewMirrorMode())
	inv := domain.NewInvocation(job.ID, domain.TriggerManual, time.Now().UTC(), "rsync -a /src /dst", nil, nil)
	invs.byID[inv.ID] = inv

	events := make(chan domain.ExecutionEvent, 8)
	events <- domain.ExecutionEvent{Kind: domain.EventItemizedChange, ItemizedChange: &domain.ItemizedChange{
		Transfer:    domain.TransferUpdated,
		File:        domain.FileRegular,
		Differences: []domain.DifferenceKind{domain.DiffNewlyCreated},
		Path:        "file1",
	}}
	events <- domain.ExecutionEvent{Kind: domain.EventStdoutLine, Line: "sent 1,024 bytes  received 100 bytes  500.00 bytes/sec"}
	events <- domain.ExecutionEvent{Kind: domain.EventStdoutLine, Line: "speedup is 2.50"}
	zero := 0
	events <- domain.ExecutionEvent{Kind: domain.EventFinished, ExitCode: &zero}
	close(events)

	sink := &fakeSink{}
	logPath := filepath.Join(t.TempDir(), inv.ID.String()+".log")

	e.wg.Add(1)
	e.consume(context.Background(), job, inv, snapshotContext{}, false, events, logPath, sink)

	got := invs.byID[inv.ID]
	if got.Status != domain.StatusSucceeded {
		t.Fatalf("status = %v, want Succeeded", got.Status)
	}
	if got.Stats.BytesTransferred != 1024 {
		t.Fatalf("bytes transferred = %d, want 1024 (from summary line, not progress)", got.Stats.BytesTransferred)
	}
	if len(stats.recorded) != 1 {
		t.Fatalf("expected one recorded statistic, got %d", len(stats.recorded))
	}
	if stats.recorded[0].Speedup == nil || *stats.recorded[0].Speedup != 2.5 {
		t.Fatalf("speedup = %v, want 2.5", stats.recorded[0].Speedup)
	}
	if len(sink.statuses) != 1 || sink.statuses[0].Status != domain.StatusSucceeded {
		t.Fatalf("sink statuses = %+v, want one Succeeded entry", sink.statuses)
	}
	if len(sink.itemized) != 1 || sink.itemized[0].Change.Path != "file1" {
		t.Fatalf("sink itemized = %+v, want the file1 change forwarded", sink.itemized)
	}
	if sink.itemized[0].InvocationID != inv.ID {
		t.Fatalf("itemized invocation id = %s, want %s", sink.itemized[0].InvocationID, inv.ID)
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("expected log file to be written: %v", err)
	}
}

func TestConsume_KilledProcessIsCancelled(t *testing.T) {
	invs := newFakeInvocations()
	snaps := newFakeSnapshots()
	stats := &fakeStatistics{}
	e := newTestEngine(t, invs, snaps, stats)

	job := testJob(domain.NewMirrorMode())
	inv := domain.NewInvocation(job.ID, domain.TriggerManual, time.Now().UTC(), "rsync -a /src /dst", nil, nil)
	invs.byID[inv.ID] = inv

	events := make(chan domain.ExecutionEvent, 1)
	events <- domain.ExecutionEvent{Kind: domain.EventFinished, ExitCode: nil}
	close(events)

	sink := &fakeSink{}
	logPath := filepath.Join(t.TempDir(), inv.ID.String()+".log")

	e.wg.Add(1)
	e.consume(context.Background(), job, inv, snapshotContext{}, false, events, logPath, sink)

	if invs.byID[inv.ID].Status != domain.StatusCancelled {
		t.Fatalf("status = %v, want Cancelled", invs.byID[inv.ID].Status)
	}
	if len(stats.recorded) != 0 {
		t.Fatalf("cancelled runs must not record statistics, got %d", len(stats.recorded))
	}
}

func TestConsume_NonZeroExitIsFailed(t *testing.T) {
	invs := newFakeInvocations()
	snaps := newFakeSnapshots()
	stats := &fakeStatistics{}
	e := newTestEngine(t, invs, snaps, stats)

	job := testJob(domain.NewMirrorMode())
	inv := domain.NewInvocation(job.ID, domain.TriggerManual, time.Now().UTC(), "rsync -a /src /dst", nil, nil)
	invs.byID[inv.ID] = inv

	events := make(chan domain.ExecutionEvent, 1)
	code := 23
	events <- domain.ExecutionEvent{Kind: domain.EventFinished, ExitCode: &code}
	close(events)

	sink := &fakeSink{}
	logPath := filepath.Join(t.TempDir(), inv.ID.String()+".log")

	e.wg.Add(1)
	e.consume(context.Background(), job, inv, snapshotContext{}, false, events, logPath, sink)

	got := invs.byID[inv.ID]
	if got.Status != domain.StatusFailed {
		t.Fatalf("status = %v, want Failed", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatal("expected a non-empty error message on failure")
	}
}

func TestConsume_SnapshotModeRecordsSnapshotAndPrunes(t *testing.T) {
	invs := newFakeInvocations()
	snaps := newFakeSnapshots()
	stats := &fakeStatistics{}
	e := newTestEngine(t, invs, snaps, stats)

	job := testJob(domain.NewSnapshotMode(domain.RetentionPolicy{KeepDaily: 1}))

	// Seed two old snapshots a day apart, on disk, so retention has
	// something to prune once the new one lands.
	oldDir1 := filepath.Join(t.TempDir(), "2024-01-01_000000")
	oldDir2 := filepath.Join(t.TempDir(), "2024-01-02_000000")
	_ = os.MkdirAll(oldDir1, 0o755)
	_ = os.MkdirAll(oldDir2, 0o755)
	oldID1 := uuid.Must(uuid.NewV7())
	oldID2 := uuid.Must(uuid.NewV7())
	snaps.byID[oldID1] = domain.SnapshotRecord{
		ID: oldID1, JobID: job.ID, SnapshotPath: oldDir1,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	snaps.byID[oldID2] = domain.SnapshotRecord{
		ID: oldID2, JobID: job.ID, SnapshotPath: oldDir2,
		CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	inv := domain.NewInvocation(job.ID, domain.TriggerManual, time.Now().UTC(), "rsync -a /src /dst", nil, nil)
	invs.byID[inv.ID] = inv

	events := make(chan domain.ExecutionEvent, 1)
	zero := 0
	events <- domain.ExecutionEvent{Kind: domain.EventFinished, ExitCode: &zero}
	close(events)

	sink := &fakeSink{}
	logPath := filepath.Join(t.TempDir(), inv.ID.String()+".log")
	snapCtx := snapshotContext{snapshotPath: filepath.Join(t.TempDir(), "2024-01-03_000000")}

	e.wg.Add(1)
	e.consume(context.Background(), job, inv, snapCtx, true, events, logPath, sink)

	all, _ := snaps.ListByJob(context.Background(), job.ID)
	if len(all) != 1 {
		t.Fatalf("expected exactly one surviving snapshot after retention, got %d", len(all))
	}
	if all[0].SnapshotPath != snapCtx.snapshotPath {
		t.Fatalf("surviving snapshot = %q, want the newly recorded one %q", all[0].SnapshotPath, snapCtx.snapshotPath)
	}
	if _, err := os.Stat(oldDir1); !os.IsNotExist(err) {
		t.Fatalf("expected pruned snapshot directory %q to be removed from disk", oldDir1)
	}
}

func TestExecute_RejectsAlreadyRunning(t *testing.T) {
	invs := newFakeInvocations()
	snaps := newFakeSnapshots()
	stats := &fakeStatistics{}
	e := newTestEngine(t, invs, snaps, stats)

	job := testJob(domain.NewMirrorMode())
	// Occupy the registry as if a previous Execute had already started this job.
	if !e.registry.TryInsert(job.ID, nil) {
		t.Fatal("expected to seed the registry")
	}

	_, err := e.Execute(context.Background(), job, domain.TriggerManual, &fakeSink{})
	if err != ErrAlreadyRunning {
		t.Fatalf("err = %v, want ErrAlreadyRunning", err)
	}
}

func TestResolveSnapshotContext_UsesLatestSnapshotAsLinkDest(t *testing.T) {
	invs := newFakeInvocations()
	snaps := newFakeSnapshots()
	stats := &fakeStatistics{}
	e := newTestEngine(t, invs, snaps, stats)

	job := testJob(domain.NewSnapshotMode(domain.RetentionPolicy{KeepDaily: 7}))
	prior := domain.SnapshotRecord{
		ID: uuid.Must(uuid.NewV7()), JobID: job.ID,
		SnapshotPath: "/dst/2024-01-01_000000",
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	snaps.byID[prior.ID] = prior

	now := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	snapCtx, effectiveDest := e.resolveSnapshotContext(context.Background(), job, now)

	if snapCtx.linkDest != prior.SnapshotPath {
		t.Fatalf("linkDest = %q, want %q", snapCtx.linkDest, prior.SnapshotPath)
	}
	wantPath := "/dst/2024-01-02_120000/"
	if effectiveDest.Path != wantPath {
		t.Fatalf("effective destination path = %q, want %q", effectiveDest.Path, wantPath)
	}
	if snapCtx.snapshotPath != "/dst/2024-01-02_120000" {
		t.Fatalf("snapshotPath = %q, want %q", snapCtx.snapshotPath, "/dst/2024-01-02_120000")
	}
}

func TestConsume_DryRunSkipsSnapshotAndStatistic(t *testing.T) {
	invs := newFakeInvocations()
	snaps := newFakeSnapshots()
	stats := &fakeStatistics{}
	e := newTestEngine(t, invs, snaps, stats)

	job := testJob(domain.NewSnapshotMode(domain.RetentionPolicy{KeepDaily: 7}))
	job.Options.Core.DryRun = true
	inv := domain.NewInvocation(job.ID, domain.TriggerManual, time.Now().UTC(), "rsync -an /src /dst", nil, nil)
	invs.byID[inv.ID] = inv

	events := make(chan domain.ExecutionEvent, 1)
	zero := 0
	events <- domain.ExecutionEvent{Kind: domain.EventFinished, ExitCode: &zero}
	close(events)

	sink := &fakeSink{}
	logPath := filepath.Join(t.TempDir(), inv.ID.String()+".log")
	snapCtx := snapshotContext{snapshotPath: filepath.Join(t.TempDir(), "2024-01-03_000000")}

	e.wg.Add(1)
	e.consume(context.Background(), job, inv, snapCtx, true, events, logPath, sink)

	if invs.byID[inv.ID].Status != domain.StatusSucceeded {
		t.Fatalf("status = %v, want Succeeded even for a dry run", invs.byID[inv.ID].Status)
	}
	if len(stats.recorded) != 0 {
		t.Fatalf("dry run must not record a statistic, got %d", len(stats.recorded))
	}
	all, _ := snaps.ListByJob(context.Background(), job.ID)
	if len(all) != 0 {
		t.Fatalf("dry run must not record a snapshot, got %d", len(all))
	}
}
