package exportimport

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rsync-studio/syncengine/internal/domain"
)

func sampleJob(name string) domain.Job {
	return domain.Job{
		ID:          uuid.Must(uuid.NewV7()),
		Name:        name,
		Description: "test job",
		Source:      domain.NewLocal("/src"),
		Destination: domain.NewLocal("/dst"),
		Mode:        domain.NewMirrorMode(),
		Options:     domain.DefaultTransferOptions(),
		Enabled:     true,
		CreatedAt:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func sequentialIDs(ids...uuid.UUID) func() uuid.UUID {
	i := 0
	return func() uuid.UUID {
		id := ids[i]
		i++
		return id
	}
}

func TestExport_ProducesValidJSON(t *testing.T) {
	jobs := []domain.Job{sampleJob("Job A"), sampleJob("Job B")}
	out, err := Export(jobs, time.Now())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	var doc document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("export output is not valid JSON: %v", err)
	}
	if doc.Version != ExportVersion {
		t.Fatalf("version = %d, want %d", doc.Version, ExportVersion)
	}
	if len(doc.Jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(doc.Jobs))
	}
	if doc.Jobs[0].Name != "Job A" || doc.Jobs[1].Name != "Job B" {
		t.Fatalf("job names = %q, %q", doc.Jobs[0].Name, doc.Jobs[1].Name)
	}
}

func TestImport_RegeneratesUUIDs(t *testing.T) {
	original := sampleJob("Test")
	originalID := original.ID
	out, err := Export([]domain.Job{original}, time.Now())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	newID := uuid.Must(uuid.NewV7())
	imported, err := Import(out, time.Now(), sequentialIDs(newID))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("imported = %d jobs, want 1", len(imported))
	}
	if imported[0].ID == originalID {
		t.Fatal("expected import to regenerate the id, not preserve it")
	}
	if imported[0].ID != newID {
		t.Fatalf("imported id = %v, want %v", imported[0].ID, newID)
	}
}

func TestImport_ResetsTimestamps(t *testing.T) {
	job := sampleJob("Test")
	out, err := Export([]domain.Job{job}, time.Now())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	now := time.Now()
	imported, err := Import(out, now, func() uuid.UUID { return uuid.Must(uuid.NewV7()) })
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !imported[0].CreatedAt.Equal(now) || !imported[0].UpdatedAt.Equal(now) {
		t.Fatalf("timestamps not reset to import time: created=%v updated=%v want=%v",
			imported[0].CreatedAt, imported[0].UpdatedAt, now)
	}
}

func TestImport_PreservesJobData(t *testing.T) {
	job := sampleJob("My Backup")
	job.Options.Core.Compress = true
	job.Options.FileHandling.Delete = true
	job.Options.Advanced.ExcludePatterns = []string{"*.log"}

	out, err := Export([]domain.Job{job}, time.Now())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	imported, err := Import(out, time.Now(), func() uuid.UUID { return uuid.Must(uuid.NewV7()) })
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	got := imported[0]
	if got.Name != "My Backup" {
		t.Errorf("name = %q, want %q", got.Name, "My Backup")
	}
	if !got.Options.Core.Compress {
		t.Error("expected compress option to survive round trip")
	}
	if !got.Options.FileHandling.Delete {
		t.Error("expected delete option to survive round trip")
	}
	if len(got.Options.Advanced.ExcludePatterns) != 1 || got.Options.Advanced.ExcludePatterns[0] != "*.log" {
		t.Errorf("exclude patterns = %v, want [*.log]", got.Options.Advanced.ExcludePatterns)
	}
}

func TestImport_RejectsInvalidJSON(t *testing.T) {
	_, err := Import("not json at all", time.Now(), func() uuid.UUID { return uuid.Nil })
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "invalid export file") {
		t.Fatalf("error = %q, want it to mention an invalid export file", err.Error())
	}
}

func TestImport_RejectsFutureVersion(t *testing.T) {
	doc := document{Version: 999, ExportedAt: time.Now(), Jobs: []jobDoc{toJobDoc(sampleJob("Test"))}}
	b, _ := json.Marshal(doc)

	_, err := Import(string(b), time.Now(), func() uuid.UUID { return uuid.Nil })
	if err == nil {
		t.Fatal("expected error for a future export version")
	}
	if !strings.Contains(err.Error(), "unsupported export version") {
		t.Fatalf("error = %q, want it to mention unsupported version", err.Error())
	}
}

func TestImport_RejectsEmptyJobs(t *testing.T) {
	doc := document{Version: 1, ExportedAt: time.Now(), Jobs: nil}
	b, _ := json.Marshal(doc)

	_, err := Import(string(b), time.Now(), func() uuid.UUID { return uuid.Nil })
	if err == nil {
		t.Fatal("expected error for an export with no jobs")
	}
	if !strings.Contains(err.Error(), "no jobs") {
		t.Fatalf("error = %q, want it to mention no jobs", err.Error())
	}
}

func TestRoundtrip_WithSSHConfig(t *testing.T) {
	job := sampleJob("SSH Job")
	job.Destination = domain.NewRemoteShell("admin", "server.local", 2222, "/backup", "/home/user/.ssh/id_rsa")
	job.SSH = &domain.SSHConfig{
		Port:                  2222,
		Identity:              "/home/user/.ssh/id_rsa",
		StrictHostKeyChecking: false,
	}

	out, err := Export([]domain.Job{job}, time.Now())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	imported, err := Import(out, time.Now(), func() uuid.UUID { return uuid.Must(uuid.NewV7()) })
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	got := imported[0]
	if got.Destination.String() != job.Destination.String() {
		t.Errorf("destination = %q, want %q", got.Destination.String(), job.Destination.String())
	}
	if got.SSH == nil || *got.SSH != *job.SSH {
		t.Errorf("ssh config = %+v, want %+v", got.SSH, job.SSH)
	}
}

func TestRoundtrip_WithSchedule(t *testing.T) {
	job := sampleJob("Scheduled Job")
	sched := domain.NewCronSchedule("0 9 * * *", true)
	job.Sched = &sched

	out, err := Export([]domain.Job{job}, time.Now())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	imported, err := Import(out, time.Now(), func() uuid.UUID { return uuid.Must(uuid.NewV7()) })
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	got := imported[0].Sched
	if got == nil || *got != *job.Sched {
		t.Errorf("schedule = %+v, want %+v", got, job.Sched)
	}
}

func TestImport_MultipleJobsAllGetUniqueIDs(t *testing.T) {
	jobs := []domain.Job{sampleJob("A"), sampleJob("B"), sampleJob("C")}
	out, err := Export(jobs, time.Now())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	ids := []uuid.UUID{uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7())}
	imported, err := Import(out, time.Now(), sequentialIDs(ids...))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(imported) != 3 {
		t.Fatalf("imported = %d jobs, want 3", len(imported))
	}
	seen := map[uuid.UUID]bool{}
	for _, j := range imported {
		if seen[j.ID] {
			t.Fatalf("duplicate id %v among imported jobs", j.ID)
		}
		seen[j.ID] = true
	}
}
