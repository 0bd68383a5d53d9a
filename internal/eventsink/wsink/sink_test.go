package wsink

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rsync-studio/syncengine/internal/domain"
)

// newTestClient builds a Client attached to hub with an open write queue
// but no real connection, for exercising routing without a socket.
func newTestClient(hub *Hub, topic string) *Client {
	c := &Client{
		hub:   hub,
		topic: topic,
		queue: make(chan Message, queueSize),
		done:  make(chan struct{}),
	}
	hub.attach(c)
	return c
}

func TestJobTopic_Format(t *testing.T) {
	id := uuid.Must(uuid.NewV7()).String()
	if got := JobTopic(id); got != "job:"+id {
		t.Fatalf("JobTopic(%q) = %q", id, got)
	}
}

func TestSink_OnLogLinePublishesToJobTopic(t *testing.T) {
	hub := NewHub()
	jobID := uuid.Must(uuid.NewV7())
	client := newTestClient(hub, JobTopic(jobID.String()))

	sink := NewSink(hub, jobID.String())
	sink.OnLogLine(domain.LogLine{
		InvocationID: uuid.Must(uuid.NewV7()),
		Timestamp:    time.Now(),
		Line:         "building file list...",
	})

	select {
	case msg := <-client.queue:
		if msg.Type != MsgJobLog {
			t.Fatalf("type = %q, want %q", msg.Type, MsgJobLog)
		}
		if msg.Topic != JobTopic(jobID.String()) {
			t.Fatalf("topic = %q, want job topic", msg.Topic)
		}
	default:
		t.Fatal("expected a message on the client's write queue")
	}
}

func TestSink_OnStatusChangePublishesStatus(t *testing.T) {
	hub := NewHub()
	jobID := uuid.Must(uuid.NewV7())
	client := newTestClient(hub, JobTopic(jobID.String()))

	sink := NewSink(hub, jobID.String())
	sink.OnStatusChange(domain.JobStatusEvent{
		JobID:  jobID,
		Status: domain.StatusSucceeded,
	})

	msg := <-client.queue
	if msg.Type != MsgJobStatus {
		t.Fatalf("type = %q, want %q", msg.Type, MsgJobStatus)
	}
	payload, ok := msg.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload type = %T, want map[string]any", msg.Payload)
	}
	if payload["status"] != "succeeded" {
		t.Fatalf("status = %v, want succeeded", payload["status"])
	}
}

func TestSink_OnItemizedChangePublishesChange(t *testing.T) {
	hub := NewHub()
	jobID := uuid.Must(uuid.NewV7())
	client := newTestClient(hub, JobTopic(jobID.String()))

	sink := NewSink(hub, jobID.String())
	sink.OnItemizedChange(domain.ItemizedChangeEvent{
		InvocationID: uuid.Must(uuid.NewV7()),
		Change: domain.ItemizedChange{
			Transfer:    domain.TransferUpdated,
			File:        domain.FileRegular,
			Differences: []domain.DifferenceKind{domain.DiffSize, domain.DiffTimestamp},
			Path:        "docs/report.txt",
		},
	})

	msg := <-client.queue
	if msg.Type != MsgJobItemized {
		t.Fatalf("type = %q, want %q", msg.Type, MsgJobItemized)
	}
	payload, ok := msg.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload type = %T, want map[string]any", msg.Payload)
	}
	if payload["path"] != "docs/report.txt" {
		t.Fatalf("path = %v, want docs/report.txt", payload["path"])
	}
	diffs, ok := payload["differences"].([]string)
	if !ok || len(diffs) != 2 || diffs[0] != "size" || diffs[1] != "timestamp" {
		t.Fatalf("differences = %v, want [size timestamp]", payload["differences"])
	}
}

func TestHub_PublishToUnsubscribedTopicIsNoop(t *testing.T) {
	hub := NewHub()
	sink := NewSink(hub, uuid.Must(uuid.NewV7()).String())
	// No clients attached — Publish must not panic or block.
	sink.OnProgress(domain.ProgressUpdate{Bytes: 1024})
}

func TestHub_PublishSkipsOtherTopics(t *testing.T) {
	hub := NewHub()
	jobA := uuid.Must(uuid.NewV7()).String()
	jobB := uuid.Must(uuid.NewV7()).String()
	clientA := newTestClient(hub, JobTopic(jobA))
	clientB := newTestClient(hub, JobTopic(jobB))

	NewSink(hub, jobA).OnProgress(domain.ProgressUpdate{Bytes: 42})

	if len(clientA.queue) != 1 {
		t.Fatalf("expected one message for job A's client, got %d", len(clientA.queue))
	}
	if len(clientB.queue) != 0 {
		t.Fatalf("expected no messages for job B's client, got %d", len(clientB.queue))
	}
}

func TestHub_ConnectedCountTracksAttachDetach(t *testing.T) {
	hub := NewHub()
	if hub.ConnectedCount() != 0 {
		t.Fatalf("connected count = %d, want 0", hub.ConnectedCount())
	}
	c := newTestClient(hub, JobTopic(uuid.Must(uuid.NewV7()).String()))
	if hub.ConnectedCount() != 1 {
		t.Fatalf("connected count = %d, want 1", hub.ConnectedCount())
	}
	hub.detach(c)
	if hub.ConnectedCount() != 0 {
		t.Fatalf("connected count after detach = %d, want 0", hub.ConnectedCount())
	}
}

func TestHub_FullQueueDisconnectsClient(t *testing.T) {
	hub := NewHub()
	jobID := uuid.Must(uuid.NewV7()).String()
	client := newTestClient(hub, JobTopic(jobID))

	sink := NewSink(hub, jobID)
	for i := 0; i < queueSize+1; i++ {
		sink.OnProgress(domain.ProgressUpdate{Bytes: int64(i)})
	}

	select {
	case <-client.done:
	default:
		t.Fatal("expected the stalled client to be shut down")
	}
}
