package wsink

import (
	"github.com/rsync-studio/syncengine/internal/domain"
)

// Sink adapts a Hub into an engine.EventSink for one job: every call
// publishes onto that job's "job:<uuid>" topic. Implements the interface
// structurally so this package never needs to import internal/engine.
type Sink struct {
	hub   *Hub
	topic string
}

// NewSink returns a Sink that publishes job jobID's events onto hub.
func NewSink(hub *Hub, jobID string) *Sink {
	return &Sink{hub: hub, topic: JobTopic(jobID)}
}

func (s *Sink) OnLogLine(line domain.LogLine) {
	s.hub.Publish(s.topic, Message{
		Type:  MsgJobLog,
		Topic: s.topic,
		Payload: map[string]any{
			"invocation_id": line.InvocationID.String(),
			"timestamp":     line.Timestamp,
			"line":          line.Line,
			"is_stderr":     line.IsStderr,
		},
	})
}

func (s *Sink) OnProgress(p domain.ProgressUpdate) {
	s.hub.Publish(s.topic, Message{
		Type:  MsgJobProgress,
		Topic: s.topic,
		Payload: map[string]any{
			"invocation_id":     p.InvocationID.String(),
			"bytes":             p.Bytes,
			"pct":               p.Pct,
			"rate":              p.Rate,
			"elapsed":           p.Elapsed,
			"files_transferred": p.FilesTransferred,
			"files_remaining":   p.FilesRemaining,
			"files_total":       p.FilesTotal,
		},
	})
}

func (s *Sink) OnItemizedChange(ev domain.ItemizedChangeEvent) {
	diffs := make([]string, 0, len(ev.Change.Differences))
	for _, d := range ev.Change.Differences {
		diffs = append(diffs, d.String())
	}
	payload := map[string]any{
		"invocation_id": ev.InvocationID.String(),
		"transfer":      string(ev.Change.Transfer),
		"file_type":     string(ev.Change.File),
		"differences":   diffs,
		"path":          ev.Change.Path,
	}
	if ev.Change.Message != "" {
		payload["message"] = ev.Change.Message
	}
	s.hub.Publish(s.topic, Message{
		Type:    MsgJobItemized,
		Topic:   s.topic,
		Payload: payload,
	})
}

func (s *Sink) OnStatusChange(ev domain.JobStatusEvent) {
	s.hub.Publish(s.topic, Message{
		Type:  MsgJobStatus,
		Topic: s.topic,
		Payload: map[string]any{
			"job_id":        ev.JobID.String(),
			"invocation_id": ev.InvocationID.String(),
			"status":        ev.Status.String(),
			"exit_code":     ev.ExitCode,
			"error_message": ev.ErrorMessage,
		},
	})
}
