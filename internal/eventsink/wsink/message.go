// Package wsink implements the real-time pub/sub hub that pushes job
// execution events to connected GUI clients over WebSocket, and an
// engine.EventSink adapter that publishes onto it.
//
// Topic naming convention:
//
//	job:<uuid>  — log lines, progress updates, and status transitions for
//	              one job
package wsink

// MessageType identifies the kind of event carried by a Message. The GUI
// uses this field to route the payload to the correct store update.
type MessageType string

const (
	// MsgJobStatus is sent when a job transitions between states
	// (running → succeeded | failed | cancelled).
	MsgJobStatus MessageType = "job.status"

	// MsgJobLog is sent for each streamed log line during an active run.
	MsgJobLog MessageType = "job.log"

	// MsgJobProgress is sent on every rsync progress line the parser
	// recognizes.
	MsgJobProgress MessageType = "job.progress"

	// MsgJobItemized is sent for each per-file itemized change rsync
	// reports during an active run.
	MsgJobItemized MessageType = "job.itemized"
)

// Message is the envelope for every WebSocket frame sent to clients.
type Message struct {
	Type    MessageType `json:"type"`
	Topic   string      `json:"topic"`
	Payload any         `json:"payload"`
}

// JobTopic returns the pub/sub topic for a job id.
func JobTopic(jobID string) string {
	return "job:" + jobID
}
