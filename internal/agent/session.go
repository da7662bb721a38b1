package agent

// SessionState tracks one capture from key press to delivered outcome.
type SessionState string

const (
	StateRecording SessionState = "recording"
	StateStopped   SessionState = "stopped"
	StateSubmitted SessionState = "submitted"
	StateCompleted SessionState = "completed"
	StateFailed    SessionState = "failed"
)

// session is one capture attempt. The controller holds at most one whose
// state is StateRecording; after submission the pipeline outcome decides
// between StateCompleted and StateFailed.
type session struct {
	id     uint64
	state  SessionState
	handle CaptureHandle
}
