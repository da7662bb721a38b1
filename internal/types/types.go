// Package types provides shared type definitions for the application.
package types

// Mode selects which instruction text accompanies a recording.
type Mode string

const (
	ModeAssistant  Mode = "assistant"
	ModeTranscribe Mode = "transcribe"
)

// Cycle returns the next mode in the fixed rotation.
func (m Mode) Cycle() Mode {
	if m == ModeAssistant {
		return ModeTranscribe
	}
	return ModeAssistant
}

// Title returns the mode name used in notifications and logs.
func (m Mode) Title() string {
	if m == ModeTranscribe {
		return "Transcribe"
	}
	return "Assistant"
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeAssistant || m == ModeTranscribe
}

// ModelChoice selects which remote model variant processes a request.
type ModelChoice string

const (
	ModelFast    ModelChoice = "fast"
	ModelCapable ModelChoice = "capable"
)

// Cycle returns the next model choice in the fixed rotation.
func (m ModelChoice) Cycle() ModelChoice {
	if m == ModelFast {
		return ModelCapable
	}
	return ModelFast
}

// Title returns the model choice name used in notifications and logs.
func (m ModelChoice) Title() string {
	if m == ModelCapable {
		return "Capable"
	}
	return "Fast"
}

// Valid reports whether m is a known model choice.
func (m ModelChoice) Valid() bool {
	return m == ModelFast || m == ModelCapable
}

// ErrorKind classifies a session failure for notifications and history.
type ErrorKind string

const (
	KindDeviceUnavailable    ErrorKind = "device_unavailable"
	KindEmptyRecording       ErrorKind = "empty_recording"
	KindRemoteAuth           ErrorKind = "remote_auth"
	KindRemoteQuotaExceeded  ErrorKind = "remote_quota_exceeded"
	KindRemoteNotFound       ErrorKind = "remote_not_found"
	KindRemoteContentBlocked ErrorKind = "remote_content_blocked"
	KindRemoteTimeout        ErrorKind = "remote_timeout"
	KindRemoteTransport      ErrorKind = "remote_transport"
)

// Title returns the notification title for this kind of failure.
func (k ErrorKind) Title() string {
	switch k {
	case KindDeviceUnavailable:
		return "Recording error"
	case KindEmptyRecording:
		return "Empty recording"
	case KindRemoteAuth:
		return "Authentication error"
	case KindRemoteQuotaExceeded:
		return "Quota exceeded"
	case KindRemoteNotFound:
		return "Model not found"
	case KindRemoteContentBlocked:
		return "Content blocked"
	case KindRemoteTimeout:
		return "Request timed out"
	default:
		return "Service error"
	}
}

// RemoteError describes a failed remote AI call, classified by kind.
// Message is short and user-facing; Err carries the underlying cause.
type RemoteError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Usage represents token usage statistics from LLM API calls.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}
