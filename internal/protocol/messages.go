package protocol

import "time"

// Utterance is the incremental-text payload published for each flushed
// utterance of a realtime session.
type Utterance struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionStopped is the terminal event published when a realtime session
// returns to idle.
type SessionStopped struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionError reports a fatal session failure with a taxonomy code.
type SessionError struct {
	SessionID string    `json:"session_id,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// BatchSegment is a timestamped transcript segment returned by batch mode.
// Start and End are seconds from the beginning of the recording.
type BatchSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Event names understood by the sink. The NATS sink publishes them verbatim
// as subjects.
const (
	EventUtterance      = "transcribe.text"
	EventSessionStopped = "transcribe.stopped"
	EventSessionError   = "transcribe.error"
)

// Error taxonomy codes carried by SessionError events.
const (
	CodeDeviceUnavailable = "device_unavailable"
	CodeAlreadyRunning    = "already_running"
	CodeModelNotFound     = "model_not_found"
	CodeModelLoadFailure  = "model_load_failure"
	CodeInferenceFailure  = "inference_failure"
	CodeStreamReadError   = "stream_read_error"
	CodeInternal          = "internal_error"
)
