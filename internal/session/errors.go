package session

import (
	"errors"

	"github.com/murmurlabs/murmur-core/internal/capture"
	"github.com/murmurlabs/murmur-core/internal/engine"
	"github.com/murmurlabs/murmur-core/internal/protocol"
)

// ErrAlreadyRunning is returned when a start request races an active session
// of the same kind. Rejected without touching the running session.
var ErrAlreadyRunning = errors.New("session already running")

// CodeFor maps an error onto its taxonomy code for SessionError events.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		return protocol.CodeAlreadyRunning
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return protocol.CodeDeviceUnavailable
	case errors.Is(err, capture.ErrStreamRead):
		return protocol.CodeStreamReadError
	case errors.Is(err, engine.ErrModelNotFound):
		return protocol.CodeModelNotFound
	case errors.Is(err, engine.ErrModelLoad):
		return protocol.CodeModelLoadFailure
	case errors.Is(err, engine.ErrInference):
		return protocol.CodeInferenceFailure
	default:
		return protocol.CodeInternal
	}
}
