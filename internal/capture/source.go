package capture

import "errors"

// Kind selects what a stream captures.
type Kind string

const (
	// KindMicrophone captures the default (or configured) input device.
	KindMicrophone Kind = "microphone"
	// KindLoopback captures the system output (monitor/loopback device).
	KindLoopback Kind = "loopback"
)

var (
	// ErrDeviceUnavailable means the requested device could not be opened.
	// Fatal at session start.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrStreamRead marks a failed read from an open stream. Transient; the
	// capture loop logs and keeps reading.
	ErrStreamRead = errors.New("audio stream read failed")
)

// BlockFunc receives interleaved sample blocks from the device. It runs on
// the capture goroutine and must only append to a buffer; it must never
// block on I/O or inference.
type BlockFunc func(samples []float32)

// Stream is an open capture stream. Blocks are delivered to the BlockFunc
// passed at open time until Stop.
type Stream interface {
	// NativeRate is the device sample rate in Hz.
	NativeRate() int
	// NativeChannels is the interleaved channel count of delivered blocks.
	NativeChannels() int
	// Stop ends delivery and releases the device. Idempotent and bounded.
	Stop() error
}

// Opener creates capture streams. The concrete backend is chosen at
// construction time from configuration.
type Opener interface {
	Open(kind Kind, deliver BlockFunc) (Stream, error)
}

// ParseKind maps the wire/config spelling onto a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindMicrophone, KindLoopback:
		return Kind(s), true
	}
	return "", false
}
