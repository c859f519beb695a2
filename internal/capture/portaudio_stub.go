//go:build !cgo

package capture

import (
	"fmt"
	"log/slog"
)

// PortAudioOpener stub for builds without cgo; opening always fails.
type PortAudioOpener struct{}

func NewPortAudioOpener(inputDevice, loopbackDevice string, blockFrames int, log *slog.Logger) *PortAudioOpener {
	return &PortAudioOpener{}
}

func (o *PortAudioOpener) Open(kind Kind, deliver BlockFunc) (Stream, error) {
	return nil, fmt.Errorf("%w: portaudio backend requires cgo", ErrDeviceUnavailable)
}
