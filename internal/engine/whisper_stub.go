//go:build !cgo

package engine

import (
	"fmt"

	"github.com/murmurlabs/murmur-core/internal/config"
)

func newWhisperEngine(path string, cfg config.EngineConfig) (Engine, error) {
	return nil, fmt.Errorf("%w: whisper backend requires cgo", ErrModelLoad)
}
