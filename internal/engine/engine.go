package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/murmurlabs/murmur-core/internal/config"
)

var (
	// ErrModelNotFound means no model file exists in any search location.
	ErrModelNotFound = errors.New("model not found")
	// ErrModelLoad means the model file exists but could not be loaded.
	ErrModelLoad = errors.New("model load failed")
	// ErrInference marks a failed transcription call. Transient per chunk.
	ErrInference = errors.New("inference failed")
)

// Options configures a single transcription call.
type Options struct {
	Language string
	// UseContext allows the engine to bias decoding with previously seen
	// audio/text. Realtime chunks disable it so independent chunks cannot
	// duplicate each other; batch mode enables it for accuracy.
	UseContext bool
	Threads    int
}

// Segment is one timestamped piece of engine output. Start and End are
// engine-native centisecond offsets from the beginning of the buffer.
type Segment struct {
	Text  string
	Start int64
	End   int64
}

// Engine transcribes mono float32 samples at the pipeline target rate.
// Implementations are safe for sequential use; callers keep at most one
// call in flight per session.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32, opts Options) ([]Segment, error)
	Close() error
}

// New builds the engine selected by config. Whisper mode resolves the model
// through the fixed search precedence unless an explicit path is set.
func New(cfg config.EngineConfig, log *slog.Logger) (Engine, error) {
	switch cfg.Mode {
	case "whisper":
		path := cfg.ModelPath
		if path == "" {
			resolved, err := Resolve(cfg.ModelName)
			if err != nil {
				return nil, err
			}
			path = resolved
		}
		eng, err := newWhisperEngine(path, cfg)
		if err != nil {
			return nil, err
		}
		log.Info("whisper model loaded", slog.String("model", path))
		return eng, nil
	case "exec":
		return newExecEngine(cfg)
	case "mock":
		return &MockEngine{EchoLength: true}, nil
	}
	return nil, fmt.Errorf("unknown engine mode %q", cfg.Mode)
}

// JoinSegments concatenates segment text, dropping empty, single-character
// and special-token artifacts the engine occasionally produces.
func JoinSegments(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if len(text) <= 1 || strings.HasPrefix(text, "[_") {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
	return b.String()
}
