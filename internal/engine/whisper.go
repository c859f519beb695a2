//go:build cgo

package engine

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/murmurlabs/murmur-core/internal/config"
)

// whisperEngine wraps a whisper.cpp model instance. A fresh decode context
// is created per call, so no state carries between chunks; "context enabled"
// calls gain their accuracy from decoding the whole buffer in one pass.
type whisperEngine struct {
	mu    sync.Mutex
	model whisper.Model
	cfg   config.EngineConfig
}

func newWhisperEngine(path string, cfg config.EngineConfig) (Engine, error) {
	model, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, path, err)
	}
	return &whisperEngine{model: model, cfg: cfg}, nil
}

func (e *whisperEngine) Transcribe(ctx context.Context, samples []float32, opts Options) ([]Segment, error) {
	e.mu.Lock()
	model := e.model
	e.mu.Unlock()
	if model == nil {
		return nil, fmt.Errorf("%w: engine closed", ErrInference)
	}
	if len(samples) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wctx, err := model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("%w: create context: %v", ErrInference, err)
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = e.cfg.Threads
	}
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	language := strings.TrimSpace(opts.Language)
	if language == "" {
		language = strings.TrimSpace(e.cfg.Language)
	}
	if language == "" {
		language = "auto"
	}
	if err := wctx.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("%w: set language %q: %v", ErrInference, language, err)
	}
	wctx.SetTranslate(false)

	encoderCb := func() bool {
		return ctx.Err() == nil
	}
	if err := wctx.Process(samples, encoderCb, nil, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var segments []Segment
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read segment: %v", ErrInference, err)
		}
		segments = append(segments, Segment{
			Text:  seg.Text,
			Start: durationToCentiseconds(seg.Start),
			End:   durationToCentiseconds(seg.End),
		})
	}
	return segments, nil
}

func (e *whisperEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	return err
}

func durationToCentiseconds(d time.Duration) int64 {
	return int64(d / (10 * time.Millisecond))
}
