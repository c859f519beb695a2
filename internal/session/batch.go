package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/murmurlabs/murmur-core/internal/audio"
	"github.com/murmurlabs/murmur-core/internal/capture"
	"github.com/murmurlabs/murmur-core/internal/config"
	"github.com/murmurlabs/murmur-core/internal/engine"
	"github.com/murmurlabs/murmur-core/internal/protocol"
)

// BatchRecorder captures system audio into an unbounded buffer and runs a
// single transcription pass over the whole recording on stop. Raw device
// blocks are kept as delivered; conditioning happens once at stop so the
// engine sees one coherent, normalized take.
type BatchRecorder struct {
	cfg    config.PipelineConfig
	opener capture.Opener
	engine engine.Engine
	store  Recorder
	log    *slog.Logger
	clock  func() time.Time

	mu     sync.Mutex
	active *batchCapture
}

type batchCapture struct {
	id      string
	stream  capture.Stream
	buffer  *audio.RetentionBuffer
	started time.Time
}

func NewBatchRecorder(cfg config.PipelineConfig, opener capture.Opener, eng engine.Engine, store Recorder, log *slog.Logger) *BatchRecorder {
	return &BatchRecorder{
		cfg:    cfg,
		opener: opener,
		engine: eng,
		store:  store,
		log:    log.With(slog.String("component", "batch-recorder")),
		clock:  time.Now,
	}
}

// Start begins recording the system output. Only one recording runs at a
// time.
func (r *BatchRecorder) Start(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return "", fmt.Errorf("%w: batch recording", ErrAlreadyRunning)
	}

	b := &batchCapture{
		id:      uuid.NewString(),
		buffer:  audio.NewRetentionBuffer(0),
		started: r.clock(),
	}

	ready := make(chan struct{})
	var stream capture.Stream
	deliver := func(block []float32) {
		<-ready
		b.buffer.Append(block)
	}

	stream, err := r.opener.Open(capture.KindLoopback, deliver)
	if err != nil {
		close(ready)
		return "", err
	}
	close(ready)
	b.stream = stream

	if r.store != nil {
		if err := r.store.RecordSessionStart(b.id, "batch", b.started); err != nil {
			r.log.Warn("failed to record batch start", slog.String("error", err.Error()))
		}
	}

	r.active = b
	r.log.Info("batch recording started", slog.String("recording_id", b.id))
	return b.id, nil
}

// Stop ends the recording and transcribes it, returning timestamped segments
// in seconds from the start of the recording.
func (r *BatchRecorder) Stop(ctx context.Context) ([]protocol.BatchSegment, error) {
	r.mu.Lock()
	b := r.active
	r.active = nil
	r.mu.Unlock()
	if b == nil {
		return nil, fmt.Errorf("no batch recording in progress")
	}

	if err := b.stream.Stop(); err != nil {
		r.log.Warn("failed to stop capture stream",
			slog.String("recording_id", b.id),
			slog.String("error", err.Error()))
	}

	raw := b.buffer.TakeAll()
	mono := audio.Downmix(raw, b.stream.NativeChannels())
	resampled := audio.Resample(mono, b.stream.NativeRate(), r.cfg.TargetSampleRate)
	samples := audio.Normalize(resampled)

	r.log.Info("transcribing batch recording",
		slog.String("recording_id", b.id),
		slog.Int("samples", len(samples)),
		slog.Duration("duration", r.clock().Sub(b.started)))

	segments, err := r.engine.Transcribe(ctx, samples, engine.Options{
		UseContext: true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]protocol.BatchSegment, 0, len(segments))
	now := r.clock()
	for _, seg := range segments {
		out = append(out, protocol.BatchSegment{
			Text:  seg.Text,
			Start: float64(seg.Start) / 100,
			End:   float64(seg.End) / 100,
		})
		if r.store != nil {
			if err := r.store.RecordUtterance(b.id, seg.Text, now); err != nil {
				r.log.Warn("failed to record batch segment", slog.String("error", err.Error()))
			}
		}
	}
	if r.store != nil {
		if err := r.store.RecordSessionEnd(b.id, now); err != nil {
			r.log.Warn("failed to record batch end", slog.String("error", err.Error()))
		}
	}
	return out, nil
}

// Active reports whether a recording is in progress.
func (r *BatchRecorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}
