package session

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/murmurlabs/murmur-core/internal/audio"
	"github.com/murmurlabs/murmur-core/internal/engine"
)

// run is the session worker loop. Each tick it drains new samples from the
// retention buffer, classifies the chunk, and feeds speech to the engine.
// Inference runs synchronously here, so at most one call per session is in
// flight and a slow model simply stretches the effective poll interval.
func (m *Manager) run(ctx context.Context, s *liveSession) {
	defer close(s.done)

	interval := time.Duration(m.cfg.PollIntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		m.poll(ctx, s)
	}
}

func (m *Manager) poll(ctx context.Context, s *liveSession) {
	minChunk := int(m.cfg.MinChunkSeconds * float64(s.srcRate) * float64(s.srcChannels))
	if s.buffer.NewSampleCount() < minChunk {
		// Not enough new audio counts as silence: a stalled device must not
		// keep a pending turn waiting until session stop. The next speech
		// chunk resets the timer.
		s.gate.ObserveSilence(m.clock())
		m.maybeFlush(s)
		return
	}

	raw := s.buffer.TakeNew()
	s.buffer.TrimToLimit()
	now := m.clock()

	mono := audio.Downmix(raw, s.srcChannels)
	chunk := audio.Resample(mono, s.srcRate, m.cfg.TargetSampleRate)

	if audio.Peak(chunk) < float32(m.cfg.SilenceThreshold) {
		s.gate.ObserveSilence(now)
		m.maybeFlush(s)
		return
	}
	s.gate.ObserveSpeech()

	segments, err := m.engine.Transcribe(ctx, audio.Normalize(chunk), engine.Options{
		UseContext: false,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Transient per chunk: drop it and keep the session alive.
		m.log.Warn("transcription failed, skipping chunk",
			slog.String("session_id", s.id),
			slog.Int("samples", len(chunk)),
			slog.String("error", err.Error()))
		if m.inferenceErrors != nil {
			m.inferenceErrors.Add(ctx, 1,
				metric.WithAttributes(attribute.String("kind", string(s.kind))))
		}
		return
	}

	if text := engine.JoinSegments(segments); text != "" {
		s.gate.Append(text)
	}
}

func (m *Manager) maybeFlush(s *liveSession) {
	now := m.clock()
	if text, ok := s.gate.PendingFlush(now); ok {
		m.emitUtterance(s, text, now)
	}
}
