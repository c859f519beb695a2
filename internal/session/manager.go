package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/murmurlabs/murmur-core/internal/audio"
	"github.com/murmurlabs/murmur-core/internal/capture"
	"github.com/murmurlabs/murmur-core/internal/config"
	"github.com/murmurlabs/murmur-core/internal/engine"
	"github.com/murmurlabs/murmur-core/internal/events"
	"github.com/murmurlabs/murmur-core/internal/protocol"
)

// Recorder persists sessions and their utterances. Writes are best effort;
// the pipeline keeps running when persistence fails.
type Recorder interface {
	RecordSessionStart(id, kind string, startedAt time.Time) error
	RecordUtterance(sessionID, text string, at time.Time) error
	RecordSessionEnd(id string, endedAt time.Time) error
}

// Manager owns at most one realtime session per capture kind. Start opens the
// device and spawns the session worker; Stop drains it and is idempotent.
type Manager struct {
	cfg    config.PipelineConfig
	opener capture.Opener
	engine engine.Engine
	sink   events.Sink
	store  Recorder
	log    *slog.Logger

	// clock is swappable in tests to step the silence hold deterministically.
	clock func() time.Time

	mu       sync.Mutex
	sessions map[capture.Kind]*liveSession

	meter           metric.Meter
	activeGauge     metric.Int64ObservableGauge
	utteranceCount  metric.Int64Counter
	inferenceErrors metric.Int64Counter
}

type liveSession struct {
	id          string
	kind        capture.Kind
	stream      capture.Stream
	buffer      *audio.RetentionBuffer
	gate        *utteranceGate
	srcRate     int
	srcChannels int
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewManager(cfg config.PipelineConfig, opener capture.Opener, eng engine.Engine, sink events.Sink, store Recorder, log *slog.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		opener:   opener,
		engine:   eng,
		sink:     sink,
		store:    store,
		log:      log.With(slog.String("component", "session-manager")),
		clock:    time.Now,
		sessions: make(map[capture.Kind]*liveSession),
		meter:    otel.Meter("github.com/murmurlabs/murmur-core/runtime"),
	}
	if err := m.initMetrics(); err != nil {
		m.log.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	return m
}

func (m *Manager) initMetrics() error {
	gauge, err := m.meter.Int64ObservableGauge("murmur.sessions.active",
		metric.WithDescription("Number of running realtime sessions"))
	if err != nil {
		return err
	}
	m.activeGauge = gauge
	m.utteranceCount, err = m.meter.Int64Counter("murmur.utterances.emitted",
		metric.WithDescription("Utterances published by realtime sessions"))
	if err != nil {
		return err
	}
	m.inferenceErrors, err = m.meter.Int64Counter("murmur.inference.failures",
		metric.WithDescription("Transcription calls that failed and were skipped"))
	if err != nil {
		return err
	}
	_, err = m.meter.RegisterCallback(func(ctx context.Context, obs metric.Observer) error {
		m.mu.Lock()
		active := int64(len(m.sessions))
		m.mu.Unlock()
		obs.ObserveInt64(gauge, active)
		return nil
	}, gauge)
	return err
}

// Start opens a capture stream of the given kind and begins streaming
// transcription. Returns the session ID, or ErrAlreadyRunning if a session
// of that kind is active.
func (m *Manager) Start(ctx context.Context, kind capture.Kind) (string, error) {
	m.mu.Lock()
	if _, exists := m.sessions[kind]; exists {
		m.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrAlreadyRunning, kind)
		m.emitError("", kind, err)
		return "", err
	}
	// Reserve the slot before opening the device so concurrent starts of the
	// same kind cannot both reach the opener.
	m.sessions[kind] = nil
	m.mu.Unlock()

	s, err := m.open(ctx, kind)
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, kind)
		m.mu.Unlock()
		m.emitError("", kind, err)
		return "", err
	}

	m.mu.Lock()
	m.sessions[kind] = s
	m.mu.Unlock()

	m.log.Info("session started",
		slog.String("session_id", s.id),
		slog.String("kind", string(kind)))
	return s.id, nil
}

func (m *Manager) open(ctx context.Context, kind capture.Kind) (*liveSession, error) {
	s := &liveSession{
		id:   uuid.NewString(),
		kind: kind,
		gate: newUtteranceGate(
			time.Duration(m.cfg.SilenceHoldMS)*time.Millisecond,
			m.cfg.DedupMinChars,
		),
		done: make(chan struct{}),
	}

	// The deliver callback only appends raw device blocks; downmixing and
	// resampling happen on the worker when a chunk is taken. The buffer is
	// sized from the stream's native format, which is only known once Open
	// returns, so blocks wait on ready until the buffer exists.
	ready := make(chan struct{})
	deliver := func(block []float32) {
		<-ready
		s.buffer.Append(block)
	}

	stream, err := m.opener.Open(kind, deliver)
	if err != nil {
		close(ready)
		return nil, err
	}
	s.stream = stream
	s.srcRate = stream.NativeRate()
	s.srcChannels = stream.NativeChannels()
	s.buffer = audio.NewRetentionBuffer(int(m.cfg.RetentionSeconds * float64(s.srcRate) * float64(s.srcChannels)))
	close(ready)

	if m.store != nil {
		if err := m.store.RecordSessionStart(s.id, string(kind), m.clock()); err != nil {
			m.log.Warn("failed to record session start", slog.String("error", err.Error()))
		}
	}

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go m.run(workerCtx, s)
	return s, nil
}

// Stop ends the session of the given kind, flushing any pending utterance and
// publishing the stopped event. Stopping an idle kind is a no-op.
func (m *Manager) Stop(kind capture.Kind) {
	m.mu.Lock()
	s := m.sessions[kind]
	if s == nil {
		// Idle, or a Start still holds the reservation placeholder. Deleting
		// the placeholder would let a second Start race the first one's open.
		m.mu.Unlock()
		return
	}
	delete(m.sessions, kind)
	m.mu.Unlock()

	s.cancel()
	<-s.done

	if err := s.stream.Stop(); err != nil {
		m.log.Warn("failed to stop capture stream",
			slog.String("session_id", s.id),
			slog.String("error", err.Error()))
	}

	now := m.clock()
	if text, ok := s.gate.FlushFinal(); ok {
		m.emitUtterance(s, text, now)
	}
	m.emit(protocol.EventSessionStopped, protocol.SessionStopped{
		SessionID: s.id,
		Kind:      string(s.kind),
		Timestamp: now,
	})
	if m.store != nil {
		if err := m.store.RecordSessionEnd(s.id, now); err != nil {
			m.log.Warn("failed to record session end", slog.String("error", err.Error()))
		}
	}
	m.log.Info("session stopped",
		slog.String("session_id", s.id),
		slog.String("kind", string(s.kind)))
}

// StopAll stops every running session. Called on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	kinds := make([]capture.Kind, 0, len(m.sessions))
	for kind := range m.sessions {
		kinds = append(kinds, kind)
	}
	m.mu.Unlock()
	for _, kind := range kinds {
		m.Stop(kind)
	}
}

// Running reports the IDs of active sessions by kind.
func (m *Manager) Running() map[capture.Kind]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[capture.Kind]string, len(m.sessions))
	for kind, s := range m.sessions {
		if s != nil {
			out[kind] = s.id
		}
	}
	return out
}

func (m *Manager) emitUtterance(s *liveSession, text string, at time.Time) {
	m.emit(protocol.EventUtterance, protocol.Utterance{
		SessionID: s.id,
		Kind:      string(s.kind),
		Text:      text,
		Timestamp: at,
	})
	if m.utteranceCount != nil {
		m.utteranceCount.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("kind", string(s.kind))))
	}
	if m.store != nil {
		if err := m.store.RecordUtterance(s.id, text, at); err != nil {
			m.log.Warn("failed to record utterance", slog.String("error", err.Error()))
		}
	}
}

func (m *Manager) emitError(sessionID string, kind capture.Kind, err error) {
	m.emit(protocol.EventSessionError, protocol.SessionError{
		SessionID: sessionID,
		Kind:      string(kind),
		Code:      CodeFor(err),
		Message:   err.Error(),
		Timestamp: m.clock(),
	})
}

func (m *Manager) emit(event string, payload any) {
	if err := m.sink.Emit(event, payload); err != nil {
		m.log.Warn("failed to emit event",
			slog.String("event", event),
			slog.String("error", err.Error()))
	}
}
