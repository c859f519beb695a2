package engine

import (
	"context"
	"fmt"
	"sync"
)

// MockEngine is a scriptable engine for tests; with EchoLength set it also
// serves as the development backend for engine.mode=mock.
type MockEngine struct {
	EchoLength bool
	Err        error

	mu    sync.Mutex
	queue [][]Segment
	calls []Options
}

// Enqueue schedules the segments returned by the next Transcribe call.
func (m *MockEngine) Enqueue(segments ...Segment) {
	m.mu.Lock()
	m.queue = append(m.queue, segments)
	m.mu.Unlock()
}

func (m *MockEngine) Transcribe(_ context.Context, samples []float32, opts Options) ([]Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, opts)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		return next, nil
	}
	if m.EchoLength {
		return []Segment{{Text: fmt.Sprintf("[mock transcript length=%d]", len(samples))}}, nil
	}
	return nil, nil
}

func (m *MockEngine) Close() error { return nil }

// Calls returns the options of every Transcribe call so far.
func (m *MockEngine) Calls() []Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Options, len(m.calls))
	copy(out, m.calls)
	return out
}
