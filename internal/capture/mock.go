package capture

import (
	"sync"
)

// MockOpener fabricates capture streams for tests and for running the daemon
// without audio hardware. Tests push blocks into the opened stream directly.
type MockOpener struct {
	Rate     int
	Channels int
	OpenErr  error

	mu      sync.Mutex
	streams map[Kind]*MockStream
}

func NewMockOpener(rate, channels int) *MockOpener {
	return &MockOpener{
		Rate:     rate,
		Channels: channels,
		streams:  make(map[Kind]*MockStream),
	}
}

func (o *MockOpener) Open(kind Kind, deliver BlockFunc) (Stream, error) {
	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	s := &MockStream{
		rate:     o.Rate,
		channels: o.Channels,
		deliver:  deliver,
	}
	o.mu.Lock()
	o.streams[kind] = s
	o.mu.Unlock()
	return s, nil
}

// StreamFor returns the most recently opened stream of a kind, or nil.
func (o *MockOpener) StreamFor(kind Kind) *MockStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.streams[kind]
}

type MockStream struct {
	rate     int
	channels int
	deliver  BlockFunc

	mu       sync.Mutex
	stopped  bool
	StopCall int
}

func (s *MockStream) NativeRate() int     { return s.rate }
func (s *MockStream) NativeChannels() int { return s.channels }

// Push delivers a block as if the device produced it. Ignored after Stop.
func (s *MockStream) Push(samples []float32) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}
	s.deliver(samples)
}

func (s *MockStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.StopCall++
	return nil
}

// Stopped reports whether Stop has been called.
func (s *MockStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
