package audio

import "sync"

// RetentionBuffer is a bounded, append-only store of captured samples with
// a consumption cursor. The capture goroutine appends raw blocks; the session
// worker takes new samples, conditions them, and trims. Every operation holds
// the lock only for the duration of the slice bookkeeping, never across
// conditioning or inference.
//
// The cursor marks the boundary between already-chunked and new samples and
// always satisfies 0 <= cursor <= len. Trimming from the front shifts the
// cursor by the trimmed amount, clamped at zero.
type RetentionBuffer struct {
	mu      sync.Mutex
	samples []float32
	cursor  int
	limit   int
}

// NewRetentionBuffer creates a buffer that keeps at most limit samples.
// A limit <= 0 means unbounded (batch recording).
func NewRetentionBuffer(limit int) *RetentionBuffer {
	capacity := limit
	if capacity <= 0 {
		capacity = 1 << 16
	}
	return &RetentionBuffer{
		samples: make([]float32, 0, capacity),
		limit:   limit,
	}
}

// Append copies samples to the end of the buffer.
func (b *RetentionBuffer) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}
	b.mu.Lock()
	b.samples = append(b.samples, samples...)
	b.mu.Unlock()
}

// NewSampleCount reports how many samples have arrived since the last TakeNew.
func (b *RetentionBuffer) NewSampleCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples) - b.cursor
}

// TakeNew returns a copy of all samples past the cursor and advances the
// cursor to the end. Returns nil when nothing is new.
func (b *RetentionBuffer) TakeNew() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cursor >= len(b.samples) {
		return nil
	}
	chunk := make([]float32, len(b.samples)-b.cursor)
	copy(chunk, b.samples[b.cursor:])
	b.cursor = len(b.samples)
	return chunk
}

// TakeAll returns a copy of the entire buffer contents and resets it.
// Used by batch mode, which consumes the whole capture once on stop.
func (b *RetentionBuffer) TakeAll() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.samples) == 0 {
		return nil
	}
	all := make([]float32, len(b.samples))
	copy(all, b.samples)
	b.samples = b.samples[:0]
	b.cursor = 0
	return all
}

// TrimToLimit drops the oldest samples exceeding the retention limit and
// shifts the cursor accordingly. No-op for unbounded buffers.
func (b *RetentionBuffer) TrimToLimit() {
	if b.limit <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	excess := len(b.samples) - b.limit
	if excess <= 0 {
		return
	}
	copy(b.samples, b.samples[excess:])
	b.samples = b.samples[:len(b.samples)-excess]
	b.cursor -= excess
	if b.cursor < 0 {
		b.cursor = 0
	}
}

// Len reports the current number of buffered samples.
func (b *RetentionBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Cursor reports the current consumption cursor.
func (b *RetentionBuffer) Cursor() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}
