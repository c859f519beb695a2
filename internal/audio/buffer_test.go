package audio

import (
	"math/rand"
	"testing"
)

func TestTakeNewAdvancesCursor(t *testing.T) {
	b := NewRetentionBuffer(100)
	b.Append([]float32{1, 2, 3})
	if got := b.NewSampleCount(); got != 3 {
		t.Fatalf("expected 3 new samples, got %d", got)
	}
	chunk := b.TakeNew()
	if len(chunk) != 3 {
		t.Fatalf("expected chunk of 3, got %d", len(chunk))
	}
	if got := b.NewSampleCount(); got != 0 {
		t.Fatalf("expected 0 new samples after take, got %d", got)
	}
	if b.TakeNew() != nil {
		t.Fatal("expected nil chunk when nothing is new")
	}
}

func TestTakeNewReturnsCopy(t *testing.T) {
	b := NewRetentionBuffer(100)
	b.Append([]float32{1, 2, 3})
	chunk := b.TakeNew()
	chunk[0] = 99
	b.Append([]float32{4})
	second := b.TakeNew()
	if second[0] != 4 {
		t.Fatalf("expected appended sample 4, got %v", second[0])
	}
}

func TestTrimShiftsCursor(t *testing.T) {
	b := NewRetentionBuffer(4)
	b.Append([]float32{1, 2, 3})
	b.TakeNew() // cursor = 3
	b.Append([]float32{4, 5, 6})
	b.TrimToLimit() // drops 2 oldest, cursor shifts to 1
	if got := b.Len(); got != 4 {
		t.Fatalf("expected len 4 after trim, got %d", got)
	}
	if got := b.Cursor(); got != 1 {
		t.Fatalf("expected cursor 1 after trim, got %d", got)
	}
	chunk := b.TakeNew()
	if len(chunk) != 3 || chunk[0] != 4 {
		t.Fatalf("expected new samples 4,5,6 got %v", chunk)
	}
}

func TestTrimClampsCursorAtZero(t *testing.T) {
	b := NewRetentionBuffer(2)
	b.Append([]float32{1, 2, 3, 4, 5})
	b.TrimToLimit()
	if got := b.Cursor(); got != 0 {
		t.Fatalf("expected cursor clamped to 0, got %d", got)
	}
	if got := b.Len(); got != 2 {
		t.Fatalf("expected len 2, got %d", got)
	}
}

func TestUnboundedBufferNeverTrims(t *testing.T) {
	b := NewRetentionBuffer(0)
	b.Append(make([]float32, 100000))
	b.TrimToLimit()
	if got := b.Len(); got != 100000 {
		t.Fatalf("expected unbounded buffer to keep samples, got %d", got)
	}
	all := b.TakeAll()
	if len(all) != 100000 {
		t.Fatalf("expected TakeAll to return everything, got %d", len(all))
	}
	if b.Len() != 0 || b.Cursor() != 0 {
		t.Fatal("expected buffer reset after TakeAll")
	}
}

func TestCursorInvariantUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	b := NewRetentionBuffer(512)
	for i := 0; i < 5000; i++ {
		switch rng.Intn(3) {
		case 0:
			b.Append(make([]float32, rng.Intn(200)))
		case 1:
			b.TakeNew()
		case 2:
			b.TrimToLimit()
		}
		cursor, length := b.Cursor(), b.Len()
		if cursor < 0 || cursor > length {
			t.Fatalf("cursor invariant violated at op %d: cursor=%d len=%d", i, cursor, length)
		}
	}
}
