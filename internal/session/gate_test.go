package session

import (
	"testing"
	"time"
)

func TestGateFlushesAfterSilenceHold(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := newUtteranceGate(3*time.Second, 5)

	g.ObserveSpeech()
	g.Append("hello there")
	g.ObserveSilence(base)

	if _, ok := g.PendingFlush(base.Add(2 * time.Second)); ok {
		t.Fatal("flushed before the silence hold elapsed")
	}
	text, ok := g.PendingFlush(base.Add(3 * time.Second))
	if !ok {
		t.Fatal("expected flush after hold elapsed")
	}
	if text != "hello there" {
		t.Fatalf("flushed %q, want %q", text, "hello there")
	}
}

func TestGateSilenceHoldStartsAtFirstSilentChunk(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := newUtteranceGate(3*time.Second, 5)

	g.Append("one")
	g.ObserveSilence(base)
	g.ObserveSilence(base.Add(time.Second))

	// The hold counts from the first silent chunk, not the latest.
	if _, ok := g.PendingFlush(base.Add(3 * time.Second)); !ok {
		t.Fatal("expected flush 3s after first silent chunk")
	}
}

func TestGateRepetitiveTextDropped(t *testing.T) {
	g := newUtteranceGate(time.Second, 5)
	g.Append("you you you you")
	g.Append("You You you")
	if g.pending != "" {
		t.Fatalf("repetitive text accumulated: %q", g.pending)
	}
	g.Append("thank you")
	if g.pending != "thank you" {
		t.Fatalf("legitimate text dropped: %q", g.pending)
	}
}

func TestGateDuplicateFragmentDropped(t *testing.T) {
	g := newUtteranceGate(time.Second, 5)
	g.Append("the quick brown fox")

	// Suffix restatement of any length is dropped.
	g.Append("brown fox")
	if g.pending != "the quick brown fox" {
		t.Fatalf("suffix duplicate accumulated: %q", g.pending)
	}

	// Containment only counts past the minimum length.
	g.Append("quick brown")
	if g.pending != "the quick brown fox" {
		t.Fatalf("contained duplicate accumulated: %q", g.pending)
	}
	g.Append("quick")
	if g.pending != "the quick brown fox quick" {
		t.Fatalf("short fragment should append: %q", g.pending)
	}
}

func TestGateNewTurnMayRepeatPreviousPhrase(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := newUtteranceGate(time.Second, 5)

	g.Append("stop the music")
	g.ObserveSilence(base)
	if text, ok := g.PendingFlush(base.Add(time.Second)); !ok || text != "stop the music" {
		t.Fatalf("first flush = %q, %v", text, ok)
	}

	// A new turn that repeats the previous phrase is a deliberate repetition
	// and must be emitted.
	g.ObserveSpeech()
	g.Append("Stop The Music")
	g.ObserveSilence(base.Add(2 * time.Second))
	text, ok := g.PendingFlush(base.Add(3 * time.Second))
	if !ok {
		t.Fatal("repeated phrase in a new turn was swallowed")
	}
	if text != "Stop The Music" {
		t.Fatalf("flushed %q, want %q", text, "Stop The Music")
	}

	// And a different turn goes through as usual.
	g.ObserveSpeech()
	g.Append("play it again")
	g.ObserveSilence(base.Add(4 * time.Second))
	if text, ok := g.PendingFlush(base.Add(5 * time.Second)); !ok || text != "play it again" {
		t.Fatalf("third turn flush = %q, %v", text, ok)
	}
}

func TestGateNewTurnResetsAccumulator(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := newUtteranceGate(time.Second, 5)

	g.Append("first turn")
	g.ObserveSilence(base)
	if _, ok := g.PendingFlush(base.Add(time.Second)); !ok {
		t.Fatal("expected first flush")
	}

	g.ObserveSpeech()
	if g.pending != "" {
		t.Fatalf("accumulator not reset after flush: %q", g.pending)
	}
}

func TestGateDoesNotReflushWithoutNewSpeech(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := newUtteranceGate(time.Second, 5)

	g.Append("once only")
	g.ObserveSilence(base)
	if _, ok := g.PendingFlush(base.Add(time.Second)); !ok {
		t.Fatal("expected flush")
	}
	if text, ok := g.PendingFlush(base.Add(10 * time.Second)); ok {
		t.Fatalf("re-flushed %q during continued silence", text)
	}
}

func TestGateFlushFinal(t *testing.T) {
	g := newUtteranceGate(time.Hour, 5)
	g.Append("trailing words")

	text, ok := g.FlushFinal()
	if !ok || text != "trailing words" {
		t.Fatalf("FlushFinal = %q, %v", text, ok)
	}
	if _, ok := g.FlushFinal(); ok {
		t.Fatal("second FlushFinal should be empty")
	}
}

func TestGateFlushFinalEmptyPending(t *testing.T) {
	g := newUtteranceGate(time.Hour, 5)
	if text, ok := g.FlushFinal(); ok {
		t.Fatalf("flushed %q from empty gate", text)
	}
}
