package session

import (
	"strings"
	"time"
)

// utteranceGate accumulates transcribed text across chunks of one speech turn
// and decides when the turn is complete. A turn flushes after silence has held
// for the configured duration; the next speech chunk after a flush starts a
// fresh turn.
//
// The gate never emits the same text twice in a row: the last emitted
// utterance is remembered in normalized form (trimmed, lowercased) and
// matching candidates are swallowed. All methods are called from the session
// worker goroutine only.
type utteranceGate struct {
	hold          time.Duration
	dedupMinChars int

	pending      string
	silenceSince time.Time
	emitted      bool
	lastEmitted  string
}

func newUtteranceGate(hold time.Duration, dedupMinChars int) *utteranceGate {
	return &utteranceGate{hold: hold, dedupMinChars: dedupMinChars}
}

// ObserveSpeech marks the current chunk as speech. If the previous turn was
// already flushed, the accumulator and the last-emitted memory reset so the
// new turn starts clean; deliberately repeating the previous phrase is a new
// utterance.
func (g *utteranceGate) ObserveSpeech() {
	if g.emitted {
		g.pending = ""
		g.lastEmitted = ""
		g.emitted = false
	}
	g.silenceSince = time.Time{}
}

// ObserveSilence marks the current chunk as silence, starting the hold timer
// if it is not already running.
func (g *utteranceGate) ObserveSilence(now time.Time) {
	if g.silenceSince.IsZero() {
		g.silenceSince = now
	}
}

// Append merges newly transcribed text into the pending turn. Repetitive
// artifacts and fragments already present in the accumulator are dropped.
func (g *utteranceGate) Append(text string) {
	text = strings.TrimSpace(text)
	if text == "" || isRepetitive(text) {
		return
	}
	if g.isDuplicateFragment(text) {
		return
	}
	if g.pending == "" {
		g.pending = text
		return
	}
	g.pending = g.pending + " " + text
}

// isDuplicateFragment reports whether the candidate merely restates the tail
// or body of the pending text. Containment only counts for fragments long
// enough to be meaningful.
func (g *utteranceGate) isDuplicateFragment(text string) bool {
	if g.pending == "" {
		return false
	}
	pendingNorm := strings.ToLower(g.pending)
	textNorm := strings.ToLower(text)
	if strings.HasSuffix(pendingNorm, textNorm) {
		return true
	}
	if len(textNorm) > g.dedupMinChars && strings.Contains(pendingNorm, textNorm) {
		return true
	}
	return false
}

// PendingFlush returns the completed turn once silence has held long enough.
// A turn never flushes twice: after an emission the gate stays quiet until
// new speech starts the next turn.
func (g *utteranceGate) PendingFlush(now time.Time) (string, bool) {
	if g.emitted || g.pending == "" || g.silenceSince.IsZero() {
		return "", false
	}
	if now.Sub(g.silenceSince) < g.hold {
		return "", false
	}
	return g.take()
}

// FlushFinal drains whatever is pending regardless of the silence hold.
// Called once when the session stops.
func (g *utteranceGate) FlushFinal() (string, bool) {
	if g.emitted || g.pending == "" {
		return "", false
	}
	return g.take()
}

func (g *utteranceGate) take() (string, bool) {
	candidate := strings.TrimSpace(g.pending)
	g.emitted = true
	normalized := strings.ToLower(candidate)
	if candidate == "" || normalized == g.lastEmitted {
		return "", false
	}
	g.lastEmitted = normalized
	return candidate, true
}

// isRepetitive detects degenerate engine output such as "you you you you":
// three or more consecutive identical words, or a short phrase made of a
// single repeated word.
func isRepetitive(text string) bool {
	words := strings.Fields(strings.ToLower(text))
	if len(words) < 3 {
		return false
	}
	run := 1
	for i := 1; i < len(words); i++ {
		if words[i] == words[i-1] {
			run++
			if run >= 3 {
				return true
			}
		} else {
			run = 1
		}
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	return len(unique) == 1
}
