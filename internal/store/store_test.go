package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/murmurlabs/murmur-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{RetentionMode: "ephemeral"}
	s, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	// Writes are silently dropped.
	if err := s.RecordSessionStart("s-1", "microphone", time.Now()); err != nil {
		t.Fatalf("record session: %v", err)
	}
	transcripts, err := s.ListTranscripts(ctx, "s-1", 10)
	if err != nil {
		t.Fatalf("list transcripts: %v", err)
	}
	if len(transcripts) != 0 {
		t.Fatalf("ephemeral store returned %d transcripts", len(transcripts))
	}
}

func TestAppendAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.StoreConfig{Path: filepath.Join(tmp, "transcripts.db"), RetentionMode: "persistent"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open transcript store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	sessionID := "session-123"
	if err := s.AppendSession(context.Background(), sessionID, "microphone", time.Now()); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := s.AppendTranscript(context.Background(), sessionID, "hello there", time.Now()); err != nil {
		t.Fatalf("append transcript: %v", err)
	}
	transcripts, err := s.ListTranscripts(context.Background(), sessionID, 10)
	if err != nil {
		t.Fatalf("list transcripts: %v", err)
	}
	if len(transcripts) != 1 {
		t.Fatalf("expected 1 transcript, got %d", len(transcripts))
	}
	if transcripts[0].Text != "hello there" {
		t.Fatalf("unexpected text: %s", transcripts[0].Text)
	}

	sessions, err := s.ListSessions(context.Background(), 10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Kind != "microphone" {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
	if sessions[0].EndedAt != nil {
		t.Fatal("session should be open")
	}

	if err := s.FinishSession(context.Background(), sessionID, time.Now()); err != nil {
		t.Fatalf("finish session: %v", err)
	}
	sessions, err = s.ListSessions(context.Background(), 10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if sessions[0].EndedAt == nil {
		t.Fatal("session end not recorded")
	}
}

func TestSessionModeClearsOnOpen(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "transcripts.db")

	cfg := config.StoreConfig{Path: path, RetentionMode: "session"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open transcript store: %v", err)
	}
	if err := s.AppendSession(context.Background(), "old", "loopback", time.Now()); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("reopen transcript store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	sessions, err := s.ListSessions(context.Background(), 10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("session mode kept %d sessions across restarts", len(sessions))
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.StoreConfig{Path: filepath.Join(tmp, "transcripts.db"), RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open transcript store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.AppendSession(context.Background(), "old-session", "microphone", s.clock()); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := s.AppendTranscript(context.Background(), "old-session", "stale", s.clock()); err != nil {
		t.Fatalf("append transcript: %v", err)
	}

	s.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.AppendSession(context.Background(), "new-session", "microphone", s.clock()); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	transcripts, err := s.ListTranscripts(context.Background(), "old-session", 10)
	if err != nil {
		t.Fatalf("list transcripts: %v", err)
	}
	if len(transcripts) != 0 {
		t.Fatalf("expected old session pruned")
	}
}
