package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/murmurlabs/murmur-core/internal/capture"
	"github.com/murmurlabs/murmur-core/internal/config"
	"github.com/murmurlabs/murmur-core/internal/engine"
	"github.com/murmurlabs/murmur-core/internal/events"
	"github.com/murmurlabs/murmur-core/internal/session"
	"github.com/murmurlabs/murmur-core/internal/store"
)

func newTestRuntime(t *testing.T) (*Runtime, *capture.MockOpener) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.Pipeline.TargetSampleRate = 100
	cfg.Pipeline.PollIntervalMS = 5
	cfg.Pipeline.MinChunkSeconds = 1

	st, err := store.Open(context.Background(), config.StoreConfig{
		Path:          filepath.Join(t.TempDir(), "transcripts.db"),
		RetentionMode: "persistent",
	}, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	opener := capture.NewMockOpener(100, 1)
	eng := &engine.MockEngine{}
	sink := events.NewMemorySink()

	rt := New(cfg, logger)
	rt.store = st
	rt.engine = eng
	rt.manager = session.NewManager(cfg.Pipeline, opener, eng, sink, st, logger)
	rt.batch = session.NewBatchRecorder(cfg.Pipeline, opener, eng, st, logger)
	t.Cleanup(rt.manager.StopAll)
	return rt, opener
}

func testMux(rt *Runtime) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	rt.registerAPI(mux)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			return rec, nil
		}
	}
	return rec, body
}

func TestSessionStartStopEndpoints(t *testing.T) {
	rt, opener := newTestRuntime(t)
	mux := testMux(rt)

	rec, body := doRequest(t, mux, http.MethodPost, "/v1/sessions/microphone/start")
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body)
	}
	id, _ := body["session_id"].(string)
	if id == "" {
		t.Fatalf("missing session_id in %v", body)
	}

	rec, body = doRequest(t, mux, http.MethodGet, "/v1/sessions")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	sessions, _ := body["sessions"].(map[string]any)
	if sessions["microphone"] != id {
		t.Fatalf("list sessions = %v, want %q", sessions, id)
	}

	rec, _ = doRequest(t, mux, http.MethodPost, "/v1/sessions/microphone/stop")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}
	if !opener.StreamFor(capture.KindMicrophone).Stopped() {
		t.Fatal("stream not stopped via endpoint")
	}
}

func TestSessionStartConflict(t *testing.T) {
	rt, _ := newTestRuntime(t)
	mux := testMux(rt)

	if rec, _ := doRequest(t, mux, http.MethodPost, "/v1/sessions/loopback/start"); rec.Code != http.StatusOK {
		t.Fatalf("first start status = %d", rec.Code)
	}
	rec, body := doRequest(t, mux, http.MethodPost, "/v1/sessions/loopback/start")
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate start status = %d, want 409", rec.Code)
	}
	if body["code"] != "already_running" {
		t.Fatalf("error code = %v, want already_running", body["code"])
	}
}

func TestSessionStartUnknownKind(t *testing.T) {
	rt, _ := newTestRuntime(t)
	mux := testMux(rt)

	rec, _ := doRequest(t, mux, http.MethodPost, "/v1/sessions/webcam/start")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSessionStartDeviceUnavailable(t *testing.T) {
	rt, opener := newTestRuntime(t)
	opener.OpenErr = capture.ErrDeviceUnavailable
	mux := testMux(rt)

	rec, body := doRequest(t, mux, http.MethodPost, "/v1/sessions/microphone/start")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if body["code"] != "device_unavailable" {
		t.Fatalf("error code = %v", body["code"])
	}
}

func TestBatchEndpoints(t *testing.T) {
	rt, opener := newTestRuntime(t)
	mux := testMux(rt)

	rec, body := doRequest(t, mux, http.MethodPost, "/v1/batch/start")
	if rec.Code != http.StatusOK {
		t.Fatalf("batch start status = %d", rec.Code)
	}
	if id, _ := body["recording_id"].(string); id == "" {
		t.Fatalf("missing recording_id in %v", body)
	}
	opener.StreamFor(capture.KindLoopback).Push(make([]float32, 200))

	rec, body = doRequest(t, mux, http.MethodPost, "/v1/batch/stop")
	if rec.Code != http.StatusOK {
		t.Fatalf("batch stop status = %d: %s", rec.Code, rec.Body)
	}
	if _, ok := body["segments"]; !ok {
		t.Fatalf("missing segments in %v", body)
	}
}

func TestSessionHistoryEndpoint(t *testing.T) {
	rt, _ := newTestRuntime(t)
	mux := testMux(rt)

	if rec, _ := doRequest(t, mux, http.MethodPost, "/v1/sessions/microphone/start"); rec.Code != http.StatusOK {
		t.Fatalf("start status = %d", rec.Code)
	}
	if rec, _ := doRequest(t, mux, http.MethodPost, "/v1/sessions/microphone/stop"); rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}

	rec, body := doRequest(t, mux, http.MethodGet, "/v1/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	sessions, _ := body["sessions"].([]any)
	if len(sessions) != 1 {
		t.Fatalf("history sessions = %d, want 1", len(sessions))
	}
	entry, _ := sessions[0].(map[string]any)
	if entry["kind"] != "microphone" {
		t.Fatalf("history entry = %v", entry)
	}
	if ended, _ := entry["ended_at"].(string); ended == "" {
		t.Fatal("stopped session missing ended_at")
	}
}

func TestHealthAndReady(t *testing.T) {
	rt, _ := newTestRuntime(t)
	mux := testMux(rt)

	rec, _ := doRequest(t, mux, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}

	// Not ready until Start flips the flag.
	rec, _ = doRequest(t, mux, http.MethodGet, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", rec.Code)
	}
	rt.ready.Store(true)
	rec, _ = doRequest(t, mux, http.MethodGet, "/readyz")
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, want 200", rec.Code)
	}

	// With the bus enabled, readiness also requires a live connection.
	rt.cfg.Bus.Enabled = true
	rec, _ = doRequest(t, mux, http.MethodGet, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with disconnected bus status = %d, want 503", rec.Code)
	}
}
