package runtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/murmurlabs/murmur-core/internal/capture"
	"github.com/murmurlabs/murmur-core/internal/engine"
	"github.com/murmurlabs/murmur-core/internal/session"
)

// registerAPI mounts the session control surface. Realtime sessions are
// addressed by capture kind; batch recording is a singleton.
func (r *Runtime) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/sessions/{kind}/start", r.handleSessionStart)
	mux.HandleFunc("POST /v1/sessions/{kind}/stop", r.handleSessionStop)
	mux.HandleFunc("GET /v1/sessions", r.handleSessionList)
	mux.HandleFunc("GET /v1/sessions/{id}/transcripts", r.handleTranscripts)
	mux.HandleFunc("GET /v1/history", r.handleHistory)
	mux.HandleFunc("POST /v1/batch/start", r.handleBatchStart)
	mux.HandleFunc("POST /v1/batch/stop", r.handleBatchStop)
}

func (r *Runtime) handleSessionStart(w http.ResponseWriter, req *http.Request) {
	kind, ok := capture.ParseKind(req.PathValue("kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown capture kind")
		return
	}
	id, err := r.manager.Start(req.Context(), kind)
	if err != nil {
		writeErrorCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

func (r *Runtime) handleSessionStop(w http.ResponseWriter, req *http.Request) {
	kind, ok := capture.ParseKind(req.PathValue("kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown capture kind")
		return
	}
	r.manager.Stop(kind)
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": true})
}

func (r *Runtime) handleSessionList(w http.ResponseWriter, _ *http.Request) {
	running := r.manager.Running()
	out := make(map[string]string, len(running))
	for kind, id := range running {
		out[string(kind)] = id
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions":        out,
		"batch_recording": r.batch.Active(),
	})
}

func (r *Runtime) handleTranscripts(w http.ResponseWriter, req *http.Request) {
	transcripts, err := r.store.ListTranscripts(req.Context(), req.PathValue("id"), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	type entry struct {
		Text      string `json:"text"`
		CreatedAt string `json:"created_at"`
	}
	out := make([]entry, 0, len(transcripts))
	for _, tr := range transcripts {
		out = append(out, entry{Text: tr.Text, CreatedAt: tr.CreatedAt.Format(time.RFC3339Nano)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"transcripts": out})
}

func (r *Runtime) handleHistory(w http.ResponseWriter, req *http.Request) {
	sessions, err := r.store.ListSessions(req.Context(), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	type entry struct {
		SessionID string  `json:"session_id"`
		Kind      string  `json:"kind"`
		StartedAt string  `json:"started_at"`
		EndedAt   *string `json:"ended_at,omitempty"`
	}
	out := make([]entry, 0, len(sessions))
	for _, sess := range sessions {
		e := entry{
			SessionID: sess.ID,
			Kind:      sess.Kind,
			StartedAt: sess.StartedAt.Format(time.RFC3339Nano),
		}
		if sess.EndedAt != nil {
			ended := sess.EndedAt.Format(time.RFC3339Nano)
			e.EndedAt = &ended
		}
		out = append(out, e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (r *Runtime) handleBatchStart(w http.ResponseWriter, req *http.Request) {
	id, err := r.batch.Start(req.Context())
	if err != nil {
		writeErrorCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"recording_id": id})
}

func (r *Runtime) handleBatchStop(w http.ResponseWriter, req *http.Request) {
	segments, err := r.batch.Stop(req.Context())
	if err != nil {
		writeErrorCoded(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"segments": segments})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrModelNotFound),
		errors.Is(err, engine.ErrModelLoad),
		errors.Is(err, engine.ErrInference):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeErrorCoded(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{
		"error": err.Error(),
		"code":  session.CodeFor(err),
	})
}
