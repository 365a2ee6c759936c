package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/whisper-batch/worker/internal/events"
	"github.com/whisper-batch/worker/internal/history"
)

// StatusHandler serves the read-only view of a running batch: incremental
// protocol events plus the persisted run history.
type StatusHandler struct {
	bus   *events.Bus
	store *history.Store
}

func NewStatusHandler(bus *events.Bus, store *history.Store) *StatusHandler {
	return &StatusHandler{bus: bus, store: store}
}

// Health always reports OK while the worker process is alive.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// Events returns protocol events with a sequence number greater than the
// since query parameter. Clients poll with their last seen sequence.
func (h *StatusHandler) Events(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			jsonError(w, "since must be an integer", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	batch := h.bus.Since(since)
	if batch == nil {
		batch = []events.BusEvent{}
	}
	jsonResponse(w, batch, http.StatusOK)
}

// ListRuns returns recent batch runs, newest first.
func (h *StatusHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		jsonError(w, "run history is not enabled", http.StatusNotFound)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	runs, err := h.store.RecentRuns(limit)
	if err != nil {
		jsonError(w, "failed to list runs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []history.RunRecord{}
	}
	jsonResponse(w, runs, http.StatusOK)
}

// RunFiles returns the per-file outcomes of one run.
func (h *StatusHandler) RunFiles(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		jsonError(w, "run history is not enabled", http.StatusNotFound)
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, "missing run ID", http.StatusBadRequest)
		return
	}

	files, err := h.store.FilesForRun(id)
	if err != nil {
		jsonError(w, "failed to list run files: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if files == nil {
		files = []history.FileRecord{}
	}
	jsonResponse(w, files, http.StatusOK)
}

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
