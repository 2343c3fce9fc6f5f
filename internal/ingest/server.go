package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tracewell/tracewell/internal/domain/event"
	"github.com/tracewell/tracewell/internal/queue"
)

// MaxBodyBytes caps the accepted request body. Hook shims send single
// events; anything larger is rejected outright.
const MaxBodyBytes = 1 << 20

// Enqueuer is the producer-side queue contract the listener forwards to.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev event.Event, platform event.Platform, sessionID string) bool
	Stats(ctx context.Context, platform event.Platform) (queue.Stats, error)
}

// Server is the producer-facing HTTP boundary, used by zero-dependency hook
// shims that cannot speak to the stream directly. net/http serves each
// connection on its own goroutine, so unrelated requests never serialize.
type Server struct {
	enqueuer Enqueuer
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewServer creates the ingest listener over the given enqueuer.
func NewServer(enqueuer Enqueuer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{enqueuer: enqueuer, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /events", s.handleEvents)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// eventRequest is the JSON body for POST /events.
type eventRequest struct {
	Event     *event.Event `json:"event"`
	Platform  string       `json:"platform"`
	SessionID string       `json:"session_id"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if req.Event == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "event is required"})
		return
	}
	if req.Platform == "" || req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "platform and session_id are required"})
		return
	}

	platform := event.ParsePlatform(req.Platform)
	if platform == event.PlatformUnknown {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown platform"})
		return
	}

	if !s.enqueuer.Enqueue(r.Context(), *req.Event, platform, req.SessionID) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "queue unavailable"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}

	streams := make(map[string]queue.Stats, len(event.KnownPlatforms))
	for _, platform := range event.KnownPlatforms {
		stats, err := s.enqueuer.Stats(r.Context(), platform)
		if err != nil {
			continue
		}
		streams[string(platform)] = stats
	}
	if len(streams) > 0 {
		resp["streams"] = streams
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
