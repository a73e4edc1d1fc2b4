package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"tidbyt.dev/departures"
	"tidbyt.dev/departures/messages"
)

const (
	maxBodyBytes        = 4 << 10
	defaultMessageLimit = 50
)

// Published boards and on demand refreshes.
type BoardSource interface {
	Snapshot() *departures.Snapshot
	Refresh(ctx context.Context) error
}

type Server struct {
	Boards   BoardSource
	Messages *messages.Board
	Logger   *slog.Logger

	// Timestamps posted messages
	TimeNow func() time.Time
}

func NewServer(boards BoardSource, msgs *messages.Board, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Boards:   boards,
		Messages: msgs,
		Logger:   logger,
		TimeNow:  time.Now,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(s.Logger))
	r.Use(cors)

	r.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	r.HandleFunc("/api/boards", s.handleBoards).Methods("GET")
	r.HandleFunc("/api/refresh", s.handleRefresh).Methods("POST")
	r.HandleFunc("/api/messages", s.handleMessages).Methods("GET")
	r.HandleFunc("/send-message", s.handleSendMessage).Methods("POST", "OPTIONS")

	return r
}

// An http.Server for the router. Caller starts and shuts it down.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error":   http.StatusText(status),
		"message": msg,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if snap := s.Boards.Snapshot(); snap != nil {
		resp["refreshed_at"] = snap.RefreshedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBoards(w http.ResponseWriter, r *http.Request) {
	snap := s.Boards.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "boards not loaded yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	// A client hanging up shouldn't abort the cycle
	err := s.Boards.Refresh(context.WithoutCancel(r.Context()))
	if errors.Is(err, departures.ErrRefreshInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.Logger.Error("manual refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Boards.Snapshot())
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	limit := defaultMessageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.Messages.Recent(limit))
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	err = s.Messages.Post(clientIP(r), body.Message, s.TimeNow())
	if errors.Is(err, messages.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
