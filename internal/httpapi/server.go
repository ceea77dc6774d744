// Package httpapi exposes the persisted dataset as a read-only JSON API.
// Every endpoint reads whatever the last pipeline run wrote; nothing here
// ever triggers recomputation.
package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joelkehle/review-refinery/internal/review"
	"github.com/joelkehle/review-refinery/internal/store"
)

type Server struct {
	store *store.Store
	log   *slog.Logger
}

func NewServer(st *store.Store, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{store: st, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/books/problematic", s.handleProblematicBooks)
	r.Get("/books/roi", s.handleTopROI)
	r.Get("/books/{title}", s.handleBook)
	r.Get("/users/diverse", s.handleDiverseUsers)
	r.Get("/reviews/flagged", s.handleFlaggedReviews)
	r.Get("/runs", s.handleRuns)
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProblematicBooks(w http.ResponseWriter, r *http.Request) {
	minScore := parseFloat(r.URL.Query().Get("min_score"), 0)
	limit := clampInt(r.URL.Query().Get("limit"), 20, 200)

	books, err := s.store.ProblematicBooks(r.Context(), minScore, limit)
	if err != nil {
		s.log.Error("problematic books query", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (s *Server) handleTopROI(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(r.URL.Query().Get("limit"), 20, 200)

	books, err := s.store.TopROIBooks(r.Context(), limit)
	if err != nil {
		s.log.Error("roi query", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")

	book, err := s.store.GetBook(r.Context(), title)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown book"})
		return
	}
	if err != nil {
		s.log.Error("book query", "title", title, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	agg, err := s.store.BookAggregate(r.Context(), title)
	if err != nil {
		s.log.Error("book aggregate query", "title", title, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"book": book, "aggregate": agg})
}

func (s *Server) handleDiverseUsers(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(r.URL.Query().Get("limit"), 20, 200)

	users, err := s.store.DiverseUsers(r.Context(), limit)
	if err != nil {
		s.log.Error("diverse users query", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleFlaggedReviews(w http.ResponseWriter, r *http.Request) {
	severity := review.Severity(strings.TrimSpace(r.URL.Query().Get("severity")))
	switch severity {
	case review.SeverityNone, review.SeverityLow, review.SeverityMedium, review.SeverityHigh:
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid severity"})
		return
	}
	limit := clampInt(r.URL.Query().Get("limit"), 100, 1000)

	reviews, err := s.store.FlaggedReviews(r.Context(), severity, limit)
	if err != nil {
		s.log.Error("flagged reviews query", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(r.URL.Query().Get("limit"), 20, 200)

	runs, err := s.store.Runs(r.Context(), limit)
	if err != nil {
		s.log.Error("runs query", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func parseFloat(raw string, fallback float64) float64 {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}
