// Package api exposes stored pipeline runs over HTTP: run listings,
// per-run summaries, pixel event queries, and a debug chart of the yearly
// index distribution.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/canopy-data/clearcut.report/internal/monitoring"
	sqlite "github.com/canopy-data/clearcut.report/internal/trend/storage/sqlite"
	"github.com/canopy-data/clearcut.report/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	runs      *sqlite.RunStore
	summaries *sqlite.SummaryStore
	events    *sqlite.EventStore
}

func NewServer(runs *sqlite.RunStore, summaries *sqlite.SummaryStore, events *sqlite.EventStore) *Server {
	return &Server{
		runs:      runs,
		summaries: summaries,
		events:    events,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/run_summary", s.showRunSummary)
	mux.HandleFunc("/api/events", s.listEvents)
	mux.HandleFunc("/api/pixel", s.showPixelEvent)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/debug/charts/index", s.handleIndexChart)
	return mux
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	info := map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	}
	if err := json.NewEncoder(w).Encode(info); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write version")
		return
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runs, err := s.runs.List()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*sqlite.PipelineRun{}
	}

	if err := json.NewEncoder(w).Encode(runs); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write runs")
		return
	}
}

// runSummaryResponse bundles a run with its per-year statistics and any
// per-year data problems reported during compositing.
type runSummaryResponse struct {
	Run        *sqlite.PipelineRun       `json:"run"`
	Years      []*sqlite.YearSummary     `json:"years"`
	DataErrors []*sqlite.DataErrorRecord `json:"data_errors,omitempty"`
}

func (s *Server) showRunSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'run_id' parameter")
		return
	}

	run, err := s.runs.Get(runID)
	if errors.Is(err, sql.ErrNoRows) {
		s.writeJSONError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve run: %v", err))
		return
	}

	years, err := s.summaries.ByRun(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve summaries: %v", err))
		return
	}
	dataErrs, err := s.runs.DataErrors(runID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve data errors: %v", err))
		return
	}

	resp := runSummaryResponse{Run: run, Years: years, DataErrors: dataErrs}
	if resp.Years == nil {
		resp.Years = []*sqlite.YearSummary{}
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write summary")
		return
	}
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'run_id' parameter")
		return
	}
	yodStr := r.URL.Query().Get("yod")
	if yodStr == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'yod' parameter")
		return
	}
	yod, err := strconv.Atoi(yodStr)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'yod' parameter")
		return
	}

	events, err := s.events.ByYear(runID, yod)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve events: %v", err))
		return
	}
	if events == nil {
		events = []*sqlite.EventRecord{}
	}

	if err := json.NewEncoder(w).Encode(events); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write events")
		return
	}
}

func (s *Server) showPixelEvent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'run_id' parameter")
		return
	}
	x, err := strconv.Atoi(r.URL.Query().Get("x"))
	if err != nil || x < 0 {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'x' parameter")
		return
	}
	y, err := strconv.Atoi(r.URL.Query().Get("y"))
	if err != nil || y < 0 {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'y' parameter")
		return
	}

	rec, err := s.events.Pixel(runID, x, y)
	if errors.Is(err, sql.ErrNoRows) {
		// Absence of a row is the no-data representation, not a failure.
		s.writeJSONError(w, http.StatusNotFound, "No event detected at pixel")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve event: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(rec); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write event")
		return
	}
}
