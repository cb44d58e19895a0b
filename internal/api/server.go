// Package api exposes the spectrometer over HTTP: live state and spectra,
// configuration, capture control, reference and calibration management,
// saved exports and the live feed.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/spectrum.report/internal/config"
	"github.com/banshee-data/spectrum.report/internal/db"
	"github.com/banshee-data/spectrum.report/internal/feed"
	"github.com/banshee-data/spectrum.report/internal/httputil"
	"github.com/banshee-data/spectrum.report/internal/spectro"
	"github.com/banshee-data/spectrum.report/internal/spectro/l1frames"
	"github.com/banshee-data/spectrum.report/internal/spectro/pipeline"
)

// ANSI escape codes for request logs
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// CommandTimeout bounds how long a handler waits for the processing loop.
const CommandTimeout = 5 * time.Second

// SourceFactory opens the frame source used by /api/start.
type SourceFactory func() (l1frames.FrameSource, error)

// Server serves the HTTP API. The store and hub are optional; endpoints
// that need a missing one answer 503.
type Server struct {
	coord     *pipeline.Coordinator
	store     *db.DB
	hub       *feed.Hub
	newSource SourceFactory

	// cfgMu serialises config updates so merges never interleave.
	cfgMu sync.Mutex
	cfg   *config.SpectrometerConfig
}

// NewServer returns a server over coord. cfg is the configuration coord was
// built from; nil derives it from coord.
func NewServer(coord *pipeline.Coordinator, store *db.DB, hub *feed.Hub, cfg *config.SpectrometerConfig, newSource SourceFactory) *Server {
	if cfg == nil {
		cfg = config.FromPipelineConfig(coord.Config())
	}
	return &Server{
		coord:     coord,
		store:     store,
		hub:       hub,
		newSource: newSource,
		cfg:       cfg,
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

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration on the diag
// stream.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		diagLogger.Event().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Int("status", lrw.statusCode).
			Float64("ms", float64(time.Since(start).Nanoseconds())/1e6).
			Msgf("[%s] %s %s%s%s", statusCodeColor(lrw.statusCode), r.Method, colorCyan, r.RequestURI, colorReset)
	})
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/spectrum", s.handleSpectrum)
	mux.HandleFunc("/api/spectrum.csv", s.handleSpectrumCSV)
	mux.HandleFunc("/api/spectrum.png", s.handleSpectrumPNG)
	mux.HandleFunc("/api/features", s.handleFeatures)
	mux.HandleFunc("/api/config", s.handleConfig)

	mux.HandleFunc("/api/start", s.handleStart)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/pause", s.handlePause)
	mux.HandleFunc("/api/resume", s.handleResume)

	mux.HandleFunc("/api/reference", s.handleReference)
	mux.HandleFunc("/api/reference.csv", s.handleReferenceCSV)
	mux.HandleFunc("/api/reference/tungsten", s.handleTungsten)
	mux.HandleFunc("/api/reference/capture", s.handleCaptureReference)
	mux.HandleFunc("/api/references", s.handleListReferences)
	mux.HandleFunc("/api/references/{id}", s.handleStoredReference)
	mux.HandleFunc("/api/references/{id}/use", s.handleUseReference)

	mux.HandleFunc("/api/calibration", s.handleCalibration)
	mux.HandleFunc("/api/calibrations", s.handleListCalibrations)
	mux.HandleFunc("/api/zero", s.handleZero)

	mux.HandleFunc("/api/exports", s.handleExports)
	mux.HandleFunc("/api/exports/{id}", s.handleExport)

	mux.HandleFunc("/charts/spectrum", s.handleSpectrumChart)
	if s.hub != nil {
		mux.Handle("/api/feed", s.hub)
	}
	return mux
}

// writeError maps the spectrometer error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var invalid *spectro.ConfigValidationError
	var nonMono *spectro.NonMonotonicError
	var device *spectro.DeviceError
	switch {
	case errors.As(err, &invalid), errors.As(err, &nonMono):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, db.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, spectro.ErrNotRunning):
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, spectro.ErrNoSpectrum),
		errors.Is(err, spectro.ErrNoReference),
		errors.Is(err, spectro.ErrInvalidState):
		httputil.Conflict(w, err.Error())
	case errors.As(err, &device):
		httputil.WriteJSONError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		httputil.WriteJSONError(w, http.StatusGatewayTimeout, err.Error())
	default:
		opsf("request failed: %v", err)
		httputil.InternalServerError(w, err.Error())
	}
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "storage is disabled")
		return false
	}
	return true
}

func commandContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), CommandTimeout)
}

// queryFloat parses an optional float query parameter.
func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid '%s' parameter: %q", name, v)
	}
	return f, nil
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}
