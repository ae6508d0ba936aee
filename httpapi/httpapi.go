// Package httpapi wires the lookup engine's core operations
// (IsVisible, CheckBatch, Len, VisibilityDistribution) onto an HTTP surface.
// It owns no state of its own: every handler reads through a [Reader].
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mwangi/occlusion/id"
	"github.com/mwangi/occlusion/internal/octx"
)

// Reader is the subset of [*store.SwappableStore] the HTTP surface needs.
// Handlers depend on this interface, not the concrete store type, so tests
// can substitute a fixed index.
type Reader interface {
	IsVisible(uuid id.UUID, mask uint8) bool
	CheckBatch(uuids []id.UUID, mask uint8) bool
	Len() int
	IsEmpty() bool
	VisibilityDistribution() map[uint8]int
}

// ReloadStatuser is implemented by [*scheduler.Scheduler]. The signature is
// all primitives rather than a scheduler-defined type so this package never
// needs to import scheduler.
type ReloadStatuser interface {
	ReloadStatus() (lastSuccess time.Time, lastChanged bool, lastError string, consecutiveFailures int)
}

// NewMux builds the complete routing table over r, with every handler
// wrapped in request logging. If sched is non-nil, GET /v1/reload-status is
// also registered.
func NewMux(r Reader, logger *slog.Logger, sched ...ReloadStatuser) *http.ServeMux {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("POST /v1/check", withLogging(logger, handleCheck(r)))
	mux.Handle("POST /v1/check-batch", withLogging(logger, handleCheckBatch(r)))
	mux.Handle("GET /v1/health", withLogging(logger, handleHealth(r)))
	mux.Handle("GET /v1/stats", withLogging(logger, handleStats(r)))
	mux.Handle("POST /v1/opa/data/visible", withLogging(logger, handleOPAVisible(r)))
	mux.Handle("POST /v1/opa/data/visible-batch", withLogging(logger, handleOPAVisibleBatch(r)))
	if len(sched) > 0 && sched[0] != nil {
		mux.Handle("GET /v1/reload-status", withLogging(logger, handleReloadStatus(sched[0])))
	}
	return mux
}

// withLogging wraps h with a request-completion log line carrying method,
// path, status code, and latency — adapted from the ambient slog logging
// convention used throughout this module rather than a bespoke format. Each
// request is tagged with a fresh correlation ID via [octx.LogCtxKey] so
// every log line a handler emits for it, including any the log package
// buffers and later flushes on error, carries the same logID.
func withLogging(logger *slog.Logger, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), octx.LogCtxKey, id.New())
		r = r.WithContext(ctx)

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		logger.InfoContext(ctx, "httpapi request",
			"method", r.Method,
			"path", r.URL.Path,
			"code", sw.status,
			"durationMS", time.Since(start).Milliseconds(),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
