// Package httphandler serves report generation and cache maintenance over HTTP.
package httphandler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ericfisherdev/activityreport/internal/adapter/driving/report"
	"github.com/ericfisherdev/activityreport/internal/application"
	"github.com/ericfisherdev/activityreport/internal/domain/model"
	"github.com/ericfisherdev/activityreport/internal/domain/port/driven"
)

// statusClientClosedRequest is the nginx convention for a request the client
// abandoned before a response was ready.
const statusClientClosedRequest = 499

// ReportRunner runs one report pipeline.
type ReportRunner interface {
	Run(ctx context.Context, req application.ReportRequest) (*application.ReportOutcome, error)
}

// CacheMaintainer exposes cache introspection and maintenance.
type CacheMaintainer interface {
	Stats(ctx context.Context) model.CacheStats
	ClearAll(ctx context.Context)
	ClearExpired(ctx context.Context)
	Duration() time.Duration
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	reports ReportRunner
	cache   CacheMaintainer
	now     func() time.Time
	logger  *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(reports ReportRunner, cache CacheMaintainer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		reports: reports,
		cache:   cache,
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock overrides the time source used for the default end date.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// NewRouter creates an http.Handler with all routes registered and wrapped
// with request id, logging and recovery middleware.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware(logger))
	// Recovery innermost so panics are caught before logging.
	r.Use(recoveryMiddleware(logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/report", h.Report)
		r.Get("/cache/stats", h.CacheStats)
		r.Post("/cache/clear", h.ClearCache)
		r.Post("/cache/sweep", h.SweepCache)
		r.Get("/health", h.Health)
	})

	return r
}

// Report runs the pipeline for the requested range and renders the result.
// Query parameters: start (required), end, source, format, group_by,
// show_reasons.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	dr, err := application.ParseDateRange(q.Get("start"), q.Get("end"), h.now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	format := report.FormatMarkdown
	if v := q.Get("format"); v != "" {
		if format, err = report.ParseFormat(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	opts := report.DefaultOptions()
	if v := q.Get("group_by"); v != "" {
		if opts.GroupBy, err = report.ParseGroupBy(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	opts.ShowMatchReasons = q.Get("show_reasons") == "true"

	source := model.SourceEvents
	if v := q.Get("source"); v != "" {
		source = model.Source(v)
		if !source.Valid() {
			writeError(w, http.StatusBadRequest, "unknown source "+v)
			return
		}
	}

	out, err := h.reports.Run(r.Context(), application.ReportRequest{Range: dr, Source: source})
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, out, format, opts); err != nil {
		h.logger.Error("failed to render report", "run_id", out.RunID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("X-Run-Id", out.RunID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// CacheStats returns per-namespace cache statistics.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toCacheStatsResponse(h.cache.Stats(r.Context()), h.cache.Duration()))
}

// ClearCache removes every cache entry.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.cache.ClearAll(r.Context())
	writeJSON(w, http.StatusOK, CacheActionResponse{Action: "clear", Entries: h.totalEntries(r.Context())})
}

// SweepCache removes expired cache entries.
func (h *Handler) SweepCache(w http.ResponseWriter, r *http.Request) {
	h.cache.ClearExpired(r.Context())
	writeJSON(w, http.StatusOK, CacheActionResponse{Action: "sweep", Entries: h.totalEntries(r.Context())})
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   h.now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) totalEntries(ctx context.Context) int {
	total := 0
	for _, ns := range h.cache.Stats(ctx).Namespaces {
		total += ns.Entries
	}
	return total
}

// writeRunError maps a pipeline failure to a status code. Remote and
// systemic lookup failures are upstream problems and map to 502.
func (h *Handler) writeRunError(w http.ResponseWriter, err error) {
	var remote *driven.RemoteError
	switch {
	case errors.Is(err, context.Canceled):
		h.logger.Info("report run canceled by client")
		writeError(w, statusClientClosedRequest, "request canceled")
	case errors.As(err, &remote):
		h.logger.Warn("report run failed: remote error", "kind", remote.Kind, "status", remote.Status, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Kind: string(remote.Kind)})
	case errors.Is(err, application.ErrAllLookupsFailed):
		h.logger.Warn("report run failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("report run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate report: "+err.Error())
	}
}
