package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/activityreport/internal/adapter/driving/http"
	"github.com/ericfisherdev/activityreport/internal/adapter/driving/report"
	"github.com/ericfisherdev/activityreport/internal/application"
	"github.com/ericfisherdev/activityreport/internal/domain/model"
	"github.com/ericfisherdev/activityreport/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockRunner struct {
	out  *application.ReportOutcome
	err  error
	reqs []application.ReportRequest
}

func (m *mockRunner) Run(_ context.Context, req application.ReportRequest) (*application.ReportOutcome, error) {
	m.reqs = append(m.reqs, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.out, nil
}

type mockCache struct {
	stats        model.CacheStats
	clearAll     int
	clearExpired int
}

func (m *mockCache) Stats(_ context.Context) model.CacheStats { return m.stats }
func (m *mockCache) ClearAll(_ context.Context) {
	m.clearAll++
	m.stats = model.CacheStats{Namespaces: []model.NamespaceStats{
		{Namespace: model.NamespaceUsers},
		{Namespace: model.NamespaceProjects},
	}}
}
func (m *mockCache) ClearExpired(_ context.Context) { m.clearExpired++ }
func (m *mockCache) Duration() time.Duration       { return 24 * time.Hour }

// --- Helpers ---

var fixedNow = time.Date(2025, 3, 13, 8, 0, 0, 0, time.UTC)

func testOutcome() *application.ReportOutcome {
	stats := model.NewStatistics()
	stats.Total = 1
	stats.ByCategory[model.CategoryBugFix] = 1
	stats.ByProject["api"] = 1

	return &application.ReportOutcome{
		RunID: "run-1",
		User:  model.UserMeta{ID: 7, Username: "dana", Name: "Dana Lee"},
		Range: model.DateRange{
			Start: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		},
		Source:     model.SourceEvents,
		EventCount: 1,
		Result: &model.ClassificationResult{
			Activities: []model.Activity{{
				ID:          "e1",
				Kind:        model.ActivityKindCommit,
				Title:       "fix: null pointer crash",
				ProjectName: "api",
				ProjectID:   42,
				Author:      "Dana Lee",
				CreatedAt:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
				Category:    model.CategoryBugFix,
			}},
			MatchReasons: map[string][]string{"e1": {`Matched keyword: "fix" (Bug fix)`}},
			Statistics:   stats,
		},
	}
}

func emptyOutcome() *application.ReportOutcome {
	out := testOutcome()
	out.EventCount = 0
	out.Result = &model.ClassificationResult{MatchReasons: map[string][]string{}, Statistics: model.NewStatistics()}
	return out
}

func setupRouter(runner *mockRunner, cache *mockCache) http.Handler {
	logger := slog.New(slog.DiscardHandler)
	h := httphandler.NewHandler(runner, cache, logger).WithClock(func() time.Time { return fixedNow })
	return httphandler.NewRouter(h, logger)
}

func do(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// --- Tests ---

func TestReport_MarkdownDefault(t *testing.T) {
	runner := &mockRunner{out: testOutcome()}
	router := setupRouter(runner, &mockCache{})

	rec := do(t, router, http.MethodGet, "/api/v1/report?start=2025-03-10&end=2025-03-12")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "run-1", rec.Header().Get("X-Run-Id"))
	assert.Contains(t, rec.Body.String(), "# Activity Report")
	assert.Contains(t, rec.Body.String(), "fix: null pointer crash")

	require.Len(t, runner.reqs, 1)
	assert.Equal(t, model.SourceEvents, runner.reqs[0].Source)
	assert.Equal(t, "2025-03-10", runner.reqs[0].Range.Start.Format(model.DateLayout))
	assert.Equal(t, "2025-03-12", runner.reqs[0].Range.End.Format(model.DateLayout))
}

func TestReport_EndDefaultsToToday(t *testing.T) {
	runner := &mockRunner{out: testOutcome()}
	router := setupRouter(runner, &mockCache{})

	rec := do(t, router, http.MethodGet, "/api/v1/report?start=2025-03-10")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.reqs, 1)
	assert.Equal(t, "2025-03-13", runner.reqs[0].Range.End.Format(model.DateLayout))
}

func TestReport_JSONFormat(t *testing.T) {
	runner := &mockRunner{out: testOutcome()}
	router := setupRouter(runner, &mockCache{})

	rec := do(t, router, http.MethodGet, "/api/v1/report?start=2025-03-10&end=2025-03-12&format=json&source=commits")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc report.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, 1, doc.Statistics.Total)
	require.Len(t, doc.Activities, 1)
	assert.Equal(t, "bug_fix", doc.Activities[0].Category)

	require.Len(t, runner.reqs, 1)
	assert.Equal(t, model.SourceCommits, runner.reqs[0].Source)
}

func TestReport_HTMLFormat(t *testing.T) {
	router := setupRouter(&mockRunner{out: testOutcome()}, &mockCache{})

	rec := do(t, router, http.MethodGet, "/api/v1/report?start=2025-03-10&end=2025-03-12&format=html")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Activity Report</h1>")
}

func TestReport_GroupByAndReasons(t *testing.T) {
	router := setupRouter(&mockRunner{out: testOutcome()}, &mockCache{})

	rec := do(t, router, http.MethodGet, "/api/v1/report?start=2025-03-10&end=2025-03-12&group_by=category&show_reasons=true")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "### Bug fix (1 activity)")
	assert.Contains(t, rec.Body.String(), "**Match reasons**")
}

func TestReport_NoActivityNotice(t *testing.T) {
	router := setupRouter(&mockRunner{out: emptyOutcome()}, &mockCache{})

	rec := do(t, router, http.MethodGet, "/api/v1/report?start=2025-03-10&end=2025-03-12")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "No activity found for Dana Lee (dana) in 2025-03-10 to 2025-03-12.\n", rec.Body.String())
}

func TestReport_BadRequests(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"missing start", ""},
		{"malformed start", "start=03/10/2025"},
		{"malformed end", "start=2025-03-10&end=tomorrow"},
		{"end before start", "start=2025-03-12&end=2025-03-10"},
		{"unknown format", "start=2025-03-10&format=pdf"},
		{"unknown group", "start=2025-03-10&group_by=author"},
		{"unknown source", "start=2025-03-10&source=issues"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{out: testOutcome()}
			router := setupRouter(runner, &mockCache{})

			rec := do(t, router, http.MethodGet, "/api/v1/report?"+tt.query)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec)["error"])
			assert.Empty(t, runner.reqs)
		})
	}
}

func TestReport_RemoteErrorIsBadGateway(t *testing.T) {
	remote := &driven.RemoteError{Kind: driven.RemoteErrAuth, Status: http.StatusUnauthorized, Op: "get current user"}
	runner := &mockRunner{err: fmt.Errorf("resolve current user: %w", remote)}
	router := setupRouter(runner, &mockCache{})

	rec := do(t, router, http.MethodGet, "/api/v1/report?start=2025-03-10")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "auth", body["kind"])
	assert.Contains(t, body["error"], "authentication failed")
}

func TestReport_AllLookupsFailedIsBadGateway(t *testing.T) {
	runner := &mockRunner{err: fmt.Errorf("%w (2 events)", application.ErrAllLookupsFailed)}
	router := setupRouter(runner, &mockCache{})

	rec := do(t, router, http.MethodGet, "/api/v1/report?start=2025-03-10")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decodeError(t, rec)["error"], "all project lookups failed")
}

func TestReport_InternalError(t *testing.T) {
	runner := &mockRunner{err: errors.New("statistics drifted")}
	router := setupRouter(runner, &mockCache{})

	rec := do(t, router, http.MethodGet, "/api/v1/report?start=2025-03-10")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to generate report: statistics drifted", decodeError(t, rec)["error"])
}

func TestReport_CanceledRun(t *testing.T) {
	runner := &mockRunner{err: fmt.Errorf("resolve current user: %w", context.Canceled)}
	router := setupRouter(runner, &mockCache{})

	rec := do(t, router, http.MethodGet, "/api/v1/report?start=2025-03-10")

	assert.Equal(t, 499, rec.Code)
	assert.Equal(t, "request canceled", decodeError(t, rec)["error"])
}

func TestReport_CanceledRemoteCall(t *testing.T) {
	remote := &driven.RemoteError{Kind: driven.RemoteErrNetwork, Op: "list events for dana", Err: context.Canceled}
	router := setupRouter(&mockRunner{err: remote}, &mockCache{})

	rec := do(t, router, http.MethodGet, "/api/v1/report?start=2025-03-10")

	assert.Equal(t, 499, rec.Code)
}

func TestCacheStats(t *testing.T) {
	stored := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	cache := &mockCache{stats: model.CacheStats{Namespaces: []model.NamespaceStats{
		{Namespace: model.NamespaceUsers, Entries: 1, Oldest: stored, Newest: stored},
		{Namespace: model.NamespaceProjects},
	}}}
	router := setupRouter(&mockRunner{}, cache)

	rec := do(t, router, http.MethodGet, "/api/v1/cache/stats")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.CacheStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(86400), resp.DurationSeconds)
	require.Len(t, resp.Namespaces, 2)
	assert.Equal(t, "users", resp.Namespaces[0].Namespace)
	assert.Equal(t, 1, resp.Namespaces[0].Entries)
	assert.Equal(t, "2025-03-12T10:00:00Z", resp.Namespaces[0].Oldest)
	assert.Empty(t, resp.Namespaces[1].Oldest)
}

func TestClearCache(t *testing.T) {
	cache := &mockCache{stats: model.CacheStats{Namespaces: []model.NamespaceStats{
		{Namespace: model.NamespaceUsers, Entries: 3},
	}}}
	router := setupRouter(&mockRunner{}, cache)

	rec := do(t, router, http.MethodPost, "/api/v1/cache/clear")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, cache.clearAll)
	var resp httphandler.CacheActionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "clear", resp.Action)
	assert.Equal(t, 0, resp.Entries)
}

func TestSweepCache(t *testing.T) {
	cache := &mockCache{stats: model.CacheStats{Namespaces: []model.NamespaceStats{
		{Namespace: model.NamespaceUsers, Entries: 2},
		{Namespace: model.NamespaceProjects, Entries: 1},
	}}}
	router := setupRouter(&mockRunner{}, cache)

	rec := do(t, router, http.MethodPost, "/api/v1/cache/sweep")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, cache.clearExpired)
	var resp httphandler.CacheActionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sweep", resp.Action)
	assert.Equal(t, 3, resp.Entries)
}

func TestCacheMaintenanceRequiresPost(t *testing.T) {
	cache := &mockCache{}
	router := setupRouter(&mockRunner{}, cache)

	rec := do(t, router, http.MethodGet, "/api/v1/cache/clear")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Zero(t, cache.clearAll)
}

func TestHealth(t *testing.T) {
	router := setupRouter(&mockRunner{}, &mockCache{})

	rec := do(t, router, http.MethodGet, "/api/v1/health")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "2025-03-13T08:00:00Z", resp.Time)
}

func TestRecoveryMiddleware(t *testing.T) {
	// A runner returning neither an outcome nor an error makes rendering panic.
	router := setupRouter(&mockRunner{}, &mockCache{})

	rec := do(t, router, http.MethodGet, "/api/v1/report?start=2025-03-10")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeError(t, rec)["error"])
}
