package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/activityreport/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body. Kind is set for
// failures of the remote API.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// CacheStatsResponse is the JSON representation of the cache statistics.
type CacheStatsResponse struct {
	DurationSeconds int64                    `json:"duration_seconds"`
	Namespaces      []NamespaceStatsResponse `json:"namespaces"`
}

// NamespaceStatsResponse describes one cache namespace.
type NamespaceStatsResponse struct {
	Namespace string `json:"namespace"`
	Entries   int    `json:"entries"`
	Expired   int    `json:"expired"`
	Oldest    string `json:"oldest,omitempty"`
	Newest    string `json:"newest,omitempty"`
}

// CacheActionResponse acknowledges a cache maintenance request.
type CacheActionResponse struct {
	Action  string `json:"action"`
	Entries int    `json:"entries"`
}

// toCacheStatsResponse converts cache statistics to their JSON representation.
func toCacheStatsResponse(stats model.CacheStats, duration time.Duration) CacheStatsResponse {
	resp := CacheStatsResponse{
		DurationSeconds: int64(duration / time.Second),
		Namespaces:      make([]NamespaceStatsResponse, 0, len(stats.Namespaces)),
	}
	for _, ns := range stats.Namespaces {
		resp.Namespaces = append(resp.Namespaces, NamespaceStatsResponse{
			Namespace: string(ns.Namespace),
			Entries:   ns.Entries,
			Expired:   ns.Expired,
			Oldest:    formatTime(ns.Oldest),
			Newest:    formatTime(ns.Newest),
		})
	}
	return resp
}

// formatTime renders t as RFC 3339 in UTC, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
