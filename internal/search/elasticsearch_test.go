package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSearchRequest_MatchAll(t *testing.T) {
	req := buildSearchRequest(TicketQuery{})

	assert.Equal(t, map[string]any{"match_all": map[string]any{}}, req["query"])
	assert.Equal(t, 0, req["from"])
	assert.Equal(t, 20, req["size"])
	assert.Contains(t, req, "aggs")
}

func TestBuildSearchRequest_Filters(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	req := buildSearchRequest(TicketQuery{GateID: "gate_1", Type: "visitor", From: &from, Page: 3, PageSize: 10})

	assert.Equal(t, 20, req["from"])
	assert.Equal(t, 10, req["size"])

	query := req["query"].(map[string]any)
	filters := query["bool"].(map[string]any)["filter"].([]map[string]any)
	require.Len(t, filters, 3)

	assert.Contains(t, filters, map[string]any{"term": map[string]any{"gateId": "gate_1"}})
	assert.Contains(t, filters, map[string]any{"term": map[string]any{"type": "visitor"}})
	assert.Contains(t, filters, map[string]any{"range": map[string]any{"checkoutAt": map[string]any{"gte": "2024-03-01T00:00:00Z"}}})
}

func newFakeCluster(t *testing.T, health int) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case strings.HasPrefix(r.URL.Path, "/_cluster/health"):
			w.WriteHeader(health)
			_, _ = w.Write([]byte(`{"status":"yellow"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestTicketArchiveHealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"cluster ready", http.StatusOK, false},
		{"cluster timed out", http.StatusRequestTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive, err := NewTicketArchive(Config{
				URL:     newFakeCluster(t, tt.status),
				Index:   "tickets",
				Timeout: 2 * time.Second,
			})
			require.NoError(t, err)

			err = archive.HealthCheck(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
