package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisdom-backend/infrastructure/telemetry"
)

func sampleStats() []telemetry.Stat {
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []telemetry.Stat{
		{
			Name:         "graph_data",
			Count:        2,
			AvgElapsedMs: 900,
			MaxElapsedMs: 1200,
			MinElapsedMs: 600,
			LastSeen:     seen,
			Examples: []telemetry.QueryRecord{{
				Name:          "graph_data",
				ElapsedMs:     1200,
				Outcome:       "success",
				Attempts:      1,
				Params:        map[string]any{"token": telemetry.Redacted, "node_id": "humility"},
				RequestPath:   "/api/v1/graph",
				RequestMethod: http.MethodGet,
				RequestID:     "req-7",
			}},
		},
		{Name: "list_quotes", Count: 1, AvgElapsedMs: 250, MaxElapsedMs: 250, MinElapsedMs: 250, LastSeen: seen},
	}
}

func TestRender(t *testing.T) {
	t.Run("Should draw a table with the slowest example", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, render(&out, sampleStats(), "table", ""))

		text := out.String()
		assert.Contains(t, text, "Top 2 slowest groups by query_name")
		assert.Contains(t, text, "graph_data")
		assert.Contains(t, text, "list_quotes")
		assert.Contains(t, text, "900.00ms")
		assert.Contains(t, text, "Slowest example")
		assert.Contains(t, text, "GET /api/v1/graph")
		assert.Contains(t, text, "node_id=humility token="+telemetry.Redacted)
	})

	t.Run("Should encode json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, render(&out, sampleStats(), "json", ""))

		var decoded []telemetry.Stat
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, "graph_data", decoded[0].Name)
	})

	t.Run("Should say when nothing matched", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, render(&out, nil, "table", ""))
		assert.Equal(t, "No matching queries found.\n", out.String())
	})
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slow.log")
	lines := []string{
		`{"level":"warn","msg":"Slow query","context":{"query_name":"get_tags","elapsed_ms":300,"outcome":"success","attempts":1}}`,
		`not json`,
		`{"level":"warn","msg":"Slow query","context":{"query_name":"get_tags","elapsed_ms":500,"outcome":"success","attempts":1}}`,
		`{"level":"warn","msg":"Slow query","context":{"query_name":"search_content","elapsed_ms":50,"outcome":"success","attempts":1}}`,
	}
	var content bytes.Buffer
	for _, l := range lines {
		content.WriteString(l + "\n")
	}
	require.NoError(t, os.WriteFile(path, content.Bytes(), 0o644))

	t.Run("Should rank the log filtered by elapsed time", func(t *testing.T) {
		cmd := newAnalyzeCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--log-file", path, "--min-time", "100", "--output", "json"})

		require.NoError(t, cmd.Execute())

		var stats []telemetry.Stat
		require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
		require.Len(t, stats, 1)
		assert.Equal(t, "get_tags", stats[0].Name)
		assert.Equal(t, 2, stats[0].Count)
		assert.InDelta(t, 400, stats[0].AvgElapsedMs, 0.001)
	})

	t.Run("Should report a missing log file", func(t *testing.T) {
		cmd := newAnalyzeCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--log-file", filepath.Join(dir, "missing.log")})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "Log file not found")
	})

	t.Run("Should reject an unknown output", func(t *testing.T) {
		cmd := newAnalyzeCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--log-file", path, "--output", "xml"})

		assert.Error(t, cmd.Execute())
	})
}

func TestFetchSlowQueries(t *testing.T) {
	t.Run("Should read the admin endpoint", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/admin/slow-queries", r.URL.Path)
			assert.Equal(t, "3", r.URL.Query().Get("top"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"results": sampleStats(), "top": 3})
		}))
		defer srv.Close()

		stats, err := fetchSlowQueries(context.Background(), srv.Client(), srv.URL+"/", 3)
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, "graph_data", stats[0].Name)
	})

	t.Run("Should fail on a non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := fetchSlowQueries(context.Background(), srv.Client(), srv.URL, 3)
		assert.Error(t, err)
	})
}
