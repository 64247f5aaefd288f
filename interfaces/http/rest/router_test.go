package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisdom-backend/application/queries"
	"wisdom-backend/infrastructure/graphdb"
	"wisdom-backend/infrastructure/observability"
	"wisdom-backend/infrastructure/telemetry"
	apperrors "wisdom-backend/pkg/errors"
)

// stubExecutor answers queries from a script and reports each one to the
// recorder the way the real executor does.
type stubExecutor struct {
	recorder *telemetry.Recorder
	execute  func(q graphdb.Query) (*graphdb.Result, error)
	health   error
}

func (s *stubExecutor) Execute(ctx context.Context, q graphdb.Query) (*graphdb.Result, error) {
	result, err := s.execute(q)
	outcome := graphdb.OutcomeSuccess
	if err != nil {
		outcome = graphdb.KindOf(err).String()
	}
	s.recorder.Record(ctx, telemetry.Entry{
		Name:     q.Name,
		Elapsed:  150 * time.Millisecond,
		Params:   q.Params,
		Outcome:  outcome,
		Attempts: 1,
		ReadOnly: q.ReadOnly,
	})
	return result, err
}

func (s *stubExecutor) HealthCheck(context.Context) error {
	return s.health
}

type testServer struct {
	handler  http.Handler
	exec     *stubExecutor
	recorder *telemetry.Recorder
}

func newTestServer(t *testing.T, execute func(q graphdb.Query) (*graphdb.Result, error)) *testServer {
	t.Helper()
	recorder := telemetry.NewRecorder(telemetry.DefaultConfig(), zap.NewNop())
	t.Cleanup(func() { recorder.Close() })

	exec := &stubExecutor{recorder: recorder, execute: execute}
	service := queries.NewContentService(exec, zap.NewNop())
	collector := observability.NewCollector("test", recorder.Dropped)

	router := NewRouter(RouterConfig{EnableCORS: true, CORSOrigins: []string{"*"}}, service, recorder, collector, nil, zap.NewNop())
	return &testServer{handler: router.Setup(), exec: exec, recorder: recorder}
}

func (s *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func rows(records ...graphdb.Record) func(graphdb.Query) (*graphdb.Result, error) {
	return func(graphdb.Query) (*graphdb.Result, error) {
		return &graphdb.Result{Records: records, Attempts: 1}, nil
	}
}

func TestRouter_Health(t *testing.T) {
	t.Run("Should report liveness without the database", func(t *testing.T) {
		srv := newTestServer(t, rows())
		srv.exec.health = errors.New("unreachable")

		rec := srv.get(t, "/health")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Should report readiness from the health check", func(t *testing.T) {
		srv := newTestServer(t, rows())

		rec := srv.get(t, "/ready")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

		srv.exec.health = &graphdb.QueryError{Name: "health_check", Kind: graphdb.KindUnavailable, Attempts: 3}
		rec = srv.get(t, "/ready")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body map[string]string
		decode(t, rec, &body)
		assert.Equal(t, "degraded", body["status"])
	})
}

func TestRouter_Listings(t *testing.T) {
	t.Run("Should page a listing", func(t *testing.T) {
		var got graphdb.Query
		srv := newTestServer(t, func(q graphdb.Query) (*graphdb.Result, error) {
			got = q
			return &graphdb.Result{Records: []graphdb.Record{{"id": "q-1"}}}, nil
		})

		rec := srv.get(t, "/api/v1/quotes?page=2&page_size=5")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Results  []map[string]interface{} `json:"results"`
			Page     int                      `json:"page"`
			PageSize int                      `json:"page_size"`
		}
		decode(t, rec, &body)
		assert.Equal(t, 2, body.Page)
		assert.Equal(t, 5, body.PageSize)
		assert.Len(t, body.Results, 1)
		assert.Equal(t, queries.QueryListQuotes, got.Name)
		assert.Equal(t, 5, got.Params["skip"])
	})

	t.Run("Should return an empty list rather than null", func(t *testing.T) {
		srv := newTestServer(t, rows())
		rec := srv.get(t, "/api/v1/thoughts")
		assert.Contains(t, rec.Body.String(), `"results":[]`)
	})

	t.Run("Should reject malformed paging", func(t *testing.T) {
		srv := newTestServer(t, rows())
		rec := srv.get(t, "/api/v1/topics?page=abc")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRouter_Items(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		execute    func(graphdb.Query) (*graphdb.Result, error)
		wantStatus int
	}{
		{"found", "/api/v1/items/topic/humility", rows(graphdb.Record{"type": "TOPIC"}), http.StatusOK},
		{"missing", "/api/v1/items/QUOTE/nope", rows(), http.StatusNotFound},
		{"bad type", "/api/v1/items/CONTENT/x", rows(), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run("Should answer "+tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.execute)
			rec := srv.get(t, tt.target)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRouter_QueryFailures(t *testing.T) {
	tests := []struct {
		kind       graphdb.FailureKind
		wantStatus int
		wantCode   string
	}{
		{graphdb.KindUnavailable, http.StatusServiceUnavailable, "GRAPH_UNAVAILABLE"},
		{graphdb.KindTransient, http.StatusServiceUnavailable, "GRAPH_UNAVAILABLE"},
		{graphdb.KindSessionExpired, http.StatusServiceUnavailable, "GRAPH_SESSION_EXPIRED"},
		{graphdb.KindAuth, http.StatusBadGateway, "GRAPH_AUTH"},
		{graphdb.KindSyntax, http.StatusInternalServerError, "GRAPH_QUERY_INVALID"},
		{graphdb.KindUnknown, http.StatusInternalServerError, "GRAPH_QUERY_FAILED"},
	}

	for _, tt := range tests {
		t.Run("Should map "+tt.kind.String(), func(t *testing.T) {
			srv := newTestServer(t, func(q graphdb.Query) (*graphdb.Result, error) {
				return nil, &graphdb.QueryError{
					Name:  q.Name,
					Kind:  tt.kind,
					Cause: errors.New("Neo.ClientError.Statement.SyntaxError: vendor detail"),
				}
			})

			rec := srv.get(t, "/api/v1/search?q=grace")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body apperrors.ErrorResponse
			decode(t, rec, &body)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.RequestID)
			assert.NotContains(t, rec.Body.String(), "vendor detail")
		})
	}
}

func TestRouter_Graph(t *testing.T) {
	graphRow := graphdb.Record{
		"nodes": []interface{}{
			map[string]interface{}{"id": "t1", "labels": []interface{}{"TOPIC"}},
			map[string]interface{}{"id": "q1", "labels": []interface{}{"QUOTE"}},
		},
		"links": []interface{}{
			map[string]interface{}{"source": "t1", "target": "q1", "type": "HAS_CHILD"},
		},
	}

	t.Run("Should project by type", func(t *testing.T) {
		srv := newTestServer(t, rows(graphRow))

		rec := srv.get(t, "/api/v1/graph?type=topic")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Nodes []map[string]interface{} `json:"nodes"`
			Links []map[string]interface{} `json:"links"`
		}
		decode(t, rec, &body)
		assert.Len(t, body.Nodes, 1)
		assert.Empty(t, body.Links)
	})

	t.Run("Should reject unknown types", func(t *testing.T) {
		srv := newTestServer(t, rows(graphRow))
		rec := srv.get(t, "/api/v1/graph?type=planet")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRouter_SlowQueries(t *testing.T) {
	t.Run("Should rank recorded queries with their request", func(t *testing.T) {
		srv := newTestServer(t, rows())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tags/faith", nil)
		req.Header.Set("X-Request-ID", "req-42")
		srv.handler.ServeHTTP(httptest.NewRecorder(), req)

		records := srv.recorder.Records()
		require.Len(t, records, 1)
		assert.Equal(t, "/api/v1/tags/faith", records[0].RequestPath)
		assert.Equal(t, "req-42", records[0].RequestID)

		rec := srv.get(t, "/api/v1/admin/slow-queries?top=5")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Results []telemetry.Stat `json:"results"`
			Top     int              `json:"top"`
		}
		decode(t, rec, &body)
		assert.Equal(t, 5, body.Top)
		require.Len(t, body.Results, 1)
		assert.Equal(t, queries.QueryItemsByTag, body.Results[0].Name)
		assert.Equal(t, 1, body.Results[0].Count)
	})

	t.Run("Should reject a negative top", func(t *testing.T) {
		srv := newTestServer(t, rows())
		rec := srv.get(t, "/api/v1/admin/slow-queries?top=-1")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRouter_Metrics(t *testing.T) {
	srv := newTestServer(t, rows())
	srv.get(t, "/api/v1/quotes")

	rec := srv.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/v1/quotes"`)
}
