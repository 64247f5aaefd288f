package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	t.Run("Should count queries by outcome and mode", func(t *testing.T) {
		c := NewCollector("test", nil)

		c.ObserveQuery("list_thoughts", "SUCCESS", true, 20*time.Millisecond, 1)
		c.ObserveQuery("list_thoughts", "SUCCESS", true, 30*time.Millisecond, 2)
		c.ObserveQuery("list_thoughts", "TRANSIENT", true, time.Second, 3)
		c.ObserveRetry("list_thoughts", "TRANSIENT")

		assert.Equal(t, 2.0, testutil.ToFloat64(c.Queries.WithLabelValues("list_thoughts", "SUCCESS", "read")))
		assert.Equal(t, 1.0, testutil.ToFloat64(c.Queries.WithLabelValues("list_thoughts", "TRANSIENT", "read")))
		assert.Equal(t, 1.0, testutil.ToFloat64(c.QueryRetries.WithLabelValues("list_thoughts", "TRANSIENT")))
	})

	t.Run("Should expose dropped telemetry records", func(t *testing.T) {
		c := NewCollector("test", func() int64 { return 7 })
		assert.Equal(t, 7.0, testutil.ToFloat64(c.TelemetryDropped))
	})

	t.Run("Should serve the registry", func(t *testing.T) {
		c := NewCollector("test", nil)
		c.ObserveHTTP("GET", "/api/v1/graph", 200, 10*time.Millisecond)

		w := httptest.NewRecorder()
		c.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

		body, err := io.ReadAll(w.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "test_http_requests_total")
	})
}

func TestInitTracing_Disabled(t *testing.T) {
	tp, err := InitTracing(TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, tp.Enabled())
	assert.NotNil(t, tp.Tracer())
	assert.NoError(t, tp.Shutdown(context.Background()))
}
