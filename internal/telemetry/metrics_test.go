package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/pyflow/internal/graph"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(nil)

	m.RecordBuild(graph.Stats{Nodes: 20, Expansions: 3, Unresolved: 1}, 40*time.Millisecond)
	m.RecordBuild(graph.Stats{Nodes: 5, Expansions: 1}, 10*time.Millisecond)
	m.RecordFailure(time.Millisecond)
	m.RecordSkipped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runsTotal.WithLabelValues(StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues(StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues(StatusSkipped)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.expansionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.unresolvedTotal))

	n, err := testutil.GatherAndCount(m.registry, "pyflow_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(nil)
	m.RecordBuild(graph.Stats{Nodes: 9}, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `pyflow_runs_total{status="ok"} 1`))
	assert.Contains(t, body, "pyflow_graph_nodes_count 1")
	assert.Contains(t, body, "pyflow_build_duration_seconds_bucket")
}
