package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/pyflow/internal/graph"
	"github.com/zheng/pyflow/internal/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	g := graph.New()
	g.AddNode(graph.Node{ID: "|1", Label: "FunctionDef\nname: 'main'", Kind: graph.NodeKindFunction, Line: 1})
	g.AddNode(graph.Node{ID: "|2", Label: "Call\nrun()", Kind: graph.NodeKindCall, Line: 2})
	g.AddEdge(graph.Edge{From: "|1", To: "|2", Kind: graph.EdgeKindContainment, Constrained: true})
	g.Entry = "|1"
	id, err := db.SaveRun(g, storage.RunMeta{Target: "app.py:main", Depth: 2})
	require.NoError(t, err)

	handler, err := NewServer(db, 0, nil, nil).Handler()
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, id
}

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Runs(t *testing.T) {
	srv, id := newTestServer(t)

	code, body := get(t, srv, "/api/runs")
	require.Equal(t, http.StatusOK, code)
	var runs []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0]["id"])
	assert.Equal(t, id[:8], runs[0]["short"])
	assert.Equal(t, "app.py:main", runs[0]["target"])

	code, body = get(t, srv, "/api/runs/"+id[:8])
	require.Equal(t, http.StatusOK, code)
	var g struct {
		Entry string        `json:"entry"`
		Nodes []interface{} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &g))
	assert.Equal(t, "|1", g.Entry)
	assert.Len(t, g.Nodes, 2)

	code, _ = get(t, srv, "/api/runs/missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_Formats(t *testing.T) {
	srv, id := newTestServer(t)

	code, body := get(t, srv, "/api/runs/"+id+"/dot")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"|1" -> "|2";`)
	assert.Contains(t, body, `label="app.py:main"`)

	code, body = get(t, srv, "/api/runs/"+id+"/mermaid?direction=LR")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "flowchart LR")
	assert.Contains(t, body, "n_1 --> n_2")
}

func TestServer_TraceStatsMetrics(t *testing.T) {
	srv, id := newTestServer(t)

	code, body := get(t, srv, "/api/runs/"+id+"/trace?node="+url.QueryEscape("run()"))
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"direct_predecessors"`)
	assert.Contains(t, body, "前驱")

	code, _ = get(t, srv, "/api/runs/"+id+"/trace")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = get(t, srv, "/api/stats")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"runs":1,"nodes":2,"edges":1,"diagnostics":0}`, body)

	code, body = get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "pyflow_build_duration_seconds")

	code, body = get(t, srv, "/")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "pyflow")
}
