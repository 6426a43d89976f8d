package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/pyflow/internal/flow"
	"github.com/zheng/pyflow/internal/storage"
)

const appSource = `def main(items):
    for item in items:
        if item:
            helper(item)
    return 0

def helper(x):
    print(x)
`

// session feeds lines to a fresh server and returns its decoded responses.
func session(t *testing.T, s *Server, lines ...string) []Response {
	t.Helper()
	var out bytes.Buffer
	s.input = strings.NewReader(strings.Join(lines, "\n") + "\n")
	s.output = &out
	require.NoError(t, s.Run(context.Background()))

	var resps []Response
	sc := bufio.NewScanner(&out)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		var r Response
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		resps = append(resps, r)
	}
	return resps
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	app := filepath.Join(dir, "app.py")
	require.NoError(t, os.WriteFile(app, []byte(appSource), 0o644))

	db, err := storage.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewServer(db, flow.New(nil), Defaults{Depth: 2}, nil), app
}

func call(id int, tool string, args map[string]interface{}) string {
	params, _ := json.Marshal(ToolCallParams{Name: tool, Arguments: args})
	req, _ := json.Marshal(Request{JSONRPC: "2.0", ID: id, Method: "tools/call", Params: params})
	return string(req)
}

func toolText(t *testing.T, r Response) (string, bool) {
	t.Helper()
	require.Nil(t, r.Error)
	raw, err := json.Marshal(r.Result)
	require.NoError(t, err)
	var res ToolCallResult
	require.NoError(t, json.Unmarshal(raw, &res))
	require.Len(t, res.Content, 1)
	return res.Content[0].Text, res.IsError
}

func TestServer_Protocol(t *testing.T) {
	s, _ := newTestServer(t)
	resps := session(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`,
		`not json`,
	)
	require.Len(t, resps, 4)

	initResult, _ := json.Marshal(resps[0].Result)
	assert.Contains(t, string(initResult), `"name":"pyflow"`)
	assert.Contains(t, string(initResult), `"protocolVersion":"2024-11-05"`)

	var list struct {
		Tools []Tool `json:"tools"`
	}
	raw, _ := json.Marshal(resps[1].Result)
	require.NoError(t, json.Unmarshal(raw, &list))
	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"flowgraph", "runs", "trace"}, names)

	require.NotNil(t, resps[2].Error)
	assert.Equal(t, -32601, resps[2].Error.Code)
	require.NotNil(t, resps[3].Error)
	assert.Equal(t, -32700, resps[3].Error.Code)
}

func TestServer_Tools(t *testing.T) {
	s, app := newTestServer(t)
	target := app + ":main"

	resps := session(t, s,
		call(1, "flowgraph", map[string]interface{}{"target": target}),
		call(2, "flowgraph", map[string]interface{}{"target": target, "format": "dot", "depth": 0, "save": true}),
		call(3, "flowgraph", map[string]interface{}{"target": target, "format": "png"}),
		call(4, "flowgraph", map[string]interface{}{"target": app + ":nope"}),
		call(5, "runs", nil),
		call(6, "nope", nil),
	)
	require.Len(t, resps, 6)

	text, isErr := toolText(t, resps[0])
	assert.False(t, isErr)
	assert.Contains(t, text, "```mermaid\n")
	assert.Contains(t, text, "flowchart TB")
	assert.Contains(t, text, "展开: 1")

	text, isErr = toolText(t, resps[1])
	assert.False(t, isErr)
	assert.Contains(t, text, "digraph")
	assert.Contains(t, text, "运行记录: ")
	assert.Contains(t, text, "展开: 0")

	_, isErr = toolText(t, resps[2])
	assert.True(t, isErr)
	_, isErr = toolText(t, resps[3])
	assert.True(t, isErr)

	text, isErr = toolText(t, resps[4])
	assert.False(t, isErr)
	assert.Contains(t, text, target)

	_, isErr = toolText(t, resps[5])
	assert.True(t, isErr)

	runs, err := s.db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	resps = session(t, s,
		call(7, "trace", map[string]interface{}{"run": runs[0].ID[:8], "node": "Return", "up": 1}),
		call(8, "trace", map[string]interface{}{"run": runs[0].ID}),
	)
	require.Len(t, resps, 2)
	text, isErr = toolText(t, resps[0])
	assert.False(t, isErr)
	assert.Contains(t, text, "可达性分析")

	_, isErr = toolText(t, resps[1])
	assert.True(t, isErr)
}
