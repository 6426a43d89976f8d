package flow

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/pyflow/internal/namespace"
	"github.com/zheng/pyflow/internal/telemetry"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(strings.TrimPrefix(content, "\n")), 0o644))
	}
	return root
}

var project = map[string]string{
	"app.py": `
from helpers import util

def main():
    util.prepare()
    return finish()

def finish():
    pass
`,
	"helpers/__init__.py": "",
	"helpers/util.py": `
def prepare():
    load()
`,
}

func TestPipeline_Build(t *testing.T) {
	root := writeProject(t, project)
	metrics := telemetry.NewMetrics(nil)
	p := New(nil, WithMetrics(metrics))

	res, err := p.Build(context.Background(), Request{Target: filepath.Join(root, "app.py") + ":main", Depth: 2})
	require.NoError(t, err)
	assert.Equal(t, "app.main", res.Entry)
	assert.Equal(t, 2, res.Graph.Stats.Expansions)
	assert.Equal(t, 1, res.Graph.Stats.Unresolved)
	assert.NotEmpty(t, res.Fingerprint)
	assert.Positive(t, res.Duration)

	// Only what the build touched is loaded.
	assert.Equal(t, []string{
		filepath.Join(root, "app.py"),
		filepath.Join(root, "helpers", "util.py"),
	}, res.Files)

	fp, err := Fingerprint(res.Files)
	require.NoError(t, err)
	assert.Equal(t, res.Fingerprint, fp)

	require.NoError(t, os.WriteFile(filepath.Join(root, "helpers", "util.py"), []byte("def prepare():\n    pass\n"), 0o644))
	fp, err = Fingerprint(res.Files)
	require.NoError(t, err)
	assert.NotEqual(t, res.Fingerprint, fp)
}

func TestPipeline_BuildErrors(t *testing.T) {
	root := writeProject(t, project)
	p := New(nil)

	_, err := p.Build(context.Background(), Request{Target: "app.main"})
	assert.ErrorIs(t, err, namespace.ErrInvalidTarget)

	_, err = p.Build(context.Background(), Request{Target: filepath.Join(root, "app.py") + ":missing"})
	assert.ErrorIs(t, err, namespace.ErrAttributeNotFound)
}

func TestPipeline_BuildAll(t *testing.T) {
	root := writeProject(t, project)
	p := New(nil)

	results, err := p.BuildAll(context.Background(), []Request{
		{Target: filepath.Join(root, "app.py") + ":main", Depth: 0},
		{Target: "helpers.util:prepare", Roots: []string{root}, Depth: 1},
		{Target: filepath.Join(root, "app.py") + ":finish", Depth: 1},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "app.main", results[0].Entry)
	assert.Equal(t, 0, results[0].Graph.Stats.Expansions)
	assert.Equal(t, "helpers.util.prepare", results[1].Entry)
	assert.Equal(t, "app.finish", results[2].Entry)

	_, err = p.BuildAll(context.Background(), []Request{
		{Target: filepath.Join(root, "app.py") + ":main"},
		{Target: filepath.Join(root, "nope.py") + ":main"},
	})
	assert.ErrorIs(t, err, namespace.ErrModuleNotFound)
}

func TestRoots(t *testing.T) {
	tests := []struct {
		target string
		extra  []string
		want   []string
	}{
		{target: "src/app.py:main", want: []string{"src"}},
		{target: "app.py:main", extra: []string{"lib"}, want: []string{".", "lib"}},
		{target: "pkg.mod:run", want: []string{"."}},
		{target: "pkg.mod:run", extra: []string{"src"}, want: []string{"src"}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, Roots(tt.target, tt.extra))
		})
	}
}

func TestResult_Touches(t *testing.T) {
	root := writeProject(t, project)
	res, err := New(nil).Build(context.Background(), Request{Target: filepath.Join(root, "app.py") + ":finish"})
	require.NoError(t, err)

	assert.True(t, res.Touches([]string{filepath.Join(root, "app.py")}))
	assert.False(t, res.Touches([]string{filepath.Join(root, "helpers", "util.py")}))
}

func TestSession_Refresh(t *testing.T) {
	root := writeProject(t, map[string]string{
		"app.py":   "def main():\n    step()\n\ndef step():\n    pass\n",
		"other.py": "def run():\n    missing()\n",
		"notes.py": "x = 1\n",
	})
	metrics := telemetry.NewMetrics(nil)
	s := New(nil, WithMetrics(metrics)).NewSession([]Request{
		{Target: filepath.Join(root, "app.py") + ":main", Depth: 1},
		{Target: filepath.Join(root, "other.py") + ":run", Depth: 1},
	})
	ctx := context.Background()

	rebuilt, skipped, err := s.Refresh(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, rebuilt, 2)
	assert.Zero(t, skipped)

	// Unrelated file: only the graph with an unresolved call rebuilds.
	rebuilt, skipped, err = s.Refresh(ctx, []string{filepath.Join(root, "notes.py")})
	require.NoError(t, err)
	require.Len(t, rebuilt, 1)
	assert.Equal(t, "other.run", rebuilt[0].Entry)
	assert.Equal(t, 1, skipped)

	// Touched but identical content.
	app := filepath.Join(root, "app.py")
	require.NoError(t, os.WriteFile(app, []byte("def main():\n    step()\n\ndef step():\n    pass\n"), 0o644))
	rebuilt, skipped, err = s.Refresh(ctx, []string{app})
	require.NoError(t, err)
	assert.Len(t, rebuilt, 1)
	assert.Equal(t, 1, skipped)

	require.NoError(t, os.WriteFile(app, []byte("def main():\n    step()\n    step()\n\ndef step():\n    pass\n"), 0o644))
	rebuilt, _, err = s.Refresh(ctx, []string{app})
	require.NoError(t, err)
	require.Len(t, rebuilt, 2)
	assert.Equal(t, "app.main", rebuilt[0].Entry)
	assert.Equal(t, 2, rebuilt[0].Graph.Stats.Expansions)
	assert.Same(t, rebuilt[0], s.Results()[0])
}

func TestPipeline_Preload(t *testing.T) {
	root := writeProject(t, project)
	res, err := New(nil).Build(context.Background(), Request{
		Target:  filepath.Join(root, "app.py") + ":finish",
		Preload: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "app.py"),
		filepath.Join(root, "helpers", "__init__.py"),
		filepath.Join(root, "helpers", "util.py"),
	}, res.Files)
	assert.True(t, res.Touches([]string{filepath.Join(root, "helpers", "util.py")}))
}

func TestPipeline_LogsUnresolvedCalls(t *testing.T) {
	root := writeProject(t, project)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	res, err := New(logger).Build(context.Background(), Request{Target: filepath.Join(root, "app.py") + ":main", Depth: 2})
	require.NoError(t, err)
	require.Equal(t, 1, res.Graph.Stats.Unresolved)

	var unresolved string
	for _, d := range res.Graph.Diagnostics {
		if d.Kind == "unresolved" {
			unresolved = string(d.Node)
		}
	}
	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `msg="call not expanded"`)
	assert.Contains(t, out, "call=load()")
	assert.Contains(t, out, "reason=")
	assert.Contains(t, out, "node="+unresolved)
}
