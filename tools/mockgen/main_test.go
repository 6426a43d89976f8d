package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/pyflow/internal/flow"
)

func TestGenerateProject_Builds(t *testing.T) {
	cfg := &Config{
		OutputDir:      t.TempDir(),
		NumPackages:    3,
		NumFuncsPerPkg: 4,
		MaxDepth:       3,
		CallDensity:    2,
		Seed:           7,
	}
	require.NoError(t, generateProject(cfg))

	for _, name := range []string{"main.py", "pkg00/__init__.py", "pkg02/code.py"} {
		_, err := os.Stat(filepath.Join(cfg.OutputDir, filepath.FromSlash(name)))
		require.NoError(t, err, name)
	}

	res, err := flow.New(nil).Build(context.Background(), flow.Request{
		Target: filepath.Join(cfg.OutputDir, "main.py") + ":main",
		Depth:  cfg.MaxDepth,
	})
	require.NoError(t, err)

	// Every generated call targets a generated function.
	assert.Zero(t, res.Graph.Stats.Unresolved)
	assert.Zero(t, res.Graph.Stats.Unsupported)
	assert.Positive(t, res.Graph.Stats.Expansions)
}

func TestGenerateProject_Deterministic(t *testing.T) {
	read := func(dir string) string {
		src, err := os.ReadFile(filepath.Join(dir, "pkg00", "code.py"))
		require.NoError(t, err)
		return string(src)
	}
	a := &Config{OutputDir: t.TempDir(), NumPackages: 2, NumFuncsPerPkg: 5, MaxDepth: 2, CallDensity: 3, Seed: 42}
	b := *a
	b.OutputDir = t.TempDir()
	require.NoError(t, generateProject(a))
	require.NoError(t, generateProject(&b))
	assert.Equal(t, read(a.OutputDir), read(b.OutputDir))
}
