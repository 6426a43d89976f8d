package namespace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/pyflow/internal/syntax"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

var sampleProject = map[string]string{
	"app.py": `
import helpers as h
import pkg.tools
import missing
from pkg import tools as t2
from pkg.tools import run

try:
    import fast as speed
except ImportError:
    speed = None

LIMIT = 3

def local():
    pass

def main():
    local()
    h.assist()
    pkg.tools.run()
    t2.Tool.use()
    h.Worker()
    missing.thing()
    obj.method()
    run()
    LIMIT()
    h.Worker.ping()
`,
	"helpers.py": `
class Base:
    def ping(self):
        pass

class Worker(Base):
    retries = 3
    def __init__(self):
        self.go()
    def go(self):
        self.ping()

def assist():
    pass
`,
	"pkg/__init__.py": "from . import tools\n",
	"pkg/tools.py": `
from ..helpers import Base

class Tool:
    def use(self):
        pass

def run():
    pass
`,
}

func mainCalls(t *testing.T, prog *Program) (Map, []*syntax.Call) {
	t.Helper()
	mod, err := prog.ImportModule(context.Background(), "app")
	require.NoError(t, err)
	stmt, ok := mod.Lookup("main")
	require.True(t, ok)
	var calls []*syntax.Call
	for _, s := range stmt.(*syntax.FunctionDef).Body {
		calls = append(calls, s.(*syntax.ExprStmt).Value.(*syntax.Call))
	}
	return prog.Namespace(mod), calls
}

func TestBuild_Namespace(t *testing.T) {
	root := writeProject(t, sampleProject)
	prog := NewProgram([]string{root})

	ns, _ := mainCalls(t, prog)
	assert.Equal(t, "app", ns.Module)
	assert.Equal(t, map[string]string{
		MainKey:     "app",
		"h":         "helpers",
		"pkg":       "pkg",
		"pkg.tools": "pkg.tools",
		"missing":   "missing",
		"t2":        "pkg.tools",
		"speed":     "fast",
	}, ns.Entries())

	_, ok := ns.Canonical("run")
	assert.False(t, ok, "direct bindings are not namespaces")

	assert.Equal(t, "helpers.assist", ns.Qualify("h.assist"))
	assert.Equal(t, "helpers", ns.Qualify("h"))
	assert.Equal(t, "os.path", ns.Qualify("os.path"))
}

func TestBuild_RelativeImports(t *testing.T) {
	root := writeProject(t, sampleProject)
	prog := NewProgram([]string{root})

	pkg, err := prog.ImportModule(context.Background(), "pkg")
	require.NoError(t, err)
	assert.True(t, pkg.Package)
	ns := prog.Namespace(pkg)
	canonical, ok := ns.Canonical("tools")
	require.True(t, ok)
	assert.Equal(t, "pkg.tools", canonical)

	assert.Equal(t, "helpers", resolveRelative(&syntax.Module{Name: "pkg.tools"}, "helpers", 2))
	assert.Equal(t, "pkg", resolveRelative(&syntax.Module{Name: "pkg.tools"}, "", 1))
	assert.Equal(t, "pkg.sub", resolveRelative(&syntax.Module{Name: "pkg", Package: true}, "sub", 1))
}

func TestResolver_Resolve(t *testing.T) {
	root := writeProject(t, sampleProject)
	prog := NewProgram([]string{root})
	res := NewResolver(prog)
	ns, calls := mainCalls(t, prog)
	require.Len(t, calls, 10)
	ctx := context.Background()

	tests := []struct {
		name     string
		call     *syntax.Call
		qualname string
		context  string
		err      error
	}{
		{name: "bare name", call: calls[0], qualname: "app.local"},
		{name: "module function through alias", call: calls[1], qualname: "helpers.assist"},
		{name: "dotted module path", call: calls[2], qualname: "pkg.tools.run"},
		{name: "module class method", call: calls[3], qualname: "pkg.tools.Tool.use", context: "Tool"},
		{name: "constructor", call: calls[4], qualname: "helpers.Worker.__init__", context: "Worker"},
		{name: "missing module", call: calls[5], err: ErrModuleNotFound},
		{name: "instance method", call: calls[6], err: ErrUnsupportedCallee},
		{name: "direct binding", call: calls[7], err: ErrAttributeNotFound},
		{name: "not callable", call: calls[8], err: ErrNotCallable},
		{name: "inherited method", call: calls[9], qualname: "helpers.Base.ping", context: "Worker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := res.Resolve(ctx, tt.call, ns, nil)
			if tt.err != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.err)
				var rerr *ResolutionError
				assert.ErrorAs(t, err, &rerr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.qualname, target.Qualname())
			assert.Equal(t, target.Module.Name, target.Namespace.Module)
			if tt.context == "" {
				assert.Nil(t, target.Context)
			} else {
				require.NotNil(t, target.Context)
				assert.Equal(t, tt.context, target.Context.Class.Name)
			}
		})
	}
}

func TestResolver_ResolveSelf(t *testing.T) {
	root := writeProject(t, sampleProject)
	prog := NewProgram([]string{root})
	res := NewResolver(prog)
	ctx := context.Background()

	helpers, err := prog.ImportModule(ctx, "helpers")
	require.NoError(t, err)
	stmt, _ := helpers.Lookup("Worker")
	worker := stmt.(*syntax.ClassDef)
	goMethod, _ := worker.Method("go")
	selfPing := goMethod.Body[0].(*syntax.ExprStmt).Value.(*syntax.Call)
	ns := prog.Namespace(helpers)

	_, err = res.Resolve(ctx, selfPing, ns, nil)
	assert.ErrorIs(t, err, ErrNoClassContext)

	target, err := res.Resolve(ctx, selfPing, ns, &ClassRef{Module: helpers, Class: worker})
	require.NoError(t, err)
	assert.Equal(t, "helpers.Base.ping", target.Qualname())
	assert.Nil(t, target.Context, "self calls keep the current class context")
}

func TestProgram_FindCallable(t *testing.T) {
	root := writeProject(t, sampleProject)
	prog := NewProgram([]string{root})
	ctx := context.Background()

	c, err := prog.FindCallable(ctx, filepath.Join(root, "app.py")+":main")
	require.NoError(t, err)
	assert.Equal(t, "app.main", c.Qualname())
	assert.Nil(t, c.ClassRef())

	c, err = prog.FindCallable(ctx, "helpers:Worker.go")
	require.NoError(t, err)
	assert.Equal(t, "helpers.Worker.go", c.Qualname())
	require.NotNil(t, c.ClassRef())

	_, err = prog.FindCallable(ctx, "helpers")
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = prog.FindCallable(ctx, "helpers:nothing")
	assert.ErrorIs(t, err, ErrAttributeNotFound)

	_, err = prog.FindCallable(ctx, "nowhere:main")
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestProgram_CachesAndFingerprints(t *testing.T) {
	root := writeProject(t, sampleProject)
	prog := NewProgram([]string{root})
	ctx := context.Background()

	first, err := prog.ImportModule(ctx, "helpers")
	require.NoError(t, err)
	second, err := prog.ImportModule(ctx, "helpers")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = prog.ImportModule(ctx, "absent")
	assert.ErrorIs(t, err, ErrModuleNotFound)
	assert.False(t, prog.HasModule("absent"))

	fp := prog.Fingerprint()
	assert.NotEmpty(t, fp)
	assert.Equal(t, fp, prog.Fingerprint())

	require.NoError(t, prog.Preload(ctx))
	assert.Len(t, prog.Files(), 4)
	assert.NotEqual(t, fp, prog.Fingerprint())
}
