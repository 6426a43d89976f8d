package label

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/pyflow/internal/namespace"
	"github.com/zheng/pyflow/internal/syntax"
)

func parseStmt(t *testing.T, src string) syntax.Stmt {
	t.Helper()
	mod, err := syntax.NewParser().Parse(context.Background(), []byte(src+"\n"), "t.py", "t")
	require.NoError(t, err)
	require.NotEmpty(t, mod.Body)
	return mod.Body[0]
}

func parseExpr(t *testing.T, src string) syntax.Expr {
	t.Helper()
	stmt, ok := parseStmt(t, src).(*syntax.ExprStmt)
	require.True(t, ok, "%q is not an expression statement", src)
	return stmt.Value
}

func TestRender(t *testing.T) {
	ns := namespace.NewMap("app", map[string]string{"np": "numpy", "h": "helpers"})

	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "chained compare", src: "0 < x <= 10", want: "0 < x <= 10"},
		{name: "membership", src: "a not in b", want: "a not in b"},
		{name: "identity", src: "a is not None", want: "a is not None"},
		{name: "binop", src: "a + b * 2", want: "a + b * 2"},
		{name: "floor div", src: "a // b", want: "a // b"},
		{name: "unary minus", src: "-x", want: "-x"},
		{name: "not", src: "not ready", want: "not ready"},
		{name: "invert", src: "~mask", want: "~mask"},
		{name: "boolop chain", src: "a and b and c", want: "a and b and c"},
		{name: "call with alias", src: "np.array(xs, dtype=int)", want: "numpy.array(xs, dtype=int)"},
		{name: "call with splats", src: "f(a, *xs, k=v, **kw)", want: "f(a, *xs, k=v, **kw)"},
		{name: "bare alias", src: "h", want: "helpers"},
		{name: "attribute", src: "obj.field", want: "obj.field"},
		{name: "list", src: "[1, 2]", want: "[1, 2]"},
		{name: "tuple", src: "(1, 2)", want: "(1, 2)"},
		{name: "single tuple", src: "(1,)", want: "(1,)"},
		{name: "set", src: "{a, b}", want: "{a, b}"},
		{name: "dict", src: "{'k': v, **rest}", want: "{'k': v, **rest}"},
		{name: "subscript", src: "grid[i]", want: "grid[i]"},
		{name: "multi subscript", src: "grid[i, j]", want: "grid[i, j]"},
		{name: "string quotes", src: `"hello"`, want: "'hello'"},
		{name: "hex int", src: "0x10", want: "16"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(parseExpr(t, tt.src), ns))
		})
	}
}

func TestRender_Statements(t *testing.T) {
	ns := namespace.NewMap("app", nil)

	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "assign", src: "x = compute()", want: "x = compute()"},
		{name: "chained assign", src: "a = b = 0", want: "a, b = 0"},
		{name: "unpacking", src: "t1, t2 = pair", want: "(t1, t2) = pair"},
		{name: "augmented", src: "total += 1", want: "total += 1"},
		{name: "annotated", src: "n: int = 0", want: "n: int = 0"},
		{name: "return", src: "return x", want: "return x"},
		{name: "bare pass", src: "pass", want: "Pass"},
		{name: "unsupported keeps text", src: "assert ok", want: "assert ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := parseStmt(t, tt.src)
			if tt.name == "return" {
				stmt = parseStmt(t, "def f():\n    "+tt.src).(*syntax.FunctionDef).Body[0]
			}
			assert.Equal(t, tt.want, Render(stmt, ns))
		})
	}
}

func TestRender_Patterns(t *testing.T) {
	stmt := parseStmt(t, "match cmd:\n    case 1:\n        pass\n    case [a, b]:\n        pass\n    case Point(x=0):\n        pass\n    case _:\n        pass")
	match := stmt.(*syntax.Match)
	require.Len(t, match.Cases, 4)

	got := make([]string, len(match.Cases))
	for i, c := range match.Cases {
		got[i] = Render(c.Pattern, namespace.Map{})
	}
	assert.Equal(t, []string{
		"MatchValue: 1",
		"MatchSequence: [a, b]",
		"MatchClass: Point(x=0)",
		"MatchAs: _",
	}, got)
}

func TestArgs(t *testing.T) {
	def := parseStmt(t, "def f(a, b=2, *rest, **extra):\n    pass").(*syntax.FunctionDef)
	assert.Equal(t, []string{
		"arg: 'a'",
		"arg: 'b' = 2",
		"arg: '*rest'",
		"arg: '**extra'",
	}, Args(def.Args, namespace.Map{}))
	assert.Nil(t, Args(nil, namespace.Map{}))
}

func TestOpSymbol(t *testing.T) {
	assert.Equal(t, "**", OpSymbol(syntax.OpPow))
	assert.Equal(t, "@", OpSymbol(syntax.OpMatMult))
	assert.Equal(t, "is not", OpSymbol(syntax.OpIsNot))
	assert.Equal(t, "Invalid", OpSymbol(syntax.OpInvalid))
}

func TestRepr(t *testing.T) {
	tests := []struct {
		kind syntax.ConstKind
		raw  string
		want string
	}{
		{syntax.ConstNone, "None", "None"},
		{syntax.ConstBool, "True", "True"},
		{syntax.ConstEllipsis, "...", "Ellipsis"},
		{syntax.ConstInt, "1_000", "1000"},
		{syntax.ConstInt, "0o17", "15"},
		{syntax.ConstInt, "0b101", "5"},
		{syntax.ConstInt, "123456789012345678901234567890", "123456789012345678901234567890"},
		{syntax.ConstFloat, "1.50", "1.5"},
		{syntax.ConstFloat, "1e3", "1000.0"},
		{syntax.ConstFloat, "1e16", "1e+16"},
		{syntax.ConstFloat, "0.00001", "1e-05"},
		{syntax.ConstComplex, "2j", "2j"},
		{syntax.ConstComplex, "1.5J", "1.5j"},
		{syntax.ConstString, `"plain"`, `'plain'`},
		{syntax.ConstString, `"it's"`, `"it's"`},
		{syntax.ConstString, `'both \' and "'`, `'both \' and "'`},
		{syntax.ConstString, `"line\n"`, `'line\n'`},
		{syntax.ConstString, `r"C:\dir"`, `'C:\\dir'`},
		{syntax.ConstString, `"\x41\u00e9"`, `'Aé'`},
		{syntax.ConstString, `"a" 'b'`, `'ab'`},
		{syntax.ConstString, `"""doc"""`, `'doc'`},
		{syntax.ConstString, `f"{x}"`, `f"{x}"`},
		{syntax.ConstBytes, `b"\x00ok"`, `b'\x00ok'`},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Repr(&syntax.Constant{Value: tt.kind, Raw: tt.raw}))
		})
	}
}
