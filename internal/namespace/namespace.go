package namespace

import (
	"sort"
	"strings"

	"github.com/zheng/pyflow/internal/syntax"
)

// MainKey is the key under which a map records its own module, standing in
// for the "__main__" module of the program being visualized.
const MainKey = "__main__"

// ModuleIndex answers whether a canonical module name exists.
type ModuleIndex interface {
	HasModule(name string) bool
}

// Map maps locally visible names to canonical module names. It is
// read-only after Build.
type Map struct {
	// Module is the canonical name of the module the map was built for.
	Module string
	names  map[string]string
}

// NewMap returns a map for module with the given entries.
func NewMap(module string, entries map[string]string) Map {
	m := Map{Module: module, names: map[string]string{MainKey: module}}
	for k, v := range entries {
		m.names[k] = v
	}
	return m
}

// Canonical returns the canonical module a local name (possibly dotted, as
// in "os.path") refers to.
func (m Map) Canonical(name string) (string, bool) {
	v, ok := m.names[name]
	return v, ok
}

// Qualify rewrites the head of a dotted path through the map, so "np.array"
// becomes "numpy.array". Unknown heads are returned unchanged.
func (m Map) Qualify(path string) string {
	head, rest, dotted := strings.Cut(path, ".")
	canonical, ok := m.names[head]
	if !ok || head == MainKey {
		return path
	}
	if dotted {
		return canonical + "." + rest
	}
	return canonical
}

// Entries returns a copy of the map's entries.
func (m Map) Entries() map[string]string {
	out := make(map[string]string, len(m.names))
	for k, v := range m.names {
		out[k] = v
	}
	return out
}

// Keys returns the visible names in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m.names))
	for k := range m.names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Build computes the namespace map of mod from its module-level imports,
// including those nested in module-level if/try/with blocks. Function and
// class bodies are not scanned.
//
// "from pkg import name" contributes an entry only when pkg.name is itself a
// module; names bound directly to functions or classes are not namespaces.
func Build(mod *syntax.Module, modules ModuleIndex) Map {
	m := NewMap(mod.Name, nil)
	var walk func(body []syntax.Stmt)
	walk = func(body []syntax.Stmt) {
		for _, stmt := range body {
			switch s := stmt.(type) {
			case *syntax.Import:
				for _, alias := range s.Names {
					if alias.AsName != "" {
						m.names[alias.AsName] = alias.Name
						continue
					}
					head, _, _ := strings.Cut(alias.Name, ".")
					m.names[head] = head
					m.names[alias.Name] = alias.Name
				}
			case *syntax.ImportFrom:
				base := resolveRelative(mod, s.Module, s.Level)
				for _, alias := range s.Names {
					full := alias.Name
					if base != "" {
						full = base + "." + alias.Name
					}
					if modules != nil && modules.HasModule(full) {
						m.names[alias.Bound()] = full
					}
				}
			case *syntax.If:
				walk(s.Body)
				walk(s.Orelse)
			case *syntax.Try:
				walk(s.Body)
				for _, h := range s.Handlers {
					walk(h.Body)
				}
				walk(s.Orelse)
				walk(s.Finalbody)
			case *syntax.With:
				walk(s.Body)
			}
		}
	}
	walk(mod.Body)
	return m
}

// resolveRelative returns the absolute module named by a from-import.
func resolveRelative(mod *syntax.Module, module string, level int) string {
	if level == 0 {
		return module
	}
	pkg := mod.Name
	if !mod.Package {
		pkg = parentPackage(pkg)
	}
	for i := 1; i < level; i++ {
		pkg = parentPackage(pkg)
	}
	switch {
	case pkg == "":
		return module
	case module == "":
		return pkg
	}
	return pkg + "." + module
}

func parentPackage(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i]
	}
	return ""
}
