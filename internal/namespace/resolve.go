package namespace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zheng/pyflow/internal/syntax"
)

// ClassRef is a class definition together with its defining module.
type ClassRef struct {
	Module *syntax.Module
	Class  *syntax.ClassDef
}

// Callable is a function or method definition a flow graph can be rooted
// at or expanded into.
type Callable struct {
	Module *syntax.Module
	Class  *syntax.ClassDef // nil for plain functions
	Def    *syntax.FunctionDef
}

// Qualname returns "module.func" or "module.Class.method".
func (c Callable) Qualname() string {
	parts := []string{c.Module.Name}
	if c.Class != nil {
		parts = append(parts, c.Class.Name)
	}
	return strings.Join(append(parts, c.Def.Name), ".")
}

// ClassRef returns the callable's class with its module, or nil.
func (c Callable) ClassRef() *ClassRef {
	if c.Class == nil {
		return nil
	}
	return &ClassRef{Module: c.Module, Class: c.Class}
}

// Target is a resolved call.
type Target struct {
	Callable
	// Context is set when the call named its class explicitly
	// (Class.method, module.Class.method or Class()). That class becomes the
	// context for self.method calls inside the callee.
	Context   *ClassRef
	Namespace Map
}

// Resolver maps call expressions to callee definitions using a Program.
type Resolver struct {
	program *Program
}

// NewResolver creates a Resolver over program.
func NewResolver(program *Program) *Resolver {
	return &Resolver{program: program}
}

// Program returns the underlying program.
func (r *Resolver) Program() *Program { return r.program }

// Resolve finds the definition a call refers to. ns is the namespace of
// the module whose body contains the call and self is the innermost class
// context, or nil. Every failure is a *ResolutionError.
//
// Resolution order: a bare name in the enclosing module; module.func;
// module.Class.method; self.method. Class.method for a class of the
// enclosing module and Class() (expanding __init__) are also accepted.
func (r *Resolver) Resolve(ctx context.Context, call *syntax.Call, ns Map, self *ClassRef) (*Target, error) {
	path := syntax.DottedPath(call.Func)
	if path == nil {
		return nil, resolutionError(syntax.KindCall.String(), ErrUnsupportedCallee, "callee is a %s expression", call.Func.Kind())
	}
	text := strings.Join(path, ".")

	current, err := r.program.ImportModule(ctx, ns.Module)
	if err != nil {
		return nil, resolutionError(text, ErrModuleNotFound, "enclosing module %s", ns.Module)
	}

	switch {
	case len(path) == 1:
		return r.lookupCallable(current, path[0], text)

	case path[0] == "self":
		if self == nil {
			return nil, resolutionError(text, ErrNoClassContext, "")
		}
		if len(path) != 2 {
			return nil, resolutionError(text, ErrUnsupportedCallee, "attribute of an instance attribute")
		}
		method, owner, err := r.findMethod(ctx, *self, path[1], 0)
		if err != nil {
			return nil, resolutionError(text, err, "class %s", self.Class.Name)
		}
		return r.target(Callable{Module: owner.Module, Class: owner.Class, Def: method}, nil), nil
	}

	if _, imported := ns.Canonical(path[0]); imported {
		return r.resolveQualified(ctx, ns, path, text)
	}

	if len(path) == 2 {
		if stmt, ok := current.Lookup(path[0]); ok {
			if cls, ok := stmt.(*syntax.ClassDef); ok {
				return r.lookupMethod(ctx, ClassRef{Module: current, Class: cls}, path[1], text)
			}
		}
	}
	return nil, resolutionError(text, ErrUnsupportedCallee, "%s is not a module or class", path[0])
}

// resolveQualified handles paths whose head is an imported module. The
// longest prefix naming a module wins, so pkg.sub.func works when only
// "pkg" was imported.
func (r *Resolver) resolveQualified(ctx context.Context, ns Map, path []string, text string) (*Target, error) {
	for k := len(path) - 1; k >= 1; k-- {
		name := canonicalModule(ns, path[:k])
		if !r.program.HasModule(name) {
			continue
		}
		mod, err := r.program.ImportModule(ctx, name)
		if err != nil {
			return nil, resolutionError(text, ErrModuleNotFound, "import %s: %v", name, err)
		}
		rest := path[k:]
		switch len(rest) {
		case 1:
			return r.lookupCallable(mod, rest[0], text)
		case 2:
			stmt, ok := mod.Lookup(rest[0])
			if !ok {
				return nil, resolutionError(text, ErrAttributeNotFound, "%s has no %s", name, rest[0])
			}
			cls, ok := stmt.(*syntax.ClassDef)
			if !ok {
				return nil, resolutionError(text, ErrUnsupportedCallee, "%s.%s is not a class", name, rest[0])
			}
			return r.lookupMethod(ctx, ClassRef{Module: mod, Class: cls}, rest[1], text)
		default:
			return nil, resolutionError(text, ErrUnsupportedCallee, "nested attribute path")
		}
	}
	head, _ := ns.Canonical(path[0])
	return nil, resolutionError(text, ErrModuleNotFound, "module %s is not importable", head)
}

// canonicalModule maps a local dotted prefix to its canonical module name.
func canonicalModule(ns Map, parts []string) string {
	if canonical, ok := ns.Canonical(strings.Join(parts, ".")); ok {
		return canonical
	}
	head, _ := ns.Canonical(parts[0])
	return strings.Join(append([]string{head}, parts[1:]...), ".")
}

func (r *Resolver) lookupCallable(mod *syntax.Module, name, text string) (*Target, error) {
	stmt, ok := mod.Lookup(name)
	if !ok {
		return nil, resolutionError(text, ErrAttributeNotFound, "%s has no %s", mod.Name, name)
	}
	switch def := stmt.(type) {
	case *syntax.FunctionDef:
		return r.target(Callable{Module: mod, Def: def}, nil), nil
	case *syntax.ClassDef:
		init, ok := def.Method("__init__")
		if !ok {
			return nil, resolutionError(text, ErrAttributeNotFound, "class %s has no __init__", def.Name)
		}
		return r.target(Callable{Module: mod, Class: def, Def: init}, &ClassRef{Module: mod, Class: def}), nil
	}
	return nil, resolutionError(text, ErrNotCallable, "%s.%s is a %s", mod.Name, name, stmt.Kind())
}

func (r *Resolver) lookupMethod(ctx context.Context, ref ClassRef, name, text string) (*Target, error) {
	method, owner, err := r.findMethod(ctx, ref, name, 0)
	if err != nil {
		return nil, resolutionError(text, err, "class %s", ref.Class.Name)
	}
	// self.method inside the callee resolves against the class that was
	// named, so overrides in subclasses keep working.
	return r.target(Callable{Module: owner.Module, Class: owner.Class, Def: method}, &ref), nil
}

const maxBaseDepth = 16

// findMethod looks a method up in ref and then, depth first, in the bases
// that resolve statically.
func (r *Resolver) findMethod(ctx context.Context, ref ClassRef, name string, depth int) (*syntax.FunctionDef, ClassRef, error) {
	if method, ok := ref.Class.Method(name); ok {
		return method, ref, nil
	}
	if stmt, ok := lookupClassAttr(ref.Class, name); ok {
		return nil, ref, fmt.Errorf("%w: %s is a %s", ErrNotCallable, name, stmt.Kind())
	}
	if depth >= maxBaseDepth {
		return nil, ref, fmt.Errorf("%w: %s (base class chain too deep)", ErrAttributeNotFound, name)
	}
	for _, base := range ref.Class.Bases {
		parent, ok := r.resolveClass(ctx, ref.Module, base)
		if !ok {
			continue
		}
		method, owner, err := r.findMethod(ctx, parent, name, depth+1)
		if err == nil {
			return method, owner, nil
		}
		if errors.Is(err, ErrNotCallable) {
			return nil, owner, err
		}
	}
	return nil, ref, fmt.Errorf("%w: %s", ErrAttributeNotFound, name)
}

func lookupClassAttr(cls *syntax.ClassDef, name string) (syntax.Stmt, bool) {
	for _, stmt := range cls.Body {
		if a, ok := stmt.(*syntax.Assign); ok {
			for _, t := range a.Targets {
				if n, ok := t.(*syntax.Name); ok && n.ID == name {
					return a, true
				}
			}
		}
	}
	return nil, false
}

// resolveClass resolves a base class expression in the context of mod.
func (r *Resolver) resolveClass(ctx context.Context, mod *syntax.Module, expr syntax.Expr) (ClassRef, bool) {
	path := syntax.DottedPath(expr)
	if len(path) == 0 {
		return ClassRef{}, false
	}
	owner := mod
	if len(path) > 1 {
		ns := r.program.Namespace(mod)
		name := canonicalModule(ns, path[:len(path)-1])
		m, err := r.program.ImportModule(ctx, name)
		if err != nil {
			return ClassRef{}, false
		}
		owner = m
	}
	stmt, ok := owner.Lookup(path[len(path)-1])
	if !ok {
		return ClassRef{}, false
	}
	cls, ok := stmt.(*syntax.ClassDef)
	if !ok {
		return ClassRef{}, false
	}
	return ClassRef{Module: owner, Class: cls}, true
}

func (r *Resolver) target(c Callable, context *ClassRef) *Target {
	return &Target{Callable: c, Context: context, Namespace: r.program.Namespace(c.Module)}
}

// FindCallable resolves an entry point target of the form
// "path/to/file.py:qualname" or "dotted.module:qualname", where qualname
// is "func" or "Class.method".
func (p *Program) FindCallable(ctx context.Context, target string) (Callable, error) {
	i := strings.LastIndex(target, ":")
	if i <= 0 || i == len(target)-1 {
		return Callable{}, fmt.Errorf("%w: %q, want module:function", ErrInvalidTarget, target)
	}
	where, qualname := target[:i], target[i+1:]

	var (
		mod *syntax.Module
		err error
	)
	if strings.HasSuffix(where, ".py") || strings.ContainsAny(where, `/\`) {
		mod, err = p.LoadFile(ctx, where)
	} else {
		mod, err = p.ImportModule(ctx, where)
	}
	if err != nil {
		return Callable{}, fmt.Errorf("load %s: %w", where, err)
	}

	parts := strings.Split(qualname, ".")
	switch len(parts) {
	case 1:
		stmt, ok := mod.Lookup(parts[0])
		if !ok {
			return Callable{}, fmt.Errorf("%w: %s has no %s", ErrAttributeNotFound, mod.Name, parts[0])
		}
		switch def := stmt.(type) {
		case *syntax.FunctionDef:
			return Callable{Module: mod, Def: def}, nil
		case *syntax.ClassDef:
			init, ok := def.Method("__init__")
			if !ok {
				return Callable{}, fmt.Errorf("%w: class %s has no __init__", ErrAttributeNotFound, def.Name)
			}
			return Callable{Module: mod, Class: def, Def: init}, nil
		}
		return Callable{}, fmt.Errorf("%w: %s is a %s", ErrNotCallable, parts[0], stmt.Kind())
	case 2:
		stmt, ok := mod.Lookup(parts[0])
		cls, isClass := stmt.(*syntax.ClassDef)
		if !ok || !isClass {
			return Callable{}, fmt.Errorf("%w: %s has no class %s", ErrAttributeNotFound, mod.Name, parts[0])
		}
		method, ok := cls.Method(parts[1])
		if !ok {
			return Callable{}, fmt.Errorf("%w: class %s has no method %s", ErrAttributeNotFound, cls.Name, parts[1])
		}
		return Callable{Module: mod, Class: cls, Def: method}, nil
	}
	return Callable{}, fmt.Errorf("%w: qualname %q", ErrInvalidTarget, qualname)
}
