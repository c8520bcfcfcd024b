// Package namespace implements the module tree, symbol tables, and
// trait-implementation index: a tree of modules rooted at
// the compiled unit, each holding a symbol table, import bindings, and a
// trait-impl index consulted during method lookup and constraint checking.
package namespace

import (
	"github.com/vmlang/corec/internal/types"
)

// Binding is one imported name, flagged absolute or relative
type Binding struct {
	Target   types.DeclHandle
	Absolute bool
}

// Module is one node of the namespace tree: a symbol table, imported
// bindings, child modules, and the trait-impl index scoped to this module.
type Module struct {
	Name     string
	Parent   *Module
	Children map[string]*Module

	symbols  map[string]types.DeclHandle
	imports  map[string]Binding
	modules  map[string]*Module // imported module bindings, e.g. `use std::storage as s;`
	traits   *TraitMap
}

// NewRoot creates the root module of a compiled unit.
func NewRoot(name string) *Module {
	return newModule(name, nil)
}

func newModule(name string, parent *Module) *Module {
	return &Module{
		Name:     name,
		Parent:   parent,
		Children: make(map[string]*Module),
		symbols:  make(map[string]types.DeclHandle),
		imports:  make(map[string]Binding),
		modules:  make(map[string]*Module),
		traits:   NewTraitMap(),
	}
}

// Child creates (or returns the existing) named child module.
func (m *Module) Child(name string) *Module {
	if existing, ok := m.Children[name]; ok {
		return existing
	}
	child := newModule(name, m)
	m.Children[name] = child
	return child
}

// Root walks up to the root of the namespace tree.
func (m *Module) Root() *Module {
	cur := m
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// Declare inserts name → handle into this module's symbol table. It
// reports whether a symbol with that name already existed (the "collect"
// pass turns a true return into a ShadowsOtherSymbol warning or a
// MultipleDefinitions error depending on declaration kind).
func (m *Module) Declare(name string, handle types.DeclHandle) (previous types.DeclHandle, existed bool) {
	previous, existed = m.symbols[name]
	m.symbols[name] = handle
	return previous, existed
}

// LookupLocal looks up name in this module's own symbol table only (no
// parent/import fallback).
func (m *Module) LookupLocal(name string) (types.DeclHandle, bool) {
	h, ok := m.symbols[name]
	return h, ok
}

// Import records an imported symbol binding, flagged absolute or relative.
func (m *Module) Import(alias string, target types.DeclHandle, absolute bool) {
	m.imports[alias] = Binding{Target: target, Absolute: absolute}
}

// ImportModule records an imported module binding (`use a::b::c;` imports
// the module `c` itself, not just a symbol inside it), so later path
// segments can continue resolution through alias.
func (m *Module) ImportModule(alias string, mod *Module) {
	m.modules[alias] = mod
}

// TraitMap exposes this module's trait-impl index for insertion and lookup.
func (m *Module) TraitMap() *TraitMap { return m.traits }

// ImportedModules lists the modules bound by `use` imports, whose trait
// maps become visible to method lookup from this module. The bound module
// itself is returned; aliases are irrelevant to trait-impl visibility.
func (m *Module) ImportedModules() []*Module {
	out := make([]*Module, 0, len(m.modules))
	for _, mod := range m.modules {
		out = append(out, mod)
	}
	return out
}

// AllPublicSymbols returns every publicly visible name → handle pair in m,
// for wildcard (`::*`) imports. Each symbol's visibility is read from its
// declaration through ctx.GetDecl.
func (m *Module) AllPublicSymbols(ctx *types.Context) map[string]types.DeclHandle {
	out := make(map[string]types.DeclHandle, len(m.symbols))
	for name, h := range m.symbols {
		if ctx.GetDecl(h).Vis == types.VisPublic {
			out[name] = h
		}
	}
	return out
}
