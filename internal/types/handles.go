// Package types implements the Type & Declaration Engines: interned,
// identity-keyed arenas for type descriptors and declarations, plus
// unification, substitution, and monomorphization over them.
//
// Handles compare by identity, not structure — two structurally identical
// types may live at different handles. StructurallyEqual (equality.go) is
// the separate predicate used where structural sameness, not identity,
// matters (monomorphization memoization, trait-map subset checks).
package types

import "github.com/vmlang/corec/internal/span"

// TypeHandle is an opaque index into the Context's type arena.
type TypeHandle int

// DeclHandle is an opaque index into the Context's declaration arena.
type DeclHandle int

// invalidHandle (-1) marks a handle that was never assigned. Index 0 is an
// ordinary arena entry, so a zero-valued TypeHandle/DeclHandle field refers
// to the first inserted entry; it is not reserved the way span.ID 0 is.
const invalidHandle = -1

// IsValid reports whether h was returned by InsertType.
func (h TypeHandle) IsValid() bool { return h >= 0 }

// IsValid reports whether h was returned by one of the Declare* methods.
func (h DeclHandle) IsValid() bool { return h >= 0 }

// Context owns the type arena, the declaration arena, and the source-span
// interner for the lifetime of exactly one compilation. No
// other component ever holds a direct pointer into these arenas — only
// handles, which it resolves back through Context's lookup methods.
type Context struct {
	spans *span.Interner

	types []TypeDescriptor
	decls []Declaration

	// memoInstances memoizes monomorphize on (generic decl, arg types),
	// keyed by a string built from the handle and the structural shape of
	// the argument types, since a plain map key can't hold a slice.
	memoInstances map[string]DeclHandle

	// wellKnown caches the handles for primitive descriptors that are
	// requested over and over (unit, bool, the uN family, b256) so callers
	// don't pay an arena insert for every `()`  in the typed program.
	wellKnown map[string]TypeHandle
}

// NewContext creates an empty compilation context bound to the given span
// interner. The interner is expected to already hold entries for the unit
// being compiled; Context never creates spans on its own.
func NewContext(spans *span.Interner) *Context {
	return &Context{
		spans:         spans,
		memoInstances: make(map[string]DeclHandle),
		wellKnown:     make(map[string]TypeHandle),
	}
}

// Spans exposes the span interner for components that need to attach new
// spans to synthesized nodes (e.g. the IR builder's implicit terminators).
func (c *Context) Spans() *span.Interner { return c.spans }
