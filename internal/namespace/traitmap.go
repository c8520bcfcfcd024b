package namespace

import (
	"fmt"

	"github.com/vmlang/corec/internal/types"
)

// TraitKey identifies one trait-impl index bucket: a trait name with its
// type arguments, plus the type it is implemented for. "impl self" blocks
// use an empty TraitName and IsImplSelf=true, kept in the same table as
// trait impls "separate sub-indices" rule — they conflict-check
// against each other but never against unrelated trait impls.
type TraitKey struct {
	TraitName string
	TraitArgs []types.TypeHandle
	ImplType  types.TypeHandle
	IsImplSelf bool
}

type traitEntry struct {
	key     TraitKey
	methods map[string]types.DeclHandle
}

// TraitMap is the per-module trait-implementation index, keyed by (trait
// name with type args, implementing type): a flat list of entries rather
// than a hash map, searched linearly on insert for conflicts and on
// lookup for subset matches, since type-handle equality needs arena-aware
// comparison and cannot serve as a map key.
type TraitMap struct {
	entries []traitEntry
}

func NewTraitMap() *TraitMap {
	return &TraitMap{}
}

// ConflictingImplError reports two impls for an equivalent (trait, type)
// pair.
type ConflictingImplError struct {
	TraitName string
	ImplType  types.TypeHandle
}

func (e *ConflictingImplError) Error() string {
	return fmt.Sprintf("conflicting implementations of trait %q for the same type", e.TraitName)
}

// DuplicateMethodError reports one method name defined twice for a type.
type DuplicateMethodError struct {
	Method   string
	ImplType types.TypeHandle
}

func (e *DuplicateMethodError) Error() string {
	return fmt.Sprintf("duplicate method %q defined for this type", e.Method)
}

// Insert adds methods under key, enforcing the two insertion rules:
//   - no conflict: two impls whose implementing types are subsets of each
//     other and whose trait names (with type args) match conflict, unless
//     one of them is an "impl self" block
//   - no duplicate method name within one impl for the same (trait, type)
//
// The first insertion wins: a conflicting impl is reported against the
// first and NOT inserted, so lookups after a conflict keep returning only
// the first impl's methods. An entry that merely collides on a method
// name (the softer, cross-sub-index case) still lands — its own key is
// distinct, and dropping it would hide an otherwise unrelated impl.
func (tm *TraitMap) Insert(ctx *types.Context, key TraitKey, methods map[string]types.DeclHandle) error {
	var firstErr error
	// Unknown, Numeric and SelfType trait arguments are unequal to every
	// type, themselves included, so such an impl never matches another.
	dynamicArgs := false
	for _, a := range key.TraitArgs {
		switch ctx.GetType(a).Tag {
		case types.TagUnknown, types.TagNumeric, types.TagSelfType:
			dynamicArgs = true
		}
	}
	for _, e := range tm.entries {
		typesAreSubset := ctx.Subset(key.ImplType, e.key.ImplType) && ctx.Subset(e.key.ImplType, key.ImplType)
		traitsMatch := key.TraitName == e.key.TraitName && !dynamicArgs && sameTypeArgs(ctx, key.TraitArgs, e.key.TraitArgs)

		if typesAreSubset && traitsMatch && !key.IsImplSelf && !e.key.IsImplSelf {
			return &ConflictingImplError{TraitName: key.TraitName, ImplType: key.ImplType}
		}
		if typesAreSubset && (traitsMatch || key.IsImplSelf || e.key.IsImplSelf) {
			for name := range methods {
				if _, dup := e.methods[name]; dup {
					if firstErr == nil {
						firstErr = &DuplicateMethodError{Method: name, ImplType: key.ImplType}
					}
				}
			}
		}
	}

	tm.entries = append(tm.entries, traitEntry{key: key, methods: methods})
	return firstErr
}

func sameTypeArgs(ctx *types.Context, a, b []types.TypeHandle) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ctx.StructurallyEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// ResolvedMethod is one method found by MethodsOn: its name, the
// declaration handle stored in the impl (no type substitution is applied),
// and the key of the impl it came from.
type ResolvedMethod struct {
	Name   string
	Decl   types.DeclHandle
	Source TraitKey
}

// MethodsOn finds the methods available on a type: collect inherent impls
// where T is a subset of the impl type, then trait impls in scope where T
// and the impl type are mutual subsets (equivalent up to inference
// variables), returning every method found across both passes.
//
// traitInScope reports whether a given trait name is imported or inherent
// in the querying context; callers pass a closure rather than a namespace
// pointer since "in scope" depends on the caller's current module, which
// TraitMap itself has no notion of.
func (tm *TraitMap) MethodsOn(ctx *types.Context, t types.TypeHandle, traitInScope func(traitName string) bool) []ResolvedMethod {
	var out []ResolvedMethod
	for _, e := range tm.entries {
		if e.key.IsImplSelf {
			if !ctx.Subset(t, e.key.ImplType) {
				continue
			}
		} else {
			if traitInScope != nil && !traitInScope(e.key.TraitName) {
				continue
			}
			if !(ctx.Subset(e.key.ImplType, t) && ctx.Subset(t, e.key.ImplType)) {
				continue
			}
		}
		for name, decl := range e.methods {
			out = append(out, ResolvedMethod{Name: name, Decl: decl, Source: e.key})
		}
	}
	return out
}

// TraitConstraintNotSatisfiedError reports that no impl entry exists whose
// trait name/args and implementing type satisfy a required constraint.
type TraitConstraintNotSatisfiedError struct {
	TraitName string
	ImplType  types.TypeHandle
}

func (e *TraitConstraintNotSatisfiedError) Error() string {
	return fmt.Sprintf("trait constraint %q not satisfied", e.TraitName)
}

// Satisfies checks trait-constraint satisfaction: given
// `T: Trait<Args>` (already substituted), search for an entry whose trait
// name and args equal those exactly and whose implementing type is a
// subset of T.
func (tm *TraitMap) Satisfies(ctx *types.Context, traitName string, traitArgs []types.TypeHandle, t types.TypeHandle) error {
	for _, e := range tm.entries {
		if e.key.IsImplSelf || e.key.TraitName != traitName {
			continue
		}
		if !sameTypeArgs(ctx, e.key.TraitArgs, traitArgs) {
			continue
		}
		if ctx.Subset(e.key.ImplType, t) {
			return nil
		}
	}
	return &TraitConstraintNotSatisfiedError{TraitName: traitName, ImplType: t}
}
