// Package semantic implements the Semantic Analyzer: name
// resolution, bidirectional type checking, monomorphization, trait-impl
// checking, and pattern-match exhaustiveness over the untyped AST.
package semantic

import (
	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/namespace"
	"github.com/vmlang/corec/internal/types"
)

// AbiMode records whether the analyzer is currently checking inside an
// abi implementation.
type AbiMode int

const (
	NonAbi AbiMode = iota
	ImplAbiFn
)

// ConstShadowingMode controls whether a const declaration may shadow a
// previous one sequentially (inside a function body) or must follow
// item-style uniqueness (at module scope).
type ConstShadowingMode int

const (
	ItemStyleShadowing ConstShadowingMode = iota
	SequentialShadowing
)

// AnalysisContext is the per-node context threaded through the analyzer
// as an immutable value type: every With* method returns a new
// AnalysisContext rather than mutating the receiver, so a child node's
// narrowed copy can never leak back up into its caller's context.
type AnalysisContext struct {
	ctx *types.Context
	ns  *namespace.Module

	selfType          types.TypeHandle
	typeAnnotation    types.TypeHandle
	abiMode           AbiMode
	constShadowing    ConstShadowingMode
	helpText          string
	purity            ast.Purity
	programKind       ast.ProgramKind
	disallowFunctions bool
}

// NewRootContext builds the initial context for checking a module's
// top-level items: unknown type annotation, NonAbi, no help text, pure.
func NewRootContext(ctx *types.Context, ns *namespace.Module, kind ast.ProgramKind) AnalysisContext {
	return AnalysisContext{
		ctx:            ctx,
		ns:             ns,
		selfType:       types.TypeHandle(-1),
		typeAnnotation: ctx.Unknown(),
		abiMode:        NonAbi,
		constShadowing: ItemStyleShadowing,
		purity:         ast.PurityPure,
		programKind:    kind,
	}
}

// Types exposes the shared type/declaration arena.
func (c AnalysisContext) Types() *types.Context { return c.ctx }

// Namespace returns the module currently in scope.
func (c AnalysisContext) Namespace() *namespace.Module { return c.ns }

// WithNamespace is the by_ref/scoped equivalent: rebinds the namespace
// pointer while keeping every other field, for entering a child block's
// scope without touching the narrowed type-checking state.
func (c AnalysisContext) WithNamespace(ns *namespace.Module) AnalysisContext {
	c.ns = ns
	return c
}

// EnterModule is the enter_submodule equivalent: produces a context scoped
// to the named child module, resetting the narrowed per-node state back to
// its module-level defaults the way from_module_namespace does, while
// keeping the shared type/decl arena.
func (c AnalysisContext) EnterModule(name string, kind ast.ProgramKind) AnalysisContext {
	child := c.ns.Child(name)
	return NewRootContext(c.ctx, child, kind)
}

func (c AnalysisContext) WithHelpText(text string) AnalysisContext {
	c.helpText = text
	return c
}

func (c AnalysisContext) WithTypeAnnotation(t types.TypeHandle) AnalysisContext {
	c.typeAnnotation = t
	return c
}

func (c AnalysisContext) WithABIMode(mode AbiMode) AnalysisContext {
	c.abiMode = mode
	return c
}

func (c AnalysisContext) WithConstShadowingMode(mode ConstShadowingMode) AnalysisContext {
	c.constShadowing = mode
	return c
}

func (c AnalysisContext) WithPurity(p ast.Purity) AnalysisContext {
	c.purity = p
	return c
}

func (c AnalysisContext) WithProgramKind(k ast.ProgramKind) AnalysisContext {
	c.programKind = k
	return c
}

func (c AnalysisContext) WithSelfType(t types.TypeHandle) AnalysisContext {
	c.selfType = t
	return c
}

func (c AnalysisContext) WithFunctionsDisallowed() AnalysisContext {
	c.disallowFunctions = true
	return c
}

func (c AnalysisContext) WithFunctionsAllowed() AnalysisContext {
	c.disallowFunctions = false
	return c
}

func (c AnalysisContext) HelpText() string                    { return c.helpText }
func (c AnalysisContext) TypeAnnotation() types.TypeHandle     { return c.typeAnnotation }
func (c AnalysisContext) ABIMode() AbiMode                     { return c.abiMode }
func (c AnalysisContext) ConstShadowingMode() ConstShadowingMode { return c.constShadowing }
func (c AnalysisContext) Purity() ast.Purity                   { return c.purity }
func (c AnalysisContext) ProgramKind() ast.ProgramKind         { return c.programKind }
func (c AnalysisContext) SelfType() types.TypeHandle           { return c.selfType }
func (c AnalysisContext) FunctionsDisallowed() bool            { return c.disallowFunctions }

// UnifyWithSelf is the unify_with_self shorthand: unifies ty against the
// context's current type annotation, threading the active self type and
// help text through automatically.
func (c AnalysisContext) UnifyWithSelf(ty types.TypeHandle) (types.TypeHandle, error) {
	return c.ctx.Unify(ty, c.typeAnnotation, c.selfType, c.helpText)
}
