// Package compiler is the driver-facing facade over the compilation
// pipeline: one Compile call runs semantic analysis, IR construction
// and optimization, and the assembly backend over a root module plus its
// dependency units, producing a library namespace, bytecode with an ABI
// descriptor, or the accumulated failure diagnostics.
package compiler

import (
	"github.com/vmlang/corec/internal/abi"
	"github.com/vmlang/corec/internal/asm"
	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/diag"
	"github.com/vmlang/corec/internal/ir"
	"github.com/vmlang/corec/internal/namespace"
	"github.com/vmlang/corec/internal/semantic"
	"github.com/vmlang/corec/internal/span"
	"github.com/vmlang/corec/internal/types"
)

// Unit is one resolved source unit from the external dependency resolver:
// a name and its parsed module. Units arrive dependency-ordered with the
// root unit last; Compile takes the root separately and deps in order.
type Unit struct {
	Name   string
	Module *ast.Module
}

// ResultKind discriminates CompileResult.
type ResultKind int

const (
	ResultLibrary ResultKind = iota
	ResultBytecode
	ResultFailure
)

// CompileResult is the driver's view of one compilation.
type CompileResult struct {
	Kind ResultKind

	// ResultLibrary.
	PublicNamespace *namespace.Module

	// ResultBytecode.
	Words     []uint64
	Abi       *abi.JsonAbi
	SourceMap map[int]span.ID

	// Always populated.
	Errors   []diag.Diagnostic
	Warnings []diag.Diagnostic
}

// Compile runs the pipeline. The driver stops after the first phase that
// reports failure, but every diagnostic gathered during that phase is
// surfaced.
func Compile(root *ast.Module, deps []Unit, spans *span.Interner) CompileResult {
	ctx := types.NewContext(spans)
	rootNS := namespace.NewRoot(root.Name)
	h := diag.NewHandler()

	// Phase: semantic analysis, dependencies first, root last, each unit
	// checked into its own child namespace.
	for _, dep := range deps {
		child := rootNS.Child(dep.Name)
		semantic.Check(dep.Module, child, ctx, h)
	}
	typed := semantic.Check(root, rootNS, ctx, h)
	if !h.Ok() {
		return failure(h)
	}

	if root.Kind == ast.KindLibrary {
		return CompileResult{
			Kind:            ResultLibrary,
			PublicNamespace: rootNS,
			Warnings:        h.Warnings(),
		}
	}

	// Phase: IR construction and optimization.
	module := ir.Lower(typed, ctx, h)
	if !h.Ok() {
		return failure(h)
	}
	for _, f := range module.Functions {
		if err := ir.Verify(f); err != nil {
			h.Errorf(diag.KindIRInternal, f.Span, "%s", err.Error())
		}
	}
	if !h.Ok() {
		return failure(h)
	}
	pm := ir.NewPassManager(module)
	if err := pm.Optimize(); err != nil {
		h.Errorf(diag.KindIRInternal, span.None(), "%s", err.Error())
		return failure(h)
	}

	// Phase: assembly generation and encoding. Scripts and predicates
	// enter at main; a contract with no main enters at its first method
	// (the dispatcher proper belongs to the external driver's runtime).
	entry := "main"
	if module.Function(entry) == nil && len(module.Functions) > 0 {
		entry = module.Functions[0].Name
	}
	prog, _, err := asm.Build(module, entry, h)
	if err != nil || !h.Ok() {
		return failure(h)
	}

	return CompileResult{
		Kind:      ResultBytecode,
		Words:     prog.Words,
		Abi:       abi.Build(typed, ctx),
		SourceMap: prog.SourceMap,
		Warnings:  h.Warnings(),
	}
}

func failure(h *diag.Handler) CompileResult {
	return CompileResult{Kind: ResultFailure, Errors: h.Errors(), Warnings: h.Warnings()}
}
