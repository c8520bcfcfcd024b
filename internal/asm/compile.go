package asm

import (
	"github.com/vmlang/corec/internal/diag"
	"github.com/vmlang/corec/internal/ir"
	"github.com/vmlang/corec/internal/span"
)

// Build runs the whole backend over an IR module: selection + allocation,
// caller-save expansion, control-flow relocation, iterative label
// realization with far-jump rewriting, and final encoding. Backend errors
// are fatal and always carry a span.
func Build(m *ir.Module, entry string, h *diag.Handler) (*Program, LabelLayout, error) {
	set, ds, err := Generate(m, entry, h)
	if err != nil {
		h.Errorf(diag.KindBackend, span.None(), "%s", err.Error())
		return nil, nil, err
	}

	set.ExpandSaveRestore()
	set.RelocateControlFlow(ds)

	realized, layout, err := set.RealizeLabels(ds)
	if err != nil {
		h.Errorf(diag.KindBackend, span.None(), "%s", err.Error())
		return nil, nil, err
	}

	prog, err := Emit(realized, ds)
	if err != nil {
		h.Errorf(diag.KindBackend, span.None(), "%s", err.Error())
		return nil, nil, err
	}
	return prog, layout, nil
}
