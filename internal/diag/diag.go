// Package diag accumulates and renders compiler diagnostics.
//
// Every pipeline stage reports into a single Handler for the duration of
// one compilation. Diagnostics carry a span.ID rather than a resolved
// position; resolving to line/column/source-text only happens when
// rendering for a human, which is the driver's job, not the core's.
package diag

import (
	"fmt"

	"github.com/vmlang/corec/internal/span"
)

// Kind classifies a diagnostic by the taxonomy of error handling design:
// parse, name-resolution, type, purity, exhaustiveness, IR-internal, and
// backend errors, plus warnings that never block compilation.
type Kind int

const (
	KindParse Kind = iota
	KindNameResolution
	KindType
	KindPurity
	KindExhaustiveness
	KindIRInternal
	KindBackend
	KindWarning
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse error"
	case KindNameResolution:
		return "name resolution error"
	case KindType:
		return "type error"
	case KindPurity:
		return "purity error"
	case KindExhaustiveness:
		return "exhaustiveness error"
	case KindIRInternal:
		return "internal compiler error"
	case KindBackend:
		return "backend error"
	case KindWarning:
		return "warning"
	default:
		return "diagnostic"
	}
}

// IsError reports whether a diagnostic of this kind blocks compilation. All
// kinds block except KindWarning, per the error-handling design: warnings
// never block compilation; deny-by-default lints may be escalated to
// errors by the driver, which is out of the core's concern.
func (k Kind) IsError() bool {
	return k != KindWarning
}

// LabeledSpan is a secondary span with an explanatory label, e.g. "defined
// here" or "first match here".
type LabeledSpan struct {
	Span  span.ID
	Label string
}

// Diagnostic is one reported problem: a kind, a primary span, optional
// secondary spans with labels, and optional help text. The core only
// produces this data; formatting it for a terminal is the driver's job.
type Diagnostic struct {
	Kind      Kind
	Message   string
	Primary   span.ID
	Secondary []LabeledSpan
	Help      string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// Handler accumulates diagnostics for one compilation. A phase reports
// success iff its handler has accumulated no errors (warnings don't
// count); the driver stops after the first phase that reports failure, but
// every diagnostic gathered during that phase is surfaced, not just the
// first.
type Handler struct {
	diags []Diagnostic
}

// NewHandler creates an empty diagnostic handler for one compilation.
func NewHandler() *Handler {
	return &Handler{}
}

// Report appends a diagnostic. Diagnostics are expected to be appended in
// source-span order within one top-level item and in declaration order
// across items, per the ordering guarantees in the concurrency model;
// callers are responsible for walking the AST in that order since the
// handler itself does no reordering or sorting.
func (h *Handler) Report(d Diagnostic) {
	h.diags = append(h.diags, d)
}

// Errorf reports a diagnostic built from a format string, mirroring the
// AddError convenience the analyzer passes lean on.
func (h *Handler) Errorf(kind Kind, primary span.ID, format string, args ...any) {
	h.Report(Diagnostic{Kind: kind, Message: fmt.Sprintf(format, args...), Primary: primary})
}

// All returns every diagnostic reported so far, in report order.
func (h *Handler) All() []Diagnostic {
	return h.diags
}

// Errors returns only the blocking diagnostics.
func (h *Handler) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range h.diags {
		if d.Kind.IsError() {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns only the non-blocking diagnostics.
func (h *Handler) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, d := range h.diags {
		if !d.Kind.IsError() {
			out = append(out, d)
		}
	}
	return out
}

// HasErrors reports whether any blocking diagnostic has been reported.
func (h *Handler) HasErrors() bool {
	for _, d := range h.diags {
		if d.Kind.IsError() {
			return true
		}
	}
	return false
}

// Ok reports a phase's success as defined by the error-handling design: no
// accumulated errors, warnings notwithstanding.
func (h *Handler) Ok() bool {
	return !h.HasErrors()
}
