package semantic

import (
	"strings"

	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/diag"
	"github.com/vmlang/corec/internal/span"
	"github.com/vmlang/corec/internal/types"
)

// PatKind is the restricted pattern form exhaustiveness operates over:
// wildcard, literal range, boolean, b256, string, tuple, struct, enum
// variant, or-pattern.
type PatKind int

const (
	PatWildcard PatKind = iota
	PatRange
	PatBool
	PatB256
	PatString
	PatTuple
	PatStruct
	PatEnum
	PatOr
)

// MatchPattern is one converted pattern. Subs holds tuple elements, struct
// fields in declaration order, an enum variant's single payload, or an
// or-pattern's alternatives, depending on Kind.
type MatchPattern struct {
	Kind PatKind
	Span span.ID

	BindName string // PatWildcard: non-empty for a named binding

	Lo, Hi uint64 // PatRange, inclusive
	Bool   bool
	B256   [32]byte
	Str    string

	Subs []*MatchPattern

	// PatEnum.
	EnumDecl types.DeclHandle
	Variant  int
}

func wildcardPattern() *MatchPattern { return &MatchPattern{Kind: PatWildcard} }

// checkMatch type-checks a match expression: the scrutinee first, then
// each arm's pattern against the scrutinee's type (collecting bindings for
// the arm body), then all arm bodies unified to one common type, then the
// usefulness-based exhaustiveness and reachability analysis.
func (ch *checker) checkMatch(cx AnalysisContext, scope *localScope, n *ast.MatchExpr) *TypedExpr {
	scrut := ch.checkExpr(cx.WithTypeAnnotation(ch.ctx.Unknown()).WithHelpText(""), scope, n.Scrutinee)
	scrutTy := ch.ctx.DefaultNumeric(scrut.Type)

	out := &TypedExpr{Kind: ExprMatch, Span: n.Sp, Args: []*TypedExpr{scrut}}

	var armTy types.TypeHandle
	var exMatrix [][]*MatchPattern // guard-free rows only; guards can fail at runtime
	var allRows [][]*MatchPattern

	for i, arm := range n.Arms {
		bindings := map[string]types.TypeHandle{}
		pat := ch.convertPattern(cx, arm.Pattern, scrutTy, bindings)
		row := []*MatchPattern{pat}

		// Reachability: an arm is reachable iff it is useful against the
		// rows strictly above it; guarded arms are conservatively reachable.
		if arm.Guard == nil && !ch.isUseful([]types.TypeHandle{scrutTy}, allRows, row) {
			ch.reportUnreachable(n.Arms, i)
		}
		allRows = append(allRows, row)
		if arm.Guard == nil {
			exMatrix = append(exMatrix, row)
		}
		armScope := newLocalScope(scope)
		var bound []TypedParam
		for name, ty := range bindings {
			armScope.Define(name, localBinding{Type: ty, Mutable: false})
			bound = append(bound, TypedParam{Name: name, Type: ty})
		}
		if arm.Guard != nil {
			g := ch.checkExpr(cx.WithTypeAnnotation(ch.ctx.Bool()).WithHelpText("match guards must be bool"), armScope, arm.Guard)
			ch.expectType(g, ch.ctx.Bool(), cx)
		}

		bodyCx := cx
		if armTy.IsValid() {
			bodyCx = cx.WithTypeAnnotation(armTy).WithHelpText("match arms must produce one type")
		}
		body := ch.checkExpr(bodyCx, armScope, arm.Body)
		if !armTy.IsValid() {
			armTy = body.Type
		} else {
			unified, err := ch.ctx.Unify(body.Type, armTy, cx.SelfType(), "match arms must produce one type")
			if err != nil {
				ch.reportMismatch(arm.Sp, armTy, body.Type, err)
			} else {
				armTy = unified
			}
		}
		out.Arms = append(out.Arms, TypedMatchArm{Pattern: pat, Body: body, Bindings: bound, Span: arm.Sp})
	}

	if !armTy.IsValid() {
		armTy = ch.ctx.Unit()
	}
	out.Type = ch.ctx.DefaultNumeric(armTy)

	ch.checkExhaustive(cx, n, scrutTy, exMatrix, out)
	return out
}

// checkExhaustive asks whether a wildcard row would still be useful
// against the arm matrix: if it is, the match misses values. Misses on
// enums are hard errors naming the missing variants; on other types they
// warn and a synthesized catch-all arm (reverting at runtime) keeps the
// lowered decision tree total.
func (ch *checker) checkExhaustive(cx AnalysisContext, n *ast.MatchExpr, scrutTy types.TypeHandle, matrix [][]*MatchPattern, out *TypedExpr) {
	if !ch.isUseful([]types.TypeHandle{scrutTy}, matrix, []*MatchPattern{wildcardPattern()}) {
		return
	}

	d := ch.ctx.GetType(scrutTy)
	if d.Tag == types.TagEnum {
		missing := ch.missingVariants(scrutTy, matrix)
		ch.diags.Report(diag.Diagnostic{
			Kind: diag.KindExhaustiveness, Primary: n.Sp,
			Message: "non-exhaustive match: variant" + plural(missing) + " " + strings.Join(missing, ", ") + " not covered",
		})
		return
	}

	ch.diags.Report(diag.Diagnostic{
		Kind: diag.KindWarning, Primary: n.Sp,
		Message: "non-exhaustive match; a reverting catch-all arm was added",
		Help:    "add a `_` arm to handle the remaining values explicitly",
	})
	out.Arms = append(out.Arms, TypedMatchArm{
		Pattern: wildcardPattern(),
		Body: &TypedExpr{
			Kind: ExprIntrinsic, Type: out.Type, Span: span.None(),
			Intrinsic: "__revert",
			Args: []*TypedExpr{{
				Kind: ExprLiteral, Type: ch.ctx.UInt(64), Span: span.None(),
				Literal: LiteralValue{Kind: ast.LitInt, Int: 0},
			}},
		},
		Span: span.None(),
	})
}

// missingVariants names every variant a wildcard payload would still make
// useful — i.e. the variants no arm covers.
func (ch *checker) missingVariants(enumTy types.TypeHandle, matrix [][]*MatchPattern) []string {
	d := ch.ctx.GetType(enumTy)
	decl := ch.ctx.GetDecl(d.Decl)
	var missing []string
	for i, v := range decl.Enum.Variants {
		probe := &MatchPattern{Kind: PatEnum, EnumDecl: d.Decl, Variant: i}
		if v.Payload.IsValid() {
			probe.Subs = []*MatchPattern{wildcardPattern()}
		}
		if ch.isUseful([]types.TypeHandle{enumTy}, matrix, []*MatchPattern{probe}) {
			missing = append(missing, v.Name)
		}
	}
	return missing
}

func (ch *checker) reportUnreachable(arms []ast.MatchArm, idx int) {
	var prior []diag.LabeledSpan
	for j := 0; j < idx; j++ {
		prior = append(prior, diag.LabeledSpan{Span: arms[j].Sp, Label: "matches first here"})
	}
	ch.diags.Report(diag.Diagnostic{
		Kind: diag.KindWarning, Primary: arms[idx].Sp,
		Message:   "unreachable match arm",
		Secondary: prior,
	})
}

func plural(names []string) string {
	if len(names) > 1 {
		return "s"
	}
	return ""
}

// convertPattern lowers a syntactic pattern to the restricted form, checks
// it against the scrutinee type at its position, and records the variables
// it binds.
func (ch *checker) convertPattern(cx AnalysisContext, p ast.Pattern, ty types.TypeHandle, bindings map[string]types.TypeHandle) *MatchPattern {
	switch n := p.(type) {
	case *ast.WildcardPattern:
		if n.BindName != "" {
			bindings[n.BindName] = ty
		}
		return &MatchPattern{Kind: PatWildcard, BindName: n.BindName, Span: n.Sp}
	case *ast.LiteralRangePattern:
		lo, err1 := parseIntText(n.Lo)
		hi, err2 := parseIntText(n.Hi)
		if err1 != nil || err2 != nil || lo > hi {
			ch.diags.Errorf(diag.KindType, n.Sp, "invalid numeric range pattern")
			return wildcardPattern()
		}
		if d := ch.ctx.GetType(ty); d.Tag != types.TagUInt && d.Tag != types.TagNumeric && d.Tag != types.TagErrorRecovery {
			ch.diags.Errorf(diag.KindType, n.Sp, "numeric pattern against non-numeric type %s", ch.renderType(ty))
		}
		return &MatchPattern{Kind: PatRange, Lo: lo, Hi: hi, Span: n.Sp}
	case *ast.BoolPattern:
		ch.expectPatternType(ty, ch.ctx.Bool(), n.Sp)
		return &MatchPattern{Kind: PatBool, Bool: n.Value, Span: n.Sp}
	case *ast.B256Pattern:
		ch.expectPatternType(ty, ch.ctx.B256(), n.Sp)
		return &MatchPattern{Kind: PatB256, B256: n.Value, Span: n.Sp}
	case *ast.StringPattern:
		ch.expectPatternType(ty, ch.ctx.StringN(len(n.Value)), n.Sp)
		return &MatchPattern{Kind: PatString, Str: n.Value, Span: n.Sp}
	case *ast.TuplePattern:
		d := ch.ctx.GetType(ty)
		if d.Tag != types.TagTuple || len(d.Elems) != len(n.Elems) {
			ch.diags.Errorf(diag.KindType, n.Sp, "tuple pattern does not match type %s", ch.renderType(ty))
			return wildcardPattern()
		}
		out := &MatchPattern{Kind: PatTuple, Span: n.Sp}
		for i, sub := range n.Elems {
			out.Subs = append(out.Subs, ch.convertPattern(cx, sub, d.Elems[i], bindings))
		}
		return out
	case *ast.StructPattern:
		return ch.convertStructPattern(cx, n, ty, bindings)
	case *ast.EnumPattern:
		return ch.convertEnumPattern(cx, n, ty, bindings)
	case *ast.OrPattern:
		out := &MatchPattern{Kind: PatOr, Span: n.Sp}
		for _, alt := range n.Alternatives {
			out.Subs = append(out.Subs, ch.convertPattern(cx, alt, ty, bindings))
		}
		return out
	}
	return wildcardPattern()
}

func (ch *checker) convertStructPattern(cx AnalysisContext, n *ast.StructPattern, ty types.TypeHandle, bindings map[string]types.TypeHandle) *MatchPattern {
	d := ch.ctx.GetType(ty)
	if d.Tag != types.TagStruct {
		ch.diags.Errorf(diag.KindType, n.Sp, "struct pattern against non-struct type %s", ch.renderType(ty))
		return wildcardPattern()
	}
	decl := ch.ctx.GetDecl(d.Decl)
	if decl.Name != n.TypeName {
		ch.diags.Errorf(diag.KindType, n.Sp, "pattern names %q but the scrutinee is %q", n.TypeName, decl.Name)
		return wildcardPattern()
	}
	sigma := types.Substitution{}
	for i, p := range decl.TypeParams {
		if i < len(d.Args) {
			sigma[p.Name] = d.Args[i]
		}
	}

	byName := make(map[string]ast.Pattern, len(n.Fields))
	for _, f := range n.Fields {
		byName[f.Name] = f.Pattern
	}
	out := &MatchPattern{Kind: PatStruct, Span: n.Sp}
	for _, f := range decl.Struct.Fields {
		fieldTy := ch.ctx.Substitute(f.Type, sigma)
		if sub, ok := byName[f.Name]; ok {
			delete(byName, f.Name)
			out.Subs = append(out.Subs, ch.convertPattern(cx, sub, fieldTy, bindings))
		} else if n.Rest {
			out.Subs = append(out.Subs, wildcardPattern())
		} else {
			ch.diags.Errorf(diag.KindType, n.Sp, "pattern is missing field %q; add it or use `..`", f.Name)
			out.Subs = append(out.Subs, wildcardPattern())
		}
	}
	for name := range byName {
		ch.diags.Errorf(diag.KindType, n.Sp, "struct %q has no field named %q", decl.Name, name)
	}
	return out
}

func (ch *checker) convertEnumPattern(cx AnalysisContext, n *ast.EnumPattern, ty types.TypeHandle, bindings map[string]types.TypeHandle) *MatchPattern {
	d := ch.ctx.GetType(ty)
	if d.Tag != types.TagEnum {
		ch.diags.Errorf(diag.KindType, n.Sp, "enum pattern against non-enum type %s", ch.renderType(ty))
		return wildcardPattern()
	}
	decl := ch.ctx.GetDecl(d.Decl)
	variantIdx := -1
	for i, v := range decl.Enum.Variants {
		if v.Name == n.Variant {
			variantIdx = i
			break
		}
	}
	if variantIdx < 0 {
		ch.diags.Errorf(diag.KindNameResolution, n.Sp, "enum %q has no variant %q", decl.Name, n.Variant)
		return wildcardPattern()
	}
	variant := decl.Enum.Variants[variantIdx]
	out := &MatchPattern{Kind: PatEnum, EnumDecl: d.Decl, Variant: variantIdx, Span: n.Sp}
	if variant.Payload.IsValid() {
		sigma := types.Substitution{}
		for i, p := range decl.TypeParams {
			if i < len(d.Args) {
				sigma[p.Name] = d.Args[i]
			}
		}
		payloadTy := ch.ctx.Substitute(variant.Payload, sigma)
		if n.Payload != nil {
			out.Subs = []*MatchPattern{ch.convertPattern(cx, n.Payload, payloadTy, bindings)}
		} else {
			out.Subs = []*MatchPattern{wildcardPattern()}
		}
	} else if n.Payload != nil {
		ch.diags.Errorf(diag.KindType, n.Sp, "variant %q takes no payload", n.Variant)
	}
	return out
}

func (ch *checker) expectPatternType(scrut, want types.TypeHandle, sp span.ID) {
	if _, err := ch.ctx.Unify(scrut, want, types.TypeHandle(-1), "pattern must match the scrutinee's type"); err != nil {
		ch.reportMismatch(sp, want, scrut, err)
	}
}
