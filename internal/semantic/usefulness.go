package semantic

import (
	"sort"

	"github.com/vmlang/corec/internal/types"
)

// This file implements the standard usefulness algorithm behind the
// exhaustiveness and reachability checks: a
// pattern vector q is useful against a matrix iff some value matches q and
// no row of the matrix. The match is exhaustive iff the wildcard row is
// not useful; an arm is reachable iff its row is useful against the rows
// above it. Or-patterns are serialized into the Cartesian product of their
// elements before specialization; numeric constructors are value ranges
// and completeness on them requires the range union to cover the type's
// whole domain.

// ctor is one constructor extracted from a pattern head during
// specialization.
type ctor struct {
	kind    PatKind
	lo, hi  uint64
	boolVal bool
	b256    [32]byte
	str     string
	variant int
	arity   int
	subTys  []types.TypeHandle
}

func (ch *checker) isUseful(tys []types.TypeHandle, matrix [][]*MatchPattern, q []*MatchPattern) bool {
	matrix = expandOrRows(matrix)

	if len(q) == 0 {
		return len(matrix) == 0
	}
	head := q[0]

	if head.Kind == PatOr {
		for _, alt := range head.Subs {
			if ch.isUseful(tys, matrix, append([]*MatchPattern{alt}, q[1:]...)) {
				return true
			}
		}
		return false
	}

	ty := tys[0]
	if head.Kind == PatWildcard {
		sigma, complete := ch.signature(ty, matrix)
		if !complete {
			return ch.isUseful(tys[1:], defaultMatrix(matrix), q[1:])
		}
		for _, c := range sigma {
			specQ := make([]*MatchPattern, 0, c.arity+len(q)-1)
			for i := 0; i < c.arity; i++ {
				specQ = append(specQ, wildcardPattern())
			}
			specQ = append(specQ, q[1:]...)
			if ch.isUseful(append(append([]types.TypeHandle{}, c.subTys...), tys[1:]...), ch.specialize(c, matrix), specQ) {
				return true
			}
		}
		return false
	}

	c := ch.ctorOf(head, ty)
	if c.kind == PatRange {
		// Split q's range at the boundaries of the ranges present in the
		// matrix so every fragment is covered by a constant set of rows.
		for _, frag := range splitRange(c.lo, c.hi, matrix) {
			if ch.isUseful(tys[1:], ch.specialize(frag, matrix), q[1:]) {
				return true
			}
		}
		return false
	}
	specQ := append(append([]*MatchPattern{}, head.Subs...), q[1:]...)
	return ch.isUseful(append(append([]types.TypeHandle{}, c.subTys...), tys[1:]...), ch.specialize(c, matrix), specQ)
}

// expandOrRows serializes every or-pattern in the matrix into the
// Cartesian product of its alternatives.
func expandOrRows(matrix [][]*MatchPattern) [][]*MatchPattern {
	var out [][]*MatchPattern
	for _, row := range matrix {
		out = append(out, expandRow(row)...)
	}
	return out
}

func expandRow(row []*MatchPattern) [][]*MatchPattern {
	for i, p := range row {
		if p.Kind != PatOr {
			continue
		}
		var out [][]*MatchPattern
		for _, alt := range p.Subs {
			next := make([]*MatchPattern, len(row))
			copy(next, row)
			next[i] = alt
			out = append(out, expandRow(next)...)
		}
		return out
	}
	return [][]*MatchPattern{row}
}

// ctorOf extracts the constructor of a non-wildcard, non-or pattern head.
func (ch *checker) ctorOf(p *MatchPattern, ty types.TypeHandle) ctor {
	switch p.Kind {
	case PatRange:
		return ctor{kind: PatRange, lo: p.Lo, hi: p.Hi}
	case PatBool:
		return ctor{kind: PatBool, boolVal: p.Bool}
	case PatB256:
		return ctor{kind: PatB256, b256: p.B256}
	case PatString:
		return ctor{kind: PatString, str: p.Str}
	case PatTuple:
		d := ch.ctx.GetType(ty)
		return ctor{kind: PatTuple, arity: len(p.Subs), subTys: d.Elems}
	case PatStruct:
		return ctor{kind: PatStruct, arity: len(p.Subs), subTys: ch.structFieldTypes(ty)}
	case PatEnum:
		return ctor{kind: PatEnum, variant: p.Variant, arity: len(p.Subs), subTys: ch.variantPayloadTypes(ty, p.Variant)}
	}
	return ctor{kind: PatWildcard}
}

func (ch *checker) structFieldTypes(ty types.TypeHandle) []types.TypeHandle {
	d := ch.ctx.GetType(ty)
	if d.Tag != types.TagStruct {
		return nil
	}
	decl := ch.ctx.GetDecl(d.Decl)
	sigma := types.Substitution{}
	for i, p := range decl.TypeParams {
		if i < len(d.Args) {
			sigma[p.Name] = d.Args[i]
		}
	}
	out := make([]types.TypeHandle, len(decl.Struct.Fields))
	for i, f := range decl.Struct.Fields {
		out[i] = ch.ctx.Substitute(f.Type, sigma)
	}
	return out
}

func (ch *checker) variantPayloadTypes(ty types.TypeHandle, variant int) []types.TypeHandle {
	d := ch.ctx.GetType(ty)
	if d.Tag != types.TagEnum {
		return nil
	}
	decl := ch.ctx.GetDecl(d.Decl)
	if variant >= len(decl.Enum.Variants) {
		return nil
	}
	payload := decl.Enum.Variants[variant].Payload
	if !payload.IsValid() {
		return nil
	}
	sigma := types.Substitution{}
	for i, p := range decl.TypeParams {
		if i < len(d.Args) {
			sigma[p.Name] = d.Args[i]
		}
	}
	return []types.TypeHandle{ch.ctx.Substitute(payload, sigma)}
}

// specialize filters and unpacks the matrix by a constructor: rows whose
// head carries the same constructor contribute their sub-patterns; rows
// with a wildcard head contribute fresh wildcards; every other row is
// dropped. For range constructors c is always a fragment fully inside or
// outside each row's range, so containment is the match test.
func (ch *checker) specialize(c ctor, matrix [][]*MatchPattern) [][]*MatchPattern {
	var out [][]*MatchPattern
	for _, row := range matrix {
		head := row[0]
		switch head.Kind {
		case PatWildcard:
			spec := make([]*MatchPattern, 0, c.arity+len(row)-1)
			for i := 0; i < c.arity; i++ {
				spec = append(spec, wildcardPattern())
			}
			out = append(out, append(spec, row[1:]...))
		case PatRange:
			if c.kind == PatRange && head.Lo <= c.lo && c.hi <= head.Hi {
				out = append(out, row[1:])
			}
		case PatBool:
			if c.kind == PatBool && head.Bool == c.boolVal {
				out = append(out, row[1:])
			}
		case PatB256:
			if c.kind == PatB256 && head.B256 == c.b256 {
				out = append(out, row[1:])
			}
		case PatString:
			if c.kind == PatString && head.Str == c.str {
				out = append(out, row[1:])
			}
		case PatTuple, PatStruct:
			if c.kind == head.Kind {
				out = append(out, append(append([]*MatchPattern{}, head.Subs...), row[1:]...))
			}
		case PatEnum:
			if c.kind == PatEnum && head.Variant == c.variant {
				out = append(out, append(append([]*MatchPattern{}, head.Subs...), row[1:]...))
			}
		}
	}
	return out
}

// defaultMatrix keeps only wildcard-headed rows, dropping their head.
func defaultMatrix(matrix [][]*MatchPattern) [][]*MatchPattern {
	var out [][]*MatchPattern
	for _, row := range matrix {
		if row[0].Kind == PatWildcard {
			out = append(out, row[1:])
		}
	}
	return out
}

// signature reports whether the constructors present in the matrix's first
// column form a complete signature for ty, and if so which constructors to
// specialize a wildcard by. Types with effectively unbounded constructor
// spaces (b256, strings, integers wider than 64 bits) are never complete;
// single-constructor types (unit, tuples, structs) always are.
func (ch *checker) signature(ty types.TypeHandle, matrix [][]*MatchPattern) ([]ctor, bool) {
	if !ty.IsValid() {
		return nil, false
	}
	d := ch.ctx.GetType(ty)
	switch d.Tag {
	case types.TagUnit:
		return []ctor{{kind: PatTuple, arity: 0}}, true
	case types.TagBool:
		sawTrue, sawFalse := false, false
		for _, row := range matrix {
			if row[0].Kind == PatBool {
				if row[0].Bool {
					sawTrue = true
				} else {
					sawFalse = true
				}
			}
		}
		if sawTrue && sawFalse {
			return []ctor{{kind: PatBool, boolVal: true}, {kind: PatBool, boolVal: false}}, true
		}
		return nil, false
	case types.TagUInt:
		if d.Width > 64 {
			return nil, false
		}
		return rangeSignature(maxOfWidth(d.Width), matrix)
	case types.TagNumeric:
		return rangeSignature(maxOfWidth(64), matrix)
	case types.TagTuple:
		return []ctor{{kind: PatTuple, arity: len(d.Elems), subTys: d.Elems}}, true
	case types.TagStruct:
		fields := ch.structFieldTypes(ty)
		return []ctor{{kind: PatStruct, arity: len(fields), subTys: fields}}, true
	case types.TagEnum:
		decl := ch.ctx.GetDecl(d.Decl)
		sigma := make([]ctor, len(decl.Enum.Variants))
		for i := range decl.Enum.Variants {
			subTys := ch.variantPayloadTypes(ty, i)
			sigma[i] = ctor{kind: PatEnum, variant: i, arity: len(subTys), subTys: subTys}
		}
		return sigma, true
	default:
		return nil, false
	}
}

// rangeSignature checks whether the union of the matrix's first-column
// ranges covers [0, max]; if it does, the present ranges themselves are
// the signature (they partition further during specialization).
func rangeSignature(max uint64, matrix [][]*MatchPattern) ([]ctor, bool) {
	type iv struct{ lo, hi uint64 }
	var ivs []iv
	for _, row := range matrix {
		if row[0].Kind == PatRange {
			ivs = append(ivs, iv{row[0].Lo, row[0].Hi})
		}
	}
	if len(ivs) == 0 {
		return nil, false
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].lo < ivs[j].lo })

	// Sweep: covered reaches max with no gap.
	if ivs[0].lo != 0 {
		return nil, false
	}
	covered := ivs[0].hi
	for _, r := range ivs[1:] {
		if covered == max {
			break
		}
		if r.lo > covered+1 {
			return nil, false
		}
		if r.hi > covered {
			covered = r.hi
		}
	}
	if covered != max {
		return nil, false
	}
	sigma := make([]ctor, len(ivs))
	for i, r := range ivs {
		sigma[i] = ctor{kind: PatRange, lo: r.lo, hi: r.hi}
	}
	return sigma, true
}

func maxOfWidth(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

// splitRange partitions [lo, hi] at the boundaries of the matrix's
// first-column ranges so each returned fragment is uniformly covered.
func splitRange(lo, hi uint64, matrix [][]*MatchPattern) []ctor {
	cuts := map[uint64]bool{lo: true}
	for _, row := range matrix {
		if row[0].Kind != PatRange {
			continue
		}
		if row[0].Lo > lo && row[0].Lo <= hi {
			cuts[row[0].Lo] = true
		}
		if row[0].Hi >= lo && row[0].Hi < hi {
			cuts[row[0].Hi + 1] = true
		}
	}
	starts := make([]uint64, 0, len(cuts))
	for s := range cuts {
		starts = append(starts, s)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	out := make([]ctor, 0, len(starts))
	for i, s := range starts {
		end := hi
		if i+1 < len(starts) {
			end = starts[i+1] - 1
		}
		out = append(out, ctor{kind: PatRange, lo: s, hi: end})
	}
	return out
}
