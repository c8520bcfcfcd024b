// Package span interns byte-range source spans so diagnostics can carry a
// compact identifier instead of a pair of offsets everywhere they travel.
package span

// Range is a half-open byte range into a single source unit's text.
type Range struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// ID is an interned handle to a Range. The zero ID is reserved and never
// returned by Interner.Insert; it is used by recovery paths that need "no
// span" without special-casing a pointer.
type ID int

const noSpan ID = 0

// Interner is the source-span interner described in the type-and-
// declaration data model: it maps byte ranges to compact identifiers so
// diagnostics carry a small payload instead of copying ranges everywhere.
type Interner struct {
	unit   string
	ranges []Range
}

// NewInterner creates an interner for a single source unit (file or module).
func NewInterner(unit string) *Interner {
	// index 0 is reserved for noSpan
	return &Interner{unit: unit, ranges: []Range{{}}}
}

// Insert interns a byte range, returning a stable ID. Interning the same
// range twice returns two different IDs by design — spans are not
// deduplicated, since callers compare diagnostics by ID identity, not by
// range equality (two nodes with identical sub-expressions must each report
// at their own location).
func (in *Interner) Insert(r Range) ID {
	in.ranges = append(in.ranges, r)
	return ID(len(in.ranges) - 1)
}

// Unit returns the source unit name this interner was built for.
func (in *Interner) Unit() string {
	return in.unit
}

// Range resolves an ID back to its byte range. Panics on an out-of-range ID;
// an in-range ID from a different interner is not detected. Span IDs never
// outlive the
// interner that produced them within one compilation.
func (in *Interner) Range(id ID) Range {
	return in.ranges[id]
}

// None is the canonical "no span" identifier, used by recovery values that
// must still produce something for the ID but carry no real source
// location (e.g. a compiler-synthesized catch-all arm).
func None() ID {
	return noSpan
}

// IsNone reports whether id is the reserved "no span" identifier.
func (id ID) IsNone() bool {
	return id == noSpan
}
