package ast

import "github.com/vmlang/corec/internal/span"

// Pattern is a match-arm or let-binding pattern. The set of constructors
// here matches the usefulness-algorithm constructor set the semantic
// analyzer's exhaustiveness checker enumerates over: wildcard, literal
// range, boolean, b256, string, tuple, struct, enum variant, or-pattern.
type Pattern interface {
	Node
	patternNode()
}

// WildcardPattern is `_` or a plain bound variable `name` (a catch-all
// binding that never fails to match).
type WildcardPattern struct {
	BindName string // empty for a bare `_`
	Sp       span.ID
}

func (n *WildcardPattern) patternNode() {}
func (n *WildcardPattern) Span() span.ID { return n.Sp }
func (n *WildcardPattern) String() string {
	if n.BindName == "" {
		return "_"
	}
	return n.BindName
}

// LiteralRangePattern matches a single literal or an inclusive `lo..=hi`
// numeric range. For a single-value match, Lo == Hi.
type LiteralRangePattern struct {
	Lo string
	Hi string
	Sp span.ID
}

func (n *LiteralRangePattern) patternNode() {}
func (n *LiteralRangePattern) Span() span.ID { return n.Sp }
func (n *LiteralRangePattern) String() string {
	if n.Lo == n.Hi {
		return n.Lo
	}
	return n.Lo + "..=" + n.Hi
}

// BoolPattern matches `true` or `false`.
type BoolPattern struct {
	Value bool
	Sp    span.ID
}

func (n *BoolPattern) patternNode() {}
func (n *BoolPattern) Span() span.ID { return n.Sp }
func (n *BoolPattern) String() string {
	if n.Value {
		return "true"
	}
	return "false"
}

// B256Pattern matches a literal 32-byte value.
type B256Pattern struct {
	Value [32]byte
	Sp    span.ID
}

func (n *B256Pattern) patternNode() {}
func (n *B256Pattern) Span() span.ID { return n.Sp }
func (n *B256Pattern) String() string { return "b256 literal" }

// StringPattern matches a literal fixed-length string.
type StringPattern struct {
	Value string
	Sp    span.ID
}

func (n *StringPattern) patternNode() {}
func (n *StringPattern) Span() span.ID { return n.Sp }
func (n *StringPattern) String() string { return "\"" + n.Value + "\"" }

// TuplePattern destructures a tuple positionally.
type TuplePattern struct {
	Elems []Pattern
	Sp    span.ID
}

func (n *TuplePattern) patternNode() {}
func (n *TuplePattern) Span() span.ID { return n.Sp }
func (n *TuplePattern) String() string { return "(tuple pattern)" }

// StructFieldPattern is one `name: pattern` entry in a struct pattern.
type StructFieldPattern struct {
	Name    string
	Pattern Pattern
	Sp      span.ID
}

// StructPattern destructures a struct by field name. Rest indicates a
// trailing `..` that allows unmatched fields to be ignored.
type StructPattern struct {
	TypeName string
	Fields   []StructFieldPattern
	Rest     bool
	Sp       span.ID
}

func (n *StructPattern) patternNode() {}
func (n *StructPattern) Span() span.ID { return n.Sp }
func (n *StructPattern) String() string { return n.TypeName + "{...}" }

// EnumPattern matches a specific variant of an enum, optionally
// destructuring its payload.
type EnumPattern struct {
	TypeName string
	Variant  string
	Payload  Pattern // nil for a unit variant
	Sp       span.ID
}

func (n *EnumPattern) patternNode() {}
func (n *EnumPattern) Span() span.ID { return n.Sp }
func (n *EnumPattern) String() string { return n.TypeName + "::" + n.Variant }

// OrPattern is `pat1 | pat2 | ...`; it matches if any alternative matches,
// and is itself a single constructor class flattened during usefulness
// checking rather than treated as its own column constructor.
type OrPattern struct {
	Alternatives []Pattern
	Sp           span.ID
}

func (n *OrPattern) patternNode() {}
func (n *OrPattern) Span() span.ID { return n.Sp }
func (n *OrPattern) String() string { return "or pattern" }
