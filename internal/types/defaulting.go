package types

// DefaultNumeric rewrites t to 64-bit unsigned if it is still a bare
// Numeric placeholder. Any other tag is
// returned unchanged. Callers that have a concrete operand to default
// against should prefer Unify(t, operand, ...) instead, which binds Numeric
// to that operand's type rather than defaulting outright.
func (c *Context) DefaultNumeric(t TypeHandle) TypeHandle {
	if c.GetType(t).Tag == TagNumeric {
		return c.UInt(64)
	}
	return t
}

// HasPlaceholder reports whether t (recursively) still contains an Unknown,
// Numeric, or SelfType handle — the condition the data model forbids
// once type checking completes, except inside an un-monomorphized generic
// function's typed declaration.
func (c *Context) HasPlaceholder(t TypeHandle) bool {
	d := c.GetType(t)
	switch d.Tag {
	case TagUnknown, TagNumeric, TagSelfType:
		return true
	case TagPtr, TagSlice:
		return c.HasPlaceholder(d.Elem)
	case TagArray:
		return c.HasPlaceholder(d.Elem)
	case TagTuple:
		for _, e := range d.Elems {
			if c.HasPlaceholder(e) {
				return true
			}
		}
		return false
	case TagStruct, TagEnum, TagTraitType:
		for _, a := range d.Args {
			if c.HasPlaceholder(a) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
