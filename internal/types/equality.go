package types

// StructurallyEqual reports whether a and b denote the same type shape,
// independent of handle identity. Used for trait-map type-argument
// comparison and by Unify's SelfType check; monomorphization memoization
// uses the matching shape key built by memoKey. It does not require live
// unification state, so it's also safe to call between separately-unified
// handles during trait lookup.
func (c *Context) StructurallyEqual(a, b TypeHandle) bool {
	da, db := c.GetType(a), c.GetType(b)
	if da.Tag != db.Tag {
		return false
	}
	switch da.Tag {
	case TagUInt, TagStringN:
		return da.Width == db.Width
	case TagPtr, TagSlice:
		return c.StructurallyEqual(da.Elem, db.Elem)
	case TagArray:
		return da.ArrayLen == db.ArrayLen && c.StructurallyEqual(da.Elem, db.Elem)
	case TagTuple:
		return c.equalHandleLists(da.Elems, db.Elems)
	case TagStruct, TagEnum:
		return da.Decl == db.Decl && c.equalHandleLists(da.Args, db.Args)
	case TagContract:
		return da.Decl == db.Decl
	case TagGeneric:
		return da.Name == db.Name && equalConstraints(da.Constraints, db.Constraints)
	case TagTraitType:
		return da.Name == db.Name && da.Decl == db.Decl && c.equalHandleLists(da.Args, db.Args)
	default:
		// Unit, Bool, B256, RawPtr, RawSlice, StringSlice, SelfType,
		// Unknown, Numeric, ErrorRecovery: tag equality is the whole story.
		return true
	}
}

func (c *Context) equalHandleLists(a, b []TypeHandle) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !c.StructurallyEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalConstraints(a, b []TraitConstraint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].TraitName != b[i].TraitName || len(a[i].Args) != len(b[i].Args) {
			return false
		}
	}
	return true
}

// memoKey builds a deterministic string key for monomorphization memoization
// from a generic declaration handle and a concrete argument-type list. It
// relies on StructurallyEqual-compatible shape rendering rather than handle
// numbers, so two calls with differently-numbered but structurally
// identical argument types hit the same cache entry.
func (c *Context) memoKey(generic DeclHandle, args []TypeHandle) string {
	key := make([]byte, 0, 32)
	key = appendInt(key, int(generic))
	for _, a := range args {
		key = append(key, '|')
		key = c.appendShape(key, a)
	}
	return string(key)
}

func (c *Context) appendShape(buf []byte, h TypeHandle) []byte {
	d := c.GetType(h)
	buf = append(buf, byte(d.Tag))
	switch d.Tag {
	case TagUInt, TagStringN:
		buf = appendInt(buf, d.Width)
	case TagPtr, TagSlice:
		buf = c.appendShape(buf, d.Elem)
	case TagArray:
		buf = appendInt(buf, d.ArrayLen)
		buf = c.appendShape(buf, d.Elem)
	case TagTuple:
		for _, e := range d.Elems {
			buf = c.appendShape(buf, e)
		}
	case TagStruct, TagEnum:
		buf = appendInt(buf, int(d.Decl))
		for _, a := range d.Args {
			buf = c.appendShape(buf, a)
		}
	case TagContract:
		buf = appendInt(buf, int(d.Decl))
	case TagGeneric:
		buf = append(buf, d.Name...)
		for _, tc := range d.Constraints {
			buf = append(buf, ':')
			buf = append(buf, tc.TraitName...)
			buf = appendInt(buf, len(tc.Args))
		}
	case TagTraitType:
		buf = append(buf, d.Name...)
		buf = appendInt(buf, int(d.Decl))
		for _, a := range d.Args {
			buf = c.appendShape(buf, a)
		}
	}
	return buf
}

func appendInt(buf []byte, n int) []byte {
	if n == 0 {
		return append(buf, '0')
	}
	neg := n < 0
	if neg {
		n = -n
		buf = append(buf, '-')
	}
	start := len(buf)
	for n > 0 {
		buf = append(buf, byte('0'+n%10))
		n /= 10
	}
	// digits were appended least-significant first; reverse them in place.
	for i, j := start, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf
}
