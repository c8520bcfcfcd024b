package types

// Substitution maps a generic parameter name to the concrete type it's bound
// to within one monomorphization or trait-impl instantiation.
type Substitution map[string]TypeHandle

// Substitute rewrites every Generic(name) occurrence inside T that appears
// as a key in sigma, producing a new handle. Non-generic leaves and
// occurrences of names absent from sigma are returned unchanged (the same
// handle, not a fresh copy), so substitution is a no-op allocation-wise
// when sigma doesn't touch a given subtree.
func (c *Context) Substitute(t TypeHandle, sigma Substitution) TypeHandle {
	if len(sigma) == 0 {
		return t
	}
	d := c.GetType(t)
	switch d.Tag {
	case TagGeneric:
		if bound, ok := sigma[d.Name]; ok {
			return bound
		}
		return t
	case TagPtr:
		elem := c.Substitute(d.Elem, sigma)
		if elem == d.Elem {
			return t
		}
		return c.Ptr(elem)
	case TagSlice:
		elem := c.Substitute(d.Elem, sigma)
		if elem == d.Elem {
			return t
		}
		return c.Slice(elem)
	case TagArray:
		elem := c.Substitute(d.Elem, sigma)
		if elem == d.Elem {
			return t
		}
		return c.Array(elem, d.ArrayLen)
	case TagTuple:
		elems, changed := c.substituteList(d.Elems, sigma)
		if !changed {
			return t
		}
		return c.Tuple(elems)
	case TagStruct:
		args, changed := c.substituteList(d.Args, sigma)
		if !changed {
			return t
		}
		return c.Struct(d.Decl, args)
	case TagEnum:
		args, changed := c.substituteList(d.Args, sigma)
		if !changed {
			return t
		}
		return c.Enum(d.Decl, args)
	case TagTraitType:
		args, changed := c.substituteList(d.Args, sigma)
		if !changed {
			return t
		}
		return c.TraitType(d.Name, d.Decl, args)
	default:
		return t
	}
}

func (c *Context) substituteList(in []TypeHandle, sigma Substitution) ([]TypeHandle, bool) {
	out := make([]TypeHandle, len(in))
	changed := false
	for i, h := range in {
		out[i] = c.Substitute(h, sigma)
		if out[i] != h {
			changed = true
		}
	}
	if !changed {
		return in, false
	}
	return out, true
}
