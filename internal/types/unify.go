package types

import "fmt"

// MismatchedTypeError reports that two type descriptors could not be made
// equal by substituting inference variables. It is returned by Unify
// rather than reported directly to a diag.Handler, since types has no
// dependency on diag — the caller (semantic) is responsible for turning it
// into a diagnostic at the call's source span.
type MismatchedTypeError struct {
	Expected TypeHandle
	Actual   TypeHandle
	Help     string
}

func (e *MismatchedTypeError) Error() string {
	msg := fmt.Sprintf("mismatched types: expected handle %d, found handle %d", e.Expected, e.Actual)
	if e.Help != "" {
		msg += " (" + e.Help + ")"
	}
	return msg
}

// Unify walks a and b in lockstep and reports whether they can be made
// equal by binding Unknown/Numeric handles:
//   - identical tags recurse structurally
//   - an Unknown on either side unifies with anything
//   - a Numeric unifies with another Numeric or with an integer-tagged type
//     (uN or b256), binding to that concrete type; any other type is a
//     mismatch
//   - SelfType unifies only with itself or with selfTy, the caller-supplied
//     currently-active self type (invalid if none is active)
//   - Generic unifies with another Generic of the same name and constraint set
//
// On success it returns the unified handle (the more concrete of the two);
// on failure it returns a *MismatchedTypeError.
func (c *Context) Unify(a, b TypeHandle, selfTy TypeHandle, help string) (TypeHandle, error) {
	da, db := c.GetType(a), c.GetType(b)

	if da.Tag == TagErrorRecovery || db.Tag == TagErrorRecovery {
		return c.ErrorRecovery(), nil
	}
	if da.Tag == TagUnknown {
		return b, nil
	}
	if db.Tag == TagUnknown {
		return a, nil
	}
	if da.Tag == TagNumeric && db.Tag == TagNumeric {
		return a, nil
	}
	if da.Tag == TagNumeric {
		if !isIntegerTag(db.Tag) {
			return c.mismatch(a, b, help)
		}
		return b, nil
	}
	if db.Tag == TagNumeric {
		if !isIntegerTag(da.Tag) {
			return c.mismatch(a, b, help)
		}
		return a, nil
	}
	if da.Tag == TagSelfType {
		if db.Tag == TagSelfType || (selfTy.IsValid() && c.StructurallyEqual(b, selfTy)) {
			return b, nil
		}
		return c.mismatch(a, b, help)
	}
	if db.Tag == TagSelfType {
		if selfTy.IsValid() && c.StructurallyEqual(a, selfTy) {
			return a, nil
		}
		return c.mismatch(a, b, help)
	}

	if da.Tag != db.Tag {
		return c.mismatch(a, b, help)
	}

	switch da.Tag {
	case TagUInt, TagStringN:
		if da.Width != db.Width {
			return c.mismatch(a, b, help)
		}
		return a, nil
	case TagPtr:
		elem, err := c.Unify(da.Elem, db.Elem, selfTy, help)
		if err != nil {
			return c.mismatch(a, b, help)
		}
		return c.Ptr(elem), nil
	case TagSlice:
		elem, err := c.Unify(da.Elem, db.Elem, selfTy, help)
		if err != nil {
			return c.mismatch(a, b, help)
		}
		return c.Slice(elem), nil
	case TagArray:
		if da.ArrayLen != db.ArrayLen {
			return c.mismatch(a, b, help)
		}
		elem, err := c.Unify(da.Elem, db.Elem, selfTy, help)
		if err != nil {
			return c.mismatch(a, b, help)
		}
		return c.Array(elem, da.ArrayLen), nil
	case TagTuple:
		if len(da.Elems) != len(db.Elems) {
			return c.mismatch(a, b, help)
		}
		unified := make([]TypeHandle, len(da.Elems))
		for i := range da.Elems {
			u, err := c.Unify(da.Elems[i], db.Elems[i], selfTy, help)
			if err != nil {
				return c.mismatch(a, b, help)
			}
			unified[i] = u
		}
		return c.Tuple(unified), nil
	case TagStruct, TagEnum:
		if da.Decl != db.Decl || len(da.Args) != len(db.Args) {
			return c.mismatch(a, b, help)
		}
		unified := make([]TypeHandle, len(da.Args))
		for i := range da.Args {
			u, err := c.Unify(da.Args[i], db.Args[i], selfTy, help)
			if err != nil {
				return c.mismatch(a, b, help)
			}
			unified[i] = u
		}
		if da.Tag == TagStruct {
			return c.Struct(da.Decl, unified), nil
		}
		return c.Enum(da.Decl, unified), nil
	case TagGeneric:
		if da.Name != db.Name || !equalConstraints(da.Constraints, db.Constraints) {
			return c.mismatch(a, b, help)
		}
		return a, nil
	default:
		// Unit, Bool, B256, RawPtr, RawSlice, StringSlice, Contract: tags
		// matched above, nothing further to reconcile.
		if da.Tag == TagContract && da.Decl != db.Decl {
			return c.mismatch(a, b, help)
		}
		return a, nil
	}
}

func (c *Context) mismatch(a, b TypeHandle, help string) (TypeHandle, error) {
	return c.ErrorRecovery(), &MismatchedTypeError{Expected: a, Actual: b, Help: help}
}

func isIntegerTag(t Tag) bool {
	return t == TagUInt || t == TagB256
}

// Subset reports whether every value of a can appear where b is expected
//. It differs from StructurallyEqual by
// allowing b to contain inference variables (Unknown/Numeric) that a makes
// concrete; a itself must already be concrete in every such position.
func (c *Context) Subset(a, b TypeHandle) bool {
	da, db := c.GetType(a), c.GetType(b)
	if db.Tag == TagUnknown {
		return true
	}
	if db.Tag == TagNumeric {
		return isIntegerTag(da.Tag) || da.Tag == TagNumeric
	}
	if da.Tag != db.Tag {
		return false
	}
	switch da.Tag {
	case TagUInt, TagStringN:
		return da.Width == db.Width
	case TagPtr, TagSlice:
		return c.Subset(da.Elem, db.Elem)
	case TagArray:
		return da.ArrayLen == db.ArrayLen && c.Subset(da.Elem, db.Elem)
	case TagTuple:
		if len(da.Elems) != len(db.Elems) {
			return false
		}
		for i := range da.Elems {
			if !c.Subset(da.Elems[i], db.Elems[i]) {
				return false
			}
		}
		return true
	case TagStruct, TagEnum:
		if da.Decl != db.Decl || len(da.Args) != len(db.Args) {
			return false
		}
		for i := range da.Args {
			if !c.Subset(da.Args[i], db.Args[i]) {
				return false
			}
		}
		return true
	case TagContract:
		return da.Decl == db.Decl
	case TagGeneric:
		return da.Name == db.Name
	default:
		return true
	}
}
