package types

import "fmt"

// ArityMismatchError reports a monomorphization call with the wrong number
// of type arguments for the generic declaration's type parameters.
type ArityMismatchError struct {
	Decl     DeclHandle
	Expected int
	Actual   int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("wrong number of type arguments: expected %d, found %d", e.Expected, e.Actual)
}

// Monomorphize builds the substitution from generic's type parameters to
// argTypes, clones the declaration, substitutes its signature, and inserts
// the result as a new declaration whose Parent is generic. The
// result is memoized on (generic, argTypes) so repeated instantiations with
// structurally identical arguments share one handle.
//
// Only the signature (params, return type, field/variant types) is
// substituted here; the function body is lowered to IR later by the IR
// builder against the monomorphized signature, not duplicated at this
// stage — cloning IR before it exists would have nothing to clone.
func (c *Context) Monomorphize(generic DeclHandle, argTypes []TypeHandle) (DeclHandle, error) {
	decl := c.GetDecl(generic)
	if len(decl.TypeParams) != len(argTypes) {
		return DeclHandle(invalidHandle), &ArityMismatchError{
			Decl: generic, Expected: len(decl.TypeParams), Actual: len(argTypes),
		}
	}

	key := c.memoKey(generic, argTypes)
	if cached, ok := c.memoInstances[key]; ok {
		return cached, nil
	}

	sigma := make(Substitution, len(argTypes))
	for i, p := range decl.TypeParams {
		sigma[p.Name] = argTypes[i]
	}

	var instance DeclHandle
	switch decl.Kind {
	case DeclFunction:
		params := make([]FieldDecl, len(decl.Function.Params))
		for i, p := range decl.Function.Params {
			params[i] = FieldDecl{Name: p.Name, Type: c.Substitute(p.Type, sigma)}
		}
		instance = c.declare(Declaration{
			Kind: DeclFunction, Name: decl.Name, Span: decl.Span, Vis: decl.Vis,
			Function: &FunctionDecl{
				Params:     params,
				ReturnType: c.Substitute(decl.Function.ReturnType, sigma),
				Purity:     decl.Function.Purity,
				Body:       invalidHandle,
				Parent:     generic,
			},
		})
	case DeclStruct:
		fields := make([]FieldDecl, len(decl.Struct.Fields))
		for i, f := range decl.Struct.Fields {
			fields[i] = FieldDecl{Name: f.Name, Type: c.Substitute(f.Type, sigma)}
		}
		instance = c.declare(Declaration{
			Kind: DeclStruct, Name: decl.Name, Span: decl.Span, Vis: decl.Vis,
			Struct: &StructDecl{Fields: fields},
		})
	case DeclEnum:
		variants := make([]VariantDecl, len(decl.Enum.Variants))
		for i, v := range decl.Enum.Variants {
			payload := v.Payload
			if payload.IsValid() {
				payload = c.Substitute(payload, sigma)
			}
			variants[i] = VariantDecl{Name: v.Name, Payload: payload}
		}
		instance = c.declare(Declaration{
			Kind: DeclEnum, Name: decl.Name, Span: decl.Span, Vis: decl.Vis,
			Enum: &EnumDecl{Variants: variants},
		})
	default:
		// Traits, impls, consts, storage fields, and ABIs are never generic
		// declarations in their own right; reaching here is a caller error.
		return DeclHandle(invalidHandle), fmt.Errorf("cannot monomorphize declaration kind %d", decl.Kind)
	}

	c.memoInstances[key] = instance
	return instance, nil
}
