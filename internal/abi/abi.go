// Package abi builds the JSON ABI descriptor exposed to the driver:
// an array of function entries whose parameter and result types refer to
// a shared side table of type descriptors, so a type used by several
// entries is declared once.
package abi

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/semantic"
	"github.com/vmlang/corec/internal/types"
)

// TypeDecl is one side-table entry.
type TypeDecl struct {
	TypeID     int        `json:"typeId"`
	Type       string     `json:"type"`
	Components []TypeRef  `json:"components,omitempty"`
}

// TypeRef points a named slot (a parameter, an output, a component) at a
// side-table entry.
type TypeRef struct {
	Name          string    `json:"name,omitempty"`
	TypeID        int       `json:"type_id"`
	TypeArguments []TypeRef `json:"type_arguments,omitempty"`
}

// Function is one ABI entry.
type Function struct {
	Name       string    `json:"name"`
	Inputs     []TypeRef `json:"inputs"`
	Outputs    []TypeRef `json:"outputs"`
	Attributes []string  `json:"attributes,omitempty"`
}

// JsonAbi is the complete descriptor.
type JsonAbi struct {
	Types     []TypeDecl `json:"types"`
	Functions []Function `json:"functions"`
}

// Marshal renders the descriptor as stable, indented JSON.
func (a *JsonAbi) Marshal() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

// builder interns type descriptors by their rendered form so structurally
// identical types share one side-table id.
type builder struct {
	ctx   *types.Context
	abi   *JsonAbi
	known map[string]int
}

// Build constructs the ABI from a typed module: every typed function that
// is not a monomorphization artifact contributes an entry, with its
// purity attribute carried through.
func Build(tm *semantic.TypedModule, ctx *types.Context) *JsonAbi {
	b := &builder{ctx: ctx, abi: &JsonAbi{}, known: map[string]int{}}
	for _, fn := range tm.Functions {
		if d := ctx.GetDecl(fn.Decl); d.Function != nil && d.Function.Parent.IsValid() {
			continue
		}
		entry := Function{Name: fn.Name}
		for _, p := range fn.Params {
			entry.Inputs = append(entry.Inputs, TypeRef{Name: p.Name, TypeID: b.typeID(p.Type)})
		}
		entry.Outputs = append(entry.Outputs, TypeRef{TypeID: b.typeID(fn.Return)})
		if attr := purityAttribute(fn.Purity); attr != "" {
			entry.Attributes = append(entry.Attributes, attr)
		}
		b.abi.Functions = append(b.abi.Functions, entry)
	}
	return b.abi
}

func purityAttribute(p ast.Purity) string {
	switch p {
	case ast.PurityRead:
		return "storage(read)"
	case ast.PurityWrite:
		return "storage(write)"
	case ast.PurityReadWrite:
		return "storage(read, write)"
	}
	return ""
}

// typeID interns a type into the side table and returns its id.
func (b *builder) typeID(t types.TypeHandle) int {
	rendered := b.render(t)
	if id, ok := b.known[rendered]; ok {
		return id
	}
	id := len(b.abi.Types)
	b.known[rendered] = id
	decl := TypeDecl{TypeID: id, Type: rendered}
	b.abi.Types = append(b.abi.Types, decl)

	// Components fill in after the parent is interned so recursive shapes
	// through pointers terminate on the cache.
	components := b.components(t)
	b.abi.Types[id].Components = components
	return id
}

func (b *builder) components(t types.TypeHandle) []TypeRef {
	d := b.ctx.GetType(t)
	switch d.Tag {
	case types.TagTuple:
		out := make([]TypeRef, len(d.Elems))
		for i, e := range d.Elems {
			out[i] = TypeRef{Name: "__tuple_element", TypeID: b.typeID(e)}
		}
		return out
	case types.TagStruct:
		decl := b.ctx.GetDecl(d.Decl)
		out := make([]TypeRef, len(decl.Struct.Fields))
		for i, f := range decl.Struct.Fields {
			out[i] = TypeRef{Name: f.Name, TypeID: b.typeID(f.Type)}
		}
		return out
	case types.TagEnum:
		decl := b.ctx.GetDecl(d.Decl)
		var out []TypeRef
		for _, v := range decl.Enum.Variants {
			ref := TypeRef{Name: v.Name}
			if v.Payload.IsValid() {
				ref.TypeID = b.typeID(v.Payload)
			} else {
				ref.TypeID = b.typeID(b.ctx.Unit())
			}
			out = append(out, ref)
		}
		return out
	case types.TagArray:
		return []TypeRef{{Name: "__array_element", TypeID: b.typeID(d.Elem)}}
	}
	return nil
}

// render produces the canonical type string used both in the descriptor
// and as the interning key.
func (b *builder) render(t types.TypeHandle) string {
	d := b.ctx.GetType(t)
	switch d.Tag {
	case types.TagUnit:
		return "()"
	case types.TagBool:
		return "bool"
	case types.TagUInt:
		return "u" + strconv.Itoa(d.Width)
	case types.TagB256:
		return "b256"
	case types.TagRawPtr:
		return "raw untyped ptr"
	case types.TagPtr:
		return "ptr<" + b.render(d.Elem) + ">"
	case types.TagRawSlice:
		return "raw untyped slice"
	case types.TagSlice:
		return "slice<" + b.render(d.Elem) + ">"
	case types.TagStringN:
		return "str[" + strconv.Itoa(d.Width) + "]"
	case types.TagStringSlice:
		return "str"
	case types.TagArray:
		return "[" + b.render(d.Elem) + "; " + strconv.Itoa(d.ArrayLen) + "]"
	case types.TagTuple:
		parts := make([]string, len(d.Elems))
		for i, e := range d.Elems {
			parts[i] = b.render(e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case types.TagStruct:
		return "struct " + b.namedRender(d)
	case types.TagEnum:
		return "enum " + b.namedRender(d)
	case types.TagContract:
		return "contract"
	default:
		return "unknown"
	}
}

func (b *builder) namedRender(d types.TypeDescriptor) string {
	name := b.ctx.GetDecl(d.Decl).Name
	if len(d.Args) == 0 {
		return name
	}
	parts := make([]string, len(d.Args))
	for i, a := range d.Args {
		parts[i] = b.render(a)
	}
	return name + "<" + strings.Join(parts, ", ") + ">"
}
