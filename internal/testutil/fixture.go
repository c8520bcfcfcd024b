// Package testutil loads YAML-described compilation fixtures standing in
// for the external dependency resolver's output: a list of named
// source units plus a root module, each described declaratively and
// expanded into untyped AST so integration tests and the demo driver can
// exercise Compile end-to-end without a real parser.
package testutil

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/span"
)

// Fixture is the YAML document shape.
type Fixture struct {
	Units []UnitFixture `yaml:"units"`
	Root  UnitFixture   `yaml:"root"`
}

// UnitFixture describes one source unit: its kind and a flat list of
// simple functions. The declarative form intentionally covers only the
// shapes integration tests need — literal returns, parameter echoes, and
// binary arithmetic over parameters and literals.
type UnitFixture struct {
	Name      string            `yaml:"name"`
	Kind      string            `yaml:"kind"`
	Functions []FunctionFixture `yaml:"functions"`
}

type FunctionFixture struct {
	Name    string         `yaml:"name"`
	Public  bool           `yaml:"public"`
	Params  []ParamFixture `yaml:"params"`
	Returns string         `yaml:"returns"`
	Body    BodyFixture    `yaml:"body"`
}

type ParamFixture struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// BodyFixture is one expression: a literal, a parameter reference, or a
// binary op over two sub-bodies.
type BodyFixture struct {
	Literal *uint64      `yaml:"literal"`
	Param   string       `yaml:"param"`
	Op      string       `yaml:"op"`
	Left    *BodyFixture `yaml:"left"`
	Right   *BodyFixture `yaml:"right"`
}

// Load reads and decodes a fixture file; units expand to AST on demand
// through UnitFixture.Module.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return &fx, nil
}

// Module expands a unit fixture into its untyped AST.
func (u UnitFixture) Module(spans *span.Interner) (*ast.Module, error) {
	kind, err := programKind(u.Kind)
	if err != nil {
		return nil, err
	}
	mod := &ast.Module{Kind: kind, Name: u.Name, Sp: spans.Insert(span.Range{})}
	for _, fn := range u.Functions {
		item, err := fn.item(spans)
		if err != nil {
			return nil, fmt.Errorf("unit %s: %w", u.Name, err)
		}
		mod.Items = append(mod.Items, item)
	}
	return mod, nil
}

func programKind(s string) (ast.ProgramKind, error) {
	switch s {
	case "contract":
		return ast.KindContract, nil
	case "script", "":
		return ast.KindScript, nil
	case "predicate":
		return ast.KindPredicate, nil
	case "library":
		return ast.KindLibrary, nil
	}
	return 0, fmt.Errorf("unknown program kind %q", s)
}

func (f FunctionFixture) item(spans *span.Interner) (*ast.FnItem, error) {
	vis := ast.VisPrivate
	if f.Public {
		vis = ast.VisPublic
	}
	fn := &ast.FnItem{Name: f.Name, Vis: vis, Sp: spans.Insert(span.Range{})}
	for _, p := range f.Params {
		ty, err := typeExpr(p.Type, spans)
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, ast.Param{Name: p.Name, Type: ty, Sp: spans.Insert(span.Range{})})
	}
	if f.Returns != "" {
		ty, err := typeExpr(f.Returns, spans)
		if err != nil {
			return nil, err
		}
		fn.ReturnType = ty
	}
	tail, err := f.Body.expr(spans)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", f.Name, err)
	}
	fn.Body = &ast.Block{Tail: tail, Sp: spans.Insert(span.Range{})}
	return fn, nil
}

func typeExpr(name string, spans *span.Interner) (ast.TypeExpr, error) {
	keywords := map[string]ast.PrimitiveKeyword{
		"bool": ast.PrimBool, "u8": ast.PrimU8, "u16": ast.PrimU16,
		"u32": ast.PrimU32, "u64": ast.PrimU64, "u256": ast.PrimU256,
		"b256": ast.PrimB256,
	}
	kw, ok := keywords[name]
	if !ok {
		return nil, fmt.Errorf("unsupported fixture type %q", name)
	}
	return &ast.PrimitiveTypeExpr{Keyword: kw, Sp: spans.Insert(span.Range{})}, nil
}

func (b BodyFixture) expr(spans *span.Interner) (ast.Expression, error) {
	switch {
	case b.Literal != nil:
		return &ast.LiteralExpr{
			Kind: ast.LitInt, Int: fmt.Sprintf("%d", *b.Literal), Suffix: "u64",
			Sp: spans.Insert(span.Range{}),
		}, nil
	case b.Param != "":
		return &ast.VarExpr{Path: []string{b.Param}, Sp: spans.Insert(span.Range{})}, nil
	case b.Op != "":
		ops := map[string]ast.BinaryOp{
			"add": ast.OpAdd, "sub": ast.OpSub, "mul": ast.OpMul,
			"div": ast.OpDiv, "mod": ast.OpMod,
		}
		op, ok := ops[b.Op]
		if !ok {
			return nil, fmt.Errorf("unsupported fixture op %q", b.Op)
		}
		if b.Left == nil || b.Right == nil {
			return nil, fmt.Errorf("op %q needs left and right", b.Op)
		}
		left, err := b.Left.expr(spans)
		if err != nil {
			return nil, err
		}
		right, err := b.Right.expr(spans)
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Op: op, Left: left, Right: right, Sp: spans.Insert(span.Range{})}, nil
	}
	return nil, fmt.Errorf("empty fixture body")
}
