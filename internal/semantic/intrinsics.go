package semantic

import (
	"github.com/vmlang/corec/internal/ast"
	"github.com/vmlang/corec/internal/diag"
	"github.com/vmlang/corec/internal/types"
)

// intrinsicSig generates the signature of one compiler intrinsic for the
// fixed dispatch table: the number of type arguments and value arguments it
// takes and the result type it produces given those.
type intrinsicSig struct {
	typeArgs int
	args     int
	result   func(ctx *types.Context, typeArgs []types.TypeHandle, args []*TypedExpr) types.TypeHandle
}

// intrinsicTable is the fixed name → signature-generator table intrinsic
// calls dispatch through.
var intrinsicTable = map[string]intrinsicSig{
	"__size_of": {
		typeArgs: 1, args: 0,
		result: func(ctx *types.Context, _ []types.TypeHandle, _ []*TypedExpr) types.TypeHandle {
			return ctx.UInt(64)
		},
	},
	"__size_of_val": {
		typeArgs: 0, args: 1,
		result: func(ctx *types.Context, _ []types.TypeHandle, _ []*TypedExpr) types.TypeHandle {
			return ctx.UInt(64)
		},
	},
	"__is_reference_type": {
		typeArgs: 1, args: 0,
		result: func(ctx *types.Context, _ []types.TypeHandle, _ []*TypedExpr) types.TypeHandle {
			return ctx.Bool()
		},
	},
	"__addr_of": {
		typeArgs: 0, args: 1,
		result: func(ctx *types.Context, _ []types.TypeHandle, _ []*TypedExpr) types.TypeHandle {
			return ctx.RawPtr()
		},
	},
	"__revert": {
		typeArgs: 0, args: 1,
		result: func(ctx *types.Context, _ []types.TypeHandle, _ []*TypedExpr) types.TypeHandle {
			// Diverges; unit keeps downstream unification permissive enough
			// without a dedicated never type.
			return ctx.Unit()
		},
	},
}

func (ch *checker) checkIntrinsic(cx AnalysisContext, scope *localScope, n *ast.IntrinsicExpr) *TypedExpr {
	sig, ok := intrinsicTable[n.Name]
	if !ok {
		ch.diags.Errorf(diag.KindNameResolution, n.Sp, "unknown intrinsic %q", n.Name)
		return recovery(ch.ctx, n.Sp)
	}
	if len(n.TypeArgs) != sig.typeArgs {
		ch.diags.Errorf(diag.KindType, n.Sp, "intrinsic %q takes %d type arguments, found %d", n.Name, sig.typeArgs, len(n.TypeArgs))
		return recovery(ch.ctx, n.Sp)
	}
	if len(n.Args) != sig.args {
		ch.diags.Errorf(diag.KindType, n.Sp, "intrinsic %q takes %d arguments, found %d", n.Name, sig.args, len(n.Args))
		return recovery(ch.ctx, n.Sp)
	}

	typeArgs := make([]types.TypeHandle, len(n.TypeArgs))
	for i, te := range n.TypeArgs {
		typeArgs[i] = ch.resolveTypeExpr(cx, te, ch.activeTypeParams)
	}
	args := make([]*TypedExpr, len(n.Args))
	for i, a := range n.Args {
		args[i] = ch.checkExpr(cx.WithTypeAnnotation(ch.ctx.Unknown()).WithHelpText(""), scope, a)
	}

	return &TypedExpr{
		Kind: ExprIntrinsic, Type: sig.result(ch.ctx, typeArgs, args), Span: n.Sp,
		Intrinsic: n.Name, TypeArgs: typeArgs, Args: args,
	}
}

// checkAsm checks an inline-assembly block: initializer expressions are
// ordinary expressions, the return register (if any) gives the block the
// declared return type, and an uninitialized register that shadows a
// module-level constant warns without auto-initializing.
func (ch *checker) checkAsm(cx AnalysisContext, scope *localScope, n *ast.AsmExpr) *TypedExpr {
	out := &TypedExpr{Kind: ExprAsm, Span: n.Sp, AsmOps: n.Ops, AsmReturn: n.ReturnReg}
	for _, r := range n.Registers {
		reg := TypedAsmRegister{Name: r.Name}
		if r.Init != nil {
			reg.Init = ch.checkExpr(cx.WithTypeAnnotation(ch.ctx.Unknown()).WithHelpText(""), scope, r.Init)
		} else if h, ok := cx.Namespace().LookupLocal(r.Name); ok && ch.ctx.GetDecl(h).Kind == types.DeclConst {
			ch.diags.Report(diag.Diagnostic{
				Kind: diag.KindWarning, Primary: r.Sp,
				Message: "uninitialized asm register \"" + r.Name + "\" shadows a constant of the same name",
				Help:    "the register is not initialized from the constant; bind it explicitly if that was intended",
			})
		}
		out.AsmRegs = append(out.AsmRegs, reg)
	}
	if n.ReturnReg != "" {
		found := false
		for _, r := range n.Registers {
			if r.Name == n.ReturnReg {
				found = true
				break
			}
		}
		if !found {
			ch.diags.Errorf(diag.KindNameResolution, n.Sp, "asm return register %q is not declared in the block", n.ReturnReg)
		}
		out.Type = ch.resolveTypeExpr(cx, n.ReturnTy, ch.activeTypeParams)
	} else {
		out.Type = ch.ctx.Unit()
	}
	return out
}
