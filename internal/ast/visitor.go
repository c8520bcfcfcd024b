package ast

// Visitor is implemented by callers that want one callback per concrete
// node kind. Each method
// returns true to have Walk recurse into the node's children itself
// (default recursion), or false if the visitor already handled recursion
// and Walk should skip the children.
type Visitor interface {
	VisitModule(n *Module) bool

	VisitUseItem(n *UseItem) bool
	VisitStructItem(n *StructItem) bool
	VisitEnumItem(n *EnumItem) bool
	VisitFnItem(n *FnItem) bool
	VisitTraitItem(n *TraitItem) bool
	VisitImplTraitItem(n *ImplTraitItem) bool
	VisitImplSelfItem(n *ImplSelfItem) bool
	VisitConstItem(n *ConstItem) bool
	VisitStorageItem(n *StorageItem) bool
	VisitAbiItem(n *AbiItem) bool
	VisitTypeAliasItem(n *TypeAliasItem) bool

	VisitBlock(n *Block) bool

	VisitLetStmt(n *LetStmt) bool
	VisitExprStmt(n *ExprStmt) bool
	VisitItemStmt(n *ItemStmt) bool

	VisitLiteralExpr(n *LiteralExpr) bool
	VisitVarExpr(n *VarExpr) bool
	VisitCallExpr(n *CallExpr) bool
	VisitMethodCallExpr(n *MethodCallExpr) bool
	VisitFieldExpr(n *FieldExpr) bool
	VisitTupleIndexExpr(n *TupleIndexExpr) bool
	VisitStructExpr(n *StructExpr) bool
	VisitEnumExpr(n *EnumExpr) bool
	VisitTupleExpr(n *TupleExpr) bool
	VisitArrayExpr(n *ArrayExpr) bool
	VisitIndexExpr(n *IndexExpr) bool
	VisitBinaryExpr(n *BinaryExpr) bool
	VisitUnaryExpr(n *UnaryExpr) bool
	VisitBlockExpr(n *BlockExpr) bool
	VisitIfExpr(n *IfExpr) bool
	VisitMatchExpr(n *MatchExpr) bool
	VisitWhileExpr(n *WhileExpr) bool
	VisitLambdaExpr(n *LambdaExpr) bool
	VisitAsmExpr(n *AsmExpr) bool
	VisitIntrinsicExpr(n *IntrinsicExpr) bool
	VisitReassignExpr(n *ReassignExpr) bool
}

// BaseVisitor implements Visitor with every method returning true (recurse
// into children), so callers can embed it and override only the node kinds
// they care about.
type BaseVisitor struct{}

func (BaseVisitor) VisitModule(*Module) bool                     { return true }
func (BaseVisitor) VisitUseItem(*UseItem) bool                   { return true }
func (BaseVisitor) VisitStructItem(*StructItem) bool              { return true }
func (BaseVisitor) VisitEnumItem(*EnumItem) bool                  { return true }
func (BaseVisitor) VisitFnItem(*FnItem) bool                      { return true }
func (BaseVisitor) VisitTraitItem(*TraitItem) bool                { return true }
func (BaseVisitor) VisitImplTraitItem(*ImplTraitItem) bool        { return true }
func (BaseVisitor) VisitImplSelfItem(*ImplSelfItem) bool          { return true }
func (BaseVisitor) VisitConstItem(*ConstItem) bool                { return true }
func (BaseVisitor) VisitStorageItem(*StorageItem) bool            { return true }
func (BaseVisitor) VisitAbiItem(*AbiItem) bool                    { return true }
func (BaseVisitor) VisitTypeAliasItem(*TypeAliasItem) bool        { return true }
func (BaseVisitor) VisitBlock(*Block) bool                        { return true }
func (BaseVisitor) VisitLetStmt(*LetStmt) bool                    { return true }
func (BaseVisitor) VisitExprStmt(*ExprStmt) bool                  { return true }
func (BaseVisitor) VisitItemStmt(*ItemStmt) bool                  { return true }
func (BaseVisitor) VisitLiteralExpr(*LiteralExpr) bool            { return true }
func (BaseVisitor) VisitVarExpr(*VarExpr) bool                    { return true }
func (BaseVisitor) VisitCallExpr(*CallExpr) bool                  { return true }
func (BaseVisitor) VisitMethodCallExpr(*MethodCallExpr) bool      { return true }
func (BaseVisitor) VisitFieldExpr(*FieldExpr) bool                { return true }
func (BaseVisitor) VisitTupleIndexExpr(*TupleIndexExpr) bool      { return true }
func (BaseVisitor) VisitStructExpr(*StructExpr) bool              { return true }
func (BaseVisitor) VisitEnumExpr(*EnumExpr) bool                  { return true }
func (BaseVisitor) VisitTupleExpr(*TupleExpr) bool                { return true }
func (BaseVisitor) VisitArrayExpr(*ArrayExpr) bool                { return true }
func (BaseVisitor) VisitIndexExpr(*IndexExpr) bool                { return true }
func (BaseVisitor) VisitBinaryExpr(*BinaryExpr) bool              { return true }
func (BaseVisitor) VisitUnaryExpr(*UnaryExpr) bool                { return true }
func (BaseVisitor) VisitBlockExpr(*BlockExpr) bool                { return true }
func (BaseVisitor) VisitIfExpr(*IfExpr) bool                      { return true }
func (BaseVisitor) VisitMatchExpr(*MatchExpr) bool                { return true }
func (BaseVisitor) VisitWhileExpr(*WhileExpr) bool                { return true }
func (BaseVisitor) VisitLambdaExpr(*LambdaExpr) bool              { return true }
func (BaseVisitor) VisitAsmExpr(*AsmExpr) bool                    { return true }
func (BaseVisitor) VisitIntrinsicExpr(*IntrinsicExpr) bool        { return true }
func (BaseVisitor) VisitReassignExpr(*ReassignExpr) bool          { return true }

// Walk traverses an item or expression tree, invoking v's VisitXxx method
// for every node and recursing into children when that method returns true.
func Walk(v Visitor, n Node) {
	if n == nil {
		return
	}
	switch node := n.(type) {
	case *Module:
		if v.VisitModule(node) {
			for _, item := range node.Items {
				Walk(v, item)
			}
		}
	case *UseItem:
		v.VisitUseItem(node)
	case *StructItem:
		v.VisitStructItem(node)
	case *EnumItem:
		v.VisitEnumItem(node)
	case *FnItem:
		if v.VisitFnItem(node) && node.Body != nil {
			Walk(v, node.Body)
		}
	case *TraitItem:
		if v.VisitTraitItem(node) {
			for _, m := range node.Methods {
				Walk(v, m)
			}
		}
	case *ImplTraitItem:
		if v.VisitImplTraitItem(node) {
			for _, m := range node.Methods {
				Walk(v, m)
			}
		}
	case *ImplSelfItem:
		if v.VisitImplSelfItem(node) {
			for _, m := range node.Methods {
				Walk(v, m)
			}
		}
	case *ConstItem:
		if v.VisitConstItem(node) && node.Value != nil {
			Walk(v, node.Value)
		}
	case *StorageItem:
		if v.VisitStorageItem(node) {
			for _, f := range node.Fields {
				if f.Init != nil {
					Walk(v, f.Init)
				}
				if f.InKey != nil {
					Walk(v, f.InKey)
				}
			}
		}
	case *AbiItem:
		v.VisitAbiItem(node)
	case *TypeAliasItem:
		v.VisitTypeAliasItem(node)

	case *Block:
		if v.VisitBlock(node) {
			for _, s := range node.Stmts {
				Walk(v, s)
			}
			if node.Tail != nil {
				Walk(v, node.Tail)
			}
		}
	case *LetStmt:
		if v.VisitLetStmt(node) && node.Init != nil {
			Walk(v, node.Init)
		}
	case *ExprStmt:
		if v.VisitExprStmt(node) {
			Walk(v, node.Expr)
		}
	case *ItemStmt:
		if v.VisitItemStmt(node) {
			Walk(v, node.Item)
		}

	case *LiteralExpr:
		v.VisitLiteralExpr(node)
	case *VarExpr:
		v.VisitVarExpr(node)
	case *CallExpr:
		if v.VisitCallExpr(node) {
			Walk(v, node.Callee)
			for _, a := range node.Args {
				Walk(v, a)
			}
		}
	case *MethodCallExpr:
		if v.VisitMethodCallExpr(node) {
			Walk(v, node.Receiver)
			for _, a := range node.Args {
				Walk(v, a)
			}
		}
	case *FieldExpr:
		if v.VisitFieldExpr(node) {
			Walk(v, node.Receiver)
		}
	case *TupleIndexExpr:
		if v.VisitTupleIndexExpr(node) {
			Walk(v, node.Receiver)
		}
	case *StructExpr:
		if v.VisitStructExpr(node) {
			for _, f := range node.Fields {
				Walk(v, f.Value)
			}
		}
	case *EnumExpr:
		if v.VisitEnumExpr(node) && node.Payload != nil {
			Walk(v, node.Payload)
		}
	case *TupleExpr:
		if v.VisitTupleExpr(node) {
			for _, e := range node.Elems {
				Walk(v, e)
			}
		}
	case *ArrayExpr:
		if v.VisitArrayExpr(node) {
			for _, e := range node.Elems {
				Walk(v, e)
			}
		}
	case *IndexExpr:
		if v.VisitIndexExpr(node) {
			Walk(v, node.Base)
			Walk(v, node.Index)
		}
	case *BinaryExpr:
		if v.VisitBinaryExpr(node) {
			Walk(v, node.Left)
			Walk(v, node.Right)
		}
	case *UnaryExpr:
		if v.VisitUnaryExpr(node) {
			Walk(v, node.Expr)
		}
	case *BlockExpr:
		if v.VisitBlockExpr(node) {
			Walk(v, node.Block)
		}
	case *IfExpr:
		if v.VisitIfExpr(node) {
			Walk(v, node.Cond)
			Walk(v, node.Then)
			if node.Else != nil {
				Walk(v, node.Else)
			}
		}
	case *MatchExpr:
		if v.VisitMatchExpr(node) {
			Walk(v, node.Scrutinee)
			for _, arm := range node.Arms {
				if arm.Guard != nil {
					Walk(v, arm.Guard)
				}
				Walk(v, arm.Body)
			}
		}
	case *WhileExpr:
		if v.VisitWhileExpr(node) {
			Walk(v, node.Cond)
			Walk(v, node.Body)
		}
	case *LambdaExpr:
		if v.VisitLambdaExpr(node) {
			Walk(v, node.Body)
		}
	case *AsmExpr:
		if v.VisitAsmExpr(node) {
			for _, r := range node.Registers {
				if r.Init != nil {
					Walk(v, r.Init)
				}
			}
		}
	case *IntrinsicExpr:
		if v.VisitIntrinsicExpr(node) {
			for _, a := range node.Args {
				Walk(v, a)
			}
		}
	case *ReassignExpr:
		if v.VisitReassignExpr(node) {
			Walk(v, node.LHS)
			Walk(v, node.RHS)
		}
	}
}
