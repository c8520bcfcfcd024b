package ast

import "github.com/vmlang/corec/internal/span"

// Statement is a unit inside a Block that does not itself produce the
// block's value (a let-binding, a bare expression used for side effects, an
// item declared locally).
type Statement interface {
	Node
	statementNode()
}

// Block is an ordered sequence of statements plus an optional tail
// expression, mirroring the language's `{ stmt; stmt; tail }` block form.
// Its value (for BlockExpr) is Tail's value, or unit if Tail is nil.
type Block struct {
	Stmts []Statement
	Tail  Expression // nil if the block has no trailing expression
	Sp    span.ID
}

func (b *Block) Span() span.ID { return b.Sp }
func (b *Block) String() string { return "block" }

// LetStmt is `let name: T = init;` (or `let name = init;` with Type nil,
// deferring to inference).
type LetStmt struct {
	Name    string
	Type    TypeExpr // nil lets the initializer drive inference
	Pattern Pattern  // non-nil for destructuring lets; Name is unused then
	Init    Expression
	Sp      span.ID
}

func (n *LetStmt) statementNode() {}
func (n *LetStmt) Span() span.ID  { return n.Sp }
func (n *LetStmt) String() string { return "let " + n.Name }

// ExprStmt is a bare expression used for its side effects; the checker
// checks it with no expected type and the statement itself carries no type;
// the value is discarded.
type ExprStmt struct {
	Expr Expression
	Sp   span.ID
}

func (n *ExprStmt) statementNode() {}
func (n *ExprStmt) Span() span.ID  { return n.Sp }
func (n *ExprStmt) String() string { return "expr stmt" }

// ItemStmt wraps a locally-declared item (a nested fn, struct, const, and
// so on) so it can appear inside a Block's statement list.
type ItemStmt struct {
	Item Item
	Sp   span.ID
}

func (n *ItemStmt) statementNode() {}
func (n *ItemStmt) Span() span.ID  { return n.Sp }
func (n *ItemStmt) String() string { return "item stmt" }
