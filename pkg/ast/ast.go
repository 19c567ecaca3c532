// Package ast defines the syntax tree produced by the wew parser.
//
// Every node carries the source span it was parsed from so later stages can
// point diagnostics at the offending source text.
package ast

import (
	"github.com/wewlang/wewc/pkg/token"
	"github.com/wewlang/wewc/pkg/types"
)

// Node is implemented by all AST nodes.
type Node interface {
	Span() token.Span
}

// Stmt is implemented by statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is implemented by expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Base carries the source span shared by every node.
type Base struct {
	Loc token.Span
}

func (b Base) Span() token.Span { return b.Loc }

// NewBase builds the embedded span part of a node.
func NewBase(start, end token.Position) Base {
	return Base{Loc: token.Span{Start: start, End: end}}
}

// Program is a parsed source file: a list of top-level statements.
type Program struct {
	Stmts []Stmt
}

// ---------- statements ----------

// FuncDecl is `fn name(a: T, b: T) -> R { body }`.
type FuncDecl struct {
	Base
	Name    string
	Params  []Param
	Returns types.Type // nil means void
	Body    *BlockStmt
}

// Param is a single function parameter.
type Param struct {
	Name string
	Type types.Type
}

// VarDecl is `var name := e;`, `var name: T;` or `var name: T = e;`.
// Type is nil when it should be inferred from Value.
type VarDecl struct {
	Base
	Name  string
	Type  types.Type
	Value Expr // may be nil
}

// BlockStmt is `{ stmts }` and introduces a scope.
type BlockStmt struct {
	Base
	Stmts []Stmt
}

// IfStmt is `if cond { } elif ... else { }`. Elif chains are parsed as
// nested IfStmts in Else.
type IfStmt struct {
	Base
	Cond Expr
	Body *BlockStmt
	Else Stmt // *BlockStmt, *IfStmt, or nil
}

// WhileStmt is `while cond { body }`.
type WhileStmt struct {
	Base
	Cond Expr
	Body *BlockStmt
}

// ReturnStmt is `return e;`.
type ReturnStmt struct {
	Base
	Value Expr
}

// ExprStmt is an expression used as a statement: `e;`.
type ExprStmt struct {
	Base
	X Expr
}

func (*FuncDecl) stmtNode()   {}
func (*VarDecl) stmtNode()    {}
func (*BlockStmt) stmtNode()  {}
func (*IfStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()  {}
func (*ReturnStmt) stmtNode() {}
func (*ExprStmt) stmtNode()   {}

// ---------- expressions ----------

// Ident is a variable or function reference.
type Ident struct {
	Base
	Name string
}

// IntLit is an integer or character literal. Char literals are u1.
type IntLit struct {
	Base
	Value int64
	Type  types.Int
}

// StringLit is a string literal, typed *|u1|.
type StringLit struct {
	Base
	Value string
}

// ArrayLit is `{e1, e2, ...}`.
type ArrayLit struct {
	Base
	Elems []Expr
}

// AssignExpr is `lhs = rhs` (right associative).
type AssignExpr struct {
	Base
	Left  Expr
	Right Expr
}

// BinaryExpr is any infix binary operation except assignment and the
// short-circuiting boolean operators.
type BinaryExpr struct {
	Base
	Op    token.Type
	Left  Expr
	Right Expr
}

// BoolExpr is a short-circuiting `&&` or `||`.
type BoolExpr struct {
	Base
	Op    token.Type
	Left  Expr
	Right Expr
}

// UnaryExpr is a prefix operation: `~ ! - +` value ops, `*` dereference,
// `&` address-of, and `++`/`--` pre-increment.
type UnaryExpr struct {
	Base
	Op token.Type
	X  Expr
}

// PostfixExpr is a postfix `++` or `--`.
type PostfixExpr struct {
	Base
	Op token.Type
	X  Expr
}

// CallExpr is `f(args...)`.
type CallExpr struct {
	Base
	Fun  Expr
	Args []Expr
}

// IndexExpr is `x[i]`.
type IndexExpr struct {
	Base
	X     Expr
	Index Expr
}

// CastExpr is `e::T` (Extend true, sign/zero extension) or `e@T`
// (reinterpret, no extension).
type CastExpr struct {
	Base
	X      Expr
	Type   types.Type
	Extend bool
}

func (*Ident) exprNode()       {}
func (*IntLit) exprNode()      {}
func (*StringLit) exprNode()   {}
func (*ArrayLit) exprNode()    {}
func (*AssignExpr) exprNode()  {}
func (*BinaryExpr) exprNode()  {}
func (*BoolExpr) exprNode()    {}
func (*UnaryExpr) exprNode()   {}
func (*PostfixExpr) exprNode() {}
func (*CallExpr) exprNode()    {}
func (*IndexExpr) exprNode()   {}
func (*CastExpr) exprNode()    {}
