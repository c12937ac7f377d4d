package lox

// Expr is an expression node.
type Expr interface {
	exprNode()
	Position() Pos
}

// Stmt is a statement node.
type Stmt interface {
	stmtNode()
	Position() Pos
}

type (
	// LiteralExpr is nil, a boolean, a number or a string.
	LiteralExpr struct {
		Pos   Pos
		Value Value
	}

	GroupingExpr struct {
		Pos  Pos
		Expr Expr
	}

	UnaryExpr struct {
		Op    Token
		Right Expr
	}

	BinaryExpr struct {
		Left  Expr
		Op    Token
		Right Expr
	}

	// LogicalExpr is a short-circuiting 'and' or 'or'.
	LogicalExpr struct {
		Left  Expr
		Op    Token
		Right Expr
	}

	VariableExpr struct {
		Name Token
	}

	AssignExpr struct {
		Name  Token
		Value Expr
	}

	CallExpr struct {
		Callee Expr
		Paren  Token
		Args   []Expr
	}
)

func (*LiteralExpr) exprNode()  {}
func (*GroupingExpr) exprNode() {}
func (*UnaryExpr) exprNode()    {}
func (*BinaryExpr) exprNode()   {}
func (*LogicalExpr) exprNode()  {}
func (*VariableExpr) exprNode() {}
func (*AssignExpr) exprNode()   {}
func (*CallExpr) exprNode()     {}

func (e *LiteralExpr) Position() Pos  { return e.Pos }
func (e *GroupingExpr) Position() Pos { return e.Pos }
func (e *UnaryExpr) Position() Pos    { return e.Op.Pos }
func (e *BinaryExpr) Position() Pos   { return e.Op.Pos }
func (e *LogicalExpr) Position() Pos  { return e.Op.Pos }
func (e *VariableExpr) Position() Pos { return e.Name.Pos }
func (e *AssignExpr) Position() Pos   { return e.Name.Pos }
func (e *CallExpr) Position() Pos     { return e.Paren.Pos }

type (
	ExprStmt struct {
		Expr Expr
	}

	PrintStmt struct {
		Keyword Token
		Expr    Expr
	}

	// VarStmt declares a variable; Init is nil when absent.
	VarStmt struct {
		Name Token
		Init Expr
	}

	BlockStmt struct {
		Pos   Pos
		Stmts []Stmt
	}

	// IfStmt has a nil Else when there is no else branch.
	IfStmt struct {
		Keyword Token
		Cond    Expr
		Then    Stmt
		Else    Stmt
	}

	// WhileStmt also represents desugared 'for' loops.
	WhileStmt struct {
		Keyword Token
		Cond    Expr
		Body    Stmt
	}

	FunStmt struct {
		Name   Token
		Params []Token
		Body   []Stmt
	}

	// ReturnStmt has a nil Value for a bare 'return;'.
	ReturnStmt struct {
		Keyword Token
		Value   Expr
	}
)

func (*ExprStmt) stmtNode()   {}
func (*PrintStmt) stmtNode()  {}
func (*VarStmt) stmtNode()    {}
func (*BlockStmt) stmtNode()  {}
func (*IfStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()  {}
func (*FunStmt) stmtNode()    {}
func (*ReturnStmt) stmtNode() {}

func (s *ExprStmt) Position() Pos   { return s.Expr.Position() }
func (s *PrintStmt) Position() Pos  { return s.Keyword.Pos }
func (s *VarStmt) Position() Pos    { return s.Name.Pos }
func (s *BlockStmt) Position() Pos  { return s.Pos }
func (s *IfStmt) Position() Pos     { return s.Keyword.Pos }
func (s *WhileStmt) Position() Pos  { return s.Keyword.Pos }
func (s *FunStmt) Position() Pos    { return s.Name.Pos }
func (s *ReturnStmt) Position() Pos { return s.Keyword.Pos }
