package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wewlang/wewc/pkg/ast"
	"github.com/wewlang/wewc/pkg/parser"
	"github.com/wewlang/wewc/pkg/token"
	"github.com/wewlang/wewc/pkg/types"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	return prog
}

func TestVarDecls(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		declName string
		typ      types.Type
		hasValue bool
	}{
		{name: "walrus", src: "var a := 4", declName: "a", hasValue: true},
		{name: "typed", src: "var a: u2", declName: "a", typ: types.IntOfSize(2, false)},
		{name: "typed with value", src: "var a: s4 = 1", declName: "a", typ: types.IntOfSize(4, true), hasValue: true},
		{name: "pointer type", src: "var p: *u1", declName: "p", typ: types.Pointer{To: types.IntOfSize(1, false)}},
		{name: "const type", src: "var c: |u4| = 2", declName: "c", typ: types.Int{Width: 4, IsConst: true}, hasValue: true},
		{
			name: "sized array type", src: "var xs: [u2@3]", declName: "xs",
			typ: types.Array{To: types.IntOfSize(2, false), Length: 3},
		},
		{
			name: "unsized array type", src: "var xs: [u2] = ys", declName: "xs",
			typ: types.Array{To: types.IntOfSize(2, false), Length: types.NoLength}, hasValue: true,
		},
		{
			name: "function type", src: "var f: (u1, u2) -> u4", declName: "f",
			typ: types.Func{
				Params:  []types.Type{types.IntOfSize(1, false), types.IntOfSize(2, false)},
				Returns: types.IntOfSize(4, false),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := parse(t, tt.src)
			require.Len(t, prog.Stmts, 1)
			decl, ok := prog.Stmts[0].(*ast.VarDecl)
			require.True(t, ok)
			assert.Equal(t, tt.declName, decl.Name)
			if tt.typ != nil {
				assert.Equal(t, tt.typ, decl.Type)
			}
			assert.Equal(t, tt.hasValue, decl.Value != nil)
		})
	}
}

func TestFuncDecl(t *testing.T) {
	prog := parse(t, `fn add(a: u2, b: u2) -> u2 { return a + b }`)
	require.Len(t, prog.Stmts, 1)

	fn, ok := prog.Stmts[0].(*ast.FuncDecl)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Name)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "a", fn.Params[0].Name)
	assert.Equal(t, types.IntOfSize(2, false), fn.Returns)
	require.Len(t, fn.Body.Stmts, 1)

	ret, ok := fn.Body.Stmts[0].(*ast.ReturnStmt)
	require.True(t, ok)
	bin, ok := ret.Value.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.PLUS, bin.Op)
}

func TestVoidFuncDecl(t *testing.T) {
	prog := parse(t, `fn nop() { }`)
	fn, ok := prog.Stmts[0].(*ast.FuncDecl)
	require.True(t, ok)
	assert.Nil(t, fn.Returns)
}

func TestBareReturn(t *testing.T) {
	prog := parse(t, "fn f(n: u1) {\n\tif n { return }\n\tn++\n}")
	fn := prog.Stmts[0].(*ast.FuncDecl)
	ifStmt, ok := fn.Body.Stmts[0].(*ast.IfStmt)
	require.True(t, ok)
	ret, ok := ifStmt.Body.Stmts[0].(*ast.ReturnStmt)
	require.True(t, ok)
	assert.Nil(t, ret.Value)
}

func TestPrecedence(t *testing.T) {
	tests := []struct {
		name string
		src  string
		top  token.Type
	}{
		{name: "mul over add", src: "1 + 2 * 3", top: token.PLUS},
		{name: "shift over relation", src: "1 << 2 < 3", top: token.LT},
		{name: "relation over equality", src: "1 < 2 == 3 < 4", top: token.EQ},
		{name: "equality over boolean", src: "1 == 2 && 3 == 4", top: token.LAND},
		{name: "bitwise binds loosest", src: "1 & 2 || 3", top: token.AMP},
		{name: "assignment loosest", src: "a = 1 + 2", top: token.ASSIGN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := parser.ParseExpr(tt.src)
			require.NoError(t, err)
			switch v := expr.(type) {
			case *ast.BinaryExpr:
				assert.Equal(t, tt.top, v.Op)
			case *ast.BoolExpr:
				assert.Equal(t, tt.top, v.Op)
			case *ast.AssignExpr:
				assert.Equal(t, token.ASSIGN, tt.top)
			default:
				t.Fatalf("unexpected node %T", expr)
			}
		})
	}
}

func TestCastsBindTightest(t *testing.T) {
	expr, err := parser.ParseExpr("a::u2 + b@u1")
	require.NoError(t, err)

	bin, ok := expr.(*ast.BinaryExpr)
	require.True(t, ok)

	left, ok := bin.Left.(*ast.CastExpr)
	require.True(t, ok)
	assert.True(t, left.Extend)

	right, ok := bin.Right.(*ast.CastExpr)
	require.True(t, ok)
	assert.False(t, right.Extend)
}

func TestElifChainNests(t *testing.T) {
	prog := parse(t, `
		fn pick(n: u1) -> u1 {
			if n == 0 { return 1 }
			elif n == 1 { return 2 }
			else { return 3 }
		}
	`)
	fn := prog.Stmts[0].(*ast.FuncDecl)
	first, ok := fn.Body.Stmts[0].(*ast.IfStmt)
	require.True(t, ok)

	second, ok := first.Else.(*ast.IfStmt)
	require.True(t, ok)
	_, ok = second.Else.(*ast.BlockStmt)
	assert.True(t, ok)
}

func TestLineBreaksSeparateStatements(t *testing.T) {
	prog := parse(t, "var a := 1\nvar b := 2\na = b")
	assert.Len(t, prog.Stmts, 3)
}

func TestSemicolonsSeparateStatements(t *testing.T) {
	prog := parse(t, "var a := 1; var b := 2; a = b;")
	assert.Len(t, prog.Stmts, 3)
}

func TestComments(t *testing.T) {
	prog := parse(t, `
		// a line comment
		var a := 1 // trailing
		{~ a block
		   comment ~} var b := 2
	`)
	assert.Len(t, prog.Stmts, 2)
}

func TestStringAndCharLiterals(t *testing.T) {
	prog := parse(t, `var s := "he\nllo"` + "\nvar c := 'x'")
	require.Len(t, prog.Stmts, 2)

	s := prog.Stmts[0].(*ast.VarDecl).Value.(*ast.StringLit)
	assert.Equal(t, "he\nllo", s.Value)

	c := prog.Stmts[1].(*ast.VarDecl).Value.(*ast.IntLit)
	assert.Equal(t, int64('x'), c.Value)
	assert.Equal(t, types.IntOfSize(1, false), c.Type)
}

func TestIntLiteralWidths(t *testing.T) {
	small, err := parser.ParseExpr("40000")
	require.NoError(t, err)
	assert.Equal(t, types.IntOfSize(4, false), small.(*ast.IntLit).Type)

	big, err := parser.ParseExpr("4294967296")
	require.NoError(t, err)
	assert.Equal(t, types.IntOfSize(8, false), big.(*ast.IntLit).Type)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "missing brace", src: "fn f() -> u1 { return 1"},
		{name: "bad type", src: "var a: u3"},
		{name: "two statements one line", src: "var a := 1 var b := 2"},
		{name: "unterminated string", src: `var s := "abc`},
		{name: "unterminated block comment", src: "{~ forever\nvar a := 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.Parse(tt.src)
			assert.Error(t, err)
		})
	}
}

func TestErrorsCarryPositions(t *testing.T) {
	_, err := parser.Parse("var a :=\n  @")
	require.Error(t, err)

	var perr *parser.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Pos.Line)
}
