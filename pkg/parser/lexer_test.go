package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wewlang/wewc/pkg/parser"
	"github.com/wewlang/wewc/pkg/token"
)

func lex(t *testing.T, src string) []token.Type {
	t.Helper()
	l := parser.NewLexer(src)
	var out []token.Type
	for {
		tok := l.NextToken()
		out = append(out, tok.Type)
		if tok.Type == token.EOF {
			break
		}
	}
	require.NoError(t, l.Err())
	return out
}

func TestNewlinesTerminateStatements(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []token.Type
	}{
		{
			name: "after identifier",
			src:  "a\nb",
			want: []token.Type{token.IDENT, token.SEMI, token.IDENT, token.EOF},
		},
		{
			name: "after literal",
			src:  "1\n2",
			want: []token.Type{token.INT, token.SEMI, token.INT, token.EOF},
		},
		{
			name: "after closing brace",
			src:  "}\na",
			want: []token.Type{token.RBRACE, token.SEMI, token.IDENT, token.EOF},
		},
		{
			name: "after bare return",
			src:  "return\n}",
			want: []token.Type{token.RETURN, token.SEMI, token.RBRACE, token.EOF},
		},
		{
			name: "not after binary operator",
			src:  "a +\nb",
			want: []token.Type{token.IDENT, token.PLUS, token.IDENT, token.EOF},
		},
		{
			name: "not after comma",
			src:  "f(a,\nb)",
			want: []token.Type{
				token.IDENT, token.LPAREN, token.IDENT, token.COMMA,
				token.IDENT, token.RPAREN, token.EOF,
			},
		},
		{
			name: "blank lines collapse",
			src:  "a\n\n\nb",
			want: []token.Type{token.IDENT, token.SEMI, token.IDENT, token.EOF},
		},
		{
			name: "line comment keeps the break",
			src:  "a // trailing\nb",
			want: []token.Type{token.IDENT, token.SEMI, token.IDENT, token.EOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lex(t, tt.src))
		})
	}
}

func TestCompoundOperators(t *testing.T) {
	got := lex(t, "a::u2 @ << >> <= >= == != && || ++ --")
	want := []token.Type{
		token.IDENT, token.COLONCOL, token.IDENT, token.AT,
		token.SHL, token.SHR, token.LE, token.GE, token.EQ, token.NE,
		token.LAND, token.LOR, token.INC, token.DEC, token.EOF,
	}
	assert.Equal(t, want, got)
}

func TestNumberBases(t *testing.T) {
	l := parser.NewLexer("0x2A 42")
	for _, want := range []string{"0x2A", "42"} {
		tok := l.NextToken()
		assert.Equal(t, token.INT, tok.Type)
		assert.Equal(t, want, tok.Literal)
	}
	require.NoError(t, l.Err())
}

func TestTokenPositions(t *testing.T) {
	l := parser.NewLexer("ab\n  cd")
	first := l.NextToken()
	assert.Equal(t, 1, first.Pos.Line)
	assert.Equal(t, 1, first.Pos.Column)

	l.NextToken() // inserted separator
	second := l.NextToken()
	assert.Equal(t, 2, second.Pos.Line)
	assert.Equal(t, 3, second.Pos.Column)
}
