package compile_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wewlang/wewc/internal/compile"
)

// emptyfn wraps a body inside a function returning the given type.
func emptyfn(body string, returns ...string) string {
	ret := "u1"
	if len(returns) > 0 {
		ret = returns[0]
	}
	return fmt.Sprintf("fn test() -> %s {%s}", ret, body)
}

func compileSrc(t *testing.T, src string) (*compile.Compiler, error) {
	t.Helper()
	return compile.CompileSource("test.wew", src)
}

func TestVarDeclaration(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{name: "global", src: "var a := 4;"},
		{name: "global typed", src: "var a: u2 = 4;"},
		{name: "in function", src: emptyfn("var a := 4;")},
		{name: "no type or value", src: emptyfn("var a;"), wantErr: true},
		{
			name: "redeclare same type",
			src:  emptyfn("var a := 4; var a := 5;"),
		},
		{
			name:    "redeclare different type",
			src:     emptyfn("var a := 4; var a := 5::u8;"),
			wantErr: true,
		},
		{
			name:    "type mismatch",
			src:     emptyfn("var a: u4 = 3::*u1;"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileSrc(t, tt.src)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestBinaryOperatorTypes(t *testing.T) {
	valid := []string{
		// additive
		"1 + 1", "1 - 1",
		"1::*u1 + 1", "1::*u1 - 1",
		"1 + 1::*u1", "1::*u1 - 1::*u1",
		// multiplicative
		"1 * 1", "1 / 1", "1::s4 / 1",
		// shifts
		"1 << 1", "1 >> 1", "1::s4 >> 1",
		// relational
		"1 < 1", "1 > 1", "1 <= 1", "1 >= 1", "1 == 1", "1 != 1",
		"1::*u1 < 1::*u1", "1::*u4 == 1::*u4",
		// bitwise
		"1 | 1", "1 & 1", "1 ^ 1",
		// boolean
		"1 || 1", "1 && 1",
	}
	for _, expr := range valid {
		t.Run(expr, func(t *testing.T) {
			_, err := compileSrc(t, emptyfn(expr+";"))
			assert.NoError(t, err)
		})
	}

	invalid := []string{
		"1::*u1 + 1::*u1", // pointers only subtract
		"1::*u1 * 1", "1 / 1::*u1",
		"1::*u1 << 1", "1 >> 1::*u1",
		"1 << 1::s1", // shift amounts must be unsigned
		"1::*u1 | 1", "1 & 1::*u1", "1::*u1 ^ 1::*u1",
		"1 < 1::*u1", "1::*u1 != 1",
	}
	for _, expr := range invalid {
		t.Run(expr, func(t *testing.T) {
			_, err := compileSrc(t, emptyfn(expr+";"))
			assert.Error(t, err)
		})
	}
}

func TestUnaryOperators(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{name: "negate signed", src: emptyfn("var a: s4 = 1::s4; -a;")},
		{name: "negate unsigned", src: emptyfn("var a := 1; -a;"), wantErr: true},
		{name: "plus unsigned is noop", src: emptyfn("var a := 1; +a;")},
		{name: "bitwise invert", src: emptyfn("var a := 1; ~a;")},
		{name: "logical invert", src: emptyfn("var a := 1; !a;")},
		{name: "deref pointer", src: emptyfn("var a: *u1; *a;")},
		{name: "deref int", src: emptyfn("var a := 1; *a;"), wantErr: true},
		{name: "preincrement", src: emptyfn("var a := 1; ++a;")},
		{name: "predecrement pointer", src: emptyfn("var a: *u2; --a;")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileSrc(t, tt.src)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVariableReferences(t *testing.T) {
	t.Run("subscope lookup", func(t *testing.T) {
		_, err := compileSrc(t, emptyfn("var a := 4; { a = 5; }"))
		require.NoError(t, err)
	})

	t.Run("global lookup from function", func(t *testing.T) {
		_, err := compileSrc(t, "var a := 4;"+emptyfn("a = 5;"))
		require.NoError(t, err)
	})

	t.Run("global declared after use", func(t *testing.T) {
		_, err := compileSrc(t, emptyfn("a = 5;")+"var a := 4;")
		require.NoError(t, err)
	})

	t.Run("undefined variable", func(t *testing.T) {
		_, err := compileSrc(t, emptyfn("a;"))
		require.Error(t, err)
	})
}

func TestAssignment(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{name: "var assign", src: emptyfn("var a := 3; a = 4;")},
		{name: "pointer store", src: emptyfn("*(0::*u1) = 3;")},
		{name: "const assign", src: emptyfn("var a: |u4| = 3; a = 4;"), wantErr: true},
		{name: "literal lvalue", src: emptyfn("1 = 2;"), wantErr: true},
		{name: "literal increment", src: emptyfn("1++;"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileSrc(t, tt.src)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestReturn(t *testing.T) {
	t.Run("return value", func(t *testing.T) {
		_, err := compileSrc(t, emptyfn("return 1;"))
		require.NoError(t, err)
	})

	t.Run("return reference", func(t *testing.T) {
		_, err := compileSrc(t, emptyfn("var a: u1; return &a;", "*u1"))
		require.NoError(t, err)
	})

	t.Run("incompatible return type", func(t *testing.T) {
		_, err := compileSrc(t, emptyfn("return 1::*u1;"))
		require.Error(t, err)
	})

	t.Run("return outside function", func(t *testing.T) {
		_, err := compileSrc(t, "return 1;")
		require.Error(t, err)
	})
}

func TestFunctionCalls(t *testing.T) {
	t.Run("call with casts", func(t *testing.T) {
		src := "fn a(b: u1, c: *u2) -> u2 { return c[b]; }" +
			"fn main() -> u1 { a(1, 2::*u2); return 0; }"
		_, err := compileSrc(t, src)
		require.NoError(t, err)
	})

	t.Run("call before declaration", func(t *testing.T) {
		src := "fn main() -> u1 { return helper(); }" +
			"fn helper() -> u1 { return 1; }"
		_, err := compileSrc(t, src)
		require.NoError(t, err)
	})

	t.Run("wrong arg count", func(t *testing.T) {
		src := "fn a(b: u1, c: *u2) -> u2 { return c[b]; }" +
			"fn main() -> u1 { a(1); return 0; }"
		_, err := compileSrc(t, src)
		require.Error(t, err)
	})

	t.Run("wrong arg type", func(t *testing.T) {
		src := "fn a(b: u1, c: *u2) -> u2 { return c[b]; }" +
			"fn main() -> u1 { a(0::*u1, 1); return 0; }"
		_, err := compileSrc(t, src)
		require.Error(t, err)
	})

	t.Run("call non-function", func(t *testing.T) {
		_, err := compileSrc(t, emptyfn("var a := 1; a();"))
		require.Error(t, err)
	})
}

func TestControlFlow(t *testing.T) {
	t.Run("if elif else", func(t *testing.T) {
		src := emptyfn(`var a := 1;
			var b := 2;
			if a < b {
				return a;
			} elif a > b {
				return b;
			} else {
				return (a + b) / 2;
			}`)
		_, err := compileSrc(t, src)
		require.NoError(t, err)
	})

	t.Run("while loop", func(t *testing.T) {
		_, err := compileSrc(t, emptyfn("var a := 2; while a { a = a * 2; }"))
		require.NoError(t, err)
	})
}

func TestArrays(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{name: "numeric init", src: emptyfn("var a := {1, 2, 3};")},
		{name: "string init", src: emptyfn(`var a := {"string", "morestring"};`)},
		{name: "unsized declaration", src: emptyfn("var a: [u1];"), wantErr: true},
		{name: "sized declaration", src: emptyfn("var a: [u1@5];")},
		{name: "negative length", src: emptyfn("var a: [u1@-4];"), wantErr: true},
		{name: "var as first element", src: emptyfn("var b := 1; var a := {b, 2, 3};")},
		{name: "var as second element", src: emptyfn("var b := 2; var a := {1, b, 3};")},
		{name: "conflicting element types", src: emptyfn("var a := {1, 2::*u2};"), wantErr: true},
		{name: "expressions as elements", src: emptyfn("var b := 4; var a := {b, b * 2};")},
		{name: "bare literal", src: emptyfn("{1, 2, 3};")},
		{name: "fill to declared length", src: emptyfn("var a: [u1@5] = {1, 2};")},
		{name: "too many elements", src: emptyfn("var a: [u1@2] = {1, 2, 3};"), wantErr: true},
		{name: "index array", src: emptyfn("var a := {1, 2, 3}; return a[1];")},
		{name: "nested literal", src: emptyfn("var a: [[u1@2]@2] = {{1, 2}, {3, 4}};")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileSrc(t, tt.src)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestStringLiteralsInterned(t *testing.T) {
	c, err := compileSrc(t, emptyfn(`var a := "hello"; var b := "hello"; var d := "other";`))
	require.NoError(t, err)

	count := 0
	for _, name := range c.DataNames() {
		item, ok := c.DataItemFor(name)
		require.True(t, ok)
		if len(item.Bytes) > 0 && name != "test" {
			count++
		}
	}
	// two distinct strings, each NUL terminated
	hello, ok := c.DataItemFor("string-lit-hello")
	require.True(t, ok)
	assert.Equal(t, []byte("hello\x00"), hello.Bytes)
	assert.Equal(t, 2, count)
}

func TestGlobalTypeInference(t *testing.T) {
	t.Run("from function reference", func(t *testing.T) {
		src := "var f := main;" +
			"fn main() -> u1 { return 0; }"
		_, err := compileSrc(t, src)
		require.NoError(t, err)
	})

	t.Run("self referential cycle", func(t *testing.T) {
		_, err := compileSrc(t, "var a := a;")
		require.Error(t, err)
	})

	t.Run("mutual cycle", func(t *testing.T) {
		_, err := compileSrc(t, "var a := b; var b := a;")
		require.Error(t, err)
	})
}
