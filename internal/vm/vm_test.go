package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wewlang/wewc/internal/backend/rustvm"
	"github.com/wewlang/wewc/internal/compile"
	"github.com/wewlang/wewc/internal/stdlib"
	"github.com/wewlang/wewc/internal/vm"
)

// execute compiles and runs a program, returning the machine after main
// has returned and the VM halted.
func execute(t *testing.T, src string, regCount int) *vm.Machine {
	t.Helper()

	comp, err := compile.CompileSource("test.wew", src)
	require.NoError(t, err)

	prog, err := rustvm.Assemble(comp, regCount)
	require.NoError(t, err)

	m, err := vm.New(prog.Binary, regCount, strings.NewReader(""), &bytes.Buffer{})
	require.NoError(t, err)
	require.NoError(t, m.Run())
	require.True(t, m.Halted())
	return m
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want uint64
		size int
	}{
		{
			name: "return constant",
			src:  `fn main() -> u1 { return 42 }`,
			want: 42, size: 1,
		},
		{
			name: "locals and arithmetic",
			src: `fn main() -> u2 {
				var a := 1000
				var b := 300
				return a * 2 + b / 3
			}`,
			want: 2100, size: 2,
		},
		{
			name: "function call with arguments",
			src: `fn add(a: u2, b: u2) -> u2 { return a + b }
			fn main() -> u2 { return add(40, 2) }`,
			want: 42, size: 2,
		},
		{
			name: "mixed width parameters",
			src: `fn mix(a: u1, b: u4, c: u2) -> u4 { return b + a::u4 + c::u4 }
			fn main() -> u4 { return mix(1, 70000, 2) }`,
			want: 70003, size: 4,
		},
		{
			name: "recursion",
			src: `fn fac(n: u4) -> u4 {
				if n < 2 { return 1 }
				return n * fac(n - 1)
			}
			fn main() -> u4 { return fac(6) }`,
			want: 720, size: 4,
		},
		{
			name: "while loop",
			src: `fn main() -> u2 {
				var sum := 0::u2
				var i := 0::u2
				while i < 10 {
					i = i + 1
					sum = sum + i
				}
				return sum
			}`,
			want: 55, size: 2,
		},
		{
			name: "if else chains",
			src: `fn pick(n: u1) -> u1 {
				if n == 0 { return 10 }
				elif n == 1 { return 20 }
				else { return 30 }
			}
			fn main() -> u1 { return pick(0) + pick(1) + pick(2) }`,
			want: 60, size: 1,
		},
		{
			name: "pointers",
			src: `fn main() -> u1 {
				var x := 1::u1
				var p := &x
				*p = 5
				return x
			}`,
			want: 5, size: 1,
		},
		{
			name: "pointer arithmetic walks elements",
			src: `fn main() -> u2 {
				var xs := [10::u2, 20, 30]
				var p := xs@*u2
				p = p + 2
				return *p
			}`,
			want: 30, size: 2,
		},
		{
			name: "array indexing",
			src: `fn main() -> u2 {
				var xs := [5::u2, 6, 7]
				xs[1] = 60
				return xs[0] + xs[1] + xs[2]
			}`,
			want: 72, size: 2,
		},
		{
			name: "globals",
			src: `var counter := 7::u2
			fn bump() { counter = counter + 1 }
			fn main() -> u2 {
				bump()
				bump()
				return counter
			}`,
			want: 9, size: 2,
		},
		{
			name: "global referenced before declaration",
			src: `fn main() -> u2 { return later * 2 }
			var later := 21::u2`,
			want: 42, size: 2,
		},
		{
			name: "string literal bytes",
			src: `fn main() -> u1 {
				var s := "AB"
				return s[0] + s[1]
			}`,
			want: 131, size: 1,
		},
		{
			name: "signed division",
			src: `fn main() -> s2 {
				var a := (0 - 6)::s2
				return a / 2
			}`,
			want: 0xFFFD, size: 2, // -3
		},
		{
			name: "signed comparison",
			src: `fn main() -> u1 {
				var a := (0 - 1)::s2
				if a < 1::s2 { return 1 }
				return 0
			}`,
			want: 1, size: 1,
		},
		{
			name: "arithmetic shift right",
			src: `fn main() -> s2 {
				var a := (0 - 8)::s2
				return a >> 1::u1
			}`,
			want: 0xFFFC, size: 2, // -4
		},
		{
			name: "logical not",
			src: `fn main() -> u1 { return !0 + !5 }`,
			want: 1, size: 1,
		},
		{
			name: "short circuit or",
			src: `fn boom() -> u1 { return 0 / 0 }
			fn main() -> u1 {
				if 1 || boom() { return 1 }
				return 0
			}`,
			want: 1, size: 1,
		},
		{
			name: "short circuit and",
			src: `fn boom() -> u1 { return 0 / 0 }
			fn main() -> u1 {
				if 0 && boom() { return 2 }
				return 3
			}`,
			want: 3, size: 1,
		},
		{
			name: "increment operators",
			src: `fn main() -> u2 {
				var i := 10::u2
				var a := i++
				var b := ++i
				return a + b
			}`,
			want: 22, size: 2,
		},
		{
			name: "wide immediate from data section",
			src:  `fn main() -> u4 { return 70000 }`,
			want: 70000, size: 4,
		},
		{
			name: "toplevel code runs before main",
			src: `var x := 3::u2
			x = x * 7
			fn main() -> u2 { return x }`,
			want: 21, size: 2,
		},
		{
			name: "nested blocks",
			src: `fn main() -> u2 {
				var a := 1::u2
				if a {
					var b := 2::u2
					if b { var c := 3::u2
						a = a + b + c
					}
				}
				return a
			}`,
			want: 6, size: 2,
		},
		{
			name: "reinterpret cast",
			src: `fn main() -> u1 {
				var a := 300::u2
				return a@u1
			}`,
			want: 44, size: 1, // 300 & 0xFF
		},
		{
			name: "sign extending cast",
			src: `fn main() -> s2 {
				var a := (0 - 1)::s1
				return a::s2
			}`,
			want: 0xFFFF, size: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := execute(t, tt.src, rustvm.DefaultRegCount)
			assert.Equal(t, tt.want, m.ReturnValue(tt.size))
		})
	}
}

// The same programs must behave identically when the allocator is starved
// into spilling.
func TestProgramsWithFewRegisters(t *testing.T) {
	src := `fn fib(n: u4) -> u4 {
		if n < 2 { return n }
		return fib(n - 1) + fib(n - 2)
	}
	fn main() -> u4 {
		var a := (1 + 2) * (3 + 4) * (5 + 6) * (7 + 8)
		return a::u4 + fib(10)
	}`

	for _, regs := range []int{4, 6, rustvm.DefaultRegCount} {
		m := execute(t, src, regs)
		assert.Equal(t, uint64(3465+55), m.ReturnValue(4), "regs=%d", regs)
	}
}

func TestRuntimeErrors(t *testing.T) {
	comp, err := compile.CompileSource("test.wew", `fn main() -> u1 { return 1 / 0 }`)
	require.NoError(t, err)
	prog, err := rustvm.Assemble(comp, rustvm.DefaultRegCount)
	require.NoError(t, err)

	m, err := vm.New(prog.Binary, rustvm.DefaultRegCount, nil, nil)
	require.NoError(t, err)
	require.ErrorContains(t, m.Run(), "division by zero")
}

func TestStepLimit(t *testing.T) {
	comp, err := compile.CompileSource("test.wew", `fn main() -> u1 {
		while 1 { }
		return 0
	}`)
	require.NoError(t, err)
	prog, err := rustvm.Assemble(comp, rustvm.DefaultRegCount)
	require.NoError(t, err)

	m, err := vm.New(prog.Binary, rustvm.DefaultRegCount, nil, nil)
	require.NoError(t, err)
	m.MaxSteps = 1000
	require.ErrorContains(t, m.Run(), "exceeded")
}

func TestMissingMain(t *testing.T) {
	comp, err := compile.CompileSource("test.wew", `fn other() -> u1 { return 1 }`)
	require.NoError(t, err)
	_, err = rustvm.Assemble(comp, rustvm.DefaultRegCount)
	require.ErrorContains(t, err, "main")
}

// executeIO runs a program with the standard library appended, feeding it
// input and capturing what it writes.
func executeIO(t *testing.T, src, input string) string {
	t.Helper()

	comp, err := compile.CompileSource("test.wew", stdlib.Append(src))
	require.NoError(t, err)
	prog, err := rustvm.Assemble(comp, rustvm.DefaultRegCount)
	require.NoError(t, err)

	var out bytes.Buffer
	m, err := vm.New(prog.Binary, rustvm.DefaultRegCount, strings.NewReader(input), &out)
	require.NoError(t, err)
	require.NoError(t, m.Run())
	return out.String()
}

func TestCharacterIO(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		input string
		want  string
	}{
		{
			name: "putc writes bytes",
			src: `fn main() -> u1 {
				putc('h')
				putc('i')
				return 0
			}`,
			want: "hi",
		},
		{
			name: "getc echoes until end of input",
			src: `fn main() -> u1 {
				var c := getc()
				while c != 255 {
					putc(c)
					c = getc()
				}
				return 0
			}`,
			input: "echo",
			want:  "echo",
		},
		{
			name: "print walks a string",
			src: `fn main() -> u1 {
				print("hello, world")
				return 0
			}`,
			want: "hello, world",
		},
		{
			name: "print_u8 formats decimals",
			src: `fn main() -> u1 {
				print_u8(0::u8)
				putc(' ')
				print_u8(7::u8)
				putc(' ')
				print_u8(70000::u8)
				return 0
			}`,
			want: "0 7 70000",
		},
		{
			name: "print_s8 formats negatives",
			src: `fn main() -> u1 {
				print_s8((0 - 42)::s8)
				return 0
			}`,
			want: "-42",
		},
		{
			name: "user definition shadows an intrinsic",
			src: `fn putc(c: u1) -> u1 { return c }
			fn main() -> u1 { return putc(9) }`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, executeIO(t, tt.src, tt.input))
		})
	}
}

func TestStandardLibrary(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want uint64
		size int
	}{
		{
			name: "strlen counts to the terminator",
			src: `fn main() -> u2 {
				var s := "four"
				return strlen(s)
			}`,
			want: 4, size: 2,
		},
		{
			name: "streq compares strings",
			src: `fn main() -> u1 {
				return streq("abc", "abc") * 2 + streq("abc", "abd")
			}`,
			want: 2, size: 1,
		},
		{
			name: "memset then memcpy",
			src: `fn main() -> u1 {
				var a: [u1@4]
				var b: [u1@4]
				memset(a@*u1, 9, 4)
				memcpy(b@*u1, a@*u1, 4)
				return b[0] + b[3]
			}`,
			want: 18, size: 1,
		},
		{
			name: "abs min max",
			src: `fn main() -> u1 {
				var n := abs((0 - 5)::s8)
				return n@u1 + umin(2::u8, 3)@u1 + umax(2::u8, 3)@u1
			}`,
			want: 10, size: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp, err := compile.CompileSource("test.wew", stdlib.Append(tt.src))
			require.NoError(t, err)
			prog, err := rustvm.Assemble(comp, rustvm.DefaultRegCount)
			require.NoError(t, err)

			m, err := vm.New(prog.Binary, rustvm.DefaultRegCount, strings.NewReader(""), &bytes.Buffer{})
			require.NoError(t, err)
			require.NoError(t, m.Run())
			assert.Equal(t, tt.want, m.ReturnValue(tt.size))
		})
	}
}
