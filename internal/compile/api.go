// Package compile lowers parsed wew programs into the infinite-register
// IR consumed by the backend.
package compile

import (
	"github.com/wewlang/wewc/pkg/parser"
)

// CompileSource parses and compiles one source unit.
func CompileSource(name, text string) (*Compiler, error) {
	prog, err := parser.Parse(text)
	if err != nil {
		return nil, err
	}

	c := NewCompiler(NewSource(name, text))
	if err := c.CompileProgram(prog); err != nil {
		return nil, err
	}
	return c, nil
}
