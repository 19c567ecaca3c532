package compile

import (
	"fmt"
	"strings"

	"github.com/wewlang/wewc/pkg/ast"
	"github.com/wewlang/wewc/pkg/token"
)

// Source holds the text being compiled, for diagnostic rendering.
type Source struct {
	Name  string
	Text  string
	lines []string
}

// NewSource wraps source text for diagnostics.
func NewSource(name, text string) *Source {
	return &Source{Name: name, Text: text, lines: strings.Split(text, "\n")}
}

// Highlight renders the source lines covered by span with caret
// underlining, e.g.
//
//	var a := 1 + 1::*u4;
//	         ^--------^
func (s *Source) Highlight(span token.Span) string {
	startl, endl := span.Start.Line, span.End.Line
	if startl < 1 || startl > len(s.lines) {
		return ""
	}
	if endl > len(s.lines) {
		endl = len(s.lines)
	}

	var b strings.Builder

	if startl == endl {
		line := s.lines[startl-1]
		b.WriteString(line)
		b.WriteByte('\n')
		start := span.Start.Column
		end := span.End.Column
		if end <= start {
			end = start + 1
		}
		if end > len(line)+1 {
			end = len(line) + 1
		}
		b.WriteString(strings.Repeat(" ", start-1))
		if end-start <= 1 {
			b.WriteString("^")
		} else {
			b.WriteString("^" + strings.Repeat("-", end-start-2) + "^")
		}
		return b.String()
	}

	for l := startl; l <= endl; l++ {
		line := s.lines[l-1]
		b.WriteString(line)
		b.WriteByte('\n')
		switch l {
		case startl:
			pad := span.Start.Column - 1
			b.WriteString(strings.Repeat(" ", pad))
			b.WriteString("^" + strings.Repeat("-", max(0, len(line)-pad-1)))
		case endl:
			width := min(span.End.Column, len(line))
			b.WriteString(strings.Repeat("-", max(0, width-1)) + "^")
		default:
			b.WriteString(strings.Repeat("-", len(line)))
		}
		if l != endl {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// errAt builds a compile error pointing at a node.
func (s *Source) errAt(node ast.Node, format string, args ...any) *Error {
	span := node.Span()
	trace := fmt.Sprintf("on %s\n%s", span, s.Highlight(span))
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Span:    span,
		Trace:   trace,
	}
}
