package compile

import (
	"fmt"

	"github.com/wewlang/wewc/pkg/token"
)

// Error is a semantic error with the source span that produced it.
type Error struct {
	Message string
	Span    token.Span
	Trace   string // rendered source excerpt, may be empty
}

func (e *Error) Error() string {
	if e.Trace == "" {
		return e.Message
	}
	return e.Message + "\n" + e.Trace
}

// InternalError reports a compiler bug rather than a user error.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return "internal compiler error: " + e.Message
}

func internalf(format string, args ...any) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}
