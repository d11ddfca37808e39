package filter

import (
	"errors"
)

var (
	// ErrSyntax the expression could not be parsed
	ErrSyntax = errors.New("syntax error")
	// ErrUnsupported the expression is valid tcpdump syntax that this compiler does not generate code for
	ErrUnsupported = errors.New("unsupported filter")
	// ErrTooLong the generated program needs a conditional jump beyond 255 instructions
	ErrTooLong = errors.New("filter program too long")
)

// Filter constructed of a tcpdump filter expression
type Filter interface {
	// generate emit code that continues at t when the filter matches and at f when it does not
	generate(g *generator, t, f label) error
	Equal(o Filter) bool
	String() string
}
