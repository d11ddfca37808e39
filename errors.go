package pcap

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedLinkType a link type name or value that the registry cannot resolve
	ErrUnsupportedLinkType = errors.New("unsupported link type")
	// ErrInvalidArgument input that is neither a link type name nor a number
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound a registry lookup found no match
	ErrNotFound = errors.New("not found")
	// ErrCompile filter compilation failed, see CompileError
	ErrCompile = errors.New("filter compile error")
	// ErrShortBody the data holds fewer bytes than the header says were captured
	ErrShortBody = errors.New("body shorter than captured length")
	// ErrCorrupt an encoded packet could not be decoded
	ErrCorrupt = errors.New("corrupt packet encoding")
	// ErrViewExpired the capture buffer behind a PacketView has been reused
	ErrViewExpired = errors.New("packet view expired")
	// ErrClosed the dumper has been closed
	ErrClosed = errors.New("dumper closed")
	// ErrReleased the filter program has been released
	ErrReleased = errors.New("filter program released")
)

// UnsupportedLinkTypeError reports the input that could not be made into a LinkType
type UnsupportedLinkTypeError struct {
	Input string
}

func (e *UnsupportedLinkTypeError) Error() string {
	return fmt.Sprintf("invalid link type: %s", e.Input)
}

func (e *UnsupportedLinkTypeError) Is(target error) bool {
	return target == ErrUnsupportedLinkType
}

// CompileError a failed filter compilation. Err is nil when the compiler gave
// no diagnostic, which is always the case for the libpcap backend since it
// compiles without a capture session to hold the error text.
type CompileError struct {
	Expr string
	Err  error
}

func (e *CompileError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unable to compile filter %q: unspecified error", e.Expr)
	}
	return fmt.Sprintf("unable to compile filter %q: %v", e.Expr, e.Err)
}

func (e *CompileError) Is(target error) bool {
	return target == ErrCompile
}

func (e *CompileError) Unwrap() error {
	return e.Err
}
