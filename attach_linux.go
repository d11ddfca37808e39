package pcap

import (
	"fmt"
	"math"

	"golang.org/x/sys/unix"
)

// Attach install the program as the socket filter of fd with SO_ATTACH_FILTER.
// The kernel copies the program, so it may be released afterwards.
func (p *FilterProgram) Attach(fd int) error {
	if err := p.attachable(); err != nil {
		return err
	}
	if p.length > math.MaxUint16 {
		return fmt.Errorf("%w: %d instructions do not fit a socket filter", ErrInvalidArgument, p.length)
	}
	prog := unix.SockFprog{
		Len:    uint16(p.length),
		Filter: (*unix.SockFilter)(p.mem.base()),
	}
	if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &prog); err != nil {
		return fmt.Errorf("unable to set filter: %v", err)
	}
	return nil
}

// DetachFilter remove the socket filter from fd
func DetachFilter(fd int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_DETACH_FILTER, 0); err != nil {
		return fmt.Errorf("unable to remove filter: %v", err)
	}
	return nil
}
