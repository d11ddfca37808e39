//go:build darwin || freebsd

package pcap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// bpfProgram struct bpf_program as the BIOCSETF ioctl takes it
type bpfProgram struct {
	Len    uint32
	Filter *Instruction
}

// Attach install the program on the /dev/bpf device open on fd with BIOCSETF.
// The kernel copies the program, so it may be released afterwards.
func (p *FilterProgram) Attach(fd int) error {
	if err := p.attachable(); err != nil {
		return err
	}
	prog := bpfProgram{
		Len:    p.length,
		Filter: (*Instruction)(p.mem.base()),
	}
	if err := ioctlPtr(fd, unix.BIOCSETF, unsafe.Pointer(&prog)); err != nil {
		return fmt.Errorf("unable to set filter: %v", err)
	}
	return nil
}

func ioctlPtr(fd, arg int, valPtr unsafe.Pointer) error {
	//nolint:staticcheck // unix.SYS_IOCTL is deprecated, but golang does not provide a better alternative
	// as of this writing for passing pointers
	_, _, errno := unix.RawSyscall(unix.SYS_IOCTL, uintptr(fd), uintptr(arg), uintptr(valPtr))
	if errno != 0 {
		return fmt.Errorf("error: %d", errno)
	}
	return nil
}
