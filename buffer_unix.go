//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package pcap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmapBuffer instructions in an anonymous mapping, made read-only once filled
type mmapBuffer struct {
	mem []byte
}

func allocInstructions(ins []Instruction) (nativeBuffer, error) {
	size := len(ins) * instructionSize
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("unable to map filter program: %v", err)
	}
	copy(mem, unsafe.Slice((*byte)(unsafe.Pointer(&ins[0])), size))
	if err := unix.Mprotect(mem, unix.PROT_READ); err != nil {
		_ = unix.Munmap(mem)
		return nil, fmt.Errorf("unable to protect filter program: %v", err)
	}
	return &mmapBuffer{mem: mem}, nil
}

func (b *mmapBuffer) base() unsafe.Pointer {
	return unsafe.Pointer(&b.mem[0])
}

func (b *mmapBuffer) release() error {
	return unix.Munmap(b.mem)
}
