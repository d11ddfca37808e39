//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package pcap

import (
	"unsafe"
)

// heapBuffer instructions on the Go heap, where there is no mmap
type heapBuffer struct {
	ins []Instruction
}

func allocInstructions(ins []Instruction) (nativeBuffer, error) {
	b := &heapBuffer{ins: make([]Instruction, len(ins))}
	copy(b.ins, ins)
	return b, nil
}

func (b *heapBuffer) base() unsafe.Pointer {
	return unsafe.Pointer(&b.ins[0])
}

func (b *heapBuffer) release() error {
	b.ins = nil
	return nil
}
