package pcap

import (
	"fmt"

	"golang.org/x/net/bpf"
)

// Matcher runs a filter program in process, over frames that did not come
// through a kernel filter, e.g. frames read back from a file
type Matcher struct {
	vm *bpf.VM
}

// NewMatcher load the program into a virtual machine. The matcher keeps its
// own copy of the instructions, so the program may be released afterwards.
func NewMatcher(p *FilterProgram) (*Matcher, error) {
	if p.Released() {
		return nil, ErrReleased
	}
	ins := p.Instructions()
	prog := make([]bpf.Instruction, len(ins))
	for i, in := range ins {
		prog[i] = in.Disassemble()
	}
	vm, err := bpf.NewVM(prog)
	if err != nil {
		return nil, fmt.Errorf("unable to load filter program: %w", err)
	}
	return &Matcher{vm: vm}, nil
}

// Run the number of bytes of data the program keeps, 0 when it rejects the frame.
// The length the program sees is len(data), not the on-wire length.
func (m *Matcher) Run(data []byte) (int, error) {
	return m.vm.Run(data)
}

// Match if the program accepts the frame. An expired view is an error.
func (m *Matcher) Match(f Frame) (bool, error) {
	if v, ok := f.(interface{ Valid() bool }); ok && !v.Valid() {
		return false, ErrViewExpired
	}
	n, err := m.vm.Run(f.BodyView())
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
