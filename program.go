package pcap

import (
	"fmt"
	"strings"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/bpf"
)

// Instruction a single classic BPF instruction, laid out as struct bpf_insn
type Instruction struct {
	Opcode    uint16
	JumpTrue  uint8
	JumpFalse uint8
	Operand   uint32
}

// the kernel and libpcap read instructions straight out of program memory
var (
	_ [unsafe.Sizeof(Instruction{}) - instructionSize]struct{}
	_ [instructionSize - unsafe.Sizeof(Instruction{})]struct{}
)

// InstructionFromRaw convert an assembled x/net/bpf instruction
func InstructionFromRaw(r bpf.RawInstruction) Instruction {
	return Instruction{Opcode: r.Op, JumpTrue: r.Jt, JumpFalse: r.Jf, Operand: r.K}
}

// Raw the instruction as an x/net/bpf RawInstruction
func (i Instruction) Raw() bpf.RawInstruction {
	return bpf.RawInstruction{Op: i.Opcode, Jt: i.JumpTrue, Jf: i.JumpFalse, K: i.Operand}
}

// Disassemble decode the instruction, returning the raw instruction itself if it is not understood
func (i Instruction) Disassemble() bpf.Instruction {
	return i.Raw().Disassemble()
}

func (i Instruction) String() string {
	return fmt.Sprintf("{ 0x%x, %d, %d, 0x%08x }", i.Opcode, i.JumpTrue, i.JumpFalse, i.Operand)
}

// nativeBuffer memory holding the instructions of a program, outside the Go heap
type nativeBuffer interface {
	base() unsafe.Pointer
	release() error
}

// FilterProgram a compiled filter, owning the memory its instructions live in.
// The memory must be given back with Release; nothing frees it implicitly.
// The zero value is an empty program. A FilterProgram is not safe for
// concurrent use.
type FilterProgram struct {
	length   uint32
	mem      nativeBuffer
	released bool
}

// FilterProgramFromInstructions a program holding a copy of the instructions
func FilterProgramFromInstructions(ins []Instruction) (*FilterProgram, error) {
	if len(ins) == 0 {
		return &FilterProgram{}, nil
	}
	mem, err := allocInstructions(ins)
	if err != nil {
		return nil, err
	}
	return &FilterProgram{length: uint32(len(ins)), mem: mem}, nil
}

// AssembleFilterProgram assemble x/net/bpf instructions into a program
func AssembleFilterProgram(ins []bpf.Instruction) (*FilterProgram, error) {
	raw, err := bpf.Assemble(ins)
	if err != nil {
		return nil, fmt.Errorf("unable to assemble filter: %w", err)
	}
	return programFromRaw(raw)
}

func programFromRaw(raw []bpf.RawInstruction) (*FilterProgram, error) {
	ins := make([]Instruction, len(raw))
	for i, r := range raw {
		ins[i] = InstructionFromRaw(r)
	}
	return FilterProgramFromInstructions(ins)
}

// Instructions copy the instructions out of the program. After Release the
// result is empty.
func (p *FilterProgram) Instructions() []Instruction {
	if p.released || p.mem == nil || p.length == 0 {
		return []Instruction{}
	}
	src := unsafe.Slice((*Instruction)(p.mem.base()), p.length)
	out := make([]Instruction, len(src))
	copy(out, src)
	return out
}

// Len number of instructions, 0 after Release
func (p *FilterProgram) Len() int {
	if p.released {
		return 0
	}
	return int(p.length)
}

// Release free the memory holding the instructions. Only the first call does
// anything; later calls return nil.
func (p *FilterProgram) Release() error {
	if p.released {
		return nil
	}
	p.released = true
	if p.mem == nil {
		return nil
	}
	err := p.mem.release()
	p.mem = nil
	logger := log.WithFields(log.Fields{
		"instructions": p.length,
	})
	if err != nil {
		logger.Warnf("unable to release filter program: %v", err)
		return fmt.Errorf("unable to release filter program: %v", err)
	}
	logger.Debug("released filter program")
	return nil
}

// Released if Release has been called
func (p *FilterProgram) Released() bool {
	return p.released
}

// String the program listed one instruction per line, as tcpdump -d does
func (p *FilterProgram) String() string {
	var b strings.Builder
	for i, ins := range p.Instructions() {
		fmt.Fprintf(&b, "(%03d) %v\n", i, ins.Disassemble())
	}
	return b.String()
}

// attachable check the program can be handed to the kernel
func (p *FilterProgram) attachable() error {
	if p.released {
		return ErrReleased
	}
	if p.mem == nil || p.length == 0 {
		return fmt.Errorf("%w: empty filter program", ErrInvalidArgument)
	}
	return nil
}
