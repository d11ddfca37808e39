package pcap

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"
)

func compileEthernet(t *testing.T, expr string) *FilterProgram {
	t.Helper()
	p, err := Compile(expr, WithDatalink(LinkTypeName("EN10MB")), WithSnapLength(65535), WithOptimize(true), WithNetmask(0))
	require.NoError(t, err)
	return p
}

func TestInstructionLayout(t *testing.T) {
	ins := Instruction{Opcode: 0x15, JumpTrue: 1, JumpFalse: 2, Operand: 0x800}
	raw := ins.Raw()
	require.Equal(t, bpf.RawInstruction{Op: 0x15, Jt: 1, Jf: 2, K: 0x800}, raw)
	require.Equal(t, ins, InstructionFromRaw(raw))
	require.Equal(t, "{ 0x15, 1, 2, 0x00000800 }", ins.String())
	require.Equal(t, bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x800, SkipTrue: 1, SkipFalse: 2}, ins.Disassemble())
}

func TestCompileTCP(t *testing.T) {
	enableLogs()
	p := compileEthernet(t, "tcp")
	defer p.Release()

	ins := p.Instructions()
	require.NotEmpty(t, ins)
	require.Equal(t, len(ins), p.Len())
	require.False(t, p.Released())

	// every call yields a fresh copy of the same sequence
	again := p.Instructions()
	require.Equal(t, ins, again)
	again[0].Operand++
	require.Equal(t, ins, p.Instructions())

	// the last instruction returns
	last := ins[len(ins)-1].Disassemble()
	_, isRet := last.(bpf.RetConstant)
	require.True(t, isRet, "last instruction %v", last)
}

func TestCompileDefaults(t *testing.T) {
	// NULL link type: 4 byte family header, then IP
	p, err := Compile("ip")
	require.NoError(t, err)
	defer p.Release()

	m, err := NewMatcher(p)
	require.NoError(t, err)
	ip := []byte{2, 0, 0, 0, 0x45, 0, 0, 20, 0, 0, 0, 0, 64, 6, 0, 0, 10, 0, 0, 1, 10, 0, 0, 2}
	n, err := m.Run(ip)
	require.NoError(t, err)
	require.Positive(t, n)
}

func TestCompileEmptyExpression(t *testing.T) {
	p, err := Compile("", WithLinkType(newLinkType(DLTEN10MB)), WithSnapLength(1500))
	require.NoError(t, err)
	defer p.Release()
	require.Equal(t, []Instruction{{Opcode: 0x6, Operand: 1500}}, p.Instructions())
}

func TestCompileOptimize(t *testing.T) {
	plain, err := Compile("ip or ip6", WithDatalink(LinkTypeValue(DLTEN10MB)), WithOptimize(false))
	require.NoError(t, err)
	defer plain.Release()
	optimized := compileEthernet(t, "ip or ip6")
	defer optimized.Release()
	require.Less(t, optimized.Len(), plain.Len())
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile("tcp and", WithDatalink(LinkTypeName("EN10MB")))
	require.ErrorIs(t, err, ErrCompile)
	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, "tcp and", cerr.Expr)
	require.Contains(t, err.Error(), `"tcp and"`)

	_, err = Compile("tcp", WithDatalink(LinkTypeName("not_a_real_dlt_name")))
	require.ErrorIs(t, err, ErrUnsupportedLinkType)
	require.False(t, errors.Is(err, ErrCompile))

	_, err = Compile("tcp", WithDatalink(LinkTypeRef{}))
	require.ErrorIs(t, err, ErrUnsupportedLinkType)
}

func TestCompileErrorMessage(t *testing.T) {
	err := &CompileError{Expr: "bogus"}
	require.Equal(t, `unable to compile filter "bogus": unspecified error`, err.Error())
	require.Nil(t, err.Unwrap())
}

func TestReleaseIdempotent(t *testing.T) {
	p := compileEthernet(t, "tcp")
	require.NoError(t, p.Release())
	require.True(t, p.Released())
	require.NoError(t, p.Release())
	require.True(t, p.Released())

	require.Empty(t, p.Instructions())
	require.Equal(t, 0, p.Len())
	require.Empty(t, p.String())

	_, err := NewMatcher(p)
	require.ErrorIs(t, err, ErrReleased)
}

func TestEmptyProgram(t *testing.T) {
	var zero FilterProgram
	require.Empty(t, zero.Instructions())
	require.NoError(t, zero.Release())
	require.True(t, zero.Released())

	p, err := FilterProgramFromInstructions(nil)
	require.NoError(t, err)
	require.Equal(t, 0, p.Len())
	require.ErrorIs(t, p.attachable(), ErrInvalidArgument)
	require.NoError(t, p.Release())
	require.ErrorIs(t, p.attachable(), ErrReleased)
}

func TestFilterProgramFromInstructions(t *testing.T) {
	ins := []Instruction{
		{Opcode: 0x28, Operand: 12},
		{Opcode: 0x15, JumpFalse: 1, Operand: 0x806},
		{Opcode: 0x6, Operand: 0xffff},
		{Opcode: 0x6},
	}
	p, err := FilterProgramFromInstructions(ins)
	require.NoError(t, err)
	defer p.Release()

	// the program keeps its own copy
	ins[0].Operand = 99
	got := p.Instructions()
	require.Equal(t, uint32(12), got[0].Operand)
	require.Len(t, got, 4)
}

func TestAssembleFilterProgram(t *testing.T) {
	p, err := AssembleFilterProgram([]bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x806, SkipFalse: 1},
		bpf.RetConstant{Val: 0xffff},
		bpf.RetConstant{Val: 0},
	})
	require.NoError(t, err)
	defer p.Release()
	require.Equal(t, 4, p.Len())

	lines := strings.Split(strings.TrimSuffix(p.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	require.True(t, strings.HasPrefix(lines[0], "(000) "), lines[0])
	require.True(t, strings.HasPrefix(lines[3], "(003) "), lines[3])

	_, err = AssembleFilterProgram([]bpf.Instruction{bpf.LoadAbsolute{Off: 0, Size: 3}})
	require.Error(t, err)
}
