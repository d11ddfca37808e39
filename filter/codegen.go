package filter

import (
	"fmt"

	"golang.org/x/net/bpf"
)

// label a symbolic jump target, bound to an instruction index once the code
// following it has been emitted. All jumps in classic BPF go forward, so every
// label is marked after the branches that refer to it.
type label int

// op a single step of generated code. Branches carry labels instead of skips.
type op struct {
	ins    bpf.Instruction
	branch bool
	always bool
	cond   bpf.JumpTest
	val    uint32
	jt, jf label
}

// node an instruction with its jump targets resolved to absolute indexes
type node struct {
	ins    bpf.Instruction
	branch bool
	always bool
	cond   bpf.JumpTest
	val    uint32
	jt, jf int
}

type generator struct {
	link    linkLayer
	netmask uint32
	ops     []op
	labels  []int
}

func newGenerator(linkType, netmask uint32) (*generator, error) {
	link, err := newLinkLayer(linkType)
	if err != nil {
		return nil, err
	}
	return &generator{link: link, netmask: netmask}, nil
}

func (g *generator) newLabel() label {
	g.labels = append(g.labels, -1)
	return label(len(g.labels) - 1)
}

// mark bind the label to the next instruction to be emitted
func (g *generator) mark(l label) {
	g.labels[l] = len(g.ops)
}

func (g *generator) emit(ins bpf.Instruction) {
	g.ops = append(g.ops, op{ins: ins})
}

func (g *generator) jump(l label) {
	g.ops = append(g.ops, op{branch: true, always: true, jt: l})
}

func (g *generator) test(cond bpf.JumpTest, val uint32, t, f label) {
	g.ops = append(g.ops, op{branch: true, cond: cond, val: val, jt: t, jf: f})
}

func (g *generator) jeq(val uint32, t, f label) {
	g.test(bpf.JumpEqual, val, t, f)
}

// anyOf emit n alternatives, each falling through to the next on failure
func (g *generator) anyOf(n int, emit func(i int, t, f label) error, t, f label) error {
	for i := 0; i < n; i++ {
		if i == n-1 {
			return emit(i, t, f)
		}
		next := g.newLabel()
		if err := emit(i, t, next); err != nil {
			return err
		}
		g.mark(next)
	}
	g.jump(f)
	return nil
}

// direction combine a source and a destination test the way the qualifier asks
func (g *generator) direction(d filterDirection, src, dst func(t, f label) error, t, f label) error {
	switch d {
	case filterDirectionSrc:
		return src(t, f)
	case filterDirectionDst:
		return dst(t, f)
	case filterDirectionSrcAndDst:
		mid := g.newLabel()
		if err := src(mid, f); err != nil {
			return err
		}
		g.mark(mid)
		return dst(t, f)
	case filterDirectionSrcOrDst, filterDirectionUnset:
		mid := g.newLabel()
		if err := src(t, mid); err != nil {
			return err
		}
		g.mark(mid)
		return dst(t, f)
	default:
		return fmt.Errorf("%w: 802.11 address qualifiers", ErrUnsupported)
	}
}

// resolve replace labels with absolute instruction indexes
func (g *generator) resolve() ([]node, error) {
	nodes := make([]node, len(g.ops))
	for i, o := range g.ops {
		n := node{ins: o.ins, branch: o.branch, always: o.always, cond: o.cond, val: o.val}
		if o.branch {
			n.jt = g.labels[o.jt]
			if !o.always {
				n.jf = g.labels[o.jf]
			}
			if n.jt <= i || (!o.always && n.jf <= i) {
				return nil, fmt.Errorf("internal error: unresolved or backward jump at instruction %d", i)
			}
		}
		nodes[i] = n
	}
	return nodes, nil
}

// assemble convert resolved nodes to instructions with relative skips
func assemble(nodes []node) ([]bpf.Instruction, error) {
	inst := make([]bpf.Instruction, 0, len(nodes))
	for i, n := range nodes {
		if !n.branch {
			inst = append(inst, n.ins)
			continue
		}
		if n.always {
			inst = append(inst, bpf.Jump{Skip: uint32(n.jt - i - 1)})
			continue
		}
		st, sf := n.jt-i-1, n.jf-i-1
		if st > maxConditionalSkip || sf > maxConditionalSkip {
			return nil, fmt.Errorf("%w: jump of %d instructions at %d", ErrTooLong, max(st, sf), i)
		}
		inst = append(inst, bpf.JumpIf{Cond: n.cond, Val: n.val, SkipTrue: uint8(st), SkipFalse: uint8(sf)})
	}
	return inst, nil
}

func isReturn(ins bpf.Instruction) bool {
	switch ins.(type) {
	case bpf.RetConstant, bpf.RetA:
		return true
	}
	return false
}
