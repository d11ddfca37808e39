package filter

import (
	"golang.org/x/net/bpf"
)

type sourceKind uint8

const (
	sourceUnknown sourceKind = iota
	sourceAbsolute
	sourceIndirect
	sourceLength
	sourceConstant
)

// source where the value in a register came from. Two loads from the same
// source yield the same value, since the packet does not change while the
// program runs.
type source struct {
	kind sourceKind
	off  uint32
	size int
	// xOff the offset X was computed from, for indirect loads
	xOff uint32
}

// regState what is known about the registers at a point in the program
type regState struct {
	// reached at least one path leads here
	reached bool
	a       source
	eq      uint32
	hasEq   bool
	ne      []uint32
	x       source
}

func (s regState) forgetA() regState {
	s.a, s.hasEq, s.ne = source{}, false, nil
	return s
}

// meet keep only what holds on both paths
func (s regState) meet(o regState) regState {
	if !s.reached {
		return o
	}
	if !o.reached {
		return s
	}
	out := regState{reached: true}
	if s.x == o.x {
		out.x = s.x
	}
	if s.a != o.a || s.a.kind == sourceUnknown {
		return out
	}
	out.a = s.a
	if s.hasEq && o.hasEq && s.eq == o.eq {
		out.eq, out.hasEq = s.eq, true
	}
	for _, v := range s.ne {
		if contains(o.ne, v) {
			out.ne = append(out.ne, v)
		}
	}
	return out
}

func contains(vals []uint32, v uint32) bool {
	for _, val := range vals {
		if val == v {
			return true
		}
	}
	return false
}

// loadSource the source a load instruction reads, or false if it is not a load
// this pass understands
func loadSource(s regState, ins bpf.Instruction) (source, bool) {
	switch ins := ins.(type) {
	case bpf.LoadAbsolute:
		return source{kind: sourceAbsolute, off: ins.Off, size: ins.Size}, true
	case bpf.LoadIndirect:
		if s.x.kind == sourceUnknown {
			return source{}, true
		}
		return source{kind: sourceIndirect, off: ins.Off, size: ins.Size, xOff: s.x.off}, true
	case bpf.LoadExtension:
		if ins.Num == bpf.ExtLen {
			return source{kind: sourceLength}, true
		}
	}
	return source{}, false
}

// redundant whether executing the instruction leaves the registers unchanged
func redundant(s regState, ins bpf.Instruction) bool {
	if msh, ok := ins.(bpf.LoadMemShift); ok {
		return s.x.kind == sourceAbsolute && s.x.off == msh.Off
	}
	src, ok := loadSource(s, ins)
	return ok && src.kind != sourceUnknown && src == s.a
}

// transfer the state after a non-branch instruction
func transfer(s regState, ins bpf.Instruction) regState {
	if redundant(s, ins) {
		return s
	}
	if src, ok := loadSource(s, ins); ok {
		s = s.forgetA()
		s.a = src
		return s
	}
	switch ins := ins.(type) {
	case bpf.LoadMemShift:
		s.x = source{kind: sourceAbsolute, off: ins.Off}
		return s
	case bpf.LoadConstant:
		if ins.Dst == bpf.RegX {
			s.x = source{}
			return s
		}
		s = s.forgetA()
		s.a = source{kind: sourceConstant, off: ins.Val}
		s.eq, s.hasEq = ins.Val, true
		return s
	case bpf.ALUOpConstant, bpf.ALUOpX, bpf.NegateA:
		return s.forgetA()
	}
	s = s.forgetA()
	s.x = source{}
	return s
}

// outcome evaluate a branch when the value in A is known
func outcome(s regState, n node) (taken, known bool) {
	if n.always {
		return true, true
	}
	if s.a.kind == sourceUnknown {
		return false, false
	}
	if s.hasEq {
		switch n.cond {
		case bpf.JumpEqual:
			return s.eq == n.val, true
		case bpf.JumpGreaterThan:
			return s.eq > n.val, true
		case bpf.JumpGreaterOrEqual:
			return s.eq >= n.val, true
		case bpf.JumpBitsSet:
			return s.eq&n.val != 0, true
		}
		return false, false
	}
	if n.cond == bpf.JumpEqual && contains(s.ne, n.val) {
		return false, true
	}
	return false, false
}

// edge the state along one edge of a branch
func edge(s regState, n node, taken bool) regState {
	if n.always || n.cond != bpf.JumpEqual || s.a.kind == sourceUnknown {
		return s
	}
	if taken {
		s.eq, s.hasEq, s.ne = n.val, true, nil
		return s
	}
	if !s.hasEq && !contains(s.ne, n.val) {
		s.ne = append(append([]uint32(nil), s.ne...), n.val)
	}
	return s
}

// thread follow an edge past instructions whose effect or outcome is already
// known in the state, returning the first target that still has work to do
func thread(prog []node, s regState, target int) (int, regState) {
	for steps := 0; steps < len(prog); steps++ {
		n := prog[target]
		if !n.branch {
			if !isReturn(n.ins) && redundant(s, n.ins) {
				target++
				continue
			}
			return target, s
		}
		taken, known := outcome(s, n)
		if !known {
			return target, s
		}
		s = edge(s, n, taken)
		if taken {
			target = n.jt
		} else {
			target = n.jf
		}
	}
	return target, s
}

// optimize thread jumps and remove redundant loads until nothing changes
func optimize(nodes []node) []node {
	prog := make([]node, len(nodes))
	copy(prog, nodes)
	for pass := 0; pass < maxOptimizePasses; pass++ {
		threaded := threadJumps(prog)
		var compacted bool
		prog, compacted = compact(prog)
		if !threaded && !compacted {
			break
		}
	}
	return prog
}

// threadJumps one forward pass over the program. Jumps only go forward, so
// every predecessor of an instruction is visited before it.
func threadJumps(prog []node) bool {
	var (
		changed bool
		states  = make([]regState, len(prog))
	)
	propagate := func(target int, s regState) {
		states[target] = states[target].meet(s)
	}
	states[0] = regState{reached: true}
	for i := range prog {
		s := states[i]
		if !s.reached {
			continue
		}
		n := &prog[i]
		if !n.branch {
			if isReturn(n.ins) {
				continue
			}
			if redundant(s, n.ins) {
				// becomes a jump to the next instruction, removed by compact
				*n = node{branch: true, always: true, jt: i + 1}
				changed = true
				propagate(i+1, s)
				continue
			}
			propagate(i+1, transfer(s, n.ins))
			continue
		}
		if !n.always {
			if taken, known := outcome(s, *n); known {
				target := n.jf
				if taken {
					target = n.jt
				}
				*n = node{branch: true, always: true, jt: target}
				changed = true
			}
		}
		if n.always {
			target, ts := thread(prog, s, n.jt)
			if target != n.jt {
				n.jt = target
				changed = true
			}
			propagate(n.jt, ts)
			continue
		}
		jt, ts := thread(prog, edge(s, *n, true), n.jt)
		jf, fs := thread(prog, edge(s, *n, false), n.jf)
		if jt != n.jt || jf != n.jf {
			n.jt, n.jf = jt, jf
			changed = true
		}
		if n.jt == n.jf {
			*n = node{branch: true, always: true, jt: n.jt}
			changed = true
			propagate(n.jt, ts.meet(fs))
			continue
		}
		propagate(n.jt, ts)
		propagate(n.jf, fs)
	}
	return changed
}

// compact drop unreachable instructions and jumps to the next instruction,
// renumbering jump targets
func compact(prog []node) ([]node, bool) {
	reach := make([]bool, len(prog))
	var walk func(i int)
	walk = func(i int) {
		for i < len(prog) && !reach[i] {
			reach[i] = true
			n := prog[i]
			switch {
			case !n.branch && isReturn(n.ins):
				return
			case !n.branch:
				i++
			case n.always:
				i = n.jt
			default:
				walk(n.jf)
				i = n.jt
			}
		}
	}
	walk(0)

	keep := make([]bool, len(prog))
	removed := false
	for i, n := range prog {
		keep[i] = reach[i] && !(n.branch && n.always && n.jt == i+1)
		if !keep[i] {
			removed = true
		}
	}
	if !removed {
		return prog, false
	}
	// position of the first kept instruction at or after each index
	position := make([]int, len(prog)+1)
	kept := 0
	for i := range prog {
		if keep[i] {
			kept++
		}
	}
	position[len(prog)] = kept
	for i := len(prog) - 1; i >= 0; i-- {
		if keep[i] {
			kept--
		}
		position[i] = kept
	}
	out := make([]node, 0, position[len(prog)])
	for i, n := range prog {
		if !keep[i] {
			continue
		}
		if n.branch {
			n.jt = position[n.jt]
			if !n.always {
				n.jf = position[n.jf]
			}
		}
		out = append(out, n)
	}
	return out, true
}
