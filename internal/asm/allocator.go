package asm

import (
	"fmt"
	"sort"
)

// VReg is a virtual register id handed out during instruction selection
// and mapped onto the allocatable register file by the linear-scan
// allocator.
type VReg int

// NoVReg marks an unused virtual slot; the corresponding concrete field of
// the template op (a constant or pinned register) is used as written.
const NoVReg VReg = -1

// VOp is one abstract op before allocation: a template Op whose register
// fields are overridden by virtual ids where A/B/C are set.
type VOp struct {
	Op      Op
	A, B, C VReg
}

// RegisterPressureError is the backend error for a live set the register
// file cannot hold.
type RegisterPressureError struct {
	Live int
}

func (e *RegisterPressureError) Error() string {
	return fmt.Sprintf("register allocation failed: %d values live at once, %d registers allocatable", e.Live, NumAllocatable)
}

// AllocateRegisters runs linear scan over the flat op sequence: each
// virtual register's live interval spans from its first to its last
// appearance (which subsumes loop back-edges, since the move feeding a
// back-edge argument appears after the argument's uses in flat order).
// The pinned argument registers stay out of the general pool — they carry
// the call convention and are written outside the allocator's control.
func AllocateRegisters(vops []VOp) ([]Op, error) {
	type interval struct {
		vreg       VReg
		start, end int
	}
	seen := map[VReg]*interval{}
	var order []*interval
	note := func(v VReg, idx int) {
		if v == NoVReg {
			return
		}
		iv := seen[v]
		if iv == nil {
			iv = &interval{vreg: v, start: idx, end: idx}
			seen[v] = iv
			order = append(order, iv)
			return
		}
		if idx > iv.end {
			iv.end = idx
		}
	}
	for i, vop := range vops {
		note(vop.A, i)
		note(vop.B, i)
		note(vop.C, i)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].start < order[j].start })

	pinned := map[Register]bool{}
	for _, r := range ArgRegisters {
		pinned[r] = true
	}
	var pool []Register
	for r := FirstAllocatable; r < NumRegisters; r++ {
		if !pinned[r] {
			pool = append(pool, r)
		}
	}

	assigned := map[VReg]Register{}
	free := append([]Register{}, pool...)
	type activeEntry struct {
		end int
		reg Register
	}
	var active []activeEntry

	for _, iv := range order {
		// Expire intervals that ended before this one starts.
		kept := active[:0]
		for _, a := range active {
			if a.end >= iv.start {
				kept = append(kept, a)
			} else {
				free = append(free, a.reg)
			}
		}
		active = kept

		if len(free) == 0 {
			return nil, &RegisterPressureError{Live: len(active) + len(ArgRegisters)}
		}
		reg := free[0]
		free = free[1:]
		assigned[iv.vreg] = reg
		active = append(active, activeEntry{end: iv.end, reg: reg})
	}

	out := make([]Op, len(vops))
	for i, vop := range vops {
		op := vop.Op
		if op.Real != nil {
			real := *op.Real
			if vop.A != NoVReg {
				real.RegA = assigned[vop.A]
			}
			if vop.B != NoVReg {
				real.RegB = assigned[vop.B]
			}
			if vop.C != NoVReg {
				real.RegC = assigned[vop.C]
			}
			op.Real = &real
		} else if op.Ctrl != nil {
			ctrl := *op.Ctrl
			if vop.A != NoVReg {
				ctrl.RegA = assigned[vop.A]
			}
			if vop.B != NoVReg {
				ctrl.RegB = assigned[vop.B]
			}
			op.Ctrl = &ctrl
		}
		out[i] = op
	}
	return out, nil
}
