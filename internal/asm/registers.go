// Package asm implements the assembly backend: translation of IR
// to allocated abstract instructions, linear-scan register allocation over
// the 48 allocatable registers, caller-save expansion, control-flow
// relocation, iterative label resolution with far-jump rewriting, the
// deduplicated data section, and final bytecode encoding.
package asm

import "strconv"

// Register is one of the target VM's 64 registers: indices 0–15 are the
// constant/reserved set, 16–63 are allocatable.
type Register uint8

const (
	RegZero Register = iota // always 0
	RegOne                  // always 1
	RegInstrStart           // address of the first instruction
	RegStackPtr
	RegFramePtr
	RegHeapPtr
	RegReturnValue
	RegReturnLength
	RegReturnAddr
	RegScratch
	RegDataSection // address of the data section
	RegOverflow
	RegError
	RegGlobalGas
	RegContextGas
	RegFlags

	// FirstAllocatable is the lowest allocator-owned register.
	FirstAllocatable Register = 16
)

// NumAllocatable is how many registers the linear-scan allocator owns.
const NumAllocatable = 48

// NumRegisters is the total register file size.
const NumRegisters = 64

// IsAllocatable reports whether r belongs to the allocator.
func (r Register) IsAllocatable() bool {
	return r >= FirstAllocatable && r < NumRegisters
}

func (r Register) String() string {
	switch r {
	case RegZero:
		return "$zero"
	case RegOne:
		return "$one"
	case RegInstrStart:
		return "$is"
	case RegStackPtr:
		return "$sp"
	case RegFramePtr:
		return "$fp"
	case RegHeapPtr:
		return "$hp"
	case RegReturnValue:
		return "$ret"
	case RegReturnLength:
		return "$retl"
	case RegReturnAddr:
		return "$ra"
	case RegScratch:
		return "$tmp"
	case RegDataSection:
		return "$ds"
	case RegOverflow:
		return "$of"
	case RegError:
		return "$err"
	case RegGlobalGas:
		return "$ggas"
	case RegContextGas:
		return "$cgas"
	case RegFlags:
		return "$flag"
	}
	if r.IsAllocatable() {
		return "$r" + strconv.Itoa(int(r-FirstAllocatable))
	}
	return "$reserved" + strconv.Itoa(int(r))
}

// ArgRegisters is the call convention's pinned argument registers, taken
// from the low end of the allocatable range. Callees copy out of them in
// their prologue; callers fill them immediately before the jump.
var ArgRegisters = [6]Register{
	FirstAllocatable, FirstAllocatable + 1, FirstAllocatable + 2,
	FirstAllocatable + 3, FirstAllocatable + 4, FirstAllocatable + 5,
}
