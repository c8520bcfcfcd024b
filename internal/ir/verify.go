package ir

import "fmt"

// Verify checks the structural invariants every function must satisfy
// after lowering and after every transform: exactly one terminator at the
// end of each block, no terminator in the middle, and every operand's
// definition dominating its use (block arguments excepted by
// construction). Violations are compiler bugs, reported as internal
// errors by the caller.
func Verify(f *Function) error {
	dom := ComputeDominators(f)

	defPos := map[*Value]int{}
	defBlk := map[*Value]*Block{}
	for _, blk := range f.Blocks {
		for _, arg := range blk.Args {
			defBlk[arg] = blk
			defPos[arg] = -1 // args precede every instruction of their block
		}
		for i, ins := range blk.Instrs {
			defBlk[ins] = blk
			defPos[ins] = i
		}
	}

	for _, blk := range f.Blocks {
		t := blk.Terminator()
		if t == nil {
			return fmt.Errorf("block %s does not end with a terminator", blk.Label)
		}
		for i, ins := range blk.Instrs {
			if ins.IsTerminator() && i != len(blk.Instrs)-1 {
				return fmt.Errorf("block %s has a terminator before its end", blk.Label)
			}
			for _, o := range allOperands(ins) {
				db, known := defBlk[o]
				if !known {
					return fmt.Errorf("block %s uses a value defined outside the function", blk.Label)
				}
				if db == blk {
					if defPos[o] >= i {
						return fmt.Errorf("value %%%d used before its definition in block %s", o.ID, blk.Label)
					}
					continue
				}
				if dom.Reachable(blk) && !dom.Dominates(db, blk) {
					return fmt.Errorf("definition of %%%d does not dominate its use in block %s", o.ID, blk.Label)
				}
			}
		}
	}
	return nil
}

func allOperands(ins *Value) []*Value {
	if ins.TargetArgs == nil && ins.TrueArgs == nil && ins.FalseArgs == nil {
		return ins.Operands
	}
	out := append([]*Value{}, ins.Operands...)
	out = append(out, ins.TargetArgs...)
	out = append(out, ins.TrueArgs...)
	out = append(out, ins.FalseArgs...)
	return out
}
