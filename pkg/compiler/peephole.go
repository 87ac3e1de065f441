package compiler

import "github.com/nebula-lang/nebula/pkg/bytecode"

// OptimizeLevel selects how aggressive the post-compile peephole pass
// is. Level 0 leaves the BCO untouched; level 1 and above apply every
// fusion this package knows.
type OptimizeLevel int

const (
	OptimizeOff OptimizeLevel = iota
	OptimizeDefault
)

// Optimize runs the peephole optimizer over an
// already-relocated BCO, folding:
//
//   - `push local n; unary op`            -> fused-unary(op, n)
//   - `push local n; binary op`           -> fused-binary(op, n), the left
//     operand stays wherever the preceding code left it on the stack
//   - `binary cmp; jump iffalse|popalways` -> fused-compare(cmp, target)
//   - `binary cmp; jump iftrue|popalways`  -> fused-compare2(cmp, target)
//   - `push local n; uinc|udec; store local n; pop` -> inplace-unary(op, n)
//
// Every fusion only fires against ScopeLocal pushes: that is the one
// scope a fused instruction's Arg can reinterpret unambiguously, since
// the fused form has nowhere left to also record the original push's
// scope. A jump landing on any instruction absorbed into a fused group
// is retargeted to the fused instruction itself.
func Optimize(b *bytecode.BCO, level OptimizeLevel) {
	if level == OptimizeOff {
		return
	}

	old := b.Code
	newCode := make([]bytecode.Instruction, 0, len(old))
	remap := make([]int, len(old)+1)

	i := 0
	for i < len(old) {
		if group, inst, ok := matchInplaceUnary(old, i); ok {
			pos := len(newCode)
			newCode = append(newCode, inst)
			for _, oldIdx := range group {
				remap[oldIdx] = pos
			}
			i += len(group)
			continue
		}
		if group, inst, ok := matchFusedCompare(old, i); ok {
			pos := len(newCode)
			newCode = append(newCode, inst)
			for _, oldIdx := range group {
				remap[oldIdx] = pos
			}
			i += len(group)
			continue
		}
		if group, inst, ok := matchFusedBinary(old, i); ok {
			pos := len(newCode)
			newCode = append(newCode, inst)
			for _, oldIdx := range group {
				remap[oldIdx] = pos
			}
			i += len(group)
			continue
		}
		if group, inst, ok := matchFusedUnary(old, i); ok {
			pos := len(newCode)
			newCode = append(newCode, inst)
			for _, oldIdx := range group {
				remap[oldIdx] = pos
			}
			i += len(group)
			continue
		}

		remap[i] = len(newCode)
		newCode = append(newCode, old[i])
		i++
	}
	remap[len(old)] = len(newCode)

	for idx := range newCode {
		inst := &newCode[idx]
		switch inst.Op {
		case bytecode.OpJump, bytecode.OpFusedCompare, bytecode.OpFusedCompare2:
			inst.Arg = uint16(remap[int(inst.Arg)])
		}
	}

	for i := range b.Lines {
		b.Lines[i].InstructionIndex = remap[b.Lines[i].InstructionIndex]
	}

	b.Code = newCode
}

func isPushLocal(in bytecode.Instruction) bool {
	return in.Op == bytecode.OpPush && bytecode.Scope(in.Minor) == bytecode.ScopeLocal
}

func isStoreLocal(in bytecode.Instruction, slot uint16) bool {
	return in.Op == bytecode.OpStore && bytecode.Scope(in.Minor) == bytecode.ScopeLocal && in.Arg == slot
}

func isPop(in bytecode.Instruction) bool {
	return in.Op == bytecode.OpPop
}

func isIncDec(in bytecode.Instruction) bool {
	return in.Op == bytecode.OpUnary && (bytecode.UnOp(in.Minor) == bytecode.UnIncrement || bytecode.UnOp(in.Minor) == bytecode.UnDecrement)
}

// matchInplaceUnary recognizes `push local n; uinc|udec; store local n; pop`.
func matchInplaceUnary(code []bytecode.Instruction, i int) ([]int, bytecode.Instruction, bool) {
	if i+3 >= len(code) {
		return nil, bytecode.Instruction{}, false
	}
	push, unary, store, pop := code[i], code[i+1], code[i+2], code[i+3]
	if !isPushLocal(push) || !isIncDec(unary) || !isStoreLocal(store, push.Arg) || !isPop(pop) {
		return nil, bytecode.Instruction{}, false
	}
	return []int{i, i + 1, i + 2, i + 3}, bytecode.Instruction{Op: bytecode.OpInplaceUnary, Minor: unary.Minor, Arg: push.Arg}, true
}

func isComparisonBinOp(op bytecode.BinOp) bool {
	switch op {
	case bytecode.BinEq, bytecode.BinEqNC, bytecode.BinNe, bytecode.BinNeNC,
		bytecode.BinLt, bytecode.BinLtNC, bytecode.BinLe, bytecode.BinLeNC,
		bytecode.BinGt, bytecode.BinGtNC, bytecode.BinGe, bytecode.BinGeNC:
		return true
	}
	return false
}

// matchFusedCompare recognizes `binary cmp; jump iffalse|popalways` and
// `binary cmp; jump iftrue|popalways`.
func matchFusedCompare(code []bytecode.Instruction, i int) ([]int, bytecode.Instruction, bool) {
	if i+1 >= len(code) {
		return nil, bytecode.Instruction{}, false
	}
	cmp, jmp := code[i], code[i+1]
	if cmp.Op != bytecode.OpBinary || !isComparisonBinOp(bytecode.BinOp(cmp.Minor)) {
		return nil, bytecode.Instruction{}, false
	}
	if jmp.Op != bytecode.OpJump {
		return nil, bytecode.Instruction{}, false
	}
	cond := bytecode.JumpCondition(jmp.Minor)
	switch cond {
	case bytecode.JumpIfFalse | bytecode.JumpPopAlways:
		return []int{i, i + 1}, bytecode.Instruction{Op: bytecode.OpFusedCompare, Minor: cmp.Minor, Arg: jmp.Arg}, true
	case bytecode.JumpIfTrue | bytecode.JumpPopAlways:
		return []int{i, i + 1}, bytecode.Instruction{Op: bytecode.OpFusedCompare2, Minor: cmp.Minor, Arg: jmp.Arg}, true
	}
	return nil, bytecode.Instruction{}, false
}

// matchFusedBinary recognizes `push local n; binary op`: the left
// operand was already pushed by earlier code and is untouched.
func matchFusedBinary(code []bytecode.Instruction, i int) ([]int, bytecode.Instruction, bool) {
	if i+1 >= len(code) {
		return nil, bytecode.Instruction{}, false
	}
	push, bin := code[i], code[i+1]
	if !isPushLocal(push) || bin.Op != bytecode.OpBinary {
		return nil, bytecode.Instruction{}, false
	}
	return []int{i, i + 1}, bytecode.Instruction{Op: bytecode.OpFusedBinary, Minor: bin.Minor, Arg: push.Arg}, true
}

// matchFusedUnary recognizes `push local n; unary op`.
func matchFusedUnary(code []bytecode.Instruction, i int) ([]int, bytecode.Instruction, bool) {
	if i+1 >= len(code) {
		return nil, bytecode.Instruction{}, false
	}
	push, un := code[i], code[i+1]
	if !isPushLocal(push) || un.Op != bytecode.OpUnary {
		return nil, bytecode.Instruction{}, false
	}
	return []int{i, i + 1}, bytecode.Instruction{Op: bytecode.OpFusedUnary, Minor: un.Minor, Arg: push.Arg}, true
}
