package regvm

import "fmt"

// simulator tracks the operand-stack level at translation time so the
// lowering pass can materialize register operands (spec.md 4.E). It is
// reinitialized to nlocals for a fresh conversion and threaded through
// every source block in block-number order, since later blocks' entry
// levels were recorded by earlier blocks' conditional jumps.
type simulator struct {
	level, nlocals, max int
}

func newSimulator(nlocals, max int) *simulator {
	return &simulator{level: nlocals, nlocals: nlocals, max: max}
}

// push increments the stack level and returns the newly writable slot.
func (s *simulator) push() (int, error) {
	s.level++
	if s.level > s.max {
		return 0, &StackSizeError{Level: s.level, Bound: s.max, Detail: "overran the allocated register file"}
	}
	return s.level - 1, nil
}

// pop decrements the stack level and returns the slot that was on top.
func (s *simulator) pop() (int, error) {
	s.level--
	if s.level < s.nlocals {
		return 0, &StackSizeError{Level: s.level, Bound: s.nlocals, Detail: "stack slammed into locals"}
	}
	return s.level, nil
}

// peek returns the n'th readable slot without mutating the level.
func (s *simulator) peek(n int) (int, error) {
	if s.level-n < s.nlocals {
		return 0, &StackSizeError{Level: s.level - n, Bound: s.nlocals, Detail: "peek read past bottom of locals"}
	}
	return s.level - n, nil
}

func (s *simulator) top() int { return s.level }

// lowerBlocks runs the stack-to-register lowering over every source
// block, in block-number order, producing the parallel register block
// list. Register block k always shares block number k with source block
// k (spec.md 3 invariant 4).
func (c *Converter) lowerBlocks(sourceBlocks []*Block) ([]*Block, error) {
	regBlocks := make([]*Block, len(sourceBlocks))
	for _, sb := range sourceBlocks {
		regBlocks[sb.Number] = NewBlock(RegisterVM, sb.Number)
	}

	sim := newSimulator(c.unit.NLocals, c.unit.MaxStackLevel())
	for _, sb := range sourceBlocks {
		rb := regBlocks[sb.Number]
		if err := c.lowerOneBlock(sim, sb, rb, regBlocks); err != nil {
			return nil, err
		}
	}
	return regBlocks, nil
}

// lowerOneBlock dispatches every instruction in sb into rb. A missing
// dispatch entry is fatal; an unreachable-tail StackSizeError from the
// LOAD_* family stops lowering the remainder of this block only.
func (c *Converter) lowerOneBlock(sim *simulator, sb, rb *Block, regBlocks []*Block) error {
	for i := 0; i < sb.Len(); i++ {
		instr := sb.At(i)
		op, line := sourceOp(instr)
		name, ok := c.table.Opname(op)
		if !ok {
			return wrapFatal(fmt.Errorf("%w: opcode %d has no mnemonic", ErrUnhandledOpcode, op))
		}

		reg, stop, err := c.dispatch(sim, name, instr, rb, regBlocks)
		if err != nil {
			var sse *StackSizeError
			if isStackSizeError(err) && isLoadFamily(name) {
				// Unreachable tail (spec.md 4.E, 7): stop translating the
				// rest of this block, emission still succeeds.
				_ = sse
				return nil
			}
			return wrapFatal(err)
		}
		if stop {
			return nil
		}
		if reg != nil {
			reg.setLine(line)
			rb.Append(reg)
		}
		c.observeOK(op)
	}
	return nil
}

func sourceOp(instr Instruction) (Opcode, int) {
	switch v := instr.(type) {
	case *RawSource:
		return v.Op, v.Line
	case *Jump:
		return v.Op, v.Line
	default:
		return 0, 0
	}
}

func isStackSizeError(err error) bool {
	_, ok := err.(*StackSizeError)
	return ok
}

func isLoadFamily(name string) bool {
	switch name {
	case "LOAD_FAST", "LOAD_CONST", "LOAD_GLOBAL":
		return true
	}
	return false
}

// lineSetter lets lowering stamp a just-built register instruction with
// its source line number without a type switch at every call site.
type lineSetter interface {
	setLine(int)
}

func (i *UnaryOpReg) setLine(l int)     { i.Line = l }
func (i *BinOpReg) setLine(l int)       { i.Line = l }
func (i *CompareOpReg) setLine(l int)   { i.Line = l }
func (i *LoadFastReg) setLine(l int)    { i.Line = l }
func (i *LoadConstReg) setLine(l int)   { i.Line = l }
func (i *LoadGlobalReg) setLine(l int)  { i.Line = l }
func (i *StoreFastReg) setLine(l int)   { i.Line = l }
func (i *StoreGlobalReg) setLine(l int) { i.Line = l }
func (i *BuildSeqReg) setLine(l int)    { i.Line = l }
func (i *ExtendSeqReg) setLine(l int)   { i.Line = l }
func (i *CallReg) setLine(l int)        { i.Line = l }
func (i *CallKwReg) setLine(l int)      { i.Line = l }
func (i *JumpAbsReg) setLine(l int)     { i.Line = l }
func (i *JumpIfReg) setLine(l int)      { i.Line = l }
func (i *ReturnReg) setLine(l int)      { i.Line = l }

// dispatch classifies a single source instruction's mnemonic into one of
// the families in spec.md 4.E's table and emits the corresponding
// register instruction. Returning (nil, false, nil) means "no
// instruction to emit" (never happens except via the unreachable-tail
// path, which returns an error instead); returning (nil, true, nil) is
// unused today but keeps the signature uniform with future terminal
// families.
func (c *Converter) dispatch(sim *simulator, name string, instr Instruction, rb *Block, regBlocks []*Block) (lineSetter, bool, error) {
	switch name {
	case "UNARY_INVERT", "UNARY_POSITIVE", "UNARY_NEGATIVE", "UNARY_NOT":
		src, err := sim.pop()
		if err != nil {
			return nil, false, err
		}
		dst, err := sim.push()
		if err != nil {
			return nil, false, err
		}
		return &UnaryOpReg{Dest: dst, Source1: src, SrcOp: mustOp(instr), extArg: c.table.ExtendedArg()}, false, nil

	case "BINARY_POWER", "BINARY_MULTIPLY", "BINARY_MATRIX_MULTIPLY",
		"BINARY_TRUE_DIVIDE", "BINARY_FLOOR_DIVIDE", "BINARY_MODULO",
		"BINARY_ADD", "BINARY_SUBTRACT", "BINARY_LSHIFT", "BINARY_RSHIFT",
		"BINARY_AND", "BINARY_XOR", "BINARY_OR", "BINARY_SUBSCR",
		"INPLACE_POWER", "INPLACE_MULTIPLY", "INPLACE_MATRIX_MULTIPLY",
		"INPLACE_TRUE_DIVIDE", "INPLACE_FLOOR_DIVIDE", "INPLACE_MODULO",
		"INPLACE_ADD", "INPLACE_SUBTRACT", "INPLACE_LSHIFT", "INPLACE_RSHIFT",
		"INPLACE_AND", "INPLACE_XOR", "INPLACE_OR":
		src2, err := sim.pop()
		if err != nil {
			return nil, false, err
		}
		src1, err := sim.pop()
		if err != nil {
			return nil, false, err
		}
		dst, err := sim.push()
		if err != nil {
			return nil, false, err
		}
		return &BinOpReg{Dest: dst, Source1: src1, Source2: src2, SrcOp: mustOp(instr), extArg: c.table.ExtendedArg()}, false, nil

	case "COMPARE_OP":
		cmpop := mustOparg(instr)
		src2, err := sim.pop()
		if err != nil {
			return nil, false, err
		}
		src1, err := sim.pop()
		if err != nil {
			return nil, false, err
		}
		dst, err := sim.push()
		if err != nil {
			return nil, false, err
		}
		return &CompareOpReg{Dest: dst, Source1: src1, Source2: src2, CompareOp: cmpop, extArg: c.table.ExtendedArg()}, false, nil

	case "LOAD_FAST":
		dst, err := sim.push()
		if err != nil {
			return nil, false, err
		}
		return &LoadFastReg{Dest: dst, Source1: mustOparg(instr), extArg: c.table.ExtendedArg()}, false, nil

	case "LOAD_CONST":
		dst, err := sim.push()
		if err != nil {
			return nil, false, err
		}
		return &LoadConstReg{Dest: dst, Name1: mustOparg(instr), extArg: c.table.ExtendedArg()}, false, nil

	case "LOAD_GLOBAL":
		dst, err := sim.push()
		if err != nil {
			return nil, false, err
		}
		return &LoadGlobalReg{Dest: dst, Name1: mustOparg(instr), extArg: c.table.ExtendedArg()}, false, nil

	case "STORE_FAST":
		src, err := sim.pop()
		if err != nil {
			return nil, false, err
		}
		return &StoreFastReg{Dest: mustOparg(instr), Source1: src, extArg: c.table.ExtendedArg()}, false, nil

	case "STORE_GLOBAL":
		src, err := sim.pop()
		if err != nil {
			return nil, false, err
		}
		return &StoreGlobalReg{Name1: mustOparg(instr), Source1: src, extArg: c.table.ExtendedArg()}, false, nil

	case "BUILD_LIST", "BUILD_TUPLE":
		n := mustOparg(instr)
		for k := 0; k < n; k++ {
			if _, err := sim.pop(); err != nil {
				return nil, false, err
			}
		}
		dst, err := sim.push()
		if err != nil {
			return nil, false, err
		}
		return &BuildSeqReg{Dest: dst, Length: n, SrcOp: mustOp(instr), extArg: c.table.ExtendedArg()}, false, nil

	case "BUILD_MAP":
		n := mustOparg(instr)
		for k := 0; k < 2*n; k++ {
			if _, err := sim.pop(); err != nil {
				return nil, false, err
			}
		}
		dst, err := sim.push()
		if err != nil {
			return nil, false, err
		}
		return &BuildSeqReg{Dest: dst, Length: n, SrcOp: mustOp(instr), extArg: c.table.ExtendedArg()}, false, nil

	case "LIST_EXTEND":
		src, err := sim.pop()
		if err != nil {
			return nil, false, err
		}
		dst, err := sim.peek(mustOparg(instr))
		if err != nil {
			return nil, false, err
		}
		return &ExtendSeqReg{Dest: dst, Source1: src, extArg: c.table.ExtendedArg()}, false, nil

	case "CALL_FUNCTION":
		n := mustOparg(instr)
		dst := sim.top() - n - 1
		for k := 0; k < n; k++ {
			if _, err := sim.pop(); err != nil {
				return nil, false, err
			}
		}
		return &CallReg{Dest: dst, Nargs: n, extArg: c.table.ExtendedArg()}, false, nil

	case "CALL_FUNCTION_KW":
		n := mustOparg(instr)
		nreg := sim.top() - 1
		dst := sim.top() - n - 2
		for k := 0; k < n+1; k++ {
			if _, err := sim.pop(); err != nil {
				return nil, false, err
			}
		}
		return &CallKwReg{Dest: dst, Nreg: nreg, Nargs: n, extArg: c.table.ExtendedArg()}, false, nil

	case "POP_JUMP_IF_FALSE", "POP_JUMP_IF_TRUE":
		j := instr.(*Jump)
		src, err := sim.pop()
		if err != nil {
			return nil, false, err
		}
		regBlocks[j.TargetBlock].SetStackLevel(sim.top())
		return &JumpIfReg{TargetBlock: j.TargetBlock, Source1: src, SrcOp: j.Op, extArg: c.table.ExtendedArg()}, false, nil

	case "JUMP_FORWARD", "JUMP_ABSOLUTE":
		j := instr.(*Jump)
		return &JumpAbsReg{TargetBlock: j.TargetBlock, SrcOp: j.Op, extArg: c.table.ExtendedArg()}, false, nil

	case "RETURN_VALUE":
		src, err := sim.pop()
		if err != nil {
			return nil, false, err
		}
		return &ReturnReg{Source1: src, extArg: c.table.ExtendedArg()}, false, nil
	}

	return nil, false, fmt.Errorf("%w: %s", ErrUnhandledOpcode, name)
}

func mustOparg(instr Instruction) int {
	switch v := instr.(type) {
	case *RawSource:
		return v.Oparg
	case *Jump:
		return v.Oparg
	}
	return 0
}

func mustOp(instr Instruction) Opcode {
	switch v := instr.(type) {
	case *RawSource:
		return v.Op
	case *Jump:
		return v.Op
	}
	return 0
}
