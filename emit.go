package regvm

import "fmt"

// reflow is peephole pass 5 (spec.md 4.F): it walks the register blocks in
// number order and assigns each one the running byte address, now that the
// two propagation passes and NOP deletion have settled each block's final
// instruction count. Because JumpAbsReg and JumpIfReg always encode their
// address field at a fixed width (see instruction.go), one pass over the
// blocks is a fixed point; a later block's address never perturbs an
// earlier block's encoded length.
func reflow(blocks []*Block) {
	addr := 0
	for _, b := range blocks {
		b.SetAddress(addr)
		addr += b.CodeLen()
	}
}

// resolveJumpAddresses is pass 6's first half: now that every block has a
// final address, every jump instruction's target address field can be
// patched in, even though the jump itself may have been emitted long
// before its target's address was known (spec.md invariant 3).
func resolveJumpAddresses(blocks []*Block) {
	for _, b := range blocks {
		for i := 0; i < b.Len(); i++ {
			switch j := b.At(i).(type) {
			case *JumpAbsReg:
				j.ResolveAddr(blocks[j.TargetBlock].Address())
			case *JumpIfReg:
				j.ResolveAddr(blocks[j.TargetBlock].Address())
			}
		}
	}
}

// serialize is pass 6's second half: it walks the blocks in address order,
// looks up each instruction's concrete register opcode, appends its bytes,
// and rebuilds the line-number table alongside the byte stream.
func serialize(table OpcodeTable, blocks []*Block, firstLine int) ([]byte, []byte, error) {
	var code []byte
	lb := newLnotabBuilder(firstLine)

	for _, b := range blocks {
		for i := 0; i < b.Len(); i++ {
			instr := b.At(i)
			op, ok := regOpcodeFor(table, instr)
			if !ok {
				return nil, nil, wrapFatal(fmt.Errorf("%w: no register opcode for %T", ErrUnhandledOpcode, instr))
			}
			lb.Advance(lineOf(instr), instr.EncodedLen())
			code = append(code, instr.Serialize(op)...)
		}
	}
	return code, lb.Bytes(), nil
}

// regOpcodeFor resolves a register instruction's mnemonic to its numeric
// opcode. Instructions that stand for exactly one source mnemonic use a
// literal name; instructions that stand for a family (unary/binary ops,
// sequence builders, the two jump shapes) carry the originating SrcOp and
// resolve it through the table's "<name>_REG" convention.
func regOpcodeFor(table OpcodeTable, instr Instruction) (Opcode, bool) {
	switch v := instr.(type) {
	case *LoadFastReg:
		return table.Opcode("LOAD_FAST_REG")
	case *LoadConstReg:
		return table.Opcode("LOAD_CONST_REG")
	case *LoadGlobalReg:
		return table.Opcode("LOAD_GLOBAL_REG")
	case *StoreFastReg:
		return table.Opcode("STORE_FAST_REG")
	case *StoreGlobalReg:
		return table.Opcode("STORE_GLOBAL_REG")
	case *UnaryOpReg:
		return table.RegOpcode(v.SrcOp)
	case *BinOpReg:
		return table.RegOpcode(v.SrcOp)
	case *CompareOpReg:
		return table.Opcode("COMPARE_OP_REG")
	case *BuildSeqReg:
		return table.RegOpcode(v.SrcOp)
	case *ExtendSeqReg:
		return table.Opcode("LIST_EXTEND_REG")
	case *CallReg:
		return table.Opcode("CALL_FUNCTION_REG")
	case *CallKwReg:
		return table.Opcode("CALL_FUNCTION_KW_REG")
	case *JumpAbsReg:
		return table.RegOpcode(v.SrcOp)
	case *JumpIfReg:
		return table.RegOpcode(v.SrcOp)
	case *ReturnReg:
		return table.Opcode("RETURN_VALUE_REG")
	default:
		return 0, false
	}
}

func lineOf(instr Instruction) int {
	switch v := instr.(type) {
	case *LoadFastReg:
		return v.Line
	case *LoadConstReg:
		return v.Line
	case *LoadGlobalReg:
		return v.Line
	case *StoreFastReg:
		return v.Line
	case *StoreGlobalReg:
		return v.Line
	case *UnaryOpReg:
		return v.Line
	case *BinOpReg:
		return v.Line
	case *CompareOpReg:
		return v.Line
	case *BuildSeqReg:
		return v.Line
	case *ExtendSeqReg:
		return v.Line
	case *CallReg:
		return v.Line
	case *CallKwReg:
		return v.Line
	case *JumpAbsReg:
		return v.Line
	case *JumpIfReg:
		return v.Line
	case *ReturnReg:
		return v.Line
	default:
		return 0
	}
}
