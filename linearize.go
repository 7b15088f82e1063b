package regvm

import "sort"

// linearize parses a source VM's wordcode into an ordered list of basic
// blocks (spec.md 4.D). It mirrors the teacher disassembler's two-pass
// shape: a first pass over the raw bytes to discover every branch
// target, and a second pass that walks the bytes again, opening a new
// block whenever the cursor lands on a discovered target.
func linearize(table OpcodeTable, unit CodeUnit) ([]*Block, error) {
	labels := findLabels(table, unit.Code)
	lines := newLineTable(unit.FirstLine, unit.Lnotab)

	blocks := buildBlocks(table, unit.Code, labels, lines)
	if err := resolveJumpTargets(blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// findLabels scans code once in 2-byte steps, folding EXTENDED_ARG high
// bytes into a running carry, and records every relative- or absolute-
// jump target byte address. 0 is always a label (block 0 always starts
// the code unit).
func findLabels(table OpcodeTable, code []byte) []int {
	labelSet := map[int]bool{0: true}
	carry := 0
	for i := 0; i+1 < len(code); i += 2 {
		op, arg := Opcode(code[i]), int(code[i+1])
		carry = carry<<8 | arg
		if table.IsExtArg(op) {
			continue
		}
		oparg := carry
		carry = 0
		switch {
		case table.IsRelJump(op):
			labelSet[i+oparg] = true
		case table.IsAbsJump(op):
			labelSet[oparg] = true
		}
	}
	labels := make([]int, 0, len(labelSet))
	for l := range labelSet {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels
}

// buildBlocks walks code a second time, opening a new block at every
// label boundary and appending a RawSource or Jump instruction (with
// EXTENDED_ARG chains already folded) for every non-prefix opcode.
func buildBlocks(table OpcodeTable, code []byte, labels []int, lines lineTable) []*Block {
	isLabel := make(map[int]bool, len(labels))
	for _, l := range labels {
		isLabel[l] = true
	}

	var blocks []*Block
	var current *Block
	blockNum := 0
	extArg := 0

	for offset := 0; offset+1 < len(code); offset += 2 {
		if isLabel[offset] {
			current = NewBlock(SourceVM, blockNum)
			current.SetAddress(offset)
			blocks = append(blocks, current)
			blockNum++
		}

		op, arg := Opcode(code[offset]), int(code[offset+1])
		if table.IsExtArg(op) {
			extArg = extArg<<8 | arg
			continue
		}
		oparg := extArg<<8 | arg
		extArg = 0
		line := lines.LineAt(offset)

		if table.IsJump(op) {
			addr := oparg
			if table.IsRelJump(op) {
				addr = offset + oparg
			}
			current.Append(&Jump{
				Op:            op,
				Oparg:         oparg,
				Line:          line,
				TargetAddress: addr,
				extArg:        table.ExtendedArg(),
			})
		} else {
			current.Append(&RawSource{Op: op, Oparg: oparg, Line: line, extArg: table.ExtendedArg()})
		}
	}
	return blocks
}

// resolveJumpTargets converts every Jump's transient TargetAddress to
// the destination block's number (spec.md 4.D step 3, invariant 1).
func resolveJumpTargets(blocks []*Block) error {
	addrToBlock := make(map[int]int, len(blocks))
	for _, b := range blocks {
		addrToBlock[b.Address()] = b.Number
	}
	for _, b := range blocks {
		for i := 0; i < b.Len(); i++ {
			j, ok := b.At(i).(*Jump)
			if !ok {
				continue
			}
			target, ok := addrToBlock[j.TargetAddress]
			if !ok {
				return wrapFatal(ErrInconsistentJump)
			}
			j.TargetBlock = target
			j.Resolved = true
		}
	}
	return nil
}
