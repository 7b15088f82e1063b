package regvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func opByName(t *testing.T, table OpcodeTable, name string) Opcode {
	t.Helper()
	op, ok := table.Opcode(name)
	if !ok {
		t.Fatalf("opcode %s not found", name)
	}
	return op
}

func TestLinearizeTrivialReturnSingleBlock(t *testing.T) {
	table := DefaultOpcodeTable()
	loadConst := opByName(t, table, "LOAD_CONST")
	ret := opByName(t, table, "RETURN_VALUE")

	unit := CodeUnit{
		Code:      []byte{byte(loadConst), 0, byte(ret), 0},
		FirstLine: 1,
	}

	blocks, err := linearize(table, unit)
	if !assert.NoError(t, err) {
		return
	}
	if assert.Len(t, blocks, 1) {
		assert.Equal(t, 0, blocks[0].Address())
		assert.Equal(t, 2, blocks[0].Len())
	}
}

func TestLinearizeConditionalTwoBlocks(t *testing.T) {
	table := DefaultOpcodeTable()
	loadFast := opByName(t, table, "LOAD_FAST")
	popJumpIfFalse := opByName(t, table, "POP_JUMP_IF_FALSE")
	loadConst := opByName(t, table, "LOAD_CONST")
	ret := opByName(t, table, "RETURN_VALUE")

	// 0: LOAD_FAST 0
	// 2: POP_JUMP_IF_FALSE 6
	// 4: LOAD_CONST 0
	// 6: LOAD_CONST 1   <- target block
	// 8: RETURN_VALUE
	unit := CodeUnit{
		Code: []byte{
			byte(loadFast), 0,
			byte(popJumpIfFalse), 6,
			byte(loadConst), 0,
			byte(loadConst), 1,
			byte(ret), 0,
		},
		FirstLine: 1,
	}

	blocks, err := linearize(table, unit)
	if !assert.NoError(t, err) {
		return
	}
	if !assert.Len(t, blocks, 2) {
		return
	}
	assert.Equal(t, 0, blocks[0].Address())
	assert.Equal(t, 6, blocks[1].Address())

	jump, ok := blocks[0].At(1).(*Jump)
	if assert.True(t, ok) {
		assert.True(t, jump.Resolved)
		assert.Equal(t, 1, jump.TargetBlock)
	}
}

func TestLinearizeInconsistentJumpIsFatal(t *testing.T) {
	table := DefaultOpcodeTable()
	jumpAbs := opByName(t, table, "JUMP_ABSOLUTE")

	unit := CodeUnit{
		Code:      []byte{byte(jumpAbs), 99},
		FirstLine: 1,
	}

	_, err := linearize(table, unit)
	assert.Error(t, err)
}
