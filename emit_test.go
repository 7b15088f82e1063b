package regvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReflowAssignsRunningAddresses(t *testing.T) {
	b0 := NewBlock(RegisterVM, 0)
	b0.Append(&ReturnReg{Source1: 1}) // 2 bytes
	b1 := NewBlock(RegisterVM, 1)
	b1.Append(&ReturnReg{Source1: 2})
	b1.Append(&ReturnReg{Source1: 3})

	reflow([]*Block{b0, b1})

	assert.Equal(t, 0, b0.Address())
	assert.Equal(t, 2, b1.Address())
}

// S5: a jump's final emitted address must reflect the post-reflow
// address of its target block, computed after the target block may have
// shrunk from peephole NOP deletion.
func TestResolveJumpAddressesUsesPostReflowAddress(t *testing.T) {
	b0 := NewBlock(RegisterVM, 0)
	jmp := &JumpAbsReg{TargetBlock: 2}
	b0.Append(jmp)

	b1 := NewBlock(RegisterVM, 1)
	b1.Append(&ReturnReg{Source1: 0}) // would have been here pre-shrink

	b2 := NewBlock(RegisterVM, 2)
	b2.Append(&ReturnReg{Source1: 1})

	blocks := []*Block{b0, b1, b2}
	deleteNops(blocks) // no-op here, stands in for the shrink pass
	reflow(blocks)
	resolveJumpAddresses(blocks)

	assert.Equal(t, b2.Address(), jmp.addr)
}

func TestSerializeProducesCodeAndLnotabForTrivialReturn(t *testing.T) {
	table := DefaultOpcodeTable()
	returnReg, _ := table.Opcode("RETURN_VALUE_REG")

	b := NewBlock(RegisterVM, 0)
	b.Append(&ReturnReg{Source1: 0, Line: 1})
	reflow([]*Block{b})

	code, lnotab, err := serialize(table, []*Block{b}, 1)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, []byte{byte(returnReg), 0}, code)
	assert.Equal(t, []byte{}, lnotab)
}

func TestSerializeBuildsLnotabOnLineAdvance(t *testing.T) {
	table := DefaultOpcodeTable()
	returnReg, _ := table.Opcode("RETURN_VALUE_REG")

	b := NewBlock(RegisterVM, 0)
	b.Append(&ReturnReg{Source1: 0, Line: 1}) // 2 bytes, no line advance
	b.Append(&ReturnReg{Source1: 1, Line: 3}) // line jumps from 1 to 3
	reflow([]*Block{b})

	_, lnotab, err := serialize(table, []*Block{b}, 1)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, []byte{2, 2}, lnotab)
	_ = returnReg
}
