package regvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimulatorPushPopBounds(t *testing.T) {
	sim := newSimulator(2, 4) // nlocals=2, max=4

	d0, err := sim.push()
	assert.NoError(t, err)
	assert.Equal(t, 2, d0)

	d1, err := sim.push()
	assert.NoError(t, err)
	assert.Equal(t, 3, d1)

	// One more push overflows the register file.
	_, err = sim.push()
	assert.Error(t, err)
	var sse *StackSizeError
	assert.ErrorAs(t, err, &sse)
}

func TestSimulatorPopPastLocalsIsError(t *testing.T) {
	sim := newSimulator(1, 4)
	_, err := sim.pop()
	assert.Error(t, err)
}

func TestSimulatorPeekDoesNotMutateLevel(t *testing.T) {
	sim := newSimulator(0, 4)
	sim.push()
	sim.push()
	before := sim.top()
	slot, err := sim.peek(0)
	assert.NoError(t, err)
	assert.Equal(t, before, sim.top())
	assert.Equal(t, before, slot)
}

func unitForCode(code []byte, nlocals, stacksize int) CodeUnit {
	return CodeUnit{Code: code, NLocals: nlocals, StackSize: stacksize, FirstLine: 1}
}

// S2: two locals added and returned lowers to a single register block of
// two LoadFastRegs, one BinOpReg and one ReturnReg after dispatch alone
// (peephole runs separately and is covered in peephole_test.go).
func TestLowerBlocksAddTwoLocals(t *testing.T) {
	table := DefaultOpcodeTable()
	loadFast, _ := table.Opcode("LOAD_FAST")
	binAdd, _ := table.Opcode("BINARY_ADD")
	ret, _ := table.Opcode("RETURN_VALUE")

	unit := unitForCode([]byte{
		byte(loadFast), 0,
		byte(loadFast), 1,
		byte(binAdd), 0,
		byte(ret), 0,
	}, 2, 2)

	conv, err := NewConverter(table, unit, nil)
	if !assert.NoError(t, err) {
		return
	}

	sourceBlocks, err := linearize(table, unit)
	if !assert.NoError(t, err) {
		return
	}

	regBlocks, err := conv.lowerBlocks(sourceBlocks)
	if !assert.NoError(t, err) {
		return
	}
	if !assert.Len(t, regBlocks, 1) {
		return
	}

	rb := regBlocks[0]
	if !assert.Equal(t, 4, rb.Len()) {
		return
	}

	lf0, ok := rb.At(0).(*LoadFastReg)
	if assert.True(t, ok) {
		assert.Equal(t, 2, lf0.Dest)
		assert.Equal(t, 0, lf0.Source1)
	}
	lf1, ok := rb.At(1).(*LoadFastReg)
	if assert.True(t, ok) {
		assert.Equal(t, 3, lf1.Dest)
		assert.Equal(t, 1, lf1.Source1)
	}
	bin, ok := rb.At(2).(*BinOpReg)
	if assert.True(t, ok) {
		assert.Equal(t, 2, bin.Dest)
		assert.Equal(t, 2, bin.Source1)
		assert.Equal(t, 3, bin.Source2)
	}
	rv, ok := rb.At(3).(*ReturnReg)
	if assert.True(t, ok) {
		assert.Equal(t, 2, rv.Source1)
	}
}

// S6: a LOAD_FAST that overflows the register file truncates the block
// instead of returning a fatal error (spec.md 4.E/7, unreachable tail).
func TestLowerBlocksUnreachableTailTruncatesSilently(t *testing.T) {
	table := DefaultOpcodeTable()
	loadFast, _ := table.Opcode("LOAD_FAST")
	ret, _ := table.Opcode("RETURN_VALUE")

	// stacksize=0 means even one LOAD_FAST overflows nlocals+stacksize.
	unit := unitForCode([]byte{
		byte(loadFast), 0,
		byte(ret), 0,
	}, 1, 0)

	conv, err := NewConverter(table, unit, nil)
	if !assert.NoError(t, err) {
		return
	}

	sourceBlocks, err := linearize(table, unit)
	if !assert.NoError(t, err) {
		return
	}

	regBlocks, err := conv.lowerBlocks(sourceBlocks)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, 0, regBlocks[0].Len(), "unreachable tail must leave the block empty, not fatal")
}

func TestLowerBlocksUnhandledOpcodeIsFatal(t *testing.T) {
	table := DefaultOpcodeTable()
	nop, _ := table.Opcode("NOP")
	ret, _ := table.Opcode("RETURN_VALUE")
	_ = ret

	unit := unitForCode([]byte{byte(nop), 0}, 0, 1)

	conv, err := NewConverter(table, unit, nil)
	if !assert.NoError(t, err) {
		return
	}
	sourceBlocks, err := linearize(table, unit)
	if !assert.NoError(t, err) {
		return
	}
	_, err = conv.lowerBlocks(sourceBlocks)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrUnhandledOpcode)
}
