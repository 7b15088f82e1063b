package regvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkProtectedLoadsProtectsWindowMember(t *testing.T) {
	b := NewBlock(RegisterVM, 0)
	lf0 := &LoadFastReg{Dest: 2, Source1: 0}
	lf1 := &LoadFastReg{Dest: 3, Source1: 1}
	b.Append(lf0)
	b.Append(lf1)
	b.Append(&CallReg{Dest: 2, Nargs: 2})

	markProtectedLoads([]*Block{b})

	assert.True(t, lf0.isProtected())
	assert.True(t, lf1.isProtected())
}

func TestMarkProtectedLoadsLeavesUnreachedLoadUnprotected(t *testing.T) {
	b := NewBlock(RegisterVM, 0)
	lf := &LoadFastReg{Dest: 2, Source1: 0}
	b.Append(lf)
	b.Append(&ReturnReg{Source1: 2})

	markProtectedLoads([]*Block{b})

	assert.False(t, lf.isProtected())
}

// S2: forward load propagation then NOP deletion collapse two LoadFastReg
// + BinOpReg + ReturnReg into BinOpReg + ReturnReg (the block holds no
// store, so backward store propagation leaves it unchanged).
func TestPropagateLoadsAndDeleteNopsCollapseAddTwoLocals(t *testing.T) {
	b := NewBlock(RegisterVM, 0)
	b.Append(&LoadFastReg{Dest: 2, Source1: 0})
	b.Append(&LoadFastReg{Dest: 3, Source1: 1})
	b.Append(&BinOpReg{Dest: 2, Source1: 2, Source2: 3})
	b.Append(&ReturnReg{Source1: 2})

	blocks := []*Block{b}
	markProtectedLoads(blocks)
	propagateLoads(blocks)
	propagateStores(blocks)
	deleteNops(blocks)

	if !assert.Equal(t, 2, b.Len()) {
		return
	}
	bin, ok := b.At(0).(*BinOpReg)
	if assert.True(t, ok) {
		assert.Equal(t, 0, bin.Source1)
		assert.Equal(t, 1, bin.Source2)
	}
	rv, ok := b.At(1).(*ReturnReg)
	if assert.True(t, ok) {
		assert.Equal(t, bin.Dest, rv.Source1)
	}
}

func TestPropagateStoresRetargetsImmediatePredecessor(t *testing.T) {
	b := NewBlock(RegisterVM, 1)
	bin := &BinOpReg{Dest: 2, Source1: 0, Source2: 1}
	store := &StoreFastReg{Dest: 0, Source1: 2}
	b.Append(bin)
	b.Append(store)

	blocks := []*Block{b}
	propagateStores(blocks)
	deleteNops(blocks)

	if !assert.Equal(t, 1, b.Len()) {
		return
	}
	got, ok := b.At(0).(*BinOpReg)
	if assert.True(t, ok) {
		assert.Equal(t, 0, got.Dest, "producer's dest should be retargeted straight to the stored local")
	}
}

func TestDeleteNopsCompactsBlock(t *testing.T) {
	b := NewBlock(RegisterVM, 0)
	b.Append(&ReturnReg{Source1: 1})
	b.Append(Nop{})
	b.Append(&ReturnReg{Source1: 2})

	deleteNops([]*Block{b})

	if !assert.Equal(t, 2, b.Len()) {
		return
	}
	assert.Equal(t, 1, b.At(0).(*ReturnReg).Source1)
	assert.Equal(t, 2, b.At(1).(*ReturnReg).Source1)
}
