package regvm

// markProtectedLoads is peephole pass 1 (spec.md 4.F). A LoadFastReg whose
// destination register falls inside a later windowed instruction's
// implicit register range must not be elided by forward propagation,
// because that later instruction reads the register directly rather than
// through a Sources() entry the propagation pass can see.
func markProtectedLoads(blocks []*Block) {
	for _, b := range blocks {
		producer := map[int]*LoadFastReg{}
		for i := 0; i < b.Len(); i++ {
			instr := b.At(i)
			if w, ok := instr.(windowed); ok {
				first, count := w.Window()
				for r := first; r < first+count; r++ {
					if lf, ok := producer[r]; ok {
						lf.protect()
					}
				}
			}
			if d := instr.Dest(); d != nil {
				if lf, ok := instr.(*LoadFastReg); ok {
					producer[*d] = lf
				} else {
					delete(producer, *d)
				}
			}
		}
	}
}

// propagateLoads is peephole pass 2: forward load propagation. Every
// unprotected LoadFastReg is immediately nop'd, and the register number it
// defined is forwarded to the local index it loaded from, so later
// instructions in the block read the local directly instead of through the
// now-dead copy. A StoreFastReg invalidates any forwarding still pointing
// at the local it overwrites.
func propagateLoads(blocks []*Block) {
	for _, b := range blocks {
		forward := map[int]int{}
		for i := 0; i < b.Len(); i++ {
			instr := b.At(i)
			for _, src := range instr.Sources() {
				if local, ok := forward[*src]; ok {
					*src = local
				}
			}
			if sf, ok := instr.(*StoreFastReg); ok {
				for r, local := range forward {
					if local == sf.Dest {
						delete(forward, r)
					}
				}
			}
			if d := instr.Dest(); d != nil {
				delete(forward, *d)
			}
			if lf, ok := instr.(*LoadFastReg); ok && !lf.isProtected() {
				forward[lf.Dest] = lf.Source1
				b.ReplaceAt(i, Nop{})
			}
		}
	}
}

// propagateStores is peephole pass 3: backward store propagation. When a
// StoreFastReg's source register was produced by the immediately preceding
// instruction in the block, that producer's destination is retargeted
// straight to the local and the store is elided. This is sound because the
// stack simulator never reuses a register number for a second distinct
// value before the first is popped, so the producer's register cannot be
// read again after the store that consumes it.
func propagateStores(blocks []*Block) {
	for _, b := range blocks {
		for i := b.Len() - 1; i >= 1; i-- {
			sf, ok := b.At(i).(*StoreFastReg)
			if !ok {
				continue
			}
			prev := b.At(i - 1)
			d := prev.Dest()
			if d == nil || *d != sf.Source1 {
				continue
			}
			*d = sf.Dest
			b.ReplaceAt(i, Nop{})
		}
	}
}

// deleteNops is peephole pass 4: compact every block by removing the Nop
// placeholders the two propagation passes left behind.
func deleteNops(blocks []*Block) {
	for _, b := range blocks {
		for i := b.Len() - 1; i >= 0; i-- {
			if _, ok := b.At(i).(Nop); ok {
				b.DeleteAt(i)
			}
		}
	}
}
