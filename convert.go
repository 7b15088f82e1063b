package regvm

import (
	"errors"
	"fmt"
)

// Converter holds the state threaded through one code unit's conversion:
// the opcode catalog it was built against, the input unit itself, and the
// observer it reports progress and fatal errors to. It mirrors the
// teacher's single long-lived parser/disassembler object, but carries no
// package-level mutable state of its own (spec.md 9, "Global counters").
type Converter struct {
	table OpcodeTable
	unit  CodeUnit
	obs   Observer
}

// NewConverter validates the register-file bound up front (spec.md 6, 7)
// and returns a Converter ready to run Convert.
func NewConverter(table OpcodeTable, unit CodeUnit, obs Observer) (*Converter, error) {
	if unit.MaxStackLevel() > MaxRegisterFile {
		return nil, wrapFatal(fmt.Errorf("%w: nlocals=%d stacksize=%d", ErrRegisterFileTooLarge, unit.NLocals, unit.StackSize))
	}
	return &Converter{table: table, unit: unit, obs: obs}, nil
}

// Convert runs the full pipeline: linearize the source wordcode into basic
// blocks, lower each block's stack operations into register operations,
// run the peephole passes, then reflow and serialize the result. It
// returns the translated wordcode and its rebuilt line-number table.
func (c *Converter) Convert() (code []byte, lnotab []byte, err error) {
	sourceBlocks, err := linearize(c.table, c.unit)
	if err != nil {
		c.observeFatal(err)
		return nil, nil, err
	}

	regBlocks, err := c.lowerBlocks(sourceBlocks)
	if err != nil {
		return nil, nil, c.annotate(err, sourceBlocks, nil)
	}

	markProtectedLoads(regBlocks)
	propagateLoads(regBlocks)
	propagateStores(regBlocks)
	deleteNops(regBlocks)

	reflow(regBlocks)
	resolveJumpAddresses(regBlocks)

	code, lnotab, err = serialize(c.table, regBlocks, c.unit.FirstLine)
	if err != nil {
		return nil, nil, c.annotate(err, sourceBlocks, regBlocks)
	}
	return code, lnotab, nil
}

// annotate attaches a block-list dump to a fatal "unhandled opcode" error
// (spec.md 4.I) and reports it to the observer before returning.
func (c *Converter) annotate(err error, sourceBlocks, regBlocks []*Block) error {
	var ce *ConversionError
	if errors.As(err, &ce) && errors.Is(err, ErrUnhandledOpcode) {
		ce.Diagnostics = dumpDiagnostics(c.table, sourceBlocks, regBlocks)
	}
	c.observeFatal(err)
	return err
}

func (c *Converter) observeFatal(err error) {
	if c.obs != nil {
		c.obs.OnFatal(err)
	}
}

func (c *Converter) observeOK(op Opcode) {
	if c.obs != nil {
		c.obs.OnTranslate(op)
	}
}
