package regvm

// CodeUnit is the compiled code unit the converter consumes. It mirrors a
// CPython code object's relevant fields: the read-only tables the
// converter must consult (varnames/names/consts), the running counts
// that size the register file (nlocals/stacksize), and the line-number
// metadata needed to reconstruct lnotab for the translated output.
//
// The converter never mutates a CodeUnit; it is read-only input, the same
// way the teacher's DiskImage/Catalog pair was a read-only, already-parsed
// description of a disk image handed to the disassembler.
type CodeUnit struct {
	// Code is the even-length wordcode byte string: (op, arg) pairs.
	Code []byte
	// VarNames is co_varnames: the ordered local-variable name list,
	// length NLocals.
	VarNames []string
	// Names is co_names: the ordered global/attribute name list.
	Names []string
	// Consts is co_consts: the ordered constant list.
	Consts []any
	// NLocals is co_nlocals.
	NLocals int
	// StackSize is co_stacksize, the maximum operand-stack depth the
	// compiler computed for this code unit.
	StackSize int
	// FirstLine is co_firstlineno.
	FirstLine int
	// Lnotab is co_lnotab: compact alternating (address_delta,
	// line_delta) bytes.
	Lnotab []byte
}

// MaxStackLevel is nlocals+stacksize, the size of the shared register
// file (locals followed by translation-time stack cells).
func (c CodeUnit) MaxStackLevel() int {
	return c.NLocals + c.StackSize
}
