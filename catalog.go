package regvm

import "sort"

// Opcode is a one-byte instruction tag in either the source (stack) VM or
// the target (register) VM. All opcodes fit in a single unsigned byte.
type Opcode uint8

// OpcodeEntry describes a single source-VM opcode: its canonical name and
// whether it is one of the two jump families or the EXTENDED_ARG prefix.
type OpcodeEntry struct {
	Value   Opcode
	Name    string
	RelJump bool
	AbsJump bool
	ExtArg  bool
}

// OpcodeTable is a read-only oracle over a source VM's opcode set. It is
// built once (typically at process start, from whatever opcode set the
// host runtime defines) and never mutated afterwards; every converter
// shares it by value.
type OpcodeTable struct {
	byValue map[Opcode]OpcodeEntry
	byName  map[string]Opcode
	nop     Opcode
	extArg  Opcode
}

// NewOpcodeTable builds a table from a flat list of entries. Names must be
// unique; values must be unique. The NOP entry, if present, is recorded
// for use as the peephole placeholder opcode.
func NewOpcodeTable(entries []OpcodeEntry) OpcodeTable {
	t := OpcodeTable{
		byValue: make(map[Opcode]OpcodeEntry, len(entries)),
		byName:  make(map[string]Opcode, len(entries)),
	}
	for _, e := range entries {
		t.byValue[e.Value] = e
		t.byName[e.Name] = e.Value
		if e.ExtArg {
			t.extArg = e.Value
		}
		if e.Name == "NOP" {
			t.nop = e.Value
		}
	}
	return t
}

// Opname returns the human-readable name for an opcode.
func (t OpcodeTable) Opname(op Opcode) (string, bool) {
	e, ok := t.byValue[op]
	return e.Name, ok
}

// Opcode returns the numeric opcode for a mnemonic.
func (t OpcodeTable) Opcode(name string) (Opcode, bool) {
	op, ok := t.byName[name]
	return op, ok
}

// RegOpcode looks up the register-VM opcode corresponding to a source-VM
// opcode by the fixed "<name>_REG" convention (4.E), except for the two
// unconditional jump opcodes which keep their source numeric value.
func (t OpcodeTable) RegOpcode(src Opcode) (Opcode, bool) {
	name, ok := t.Opname(src)
	if !ok {
		return 0, false
	}
	if name == "JUMP_FORWARD" || name == "JUMP_ABSOLUTE" {
		return src, true
	}
	return t.Opcode(name + "_REG")
}

// IsRelJump reports whether op is a relative-jump opcode.
func (t OpcodeTable) IsRelJump(op Opcode) bool {
	return t.byValue[op].RelJump
}

// IsAbsJump reports whether op is an absolute-jump opcode.
func (t OpcodeTable) IsAbsJump(op Opcode) bool {
	return t.byValue[op].AbsJump
}

// IsJump reports whether op is any kind of jump.
func (t OpcodeTable) IsJump(op Opcode) bool {
	return t.IsRelJump(op) || t.IsAbsJump(op)
}

// IsExtArg reports whether op is the EXTENDED_ARG prefix opcode.
func (t OpcodeTable) IsExtArg(op Opcode) bool {
	return t.byValue[op].ExtArg
}

// ExtendedArg returns the numeric value of EXTENDED_ARG.
func (t OpcodeTable) ExtendedArg() Opcode { return t.extArg }

// Nop returns the numeric value of NOP.
func (t OpcodeTable) Nop() Opcode { return t.nop }

// Names returns every mnemonic in the table, sorted, for diagnostics and
// tests that want a stable iteration order.
func (t OpcodeTable) Names() []string {
	names := make([]string, 0, len(t.byName))
	for n := range t.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultOpcodeTable builds a convenience opcode set shaped after the
// CPython 3.8 "wordcode" instruction set that the rattlesnake converter
// this module's semantics are drawn from was written against. Callers
// translating a different host runtime's stack VM supply their own table
// via NewOpcodeTable instead; nothing else in this module depends on
// these particular numeric values.
func DefaultOpcodeTable() OpcodeTable {
	entries := []OpcodeEntry{
		{Value: 0, Name: "POP_TOP"},
		{Value: 1, Name: "ROT_TWO"},
		{Value: 2, Name: "ROT_THREE"},
		{Value: 4, Name: "DUP_TOP"},
		{Value: 9, Name: "NOP"},
		{Value: 10, Name: "UNARY_POSITIVE"},
		{Value: 11, Name: "UNARY_NEGATIVE"},
		{Value: 12, Name: "UNARY_NOT"},
		{Value: 15, Name: "UNARY_INVERT"},
		{Value: 19, Name: "BINARY_POWER"},
		{Value: 20, Name: "BINARY_MULTIPLY"},
		{Value: 22, Name: "BINARY_MODULO"},
		{Value: 23, Name: "BINARY_ADD"},
		{Value: 24, Name: "BINARY_SUBTRACT"},
		{Value: 25, Name: "BINARY_SUBSCR"},
		{Value: 26, Name: "BINARY_FLOOR_DIVIDE"},
		{Value: 27, Name: "BINARY_TRUE_DIVIDE"},
		{Value: 55, Name: "INPLACE_ADD"},
		{Value: 56, Name: "INPLACE_SUBTRACT"},
		{Value: 57, Name: "INPLACE_MULTIPLY"},
		{Value: 59, Name: "INPLACE_MODULO"},
		{Value: 62, Name: "BINARY_LSHIFT"},
		{Value: 63, Name: "BINARY_RSHIFT"},
		{Value: 64, Name: "BINARY_AND"},
		{Value: 65, Name: "BINARY_XOR"},
		{Value: 66, Name: "BINARY_OR"},
		{Value: 67, Name: "INPLACE_POWER"},
		{Value: 75, Name: "INPLACE_LSHIFT"},
		{Value: 76, Name: "INPLACE_RSHIFT"},
		{Value: 77, Name: "INPLACE_AND"},
		{Value: 78, Name: "INPLACE_XOR"},
		{Value: 79, Name: "INPLACE_OR"},
		{Value: 83, Name: "RETURN_VALUE"},
		{Value: 90, Name: "STORE_GLOBAL"},
		{Value: 97, Name: "STORE_FAST"},
		{Value: 100, Name: "LOAD_CONST"},
		{Value: 101, Name: "LOAD_GLOBAL"},
		{Value: 102, Name: "BUILD_TUPLE"},
		{Value: 103, Name: "BUILD_LIST"},
		{Value: 105, Name: "BUILD_MAP"},
		{Value: 107, Name: "COMPARE_OP"},
		{Value: 110, Name: "JUMP_FORWARD", RelJump: true},
		{Value: 111, Name: "JUMP_IF_FALSE_OR_POP", RelJump: true},
		{Value: 112, Name: "JUMP_IF_TRUE_OR_POP", RelJump: true},
		{Value: 113, Name: "JUMP_ABSOLUTE", AbsJump: true},
		{Value: 114, Name: "POP_JUMP_IF_FALSE", AbsJump: true},
		{Value: 115, Name: "POP_JUMP_IF_TRUE", AbsJump: true},
		{Value: 124, Name: "LOAD_FAST"},
		{Value: 141, Name: "CALL_FUNCTION"},
		{Value: 144, Name: "EXTENDED_ARG", ExtArg: true},
		{Value: 161, Name: "CALL_FUNCTION_KW"},
		{Value: 163, Name: "LIST_EXTEND"},

		// Register-VM opcodes. Real values are irrelevant to the core
		// (only names participate in the "<name>_REG" lookup convention
		// and the round-trip byte-serialization tests); they are placed
		// in a disjoint numeric range purely so a misconfigured table
		// can't alias a source opcode onto a register opcode by accident.
		{Value: 200, Name: "UNARY_POSITIVE_REG"},
		{Value: 201, Name: "UNARY_NEGATIVE_REG"},
		{Value: 202, Name: "UNARY_NOT_REG"},
		{Value: 203, Name: "UNARY_INVERT_REG"},
		{Value: 204, Name: "BINARY_POWER_REG"},
		{Value: 205, Name: "BINARY_MULTIPLY_REG"},
		{Value: 206, Name: "BINARY_MODULO_REG"},
		{Value: 207, Name: "BINARY_ADD_REG"},
		{Value: 208, Name: "BINARY_SUBTRACT_REG"},
		{Value: 209, Name: "BINARY_SUBSCR_REG"},
		{Value: 210, Name: "BINARY_FLOOR_DIVIDE_REG"},
		{Value: 211, Name: "BINARY_TRUE_DIVIDE_REG"},
		{Value: 212, Name: "INPLACE_ADD_REG"},
		{Value: 213, Name: "INPLACE_SUBTRACT_REG"},
		{Value: 214, Name: "INPLACE_MULTIPLY_REG"},
		{Value: 215, Name: "INPLACE_MODULO_REG"},
		{Value: 216, Name: "BINARY_LSHIFT_REG"},
		{Value: 217, Name: "BINARY_RSHIFT_REG"},
		{Value: 218, Name: "BINARY_AND_REG"},
		{Value: 219, Name: "BINARY_XOR_REG"},
		{Value: 220, Name: "BINARY_OR_REG"},
		{Value: 221, Name: "INPLACE_POWER_REG"},
		{Value: 222, Name: "INPLACE_LSHIFT_REG"},
		{Value: 223, Name: "INPLACE_RSHIFT_REG"},
		{Value: 224, Name: "INPLACE_AND_REG"},
		{Value: 225, Name: "INPLACE_XOR_REG"},
		{Value: 226, Name: "INPLACE_OR_REG"},
		{Value: 227, Name: "RETURN_VALUE_REG"},
		{Value: 228, Name: "STORE_GLOBAL_REG"},
		{Value: 229, Name: "STORE_FAST_REG"},
		{Value: 230, Name: "LOAD_CONST_REG"},
		{Value: 231, Name: "LOAD_GLOBAL_REG"},
		{Value: 232, Name: "BUILD_TUPLE_REG"},
		{Value: 233, Name: "BUILD_LIST_REG"},
		{Value: 234, Name: "BUILD_MAP_REG"},
		{Value: 235, Name: "COMPARE_OP_REG"},
		{Value: 236, Name: "POP_JUMP_IF_FALSE_REG"},
		{Value: 237, Name: "POP_JUMP_IF_TRUE_REG"},
		{Value: 238, Name: "LOAD_FAST_REG"},
		{Value: 239, Name: "CALL_FUNCTION_REG"},
		{Value: 240, Name: "CALL_FUNCTION_KW_REG"},
		{Value: 241, Name: "LIST_EXTEND_REG"},
	}
	return NewOpcodeTable(entries)
}
