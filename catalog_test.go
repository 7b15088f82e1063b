package regvm

import "testing"

func TestDefaultOpcodeTableRoundTrip(t *testing.T) {
	table := DefaultOpcodeTable()

	op, ok := table.Opcode("LOAD_FAST")
	if !ok {
		t.Fatal("LOAD_FAST not found")
	}
	name, ok := table.Opname(op)
	if !ok || name != "LOAD_FAST" {
		t.Fatalf("Opname(%d) = %q, %v, want LOAD_FAST, true", op, name, ok)
	}

	reg, ok := table.RegOpcode(op)
	if !ok {
		t.Fatal("RegOpcode(LOAD_FAST) not found")
	}
	regName, _ := table.Opname(reg)
	if regName != "LOAD_FAST_REG" {
		t.Fatalf("RegOpcode(LOAD_FAST) = %q, want LOAD_FAST_REG", regName)
	}
}

func TestRegOpcodeKeepsJumpNumericValue(t *testing.T) {
	table := DefaultOpcodeTable()

	for _, name := range []string{"JUMP_FORWARD", "JUMP_ABSOLUTE"} {
		op, ok := table.Opcode(name)
		if !ok {
			t.Fatalf("%s not found", name)
		}
		reg, ok := table.RegOpcode(op)
		if !ok || reg != op {
			t.Fatalf("RegOpcode(%s) = %d, %v, want %d, true", name, reg, ok, op)
		}
	}
}

func TestIsJumpClassification(t *testing.T) {
	table := DefaultOpcodeTable()

	jf, _ := table.Opcode("JUMP_FORWARD")
	if !table.IsRelJump(jf) || table.IsAbsJump(jf) || !table.IsJump(jf) {
		t.Fatal("JUMP_FORWARD should be a relative jump only")
	}

	ja, _ := table.Opcode("JUMP_ABSOLUTE")
	if table.IsRelJump(ja) || !table.IsAbsJump(ja) || !table.IsJump(ja) {
		t.Fatal("JUMP_ABSOLUTE should be an absolute jump only")
	}

	loadFast, _ := table.Opcode("LOAD_FAST")
	if table.IsJump(loadFast) {
		t.Fatal("LOAD_FAST must not be classified as a jump")
	}

	extArg, _ := table.Opcode("EXTENDED_ARG")
	if !table.IsExtArg(extArg) || table.ExtendedArg() != extArg {
		t.Fatal("EXTENDED_ARG misconfigured")
	}
}
