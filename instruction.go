package regvm

// MaxRegisterFile is the largest register-file size (nlocals+stacksize)
// the converter will accept; register numbers must fit a signed byte.
const MaxRegisterFile = 127

// Instruction is a single instruction in either a source (stack) VM block
// or a register VM block. Concrete variants are plain structs; this
// interface lets the block, linearizer, lowering and peephole code treat
// both VMs' instructions uniformly without reflection (spec design note:
// "Tagged variants").
type Instruction interface {
	// Opargs is the canonical oparg tuple to be encoded: zero or more
	// high-order bytes followed by the primary (low-order) byte.
	Opargs() []int
	// IsJump reports whether this instruction transfers control.
	IsJump() bool
	// EncodedLen is the instruction's length once serialized.
	EncodedLen() int
	// Serialize emits (EXTENDED_ARG, a0, EXTENDED_ARG, a1, ..., op, an).
	Serialize(op Opcode) []byte
	// Sources returns pointers to this instruction's readable register
	// fields (source1 first, then source2 if present), or nil.
	Sources() []*int
	// Dest returns a pointer to this instruction's destination register
	// field, or nil if it defines none.
	Dest() *int
}

// windowed is implemented by register instructions whose destination
// implicitly spans a contiguous range of registers (BuildSeqReg over
// [dest,dest+length), CallReg/CallKwReg over [dest,dest+nargs)).
type windowed interface {
	Window() (first, count int)
}

// loadFast is implemented only by LoadFastReg, letting the peephole
// passes identify it without a type switch at every call site.
type loadFast interface {
	protect()
	isProtected() bool
}

func serializeGeneric(op Opcode, opargs []int, extArg Opcode) []byte {
	code := make([]byte, 0, 2*len(opargs))
	for _, a := range opargs[:len(opargs)-1] {
		code = append(code, byte(extArg), byte(a))
	}
	code = append(code, byte(op), byte(opargs[len(opargs)-1]))
	return code
}

func encodedLenFor(opargs []int) int {
	return 2 + 2*(len(opargs)-1)
}

// ---- Source-VM instructions -------------------------------------------

// RawSource is any source-VM opcode that is not a jump, carrying its
// folded oparg (EXTENDED_ARG prefixes already collapsed into one value
// by the linearizer, per spec.md 4.D).
type RawSource struct {
	Op     Opcode
	Oparg  int
	Line   int
	extArg Opcode
}

func (i *RawSource) Opargs() []int       { return []int{i.Oparg} }
func (i *RawSource) IsJump() bool        { return false }
func (i *RawSource) EncodedLen() int     { return encodedLenFor(i.Opargs()) }
func (i *RawSource) Sources() []*int     { return nil }
func (i *RawSource) Dest() *int          { return nil }
func (i *RawSource) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}

// Jump is any source-VM jump instruction. Before target resolution it
// carries TargetAddress (a byte offset into the input); after
// resolution TargetBlock names the destination block and TargetAddress
// is no longer meaningful (invariant 1, spec.md 3).
type Jump struct {
	Op            Opcode
	Oparg         int
	Line          int
	TargetAddress int
	TargetBlock   int
	Resolved      bool
	extArg        Opcode
}

func (i *Jump) Opargs() []int   { return []int{i.Oparg} }
func (i *Jump) IsJump() bool    { return true }
func (i *Jump) EncodedLen() int { return encodedLenFor(i.Opargs()) }
func (i *Jump) Sources() []*int { return nil }
func (i *Jump) Dest() *int      { return nil }
func (i *Jump) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}

// Nop is the peephole placeholder instruction; it is always deleted
// before emission (pass 4) and is never itself serialized in output.
type Nop struct{}

func (Nop) Opargs() []int           { return []int{0} }
func (Nop) IsJump() bool            { return false }
func (Nop) EncodedLen() int         { return 2 }
func (Nop) Sources() []*int         { return nil }
func (Nop) Dest() *int              { return nil }
func (Nop) Serialize(op Opcode) []byte { return []byte{byte(op), 0} }

// ---- Register-VM instructions ------------------------------------------

// LoadFastReg loads a local into dest. Protected loads (spec.md 4.F
// pass 1) must survive forward propagation because a later instruction
// implicitly reads a contiguous window of registers including dest.
type LoadFastReg struct {
	Line   int
	Dest, Source1 int
	Protected     bool
	extArg        Opcode
}

func (i *LoadFastReg) Opargs() []int   { return []int{i.Dest, i.Source1} }
func (i *LoadFastReg) IsJump() bool    { return false }
func (i *LoadFastReg) EncodedLen() int { return encodedLenFor(i.Opargs()) }
func (i *LoadFastReg) Sources() []*int { return []*int{&i.Source1} }
func (i *LoadFastReg) Dest() *int      { return &i.Dest }
func (i *LoadFastReg) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}
func (i *LoadFastReg) protect()          { i.Protected = true }
func (i *LoadFastReg) isProtected() bool { return i.Protected }

// LoadConstReg loads constants[name1] into dest.
type LoadConstReg struct {
	Line   int
	Dest, Name1 int
	extArg      Opcode
}

func (i *LoadConstReg) Opargs() []int   { return []int{i.Dest, i.Name1} }
func (i *LoadConstReg) IsJump() bool    { return false }
func (i *LoadConstReg) EncodedLen() int { return encodedLenFor(i.Opargs()) }
func (i *LoadConstReg) Sources() []*int { return nil }
func (i *LoadConstReg) Dest() *int      { return &i.Dest }
func (i *LoadConstReg) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}

// LoadGlobalReg loads names[name1] into dest.
type LoadGlobalReg struct {
	Line   int
	Dest, Name1 int
	extArg      Opcode
}

func (i *LoadGlobalReg) Opargs() []int   { return []int{i.Dest, i.Name1} }
func (i *LoadGlobalReg) IsJump() bool    { return false }
func (i *LoadGlobalReg) EncodedLen() int { return encodedLenFor(i.Opargs()) }
func (i *LoadGlobalReg) Sources() []*int { return nil }
func (i *LoadGlobalReg) Dest() *int      { return &i.Dest }
func (i *LoadGlobalReg) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}

// StoreFastReg stores source1 into the local at dest.
type StoreFastReg struct {
	Line   int
	Dest, Source1 int
	extArg        Opcode
}

func (i *StoreFastReg) Opargs() []int   { return []int{i.Dest, i.Source1} }
func (i *StoreFastReg) IsJump() bool    { return false }
func (i *StoreFastReg) EncodedLen() int { return encodedLenFor(i.Opargs()) }
func (i *StoreFastReg) Sources() []*int { return []*int{&i.Source1} }
func (i *StoreFastReg) Dest() *int      { return &i.Dest }
func (i *StoreFastReg) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}

// StoreGlobalReg stores source1 into names[name1]. name1 indexes the
// name table, not a register, so this instruction defines no register.
type StoreGlobalReg struct {
	Line   int
	Name1, Source1 int
	extArg         Opcode
}

func (i *StoreGlobalReg) Opargs() []int   { return []int{i.Name1, i.Source1} }
func (i *StoreGlobalReg) IsJump() bool    { return false }
func (i *StoreGlobalReg) EncodedLen() int { return encodedLenFor(i.Opargs()) }
func (i *StoreGlobalReg) Sources() []*int { return []*int{&i.Source1} }
func (i *StoreGlobalReg) Dest() *int      { return nil }
func (i *StoreGlobalReg) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}

// UnaryOpReg computes dest = OP source1. SrcOp names which of the several
// source-VM unary opcodes this came from, since the register opcode it
// serializes to depends on it (the "<name>_REG" convention, 4.E).
type UnaryOpReg struct {
	Line   int
	Dest, Source1 int
	SrcOp         Opcode
	extArg        Opcode
}

func (i *UnaryOpReg) Opargs() []int   { return []int{i.Dest, i.Source1} }
func (i *UnaryOpReg) IsJump() bool    { return false }
func (i *UnaryOpReg) EncodedLen() int { return encodedLenFor(i.Opargs()) }
func (i *UnaryOpReg) Sources() []*int { return []*int{&i.Source1} }
func (i *UnaryOpReg) Dest() *int      { return &i.Dest }
func (i *UnaryOpReg) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}

// BinOpReg computes dest = source1 OP source2. SrcOp names which source-VM
// binary or in-place opcode this came from.
type BinOpReg struct {
	Line   int
	Dest, Source1, Source2 int
	SrcOp                  Opcode
	extArg                 Opcode
}

func (i *BinOpReg) Opargs() []int   { return []int{i.Dest, i.Source1, i.Source2} }
func (i *BinOpReg) IsJump() bool    { return false }
func (i *BinOpReg) EncodedLen() int { return encodedLenFor(i.Opargs()) }
func (i *BinOpReg) Sources() []*int { return []*int{&i.Source1, &i.Source2} }
func (i *BinOpReg) Dest() *int      { return &i.Dest }
func (i *BinOpReg) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}

// CompareOpReg computes dest = source1 <compare_op> source2.
type CompareOpReg struct {
	Line   int
	Dest, Source1, Source2, CompareOp int
	extArg                           Opcode
}

func (i *CompareOpReg) Opargs() []int {
	return []int{i.Dest, i.Source1, i.Source2, i.CompareOp}
}
func (i *CompareOpReg) IsJump() bool    { return false }
func (i *CompareOpReg) EncodedLen() int { return encodedLenFor(i.Opargs()) }
func (i *CompareOpReg) Sources() []*int { return []*int{&i.Source1, &i.Source2} }
func (i *CompareOpReg) Dest() *int      { return &i.Dest }
func (i *CompareOpReg) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}

// BuildSeqReg builds a sequence (list/tuple/map) of length elements
// starting at register dest (map doubles the contributing elements at
// the call site, not here). SrcOp distinguishes BUILD_LIST/BUILD_TUPLE/
// BUILD_MAP for serialization.
type BuildSeqReg struct {
	Line   int
	Dest, Length int
	SrcOp        Opcode
	extArg       Opcode
}

func (i *BuildSeqReg) Opargs() []int   { return []int{i.Dest, i.Length} }
func (i *BuildSeqReg) IsJump() bool    { return false }
func (i *BuildSeqReg) EncodedLen() int { return encodedLenFor(i.Opargs()) }
func (i *BuildSeqReg) Sources() []*int { return nil }
func (i *BuildSeqReg) Dest() *int      { return &i.Dest }
func (i *BuildSeqReg) Window() (int, int) { return i.Dest, i.Length }
func (i *BuildSeqReg) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}

// ExtendSeqReg extends the sequence at dest (in place) with source1.
type ExtendSeqReg struct {
	Line   int
	Dest, Source1 int
	extArg        Opcode
}

func (i *ExtendSeqReg) Opargs() []int   { return []int{i.Dest, i.Source1} }
func (i *ExtendSeqReg) IsJump() bool    { return false }
func (i *ExtendSeqReg) EncodedLen() int { return encodedLenFor(i.Opargs()) }
func (i *ExtendSeqReg) Sources() []*int { return []*int{&i.Source1} }
func (i *ExtendSeqReg) Dest() *int      { return &i.Dest }
func (i *ExtendSeqReg) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}

// CallReg calls the callable at dest with nargs positional arguments
// occupying the contiguous registers [dest, dest+nargs).
type CallReg struct {
	Line   int
	Dest, Nargs int
	extArg      Opcode
}

func (i *CallReg) Opargs() []int      { return []int{i.Dest, i.Nargs} }
func (i *CallReg) IsJump() bool       { return false }
func (i *CallReg) EncodedLen() int    { return encodedLenFor(i.Opargs()) }
func (i *CallReg) Sources() []*int    { return nil }
func (i *CallReg) Dest() *int         { return &i.Dest }
func (i *CallReg) Window() (int, int) { return i.Dest, i.Nargs }
func (i *CallReg) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}

// CallKwReg calls with keyword arguments; nreg names the register
// holding the keyword-name tuple.
type CallKwReg struct {
	Line   int
	Dest, Nreg, Nargs int
	extArg            Opcode
}

func (i *CallKwReg) Opargs() []int      { return []int{i.Dest, i.Nreg, i.Nargs} }
func (i *CallKwReg) IsJump() bool       { return false }
func (i *CallKwReg) EncodedLen() int    { return encodedLenFor(i.Opargs()) }
func (i *CallKwReg) Sources() []*int    { return []*int{&i.Nreg} }
func (i *CallKwReg) Dest() *int         { return &i.Dest }
func (i *CallKwReg) Window() (int, int) { return i.Dest, i.Nargs }
func (i *CallKwReg) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}

// JumpAbsReg is an unconditional jump to TargetBlock. The final resolved
// byte address is always encoded as a fixed two-byte field (one
// EXTENDED_ARG prefix) regardless of how large it actually is; see
// DESIGN.md for why a fixed width sidesteps a reflow fixed-point problem.
// SrcOp carries JUMP_FORWARD or JUMP_ABSOLUTE, which are serialized
// unchanged rather than through the "<name>_REG" convention (4.E).
type JumpAbsReg struct {
	Line   int
	TargetBlock int
	SrcOp       Opcode
	addr        int
	extArg      Opcode
}

func (i *JumpAbsReg) Opargs() []int {
	hi, lo := (i.addr>>8)&0xFF, i.addr&0xFF
	return []int{hi, lo}
}
func (i *JumpAbsReg) IsJump() bool    { return true }
func (i *JumpAbsReg) EncodedLen() int { return encodedLenFor(i.Opargs()) }
func (i *JumpAbsReg) Sources() []*int { return nil }
func (i *JumpAbsReg) Dest() *int      { return nil }
func (i *JumpAbsReg) ResolveAddr(addr int) { i.addr = addr }
func (i *JumpAbsReg) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}

// JumpIfReg is a conditional jump testing source1, to TargetBlock. SrcOp
// carries POP_JUMP_IF_TRUE or POP_JUMP_IF_FALSE, which selects the
// register opcode it serializes to.
type JumpIfReg struct {
	Line   int
	TargetBlock int
	Source1     int
	SrcOp       Opcode
	addr        int
	extArg      Opcode
}

func (i *JumpIfReg) Opargs() []int {
	hi, lo := (i.addr>>8)&0xFF, i.addr&0xFF
	return []int{hi, lo, i.Source1}
}
func (i *JumpIfReg) IsJump() bool    { return true }
func (i *JumpIfReg) EncodedLen() int { return encodedLenFor(i.Opargs()) }
func (i *JumpIfReg) Sources() []*int { return []*int{&i.Source1} }
func (i *JumpIfReg) Dest() *int      { return nil }
func (i *JumpIfReg) ResolveAddr(addr int) { i.addr = addr }
func (i *JumpIfReg) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}

// ReturnReg returns source1 from the frame.
type ReturnReg struct {
	Line   int
	Source1 int
	extArg  Opcode
}

func (i *ReturnReg) Opargs() []int   { return []int{i.Source1} }
func (i *ReturnReg) IsJump() bool    { return false }
func (i *ReturnReg) EncodedLen() int { return encodedLenFor(i.Opargs()) }
func (i *ReturnReg) Sources() []*int { return []*int{&i.Source1} }
func (i *ReturnReg) Dest() *int      { return nil }
func (i *ReturnReg) Serialize(op Opcode) []byte {
	return serializeGeneric(op, i.Opargs(), i.extArg)
}
