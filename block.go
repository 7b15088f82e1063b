package regvm

// VMTag distinguishes the two parallel block lists a converter builds:
// the source (stack) VM's basic blocks and the target (register) VM's.
type VMTag int

const (
	SourceVM VMTag = iota
	RegisterVM
)

func (t VMTag) String() string {
	if t == SourceVM {
		return "PyVM"
	}
	return "RVM"
}

// unknownAddress is the sentinel recorded for a block whose address has
// not yet been (re)computed; reflow (spec.md 4.F pass 5) replaces it.
const unknownAddress = -1

// Block is a basic block: a stable number, a mutable byte address (or
// unknownAddress), an entry stack level (or unknownAddress, reused as the
// "unknown" sentinel since both are "not yet known, fill in later" slots),
// and an ordered instruction list.
type Block struct {
	Tag          VMTag
	Number       int
	address      int
	stackLevel   int
	instructions []Instruction
}

// NewBlock creates an empty block. Block 0's address is always 0 per
// spec.md 3; every other block starts with an unknown address.
func NewBlock(tag VMTag, number int) *Block {
	addr := unknownAddress
	if number == 0 {
		addr = 0
	}
	return &Block{Tag: tag, Number: number, address: addr, stackLevel: unknownAddress}
}

// Address returns the block's byte offset, or unknownAddress.
func (b *Block) Address() int { return b.address }

// SetAddress sets the block's byte offset directly (used by the
// linearizer, which already knows source addresses from the input, and
// by reflow, which recomputes register addresses).
func (b *Block) SetAddress(addr int) { b.address = addr }

// InvalidateAddress marks the block's address unknown; reflow must run
// again before it (and every later block) can be trusted.
func (b *Block) InvalidateAddress() { b.address = unknownAddress }

// StackLevel returns the simulator's recorded entry stack level for this
// block, or unknownAddress if nothing has set it yet.
func (b *Block) StackLevel() int { return b.stackLevel }

// SetStackLevel records the entry stack level a predecessor computed for
// this block. Per spec.md 4.E / Open Question 1, multiple predecessors
// overwrite last-writer-wins; a differing earlier value is discarded and
// the conflict is not recorded or reported anywhere.
func (b *Block) SetStackLevel(level int) { b.stackLevel = level }

// Len returns the number of instructions currently in the block.
func (b *Block) Len() int { return len(b.instructions) }

// At returns the instruction at index i.
func (b *Block) At(i int) Instruction { return b.instructions[i] }

// Append adds an instruction to the end of the block.
func (b *Block) Append(instr Instruction) {
	b.instructions = append(b.instructions, instr)
}

// ReplaceAt overwrites the instruction at index i.
func (b *Block) ReplaceAt(i int, instr Instruction) {
	b.instructions[i] = instr
}

// DeleteAt removes the instruction at index i, preserving order.
func (b *Block) DeleteAt(i int) {
	b.instructions = append(b.instructions[:i], b.instructions[i+1:]...)
}

// Instructions returns the block's instructions in order. The returned
// slice aliases the block's storage; callers must not retain it across a
// mutating call.
func (b *Block) Instructions() []Instruction { return b.instructions }

// CodeLen is the sum of the encoded length of every instruction in the
// block.
func (b *Block) CodeLen() int {
	total := 0
	for _, instr := range b.instructions {
		total += instr.EncodedLen()
	}
	return total
}
