package regvm

import (
	"hash/fnv"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultLineTableCacheSize bounds the process-wide lineTable cache
// (4.H). It is a performance convenience, not a correctness dependency:
// a cache miss just redecodes lnotab.
const defaultLineTableCacheSize = 256

var lineTableCache, _ = lru.New[uint64, lineTable](defaultLineTableCacheSize)

// breakpoint is a single (offset, line) entry: line is in effect from
// offset onward, until the next breakpoint.
type breakpoint struct {
	offset int
	line   int
}

// lineTable is the decoded form of (FirstLine, Lnotab): a sorted list of
// breakpoints used to answer "what line is this byte offset in" (spec.md
// 4.D, 7).
type lineTable struct {
	firstLine   int
	breakpoints []breakpoint
}

// newLineTable decodes co_lnotab's alternating (address_delta,
// line_delta) byte pairs into a sorted breakpoint list, consulting (and
// populating) the shared LRU cache keyed by a hash of the inputs, the
// same code-object-identity cache used by the example corpus's EVM-to-
// register bytecode converter to avoid redoing this decode for bytecode
// it has already seen.
func newLineTable(firstLine int, lnotab []byte) lineTable {
	key := lineTableCacheKey(firstLine, lnotab)
	if cached, ok := lineTableCache.Get(key); ok {
		return cached
	}
	t := decodeLineTable(firstLine, lnotab)
	lineTableCache.Add(key, t)
	return t
}

func lineTableCacheKey(firstLine int, lnotab []byte) uint64 {
	h := fnv.New64a()
	h.Write([]byte{
		byte(firstLine), byte(firstLine >> 8),
		byte(firstLine >> 16), byte(firstLine >> 24),
	})
	h.Write(lnotab)
	return h.Sum64()
}

func decodeLineTable(firstLine int, lnotab []byte) lineTable {
	t := lineTable{firstLine: firstLine, breakpoints: []breakpoint{{0, firstLine}}}
	addr, line := 0, firstLine
	for i := 0; i+1 < len(lnotab); i += 2 {
		addr += int(lnotab[i])
		line += int(int8(lnotab[i+1]))
		t.breakpoints = append(t.breakpoints, breakpoint{addr, line})
	}
	return t
}

// LineAt returns the most recent line number at or before offset. An
// offset preceding the table's first entry returns firstLine (spec.md
// 7's explicit edge case).
func (t lineTable) LineAt(offset int) int {
	// sort.Search finds the first breakpoint strictly after offset; the
	// line in effect is the one just before it.
	idx := sort.Search(len(t.breakpoints), func(i int) bool {
		return t.breakpoints[i].offset > offset
	})
	if idx == 0 {
		return t.firstLine
	}
	return t.breakpoints[idx-1].line
}

// lnotabBuilder accumulates (address_delta, line_delta) pairs while
// walking the final register-VM instruction stream in emission order
// (spec.md 4.F, "Line-number table").
type lnotabBuilder struct {
	firstLine    int
	lastLine     int
	lastAddress  int
	address      int
	out          []byte
}

func newLnotabBuilder(firstLine int) *lnotabBuilder {
	return &lnotabBuilder{firstLine: firstLine, lastLine: firstLine}
}

// Advance records instr's line number at the builder's current address,
// then advances the address by instr's encoded length. Equal or earlier
// line numbers inherit and emit nothing.
func (b *lnotabBuilder) Advance(line, encodedLen int) {
	if line > b.lastLine {
		b.out = append(b.out, byte(b.address-b.lastAddress), byte(line-b.lastLine))
		b.lastLine = line
		b.lastAddress = b.address
	}
	b.address += encodedLen
}

func (b *lnotabBuilder) Bytes() []byte {
	if b.out == nil {
		return []byte{}
	}
	return b.out
}
