package regvm

import (
	"bytes"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
)

// dumpDiagnostics renders both VMs' block lists as tables, one row per
// instruction (spec.md 4.I). It is built only on the fatal "unhandled
// source opcode" path and attached to the returned error, so a caller can
// print exactly where translation broke down without a debugger.
func dumpDiagnostics(table OpcodeTable, sourceBlocks, regBlocks []*Block) string {
	var buf bytes.Buffer
	highlight := isatty.IsTerminal(os.Stdout.Fd())

	writeVM(&buf, table, sourceBlocks, highlight)
	writeVM(&buf, table, regBlocks, highlight)
	return buf.String()
}

func writeVM(buf *bytes.Buffer, table OpcodeTable, blocks []*Block, highlight bool) {
	if len(blocks) == 0 {
		return
	}
	tag := blocks[0].Tag
	fmt.Fprintf(buf, "%s blocks\n", tag)

	tw := tablewriter.NewWriter(buf)
	tw.SetHeader([]string{"block", "index", "opcode", "opargs"})
	for _, b := range blocks {
		for i := 0; i < b.Len(); i++ {
			instr := b.At(i)
			name := instructionName(table, instr)
			row := []string{
				fmt.Sprintf("%d", b.Number),
				fmt.Sprintf("%d", i),
				name,
				fmt.Sprintf("%v", instr.Opargs()),
			}
			if highlight && name == "?" {
				for j, cell := range row {
					row[j] = color.RedString(cell)
				}
			}
			tw.Append(row)
		}
	}
	tw.Render()
}

// instructionName best-effort names an instruction for the diagnostic
// table: source instructions look themselves up in the table directly;
// register instructions are named through the same family resolution
// emission uses.
func instructionName(table OpcodeTable, instr Instruction) string {
	switch v := instr.(type) {
	case *RawSource:
		if name, ok := table.Opname(v.Op); ok {
			return name
		}
	case *Jump:
		if name, ok := table.Opname(v.Op); ok {
			return name
		}
	case Nop:
		return "NOP"
	default:
		if op, ok := regOpcodeFor(table, instr); ok {
			if name, ok := table.Opname(op); ok {
				return name
			}
		}
	}
	return "?"
}
