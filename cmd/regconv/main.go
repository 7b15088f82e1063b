// Command regconv is a thin driver over the regvm converter core
// (grounded directly on the teacher's cmd/bbcdisasm disasm/list/extract
// commands), converting one or more JSON-encoded code units from a
// stack VM into their register-VM equivalents.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	cli "github.com/urfave/cli/v2"

	"regvm"
)

// codeUnitEnvelope is the JSON shape regconv reads and writes. It exists
// only at this CLI boundary; the core never marshals a CodeUnit itself.
type codeUnitEnvelope struct {
	Code      []byte   `json:"code"`
	VarNames  []string `json:"var_names"`
	Names     []string `json:"names"`
	Consts    []any    `json:"consts"`
	NLocals   int      `json:"nlocals"`
	StackSize int      `json:"stack_size"`
	FirstLine int       `json:"first_line"`
	Lnotab    []byte   `json:"lnotab"`
}

type resultEnvelope struct {
	Code   []byte `json:"code"`
	Lnotab []byte `json:"lnotab"`
}

func readCodeUnit(path string) (regvm.CodeUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return regvm.CodeUnit{}, err
	}
	var in codeUnitEnvelope
	if err := json.Unmarshal(data, &in); err != nil {
		return regvm.CodeUnit{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return regvm.CodeUnit{
		Code:      in.Code,
		VarNames:  in.VarNames,
		Names:     in.Names,
		Consts:    in.Consts,
		NLocals:   in.NLocals,
		StackSize: in.StackSize,
		FirstLine: in.FirstLine,
		Lnotab:    in.Lnotab,
	}, nil
}

func outputPath(inPath, outDir string) string {
	base := strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath))
	return filepath.Join(outDir, base+".rvm.json")
}

func convertOne(table regvm.OpcodeTable, inPath, outDir string, obs regvm.Observer) error {
	unit, err := readCodeUnit(inPath)
	if err != nil {
		return err
	}

	conv, err := regvm.NewConverter(table, unit, obs)
	if err != nil {
		return fmt.Errorf("%s: %w", inPath, err)
	}
	code, lnotab, err := conv.Convert()
	if err != nil {
		return fmt.Errorf("%s: %w", inPath, err)
	}

	out, err := json.MarshalIndent(resultEnvelope{Code: code, Lnotab: lnotab}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath(inPath, outDir), out, 0644)
}

// convertAll runs convertOne over every input file with a bounded worker
// pool: a plain sync.WaitGroup plus a buffered channel semaphore, since
// converting a code unit is CPU-only and already embarrassingly parallel
// per file (spec.md 5).
func convertAll(files []string, outDir string, concurrency int, stats bool) error {
	if outDir != "" {
		if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
			return fmt.Errorf("could not create directory %s: %w", outDir, err)
		}
	}

	table := regvm.DefaultOpcodeTable()
	obs := regvm.NewCountingObserver()

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	errs := make([]error, len(files))

	for i, f := range files {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, f string) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = convertOne(table, f, outDir, obs)
		}(i, f)
	}
	wg.Wait()

	var failed []string
	for i, err := range errs {
		if err != nil {
			fmt.Fprintf(os.Stderr, "regconv: %v\n", err)
			failed = append(failed, files[i])
		}
	}

	if stats {
		printStats(obs)
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to convert %d of %d files", len(failed), len(files))
	}
	return nil
}

func printStats(obs *regvm.CountingObserver) {
	counts := obs.Counts()
	fmt.Fprintln(os.Stdout, "opcode  count")
	for op, n := range counts {
		fmt.Fprintf(os.Stdout, "%-6d  %d\n", op, n)
	}
	if fatal := obs.LastFatal(); fatal != nil {
		fmt.Fprintf(os.Stderr, "last fatal error: %v\n", fatal)
	}
}

func main() {
	app := cli.NewApp()
	app.Name = "regconv"
	app.Usage = "Convert stack-VM code units into their register-VM equivalents"
	app.Action = func(c *cli.Context) error {
		cli.ShowAppHelp(c)
		return nil
	}
	app.Commands = []*cli.Command{
		{
			Name:      "convert",
			Aliases:   []string{"c"},
			Usage:     "Convert one or more JSON-encoded code units",
			ArgsUsage: "[--out outDir] [--stats] file [file] ...",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "out",
					Value: ".",
					Usage: "output directory for converted code units",
				},
				&cli.BoolFlag{
					Name:  "stats",
					Usage: "print a per-opcode translation count table",
				},
				&cli.IntFlag{
					Name:  "concurrency",
					Value: 4,
					Usage: "maximum number of files converted at once",
				},
			},
			Action: func(c *cli.Context) error {
				args := c.Args()
				if args.Len() < 1 {
					return cli.Exit("Insufficient arguments", 1)
				}
				if err := convertAll(args.Slice(), c.String("out"), c.Int("concurrency"), c.Bool("stats")); err != nil {
					return cli.Exit(err, 1)
				}
				return nil
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "regconv: %v\n", err)
		os.Exit(1)
	}
}
