// Command customasm drives the C8 AssemblyDriver against one or more
// root source files, using internal/frontend as the concrete Parser.
//
// Mirrors the teacher's main.go shape: flags first, a verbose banner,
// then the actual work, exiting non-zero with rendered diagnostics on
// failure.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/xyproto/env/v2"
	"sigs.k8s.io/yaml"

	"github.com/xyproto/customasm/internal/bank"
	"github.com/xyproto/customasm/internal/diag"
	"github.com/xyproto/customasm/internal/driver"
	"github.com/xyproto/customasm/internal/fileserver"
	"github.com/xyproto/customasm/internal/frontend"
)

// VerboseMode gates the DEBUG-ish banner lines, following the teacher's
// package-level flag convention.
var VerboseMode bool

func main() {
	defaultMaxIterations := env.Int("CUSTOMASM_MAX_ITERATIONS", 16)

	var maxIterations = flag.Int("max-iterations", defaultMaxIterations, "maximum convergence passes before giving up")
	var outputFlag = flag.String("o", "out.bin", "output image path (.zst suffix or -compress-image compresses with zstd)")
	var dumpBanksFlag = flag.String("dump-banks", "", "dump the resolved bank layout as YAML to this path")
	var compressImage = flag.Bool("compress-image", false, "force zstd compression of the output image")
	var watch = flag.Bool("watch", false, "re-assemble whenever a root file's content changes")
	var verbose = flag.Bool("v", false, "verbose mode")
	flag.Parse()

	VerboseMode = *verbose

	roots := flag.Args()
	if len(roots) == 0 {
		fmt.Fprintf(os.Stderr, "usage: customasm [flags] root.asm [root2.asm ...]\n")
		os.Exit(1)
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "customasm: %d root file(s), max-iterations=%d\n", len(roots), *maxIterations)
	}

	assemble := func() bool {
		return runOnce(roots, *maxIterations, *outputFlag, *dumpBanksFlag, *compressImage)
	}

	if !assemble() {
		os.Exit(1)
	}

	if *watch {
		if err := watchAndReassemble(roots, assemble); err != nil {
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
			os.Exit(1)
		}
	}
}

// runOnce performs one full assemble-and-write cycle, reporting any
// diagnostics to stderr. Returns false on failure.
func runOnce(roots []string, maxIterations int, outputPath, dumpBanksPath string, forceCompress bool) bool {
	fs := &fileserver.OSFileServer{Root: "."}
	d := driver.New(frontend.New())
	for _, root := range roots {
		d.RegisterFile(root)
	}

	sink := diag.New()
	res, err := d.Assemble(sink, fs, maxIterations)
	if err != nil {
		fmt.Fprintf(os.Stderr, "customasm: %v\n", err)
		(&diag.Printer{W: os.Stderr}).Print(sink)
		return false
	}
	if sink.Count() > 0 {
		(&diag.Printer{W: os.Stderr}).Print(sink)
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "customasm: converged after %d iteration(s), %d bank(s)\n", res.Iterations, len(res.Banks.Banks()))
	}

	if err := writeImage(res, outputPath, forceCompress); err != nil {
		fmt.Fprintf(os.Stderr, "customasm: %v\n", err)
		return false
	}

	if dumpBanksPath != "" {
		if err := dumpBanks(res.Banks, dumpBanksPath); err != nil {
			fmt.Fprintf(os.Stderr, "customasm: %v\n", err)
			return false
		}
	}

	return true
}

func writeImage(res *driver.Result, outputPath string, forceCompress bool) error {
	raw := res.Image.Bytes()
	compress := forceCompress || filepath.Ext(outputPath) == ".zst"
	if !compress {
		return os.WriteFile(outputPath, raw, 0644)
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return fmt.Errorf("compressing image: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("closing zstd writer: %w", err)
	}
	return os.WriteFile(outputPath, buf.Bytes(), 0644)
}

// bankDump is the YAML-serializable shape of one resolved bank, for
// -dump-banks build-system introspection.
type bankDump struct {
	Name         string `json:"name"`
	OutputOffset string `json:"output_offset,omitempty"`
	AddrSize     string `json:"addr_size,omitempty"`
	AddrStart    string `json:"addr_start"`
	WordSize     int    `json:"wordsize"`
}

func dumpBanks(reg *bank.Registry, path string) error {
	var dumps []bankDump
	for _, b := range reg.Banks() {
		d := bankDump{Name: b.Name, AddrStart: b.AddrStart.Value().String(), WordSize: b.WordSize}
		if b.OutputOffset != nil {
			d.OutputOffset = b.OutputOffset.String()
		}
		if b.AddrSize != nil {
			d.AddrSize = b.AddrSize.String()
		}
		dumps = append(dumps, d)
	}
	out, err := yaml.Marshal(dumps)
	if err != nil {
		return fmt.Errorf("marshaling bank dump: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}

// watchAndReassemble blocks, re-running assemble whenever a registered
// root file's content changes, per SPEC_FULL.md's -watch CLI mode.
func watchAndReassemble(roots []string, assemble func() bool) error {
	fmt.Fprintf(os.Stderr, "customasm: watching %d file(s) for changes\n", len(roots))

	w, err := fileserver.NewWatcher(func(path string) {
		fmt.Fprintf(os.Stderr, "customasm: %s changed, re-assembling\n", path)
		assemble()
	})
	if err != nil {
		return err
	}
	defer w.Close()

	for _, root := range roots {
		contents, err := os.ReadFile(root)
		if err != nil {
			return err
		}
		if err := w.AddFile(root, contents); err != nil {
			return err
		}
	}

	w.Run()
	return nil
}
