// Package testfmt parses the §6 test-expectation comment format for
// fixture-driven tests: "; = 0xHEX" output expectations and
// "; error:"/"; note:" diagnostic expectations. No other package in this
// repository calls it; the driver package's tests build State directly.
// Grounded on original_source/src/test/asm.rs's test-comment scanner
// (see SPEC_FULL.md Supplemented Features).
package testfmt

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/xyproto/customasm/internal/bigint"
	"github.com/xyproto/customasm/internal/bitvec"
)

// ExpectedDiag is one expected diagnostic: kind, location, and a
// substring the rendered message must contain.
type ExpectedDiag struct {
	Kind    string // "error" or "note"
	File    string
	Line    int // 0-indexed
	Excerpt string
}

// Case is the parsed expectation set for one test-fixture source file.
type Case struct {
	Source      string
	Bits        *bitvec.BitVector
	Diagnostics []ExpectedDiag
}

// Parse scans src (the contents of a fixture file named filename) and
// builds the expectation Case described by its "; = ..." and
// "; error:"/"; note:" comments.
func Parse(filename, src string) (*Case, error) {
	c := &Case{Source: src, Bits: bitvec.New()}
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		idx := strings.Index(line, ";")
		if idx < 0 {
			continue
		}
		comment := strings.TrimSpace(line[idx+1:])
		if comment == "" {
			continue
		}
		for _, rawPart := range strings.Split(comment, "/") {
			part := strings.TrimSpace(rawPart)
			if part == "" {
				continue
			}
			if err := c.parseDirective(filename, i, part); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func (c *Case) parseDirective(filename string, lineIdx int, part string) error {
	switch {
	case strings.HasPrefix(part, "="):
		return c.parseEmission(part)
	case strings.HasPrefix(part, "error:"):
		return c.parseDiag("error", filename, lineIdx, strings.TrimSpace(strings.TrimPrefix(part, "error:")))
	case strings.HasPrefix(part, "note:"):
		return c.parseDiag("note", filename, lineIdx, strings.TrimSpace(strings.TrimPrefix(part, "note:")))
	case strings.Contains(part, ":"):
		return fmt.Errorf("%s:%d: malformed test directive: %q", filename, lineIdx+1, part)
	default:
		// A plain comment with no recognized directive marker; not an
		// expectation, ignored.
		return nil
	}
}

func (c *Case) parseEmission(part string) error {
	rest := strings.TrimSpace(strings.TrimPrefix(part, "="))
	if rest == "0x" || rest == "" {
		// "this line emits nothing" — explicit no-op.
		return nil
	}
	if !strings.HasPrefix(rest, "0x") {
		return fmt.Errorf("malformed emission directive: %q", part)
	}
	hexDigits := rest[2:]
	v, ok := new(big.Int).SetString(hexDigits, 16)
	if !ok {
		return fmt.Errorf("malformed hex value in emission directive: %q", part)
	}
	width := 4 * len(hexDigits)
	c.Bits.WriteBigInt(c.Bits.Len(), bigint.WithSize(v, width))
	return nil
}

func (c *Case) parseDiag(kind, filename string, lineIdx int, rest string) error {
	file := filename
	line := lineIdx
	excerpt := rest
	if f, l, e, ok := splitFileLineExcerpt(rest); ok {
		if f != "_" {
			file = f
		}
		line = l - 1
		excerpt = e
	}
	c.Diagnostics = append(c.Diagnostics, ExpectedDiag{Kind: kind, File: file, Line: line, Excerpt: excerpt})
	return nil
}

// splitFileLineExcerpt recognizes the explicit "FILE:LINE:EXCERPT" form.
// Excerpts that themselves contain a colon without a FILE:LINE prefix
// are not distinguishable from this form and should avoid a leading
// "word:digits:" shape in fixture files.
func splitFileLineExcerpt(rest string) (file string, line int, excerpt string, ok bool) {
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 {
		return "", 0, "", false
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, "", false
	}
	return parts[0], n, parts[2], true
}
