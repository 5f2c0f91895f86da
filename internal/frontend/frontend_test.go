package frontend

import (
	"testing"

	"github.com/xyproto/customasm/internal/diag"
	"github.com/xyproto/customasm/internal/driver"
	"github.com/xyproto/customasm/internal/fileserver"
)

func assembleSource(t *testing.T, src string) *driver.Result {
	t.Helper()
	fs := fileserver.NewMock()
	fs.AddFile("main.asm", []byte(src))
	d := driver.New(New())
	d.RegisterFile("main.asm")
	sink := diag.New()
	res, err := d.Assemble(sink, fs, 4)
	if err != nil {
		t.Fatalf("Assemble() error: %v (diagnostics: %d)", err, sink.Count())
	}
	return res
}

func TestParseSingleByteDirective(t *testing.T) {
	res := assembleSource(t, "d8 0x41\n")
	got := res.Image.Bytes()
	if len(got) != 1 || got[0] != 0x41 {
		t.Fatalf("Bytes() = %v, want [0x41]", got)
	}
}

func TestParseCommaSeparatedDirectiveList(t *testing.T) {
	res := assembleSource(t, "d8 1, 2, 3\n")
	got := res.Image.Bytes()
	want := []byte{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("Bytes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Bytes() = %v, want %v", got, want)
		}
	}
}

func TestParseForwardLabelReference(t *testing.T) {
	res := assembleSource(t, "d8 target\nd8 0\nd8 0\ntarget:\nd8 0xFF\n")
	got := res.Image.Bytes()
	want := []byte{3, 0, 0, 0xFF}
	if len(got) != len(want) {
		t.Fatalf("Bytes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Bytes() = %v, want %v", got, want)
		}
	}
}

func TestParseBacklinkedLabelReference(t *testing.T) {
	res := assembleSource(t, "start:\nd8 0\nd8 0\nd8 start\n")
	got := res.Image.Bytes()
	want := []byte{0, 0, 0}
	if len(got) != len(want) {
		t.Fatalf("Bytes() = %v, want %v", got, want)
	}
}

func TestParseDollarIsCurrentAddress(t *testing.T) {
	res := assembleSource(t, "d8 0\nd8 $\n")
	got := res.Image.Bytes()
	want := []byte{0, 1}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Bytes() = %v, want %v", got, want)
	}
}

func TestParseExplicitBankDeclaration(t *testing.T) {
	res := assembleSource(t, "#bank default offset=0 wordsize=8\nd16 0x1234\n")
	got := res.Image.Bytes()
	want := []byte{0x12, 0x34}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Bytes() = %v, want %v", got, want)
	}
}

func TestParseArithmeticExpression(t *testing.T) {
	res := assembleSource(t, "d8 1 + 2 * 3\n")
	got := res.Image.Bytes()
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("Bytes() = %v, want [7]", got)
	}
}

func TestParseUnknownSymbolFails(t *testing.T) {
	fs := fileserver.NewMock()
	fs.AddFile("main.asm", []byte("d8 nope\n"))
	d := driver.New(New())
	d.RegisterFile("main.asm")
	sink := diag.New()
	if _, err := d.Assemble(sink, fs, 3); err == nil {
		t.Fatalf("expected failure for unknown symbol")
	}
}

func TestParseOverlappingBanksFails(t *testing.T) {
	fs := fileserver.NewMock()
	fs.AddFile("main.asm", []byte(
		"#bank a offset=0 wordsize=8 size=4\n#bank b offset=2 wordsize=8 size=4\n"))
	d := driver.New(New())
	d.RegisterFile("main.asm")
	sink := diag.New()
	if _, err := d.Assemble(sink, fs, 1); err == nil {
		t.Fatalf("expected overlap failure")
	}
	if sink.CountTop() != 1 {
		t.Fatalf("expected the overlap diagnostic in the caller's sink, got %d top-level messages", sink.CountTop())
	}
	top := sink.Messages()[0]
	if top.Kind != diag.KindError {
		t.Fatalf("top-level message kind = %v, want Error", top.Kind)
	}
	if top.Span.Line != 1 {
		t.Fatalf("top-level message span = %+v, want the new bank's declaration line (1)", top.Span)
	}
}

func TestParseValueTooLargeForDirectiveWidth(t *testing.T) {
	fs := fileserver.NewMock()
	fs.AddFile("main.asm", []byte("d8 0x1234\n"))
	d := driver.New(New())
	d.RegisterFile("main.asm")
	sink := diag.New()
	if _, err := d.Assemble(sink, fs, 1); err == nil {
		t.Fatalf("expected a value-too-large failure")
	}
}
