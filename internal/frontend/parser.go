package frontend

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/xyproto/customasm/internal/asmstate"
	"github.com/xyproto/customasm/internal/bank"
	"github.com/xyproto/customasm/internal/bigint"
	"github.com/xyproto/customasm/internal/diag"
	"github.com/xyproto/customasm/internal/driver"
	"github.com/xyproto/customasm/internal/eval"
	"github.com/xyproto/customasm/internal/fileserver"
	"github.com/xyproto/customasm/internal/symtab"
)

// Frontend implements driver.Parser over the reduced grammar described
// in the package doc comment.
type Frontend struct{}

// New returns a Frontend.
func New() *Frontend { return &Frontend{} }

var _ driver.Parser = (*Frontend)(nil)

type parser struct {
	filename string
	toks     []Token
	pos      int

	st         *driver.State
	curBank    string
	curOffset  map[string]int
	haveBank   map[string]bool
}

// Parse reads fileName from fs and populates st, per driver.Parser.
func (f *Frontend) Parse(fileName string, fs fileserver.FileServer, st *driver.State) error {
	contents, err := fs.ReadFile(fileName)
	if err != nil {
		return err
	}
	lx := NewLexer(string(contents))
	var toks []Token
	for {
		t := lx.Next()
		toks = append(toks, t)
		if t.Type == TokEOF {
			break
		}
	}
	p := &parser{
		filename:  fileName,
		toks:      toks,
		st:        st,
		curBank:   "",
		curOffset: make(map[string]int),
		haveBank:  make(map[string]bool),
	}
	return p.parseProgram()
}

func (p *parser) tok() Token  { return p.toks[p.pos] }
func (p *parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) span() diag.Span {
	return diag.Span{File: p.filename, Line: p.tok().Line}
}

func (p *parser) skipNewlines() {
	for p.tok().Type == TokNewline {
		p.advance()
	}
}

func (p *parser) parseProgram() error {
	for {
		p.skipNewlines()
		if p.tok().Type == TokEOF {
			return nil
		}
		if err := p.parseStatement(); err != nil {
			return err
		}
		if p.tok().Type != TokEOF && p.tok().Type != TokNewline {
			return fmt.Errorf("%s:%d: expected end of line, found unexpected input", p.filename, p.tok().Line+1)
		}
		p.skipNewlines()
	}
}

func (p *parser) parseStatement() error {
	switch {
	case p.tok().Type == TokHash:
		return p.parseBankDecl()
	case p.tok().Type == TokIdent && p.toks[p.pos+1].Type == TokColon:
		return p.parseLabel()
	case p.tok().Type == TokIdent && IsKeyword(p.tok().Text):
		return p.parseDataDirective()
	default:
		return fmt.Errorf("%s:%d: expected a bank declaration, label, or data directive", p.filename, p.tok().Line+1)
	}
}

// parseBankDecl handles "#bank name key=val key=val ...".
func (p *parser) parseBankDecl() error {
	line := p.tok().Line
	p.advance() // '#'
	if p.tok().Type != TokIdent || p.tok().Text != "bank" {
		return fmt.Errorf("%s:%d: expected 'bank' after '#'", p.filename, line+1)
	}
	p.advance()
	if p.tok().Type != TokIdent {
		return fmt.Errorf("%s:%d: expected bank name", p.filename, p.tok().Line+1)
	}
	name := p.advance().Text
	if name == "default" {
		name = ""
	}

	b := &bank.Bank{
		Name:         name,
		OutputOffset: big.NewInt(0),
		AddrStart:    bigint.FromInt64(0),
		WordSize:     8,
		DeclSpan:     diag.Span{File: p.filename, Line: line},
	}
	for p.tok().Type == TokIdent {
		key := p.advance().Text
		if p.tok().Type != TokEquals {
			return fmt.Errorf("%s:%d: expected '=' after bank attribute %q", p.filename, p.tok().Line+1, key)
		}
		p.advance()
		if p.tok().Type != TokNumber {
			return fmt.Errorf("%s:%d: expected a numeric value for bank attribute %q", p.filename, p.tok().Line+1, key)
		}
		n, err := parseIntLiteral(p.advance().Text)
		if err != nil {
			return err
		}
		switch key {
		case "offset":
			b.OutputOffset = n
		case "wordsize":
			b.WordSize = int(n.Int64())
		case "addrstart":
			b.AddrStart = bigint.New(n)
		case "size":
			b.AddrSize = n
		default:
			return fmt.Errorf("%s:%d: unknown bank attribute %q", p.filename, line+1, key)
		}
	}

	if err := p.st.Banks.Register(b, p.st.Sink); err != nil {
		return fmt.Errorf("%s:%d: %w", p.filename, line+1, err)
	}
	p.haveBank[name] = true
	p.curBank = name
	p.curOffset[name] = 0
	return nil
}

func (p *parser) ensureDefaultBank() {
	if p.haveBank[p.curBank] {
		return
	}
	b := &bank.Bank{
		Name:         p.curBank,
		OutputOffset: big.NewInt(0),
		AddrStart:    bigint.FromInt64(0),
		WordSize:     8,
	}
	p.st.Banks.Register(b, p.st.Sink) // default bank never collides with nothing
	p.haveBank[p.curBank] = true
}

func (p *parser) parseLabel() error {
	line := p.tok().Line
	name := p.advance().Text
	p.advance() // ':'
	p.ensureDefaultBank()

	b := p.st.Banks.ByName(p.curBank)
	addr, err := bank.Address(b, p.curOffset[p.curBank])
	if err != nil {
		msg := fmt.Sprintf("label %q: %s", name, err)
		p.st.Sink.Error(p.filename, line, msg)
		return fmt.Errorf("%s:%d: %s", p.filename, line+1, msg)
	}
	p.st.Symbols.Declare(symtab.Context{}, 0, []string{name}, eval.Int(addr))
	return nil
}

// parseDataDirective handles "dN expr, expr, ...", one invocation of
// width N bits per expression.
func (p *parser) parseDataDirective() error {
	line := p.tok().Line
	kw := p.advance().Text
	width, err := strconv.Atoi(kw[1:])
	if err != nil || width <= 0 {
		return fmt.Errorf("%s:%d: invalid data directive %q", p.filename, line+1, kw)
	}
	p.ensureDefaultBank()

	for {
		expr, err := p.parseExpr()
		if err != nil {
			return err
		}
		offset := p.curOffset[p.curBank]
		p.st.BankDataFor(p.curBank).Invocations = append(p.st.BankDataFor(p.curBank).Invocations, &asmstate.Invocation{
			Kind:     asmstate.KindData,
			DataExpr: expr,
			ElemSize: &width,
			Context: asmstate.Context{
				BitOffset: offset,
				BankName:  p.curBank,
				SymbolCtx: symtab.Context{},
			},
			Span:      diag.Span{File: p.filename, Line: line},
			SizeGuess: width,
		})
		p.curOffset[p.curBank] = offset + width
		p.st.BankDataFor(p.curBank).CurBitOffset = offset + width

		if p.tok().Type != TokComma {
			break
		}
		p.advance()
	}
	return nil
}

func parseIntLiteral(text string) (*big.Int, error) {
	base := 10
	digits := text
	switch {
	case strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X"):
		base, digits = 16, text[2:]
	case strings.HasPrefix(text, "0b") || strings.HasPrefix(text, "0B"):
		base, digits = 2, text[2:]
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("malformed integer literal %q", text)
	}
	return n, nil
}

// Expression grammar, precedence climbing from the widest-scoped
// operator down.
func (p *parser) parseExpr() (eval.Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (eval.Expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok().Type == TokPipePipe {
		span := p.span()
		p.advance()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = &eval.BinOp{Op: "||", L: l, R: r, Span: span}
	}
	return l, nil
}

func (p *parser) parseAnd() (eval.Expr, error) {
	l, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	for p.tok().Type == TokAmpAmp {
		span := p.span()
		p.advance()
		r, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		l = &eval.BinOp{Op: "&&", L: l, R: r, Span: span}
	}
	return l, nil
}

func (p *parser) parseBitOr() (eval.Expr, error) {
	l, err := p.parseBitXor()
	if err != nil {
		return nil, err
	}
	for p.tok().Type == TokPipe {
		span := p.span()
		p.advance()
		r, err := p.parseBitXor()
		if err != nil {
			return nil, err
		}
		l = &eval.BinOp{Op: "|", L: l, R: r, Span: span}
	}
	return l, nil
}

func (p *parser) parseBitXor() (eval.Expr, error) {
	l, err := p.parseBitAnd()
	if err != nil {
		return nil, err
	}
	for p.tok().Type == TokCaret {
		span := p.span()
		p.advance()
		r, err := p.parseBitAnd()
		if err != nil {
			return nil, err
		}
		l = &eval.BinOp{Op: "^", L: l, R: r, Span: span}
	}
	return l, nil
}

func (p *parser) parseBitAnd() (eval.Expr, error) {
	l, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.tok().Type == TokAmp {
		span := p.span()
		p.advance()
		r, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		l = &eval.BinOp{Op: "&", L: l, R: r, Span: span}
	}
	return l, nil
}

func (p *parser) parseEquality() (eval.Expr, error) {
	l, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.tok().Type == TokEq || p.tok().Type == TokNe {
		op, span := "==", p.span()
		if p.tok().Type == TokNe {
			op = "!="
		}
		p.advance()
		r, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		l = &eval.BinOp{Op: op, L: l, R: r, Span: span}
	}
	return l, nil
}

func (p *parser) parseRelational() (eval.Expr, error) {
	l, err := p.parseShift()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.tok().Type {
		case TokLt:
			op = "<"
		case TokLe:
			op = "<="
		case TokGt:
			op = ">"
		case TokGe:
			op = ">="
		default:
			return l, nil
		}
		span := p.span()
		p.advance()
		r, err := p.parseShift()
		if err != nil {
			return nil, err
		}
		l = &eval.BinOp{Op: op, L: l, R: r, Span: span}
	}
}

func (p *parser) parseShift() (eval.Expr, error) {
	l, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.tok().Type == TokShl || p.tok().Type == TokShr {
		op, span := "<<", p.span()
		if p.tok().Type == TokShr {
			op = ">>"
		}
		p.advance()
		r, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		l = &eval.BinOp{Op: op, L: l, R: r, Span: span}
	}
	return l, nil
}

func (p *parser) parseAdditive() (eval.Expr, error) {
	l, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.tok().Type == TokPlus || p.tok().Type == TokMinus {
		op, span := "+", p.span()
		if p.tok().Type == TokMinus {
			op = "-"
		}
		p.advance()
		r, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		l = &eval.BinOp{Op: op, L: l, R: r, Span: span}
	}
	return l, nil
}

func (p *parser) parseTerm() (eval.Expr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok().Type == TokStar || p.tok().Type == TokSlash || p.tok().Type == TokPercent {
		var op string
		switch p.tok().Type {
		case TokStar:
			op = "*"
		case TokSlash:
			op = "/"
		case TokPercent:
			op = "%"
		}
		span := p.span()
		p.advance()
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = &eval.BinOp{Op: op, L: l, R: r, Span: span}
	}
	return l, nil
}

func (p *parser) parseUnary() (eval.Expr, error) {
	switch p.tok().Type {
	case TokMinus:
		span := p.span()
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &eval.UnaryOp{Op: "-", X: x, Span: span}, nil
	case TokBang:
		span := p.span()
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &eval.UnaryOp{Op: "!", X: x, Span: span}, nil
	case TokTilde:
		span := p.span()
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &eval.UnaryOp{Op: "~", X: x, Span: span}, nil
	default:
		return p.parsePrimary()
	}
}

func (p *parser) parsePrimary() (eval.Expr, error) {
	switch p.tok().Type {
	case TokNumber:
		span := p.span()
		text := p.advance().Text
		n, err := parseIntLiteral(text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", p.filename, span.Line+1, err)
		}
		return &eval.IntLit{Value: bigint.New(n), Span: span}, nil
	case TokDollar:
		span := p.span()
		p.advance()
		return &eval.VarRef{Hierarchy: []string{"$"}, Span: span}, nil
	case TokLParen:
		p.advance()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.tok().Type != TokRParen {
			return nil, fmt.Errorf("%s:%d: expected ')'", p.filename, p.tok().Line+1)
		}
		p.advance()
		return x, nil
	case TokIdent:
		span := p.span()
		hierarchy := []string{p.advance().Text}
		for p.tok().Type == TokDot {
			p.advance()
			if p.tok().Type != TokIdent {
				return nil, fmt.Errorf("%s:%d: expected identifier after '.'", p.filename, p.tok().Line+1)
			}
			hierarchy = append(hierarchy, p.advance().Text)
		}
		if len(hierarchy) == 1 && hierarchy[0] == "assert" && p.tok().Type == TokLParen {
			return p.parseCall("assert", span)
		}
		return &eval.VarRef{Hierarchy: hierarchy, Span: span}, nil
	default:
		return nil, fmt.Errorf("%s:%d: expected an expression", p.filename, p.tok().Line+1)
	}
}

func (p *parser) parseCall(name string, span diag.Span) (eval.Expr, error) {
	p.advance() // '('
	var args []eval.Expr
	if p.tok().Type != TokRParen {
		for {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.tok().Type != TokComma {
				break
			}
			p.advance()
		}
	}
	if p.tok().Type != TokRParen {
		return nil, fmt.Errorf("%s:%d: expected ')' to close call to %q", p.filename, p.tok().Line+1, name)
	}
	p.advance()
	return &eval.Call{Func: name, Args: args, Span: span}, nil
}
