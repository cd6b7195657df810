// Package tokenizer interns the symstrings produced by the scanner and
// renames struct member declarations to their qualified "Struct::member"
// form.
package tokenizer

import (
	"math"
	"strconv"

	"github.com/agsc-lang/agsc/errors"
	"github.com/agsc-lang/agsc/internal/scanner"
	"github.com/agsc-lang/agsc/internal/token"
	"github.com/agsc-lang/agsc/symbols"
)

// StringPool stores the contents of string literals and returns their
// offsets.
type StringPool interface {
	AddString(s string) int
}

type lexeme struct {
	sym     scanner.Symstring
	section string
}

// Tokenizer turns source text into symbol IDs.
type Tokenizer struct {
	scanner *scanner.Scanner
	table   *symbols.Table
	pool    StringPool

	section string
	ahead   []lexeme // at most two lexemes read ahead
	current lexeme

	last       symbols.ID
	structName symbols.ID
	braceDepth int
	parenDepth int
	// Struct and enum names seen so far. They are types even though the
	// parser has not declared them yet.
	typeNames map[symbols.ID]bool
}

// New returns a tokenizer reading src. Interned names go into table and
// string literal contents go into pool.
func New(src string, table *symbols.Table, pool StringPool) *Tokenizer {
	t := &Tokenizer{
		scanner:   scanner.New(src),
		table:     table,
		pool:      pool,
		typeNames: map[symbols.ID]bool{},
	}
	t.scanner.OnSection(func(name string) { t.section = name })
	return t
}

// Line returns the line of the symbol most recently returned by Next.
func (t *Tokenizer) Line() int { return t.current.sym.Line }

// Section returns the section of the symbol most recently returned by Next.
func (t *Tokenizer) Section() string { return t.current.section }

func (t *Tokenizer) fill(n int) error {
	for len(t.ahead) < n {
		sym, err := t.scanner.Next()
		if err != nil {
			return err
		}
		t.ahead = append(t.ahead, lexeme{sym: sym, section: t.section})
	}
	return nil
}

// peek returns the lexeme n positions after the next one without
// consuming anything. n is 0 or 1.
func (t *Tokenizer) peek(n int) (scanner.Symstring, error) {
	if err := t.fill(n + 1); err != nil {
		return scanner.Symstring{}, err
	}
	return t.ahead[n].sym, nil
}

func (t *Tokenizer) errorf(code errors.ErrorCode, format string, args ...any) error {
	return errors.Newf(code, format, args...).At(t.current.section, t.current.sym.Line)
}

// Next returns the next symbol, or None at the end of the input.
func (t *Tokenizer) Next() (symbols.ID, error) {
	if err := t.fill(1); err != nil {
		return symbols.None, err
	}
	t.current, t.ahead = t.ahead[0], t.ahead[1:]
	sym := t.current.sym
	if sym.Class == scanner.End {
		if open, line, ok := t.scanner.Unclosed(); ok {
			return symbols.None, t.errorf(errors.E2005, "The '%s' on line %d is never closed", open, line)
		}
		return symbols.None, nil
	}

	id := t.table.FindOrAdd(sym.Text)
	if err := t.classify(id, sym); err != nil {
		return symbols.None, err
	}
	id, err := t.track(id)
	if err != nil {
		return symbols.None, err
	}
	t.last = id
	return id, nil
}

func (t *Tokenizer) classify(id symbols.ID, sym scanner.Symstring) error {
	if t.table.Kind(id) != symbols.KindNone {
		return nil
	}
	var lit *symbols.Literal
	switch sym.Class {
	case scanner.IntLiteral:
		v, err := strconv.ParseInt(sym.Text, 10, 64)
		if err != nil || v > -math.MinInt32 {
			return t.errorf(errors.E1006, "Literal value '%s' is too high (max. is %d)", sym.Text, math.MaxInt32)
		}
		lit = &symbols.Literal{Vartype: symbols.Of(symbols.Int), Value: int32(v), Overflow: v > math.MaxInt32}
	case scanner.FloatLiteral:
		f, err := strconv.ParseFloat(sym.Text, 32)
		if err != nil {
			return t.errorf(errors.E1006, "Float literal '%s' is out of range", sym.Text)
		}
		lit = &symbols.Literal{Vartype: symbols.Of(symbols.Float), Value: int32(math.Float32bits(float32(f)))}
	case scanner.StringLiteral:
		off := t.pool.AddString(sym.Value)
		lit = &symbols.Literal{Vartype: symbols.Vartype{Base: symbols.String, Const: true}, Value: int32(off)}
	default:
		return nil
	}
	t.table.Set(id, lit, t.current.section, sym.Line)
	return nil
}

// track follows struct declarations and returns the symbol to emit, which
// is the mangled member name for members declared inside a struct body.
func (t *Tokenizer) track(id symbols.ID) (symbols.ID, error) {
	switch id {
	case symbols.OpenParen:
		t.parenDepth++
	case symbols.CloseParen:
		t.parenDepth--
	case symbols.Semicolon:
		if t.braceDepth == 0 {
			t.structName = symbols.None
		}
	}

	switch {
	case id == symbols.Struct || id == symbols.Enum:
		next, err := t.peek(0)
		if err != nil {
			return id, err
		}
		if next.Class == scanner.Identifier {
			name := t.table.FindOrAdd(next.Text)
			t.typeNames[name] = true
			if id == symbols.Struct {
				t.structName = name
				t.braceDepth = 0
			}
		}
	case t.structName == symbols.None:
	case id == symbols.OpenBrace:
		t.braceDepth++
	case id == symbols.CloseBrace:
		t.braceDepth--
		if t.braceDepth <= 0 {
			t.structName = symbols.None
		}
	case t.isMemberName(id):
		return t.table.Mangle(t.structName, id), nil
	}
	return id, nil
}

func (t *Tokenizer) isMemberName(id symbols.ID) bool {
	if t.table.Kind(id) != symbols.KindNone || t.typeNames[id] {
		return false
	}
	if t.parenDepth != 0 || t.braceDepth != 1 || id == t.structName {
		return false
	}
	switch t.last {
	case symbols.KwAttribute, symbols.Import, symbols.TryImport, symbols.Static,
		symbols.Semicolon, symbols.OpenBrace, symbols.OpenBracket:
		return false
	}
	return true
}

// Tokenize reads all of src into a token stream.
func Tokenize(src string, table *symbols.Table, pool StringPool) (*token.Stream, error) {
	t := New(src, table, pool)
	stream := token.NewStream()
	line, section := 0, ""
	first := true
	for {
		id, err := t.Next()
		if err != nil {
			return nil, err
		}
		if id == symbols.None {
			return stream, nil
		}
		newSection := first || t.Section() != section
		if newSection {
			section = t.Section()
			stream.SetSection(section)
		}
		if newSection || t.Line() != line {
			line = t.Line()
			stream.SetLine(line)
		}
		first = false
		stream.Append(id)
	}
}
