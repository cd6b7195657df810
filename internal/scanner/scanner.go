// Package scanner converts preprocessed source text into symstrings, the raw
// lexical units the tokenizer interns.
package scanner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agsc-lang/agsc/errors"
)

// NewSectionPrefix starts a string literal that marks the beginning of a new
// virtual input file. The rest of the literal is the section name.
const NewSectionPrefix = "__NEWSCRIPTSTART_"

// Class is the lexical class of a symstring.
type Class int

const (
	End Class = iota
	Identifier
	IntLiteral
	FloatLiteral
	StringLiteral
	Punctuation
)

func (c Class) String() string {
	switch c {
	case End:
		return "end of input"
	case Identifier:
		return "identifier"
	case IntLiteral:
		return "int literal"
	case FloatLiteral:
		return "float literal"
	case StringLiteral:
		return "string literal"
	case Punctuation:
		return "punctuation"
	}
	return "unknown"
}

// Symstring is one lexical unit.
type Symstring struct {
	// Text is the spelling used for interning. String literals are rendered
	// quoted with non-printable bytes hex escaped.
	Text string
	// Value holds the decoded contents of a string literal.
	Value string
	Class Class
	Line  int
}

type opener struct {
	open, close string
	line        int
	section     string
}

// Scanner reads symstrings from an in-memory buffer.
type Scanner struct {
	input     string
	pos       int
	line      int
	section   string
	opens     []opener
	onSection func(name string)
}

// New returns a Scanner positioned at the start of input, on line 1.
func New(input string) *Scanner {
	return &Scanner{input: input, line: 1}
}

// OnSection registers fn to be called whenever a section marker is read.
func (s *Scanner) OnSection(fn func(name string)) {
	s.onSection = fn
}

// Line returns the current 1-based line number within the current section.
func (s *Scanner) Line() int { return s.line }

// Section returns the name of the current section.
func (s *Scanner) Section() string { return s.section }

func (s *Scanner) errorf(code errors.ErrorCode, format string, args ...any) error {
	return errors.Newf(code, format, args...).At(s.section, s.line)
}

func (s *Scanner) peek() byte {
	if s.pos >= len(s.input) {
		return 0
	}
	return s.input[s.pos]
}

func (s *Scanner) peekAt(n int) byte {
	if s.pos+n >= len(s.input) {
		return 0
	}
	return s.input[s.pos+n]
}

func (s *Scanner) eof() bool { return s.pos >= len(s.input) }

func (s *Scanner) skipWhitespace() {
	for !s.eof() {
		ch := s.input[s.pos]
		switch ch {
		case '\n':
			s.line++
		case ' ', '\t', '\r', '\v', '\f':
		default:
			return
		}
		s.pos++
	}
}

// Next returns the next symstring. At the end of the input it returns a
// symstring of class End.
func (s *Scanner) Next() (Symstring, error) {
	for {
		s.skipWhitespace()
		if s.eof() {
			return Symstring{Class: End, Line: s.line}, nil
		}
		sym, err := s.scan()
		if err != nil {
			return Symstring{}, err
		}
		if sym.Class == StringLiteral && strings.HasPrefix(sym.Value, NewSectionPrefix) {
			s.newSection(strings.TrimPrefix(sym.Value, NewSectionPrefix))
			continue
		}
		if sym.Class == Punctuation {
			if err := s.match(sym.Text); err != nil {
				return Symstring{}, err
			}
		}
		return sym, nil
	}
}

func (s *Scanner) newSection(name string) {
	s.section = name
	s.line = 0
	if s.onSection != nil {
		s.onSection(name)
	}
}

func (s *Scanner) scan() (Symstring, error) {
	line := s.line
	ch := s.peek()
	switch {
	case isDigit(ch):
		text, class := s.readNumber()
		return Symstring{Text: text, Class: class, Line: line}, nil
	case ch == '.' && isDigit(s.peekAt(1)):
		text, class := s.readNumber()
		return Symstring{Text: text, Class: class, Line: line}, nil
	case isLetter(ch):
		start := s.pos
		for !s.eof() && (isLetter(s.peek()) || isDigit(s.peek())) {
			s.pos++
		}
		return Symstring{Text: s.input[start:s.pos], Class: Identifier, Line: line}, nil
	case ch == '"':
		value, err := s.readString()
		if err != nil {
			return Symstring{}, err
		}
		return Symstring{Text: printable(value), Value: value, Class: StringLiteral, Line: line}, nil
	case ch == '\'':
		value, err := s.readChar()
		if err != nil {
			return Symstring{}, err
		}
		return Symstring{Text: strconv.Itoa(value), Class: IntLiteral, Line: line}, nil
	}
	text, err := s.readPunctuation()
	if err != nil {
		return Symstring{}, err
	}
	return Symstring{Text: text, Class: Punctuation, Line: line}, nil
}

// readNumber reads digits, at most one decimal point and an optional
// exponent. A second '.' ends the literal.
func (s *Scanner) readNumber() (string, Class) {
	start := s.pos
	class := IntLiteral
	seenPoint, seenExp := false, false
	for !s.eof() {
		ch := s.peek()
		switch {
		case isDigit(ch):
		case ch == '.' && !seenPoint && !seenExp:
			seenPoint = true
			class = FloatLiteral
		case (ch == 'e' || ch == 'E') && !seenExp && (isDigit(s.peekAt(1)) ||
			((s.peekAt(1) == '-' || s.peekAt(1) == '+') && isDigit(s.peekAt(2)))):
			seenExp = true
			class = FloatLiteral
			s.pos++
			if s.peek() == '-' || s.peek() == '+' {
				s.pos++
			}
			continue
		default:
			return s.input[start:s.pos], class
		}
		s.pos++
	}
	return s.input[start:s.pos], class
}

func (s *Scanner) readString() (string, error) {
	s.pos++ // opening quote
	var b strings.Builder
	for {
		if s.eof() {
			return "", s.errorf(errors.E1001, "End of input encountered in an unclosed string literal")
		}
		ch := s.input[s.pos]
		s.pos++
		switch ch {
		case '"':
			return b.String(), nil
		case '\n', '\r':
			return "", s.errorf(errors.E1001, "String literal may not contain any line breaks (use '[' instead)")
		case '\\':
			if s.eof() || s.peek() == '\n' || s.peek() == '\r' {
				return "", s.errorf(errors.E1001, "End of input encountered in an unclosed string literal")
			}
			esc := s.input[s.pos]
			s.pos++
			if esc == '[' {
				b.WriteString(`\[`)
				continue
			}
			c, err := s.escape(esc)
			if err != nil {
				return "", err
			}
			b.WriteByte(c)
		default:
			b.WriteByte(ch)
		}
	}
}

func (s *Scanner) readChar() (int, error) {
	s.pos++ // opening apostrophe
	if s.eof() {
		return 0, s.errorf(errors.E1002, "Expected a character and an apostrophe, but input ended instead")
	}
	ch := s.input[s.pos]
	s.pos++
	if ch == '\\' {
		if s.eof() {
			return 0, s.errorf(errors.E1002, "The input ended inmidst of an escape sequence")
		}
		esc := s.input[s.pos]
		s.pos++
		if esc == '[' {
			return 0, s.errorf(errors.E1004, `\[ not allowed in single quotes, use '[' instead`)
		}
		c, err := s.escape(esc)
		if err != nil {
			return 0, err
		}
		ch = c
	}
	if s.eof() {
		return 0, s.errorf(errors.E1002, "Expected an apostrophe, but input ended instead")
	}
	if closing := s.input[s.pos]; closing != '\'' {
		return 0, s.errorf(errors.E1002, "Expected apostrophe, but found '%c' instead", closing)
	}
	s.pos++
	return int(ch), nil
}

// escape decodes the character after a backslash. Octal and hex escapes
// consume up to three and two further digits respectively.
func (s *Scanner) escape(ch byte) (byte, error) {
	if ch >= '0' && ch <= '7' {
		value := int(ch - '0')
		for i := 0; i < 2; i++ {
			d := s.peek()
			if d < '0' || d > '7' || value*8+int(d-'0') > 255 {
				break
			}
			value = value*8 + int(d-'0')
			s.pos++
		}
		return byte(value), nil
	}
	switch ch {
	case '\'', '"', '\\', '?':
		return ch, nil
	case 'a':
		return '\a', nil
	case 'b':
		return '\b', nil
	case 'e':
		return 27, nil
	case 'f':
		return '\f', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case 'v':
		return '\v', nil
	case 'x':
		value := 0
		for i := 0; i < 2; i++ {
			d, ok := hexValue(s.peek())
			if !ok {
				break
			}
			value = value*16 + d
			s.pos++
		}
		return byte(value), nil
	}
	return 0, s.errorf(errors.E1004, "Found unknown escape sequence '\\%c' in string.", ch)
}

// punctuation lists every multi-character operator by its first character.
// Longer spellings come first.
var punctuation = map[byte][]string{
	'!': {"!="},
	'%': {"%="},
	'&': {"&&", "&="},
	'*': {"*="},
	'+': {"++", "+="},
	'-': {"--", "-=", "->"},
	'/': {"/="},
	':': {"::"},
	'<': {"<<=", "<<", "<="},
	'=': {"=="},
	'>': {">>=", ">>", ">="},
	'^': {"^="},
	'|': {"||", "|="},
	'.': {"..."},
}

const singles = "!%&()*+,-./:;<=>?[]^{|}~"

func (s *Scanner) readPunctuation() (string, error) {
	ch := s.peek()
	for _, p := range punctuation[ch] {
		if strings.HasPrefix(s.input[s.pos:], p) {
			s.pos += len(p)
			return p, nil
		}
	}
	if ch == '.' && s.peekAt(1) == '.' {
		return "", s.errorf(errors.E1003, "Must either use '.' or '...'")
	}
	if strings.IndexByte(singles, ch) >= 0 {
		s.pos++
		return string(ch), nil
	}
	return "", s.errorf(errors.E1003, "The character '%c' is not legal in this context", ch)
}

// match keeps the stack of open brackets and checks each closer against it.
func (s *Scanner) match(text string) error {
	switch text {
	case "(":
		s.opens = append(s.opens, opener{"(", ")", s.line, s.section})
	case "[":
		s.opens = append(s.opens, opener{"[", "]", s.line, s.section})
	case "{":
		s.opens = append(s.opens, opener{"{", "}", s.line, s.section})
	case ")", "]", "}":
		if len(s.opens) == 0 {
			return s.errorf(errors.E1005, "There isn't any opening symbol that matches the closing '%s'", text)
		}
		top := s.opens[len(s.opens)-1]
		s.opens = s.opens[:len(s.opens)-1]
		if top.close == text {
			return nil
		}
		switch {
		case top.section != s.section:
			return s.errorf(errors.E1005, "Found '%s', this does not match the '%s' in %s, line %d", text, top.open, top.section, top.line)
		case top.line == s.line:
			return s.errorf(errors.E1005, "Found '%s', this does not match the '%s' on this line", text, top.open)
		default:
			return s.errorf(errors.E1005, "Found '%s', this does not match the '%s' on line %d", text, top.open, top.line)
		}
	}
	return nil
}

// Unclosed reports the innermost bracket left open, if any.
func (s *Scanner) Unclosed() (open string, line int, ok bool) {
	if len(s.opens) == 0 {
		return "", 0, false
	}
	top := s.opens[len(s.opens)-1]
	return top.open, top.line, true
}

func printable(value string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c >= 32 && c < 127 {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "\\x%02x", c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func isDigit(ch byte) bool  { return ch >= '0' && ch <= '9' }
func isLetter(ch byte) bool { return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') }

func hexValue(ch byte) (int, bool) {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0'), true
	case ch >= 'a' && ch <= 'f':
		return int(ch-'a') + 10, true
	case ch >= 'A' && ch <= 'F':
		return int(ch-'A') + 10, true
	}
	return 0, false
}
