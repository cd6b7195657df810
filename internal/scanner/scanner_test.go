package scanner

import (
	"testing"

	"github.com/agsc-lang/agsc/errors"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, input string) []Symstring {
	t.Helper()
	s := New(input)
	var out []Symstring
	for {
		sym, err := s.Next()
		require.NoError(t, err)
		if sym.Class == End {
			return out
		}
		out = append(out, sym)
	}
}

func scanErr(t *testing.T, input string) *errors.CompileError {
	t.Helper()
	s := New(input)
	for {
		sym, err := s.Next()
		if err != nil {
			ce, ok := errors.AsCompileError(err)
			require.True(t, ok)
			return ce
		}
		require.NotEqual(t, End, sym.Class, "expected an error for %q", input)
	}
}

func TestPunctuation(t *testing.T) {
	input := "a+=b<<=c>>d...e::f->g!=h&&i||j++--;~?"
	tests := []struct {
		text  string
		class Class
	}{
		{"a", Identifier}, {"+=", Punctuation}, {"b", Identifier},
		{"<<=", Punctuation}, {"c", Identifier}, {">>", Punctuation},
		{"d", Identifier}, {"...", Punctuation}, {"e", Identifier},
		{"::", Punctuation}, {"f", Identifier}, {"->", Punctuation},
		{"g", Identifier}, {"!=", Punctuation}, {"h", Identifier},
		{"&&", Punctuation}, {"i", Identifier}, {"||", Punctuation},
		{"j", Identifier}, {"++", Punctuation}, {"--", Punctuation},
		{";", Punctuation}, {"~", Punctuation}, {"?", Punctuation},
	}
	syms := scanAll(t, input)
	require.Len(t, syms, len(tests))
	for i, tt := range tests {
		require.Equal(t, tt.text, syms[i].Text, "symstring %d", i)
		require.Equal(t, tt.class, syms[i].Class, "symstring %d", i)
	}
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		input string
		texts []string
		class []Class
	}{
		{"42", []string{"42"}, []Class{IntLiteral}},
		{"3.25", []string{"3.25"}, []Class{FloatLiteral}},
		{".5", []string{".5"}, []Class{FloatLiteral}},
		{"1.5.3", []string{"1.5", ".3"}, []Class{FloatLiteral, FloatLiteral}},
		{"2e10", []string{"2e10"}, []Class{FloatLiteral}},
		{"1.5e-3", []string{"1.5e-3"}, []Class{FloatLiteral}},
		{"7else", []string{"7", "else"}, []Class{IntLiteral, Identifier}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			syms := scanAll(t, tt.input)
			require.Len(t, syms, len(tt.texts))
			for i := range syms {
				require.Equal(t, tt.texts[i], syms[i].Text)
				require.Equal(t, tt.class[i], syms[i].Class)
			}
		})
	}
}

func TestCharLiteralsBecomeInts(t *testing.T) {
	syms := scanAll(t, `'A' '\n' '\101' '\x41' '\''`)
	var texts []string
	for _, s := range syms {
		require.Equal(t, IntLiteral, s.Class)
		texts = append(texts, s.Text)
	}
	require.Equal(t, []string{"65", "10", "65", "65", "39"}, texts)
}

func TestStringLiterals(t *testing.T) {
	syms := scanAll(t, `"Hello\tworld\n" "a\[b" "\x07"`)
	require.Len(t, syms, 3)
	require.Equal(t, "Hello\tworld\n", syms[0].Value)
	require.Equal(t, `"Hello\x09world\x0a"`, syms[0].Text)
	require.Equal(t, `a\[b`, syms[1].Value)
	require.Equal(t, "\a", syms[2].Value)
	for _, s := range syms {
		require.Equal(t, StringLiteral, s.Class)
	}
}

func TestLineNumbers(t *testing.T) {
	syms := scanAll(t, "a\nb\r\n\nc")
	require.Equal(t, 1, syms[0].Line)
	require.Equal(t, 2, syms[1].Line)
	require.Equal(t, 4, syms[2].Line)
}

func TestSectionMarkers(t *testing.T) {
	input := "a\nb\n\"__NEWSCRIPTSTART_room1.asc\"\nc\nd"
	s := New(input)
	var sections []string
	s.OnSection(func(name string) { sections = append(sections, name) })
	var lines []int
	for {
		sym, err := s.Next()
		require.NoError(t, err)
		if sym.Class == End {
			break
		}
		lines = append(lines, sym.Line)
	}
	require.Equal(t, []string{"room1.asc"}, sections)
	require.Equal(t, []int{1, 2, 1, 2}, lines)
	require.Equal(t, "room1.asc", s.Section())
}

func TestErrors(t *testing.T) {
	tests := []struct {
		input string
		code  errors.ErrorCode
		msg   string
		line  int
	}{
		{"\"abc", errors.E1001, "End of input encountered in an unclosed string literal", 1},
		{"x\n\"ab\ncd\"", errors.E1001, "String literal may not contain any line breaks (use '[' instead)", 2},
		{"'ab'", errors.E1002, "Expected apostrophe, but found 'b' instead", 1},
		{"'\\['", errors.E1004, `\[ not allowed in single quotes, use '[' instead`, 1},
		{"\"\\q\"", errors.E1004, "Found unknown escape sequence '\\q' in string.", 1},
		{"a @ b", errors.E1003, "The character '@' is not legal in this context", 1},
		{"a..b", errors.E1003, "Must either use '.' or '...'", 1},
		{"f(a]", errors.E1005, "Found ']', this does not match the '(' on this line", 1},
		{"{\n\n)", errors.E1005, "Found ')', this does not match the '{' on line 1", 3},
		{"}", errors.E1005, "There isn't any opening symbol that matches the closing '}'", 1},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := scanErr(t, tt.input)
			require.Equal(t, tt.code, err.Code)
			require.Equal(t, tt.msg, err.Message)
			require.Equal(t, tt.line, err.Line)
		})
	}
}

func TestUnclosed(t *testing.T) {
	s := New("f(\n[")
	scanAllFrom(t, s)
	open, line, ok := s.Unclosed()
	require.True(t, ok)
	require.Equal(t, "[", open)
	require.Equal(t, 2, line)
}

func scanAllFrom(t *testing.T, s *Scanner) {
	t.Helper()
	for {
		sym, err := s.Next()
		require.NoError(t, err)
		if sym.Class == End {
			return
		}
	}
}
