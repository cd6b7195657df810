package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/agsc-lang/agsc/errz"
	"github.com/stretchr/testify/require"
)

func TestCompileErrorMessage(t *testing.T) {
	err := Newf(E3001, "Undefined symbol '%s'", "foo").At("GlobalScript.asc", 12)
	require.Equal(t, errz.Semantic, err.Kind)
	require.Equal(t, "GlobalScript.asc:12: Undefined symbol 'foo'", err.Error())
}

func TestCompileErrorWithoutLocation(t *testing.T) {
	err := Newf(E2001, "Unexpected '%s'", "}")
	require.Equal(t, "Unexpected '}'", err.Error())
	require.Equal(t, errz.Syntax, err.Kind)
}

func TestInternalErrorIsDistinct(t *testing.T) {
	err := Internalf("negative parameter list length %d", -1).At("", 3)
	require.Equal(t, errz.Internal, err.Kind)
	require.Equal(t, "3: internal error: negative parameter list length -1", err.Error())
}

func TestCodeKinds(t *testing.T) {
	tests := []struct {
		code ErrorCode
		kind errz.Kind
	}{
		{E1001, errz.Lexical},
		{E1005, errz.Lexical},
		{E2004, errz.Syntax},
		{E3009, errz.Semantic},
		{E9001, errz.Internal},
		{ErrorCode(""), errz.Internal},
	}
	for _, tt := range tests {
		require.Equal(t, tt.kind, tt.code.Kind(), string(tt.code))
	}
	require.Equal(t, "type mismatch", E3003.Description())
	require.Equal(t, "unknown error", ErrorCode("E0000").Description())
}

func TestAsCompileError(t *testing.T) {
	inner := Newf(E3007, "'break' is only valid inside a loop or a switch statement block")
	wrapped := fmt.Errorf("room1.asc: %w", inner)
	ce, ok := AsCompileError(wrapped)
	require.True(t, ok)
	require.Same(t, inner, ce)

	_, ok = AsCompileError(fmt.Errorf("plain"))
	require.False(t, ok)
}

func TestSuggestSimilar(t *testing.T) {
	candidates := []string{"player", "Player", "playSound", "cEgo", "Character::Walk", "42", ""}

	s := SuggestSimilar("palyer", candidates)
	require.NotEmpty(t, s)
	require.Equal(t, "Player", s[0].Value)

	s = SuggestSimilar("PLAYER", candidates)
	require.Len(t, s, 2)
	require.Equal(t, 0, s[0].Distance)

	s = SuggestSimilar("Character::Walx", candidates)
	require.Len(t, s, 1)
	require.Equal(t, "Character::Walk", s[0].Value)

	require.Empty(t, SuggestSimilar("zzzzzzzz", candidates))
	require.Nil(t, SuggestSimilar("", candidates))
}

func TestSuggestSimilarFilters(t *testing.T) {
	// The misspelled name itself is in the table and is never offered.
	s := SuggestSimilar("foo", []string{"foo", "food", "Foo", "fo", "x"})
	require.Equal(t, []Suggestion{{Value: "Foo"}, {Value: "fo", Distance: 1}, {Value: "food", Distance: 1}}, s)

	// Plain names are not offered for a qualified target and vice versa.
	candidates := []string{"Walk", "Character::Walk", "Character::Talk"}
	s = SuggestSimilar("Walx", candidates)
	require.Equal(t, []Suggestion{{Value: "Walk", Distance: 1}}, s)
	s = SuggestSimilar("Character::Walk", candidates)
	require.Equal(t, []Suggestion{{Value: "Character::Talk", Distance: 1}}, s)

	// Short names only match at distance 1.
	require.Empty(t, SuggestSimilar("abc", []string{"xyc", "_9", "9abc"}))

	s = SuggestSimilar("counter", []string{"counter1", "counter2", "counter3", "counter4", "Counter"})
	require.Len(t, s, MaxSuggestions)
	require.Equal(t, "Counter", s[0].Value)
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"palyer", "player", 2},
		{"flaw", "lawn", 2},
		{"größe", "grosse", 3},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, editDistance(tt.a, tt.b), "%q %q", tt.a, tt.b)
		require.Equal(t, tt.want, editDistance(tt.b, tt.a), "%q %q", tt.b, tt.a)
	}
}

func TestFormatSuggestions(t *testing.T) {
	require.Equal(t, "", FormatSuggestions(nil))
	require.Equal(t, "Did you mean 'x'?", FormatSuggestions([]Suggestion{{Value: "x"}}))
	require.Equal(t, "Did you mean one of: 'a', 'b'?",
		FormatSuggestions([]Suggestion{{Value: "a"}, {Value: "b"}}))
}

func TestFormatterPlain(t *testing.T) {
	err := Newf(E3001, "Undefined symbol 'palyer'").At("room1.asc", 7)
	err.SourceLine = "  palyer.Walk(10, 20);"
	err.Suggestions = []Suggestion{{Value: "player", Distance: 2}}
	out := err.FriendlyErrorMessage()

	require.True(t, strings.HasPrefix(out, "semantic error[E3001]: Undefined symbol 'palyer'\n"))
	require.Contains(t, out, "--> room1.asc:7")
	require.Contains(t, out, " 7 |   palyer.Walk(10, 20);")
	require.Contains(t, out, "hint: Did you mean 'player'?")
	require.NotContains(t, out, "\x1b[")
}

func TestFormatterColor(t *testing.T) {
	fe := Newf(E2001, "Unexpected ';'").ToFormatted()
	out := NewFormatter(true).Format(fe)
	require.Contains(t, out, "\x1b[")
	require.Contains(t, out, "Unexpected ';'")
}

func TestFormatMultiple(t *testing.T) {
	errs := []*FormattedError{
		{Message: "first", Kind: "syntax error"},
		{Message: "second", Kind: "semantic error"},
	}
	out := NewFormatter(false).FormatMultiple(errs)
	require.Contains(t, out, "syntax error[1/2]: first")
	require.Contains(t, out, "semantic error[2/2]: second")
	require.Contains(t, out, "found 2 errors")
	require.Equal(t, "", NewFormatter(false).FormatMultiple(nil))
}
