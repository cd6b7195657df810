package errors

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// MaxSuggestionDistance is the largest edit distance a suggestion may have.
const MaxSuggestionDistance = 3

// MaxSuggestions caps the number of suggestions attached to an error.
const MaxSuggestions = 3

// Suggestion is a declared name close to a misspelled one.
type Suggestion struct {
	Value    string
	Distance int
}

// maxDistance scales the allowed edit distance with the length of the name,
// so that short names do not match half the symbol table.
func maxDistance(n int) int {
	switch {
	case n <= 3:
		return 1
	case n <= 5:
		return 2
	}
	return MaxSuggestionDistance
}

// SuggestSimilar returns the candidates that are likely meant by target,
// closest first. Names that only differ in case always qualify. Mangled
// "Struct::member" names are offered only for a qualified target, and plain
// names only for a plain one. Candidates that are not identifiers are
// ignored.
func SuggestSimilar(target string, candidates []string) []Suggestion {
	if target == "" || len(candidates) == 0 {
		return nil
	}
	qualified := strings.Contains(target, "::")
	folded := strings.ToLower(target)
	limit := maxDistance(utf8.RuneCountInString(target))

	var result []Suggestion
	seen := make(map[string]struct{}, len(candidates))
	for _, name := range candidates {
		if _, dup := seen[name]; dup || name == target || !isIdentifier(name) {
			continue
		}
		seen[name] = struct{}{}
		if strings.Contains(name, "::") != qualified {
			continue
		}
		d := editDistance(folded, strings.ToLower(name))
		if d == 0 || d <= limit {
			result = append(result, Suggestion{Value: name, Distance: d})
		}
	}

	slices.SortFunc(result, func(a, b Suggestion) int {
		if a.Distance != b.Distance {
			return a.Distance - b.Distance
		}
		return strings.Compare(a.Value, b.Value)
	})
	if len(result) > MaxSuggestions {
		result = result[:MaxSuggestions]
	}
	return result
}

// FormatSuggestions renders suggestions as a hint, or "" if there are none.
func FormatSuggestions(suggestions []Suggestion) string {
	switch len(suggestions) {
	case 0:
		return ""
	case 1:
		return "Did you mean '" + suggestions[0].Value + "'?"
	}
	quoted := make([]string, len(suggestions))
	for i, s := range suggestions {
		quoted[i] = "'" + s.Value + "'"
	}
	return "Did you mean one of: " + strings.Join(quoted, ", ") + "?"
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// editDistance is the Levenshtein distance between a and b, counted in
// runes.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	// row[j] holds the distance between the current prefix of ra and rb[:j].
	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		diag := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			next := min(row[j]+1, row[j-1]+1, diag+cost)
			diag = row[j]
			row[j] = next
		}
	}
	return row[len(rb)]
}
