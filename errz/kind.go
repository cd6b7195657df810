// Package errz classifies compiler failures.
package errz

// Kind represents the category of an error.
type Kind int

const (
	// Lexical indicates a malformed literal, illegal character or
	// unbalanced bracket found while scanning.
	Lexical Kind = iota
	// Syntax indicates an unexpected or missing token.
	Syntax
	// Semantic indicates a well formed program that violates a typing,
	// declaration or scoping rule.
	Semantic
	// Internal indicates a broken compiler invariant.
	Internal
)

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical error"
	case Syntax:
		return "syntax error"
	case Semantic:
		return "semantic error"
	case Internal:
		return "internal error"
	default:
		return "error"
	}
}

// IsUserFacing reports whether errors of this kind are caused by the input
// rather than by the compiler itself.
func (k Kind) IsUserFacing() bool {
	return k != Internal
}
