package errors

import "github.com/agsc-lang/agsc/errz"

// ErrorCode represents a unique identifier for error types.
// Codes are organized by category:
//   - E1xxx: Lexical errors
//   - E2xxx: Syntax errors
//   - E3xxx: Semantic errors
//   - E9xxx: Internal errors
type ErrorCode string

const (
	// Lexical errors (E1xxx)
	E1001 ErrorCode = "E1001" // Unterminated string literal
	E1002 ErrorCode = "E1002" // Unterminated character literal
	E1003 ErrorCode = "E1003" // Illegal character
	E1004 ErrorCode = "E1004" // Invalid escape sequence
	E1005 ErrorCode = "E1005" // Bracket mismatch
	E1006 ErrorCode = "E1006" // Invalid number literal

	// Syntax errors (E2xxx)
	E2001 ErrorCode = "E2001" // Unexpected token
	E2002 ErrorCode = "E2002" // Missing expected token
	E2003 ErrorCode = "E2003" // Malformed declaration
	E2004 ErrorCode = "E2004" // Empty expression
	E2005 ErrorCode = "E2005" // Unbalanced brackets at end of input

	// Semantic errors (E3xxx)
	E3001 ErrorCode = "E3001" // Undefined identifier
	E3002 ErrorCode = "E3002" // Redeclaration
	E3003 ErrorCode = "E3003" // Type mismatch
	E3004 ErrorCode = "E3004" // Wrong argument count
	E3005 ErrorCode = "E3005" // Missing argument without default
	E3006 ErrorCode = "E3006" // Write to read-only location
	E3007 ErrorCode = "E3007" // Misplaced break or continue
	E3008 ErrorCode = "E3008" // Misplaced case or default
	E3009 ErrorCode = "E3009" // Unresolved function
	E3010 ErrorCode = "E3010" // Illegal qualifier combination
	E3011 ErrorCode = "E3011" // Protected member access
	E3012 ErrorCode = "E3012" // Array index out of bounds
	E3013 ErrorCode = "E3013" // Invalid return
	E3014 ErrorCode = "E3014" // Import error
	E3015 ErrorCode = "E3015" // Export error
	E3016 ErrorCode = "E3016" // Unsupported type

	// Internal errors (E9xxx)
	E9001 ErrorCode = "E9001" // Compiler invariant violated
)

// codeDescriptions maps error codes to their short descriptions.
var codeDescriptions = map[ErrorCode]string{
	E1001: "unterminated string literal",
	E1002: "unterminated character literal",
	E1003: "illegal character",
	E1004: "invalid escape sequence",
	E1005: "bracket mismatch",
	E1006: "invalid number literal",
	E2001: "unexpected token",
	E2002: "missing expected token",
	E2003: "malformed declaration",
	E2004: "empty expression",
	E2005: "unbalanced brackets",
	E3001: "undefined identifier",
	E3002: "redeclaration",
	E3003: "type mismatch",
	E3004: "wrong argument count",
	E3005: "missing argument",
	E3006: "write to read-only location",
	E3007: "misplaced break or continue",
	E3008: "misplaced case label",
	E3009: "unresolved function",
	E3010: "illegal qualifiers",
	E3011: "protected member",
	E3012: "array index out of bounds",
	E3013: "invalid return",
	E3014: "import error",
	E3015: "export error",
	E3016: "unsupported type",
	E9001: "internal error",
}

// Description returns a short description of the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}

// String returns the error code as a string.
func (c ErrorCode) String() string {
	return string(c)
}

// Kind returns the category the code belongs to.
func (c ErrorCode) Kind() errz.Kind {
	if len(c) < 2 {
		return errz.Internal
	}
	switch c[1] {
	case '1':
		return errz.Lexical
	case '2':
		return errz.Syntax
	case '3':
		return errz.Semantic
	default:
		return errz.Internal
	}
}
