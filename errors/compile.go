package errors

import (
	"fmt"
	"strings"

	"github.com/agsc-lang/agsc/errz"
)

// CompileError is the single error that aborts a compilation unit.
type CompileError struct {
	Kind        errz.Kind
	Code        ErrorCode
	Message     string
	Section     string
	Line        int
	SourceLine  string
	Suggestions []Suggestion
	Note        string
}

// Newf creates a CompileError whose kind is derived from its code.
func Newf(code ErrorCode, format string, args ...any) *CompileError {
	return &CompileError{
		Kind:    code.Kind(),
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Internalf creates an error for a broken compiler invariant.
func Internalf(format string, args ...any) *CompileError {
	return Newf(E9001, format, args...)
}

// At sets the location of the error and returns it.
func (e *CompileError) At(section string, line int) *CompileError {
	e.Section = section
	e.Line = line
	return e
}

// WithSuggestions attaches "did you mean" candidates.
func (e *CompileError) WithSuggestions(s []Suggestion) *CompileError {
	e.Suggestions = s
	return e
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	var b strings.Builder
	if e.Section != "" {
		b.WriteString(e.Section)
		b.WriteString(":")
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, "%d:", e.Line)
	}
	if b.Len() > 0 {
		b.WriteString(" ")
	}
	if e.Kind == errz.Internal {
		b.WriteString("internal error: ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// FriendlyErrorMessage returns a human-friendly error message.
func (e *CompileError) FriendlyErrorMessage() string {
	return NewFormatter(false).Format(e.ToFormatted())
}

// ToFormatted converts to the FormattedError type for display.
func (e *CompileError) ToFormatted() *FormattedError {
	fe := &FormattedError{
		Code:     e.Code,
		Kind:     e.Kind.String(),
		Message:  e.Message,
		Filename: e.Section,
		Line:     e.Line,
		Note:     e.Note,
	}
	if e.SourceLine != "" {
		fe.SourceLines = []SourceLineEntry{
			{Number: e.Line, Text: e.SourceLine, IsMain: true},
		}
	}
	if len(e.Suggestions) > 0 {
		fe.Hint = FormatSuggestions(e.Suggestions)
	}
	return fe
}
