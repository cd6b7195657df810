// Package token holds the tokenized form of a compilation unit: the symbol
// IDs in source order plus the line and section each one came from.
package token

import (
	"sort"

	"github.com/agsc-lang/agsc/symbols"
)

type lineMark struct {
	start int
	line  int
}

type sectionMark struct {
	start int
	name  string
}

// Stream is an append-only sequence of symbols. Once the tokenizer has
// finished, the stream is only read.
type Stream struct {
	syms     []symbols.ID
	lines    []lineMark
	sections []sectionMark
}

// NewStream returns an empty stream in an unnamed section.
func NewStream() *Stream {
	return &Stream{}
}

// Append adds a symbol at the end of the stream.
func (s *Stream) Append(id symbols.ID) {
	s.syms = append(s.syms, id)
}

// SetLine records that symbols appended from now on are on line.
func (s *Stream) SetLine(line int) {
	start := len(s.syms)
	if n := len(s.lines); n > 0 && s.lines[n-1].start == start {
		s.lines[n-1].line = line
		return
	}
	s.lines = append(s.lines, lineMark{start: start, line: line})
}

// SetSection records that symbols appended from now on belong to the named
// section.
func (s *Stream) SetSection(name string) {
	start := len(s.syms)
	if n := len(s.sections); n > 0 && s.sections[n-1].start == start {
		s.sections[n-1].name = name
		return
	}
	s.sections = append(s.sections, sectionMark{start: start, name: name})
}

// Len returns the number of symbols in the stream.
func (s *Stream) Len() int { return len(s.syms) }

// At returns the symbol at index i, or None if i is out of range.
func (s *Stream) At(i int) symbols.ID {
	if i < 0 || i >= len(s.syms) {
		return symbols.None
	}
	return s.syms[i]
}

// Symbols returns the symbols of the stream. The slice must not be modified.
func (s *Stream) Symbols() []symbols.ID { return s.syms }

// LineAt returns the source line of the symbol at index i.
func (s *Stream) LineAt(i int) int {
	k := sort.Search(len(s.lines), func(k int) bool { return s.lines[k].start > i })
	if k == 0 {
		return 1
	}
	return s.lines[k-1].line
}

// SectionAt returns the section name of the symbol at index i.
func (s *Stream) SectionAt(i int) string {
	k := sort.Search(len(s.sections), func(k int) bool { return s.sections[k].start > i })
	if k == 0 {
		return ""
	}
	return s.sections[k-1].name
}

// Sections returns the section names in the order they begin.
func (s *Stream) Sections() []string {
	names := make([]string, 0, len(s.sections))
	for _, m := range s.sections {
		names = append(names, m.name)
	}
	return names
}

// List returns a list over the whole stream.
func (s *Stream) List() *List {
	return &List{stream: s, start: 0, end: len(s.syms)}
}

// List is a window onto a stream with a read cursor. Indices passed to and
// returned by a List are relative to the start of the window.
type List struct {
	stream     *Stream
	start, end int
	pos        int
}

// Len returns the number of symbols in the window.
func (l *List) Len() int { return l.end - l.start }

// At returns the symbol at relative index i, or None if i is outside the
// window.
func (l *List) At(i int) symbols.ID {
	if i < 0 || i >= l.Len() {
		return symbols.None
	}
	return l.stream.syms[l.start+i]
}

// Sub returns a new list over the relative range [from, to) with its cursor
// at the beginning.
func (l *List) Sub(from, to int) *List {
	if from < 0 {
		from = 0
	}
	if to > l.Len() {
		to = l.Len()
	}
	if to < from {
		to = from
	}
	return &List{stream: l.stream, start: l.start + from, end: l.start + to}
}

// GetNext returns the symbol at the cursor and advances. At the end of the
// window it returns None without advancing further.
func (l *List) GetNext() symbols.ID {
	if l.pos >= l.Len() {
		l.pos = l.Len() + 1
		return symbols.None
	}
	id := l.At(l.pos)
	l.pos++
	return id
}

// PeekNext returns the symbol at the cursor without advancing.
func (l *List) PeekNext() symbols.ID { return l.At(l.pos) }

// Back moves the cursor back by one symbol.
func (l *List) Back() {
	if l.pos > 0 {
		l.pos--
	}
}

// Cursor returns the relative cursor position.
func (l *List) Cursor() int { return l.pos }

// SetCursor moves the cursor to the relative position pos.
func (l *List) SetCursor(pos int) { l.pos = pos }

// ReachedEOF reports whether the cursor has gone past the last symbol.
func (l *List) ReachedEOF() bool { return l.pos > l.Len() }

// AtEnd reports whether no symbols are left to read.
func (l *List) AtEnd() bool { return l.pos >= l.Len() }

// Line returns the source line of the most recently read symbol.
func (l *List) Line() int { return l.stream.LineAt(l.abs(l.pos - 1)) }

// Section returns the section of the most recently read symbol.
func (l *List) Section() string { return l.stream.SectionAt(l.abs(l.pos - 1)) }

// LineAt returns the source line of the symbol at relative index i.
func (l *List) LineAt(i int) int { return l.stream.LineAt(l.abs(i)) }

// SectionAt returns the section of the symbol at relative index i.
func (l *List) SectionAt(i int) string { return l.stream.SectionAt(l.abs(i)) }

func (l *List) abs(i int) int {
	if i < 0 {
		i = 0
	}
	if i >= l.Len() && l.Len() > 0 {
		i = l.Len() - 1
	}
	return l.start + i
}
