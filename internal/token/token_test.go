package token

import (
	"testing"

	"github.com/agsc-lang/agsc/symbols"
	"github.com/stretchr/testify/require"
)

func buildStream() *Stream {
	s := NewStream()
	s.SetSection("main.asc")
	s.SetLine(1)
	s.Append(symbols.Int)
	s.Append(symbols.ID(200))
	s.Append(symbols.Semicolon)
	s.SetLine(3)
	s.Append(symbols.Return)
	s.SetSection("room.asc")
	s.SetLine(1)
	s.Append(symbols.ID(201))
	s.Append(symbols.Semicolon)
	return s
}

func TestStreamLinesAndSections(t *testing.T) {
	s := buildStream()
	require.Equal(t, 6, s.Len())
	require.Equal(t, []int{1, 1, 1, 3, 1, 1}, []int{
		s.LineAt(0), s.LineAt(1), s.LineAt(2), s.LineAt(3), s.LineAt(4), s.LineAt(5),
	})
	require.Equal(t, "main.asc", s.SectionAt(3))
	require.Equal(t, "room.asc", s.SectionAt(4))
	require.Equal(t, []string{"main.asc", "room.asc"}, s.Sections())
	require.Equal(t, symbols.None, s.At(6))
}

func TestSetLineCollapses(t *testing.T) {
	s := NewStream()
	s.SetLine(1)
	s.SetLine(2)
	s.SetLine(5)
	s.Append(symbols.Int)
	require.Equal(t, 5, s.LineAt(0))
	require.Len(t, s.lines, 1)
}

func TestListCursor(t *testing.T) {
	l := buildStream().List()
	require.Equal(t, symbols.Int, l.PeekNext())
	require.Equal(t, symbols.Int, l.GetNext())
	require.Equal(t, symbols.ID(200), l.GetNext())
	l.Back()
	require.Equal(t, 1, l.Cursor())
	l.SetCursor(3)
	require.Equal(t, symbols.Return, l.GetNext())
	require.Equal(t, 3, l.Line())
	require.Equal(t, "main.asc", l.Section())

	l.SetCursor(5)
	require.Equal(t, symbols.Semicolon, l.GetNext())
	require.True(t, l.AtEnd())
	require.False(t, l.ReachedEOF())
	require.Equal(t, symbols.None, l.GetNext())
	require.True(t, l.ReachedEOF())
}

func TestSubList(t *testing.T) {
	l := buildStream().List()
	sub := l.Sub(1, 4)
	require.Equal(t, 3, sub.Len())
	require.Equal(t, symbols.ID(200), sub.At(0))
	require.Equal(t, symbols.Return, sub.At(2))
	require.Equal(t, symbols.None, sub.At(3))
	require.Equal(t, 3, sub.LineAt(2))

	inner := sub.Sub(1, 10)
	require.Equal(t, 2, inner.Len())
	require.Equal(t, symbols.Semicolon, inner.GetNext())
	require.Equal(t, symbols.Return, inner.GetNext())
	require.True(t, inner.AtEnd())
}
