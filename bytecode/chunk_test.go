package bytecode

import (
	"testing"

	"github.com/agsc-lang/agsc/op"
	"github.com/stretchr/testify/require"
)

func TestYankAndWriteChunk(t *testing.T) {
	m := NewModule(false)
	m.WriteCmd(op.LitToReg, int32(op.AX), 1)

	codeStart, fixupStart := m.Loc(), m.NumFixups()
	m.WriteCmd(op.LitToReg, int32(op.MAR), 8)
	m.FixupPrevious(FixupGlobalData)
	m.WriteCmd(op.MemRead, int32(op.AX))

	c := m.Yank(codeStart, fixupStart, 5)
	require.Equal(t, 1, c.ID)
	require.Equal(t, 5, c.Len())
	require.Equal(t, []Fixup{{Loc: 2, Kind: FixupGlobalData}}, c.Fixups)
	require.Equal(t, 3, m.Loc())
	require.Empty(t, m.Fixups)
	require.Equal(t, op.Invalid, m.LastOp())

	m.WriteCmd(op.Ret)
	start := m.WriteChunk(c)
	require.Equal(t, 4, start)
	require.Equal(t, []Fixup{{Loc: 6, Kind: FixupGlobalData}}, m.Fixups)
	require.Equal(t, int32(8), m.Code[6])

	// Chunks keep distinct ids.
	require.Equal(t, 2, m.Yank(m.Loc(), m.NumFixups(), 0).ID)
}

func TestWriteChunkReemitsLine(t *testing.T) {
	m := NewModule(true)
	m.SetLine(2)
	start := m.Loc()
	m.WriteCmd(op.AddReg, int32(op.AX), int32(op.BX))
	c := m.Yank(start, 0, 2)
	// The yanked code starts with the line number instruction.
	require.Equal(t, int32(op.LineNum), c.Code[0])

	m.SetLine(7)
	m.WriteCmd(op.Ret)
	m.WriteChunk(c)
	m.WriteCmd(op.Ret)
	require.Equal(t, []int32{
		int32(op.LineNum), 7, int32(op.Ret),
		int32(op.LineNum), 2, int32(op.AddReg), int32(op.AX), int32(op.BX),
		int32(op.LineNum), 7, int32(op.Ret),
	}, m.Code)
}

func TestWriteChunkPrefixesMissingLine(t *testing.T) {
	m := NewModule(true)
	c := &Chunk{Line: 9, Code: []int32{int32(op.Ret)}}
	require.Equal(t, 2, m.WriteChunk(c))
	require.Equal(t, []int32{int32(op.LineNum), 9, int32(op.Ret)}, m.Code)
}
