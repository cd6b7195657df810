package bytecode

import (
	"testing"

	"github.com/agsc-lang/agsc/op"
	"github.com/stretchr/testify/require"
)

func TestWriteCmdLineNumbers(t *testing.T) {
	m := NewModule(true)
	m.SetLine(3)
	m.WriteCmd(op.LitToReg, int32(op.AX), 1)
	m.WriteCmd(op.PushReg, int32(op.AX))
	m.SetLine(4)
	m.WriteCmd(op.Ret)
	require.Equal(t, []int32{
		int32(op.LineNum), 3,
		int32(op.LitToReg), int32(op.AX), 1,
		int32(op.PushReg), int32(op.AX),
		int32(op.LineNum), 4,
		int32(op.Ret),
	}, m.Code)
	require.Equal(t, op.Ret, m.LastOp())
}

func TestWriteCmdWithoutLineNumbers(t *testing.T) {
	m := NewModule(false)
	m.SetLine(3)
	m.WriteCmd(op.Ret)
	require.Equal(t, []int32{int32(op.Ret)}, m.Code)
}

func TestAddExport(t *testing.T) {
	m := NewModule(false)
	idx, err := m.AddExport("main", ExportFunction, 12, 2)
	require.NoError(t, err)
	require.Equal(t, 0, idx)
	require.Equal(t, "main$2", m.Exports[0].Name)
	require.Equal(t, ExportFunction, m.Exports[0].Kind())
	require.Equal(t, int32(12), m.Exports[0].Offset())

	idx, err = m.AddExport("counter", ExportData, 8, 0)
	require.NoError(t, err)
	require.Equal(t, 1, idx)
	require.Equal(t, "counter", m.Exports[1].Name)
	require.Equal(t, int32(8|2<<24), m.Exports[1].Address)

	idx, err = m.AddExport("main", ExportFunction, 12, 2)
	require.NoError(t, err)
	require.Equal(t, 0, idx)
	require.Len(t, m.Exports, 2)

	_, err = m.AddExport("huge", ExportData, MaxExportOffset, 0)
	require.EqualError(t, err, "export offset too high; script data size too large?")
}

func TestStartSectionReplacesEmptySection(t *testing.T) {
	m := NewModule(false)
	m.StartSection("a.ash")
	m.StartSection("b.ash")
	m.WriteCmd(op.Ret)
	m.StartSection("room1.asc")
	require.Equal(t, []Section{{Name: "b.ash", Offset: 0}, {Name: "room1.asc", Offset: 1}}, m.Sections)
}

func TestStringPool(t *testing.T) {
	m := NewModule(false)
	require.Equal(t, 0, m.AddString("hi"))
	require.Equal(t, 3, m.AddString(""))
	require.Equal(t, 4, m.AddString("yo"))
	s, ok := m.StringAt(4)
	require.True(t, ok)
	require.Equal(t, "yo", s)
	s, ok = m.StringAt(3)
	require.True(t, ok)
	require.Equal(t, "", s)
	_, ok = m.StringAt(7)
	require.False(t, ok)
}

func TestGlobals(t *testing.T) {
	m := NewModule(false)
	require.Equal(t, 0, m.AddGlobal(4, nil))
	off := m.AddGlobal(8, []byte{1, 2})
	require.Equal(t, 4, off)
	m.PutGlobal32(0, -2)
	require.Equal(t, []byte{0xfe, 0xff, 0xff, 0xff, 1, 2, 0, 0, 0, 0, 0, 0}, m.GlobalData)
}

func TestPatchJump(t *testing.T) {
	m := NewModule(false)
	m.WriteCmd(op.Jmp, 0)
	site := m.Loc() - 1
	m.WriteCmd(op.Ret)
	m.PatchJump(site, m.Loc())
	require.Equal(t, int32(1), m.Code[site])
	require.Equal(t, int32(-3), RelativeJump(0, 2))
}

func TestStats(t *testing.T) {
	m := NewModule(false)
	m.WriteCmd(op.LitToReg, int32(op.AX), 0)
	m.FixupPrevious(FixupString)
	m.AddImport("Display")
	require.Equal(t, Stats{CodeCells: 3, FixupCount: 1, ImportCount: 1}, m.Stats())
	require.Equal(t, []Fixup{{Loc: 2, Kind: FixupString}}, m.Fixups)
}
