package bytecode

import (
	"testing"

	"github.com/agsc-lang/agsc/op"
	"github.com/stretchr/testify/require"
)

func TestWireRoundTrip(t *testing.T) {
	m := NewModule(false)
	m.AddGlobal(4, []byte{7})
	m.WriteCmd(op.LitToReg, int32(op.AX), int32(m.AddString("hello")))
	m.FixupPrevious(FixupString)
	m.WriteCmd(op.Ret)
	m.AddImport("Display^1")
	_, err := m.AddExport("f", ExportFunction, 0, 0)
	require.NoError(t, err)
	m.StartSection("main.asc")
	m.AddFunction("f", 0, 0)

	data, err := Marshal(m)
	require.NoError(t, err)
	again, err := Marshal(m)
	require.NoError(t, err)
	require.Equal(t, data, again)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, m.Code, got.Code)
	require.Equal(t, m.GlobalData, got.GlobalData)
	require.Equal(t, m.Strings, got.Strings)
	require.Equal(t, m.Fixups, got.Fixups)
	require.Equal(t, m.Imports, got.Imports)
	require.Equal(t, m.Exports, got.Exports)
	require.Equal(t, m.Sections, got.Sections)
	require.Equal(t, m.Functions, got.Functions)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte{0xff, 0x00})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bytecode: unmarshal module")

	data, err := encMode.Marshal(envelope{Magic: "NOPE", Version: FormatVersion, Module: NewModule(false)})
	require.NoError(t, err)
	_, err = Unmarshal(data)
	require.EqualError(t, err, "bytecode: unmarshal module: not a compiled module")
}
