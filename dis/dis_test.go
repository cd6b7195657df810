package dis

import (
	"bytes"
	"strings"
	"testing"

	"github.com/agsc-lang/agsc/bytecode"
	"github.com/agsc-lang/agsc/compiler"
	"github.com/agsc-lang/agsc/op"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func sampleModule() *bytecode.Module {
	ax := int32(op.AX)
	mod := bytecode.NewModule(false)
	idx := mod.AddImport("Display")
	s := mod.AddString("hi")
	mod.AddFunction("F", 0, 0)
	mod.WriteCmd(op.LitToReg, ax, int32(s))
	mod.FixupPrevious(bytecode.FixupString)
	mod.WriteCmd(op.PushReal, ax)
	mod.WriteCmd(op.NumFuncArgs, 1)
	mod.WriteCmd(op.LitToReg, ax, int32(idx))
	mod.FixupPrevious(bytecode.FixupImport)
	mod.WriteCmd(op.CallExt, ax)
	mod.WriteCmd(op.SubRealStack, 1)
	mod.WriteCmd(op.Jz, 0)
	jump := mod.Loc() - 1
	mod.WriteCmd(op.LitToReg, ax, 1)
	mod.PatchJump(jump, mod.Loc())
	mod.WriteCmd(op.Ret)
	return mod
}

func TestDisassemble(t *testing.T) {
	instructions, err := Disassemble(sampleModule())
	require.NoError(t, err)
	require.Len(t, instructions, 9)

	first := instructions[0]
	require.Equal(t, op.LitToReg, first.Opcode)
	require.Equal(t, "F", first.Function)
	require.Equal(t, `"hi"`, first.Annotation)
	require.Equal(t, "ax, 0", FormatOperands(first))

	require.Equal(t, "import Display", instructions[3].Annotation)
	require.Equal(t, "-> 19", instructions[6].Annotation)
}

func TestPrint(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = saved }()

	instructions, err := Disassemble(sampleModule())
	require.NoError(t, err)
	var buf bytes.Buffer
	Print(instructions, &buf)

	expected := strings.TrimSpace(`
+--------+-------------+----------+----------------+
| OFFSET |   OPCODE    | OPERANDS |      INFO      |
+--------+-------------+----------+----------------+
|      0 | movl        | ax, 0    | F: "hi"        |
|      3 | farpush     | ax       |                |
|      5 | setfuncargs | 1        |                |
|      7 | movl        | ax, 0    | import Display |
|     10 | farcall     | ax       |                |
|     12 | farsubsp    | 1        |                |
|     14 | jz          | 3        | -> 19          |
|     16 | movl        | ax, 1    |                |
|     19 | ret         |          |                |
+--------+-------------+----------+----------------+
`)
	require.Equal(t, expected+"\n", buf.String())
}

func TestDisassembleCompiled(t *testing.T) {
	mod, err := compiler.Compile("int Twice(int x)\n{\n\treturn x * 2;\n}\nint Four()\n{\n\treturn Twice(2);\n}\n", nil)
	require.NoError(t, err)
	instructions, err := Disassemble(mod)
	require.NoError(t, err)

	var funcs []string
	calls := 0
	for _, instr := range instructions {
		if instr.Function != "" {
			funcs = append(funcs, instr.Function)
		}
		if instr.Annotation == "func Twice" {
			calls++
		}
	}
	require.Equal(t, []string{"Twice", "Four"}, funcs)
	require.Equal(t, 1, calls)
}

func TestDisassembleRejectsBadCode(t *testing.T) {
	_, err := Disassemble(&bytecode.Module{Code: []int32{999}})
	require.Error(t, err)
	_, err = Disassemble(&bytecode.Module{Code: []int32{int32(op.LitToReg), int32(op.AX)}})
	require.Error(t, err)
}
