package agsc

import (
	"bytes"
	"context"
	"testing"

	"github.com/agsc-lang/agsc/bytecode"
	"github.com/agsc-lang/agsc/compiler"
	"github.com/agsc-lang/agsc/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const loop = `
int Sum()
{
	int x = 1;
	int y;
	for (y = 0; y < 3; y++)
	{
		x = x + y;
	}
	return x;
}
`

func TestEval(t *testing.T) {
	got, err := Eval(context.Background(), loop, "Sum", nil)
	require.NoError(t, err)
	require.Equal(t, int32(4), got)
}

func TestCompileOptions(t *testing.T) {
	mod, err := Compile(context.Background(), loop, WithOptions(compiler.Options{ExportAll: true}))
	require.NoError(t, err)
	require.Len(t, mod.Exports, 1)
	require.Equal(t, "Sum$0", mod.Exports[0].Name)
	require.Equal(t, bytecode.ExportFunction, mod.Exports[0].Kind())
}

func TestCompileError(t *testing.T) {
	_, err := Compile(context.Background(), "void F()\n{\n\tbreak;\n}\n", WithSectionName("GlobalScript.asc"))
	require.Error(t, err)
	ce, ok := errors.AsCompileError(err)
	require.True(t, ok)
	require.Equal(t, "GlobalScript.asc", ce.Section)
	require.Equal(t, 3, ce.Line)
}

func TestCompileCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Compile(ctx, loop)
	require.ErrorIs(t, err, context.Canceled)
}

func TestHost(t *testing.T) {
	src := "import int Add(int a, int b);\nint F()\n{\n\treturn Add(40, 2);\n}\n"
	got, err := Eval(context.Background(), src, "F", nil, WithHost("Add", func(args []int32) (int32, error) {
		return args[0] + args[1], nil
	}))
	require.NoError(t, err)
	require.Equal(t, int32(42), got)
}

func TestRunArguments(t *testing.T) {
	mod, err := Compile(context.Background(), "int Sub(int a, int b)\n{\n\treturn a - b;\n}\n")
	require.NoError(t, err)
	got, err := Run(context.Background(), mod, "Sub", []int32{10, 4})
	require.NoError(t, err)
	require.Equal(t, int32(6), got)
}

func TestMaxSteps(t *testing.T) {
	src := "void Spin()\n{\n\twhile (1)\n\t{\n\t}\n}\n"
	_, err := Eval(context.Background(), src, "Spin", nil, WithMaxSteps(1000))
	require.Error(t, err)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	_, err := Compile(context.Background(), loop, WithLogger(log))
	require.NoError(t, err)
	require.Contains(t, buf.String(), "pass started")
}
