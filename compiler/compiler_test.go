package compiler

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/agsc-lang/agsc/bytecode"
	"github.com/agsc-lang/agsc/errors"
	"github.com/agsc-lang/agsc/internal/emu"
	"github.com/agsc-lang/agsc/op"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, src string) *bytecode.Module {
	t.Helper()
	mod, err := Compile(src, nil)
	require.NoError(t, err)
	return mod
}

func load(t *testing.T, src string, options ...emu.Option) *emu.Machine {
	t.Helper()
	m, err := emu.New(compile(t, src), options...)
	require.NoError(t, err)
	return m
}

func run(t *testing.T, src, fn string, args ...int32) int32 {
	t.Helper()
	v, err := load(t, src).Run(context.Background(), fn, args...)
	require.NoError(t, err)
	return v
}

// opcodes lists the instructions of mod in order, without their operands.
func opcodes(mod *bytecode.Module) []op.Code {
	var codes []op.Code
	for i := 0; i < len(mod.Code); {
		code := op.Code(mod.Code[i])
		codes = append(codes, code)
		i += 1 + op.GetInfo(code).OperandCount
	}
	return codes
}

func compileError(t *testing.T, src string) *errors.CompileError {
	t.Helper()
	_, err := Compile(src, nil)
	require.Error(t, err)
	ce, ok := errors.AsCompileError(err)
	require.True(t, ok, "expected a compile error, got %v", err)
	return ce
}

func TestForLoop(t *testing.T) {
	src := `
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
	require.Equal(t, int32(4), run(t, src, "Sum"))
}

func TestForLoopDeclaresCounter(t *testing.T) {
	src := `
int a[5];
int Squares()
{
	for (int i = 0; i < 5; i++)
		a[i] = i * i;
	return a[4] + a[2];
}
`
	require.Equal(t, int32(20), run(t, src, "Squares"))
}

func TestWhileBreakContinue(t *testing.T) {
	src := `
int OddSum()
{
	int i = 0;
	int s = 0;
	while (i < 10)
	{
		i++;
		if (i % 2 == 0)
			continue;
		if (i > 7)
			break;
		s += i;
	}
	return s;
}
`
	require.Equal(t, int32(16), run(t, src, "OddSum"))
}

func TestDoWhile(t *testing.T) {
	src := `
int Count(int n)
{
	int c = 0;
	do
	{
		c++;
		n--;
	} while (n > 0);
	return c;
}
`
	m := load(t, src)
	ctx := context.Background()
	for _, tc := range []struct{ in, want int32 }{{3, 3}, {1, 1}, {0, 1}} {
		got, err := m.Run(ctx, "Count", tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "Count(%d)", tc.in)
	}
}

func TestIfElse(t *testing.T) {
	src := `
int Sign(int x)
{
	if (x < 0)
		return -1;
	else if (x == 0)
	{
		return 0;
	}
	else
		return 1;
}
`
	m := load(t, src)
	ctx := context.Background()
	for _, tc := range []struct{ in, want int32 }{{-5, -1}, {0, 0}, {9, 1}} {
		got, err := m.Run(ctx, "Sign", tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "Sign(%d)", tc.in)
	}
}

func TestSwitch(t *testing.T) {
	src := `
int Pick(int x)
{
	int r = 0;
	switch (x)
	{
	case 1:
		r = 10;
		break;
	case 2:
	case 3:
		r = 20;
		break;
	default:
		r = 30;
	}
	return r;
}
`
	m := load(t, src)
	ctx := context.Background()
	for _, tc := range []struct{ in, want int32 }{{1, 10}, {2, 20}, {3, 20}, {9, 30}} {
		got, err := m.Run(ctx, "Pick", tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "Pick(%d)", tc.in)
	}
}

func TestSwitchFallsThrough(t *testing.T) {
	src := `
int Steps(int x)
{
	int r = 0;
	switch (x)
	{
	case 1:
		r += 1;
	case 2:
		r += 2;
	}
	return r;
}
`
	m := load(t, src)
	ctx := context.Background()
	for _, tc := range []struct{ in, want int32 }{{1, 3}, {2, 2}, {5, 0}} {
		got, err := m.Run(ctx, "Steps", tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "Steps(%d)", tc.in)
	}
}

func TestForwardCalls(t *testing.T) {
	src := `
int IsEven(int n)
{
	if (n == 0)
		return 1;
	return IsOdd(n - 1);
}

int IsOdd(int n)
{
	if (n == 0)
		return 0;
	return IsEven(n - 1);
}
`
	m := load(t, src)
	ctx := context.Background()
	got, err := m.Run(ctx, "IsEven", 10)
	require.NoError(t, err)
	require.Equal(t, int32(1), got)
	got, err = m.Run(ctx, "IsEven", 7)
	require.NoError(t, err)
	require.Equal(t, int32(0), got)
}

func TestRecursion(t *testing.T) {
	src := `
int Fib(int n)
{
	if (n < 2)
		return n;
	return Fib(n - 1) + Fib(n - 2);
}
`
	require.Equal(t, int32(55), run(t, src, "Fib", 10))
}

func TestDefaultParameters(t *testing.T) {
	src := `
int Add(int a, int b = 5)
{
	return a + b;
}

int Use()
{
	return Add(1) + Add(1, 2);
}
`
	require.Equal(t, int32(9), run(t, src, "Use"))
}

func TestGlobalsAndExports(t *testing.T) {
	src := `
int counter = 7;
export counter;

void Bump()
{
	counter += 2;
}
export Bump;
`
	mod := compile(t, src)
	names := map[string]bytecode.ExportKind{}
	for _, e := range mod.Exports {
		names[e.Name] = e.Kind()
	}
	require.Equal(t, bytecode.ExportData, names["counter"])
	require.Equal(t, bytecode.ExportFunction, names["Bump$0"])

	m, err := emu.New(mod)
	require.NoError(t, err)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := m.Run(ctx, "Bump")
		require.NoError(t, err)
	}
	v, err := m.Global("counter")
	require.NoError(t, err)
	require.Equal(t, int32(11), v)
}

func TestExportAll(t *testing.T) {
	mod, err := Compile("int A(int x) { return x; }\nvoid B() {}\n", &Config{
		Options: Options{ExportAll: true},
	})
	require.NoError(t, err)
	var names []string
	for _, e := range mod.Exports {
		names = append(names, e.Name)
	}
	require.Equal(t, []string{"A$1", "B$0"}, names)
}

func TestStruct(t *testing.T) {
	src := `
struct Point
{
	int x;
	short y;
	char c;
};
Point p;

int Area()
{
	p.x = 3;
	p.y = 4;
	p.c = 2;
	return p.x * p.y * p.c;
}
`
	require.Equal(t, int32(24), run(t, src, "Area"))
}

func TestManagedObject(t *testing.T) {
	src := `
managed struct Box
{
	int v;
};

int Fill()
{
	Box* b = new Box;
	b.v = 5;
	return b.v + 1;
}
`
	require.Equal(t, int32(6), run(t, src, "Fill"))
}

func TestDynamicArray(t *testing.T) {
	src := `
int Last()
{
	int arr[] = new int[4];
	arr[3] = 9;
	arr[0] = 1;
	return arr[3] - arr[0];
}
`
	require.Equal(t, int32(8), run(t, src, "Last"))
}

func TestDynamicArrayBounds(t *testing.T) {
	src := `
int Over(int i)
{
	int arr[] = new int[2];
	return arr[i];
}
`
	_, err := load(t, src).Run(context.Background(), "Over", 2)
	var re *emu.RuntimeError
	require.ErrorAs(t, err, &re)
	require.Contains(t, re.Msg, "out of bounds")
}

func TestEnum(t *testing.T) {
	src := `
enum Color
{
	Red,
	Green,
	Blue = 10,
	Violet
};

int Code(Color c)
{
	return c;
}

int Last()
{
	return Code(Violet) + Green;
}
`
	require.Equal(t, int32(13), run(t, src, "Last"))
}

func TestFloat(t *testing.T) {
	src := `
float Scale()
{
	float x = 1.5;
	return x * 2.0;
}
`
	got, err := load(t, src).RunFloat(context.Background(), "Scale")
	require.NoError(t, err)
	require.Equal(t, float32(3.0), got)
}

func TestTernary(t *testing.T) {
	src := `
int Max(int a, int b)
{
	return a > b ? a : b;
}
`
	m := load(t, src)
	got, err := m.Run(context.Background(), "Max", 3, 8)
	require.NoError(t, err)
	require.Equal(t, int32(8), got)
}

func TestImportedFunction(t *testing.T) {
	src := `
import int Twice(int x);

int Answer()
{
	return Twice(21);
}
`
	mod := compile(t, src)
	require.Contains(t, mod.Imports, "Twice")

	m, err := emu.New(mod, emu.WithHost("Twice", func(_ *emu.Machine, args []int32) (int32, error) {
		return args[0] * 2, nil
	}))
	require.NoError(t, err)
	got, err := m.Run(context.Background(), "Answer")
	require.NoError(t, err)
	require.Equal(t, int32(42), got)
}

func TestUnusedImportsAreBlanked(t *testing.T) {
	mod := compile(t, "import int Unused(int x);\nimport int Used();\nint F() { return Used(); }\n")
	require.NotContains(t, mod.Imports, "Unused")
	require.Contains(t, mod.Imports, "Used")
}

func TestAttributes(t *testing.T) {
	src := `
builtin managed struct Character
{
	import attribute int X;
	readonly import attribute int ID;
	import void Walk(int x, int y);
};
import Character* player;

int Move()
{
	player.X = 5;
	player.Walk(1, 2);
	return player.ID;
}
`
	mod := compile(t, src)
	require.Contains(t, mod.Imports, "Character::set_X^1")
	require.Contains(t, mod.Imports, "Character::get_ID^0")
	require.Contains(t, mod.Imports, "Character::Walk^2")
	require.Contains(t, mod.Imports, "player")
	require.NotContains(t, mod.Imports, "Character::get_X^0")

	var calls []string
	var self int32
	m, err := emu.New(mod,
		emu.WithHost("Character::set_X", func(m *emu.Machine, args []int32) (int32, error) {
			require.Equal(t, self, m.Register(op.OP))
			require.Equal(t, []int32{5}, args)
			calls = append(calls, "set_X")
			return 0, nil
		}),
		emu.WithHost("Character::Walk", func(m *emu.Machine, args []int32) (int32, error) {
			require.Equal(t, []int32{1, 2}, args)
			calls = append(calls, "Walk")
			return 0, nil
		}),
		emu.WithHost("Character::get_ID", func(*emu.Machine, []int32) (int32, error) {
			calls = append(calls, "get_ID")
			return 77, nil
		}),
	)
	require.NoError(t, err)
	self = m.NewString("player")
	data, err := m.ImportData("player")
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(data, uint32(self))

	got, err := m.Run(context.Background(), "Move")
	require.NoError(t, err)
	require.Equal(t, int32(77), got)
	require.Equal(t, []string{"set_X", "Walk", "get_ID"}, calls)
}

func TestLineNumbers(t *testing.T) {
	mod := compile(t, "int F()\n{\n\treturn 1;\n}\n")
	require.Equal(t, int32(op.LineNum), mod.Code[0])

	mod, err := Compile("int F()\n{\n\treturn 1;\n}\n", &Config{Options: Options{}})
	require.NoError(t, err)
	require.NotContains(t, opcodes(mod), op.LineNum)
}

func TestLocalsAreReleased(t *testing.T) {
	src := `
managed struct Box
{
	int v;
};
Box* kept;
export kept;

void Make()
{
	Box* a = new Box;
	Box* b = new Box;
	kept = b;
}
`
	m := load(t, src)
	_, err := m.Run(context.Background(), "Make")
	require.NoError(t, err)
	h, err := m.Global("kept")
	require.NoError(t, err)
	require.NotZero(t, h)
	require.Equal(t, 1, m.Refs(h))
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code errors.ErrorCode
		msg  string
	}{
		{
			name: "break outside loop",
			src:  "void F()\n{\n\tbreak;\n}\n",
			code: errors.E3007,
			msg:  "'break' is only valid inside a loop or a switch statement block",
		},
		{
			name: "continue in switch",
			src:  "void F(int x)\n{\n\tswitch (x)\n\t{\n\tcase 1:\n\t\tcontinue;\n\t}\n}\n",
			code: errors.E3007,
			msg:  "'continue' is only valid inside a loop",
		},
		{
			name: "case outside switch",
			src:  "void F()\n{\n\tcase 1:\n}\n",
			code: errors.E3008,
			msg:  "'case' is only allowed directly within a 'switch' block",
		},
		{
			name: "redeclared global",
			src:  "int x;\nint x;\n",
			code: errors.E3002,
		},
		{
			name: "old string",
			src:  "string s;\n",
			code: errors.E3016,
			msg:  "Type 'string' is no longer supported; use String instead",
		},
		{
			name: "return value from void",
			src:  "void F()\n{\n\treturn 1;\n}\n",
			code: errors.E3013,
			msg:  "Cannot return value from void function",
		},
		{
			name: "called but never defined",
			src:  "int G();\nint F()\n{\n\treturn G();\n}\n",
			code: errors.E3009,
			msg:  "The called function 'G()' isn't defined with body nor imported",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ce := compileError(t, tc.src)
			require.Equal(t, tc.code, ce.Code)
			if tc.msg != "" {
				require.Equal(t, tc.msg, ce.Message)
			}
		})
	}
}

func TestErrorLine(t *testing.T) {
	ce := compileError(t, "void F()\n{\n\tint a;\n\tbreak;\n}\n")
	require.Equal(t, 4, ce.Line)
}

func TestUndefinedSuggestions(t *testing.T) {
	ce := compileError(t, "int food;\nint F()\n{\n\treturn foo;\n}\n")
	require.Equal(t, errors.E3001, ce.Code)
	require.Equal(t, "Unexpected 'foo'", ce.Message)
	var values []string
	for _, s := range ce.Suggestions {
		values = append(values, s.Value)
	}
	require.Contains(t, values, "food")
}

func TestUndeclaredIdentifier(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"local initializer", "int x = foo + 1;"},
		{"assignment", "foo = 3;"},
		{"call", "foo(3);"},
		{"right operand", "return 1 + foo;"},
		{"parenthesized", "return (foo);"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ce := compileError(t, "int food;\nint F()\n{\n\t"+tc.body+"\n\treturn 0;\n}\n")
			require.Equal(t, errors.E3001, ce.Code)
			require.Equal(t, "Unexpected 'foo'", ce.Message)
			require.Equal(t, 4, ce.Line)
			require.NotEmpty(t, ce.Suggestions)
			require.Equal(t, "food", ce.Suggestions[0].Value)
		})
	}

	ce := compileError(t, "int x = foo + 1;\n")
	require.Equal(t, errors.E3001, ce.Code)
	require.Equal(t, "Unexpected 'foo'", ce.Message)
}

func TestIncompleteTopLevel(t *testing.T) {
	ce := compileError(t, "import")
	require.NotContains(t, ce.Message, "(invalid symbol)")

	ce = compileError(t, "int x;\nfoo;\n")
	require.Equal(t, "'foo' is illegal outside a function", ce.Message)
}

func TestSectionNameInErrors(t *testing.T) {
	_, err := Compile("void F()\n{\n\tbreak;\n}\n", &Config{Options: DefaultOptions(), SectionName: "room1.asc"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "room1.asc:3:")
}

func TestCompilerIsReusable(t *testing.T) {
	c := New(nil)
	_, err := c.Compile("int x;\n")
	require.NoError(t, err)
	mod, err := c.Compile("int x;\nint y;\n")
	require.NoError(t, err)
	require.Len(t, mod.GlobalData, 8)
}

func TestIntMin(t *testing.T) {
	src := `
int I = - 2147483648;
export I;

enum Limits
{
	intmin = -2147483648
};

int Def(int foo = -2147483648)
{
	return foo;
}

int UseDefault()
{
	return Def();
}

int Diff()
{
	return -1 - -2147483648;
}

int Min()
{
	return intmin;
}
`
	m := load(t, src)
	ctx := context.Background()
	v, err := m.Global("I")
	require.NoError(t, err)
	require.Equal(t, int32(math.MinInt32), v)

	for fn, want := range map[string]int32{
		"UseDefault": math.MinInt32,
		"Diff":       math.MaxInt32,
		"Min":        math.MinInt32,
	} {
		got, err := m.Run(ctx, fn)
		require.NoError(t, err, fn)
		require.Equal(t, want, got, fn)
	}
}

func TestIntMinMagnitudeNeedsMinus(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"global", "int x = 2147483648;\n"},
		{"expression", "int F()\n{\n\treturn 2147483648;\n}\n"},
		{"unary plus", "int F()\n{\n\treturn +2147483648;\n}\n"},
		{"default", "int F(int a = 2147483648)\n{\n\treturn a;\n}\n"},
		{"enum", "enum E { big = 2147483648 };\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ce := compileError(t, tc.src)
			require.Equal(t, errors.E1006, ce.Code)
			require.Equal(t, "Literal value '2147483648' is too high (max. is 2147483647)", ce.Message)
		})
	}

	ce := compileError(t, "int F()\n{\n\tint a[3];\n\treturn a[-2147483648];\n}\n")
	require.Equal(t, errors.E3012, ce.Code)
	require.Contains(t, ce.Message, "too low")
}

const stringType = `
internalstring autoptr builtin managed struct String
{
};
`

func TestStringLiteralToStringObject(t *testing.T) {
	src := stringType + `
String greeting;
export greeting;

void Greet()
{
	greeting = "hello";
}
`
	mod := compile(t, src)
	require.Contains(t, opcodes(mod), op.CreateString)

	m, err := emu.New(mod)
	require.NoError(t, err)
	_, err = m.Run(context.Background(), "Greet")
	require.NoError(t, err)
	h, err := m.Global("greeting")
	require.NoError(t, err)
	require.NotZero(t, h)
	s, err := m.CString(h)
	require.NoError(t, err)
	require.Equal(t, "hello", s)
}

func TestStringTypeMismatch(t *testing.T) {
	ce := compileError(t, stringType+"String s;\nvoid F()\n{\n\ts = 5;\n}\n")
	require.Equal(t, errors.E3003, ce.Code)
	require.Contains(t, ce.Message, "Cannot assign a type 'int' value to a type")

	ce = compileError(t, stringType+"int x;\nvoid F()\n{\n\tx = \"hello\";\n}\n")
	require.Equal(t, errors.E3003, ce.Code)
	require.Contains(t, ce.Message, "value to a type 'int' variable")
}

func TestMissingParameter(t *testing.T) {
	ce := compileError(t, "int One(int a)\n{\n\treturn a;\n}\nint F()\n{\n\treturn One();\n}\n")
	require.Equal(t, errors.E3005, ce.Code)
	require.Equal(t, "Function call parameter #1 isn't provided and doesn't have any default value", ce.Message)
	require.Equal(t, 7, ce.Line)
}

func TestLeftToRight(t *testing.T) {
	src := "int F()\n{\n\treturn 10 - 3 - 2;\n}\n"
	for _, tc := range []struct {
		leftToRight bool
		want        int32
	}{
		{true, 5},
		{false, 9},
	} {
		mod, err := Compile(src, &Config{Options: Options{LeftToRight: tc.leftToRight}})
		require.NoError(t, err)
		m, err := emu.New(mod)
		require.NoError(t, err)
		got, err := m.Run(context.Background(), "F")
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "left to right: %v", tc.leftToRight)
	}
}

func TestNoImportOverride(t *testing.T) {
	fn := "import int F(int x);\nint F(int x)\n{\n\treturn x;\n}\n"
	mod, err := Compile(fn, nil)
	require.NoError(t, err)
	require.NotContains(t, mod.Imports, "F")

	strict := &Config{Options: Options{NoImportOverride: true}}
	_, err = Compile(fn, strict)
	ce, ok := errors.AsCompileError(err)
	require.True(t, ok, "expected a compile error, got %v", err)
	require.Equal(t, errors.E3014, ce.Code)
	require.Contains(t, ce.Message, `must not have an "import" declaration`)

	_, err = Compile("import int g;\nint g;\n", strict)
	ce, ok = errors.AsCompileError(err)
	require.True(t, ok, "expected a compile error, got %v", err)
	require.Equal(t, errors.E3014, ce.Code)
	require.Equal(t, "'g' is defined as an import variable; that can't be overridden here", ce.Message)
}
