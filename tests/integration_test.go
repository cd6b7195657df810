package tests

import (
	"context"
	"strings"
	"testing"

	"github.com/agsc-lang/agsc"
	"github.com/agsc-lang/agsc/errors"
	"github.com/stretchr/testify/require"
)

// section starts a new virtual input file inside a compilation unit.
func section(name string) string {
	return "\n\"__NEWSCRIPTSTART_" + name + "\"\n"
}

func eval(t *testing.T, src, fn string, args []int32, opts ...agsc.Option) int32 {
	t.Helper()
	got, err := agsc.Eval(context.Background(), src, fn, args, opts...)
	require.NoError(t, err)
	return got
}

const inventory = `
import int NextItem(int max);

int inventory[10];
int count;

void AddItem(int item)
{
	if (count < 10)
	{
		inventory[count] = item;
		count++;
	}
}

int Total()
{
	int sum = 0;
	int i = 0;
	while (i < count)
	{
		sum += inventory[i];
		i++;
	}
	return sum;
}

int Fill()
{
	for (int i = 0; i < 12; i++)
		AddItem(NextItem(100));
	return Total();
}
`

func TestInventory(t *testing.T) {
	var calls int32
	next := agsc.WithHost("NextItem", func(args []int32) (int32, error) {
		require.Equal(t, []int32{100}, args)
		calls++
		return calls, nil
	})
	require.Equal(t, int32(55), eval(t, inventory, "Fill", nil, next))
	require.Equal(t, int32(12), calls)
}

func TestHeaderAndScriptSections(t *testing.T) {
	src := "import int Twice(int x);\nint base = 3;\n" +
		section("room1.asc") +
		"int Six()\n{\n\treturn Twice(base);\n}\n"

	mod, err := agsc.Compile(context.Background(), src, agsc.WithSectionName("globals.ash"))
	require.NoError(t, err)
	var names []string
	for _, s := range mod.Sections {
		names = append(names, s.Name)
	}
	require.Contains(t, names, "room1.asc")

	got, err := agsc.Run(context.Background(), mod, "Six", nil,
		agsc.WithHost("Twice", func(args []int32) (int32, error) {
			return args[0] * 2, nil
		}))
	require.NoError(t, err)
	require.Equal(t, int32(6), got)
}

func TestErrorInLaterSection(t *testing.T) {
	src := "int a;\n" + section("room2.asc") + "void F()\n{\n\tbreak;\n}\n"

	_, err := agsc.Compile(context.Background(), src, agsc.WithSectionName("globals.ash"))
	require.Error(t, err)
	ce, ok := errors.AsCompileError(err)
	require.True(t, ok)
	require.Equal(t, "room2.asc", ce.Section)
	require.Equal(t, 3, ce.Line)
	require.True(t, strings.HasPrefix(err.Error(), "room2.asc:3:"))
}

func TestManagedCounter(t *testing.T) {
	src := `
managed struct Counter
{
	int n;
};

int Count(int times)
{
	Counter* c = new Counter;
	int i;
	for (i = 0; i < times; i++)
		c.n += 2;
	return c.n;
}
`
	require.Equal(t, int32(14), eval(t, src, "Count", []int32{7}))
	require.Equal(t, int32(0), eval(t, src, "Count", []int32{0}))
}
