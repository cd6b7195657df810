package benchmarks

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/agsc-lang/agsc"
	"github.com/agsc-lang/agsc/bytecode"
)

const fib = `
int Fib(int n)
{
	if (n <= 1)
		return n;
	return Fib(n - 1) + Fib(n - 2);
}
`

// largeScript returns a script with n functions, each calling the next one
// before it is declared.
func largeScript(n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "int g[%d];\n", n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "int F%d(int x)\n{\n\tint y = x * 3 + %d;\n", i, i)
		fmt.Fprintf(&b, "\twhile (y > 100)\n\t\ty -= 7;\n\tg[%d] = y;\n", i)
		if i+1 < n {
			fmt.Fprintf(&b, "\treturn F%d(y);\n}\n\n", i+1)
		} else {
			b.WriteString("\treturn y;\n}\n\n")
		}
	}
	return b.String()
}

func BenchmarkCompileLarge(b *testing.B) {
	ctx := context.Background()
	src := largeScript(200)
	b.SetBytes(int64(len(src)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := agsc.Compile(ctx, src); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMarshal(b *testing.B) {
	mod, err := agsc.Compile(context.Background(), largeScript(200))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		data, err := bytecode.Marshal(mod)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := bytecode.Unmarshal(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFibonacci20(b *testing.B) {
	ctx := context.Background()
	mod, err := agsc.Compile(ctx, fib)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, err := agsc.Run(ctx, mod, "Fib", []int32{20})
		if err != nil {
			b.Fatal(err)
		}
		if result != 6765 {
			b.Fatalf("unexpected result: %d", result)
		}
	}
}
