// Package agsc compiles game scripts into bytecode modules.
//
// Compile turns the source of one compilation unit into a module. Run and
// Eval execute a compiled function on the built-in reference interpreter,
// which is mainly useful for testing scripts.
package agsc

import (
	"context"

	"github.com/agsc-lang/agsc/bytecode"
	"github.com/agsc-lang/agsc/compiler"
	"github.com/agsc-lang/agsc/internal/emu"
	"github.com/rs/zerolog"
)

// Option configures a compilation or execution.
type Option func(*options)

// HostFunc implements an imported function for Run. args holds the
// arguments in declaration order.
type HostFunc func(args []int32) (int32, error)

type options struct {
	compilerOptions compiler.Options
	logger          *zerolog.Logger
	sectionName     string
	hosts           map[string]HostFunc
	maxSteps        int
}

func collectOptions(opts ...Option) *options {
	o := &options{
		compilerOptions: compiler.DefaultOptions(),
		hosts:           map[string]HostFunc{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func (o *options) compilerConfig() *compiler.Config {
	return &compiler.Config{
		Options:     o.compilerOptions,
		Logger:      o.logger,
		SectionName: o.sectionName,
	}
}

func (o *options) emuOpts() []emu.Option {
	var opts []emu.Option
	for name, fn := range o.hosts {
		opts = append(opts, emu.WithHost(name, func(_ *emu.Machine, args []int32) (int32, error) {
			return fn(args)
		}))
	}
	if o.maxSteps > 0 {
		opts = append(opts, emu.WithMaxSteps(o.maxSteps))
	}
	if o.logger != nil {
		opts = append(opts, emu.WithTrace(*o.logger))
	}
	return opts
}

// WithOptions replaces the compiler options. The default is
// compiler.DefaultOptions().
func WithOptions(o compiler.Options) Option {
	return func(cfg *options) {
		cfg.compilerOptions = o
	}
}

// WithLogger sets the logger that receives debug events.
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *options) {
		cfg.logger = &l
	}
}

// WithSectionName names the code before the first section marker in
// diagnostics.
func WithSectionName(name string) Option {
	return func(cfg *options) {
		cfg.sectionName = name
	}
}

// WithHost binds an imported function for Run and Eval. This option is
// additive; binding the same name twice keeps the last function.
func WithHost(name string, fn HostFunc) Option {
	return func(cfg *options) {
		cfg.hosts[name] = fn
	}
}

// WithMaxSteps limits the number of instructions Run may execute.
func WithMaxSteps(n int) Option {
	return func(cfg *options) {
		cfg.maxSteps = n
	}
}

// Compile compiles source into a module. The first error aborts the
// compilation; no module is returned then.
func Compile(ctx context.Context, source string, opts ...Option) (*bytecode.Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := collectOptions(opts...)
	return compiler.Compile(source, o.compilerConfig())
}

// Run calls the function name of mod and returns its result. Each call
// starts from the module's initial global data.
func Run(ctx context.Context, mod *bytecode.Module, name string, args []int32, opts ...Option) (int32, error) {
	o := collectOptions(opts...)
	m, err := emu.New(mod, o.emuOpts()...)
	if err != nil {
		return 0, err
	}
	return m.Run(ctx, name, args...)
}

// Eval compiles source and runs the function name.
func Eval(ctx context.Context, source, name string, args []int32, opts ...Option) (int32, error) {
	mod, err := Compile(ctx, source, opts...)
	if err != nil {
		return 0, err
	}
	return Run(ctx, mod, name, args, opts...)
}
