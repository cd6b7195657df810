// Package emu executes compiled modules. It implements enough of the script
// virtual machine to run the code the compiler emits, and is used to check
// the behaviour of compiled programs.
package emu

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/agsc-lang/agsc/bytecode"
	"github.com/agsc-lang/agsc/op"
	"github.com/rs/zerolog"
)

const (
	DefaultStackSize = 64 * 1024
	DefaultMaxSteps  = 10_000_000

	// DefaultContextCheckInterval is the number of instructions between
	// checks of ctx.Done().
	DefaultContextCheckInterval = 1000

	// returnSentinel is the return address of the outermost call.
	returnSentinel = -1
)

var (
	ErrStepLimit       = errors.New("step limit exceeded")
	ErrUnknownFunction = errors.New("unknown function")
)

// HostFunc implements an imported function. args holds the arguments in
// declaration order; the result is returned in AX.
type HostFunc func(m *Machine, args []int32) (int32, error)

// RuntimeError is raised by a failing instruction.
type RuntimeError struct {
	PC   int
	Line int
	Msg  string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at line %d (pc %d): %s", e.Line, e.PC, e.Msg)
}

// Machine runs the code of one module.
type Machine struct {
	mod     *bytecode.Module
	code    []int32
	globals []byte
	strings []byte
	stack   []byte
	heap    []byte
	imports [][]byte
	objects map[int32]*object
	hosts   map[string]HostFunc

	regs      [op.NumRegisters]int32
	realStack []int32
	numArgs   int
	pc        int
	opc       int
	line      int
	steps     int

	maxSteps             int
	contextCheckInterval int
	log                  zerolog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithHost binds the imported function name to fn.
func WithHost(name string, fn HostFunc) Option {
	return func(m *Machine) {
		m.hosts[name] = fn
	}
}

// WithMaxSteps limits the number of instructions a single Run may execute.
func WithMaxSteps(n int) Option {
	return func(m *Machine) {
		m.maxSteps = n
	}
}

// WithStackSize sets the size of the stack in bytes.
func WithStackSize(n int) Option {
	return func(m *Machine) {
		m.stack = make([]byte, n)
	}
}

// WithContextCheckInterval sets how often Run checks ctx.Done(). A value
// of 0 disables the check.
func WithContextCheckInterval(interval int) Option {
	return func(m *Machine) {
		m.contextCheckInterval = interval
	}
}

// WithTrace logs every executed instruction at debug level.
func WithTrace(log zerolog.Logger) Option {
	return func(m *Machine) {
		m.log = log
	}
}

// New loads mod. The code and global data are relocated according to the
// fixups of the module; mod itself is not modified.
func New(mod *bytecode.Module, options ...Option) (*Machine, error) {
	m := &Machine{
		mod:                  mod,
		code:                 append([]int32(nil), mod.Code...),
		globals:              append([]byte(nil), mod.GlobalData...),
		strings:              append([]byte(nil), mod.Strings...),
		stack:                make([]byte, DefaultStackSize),
		imports:              make([][]byte, len(mod.Imports)),
		objects:              map[int32]*object{},
		hosts:                map[string]HostFunc{},
		maxSteps:             DefaultMaxSteps,
		contextCheckInterval: DefaultContextCheckInterval,
		log:                  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	if err := m.relocate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Machine) relocate() error {
	for _, f := range m.mod.Fixups {
		loc := int(f.Loc)
		if f.Kind == bytecode.FixupDataData {
			if loc < 0 || loc+4 > len(m.globals) {
				return fmt.Errorf("fixup at global offset %d out of range", loc)
			}
			v := int32(binary.LittleEndian.Uint32(m.globals[loc:]))
			binary.LittleEndian.PutUint32(m.globals[loc:], uint32(tag(regionGlobal, v)))
			continue
		}
		if loc < 0 || loc >= len(m.code) {
			return fmt.Errorf("fixup at code offset %d out of range", loc)
		}
		switch f.Kind {
		case bytecode.FixupGlobalData:
			m.code[loc] = tag(regionGlobal, m.code[loc])
		case bytecode.FixupString:
			m.code[loc] = tag(regionString, m.code[loc])
		case bytecode.FixupStack:
			m.code[loc] = tag(regionStack, m.code[loc])
		case bytecode.FixupImport:
			idx := m.code[loc]
			if idx < 0 || int(idx) >= len(m.mod.Imports) {
				return fmt.Errorf("import index %d out of range", idx)
			}
			m.code[loc] = tag(regionImport, idx<<importShift)
		case bytecode.FixupCode:
		default:
			return fmt.Errorf("unknown fixup kind %d", f.Kind)
		}
	}
	return nil
}

// Register returns the current value of r.
func (m *Machine) Register(r op.Register) int32 { return m.regs[r] }

// Steps returns the number of instructions executed by the last Run.
func (m *Machine) Steps() int { return m.steps }

// Global returns the 32 bit value of the exported variable name.
func (m *Machine) Global(name string) (int32, error) {
	for _, e := range m.mod.Exports {
		if e.Name == name && e.Kind() == bytecode.ExportData {
			return m.read(tag(regionGlobal, e.Offset()), 4)
		}
	}
	return 0, fmt.Errorf("no exported variable %q", name)
}

// GlobalAddress returns the address of the exported variable name.
func (m *Machine) GlobalAddress(name string) (int32, error) {
	for _, e := range m.mod.Exports {
		if e.Name == name && e.Kind() == bytecode.ExportData {
			return tag(regionGlobal, e.Offset()), nil
		}
	}
	return 0, fmt.Errorf("no exported variable %q", name)
}

func (m *Machine) function(name string) (bytecode.Function, error) {
	for _, f := range m.mod.Functions {
		if f.Name == name {
			return f, nil
		}
	}
	return bytecode.Function{}, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
}

// Run calls the function name with args and returns the value it leaves in
// AX.
func (m *Machine) Run(ctx context.Context, name string, args ...int32) (int32, error) {
	f, err := m.function(name)
	if err != nil {
		return 0, err
	}
	m.regs = [op.NumRegisters]int32{}
	m.regs[op.SP] = tag(regionStack, 0)
	m.realStack = m.realStack[:0]
	m.steps = 0
	for i := len(args) - 1; i >= 0; i-- {
		if err := m.push(args[i]); err != nil {
			return 0, err
		}
	}
	if err := m.push(returnSentinel); err != nil {
		return 0, err
	}
	m.pc = int(f.Offset)
	if err := m.eval(ctx); err != nil {
		return 0, err
	}
	return m.regs[op.AX], nil
}

// RunFloat is Run for functions that return a float.
func (m *Machine) RunFloat(ctx context.Context, name string, args ...int32) (float32, error) {
	v, err := m.Run(ctx, name, args...)
	return math.Float32frombits(uint32(v)), err
}

// Float returns the bit pattern of f as the script passes floats around.
func Float(f float32) int32 { return int32(math.Float32bits(f)) }

func (m *Machine) errorf(format string, args ...any) error {
	return &RuntimeError{PC: m.opc, Line: m.line, Msg: fmt.Sprintf(format, args...)}
}

func (m *Machine) push(v int32) error {
	if err := m.write(m.regs[op.SP], 4, v); err != nil {
		return m.errorf("stack overflow")
	}
	m.regs[op.SP] += 4
	return nil
}

func (m *Machine) pop() (int32, error) {
	m.regs[op.SP] -= 4
	if regionOf(m.regs[op.SP]) != regionStack {
		return 0, m.errorf("stack underflow")
	}
	return m.read(m.regs[op.SP], 4)
}

func (m *Machine) reg(v int32) (*int32, error) {
	if v <= 0 || v >= op.NumRegisters {
		return nil, m.errorf("invalid register %d", v)
	}
	return &m.regs[v], nil
}

func (m *Machine) eval(ctx context.Context) error {
	doneChan := ctx.Done()
	var instructionCount int
	for {
		if m.pc == returnSentinel {
			return nil
		}
		if m.pc < 0 || m.pc >= len(m.code) {
			return m.errorf("jump to %d outside of code", m.pc)
		}
		if m.steps++; m.maxSteps > 0 && m.steps > m.maxSteps {
			return ErrStepLimit
		}
		if m.contextCheckInterval > 0 && doneChan != nil {
			instructionCount++
			if instructionCount >= m.contextCheckInterval {
				instructionCount = 0
				select {
				case <-doneChan:
					return ctx.Err()
				default:
				}
			}
		}

		m.opc = m.pc
		code := op.Code(m.code[m.pc])
		info := op.GetInfo(code)
		if info.Name == "" {
			return m.errorf("invalid opcode %d", code)
		}
		end := m.pc + 1 + info.OperandCount
		if end > len(m.code) {
			return m.errorf("truncated instruction '%s'", info.Name)
		}
		args := m.code[m.pc+1 : end]
		m.pc = end
		if e := m.log.Debug(); e.Enabled() {
			e.Int("pc", m.opc).Str("op", info.Name).Ints32("args", args).Msg("step")
		}
		if err := m.exec(code, args); err != nil {
			return err
		}
	}
}

func (m *Machine) exec(code op.Code, args []int32) error {
	switch code {
	case op.LineNum:
		m.line = int(args[0])
	case op.ThisBase, op.LoopCheckOff:
	case op.Add, op.Sub, op.Mul, op.LitToReg, op.FAdd, op.FSub, op.CheckBounds:
		return m.regLit(code, args[0], args[1])
	case op.RegToReg:
		src, err := m.reg(args[0])
		if err != nil {
			return err
		}
		dst, err := m.reg(args[1])
		if err != nil {
			return err
		}
		*dst = *src
	case op.Jmp:
		m.pc += int(args[0])
	case op.Jz:
		if m.regs[op.AX] == 0 {
			m.pc += int(args[0])
		}
	case op.Jnz:
		if m.regs[op.AX] != 0 {
			m.pc += int(args[0])
		}
	case op.PushReg:
		r, err := m.reg(args[0])
		if err != nil {
			return err
		}
		return m.push(*r)
	case op.PopReg:
		r, err := m.reg(args[0])
		if err != nil {
			return err
		}
		v, err := m.pop()
		if err != nil {
			return err
		}
		*r = v
	case op.LoadSPOffs:
		m.regs[op.MAR] = m.regs[op.SP] - args[0]
	case op.Call:
		r, err := m.reg(args[0])
		if err != nil {
			return err
		}
		if err := m.push(int32(m.pc)); err != nil {
			return err
		}
		m.pc = int(*r)
	case op.Ret:
		ret, err := m.pop()
		if err != nil {
			return err
		}
		m.pc = int(ret)
	case op.PushReal:
		r, err := m.reg(args[0])
		if err != nil {
			return err
		}
		m.realStack = append(m.realStack, *r)
	case op.NumFuncArgs:
		m.numArgs = int(args[0])
	case op.SubRealStack:
		n := int(args[0])
		if n > len(m.realStack) {
			return m.errorf("external stack underflow")
		}
		m.realStack = m.realStack[:len(m.realStack)-n]
	case op.CallExt:
		r, err := m.reg(args[0])
		if err != nil {
			return err
		}
		return m.callExt(*r)
	case op.CallObj:
		r, err := m.reg(args[0])
		if err != nil {
			return err
		}
		m.regs[op.OP] = *r
	case op.CallAs:
		return m.errorf("'%s' is not supported", op.GetInfo(code).Name)
	case op.NotReg:
		r, err := m.reg(args[0])
		if err != nil {
			return err
		}
		*r = boolValue(*r == 0)
	case op.CheckNull:
		if m.regs[op.MAR] == 0 {
			return m.errorf("null pointer referenced")
		}
	case op.CheckNullReg:
		r, err := m.reg(args[0])
		if err != nil {
			return err
		}
		if *r == 0 {
			return m.errorf("null string referenced")
		}
	case op.DynamicBounds:
		r, err := m.reg(args[0])
		if err != nil {
			return err
		}
		o, ok := m.objects[m.regs[op.MAR]]
		if !ok {
			return m.errorf("not a dynamic array")
		}
		if *r < 0 || int(*r) >= o.size {
			return m.errorf("array index out of bounds (offset %d, size %d)", *r, o.size)
		}
	case op.WriteLit:
		return m.write(m.regs[op.MAR], int(args[0]), args[1])
	case op.ZeroMemory:
		b, err := m.slice(m.regs[op.MAR], int(args[0]))
		if err != nil {
			return err
		}
		clear(b)
	case op.MemZeroPtr, op.MemZeroPtrND:
		old, err := m.read(m.regs[op.MAR], 4)
		if err != nil {
			return err
		}
		m.release(old)
		return m.write(m.regs[op.MAR], 4, 0)
	case op.NewArray:
		r, err := m.reg(args[0])
		if err != nil {
			return err
		}
		if *r < 0 {
			return m.errorf("invalid size for dynamic array; requested %d elements", *r)
		}
		*r = m.alloc(int(*r) * int(args[1]))
	case op.NewUserObject:
		r, err := m.reg(args[0])
		if err != nil {
			return err
		}
		*r = m.alloc(int(args[1]))
	case op.CreateString:
		r, err := m.reg(args[0])
		if err != nil {
			return err
		}
		if *r == 0 {
			return nil
		}
		s, err := m.CString(*r)
		if err != nil {
			return err
		}
		*r = m.NewString(s)
	default:
		if info := op.GetInfo(code); info.OperandCount == 1 {
			return m.memOp(code, args[0])
		}
		return m.regReg(code, args[0], args[1])
	}
	return nil
}

func (m *Machine) regLit(code op.Code, rv, lit int32) error {
	r, err := m.reg(rv)
	if err != nil {
		return err
	}
	switch code {
	case op.Add:
		*r += lit
	case op.Sub:
		*r -= lit
	case op.Mul:
		*r *= lit
	case op.LitToReg:
		*r = lit
	case op.FAdd:
		*r = Float(math.Float32frombits(uint32(*r)) + float32(lit))
	case op.FSub:
		*r = Float(math.Float32frombits(uint32(*r)) - float32(lit))
	case op.CheckBounds:
		if *r < 0 || *r >= lit {
			return m.errorf("array index out of bounds (index %d, bounds 0..%d)", *r, lit-1)
		}
	}
	return nil
}

// memOp runs the single register instructions that access memory at MAR.
func (m *Machine) memOp(code op.Code, rv int32) error {
	r, err := m.reg(rv)
	if err != nil {
		return err
	}
	mar := m.regs[op.MAR]
	switch code {
	case op.MemRead, op.MemReadPtr:
		*r, err = m.read(mar, 4)
	case op.MemReadW:
		*r, err = m.read(mar, 2)
	case op.MemReadB:
		*r, err = m.read(mar, 1)
	case op.MemWrite:
		err = m.write(mar, 4, *r)
	case op.MemWriteW:
		err = m.write(mar, 2, *r)
	case op.MemWriteB:
		err = m.write(mar, 1, *r)
	case op.MemInitPtr:
		m.retain(*r)
		err = m.write(mar, 4, *r)
	case op.MemWritePtr:
		var old int32
		if old, err = m.read(mar, 4); err != nil {
			return err
		}
		m.retain(*r)
		m.release(old)
		err = m.write(mar, 4, *r)
	default:
		return m.errorf("'%s' is not supported", op.GetInfo(code).Name)
	}
	return err
}

// regReg runs the instructions that combine two registers into the first.
func (m *Machine) regReg(code op.Code, av, bv int32) error {
	a, err := m.reg(av)
	if err != nil {
		return err
	}
	b, err := m.reg(bv)
	if err != nil {
		return err
	}
	fa, fb := math.Float32frombits(uint32(*a)), math.Float32frombits(uint32(*b))
	switch code {
	case op.AddReg:
		*a += *b
	case op.SubReg:
		*a -= *b
	case op.MulReg:
		*a *= *b
	case op.DivReg, op.ModReg:
		if *b == 0 {
			return m.errorf("integer divide by zero")
		}
		if code == op.DivReg {
			*a /= *b
		} else {
			*a %= *b
		}
	case op.BitAnd:
		*a &= *b
	case op.BitOr:
		*a |= *b
	case op.XorReg:
		*a ^= *b
	case op.ShiftLeft:
		*a <<= uint32(*b)
	case op.ShiftRight:
		*a >>= uint32(*b)
	case op.IsEqual:
		*a = boolValue(*a == *b)
	case op.NotEqual:
		*a = boolValue(*a != *b)
	case op.Greater:
		*a = boolValue(*a > *b)
	case op.LessThan:
		*a = boolValue(*a < *b)
	case op.Gte:
		*a = boolValue(*a >= *b)
	case op.Lte:
		*a = boolValue(*a <= *b)
	case op.And:
		*a = boolValue(*a != 0 && *b != 0)
	case op.Or:
		*a = boolValue(*a != 0 || *b != 0)
	case op.FAddReg:
		*a = Float(fa + fb)
	case op.FSubReg:
		*a = Float(fa - fb)
	case op.FMulReg:
		*a = Float(fa * fb)
	case op.FDivReg:
		if fb == 0 {
			return m.errorf("floating point divide by zero")
		}
		*a = Float(fa / fb)
	case op.FGreater:
		*a = boolValue(fa > fb)
	case op.FLessThan:
		*a = boolValue(fa < fb)
	case op.FGte:
		*a = boolValue(fa >= fb)
	case op.FLte:
		*a = boolValue(fa <= fb)
	case op.StringsEqual, op.StringsNotEq:
		eq, err := m.stringsEqual(*a, *b)
		if err != nil {
			return err
		}
		*a = boolValue(eq == (code == op.StringsEqual))
	default:
		return m.errorf("'%s' is not supported", op.GetInfo(code).Name)
	}
	return nil
}

func (m *Machine) stringsEqual(a, b int32) (bool, error) {
	if a == 0 || b == 0 {
		return a == b, nil
	}
	sa, err := m.CString(a)
	if err != nil {
		return false, err
	}
	sb, err := m.CString(b)
	if err != nil {
		return false, err
	}
	return sa == sb, nil
}

func (m *Machine) callExt(target int32) error {
	if regionOf(target) != regionImport {
		return m.errorf("farcall to a non-import address 0x%08x", uint32(target))
	}
	idx := int(target&offsetMask) >> importShift
	if idx >= len(m.mod.Imports) {
		return m.errorf("import index %d out of range", idx)
	}
	name := m.mod.Imports[idx]
	fn, ok := m.hosts[name]
	if !ok {
		// member functions are imported as "Type::Name^arity"
		if i := strings.LastIndexByte(name, '^'); i > 0 {
			fn, ok = m.hosts[name[:i]]
		}
	}
	if !ok {
		return m.errorf("unresolved import '%s'", name)
	}
	if m.numArgs > len(m.realStack) {
		return m.errorf("farcall expects %d arguments, found %d", m.numArgs, len(m.realStack))
	}
	args := make([]int32, m.numArgs)
	for i := range args {
		args[i] = m.realStack[len(m.realStack)-1-i]
	}
	ret, err := fn(m, args)
	if err != nil {
		return m.errorf("%s: %v", name, err)
	}
	m.regs[op.AX] = ret
	return nil
}

func boolValue(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
