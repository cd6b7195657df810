// Package op defines the opcodes and registers of the script virtual machine
// targeted by the compiler.
package op

// Code is an integer opcode that indicates an operation to execute. Opcodes
// are stored in the same cells as their operands.
type Code int32

const (
	Invalid Code = 0

	// Arithmetic with a literal
	Add Code = 1 // reg += lit
	Sub Code = 2 // reg -= lit
	Mul Code = 32

	// Register moves
	RegToReg Code = 3 // dest = src
	WriteLit Code = 4 // m[MAR] = lit (size, lit)
	LitToReg Code = 6 // reg = lit

	// Memory at MAR
	MemRead    Code = 7
	MemWrite   Code = 8
	MemReadB   Code = 24
	MemReadW   Code = 25
	MemWriteB  Code = 26
	MemWriteW  Code = 27
	ZeroMemory Code = 63

	// Integer register operations: reg1 op= reg2
	MulReg     Code = 9
	DivReg     Code = 10
	AddReg     Code = 11
	SubReg     Code = 12
	BitAnd     Code = 13
	BitOr      Code = 14
	ModReg     Code = 40
	XorReg     Code = 41
	NotReg     Code = 42
	ShiftLeft  Code = 43
	ShiftRight Code = 44

	// Comparisons: reg1 = reg1 op reg2
	IsEqual  Code = 15
	NotEqual Code = 16
	Greater  Code = 17
	LessThan Code = 18
	Gte      Code = 19
	Lte      Code = 20
	And      Code = 21
	Or       Code = 22

	// Control flow
	Ret  Code = 5
	Call Code = 23
	Jz   Code = 28
	Jmp  Code = 31
	Jnz  Code = 70

	// Stack
	PushReg    Code = 29
	PopReg     Code = 30
	LoadSPOffs Code = 51

	// External calls
	CallExt      Code = 33
	PushReal     Code = 34
	SubRealStack Code = 35
	CallAs       Code = 37
	NumFuncArgs  Code = 39
	CallObj      Code = 45

	// Metadata
	LineNum      Code = 36
	ThisBase     Code = 38
	LoopCheckOff Code = 68

	// Bounds and null checks
	CheckBounds   Code = 46
	CheckNull     Code = 52
	CheckNullReg  Code = 67
	DynamicBounds Code = 71

	// Managed pointers
	MemWritePtr  Code = 47
	MemReadPtr   Code = 48
	MemZeroPtr   Code = 49
	MemInitPtr   Code = 50
	MemZeroPtrND Code = 69

	// Floating point
	FAdd      Code = 53
	FSub      Code = 54
	FMulReg   Code = 55
	FDivReg   Code = 56
	FAddReg   Code = 57
	FSubReg   Code = 58
	FGreater  Code = 59
	FLessThan Code = 60
	FGte      Code = 61
	FLte      Code = 62

	// Strings
	CreateString Code = 64
	StringsEqual Code = 65
	StringsNotEq Code = 66

	// Dynamic allocation
	NewArray      Code = 72
	NewUserObject Code = 73
)

// NumCodes is one more than the largest defined opcode.
const NumCodes = 74

// Register identifies one of the virtual machine registers.
type Register int32

const (
	SP  Register = 1 // stack pointer
	MAR Register = 2 // memory address register
	AX  Register = 3 // accumulator
	BX  Register = 4
	CX  Register = 5
	OP  Register = 6 // object pointer for member calls
	DX  Register = 7
)

// NumRegisters is one more than the largest register number.
const NumRegisters = 8

var registerNames = [NumRegisters]string{"?", "sp", "mar", "ax", "bx", "cx", "op", "dx"}

// String returns the lower case assembler name of the register.
func (r Register) String() string {
	if r < 0 || int(r) >= len(registerNames) {
		return "?"
	}
	return registerNames[r]
}

// OperandKind tells a disassembler how to render an operand.
type OperandKind uint8

const (
	Literal OperandKind = iota
	Reg
	Offset // relative jump distance
)

// Info contains information about an opcode.
type Info struct {
	Code         Code
	Name         string
	OperandCount int
	Operands     []OperandKind
}

var infos = make([]Info, NumCodes)

func init() {
	type opInfo struct {
		op       Code
		name     string
		operands []OperandKind
	}
	r, l, o := Reg, Literal, Offset
	ops := []opInfo{
		{Add, "addi", []OperandKind{r, l}},
		{Sub, "subi", []OperandKind{r, l}},
		{RegToReg, "mov", []OperandKind{r, r}},
		{WriteLit, "memwritelit", []OperandKind{l, l}},
		{Ret, "ret", nil},
		{LitToReg, "movl", []OperandKind{r, l}},
		{MemRead, "memread4", []OperandKind{r}},
		{MemWrite, "memwrite4", []OperandKind{r}},
		{MulReg, "mul", []OperandKind{r, r}},
		{DivReg, "div", []OperandKind{r, r}},
		{AddReg, "add", []OperandKind{r, r}},
		{SubReg, "sub", []OperandKind{r, r}},
		{BitAnd, "and", []OperandKind{r, r}},
		{BitOr, "or", []OperandKind{r, r}},
		{IsEqual, "cmpeq", []OperandKind{r, r}},
		{NotEqual, "cmpne", []OperandKind{r, r}},
		{Greater, "gt", []OperandKind{r, r}},
		{LessThan, "lt", []OperandKind{r, r}},
		{Gte, "gte", []OperandKind{r, r}},
		{Lte, "lte", []OperandKind{r, r}},
		{And, "land", []OperandKind{r, r}},
		{Or, "lor", []OperandKind{r, r}},
		{Call, "call", []OperandKind{r}},
		{MemReadB, "memread1", []OperandKind{r}},
		{MemReadW, "memread2", []OperandKind{r}},
		{MemWriteB, "memwrite1", []OperandKind{r}},
		{MemWriteW, "memwrite2", []OperandKind{r}},
		{Jz, "jz", []OperandKind{o}},
		{PushReg, "push", []OperandKind{r}},
		{PopReg, "pop", []OperandKind{r}},
		{Jmp, "jmp", []OperandKind{o}},
		{Mul, "muli", []OperandKind{r, l}},
		{CallExt, "farcall", []OperandKind{r}},
		{PushReal, "farpush", []OperandKind{r}},
		{SubRealStack, "farsubsp", []OperandKind{l}},
		{LineNum, "sourceline", []OperandKind{l}},
		{CallAs, "callscr", []OperandKind{r}},
		{ThisBase, "thisaddr", []OperandKind{l}},
		{NumFuncArgs, "setfuncargs", []OperandKind{l}},
		{ModReg, "mod", []OperandKind{r, r}},
		{XorReg, "xor", []OperandKind{r, r}},
		{NotReg, "not", []OperandKind{r}},
		{ShiftLeft, "shl", []OperandKind{r, r}},
		{ShiftRight, "shr", []OperandKind{r, r}},
		{CallObj, "callobj", []OperandKind{r}},
		{CheckBounds, "checkbounds", []OperandKind{r, l}},
		{MemWritePtr, "memwrite.ptr", []OperandKind{r}},
		{MemReadPtr, "memread.ptr", []OperandKind{r}},
		{MemZeroPtr, "memwrite.ptr.0", nil},
		{MemInitPtr, "meminit.ptr", []OperandKind{r}},
		{LoadSPOffs, "load.sp.offs", []OperandKind{l}},
		{CheckNull, "checknull.ptr", nil},
		{FAdd, "faddi", []OperandKind{r, l}},
		{FSub, "fsubi", []OperandKind{r, l}},
		{FMulReg, "fmul", []OperandKind{r, r}},
		{FDivReg, "fdiv", []OperandKind{r, r}},
		{FAddReg, "fadd", []OperandKind{r, r}},
		{FSubReg, "fsub", []OperandKind{r, r}},
		{FGreater, "fgt", []OperandKind{r, r}},
		{FLessThan, "flt", []OperandKind{r, r}},
		{FGte, "fgte", []OperandKind{r, r}},
		{FLte, "flte", []OperandKind{r, r}},
		{ZeroMemory, "zeromem", []OperandKind{l}},
		{CreateString, "newstring", []OperandKind{r}},
		{StringsEqual, "streq", []OperandKind{r, r}},
		{StringsNotEq, "strnoteq", []OperandKind{r, r}},
		{CheckNullReg, "checknull", []OperandKind{r}},
		{LoopCheckOff, "loopcheckoff", nil},
		{MemZeroPtrND, "memwrite.ptr.0.nd", nil},
		{Jnz, "jnz", []OperandKind{o}},
		{DynamicBounds, "dynamicbounds", []OperandKind{r}},
		{NewArray, "newarray", []OperandKind{r, l, l}},
		{NewUserObject, "newuserobject", []OperandKind{r, l}},
	}
	for _, o := range ops {
		infos[o.op] = Info{
			Code:         o.op,
			Name:         o.name,
			OperandCount: len(o.operands),
			Operands:     o.operands,
		}
	}
}

// GetInfo returns information about the given opcode. Unknown opcodes
// return an Info with an empty Name.
func GetInfo(op Code) Info {
	if op < 0 || int(op) >= len(infos) {
		return Info{Code: op}
	}
	return infos[op]
}

// Valid reports whether op is a defined opcode.
func Valid(op Code) bool {
	return GetInfo(op).Name != ""
}

// IsJump reports whether the single operand of op is a relative jump
// distance.
func IsJump(op Code) bool {
	return op == Jmp || op == Jz || op == Jnz
}

// IsBoolean reports whether the result of op is a truth value.
func IsBoolean(op Code) bool {
	switch op {
	case IsEqual, NotEqual, Greater, LessThan, Gte, Lte, And, Or,
		FGreater, FLessThan, FGte, FLte, StringsEqual, StringsNotEq:
		return true
	}
	return false
}
