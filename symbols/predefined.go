package symbols

import "github.com/agsc-lang/agsc/op"

// ID identifies an interned name. The same text always yields the same ID
// within one table.
type ID int32

// None is the zero symbol. It never names anything.
const None ID = 0

// Predefined symbols occupy fixed IDs in every table.
const (
	// Delimiters
	OpenParen ID = iota + 1
	CloseParen
	OpenBracket
	CloseBracket
	OpenBrace
	CloseBrace
	Semicolon
	Comma
	Colon
	Dot
	ScopeRes
	Varargs

	// Keywords
	KwAttribute
	Autoptr
	Break
	Builtin
	Case
	Const
	Continue
	Default
	Do
	Else
	Enum
	Export
	Extends
	For
	If
	Import
	TryImport
	InternalString
	Managed
	NoLoopCheck
	Null
	Protected
	Readonly
	Return
	Static
	Struct
	Switch
	This
	While
	WriteProtected

	// Operators
	KwNew
	Tern
	And
	Or
	BitAnd
	BitOr
	BitXor
	BitNeg
	Not
	Plus
	Minus
	Multiply
	Divide
	Modulo
	ShiftLeft
	ShiftRight
	Equal
	NotEqual
	Greater
	GreaterEqual
	Less
	LessEqual

	// Assignments
	Assign
	AssignPlus
	AssignMinus
	AssignMultiply
	AssignDivide
	AssignBitAnd
	AssignBitOr
	AssignBitXor
	AssignShiftLeft
	AssignShiftRight
	Increment
	Decrement

	// Primitive types
	Char
	Float
	Int
	Long
	Short
	String
	Void

	numPredefined
)

// NoPrio marks an operator that cannot appear in a binary or unary position.
const NoPrio = -1

// StringBufferLength is the size of an old-style string variable.
const StringBufferLength = 200

type predef struct {
	id   ID
	name string
	data Data
}

func operator(binary, unary int, codes ...op.Code) *Operator {
	o := &Operator{BinaryPrio: binary, UnaryPrio: unary}
	if len(codes) > 0 {
		o.IntOp = codes[0]
		o.FloatOp = codes[0]
		o.StringOp = codes[0]
	}
	if len(codes) > 1 {
		o.FloatOp = codes[1]
	}
	if len(codes) > 2 {
		o.StringOp = codes[2]
	}
	return o
}

func primitive(size int) *Type {
	return &Type{Size: size, Primitive: true}
}

// The priorities follow the convention that a larger number binds less
// tightly, so the operator with the largest priority is evaluated last.
func predefinedSymbols() []predef {
	return []predef{
		{OpenParen, "(", &Keyword{}},
		{CloseParen, ")", &Keyword{}},
		{OpenBracket, "[", &Keyword{}},
		{CloseBracket, "]", &Keyword{}},
		{OpenBrace, "{", &Keyword{}},
		{CloseBrace, "}", &Keyword{}},
		{Semicolon, ";", &Keyword{}},
		{Comma, ",", &Keyword{}},
		{Colon, ":", &Keyword{}},
		{Dot, ".", &Keyword{}},
		{ScopeRes, "::", &Keyword{}},
		{Varargs, "...", &Keyword{}},

		{KwAttribute, "attribute", &Keyword{}},
		{Autoptr, "autoptr", &Keyword{}},
		{Break, "break", &Keyword{}},
		{Builtin, "builtin", &Keyword{}},
		{Case, "case", &Keyword{}},
		{Const, "const", &Keyword{}},
		{Continue, "continue", &Keyword{}},
		{Default, "default", &Keyword{}},
		{Do, "do", &Keyword{}},
		{Else, "else", &Keyword{}},
		{Enum, "enum", &Keyword{}},
		{Export, "export", &Keyword{}},
		{Extends, "extends", &Keyword{}},
		{For, "for", &Keyword{}},
		{If, "if", &Keyword{}},
		{Import, "import", &Keyword{}},
		{TryImport, "_tryimport", &Keyword{}},
		{InternalString, "internalstring", &Keyword{}},
		{Managed, "managed", &Keyword{}},
		{NoLoopCheck, "noloopcheck", &Keyword{}},
		{Null, "null", &Keyword{}},
		{Protected, "protected", &Keyword{}},
		{Readonly, "readonly", &Keyword{}},
		{Return, "return", &Keyword{}},
		{Static, "static", &Keyword{}},
		{Struct, "struct", &Keyword{}},
		{Switch, "switch", &Keyword{}},
		{This, "this", &Keyword{}},
		{While, "while", &Keyword{}},
		{WriteProtected, "writeprotected", &Keyword{}},

		{KwNew, "new", operator(NoPrio, 101)},
		{Tern, "?", operator(120, NoPrio)},
		{And, "&&", operator(118, NoPrio, op.And)},
		{Or, "||", operator(119, NoPrio, op.Or)},
		{BitAnd, "&", operator(109, NoPrio, op.BitAnd)},
		{BitOr, "|", operator(110, NoPrio, op.BitOr)},
		{BitXor, "^", operator(110, NoPrio, op.XorReg)},
		{BitNeg, "~", operator(NoPrio, 101)},
		{Not, "!", operator(NoPrio, 101, op.NotReg)},
		{Plus, "+", operator(105, 101, op.AddReg, op.FAddReg)},
		{Minus, "-", operator(105, 101, op.SubReg, op.FSubReg)},
		{Multiply, "*", operator(103, NoPrio, op.MulReg, op.FMulReg)},
		{Divide, "/", operator(103, NoPrio, op.DivReg, op.FDivReg)},
		{Modulo, "%", operator(103, NoPrio, op.ModReg)},
		{ShiftLeft, "<<", operator(107, NoPrio, op.ShiftLeft)},
		{ShiftRight, ">>", operator(107, NoPrio, op.ShiftRight)},
		{Equal, "==", operator(112, NoPrio, op.IsEqual, op.IsEqual, op.StringsEqual)},
		{NotEqual, "!=", operator(112, NoPrio, op.NotEqual, op.NotEqual, op.StringsNotEq)},
		{Greater, ">", operator(112, NoPrio, op.Greater, op.FGreater)},
		{GreaterEqual, ">=", operator(112, NoPrio, op.Gte, op.FGte)},
		{Less, "<", operator(112, NoPrio, op.LessThan, op.FLessThan)},
		{LessEqual, "<=", operator(112, NoPrio, op.Lte, op.FLte)},

		{Assign, "=", &Assignment{}},
		{AssignPlus, "+=", &Assignment{Operator: Plus}},
		{AssignMinus, "-=", &Assignment{Operator: Minus}},
		{AssignMultiply, "*=", &Assignment{Operator: Multiply}},
		{AssignDivide, "/=", &Assignment{Operator: Divide}},
		{AssignBitAnd, "&=", &Assignment{Operator: BitAnd}},
		{AssignBitOr, "|=", &Assignment{Operator: BitOr}},
		{AssignBitXor, "^=", &Assignment{Operator: BitXor}},
		{AssignShiftLeft, "<<=", &Assignment{Operator: ShiftLeft}},
		{AssignShiftRight, ">>=", &Assignment{Operator: ShiftRight}},
		{Increment, "++", &Assignment{Operator: Plus, Unary: true}},
		{Decrement, "--", &Assignment{Operator: Minus, Unary: true}},

		{Char, "char", primitive(1)},
		{Float, "float", primitive(4)},
		{Int, "int", primitive(4)},
		{Long, "long", primitive(4)},
		{Short, "short", primitive(2)},
		{String, "string", primitive(StringBufferLength)},
		{Void, "void", primitive(0)},
	}
}
