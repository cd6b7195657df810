package symbols

import "github.com/agsc-lang/agsc/op"

// Kind names the variant held by an entry.
type Kind int

const (
	KindNone Kind = iota
	KindKeyword
	KindOperator
	KindAssignment
	KindType
	KindVariable
	KindFunction
	KindConstant
	KindComponent
	KindAttribute
	KindLiteral
)

var kindNames = [...]string{
	KindNone:       "undefined",
	KindKeyword:    "keyword",
	KindOperator:   "operator",
	KindAssignment: "assignment",
	KindType:       "type",
	KindVariable:   "variable",
	KindFunction:   "function",
	KindConstant:   "constant",
	KindComponent:  "struct component",
	KindAttribute:  "attribute",
	KindLiteral:    "literal",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Data is the closed set of things a symbol can denote. Every variant is a
// pointer type declared in this package.
type Data interface {
	Kind() Kind
	clone() Data
}

// Entry is one row of the symbol table.
type Entry struct {
	Name string
	Data Data
	// Section and Line locate the declaration that set Data.
	Section string
	Line    int
	// Accessed is set once an import has been referenced by emitted code.
	Accessed bool
}

// Kind returns the kind of the entry's data, KindNone when untyped.
func (e *Entry) Kind() Kind {
	if e == nil || e.Data == nil {
		return KindNone
	}
	return e.Data.Kind()
}

// Keyword is a reserved word or delimiter.
type Keyword struct{}

func (*Keyword) Kind() Kind    { return KindKeyword }
func (k *Keyword) clone() Data { c := *k; return &c }

// Operator is an expression operator.
type Operator struct {
	BinaryPrio int
	UnaryPrio  int
	IntOp      op.Code
	FloatOp    op.Code
	StringOp   op.Code
}

func (*Operator) Kind() Kind    { return KindOperator }
func (o *Operator) clone() Data { c := *o; return &c }

// Assignment is "=" or a compound assignment such as "+=" or "++".
type Assignment struct {
	// Operator is the arithmetic operator applied before storing, None for
	// plain assignment.
	Operator ID
	// Unary is set for "++" and "--".
	Unary bool
}

func (*Assignment) Kind() Kind    { return KindAssignment }
func (a *Assignment) clone() Data { c := *a; return &c }

// Type describes a primitive type or a struct.
type Type struct {
	Size         int
	Primitive    bool
	Struct       bool
	Managed      bool
	Builtin      bool
	Autoptr      bool
	StringStruct bool
	// Enum is set for enum types. Values of an enum type are ints.
	Enum bool
	// Undefined is set for a struct that has only been forward declared.
	Undefined bool
	Parent    ID
	Members   []ID
}

func (*Type) Kind() Kind { return KindType }
func (t *Type) clone() Data {
	c := *t
	c.Members = append([]ID(nil), t.Members...)
	return &c
}

// Scope tells where a variable lives.
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopeLocal
	ScopeImport
)

func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeLocal:
		return "local"
	case ScopeImport:
		return "import"
	}
	return "unknown"
}

// Variable is a global, imported or local variable, including parameters.
type Variable struct {
	Vartype    Vartype
	Scope      Scope
	Qualifiers Qualifiers
	// Offset is the global data offset, the import index, or for locals
	// the stack offset relative to the local variable block.
	Offset int
	// Nesting is the nesting depth a local was declared at.
	Nesting   int
	Parameter bool
}

func (*Variable) Kind() Kind    { return KindVariable }
func (v *Variable) clone() Data { c := *v; return &c }

// Param is one declared function parameter.
type Param struct {
	Name    ID
	Vartype Vartype
	// Default is the literal or constant supplying the default value, None
	// when the parameter must be passed.
	Default ID
}

// Function is a function or a struct member function.
type Function struct {
	Parent      ID
	Return      Vartype
	Params      []Param
	Variadic    bool
	Qualifiers  Qualifiers
	NoLoopCheck bool
	// HasBody is set when a body for the function appears anywhere in the
	// compilation unit. Defined is set once that body has been compiled.
	HasBody bool
	Defined bool
	// Offset is the code offset of the body, or the import index for
	// imported functions. It is negative while unknown.
	Offset int
}

func (*Function) Kind() Kind { return KindFunction }
func (f *Function) clone() Data {
	c := *f
	c.Params = append([]Param(nil), f.Params...)
	return &c
}

// IsImport reports whether calls go through the import table.
func (f *Function) IsImport() bool { return f.Qualifiers.Import }

// Constant is a compile-time constant such as an enum item.
type Constant struct {
	Vartype Vartype
	// Value is the literal symbol holding the value.
	Value ID
}

func (*Constant) Kind() Kind    { return KindConstant }
func (c *Constant) clone() Data { d := *c; return &d }

// Component is a data member of a struct.
type Component struct {
	Parent     ID
	Vartype    Vartype
	Offset     int
	Qualifiers Qualifiers
}

func (*Component) Kind() Kind    { return KindComponent }
func (c *Component) clone() Data { d := *c; return &d }

// Attribute is a struct member that is read and written through accessor
// functions.
type Attribute struct {
	Parent     ID
	Vartype    Vartype
	Indexed    bool
	Qualifiers Qualifiers
}

func (*Attribute) Kind() Kind    { return KindAttribute }
func (a *Attribute) clone() Data { c := *a; return &c }

// Literal is an int, float or string literal. Float literals store their
// IEEE bits in Value; string literals store their string pool offset.
//
// The source literal 2147483648 is only valid after a unary minus. It is
// interned with Overflow set and Value math.MinInt32, which negates to
// itself.
type Literal struct {
	Vartype  Vartype
	Value    int32
	Overflow bool
}

func (*Literal) Kind() Kind    { return KindLiteral }
func (l *Literal) clone() Data { c := *l; return &c }
