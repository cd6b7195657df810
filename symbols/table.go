// Package symbols implements the symbol table shared by the tokenizer and
// both compiler passes.
//
// Every distinct name or literal is interned once and identified by an ID.
// What the name denotes is held in the entry's Data, which is one of the
// variant types declared in this package.
package symbols

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var predefinedNames [numPredefined]string

func init() {
	for _, p := range predefinedSymbols() {
		predefinedNames[p.id] = p.name
	}
}

// Table interns names and stores what they denote.
type Table struct {
	entries      []Entry
	index        map[string]ID
	stringStruct ID
}

// New returns a table holding only the predefined symbols.
func New() *Table {
	t := &Table{
		entries: make([]Entry, numPredefined, 256),
		index:   make(map[string]ID, 256),
	}
	for _, p := range predefinedSymbols() {
		t.entries[p.id] = Entry{Name: p.name, Data: p.data}
		t.index[p.name] = p.id
	}
	return t
}

// FindOrAdd returns the ID of name, interning it first if necessary.
func (t *Table) FindOrAdd(name string) ID {
	if id, ok := t.index[name]; ok {
		return id
	}
	id := ID(len(t.entries))
	t.entries = append(t.entries, Entry{Name: name})
	t.index[name] = id
	return id
}

// Find returns the ID of name if it has been interned.
func (t *Table) Find(name string) (ID, bool) {
	id, ok := t.index[name]
	return id, ok
}

// IsPredefined reports whether id is a delimiter, keyword, operator or
// primitive type.
func IsPredefined(id ID) bool { return id > None && id < numPredefined }

// IsIdentifier reports whether id is a name the source may declare.
func (t *Table) IsIdentifier(id ID) bool {
	return t.Valid(id) && !IsPredefined(id) && t.Kind(id) != KindLiteral
}

// Len returns the number of interned symbols, including None.
func (t *Table) Len() int { return len(t.entries) }

// Valid reports whether id refers to an interned symbol.
func (t *Table) Valid(id ID) bool { return id > None && int(id) < len(t.entries) }

// Entry returns the entry for id. It returns nil for invalid IDs.
func (t *Table) Entry(id ID) *Entry {
	if !t.Valid(id) {
		return nil
	}
	return &t.entries[id]
}

// Name returns the text of id.
func (t *Table) Name(id ID) string {
	if !t.Valid(id) {
		return "(invalid symbol)"
	}
	return t.entries[id].Name
}

// Kind returns the kind of what id denotes.
func (t *Table) Kind(id ID) Kind { return t.Entry(id).Kind() }

// Set stores data for id and records where it was declared.
func (t *Table) Set(id ID, data Data, section string, line int) {
	e := t.Entry(id)
	if e == nil {
		return
	}
	e.Data = data
	e.Section = section
	e.Line = line
}

// Clear removes what id denotes, keeping its name.
func (t *Table) Clear(id ID) {
	if e := t.Entry(id); e != nil {
		e.Data = nil
		e.Section, e.Line = "", 0
		e.Accessed = false
	}
}

// Names returns every declared name, sorted. Predefined symbols and literals
// are left out.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.entries))
	for _, e := range t.entries[numPredefined:] {
		if e.Data != nil && e.Kind() != KindLiteral {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names
}

func (t *Table) IsKeyword(id ID) bool    { return t.Kind(id) == KindKeyword }
func (t *Table) IsOperator(id ID) bool   { return t.Kind(id) == KindOperator }
func (t *Table) IsAssignment(id ID) bool { return t.Kind(id) == KindAssignment }
func (t *Table) IsType(id ID) bool       { return t.Kind(id) == KindType }
func (t *Table) IsLiteral(id ID) bool    { return t.Kind(id) == KindLiteral }

// Operator, Assignment and friends return the typed data of id, or nil when id
// denotes something else.
func (t *Table) Operator(id ID) *Operator     { d, _ := t.data(id).(*Operator); return d }
func (t *Table) Assignment(id ID) *Assignment { d, _ := t.data(id).(*Assignment); return d }
func (t *Table) Type(id ID) *Type             { d, _ := t.data(id).(*Type); return d }
func (t *Table) Variable(id ID) *Variable     { d, _ := t.data(id).(*Variable); return d }
func (t *Table) Function(id ID) *Function     { d, _ := t.data(id).(*Function); return d }
func (t *Table) Constant(id ID) *Constant     { d, _ := t.data(id).(*Constant); return d }
func (t *Table) Component(id ID) *Component   { d, _ := t.data(id).(*Component); return d }
func (t *Table) Attribute(id ID) *Attribute   { d, _ := t.data(id).(*Attribute); return d }
func (t *Table) Literal(id ID) *Literal       { d, _ := t.data(id).(*Literal); return d }

func (t *Table) data(id ID) Data {
	if e := t.Entry(id); e != nil {
		return e.Data
	}
	return nil
}

// IsStruct reports whether base is a struct type.
func (t *Table) IsStruct(base ID) bool {
	ty := t.Type(base)
	return ty != nil && ty.Struct
}

// IsManaged reports whether base is a managed struct type.
func (t *Table) IsManaged(base ID) bool {
	ty := t.Type(base)
	return ty != nil && ty.Managed
}

// IsAutoptr reports whether base is an autopointered type such as String.
func (t *Table) IsAutoptr(base ID) bool {
	ty := t.Type(base)
	return ty != nil && ty.Autoptr
}

// StringStruct returns the internal string type, or None if the source has
// not declared one.
func (t *Table) StringStruct() ID { return t.stringStruct }

// SetStringStruct marks base as the internal string type.
func (t *Table) SetStringStruct(base ID) {
	t.stringStruct = base
	if ty := t.Type(base); ty != nil {
		ty.StringStruct = true
	}
}

// IsStringObject reports whether vt is a pointer to the internal string
// type.
func (t *Table) IsStringObject(vt Vartype) bool {
	return t.stringStruct != None && vt.Base == t.stringStruct && vt.IsDynpointer()
}

// IsAnyString reports whether vt is an old-style string, a pointer to the
// internal string type, or const string.
func (t *Table) IsAnyString(vt Vartype) bool {
	vt.Const = false
	return vt.IsOldString() || t.IsStringObject(vt)
}

// Size returns the number of bytes a value of vt occupies.
func (t *Table) Size(vt Vartype) int {
	var elem int
	switch {
	case vt.Dynarray:
		return 4
	case vt.Pointer:
		elem = 4
	default:
		if ty := t.Type(vt.Base); ty != nil {
			elem = ty.Size
		}
	}
	if vt.Array > 0 {
		return elem * vt.Array
	}
	return elem
}

// ElementSize returns the size of one element of an array vartype.
func (t *Table) ElementSize(vt Vartype) int {
	if vt.Pointer {
		return 4
	}
	if ty := t.Type(vt.Base); ty != nil {
		return ty.Size
	}
	return 0
}

// VartypeName renders vt as it would be declared, e.g. "const int[5]" or
// "String *".
func (t *Table) VartypeName(vt Vartype) string {
	if vt.IsNull() {
		return "null"
	}
	var sb strings.Builder
	if vt.Const {
		sb.WriteString("const ")
	}
	sb.WriteString(t.Name(vt.Base))
	if vt.Pointer {
		sb.WriteString(" *")
	}
	if vt.Dynarray {
		sb.WriteString("[]")
	}
	if vt.Array > 0 {
		fmt.Fprintf(&sb, "[%d]", vt.Array)
	}
	return sb.String()
}

// Mangle returns the symbol for "Struct::member".
func (t *Table) Mangle(structName, member ID) ID {
	return t.FindOrAdd(t.Name(structName) + "::" + t.Name(member))
}

// Unmangle strips the "Struct::" prefix from name.
func Unmangle(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}

// FindMember looks up member in the struct and its ancestors. It returns the
// mangled symbol of the nearest declaration.
func (t *Table) FindMember(structName, member ID) (ID, bool) {
	plain := Unmangle(t.Name(member))
	for s := structName; s != None; {
		if id, ok := t.Find(t.Name(s) + "::" + plain); ok && t.Kind(id) != KindNone {
			return id, true
		}
		ty := t.Type(s)
		if ty == nil {
			break
		}
		s = ty.Parent
	}
	return None, false
}

// Extends reports whether child is parent or derives from it.
func (t *Table) Extends(child, parent ID) bool {
	for s := child; s != None; {
		if s == parent {
			return true
		}
		ty := t.Type(s)
		if ty == nil {
			return false
		}
		s = ty.Parent
	}
	return false
}

// IntLiteral returns a literal symbol holding v.
func (t *Table) IntLiteral(v int32) ID {
	id := t.FindOrAdd(strconv.FormatInt(int64(v), 10))
	if t.Kind(id) == KindNone {
		t.entries[id].Data = &Literal{Vartype: Of(Int), Value: v}
	}
	return id
}

// FloatLiteral returns a literal symbol holding f.
func (t *Table) FloatLiteral(f float32) ID {
	text := strconv.FormatFloat(float64(f), 'g', -1, 32)
	if !strings.ContainsAny(text, ".eEn") {
		text += ".0"
	}
	id := t.FindOrAdd(text)
	if t.Kind(id) == KindNone {
		t.entries[id].Data = &Literal{Vartype: Of(Float), Value: int32(math.Float32bits(f))}
	}
	return id
}

// LiteralFloat returns the float value stored in a float literal.
func LiteralFloat(l *Literal) float32 {
	return math.Float32frombits(uint32(l.Value))
}
