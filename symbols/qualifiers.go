package symbols

import (
	"fmt"
	"strings"
)

// Qualifiers is the set of declaration qualifiers that can precede a type.
type Qualifiers struct {
	Attribute      bool
	Autoptr        bool
	Builtin        bool
	Const          bool
	Import         bool
	TryImport      bool
	InternalString bool
	Managed        bool
	Protected      bool
	Readonly       bool
	Static         bool
	WriteProtected bool
}

// Context is the syntactic position a declaration appears in.
type Context int

const (
	ContextGlobal Context = iota
	ContextStruct
	ContextFunctionBody
)

type qualifierField struct {
	keyword ID
	get     func(*Qualifiers) *bool
}

// The order matches the order in which qualifiers are reported and printed.
var qualifierFields = []qualifierField{
	{KwAttribute, func(q *Qualifiers) *bool { return &q.Attribute }},
	{Autoptr, func(q *Qualifiers) *bool { return &q.Autoptr }},
	{Builtin, func(q *Qualifiers) *bool { return &q.Builtin }},
	{Const, func(q *Qualifiers) *bool { return &q.Const }},
	{Import, func(q *Qualifiers) *bool { return &q.Import }},
	{TryImport, func(q *Qualifiers) *bool { return &q.TryImport }},
	{InternalString, func(q *Qualifiers) *bool { return &q.InternalString }},
	{Managed, func(q *Qualifiers) *bool { return &q.Managed }},
	{Protected, func(q *Qualifiers) *bool { return &q.Protected }},
	{Readonly, func(q *Qualifiers) *bool { return &q.Readonly }},
	{Static, func(q *Qualifiers) *bool { return &q.Static }},
	{WriteProtected, func(q *Qualifiers) *bool { return &q.WriteProtected }},
}

// IsQualifier reports whether id is a qualifier keyword.
func IsQualifier(id ID) bool {
	for _, f := range qualifierFields {
		if f.keyword == id {
			return true
		}
	}
	return false
}

// Set turns on the qualifier named by the keyword id. It reports false when
// the qualifier was already set. "_tryimport" implies "import".
func (q *Qualifiers) Set(id ID) bool {
	for _, f := range qualifierFields {
		if f.keyword != id {
			continue
		}
		p := f.get(q)
		if *p {
			return false
		}
		*p = true
		if id == TryImport {
			q.Import = true
		}
		return true
	}
	return false
}

// Has reports whether the qualifier keyword id is set.
func (q Qualifiers) Has(id ID) bool {
	for _, f := range qualifierFields {
		if f.keyword == id {
			return *f.get(&q)
		}
	}
	return false
}

// Empty reports whether no qualifier is set.
func (q Qualifiers) Empty() bool { return q == Qualifiers{} }

// First returns the keyword of the first qualifier that is set, or None.
func (q Qualifiers) First() ID {
	for _, f := range qualifierFields {
		if *f.get(&q) {
			return f.keyword
		}
	}
	return None
}

// String lists the qualifiers that are set, separated by spaces, as they
// would be written in source.
func (q Qualifiers) String() string {
	var parts []string
	for _, f := range qualifierFields {
		if *f.get(&q) {
			parts = append(parts, predefinedNames[f.keyword])
		}
	}
	return strings.Join(parts, " ")
}

// Validate checks that the qualifiers may be combined and are allowed in the
// given context.
func (q Qualifiers) Validate(ctx Context) error {
	if ctx == ContextStruct {
		if q.Builtin {
			return fmt.Errorf("'builtin' is illegal in a struct declaration")
		}
		if q.InternalString {
			return fmt.Errorf("'internalstring' is illegal in a struct declaration")
		}
	} else {
		for _, f := range []struct {
			set  bool
			name string
		}{{q.Attribute, "attribute"}, {q.Protected, "protected"}, {q.WriteProtected, "writeprotected"}} {
			if f.set {
				return fmt.Errorf("'%s' is only legal in a struct declaration", f.name)
			}
		}
	}
	if ctx == ContextFunctionBody {
		for _, f := range []struct {
			set  bool
			name string
		}{
			{q.Autoptr, "autoptr"},
			{q.Builtin, "builtin"},
			{q.Import, "import"},
			{q.Managed, "managed"},
			{q.Static, "static"},
			{q.InternalString, "internalstring"},
		} {
			if f.set {
				return fmt.Errorf("'%s' is illegal in a function body", f.name)
			}
		}
	}
	n := 0
	for _, b := range []bool{q.Protected, q.WriteProtected, q.Readonly} {
		if b {
			n++
		}
	}
	if n > 1 {
		return fmt.Errorf("Can only use one out of 'protected', 'readonly', and 'writeprotected'")
	}
	if q.Autoptr && (!q.Builtin || !q.Managed) {
		return fmt.Errorf("'autoptr' must be combined with 'builtin' and 'managed'")
	}
	if q.InternalString && !q.Autoptr {
		return fmt.Errorf("'internalstring' must be combined with 'autoptr'")
	}
	if q.Const {
		return fmt.Errorf("'const' can only be used for a function parameter (use 'readonly' instead)")
	}
	if q.Import && q.InternalString {
		return fmt.Errorf("Cannot combine 'import' and 'internalstring'")
	}
	return nil
}

// ValidateFor checks the qualifiers that depend on whether the declaration
// is a function or a variable.
func (q Qualifiers) ValidateFor(isFunction bool) error {
	if q.Static && !isFunction {
		return fmt.Errorf("'static' can only be applied to functions that are members of a struct")
	}
	if isFunction && q.Readonly {
		return fmt.Errorf("Readonly cannot be applied to a function")
	}
	if isFunction && q.WriteProtected {
		return fmt.Errorf("'writeprotected' cannot be applied to a function")
	}
	return nil
}

// EqualIgnoringImport reports whether q and o differ at most in the import
// qualifiers.
func (q Qualifiers) EqualIgnoringImport(o Qualifiers) bool {
	q.Import, q.TryImport = false, false
	o.Import, o.TryImport = false, false
	return q == o
}
