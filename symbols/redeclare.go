package symbols

import "fmt"

// RedeclarationError reports a declaration that does not match an earlier
// declaration of the same name. Section and Line locate the earlier one.
type RedeclarationError struct {
	Msg     string
	Section string
	Line    int
}

func (e *RedeclarationError) Error() string { return e.Msg }

func (t *Table) redeclared(id ID, format string, args ...any) *RedeclarationError {
	e := t.Entry(id)
	return &RedeclarationError{
		Msg:     fmt.Sprintf(format, args...),
		Section: e.Section,
		Line:    e.Line,
	}
}

// CheckFunction compares a function declaration against what is already
// known about name. A declaration that is followed by a body may omit the
// default values given in an earlier declaration.
func (t *Table) CheckFunction(name ID, this *Function, bodyFollows bool) error {
	known := t.Function(name)
	if known == nil {
		if k := t.Kind(name); k != KindNone {
			return t.redeclared(name, "The name '%s' is declared as a %s elsewhere, as a function here", t.Name(name), k)
		}
		return nil
	}
	fname := t.Name(name)
	if !known.Qualifiers.EqualIgnoringImport(this.Qualifiers) {
		strip := func(q Qualifiers) Qualifiers {
			q.Import, q.TryImport = false, false
			return q
		}
		return t.redeclared(name, "'%s' has the qualifiers '%s' here but '%s' elsewhere",
			fname, strip(this.Qualifiers), strip(known.Qualifiers))
	}
	if len(known.Params) != len(this.Params) {
		return t.redeclared(name, "Function '%s' is declared with %d mandatory parameters here, %d mandatory parameters elswehere",
			fname, len(this.Params), len(known.Params))
	}
	if known.Variadic != this.Variadic {
		here := "is declared to not accept additional parameters here"
		if this.Variadic {
			here = "is declared to accept additional parameters here"
		}
		there := "to not accept additional parameters elsewhere"
		if known.Variadic {
			there = "to accepts additional parameters elsewhere"
		}
		return t.redeclared(name, "Function '%s' %s, %s", fname, here, there)
	}
	if known.Return != this.Return {
		return t.redeclared(name, "Return type of '%s' is declared as '%s' here, as '%s' elsewhere",
			fname, t.VartypeName(this.Return), t.VartypeName(known.Return))
	}
	for i := range this.Params {
		if known.Params[i].Vartype != this.Params[i].Vartype {
			return t.redeclared(name, "For function '%s': Type of parameter #%d is %s here, %s in a declaration elsewhere",
				fname, i+1, t.VartypeName(this.Params[i].Vartype), t.VartypeName(known.Params[i].Vartype))
		}
	}
	if bodyFollows && !hasDefaults(this) {
		return nil
	}
	describe := func(d ID) string {
		if d == None {
			return "doesn't have a default value"
		}
		return "has the default " + t.Name(d)
	}
	for i := range this.Params {
		td, kd := this.Params[i].Default, known.Params[i].Default
		if td == kd {
			continue
		}
		return t.redeclared(name, "In this declaration, parameter #%d %s; in a declaration elsewhere, that parameter %s",
			i+1, describe(td), describe(kd))
	}
	return nil
}

func hasDefaults(f *Function) bool {
	for _, p := range f.Params {
		if p.Default != None {
			return true
		}
	}
	return false
}

// CheckVariable compares a global variable declaration against what is
// already known about name.
func (t *Table) CheckVariable(name ID, this *Variable) error {
	vname := t.Name(name)
	switch t.Kind(name) {
	case KindNone:
		return nil
	case KindConstant:
		return t.redeclared(name, "The name '%s' is declared as a constant elsewhere, as a variable here", vname)
	case KindFunction:
		return t.redeclared(name, "The name '%s' is declared as a function elsewhere, as a variable here", vname)
	case KindType:
		return t.redeclared(name, "The name '%s' is declared as a type elsewhere, as a variable here", vname)
	case KindVariable:
	default:
		return t.redeclared(name, "The name '%s' is declared as a %s elsewhere, as a variable here", vname, t.Kind(name))
	}
	known := t.Variable(name)
	if !known.Qualifiers.EqualIgnoringImport(this.Qualifiers) {
		return t.redeclared(name, "The variable '%s' has the qualifiers '%s' here, but '%s' elsewhere",
			vname, this.Qualifiers, known.Qualifiers)
	}
	if known.Vartype != this.Vartype {
		return t.redeclared(name, "This variable is declared as '%s' here, as '%s' elsewhere",
			t.VartypeName(this.Vartype), t.VartypeName(known.Vartype))
	}
	return nil
}
