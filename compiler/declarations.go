package compiler

import (
	"encoding/binary"
	"fmt"

	"github.com/agsc-lang/agsc/bytecode"
	"github.com/agsc-lang/agsc/errors"
	"github.com/agsc-lang/agsc/internal/token"
	"github.com/agsc-lang/agsc/op"
	"github.com/agsc-lang/agsc/symbols"
)

// parseQualifiers reads the qualifier keywords in front of a declaration.
// Repeating a qualifier is harmless.
func (c *Compiler) parseQualifiers() (symbols.Qualifiers, error) {
	var q symbols.Qualifiers
	var std, try bool
	for !c.src.AtEnd() {
		s := c.src.PeekNext()
		if !symbols.IsQualifier(s) {
			break
		}
		c.src.GetNext()
		q.Set(s)
		switch s {
		case symbols.Import:
			std = true
		case symbols.TryImport:
			try = true
		}
		if std && try {
			return q, c.errorf(errors.E3010, "Cannot both use 'import' and '_tryimport'")
		}
	}
	return q, nil
}

func (c *Compiler) checkQualifiers(q symbols.Qualifiers, inFuncBody, inStruct bool) error {
	ctx := symbols.ContextGlobal
	switch {
	case inStruct:
		ctx = symbols.ContextStruct
	case inFuncBody:
		ctx = symbols.ContextFunctionBody
	}
	if err := q.Validate(ctx); err != nil {
		return c.errorf(errors.E3010, "%s", err)
	}
	return nil
}

func (c *Compiler) checkQualifiersEmpty(q symbols.Qualifiers) error {
	if q.Empty() {
		return nil
	}
	return c.errorf(errors.E2001, "Unexpected '%s' before a command", c.table.Name(q.First()))
}

// vartypeOf returns the vartype a declaration of type base starts with.
// Values of enum types are ints.
func (c *Compiler) vartypeOf(base symbols.ID) symbols.Vartype {
	if ty := c.table.Type(base); ty != nil && ty.Enum {
		return symbols.Of(symbols.Int)
	}
	return symbols.Of(base)
}

// arity is the parameter count as encoded in import and export names.
func arity(f *symbols.Function) int {
	if f.Variadic {
		return len(f.Params) + 100
	}
	return len(f.Params)
}

// parseVartype compiles the declarations that follow the type base: a
// comma separated list of variables, or a function.
func (c *Compiler) parseVartype(base symbols.ID, q symbols.Qualifiers) error {
	if c.src.AtEnd() {
		return c.errorf(errors.E2005, "Unexpected end of input (did you forget ';'?)")
	}
	if q.Builtin {
		return c.errorf(errors.E3010, "'builtin' can only be used in a struct declaration")
	}
	switch c.nest.top().kind {
	case frameSwitch:
		return c.errorf(errors.E2001, "Cannot use declarations directly within a switch body. (Put \"{ ... }\" around the case statements)")
	case frameBraces, frameFunction, frameNone:
	default:
		return c.errorf(errors.E2001, "A declaration cannot be the sole body of an 'if', 'else' or loop clause")
	}
	if ty := c.table.Type(base); ty != nil && ty.Struct && ty.Undefined {
		c.markAccessed(base)
	}

	scope := symbols.ScopeGlobal
	switch {
	case c.funcName != symbols.None:
		scope = symbols.ScopeLocal
	case q.Import:
		scope = symbols.ScopeImport
	}

	vt := c.vartypeOf(base)
	if (q.Import && c.src.PeekNext() == symbols.Multiply) || (!q.Import && c.table.IsManaged(base)) {
		vt.Pointer = true
	}
	if c.src.PeekNext() == symbols.Multiply {
		c.src.GetNext()
		if c.pass == passMain && !c.table.IsManaged(base) {
			return c.errorf(errors.E3003, "Cannot use '*' on the non-managed type '%s'", c.table.Name(base))
		}
	}
	dyn := false
	if c.src.PeekNext() == symbols.OpenBracket {
		c.src.GetNext()
		if err := c.expect(symbols.CloseBracket); err != nil {
			return err
		}
		dyn = true
	}
	noLoopCheck := false
	if c.src.PeekNext() == symbols.NoLoopCheck {
		c.src.GetNext()
		noLoopCheck = true
	}

	for {
		strct, name, err := c.parseVarname(true)
		if err != nil {
			return err
		}
		isFunc := c.src.PeekNext() == symbols.OpenParen
		if err := q.ValidateFor(isFunc); err != nil {
			return c.errorf(errors.E3010, "%s", err)
		}
		if isFunc {
			ret := vt
			if dyn {
				ret = ret.DynarrayOf()
			}
			body, err := c.funcDecl(strct, name, q, ret, noLoopCheck)
			if err != nil || body {
				return err
			}
		} else {
			if dyn || noLoopCheck {
				return c.errorf(errors.E2002, "Expected '('")
			}
			if strct != symbols.None {
				return c.errorf(errors.E2003, "Variable may not contain '::'")
			}
			if err := c.vardecl(name, vt, q, scope); err != nil {
				return err
			}
		}

		punct := c.src.GetNext()
		if err := c.expectOneOf(punct, symbols.Comma, symbols.Semicolon); err != nil {
			return err
		}
		if punct == symbols.Semicolon {
			return nil
		}
	}
}

// parseVarname reads a declared name. With acceptMember set, "Struct::name"
// is accepted; it returns the struct and the mangled name then.
func (c *Compiler) parseVarname(acceptMember bool) (strct, name symbols.ID, err error) {
	name = c.src.GetNext()
	if !c.table.IsIdentifier(name) {
		return symbols.None, name, c.errorf(errors.E2001, "Expected an identifier, found '%s' instead", c.symName(name))
	}
	if c.src.PeekNext() != symbols.ScopeRes {
		return symbols.None, name, nil
	}
	c.src.GetNext()
	if !acceptMember {
		return symbols.None, name, c.errorf(errors.E2001, "May not use '::' here")
	}
	strct = name
	member := c.src.GetNext()
	mangled := c.table.Mangle(strct, member)
	if !c.table.IsType(strct) || c.members[mangled] {
		return strct, mangled, nil
	}
	if inherited, ok := c.table.FindMember(strct, member); ok {
		return strct, inherited, nil
	}
	return strct, mangled, c.errorRef(errors.E3001, strct, "'%s' isn't a component of '%s'", c.symName(member), c.table.Name(strct))
}

// bodyFollows reports whether a '{' follows the parameter list whose '(' has
// just been read.
func (c *Compiler) bodyFollows() bool {
	closer := skipTo(c.src, c.src.Cursor())
	return c.src.At(closer) == symbols.CloseParen && c.src.At(closer+1) == symbols.OpenBrace
}

// funcDecl compiles a function declaration whose name has been read. It
// reports whether a body follows; in that case the body is now open.
func (c *Compiler) funcDecl(strct, name symbols.ID, q symbols.Qualifiers, ret symbols.Vartype, noLoopCheck bool) (bool, error) {
	c.src.GetNext() // '('
	body := c.bodyFollows()
	if body && c.funcName != symbols.None {
		return false, c.errorf(errors.E2003, "Function bodies cannot nest, but the body of function %s is still open. (Did you forget a '}'?)",
			c.table.Name(c.funcName))
	}
	if strct == symbols.None {
		if p := c.src.PeekNext(); p == symbols.Static || p == symbols.This {
			var err error
			if strct, name, err = c.extenderPreparations(name, &q); err != nil {
				return false, err
			}
		}
	}
	if err := c.funcHeader(strct, name, q, ret, noLoopCheck, body); err != nil {
		return false, err
	}
	if body {
		c.funcName, c.funcStruct = name, strct
	}
	return body, nil
}

// extenderPreparations handles "this Struct *" or "static Struct" at the
// start of a parameter list. The function becomes a member of the struct.
func (c *Compiler) extenderPreparations(name symbols.ID, q *symbols.Qualifiers) (strct, qualified symbols.ID, err error) {
	static := c.src.GetNext() == symbols.Static
	if static {
		q.Static = true
	}
	strct = c.src.GetNext()
	if !c.table.IsStruct(strct) {
		return strct, name, c.errorf(errors.E3001, "Expected a struct type instead of '%s'", c.symName(strct))
	}
	qualified = c.table.Mangle(strct, name)
	if c.src.PeekNext() == symbols.Multiply {
		if static {
			return strct, qualified, c.errorf(errors.E2001, "Unexpected '*' after 'static' in static extender function")
		}
		c.src.GetNext()
	}
	c.addMember(strct, qualified)

	punct := c.src.PeekNext()
	if err := c.expectOneOf(punct, symbols.Comma, symbols.CloseParen); err != nil {
		return strct, qualified, err
	}
	if punct == symbols.Comma {
		c.src.GetNext()
	}
	return strct, qualified, nil
}

// addMember records member as declared within strct.
func (c *Compiler) addMember(strct, member symbols.ID) {
	c.members[member] = true
	ty := c.table.Type(strct)
	if ty == nil {
		return
	}
	for _, m := range ty.Members {
		if m == member {
			return
		}
	}
	ty.Members = append(ty.Members, member)
}

// funcHeader compiles the parameter list and enters the function into the
// symbol table. In the main pass, a function whose body follows gets its
// address and its parameters become locals.
func (c *Compiler) funcHeader(strct, name symbols.ID, q symbols.Qualifiers, ret symbols.Vartype, noLoopCheck, body bool) error {
	fname := c.table.Name(name)
	if strct == symbols.None && q.Protected {
		return c.errorf(errors.E3010, "Function '%s' isn't a struct component and so cannot be 'protected'", fname)
	}
	if !body && noLoopCheck {
		return c.errorf(errors.E2003, "Can only use 'noloopcheck' when a function body follows the definition")
	}
	if k := c.table.Kind(name); k != symbols.KindFunction && k != symbols.KindNone {
		return c.errorRef(errors.E3002, name, "'%s' is defined elsewhere as a non-function", fname)
	}
	if c.table.IsStruct(ret.Base) && !c.table.IsManaged(ret.Base) {
		return c.errorf(errors.E3003, "Can only return a struct when it is 'managed'")
	}

	known := c.table.Function(name)
	if c.pass == passPreAnalyze && body && known != nil && known.HasBody {
		return c.errorRef(errors.E3002, name, "Function '%s' is already defined with body elsewhere", fname)
	}
	if c.pass == passMain && strct != symbols.None && !c.members[name] {
		return c.errorf(errors.E3001, "Function '%s' has not been declared within struct '%s' as a component",
			symbols.Unmangle(fname), c.table.Name(strct))
	}
	if q.Import && known != nil && !known.IsImport() {
		if c.opts.NoImportOverride {
			return c.errorRef(errors.E3014, name, "In here, a function with a local body must not have an \"import\" declaration")
		}
		q.Import, q.TryImport = false, false
	}

	if c.pass == passMain && body {
		c.nest.push(frameParameters)
		c.offset += 4 // return address
	}

	f := &symbols.Function{
		Parent: strct,
		Return: ret,
		Qualifiers: symbols.Qualifiers{
			Const:          q.Const,
			Import:         q.Import,
			TryImport:      q.TryImport,
			Protected:      q.Protected,
			Readonly:       q.Readonly,
			Static:         q.Static,
			WriteProtected: q.WriteProtected,
		},
		NoLoopCheck: noLoopCheck,
		Offset:      -1,
	}
	if err := c.paramList(f, body); err != nil {
		return err
	}
	if err := c.table.CheckFunction(name, f, body); err != nil {
		return c.redeclarationError(err)
	}
	if known != nil {
		for i := range f.Params {
			if f.Params[i].Default == symbols.None && i < len(known.Params) {
				f.Params[i].Default = known.Params[i].Default
			}
		}
		f.HasBody = known.HasBody
		f.NoLoopCheck = f.NoLoopCheck || known.NoLoopCheck
	}
	if body {
		f.HasBody = true
	}

	if c.pass == passMain {
		switch {
		case body:
			if known != nil && known.IsImport() && c.table.Entry(name).Accessed {
				return c.errorf(errors.E3014, "Already referenced name as import; you must define it before using it")
			}
			f.Offset = c.mod.Loc()
			f.Defined = true
			c.mod.AddFunction(fname, f.Offset, arity(f))
			c.localCalls.Set(name, f.Offset)
		case f.IsImport():
			iname := fname
			if strct != symbols.None {
				iname = fmt.Sprintf("%s^%d", fname, arity(f))
			}
			f.Offset = c.imports.FindOrAdd(iname)
			c.importCalls.Set(name, f.Offset)
		case known != nil:
			f.Offset, f.Defined = known.Offset, known.Defined
		}
	}
	c.declare(name, f)
	return nil
}

// paramList compiles the parameters up to and including the ')'.
func (c *Compiler) paramList(f *symbols.Function, body bool) error {
	n := 0
	for !c.src.AtEnd() {
		s := c.src.GetNext()
		switch {
		case s == symbols.CloseParen:
			return nil
		case s == symbols.Varargs:
			f.Variadic = true
			return c.expectMsg(symbols.CloseParen, "Expected ')' following the '...'")
		case s == symbols.Void && n == 0 && c.src.PeekNext() == symbols.CloseParen:
			c.src.GetNext()
			return nil
		}

		isConst := s == symbols.Const
		if isConst {
			if !c.table.IsType(c.src.PeekNext()) {
				return c.errorf(errors.E2002, "Expected a type after 'const', found '%s' instead", c.symName(c.src.PeekNext()))
			}
			s = c.src.GetNext()
		}
		if !c.table.IsType(s) {
			return c.errorf(errors.E2001, "Unexpected '%s' in parameter list", c.symName(s))
		}
		n++
		if n >= MaxParams {
			return c.errorf(errors.E3004, "Too many parameters defined for function (max. allowed: %d)", MaxParams-1)
		}
		if err := c.param(f, s, isConst, n, body); err != nil {
			return err
		}
		switch punct := c.src.GetNext(); punct {
		case symbols.Comma:
		case symbols.CloseParen:
			return nil
		default:
			return c.errorf(errors.E2002, "Expected ',' or ')' or an identifier, found '%s' instead", c.symName(punct))
		}
	}
	return c.errorf(errors.E2005, "Unexpected end of input")
}

// param compiles the n-th parameter (1-based) whose type has been read.
func (c *Compiler) param(f *symbols.Function, typ symbols.ID, isConst bool, n int, body bool) error {
	if typ == symbols.Void {
		return c.errorf(errors.E3003, "A function parameter must not have the type 'void'")
	}
	vt := c.vartypeOf(typ)
	if c.table.IsManaged(typ) {
		vt.Pointer = true
	}
	if c.src.PeekNext() == symbols.Multiply {
		c.src.GetNext()
	}
	if c.pass == passMain && c.table.IsStruct(typ) && !c.table.IsManaged(typ) {
		return c.errorf(errors.E3003, "'%s' is non-managed; a non-managed struct cannot be passed as parameter", c.table.Name(typ))
	}
	vt.Const = isConst

	name := symbols.None
	if c.pass == passPreAnalyze || !body {
		if c.table.IsIdentifier(c.src.PeekNext()) {
			name = c.src.GetNext()
		}
	} else {
		var err error
		if _, name, err = c.parseVarname(false); err != nil {
			return err
		}
		switch c.table.Kind(name) {
		case symbols.KindFunction:
			c.warnf("This hides the function '%s()'", c.table.Name(name))
		case symbols.KindVariable:
			if c.table.Variable(name).Scope == symbols.ScopeLocal {
				return c.errorf(errors.E3002, "The name '%s' is already in use as a parameter", c.table.Name(name))
			}
		case symbols.KindType:
			c.warnf("This hides the type '%s'", c.table.Name(name))
		}
	}

	if c.src.PeekNext() == symbols.OpenBracket {
		c.src.GetNext()
		if err := c.expect(symbols.CloseBracket); err != nil {
			return err
		}
		vt = vt.DynarrayOf()
	}
	def := symbols.None
	if c.src.PeekNext() == symbols.Assign {
		c.src.GetNext()
		var err error
		if def, err = c.paramDefault(vt); err != nil {
			return err
		}
	}
	f.Params = append(f.Params, symbols.Param{Name: name, Vartype: vt, Default: def})

	if c.pass == passMain && body {
		c.stash(name)
		c.declare(name, &symbols.Variable{
			Vartype:    vt,
			Scope:      symbols.ScopeLocal,
			Qualifiers: symbols.Qualifiers{Readonly: isConst},
			Offset:     c.offset - (n+1)*4,
			Nesting:    c.nest.level(),
			Parameter:  true,
		})
	}
	return nil
}

// paramDefault reads the default value of a parameter of type vt after the
// '='. Dynamic parameters only default to null.
func (c *Compiler) paramDefault(vt symbols.Vartype) (symbols.ID, error) {
	s := c.src.GetNext()
	negative := false
	if s == symbols.Minus && (vt.IsInteger() || isPlainFloat(vt)) {
		negative = true
		s = c.src.GetNext()
	}
	if k := c.table.Constant(s); k != nil {
		s = k.Value
	}
	zero, _ := c.table.Find("0")
	lit := c.table.Literal(s)
	sign := ""
	if negative {
		sign = "-"
	}

	switch {
	case vt.IsManagedHandle():
		switch s {
		case symbols.Null:
			return symbols.Null, nil
		case zero:
			c.warnf("Found '0' as a parameter default for a dynamic object (prefer 'null')")
			return symbols.Null, nil
		}
		return symbols.None, c.errorf(errors.E3003, "Expected the parameter default 'null', found '%s' instead", c.symName(s))

	case c.table.IsAnyString(vt):
		if s == zero {
			c.warnf("Found '0' as a parameter default for a string (prefer '\"\"')")
			return s, nil
		}
		if lit == nil || !lit.Vartype.WithoutConst().IsOldString() {
			return symbols.None, c.errorf(errors.E3003, "Expected a constant or literal string as a parameter default, found '%s' instead", c.symName(s))
		}
		return s, nil

	case vt.IsInteger():
		if lit == nil || !lit.Vartype.IsInteger() {
			return symbols.None, c.errorf(errors.E3003, "Expected a constant or literal integer as a parameter default, found '%s%s' instead", sign, c.symName(s))
		}
		if negative {
			return c.negateLiteral(s)
		}
		return s, c.checkOverflow(s)

	case isPlainFloat(vt):
		if s == zero {
			c.warnf("Found '0' as a parameter default for a float (prefer '0.0')")
			return c.table.FloatLiteral(0), nil
		}
		if lit == nil || !isPlainFloat(lit.Vartype) {
			return symbols.None, c.errorf(errors.E3003, "Expected a constant or literal float as a parameter default, found '%s%s' instead", sign, c.symName(s))
		}
		if negative {
			return c.negateLiteral(s)
		}
		return s, nil
	}
	return symbols.None, c.errorf(errors.E3003, "Parameter cannot have any default value")
}

// stash saves the current definition of id on the innermost frame so that
// it comes back when the frame closes.
func (c *Compiler) stash(id symbols.ID) {
	top := c.nest.top()
	top.stash = append(top.stash, stashed{id: id, entry: *c.table.Entry(id)})
}

// stashOldDefinition checks that a local may be declared as id and stashes
// whatever id denotes now.
func (c *Compiler) stashOldDefinition(id symbols.ID) error {
	name := c.table.Name(id)
	switch k := c.table.Kind(id); {
	case symbols.IsPredefined(id):
		return c.errorf(errors.E3002, "Mustn't redefine the predefined '%s'", name)
	case k == symbols.KindFunction:
		c.warnf("This hides the function '%s()'", name)
	case k == symbols.KindVariable:
		v := c.table.Variable(id)
		if v.Scope == symbols.ScopeLocal {
			if v.Nesting == c.nest.level() {
				return c.errorRef(errors.E3002, id, "'%s' has already been defined in this scope", name)
			}
			if v.Parameter && c.nest.level() == levelFunction {
				return c.errorRef(errors.E3002, id, "'%s' has already been defined as a parameter", name)
			}
		}
	case k == symbols.KindType:
		return c.errorRef(errors.E3002, id, "'%s' is in use as a type elsewhere", name)
	case k != symbols.KindNone:
		return c.errorRef(errors.E3002, id, "'%s' is already in use elsewhere", name)
	}
	c.stash(id)
	return nil
}

// vardecl compiles the declaration of one variable whose name has been
// read.
func (c *Compiler) vardecl(name symbols.ID, vt symbols.Vartype, q symbols.Qualifiers, scope symbols.Scope) error {
	if c.pass == passPreAnalyze {
		return c.vardeclPreAnalyze(name, scope)
	}
	if err := c.checkQualifiers(q, c.nest.level() > levelParameters, false); err != nil {
		return err
	}
	q.Autoptr, q.Managed, q.Builtin = false, false, false

	switch {
	case vt.WithoutConst().IsOldString() && !c.opts.OldStrings:
		return c.errorf(errors.E3016, "Type 'string' is no longer supported; use String instead")
	case q.Import && vt.WithoutConst().IsOldString():
		return c.errorf(errors.E3016, "Cannot import string; use char[] instead")
	case vt.IsVoid():
		return c.errorf(errors.E3016, "'void' is not a valid type in this context")
	}

	if scope == symbols.ScopeLocal {
		if err := c.stashOldDefinition(name); err != nil {
			return err
		}
	}
	if c.src.PeekNext() == symbols.OpenBracket {
		var err error
		if vt, err = c.parseArray(name, vt); err != nil {
			return err
		}
	}

	v := &symbols.Variable{Vartype: vt, Scope: scope, Qualifiers: q, Nesting: c.nest.level()}
	switch scope {
	case symbols.ScopeLocal:
		return c.vardeclLocal(name, v)
	case symbols.ScopeImport:
		return c.vardeclImport(name, v)
	}
	return c.vardeclGlobal(name, v)
}

// vardeclPreAnalyze notes global variables so that the main pass can tell
// an import declaration from a local definition.
func (c *Compiler) vardeclPreAnalyze(name symbols.ID, scope symbols.Scope) error {
	if defined, ok := c.givm[name]; ok {
		if defined {
			return c.errorf(errors.E3002, "'%s' is already defined as a global non-import variable", c.table.Name(name))
		}
		if scope == symbols.ScopeGlobal && c.opts.NoImportOverride {
			return c.errorf(errors.E3014, "'%s' is defined as an import variable; that can't be overridden here", c.table.Name(name))
		}
	}
	c.givm[name] = c.givm[name] || scope == symbols.ScopeGlobal
	c.src.SetCursor(skipTo(c.src, c.src.Cursor(), symbols.Comma, symbols.Semicolon))
	return nil
}

// parseArray reads "[]" or "[n]" after a variable name.
func (c *Compiler) parseArray(name symbols.ID, vt symbols.Vartype) (symbols.Vartype, error) {
	c.src.GetNext() // '['
	vname := c.table.Name(name)
	if c.src.PeekNext() == symbols.CloseBracket {
		c.src.GetNext()
		if vt.WithoutConst().IsOldString() {
			return vt, c.errorf(errors.E3016, "Dynamic arrays of old-style strings are not supported")
		}
		if !vt.IsInteger() && !isPlainFloat(vt) && !c.table.IsManaged(vt.Base) {
			return vt, c.errorf(errors.E3016, "Can only have dynamic arrays of integer types, 'float', or managed structs. '%s' isn't any of this.",
				c.table.VartypeName(vt))
		}
		return vt.DynarrayOf(), nil
	}

	lit, err := c.readIntLiteralOrConst(c.src, fmt.Sprintf("For dimension #0 of array '%s': ", vname))
	if err != nil {
		return vt, err
	}
	n := c.table.Literal(lit).Value
	if n < 1 {
		return vt, c.errorf(errors.E3012, "Array dimension #0 of array '%s' must be at least 1 but is %d instead", vname, n)
	}
	if c.src.PeekNext() == symbols.Comma {
		return vt, c.errorf(errors.E3016, "Array '%s' has more than one dimension; only one is supported", vname)
	}
	if err := c.expect(symbols.CloseBracket); err != nil {
		return vt, err
	}
	if c.src.PeekNext() == symbols.OpenBracket {
		return vt, c.errorf(errors.E3016, "Array '%s' has more than one dimension; only one is supported", vname)
	}
	vt.Array = int(n)
	return vt, nil
}

func (c *Compiler) vardeclGlobal(name symbols.ID, v *symbols.Variable) error {
	if err := c.table.CheckVariable(name, v); err != nil {
		return c.redeclarationError(err)
	}
	init, err := c.globalInitializer(name, v.Vartype)
	if err != nil {
		return err
	}
	size := c.table.Size(v.Vartype)
	if known := c.table.Variable(name); known != nil && known.Scope == symbols.ScopeGlobal {
		// storage was reserved by an earlier import declaration
		v.Offset = known.Offset
		copy(c.mod.GlobalData[v.Offset:v.Offset+size], init)
	} else {
		v.Offset = c.mod.AddGlobal(size, init)
	}
	c.declare(name, v)
	return nil
}

// globalInitializer reads "= value" if it follows and returns the initial
// bytes of the variable.
func (c *Compiler) globalInitializer(name symbols.ID, vt symbols.Vartype) ([]byte, error) {
	if c.src.PeekNext() != symbols.Assign {
		return nil, nil
	}
	c.src.GetNext()
	vname := c.table.Name(name)

	switch {
	case vt.IsManagedHandle():
		if s := c.src.GetNext(); s != symbols.Null {
			return nil, c.errorf(errors.E3003, "Expected 'null', found '%s' instead", c.symName(s))
		}
		return nil, nil
	case c.table.IsStruct(vt.Base):
		return nil, c.errorf(errors.E3003, "'%s' is a struct and cannot be initialized here", vname)
	case vt.IsArray():
		return nil, c.errorf(errors.E3003, "'%s' is an array and cannot be initialized here", vname)
	case vt.WithoutConst().IsOldString():
		s := c.src.GetNext()
		if k := c.table.Constant(s); k != nil {
			s = k.Value
		}
		lit := c.table.Literal(s)
		if lit == nil || !lit.Vartype.WithoutConst().IsOldString() {
			return nil, c.errorf(errors.E3003, "Expected a string literal after '=', found '%s' instead", c.symName(s))
		}
		text, _ := c.mod.StringAt(int(lit.Value))
		if len(text) >= symbols.StringBufferLength {
			return nil, c.errorf(errors.E3003, "Initializer string is too long (max. chars allowed: %d)", symbols.StringBufferLength-1)
		}
		buf := make([]byte, symbols.StringBufferLength)
		copy(buf, text)
		return buf, nil
	case vt.IsInteger() || isPlainFloat(vt):
		negate := c.src.PeekNext() == symbols.Minus
		read := c.readLiteralOrConst
		if negate {
			c.src.GetNext()
			read = c.readLiteralToNegate
		}
		s, err := read(c.src)
		if err != nil {
			return nil, err
		}
		lit := c.table.Literal(s)
		if isPlainFloat(vt) != isPlainFloat(lit.Vartype) || !isPlainFloat(vt) && !lit.Vartype.IsInteger() {
			return nil, c.errorf(errors.E3003, "Expected a '%s' value after '=' but found a '%s' value instead",
				c.table.VartypeName(vt), c.table.VartypeName(lit.Vartype))
		}
		if negate {
			if s, err = c.negateLiteral(s); err != nil {
				return nil, err
			}
			lit = c.table.Literal(s)
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(lit.Value))
		return buf[:c.table.Size(vt)], nil
	}
	return nil, c.errorf(errors.E3003, "Variable '%s' has type '%s' and cannot be initialized here", vname, c.table.VartypeName(vt))
}

func (c *Compiler) vardeclImport(name symbols.ID, v *symbols.Variable) error {
	if c.src.PeekNext() == symbols.Assign {
		return c.errorf(errors.E3014, "Imported variables cannot have any initial assignment")
	}
	if c.givm[name] {
		// The unit defines the variable itself, so the declaration refers
		// to that definition.
		v.Qualifiers.Import, v.Qualifiers.TryImport = false, false
		v.Scope = symbols.ScopeGlobal
		if err := c.table.CheckVariable(name, v); err != nil {
			return c.redeclarationError(err)
		}
		if c.table.Variable(name) != nil {
			return nil
		}
		v.Offset = c.mod.AddGlobal(c.table.Size(v.Vartype), nil)
		c.declare(name, v)
		return nil
	}
	v.Qualifiers.Import = true
	if err := c.table.CheckVariable(name, v); err != nil {
		return c.redeclarationError(err)
	}
	v.Offset = c.imports.FindOrAdd(c.table.Name(name))
	c.declare(name, v)
	return nil
}

func (c *Compiler) vardeclLocal(name symbols.ID, v *symbols.Variable) error {
	vt := v.Vartype
	size := c.table.Size(vt)
	dyn := vt.IsManagedHandle()
	v.Offset = c.offset
	c.declare(name, v)

	if c.src.PeekNext() != symbols.Assign {
		c.writeCmd(op.LoadSPOffs, 0)
		if dyn {
			c.writeCmd(op.MemZeroPtr)
		} else {
			c.writeCmd(op.ZeroMemory, int32(size))
		}
		c.writeCmd(op.Add, sp, int32(size))
		c.offset += size
		return nil
	}

	c.src.GetNext() // '='
	if err := c.parseExpression(); err != nil {
		return err
	}
	oldString := vt.WithoutConst().IsOldString()
	c.convertAXToStringObject(vt)
	if !(oldString && c.axType.WithoutConst().IsOldString()) && !c.table.ConvertibleTo(c.axType, vt) {
		return c.errorf(errors.E3003, "Cannot assign a type '%s' value to a type '%s' variable",
			c.table.VartypeName(c.axType), c.table.VartypeName(vt))
	}
	if size == 4 && !dyn {
		// the push reserves the variable's space and initializes it
		c.pushReg(ax)
		return nil
	}
	c.writeCmd(op.LoadSPOffs, 0)
	switch {
	case oldString:
		c.strcpy()
	case dyn:
		c.writeCmd(op.MemWritePtr, ax)
	default:
		c.writeCmd(writeOp(size), ax)
	}
	c.writeCmd(op.Add, sp, int32(size))
	c.offset += size
	return nil
}

// parseExport compiles "export name, name, ...;".
func (c *Compiler) parseExport() error {
	if c.pass == passPreAnalyze {
		c.src.SetCursor(skipTo(c.src, c.src.Cursor(), symbols.Semicolon))
		c.src.GetNext()
		return nil
	}
	for {
		s := c.src.GetNext()
		name := c.table.Name(s)
		switch c.table.Kind(s) {
		case symbols.KindFunction:
			if c.table.Function(s).IsImport() {
				return c.errorRef(errors.E3015, s, "Function '%s' is imported, so it cannot be exported", name)
			}
			if !c.opts.ExportAll {
				c.exports = append(c.exports, pendingExport{fn: s, section: c.src.Section(), line: c.src.Line()})
			}
		case symbols.KindVariable:
			v := c.table.Variable(s)
			if v.Scope == symbols.ScopeImport {
				return c.errorRef(errors.E3015, s, "The Variable '%s' is imported, so it cannot be exported", name)
			}
			if v.Scope != symbols.ScopeGlobal {
				return c.errorRef(errors.E3015, s, "The variable '%s' isn't global, so it cannot be exported", name)
			}
			if _, err := c.mod.AddExport(name, bytecode.ExportData, v.Offset, 0); err != nil {
				return c.errorf(errors.E3015, "%s", err)
			}
		default:
			return c.errorf(errors.E3015, "Expected a function or global variable but found '%s' instead", c.symName(s))
		}

		punct := c.src.GetNext()
		if err := c.expectOneOf(punct, symbols.Comma, symbols.Semicolon); err != nil {
			return err
		}
		if punct == symbols.Semicolon {
			return nil
		}
	}
}

// pendingExport is an exported function. It is added to the export table
// once the unit is complete because its body may come later.
type pendingExport struct {
	fn      symbols.ID
	section string
	line    int
}

func (c *Compiler) addFunctionExports() error {
	for _, e := range c.exports {
		f := c.table.Function(e.fn)
		name := c.table.Name(e.fn)
		if !f.Defined {
			return errors.Newf(errors.E3015, "Function '%s' is exported but never defined with a body", name).
				At(c.sectionOrDefault(e.section), e.line)
		}
		if _, err := c.mod.AddExport(name, bytecode.ExportFunction, f.Offset, arity(f)); err != nil {
			return errors.Newf(errors.E3015, "%s", err).At(c.sectionOrDefault(e.section), e.line)
		}
	}
	return nil
}

// parseAssignmentOrExpression compiles a statement that starts with leading
// and is not a keyword statement: an assignment or an expression evaluated
// for its side effects.
func (c *Compiler) parseAssignmentOrExpression(leading symbols.ID) error {
	c.src.Back()
	start := c.src.Cursor()
	if err := c.skipToEndOfExpression(); err != nil {
		return err
	}
	lhs := c.src.Sub(start, c.src.Cursor())
	if lhs.Len() == 0 {
		c.src.GetNext()
		return c.errorf(errors.E2001, "Unexpected symbol '%s'", c.symName(leading))
	}

	next := c.src.PeekNext()
	a := c.table.Assignment(next)
	if a == nil {
		r, err := c.term(lhs)
		if err != nil {
			return err
		}
		return c.resultToAX(r)
	}
	c.src.GetNext()
	switch {
	case next == symbols.Assign:
		if err := c.parseExpression(); err != nil {
			return err
		}
		return c.assignTo(lhs)
	case a.Unary:
		return c.sassign(lhs, a)
	}
	return c.massign(lhs, a)
}

// readForModification loads the current value of lhs into AX. It reports
// whether MAR still points to that value.
func (c *Compiler) readForModification(lhs *token.List) (result, error) {
	lhs.SetCursor(0)
	if lhs.Len() == 1 {
		if v := c.table.Variable(lhs.At(0)); v != nil && v.Qualifiers.Readonly {
			return result{}, c.errorf(errors.E3006, "Cannot write to readonly '%s'", c.table.Name(lhs.At(0)))
		}
	}
	r, err := c.accessData(false, lhs)
	if err != nil {
		return r, err
	}
	if !lhs.AtEnd() {
		return r, c.internalf("Unexpected symbols following expression")
	}
	if r.loc == locMAR {
		c.writeCmd(readOp(c.table.Size(r.vt)), ax)
		c.setAX(r.vt, r.scope)
	}
	return r, nil
}

// massign compiles "lhs op= expression".
func (c *Compiler) massign(lhs *token.List, a *symbols.Assignment) error {
	if err := c.parseExpression(); err != nil {
		return err
	}
	c.pushReg(ax)
	rhsType := c.axType

	r, err := c.readForModification(lhs)
	if err != nil {
		return err
	}
	code, err := c.opcodeFor(c.table.Operator(a.Operator).IntOp, r.vt, rhsType)
	if err != nil {
		return err
	}
	c.popReg(bx)
	c.writeCmd(code, ax, bx)
	return c.writeBack(lhs, r)
}

// sassign compiles "lhs++" and "lhs--".
func (c *Compiler) sassign(lhs *token.List, a *symbols.Assignment) error {
	r, err := c.readForModification(lhs)
	if err != nil {
		return err
	}
	code := op.Add
	if a.Operator == symbols.Minus {
		code = op.Sub
	}
	if code, err = c.opcodeFor(code, r.vt, r.vt); err != nil {
		return err
	}
	c.writeCmd(code, ax, 1)
	return c.writeBack(lhs, r)
}

// writeBack stores the modified value in AX into lhs.
func (c *Compiler) writeBack(lhs *token.List, r result) error {
	if r.loc == locMAR {
		c.writeCmd(writeOp(c.table.Size(r.vt)), ax)
		return nil
	}
	lhs.SetCursor(0)
	return c.assignTo(lhs)
}
