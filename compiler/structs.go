package compiler

import (
	"fmt"
	"math"
	"strings"

	"github.com/agsc-lang/agsc/errors"
	"github.com/agsc-lang/agsc/symbols"
)

// structAlign is the granularity struct sizes are rounded up to.
const structAlign = 4

// parseStruct compiles a struct declaration after 'struct'. Variables of the
// new type may be declared after the closing brace.
func (c *Compiler) parseStruct(q symbols.Qualifiers) error {
	stname := c.src.GetNext()
	name := c.symName(stname)
	if prev := c.table.Type(stname); !(prev != nil && prev.Struct && prev.Undefined) && c.table.Kind(stname) != symbols.KindNone {
		return c.errorRef(errors.E3002, stname, "'%s' is already defined", name)
	}
	if !c.table.IsIdentifier(stname) {
		return c.errorf(errors.E2001, "Expected an identifier, found '%s' instead", name)
	}

	st := &symbols.Type{
		Struct:    true,
		Undefined: true,
		Managed:   q.Managed,
		Builtin:   q.Builtin,
		Autoptr:   q.Autoptr,
	}
	c.declare(stname, st)
	if q.InternalString {
		if cur := c.table.StringStruct(); cur != symbols.None && cur != stname {
			return c.errorf(errors.E3002, "The stringstruct type is already defined to be %s", c.table.Name(cur))
		}
		c.table.SetStringStruct(stname)
	}

	if c.src.PeekNext() == symbols.Extends {
		c.src.GetNext()
		if err := c.extendsClause(st, q); err != nil {
			return err
		}
	}

	if c.src.PeekNext() == symbols.Semicolon {
		if !q.Managed {
			return c.errorf(errors.E2003, "Forward-declared 'struct's must be 'managed'")
		}
		c.src.GetNext()
		return nil
	}
	if err := c.expect(symbols.OpenBrace); err != nil {
		return err
	}

	for c.src.PeekNext() != symbols.CloseBrace {
		if c.src.AtEnd() {
			return c.errorf(errors.E2005, "Unexpected end of input (did you forget a '}'?)")
		}
		mq, err := c.parseQualifiers()
		if err != nil {
			return err
		}
		if err := c.checkQualifiers(mq, false, true); err != nil {
			return err
		}
		if err := c.structMembers(stname, mq, c.src.GetNext()); err != nil {
			return err
		}
	}

	if c.pass == passMain && st.Size%structAlign != 0 {
		st.Size += structAlign - st.Size%structAlign
	}
	c.src.GetNext() // '}'
	st.Undefined = false
	return c.afterTypeDeclaration(stname, q)
}

func (c *Compiler) extendsClause(st *symbols.Type, q symbols.Qualifiers) error {
	parent := c.src.GetNext()
	pt := c.table.Type(parent)
	if pt == nil || !pt.Struct {
		return c.errorf(errors.E3001, "Expected a struct type, found '%s' instead", c.symName(parent))
	}
	pname := c.table.Name(parent)
	switch {
	case q.Managed && !pt.Managed:
		return c.errorf(errors.E3003, "Managed struct cannot extend the unmanaged struct '%s'", pname)
	case !q.Managed && pt.Managed:
		return c.errorf(errors.E3003, "Unmanaged struct cannot extend the managed struct '%s'", pname)
	case pt.Builtin && !q.Builtin:
		return c.errorf(errors.E3003, "The built-in type '%s' cannot be extended by a concrete struct. Use extender methods instead", pname)
	}
	st.Size = pt.Size
	st.Parent = parent
	return nil
}

// afterTypeDeclaration handles what follows the closing brace of a struct
// or enum: ';' or the declaration of variables of the new type.
func (c *Compiler) afterTypeDeclaration(typ symbols.ID, q symbols.Qualifiers) error {
	p := c.src.PeekNext()
	switch {
	case p == symbols.Semicolon:
		if q.Readonly {
			return c.errorf(errors.E3010, "'readonly' can only be used in a variable declaration")
		}
		c.src.GetNext()
		return nil
	case c.src.AtEnd():
		return c.errorf(errors.E2005, "Unexpected end of input (did you forget a ';'?)")
	case c.table.IsIdentifier(p) && !c.table.IsType(p),
		p == symbols.Multiply, p == symbols.NoLoopCheck, p == symbols.OpenBracket:
		return c.parseVartype(typ, q)
	}
	c.src.GetNext()
	return c.errorf(errors.E2002, "Unexpected '%s' (did you forget a ';'?)", c.symName(p))
}

// structMembers compiles one member declaration of type typ, which may
// declare several members.
func (c *Compiler) structMembers(stname symbols.ID, q symbols.Qualifiers, typ symbols.ID) error {
	if typ == stname && !c.table.IsManaged(typ) {
		return c.errorf(errors.E3003, "Struct '%s' cannot be a member of itself", c.table.Name(typ))
	}
	if !c.table.IsType(typ) {
		return c.errorRef(errors.E2001, typ, "Expected a type, found '%s' instead", c.symName(typ))
	}
	vt := c.vartypeOf(typ)
	if c.table.IsManaged(typ) {
		vt.Pointer = true
	}
	if c.src.PeekNext() == symbols.Multiply {
		c.src.GetNext()
	}
	dyn := false
	if c.src.PeekNext() == symbols.OpenBracket {
		c.src.GetNext()
		if err := c.expect(symbols.CloseBracket); err != nil {
			return err
		}
		dyn = true
	}
	if c.src.PeekNext() == symbols.NoLoopCheck {
		return c.errorf(errors.E2001, "Cannot use 'noloopcheck' here")
	}

	for {
		if err := c.structMember(stname, q, vt, dyn); err != nil {
			return err
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

// memberName reads the name of a member and returns its mangled symbol.
// Names inside a struct body usually arrive mangled already.
func (c *Compiler) memberName(stname symbols.ID) (symbols.ID, error) {
	s := c.src.GetNext()
	if !c.table.IsIdentifier(s) {
		return s, c.errorf(errors.E2001, "Expected a component name, found '%s' instead", c.symName(s))
	}
	if strings.HasPrefix(c.table.Name(s), c.table.Name(stname)+"::") {
		return s, nil
	}
	return c.table.FindOrAdd(c.table.Name(stname) + "::" + symbols.Unmangle(c.table.Name(s))), nil
}

func (c *Compiler) structMember(stname symbols.ID, q symbols.Qualifiers, vt symbols.Vartype, dyn bool) error {
	member, err := c.memberName(stname)
	if err != nil {
		return err
	}
	plain := symbols.Unmangle(c.table.Name(member))
	isFunc := c.src.PeekNext() == symbols.OpenParen

	if c.pass == passMain {
		if !isFunc && c.table.Kind(member) != symbols.KindNone {
			return c.errorRef(errors.E3002, member, "'%s' is already defined", plain)
		}
		if parent := c.table.Type(stname).Parent; parent != symbols.None {
			if _, ok := c.table.FindMember(parent, member); ok {
				return c.errorf(errors.E3002, "The struct '%s' extends '%s', and '%s' is already defined",
					c.table.Name(stname), c.table.Name(parent), plain)
			}
		}
	}
	c.addMember(stname, member)

	if isFunc {
		if q.WriteProtected {
			return c.errorf(errors.E3010, "'writeprotected' does not apply to functions")
		}
		ret := vt
		if dyn {
			ret = ret.DynarrayOf()
		}
		c.src.GetNext() // '('
		if c.bodyFollows() {
			return c.errorf(errors.E2003, "Cannot code a function body within a struct definition")
		}
		if err := c.funcHeader(stname, member, q, ret, false, false); err != nil {
			return err
		}
		if p := c.src.PeekNext(); p != symbols.Semicolon {
			return c.expectOneOf(p, symbols.Semicolon)
		}
		return nil
	}

	if dyn {
		return c.errorf(errors.E2002, "Expected '('")
	}
	if c.pass == passPreAnalyze {
		if q.Attribute {
			return c.structAttribute(stname, member, q, vt)
		}
		c.src.SetCursor(skipTo(c.src, c.src.Cursor(), symbols.Comma, symbols.Semicolon))
		return nil
	}

	if q.Import && !q.Attribute {
		return c.errorf(errors.E3014, "Can't import struct component variables; import the whole struct instead")
	}
	if c.table.IsManaged(vt.Base) && c.table.IsManaged(stname) && !q.Attribute {
		return c.errorf(errors.E3016, "Cannot currently have managed variable components in managed struct")
	}
	if ty := c.table.Type(vt.Base); ty.Builtin && !ty.Managed {
		return c.errorf(errors.E3016, "May not have a component variable of the non-managed built-in type '%s'", c.table.Name(vt.Base))
	}
	if vt.IsOldString() && !c.opts.OldStrings {
		return c.errorf(errors.E3016, "Type 'string' is no longer supported; use String instead")
	}
	if q.Attribute {
		return c.structAttribute(stname, member, q, vt)
	}

	if c.src.PeekNext() == symbols.OpenBracket {
		if vt, err = c.parseArray(member, vt); err != nil {
			return err
		}
	}
	st := c.table.Type(stname)
	c.declare(member, &symbols.Component{Parent: stname, Vartype: vt, Offset: st.Size, Qualifiers: q})
	st.Size += c.table.Size(vt)
	return nil
}

// structAttribute declares an attribute and its accessor functions. A
// readonly attribute has no setter.
func (c *Compiler) structAttribute(stname, member symbols.ID, q symbols.Qualifiers, vt symbols.Vartype) error {
	indexed := false
	if c.src.PeekNext() == symbols.OpenBracket {
		c.src.GetNext()
		if c.src.GetNext() != symbols.CloseBracket {
			return c.errorf(errors.E2003, "Cannot specify array sizes for an attribute")
		}
		indexed = true
	}
	if c.pass == passMain {
		c.declare(member, &symbols.Attribute{Parent: stname, Vartype: vt, Indexed: indexed, Qualifiers: q})
	}

	fq := q
	fq.Attribute, fq.Readonly = false, false
	plain := symbols.Unmangle(c.table.Name(member))
	if err := c.attributeFunc(stname, plain, fq, vt, false, indexed); err != nil {
		return err
	}
	if q.Readonly {
		return nil
	}
	return c.attributeFunc(stname, plain, fq, vt, true, indexed)
}

// attributeFunc declares the getter or setter of an attribute. Accessors
// are assumed to be imported unless the unit defines them.
func (c *Compiler) attributeFunc(stname symbols.ID, plain string, q symbols.Qualifiers, vt symbols.Vartype, setter, indexed bool) error {
	fn := c.table.FindOrAdd(c.table.Name(stname) + "::" + attributeAccessor(plain, setter, indexed))
	fname := c.table.Name(fn)
	if k := c.table.Kind(fn); k != symbols.KindNone && k != symbols.KindFunction {
		return c.errorRef(errors.E3002, fn, "Attribute uses '%s' as a function, this clashes with a declaration elsewhere", fname)
	}

	ret := vt
	if setter {
		ret = symbols.Of(symbols.Void)
	}
	var params []symbols.Param
	if indexed {
		params = append(params, symbols.Param{Vartype: symbols.Of(symbols.Int)})
	}
	if setter {
		params = append(params, symbols.Param{Vartype: vt})
	}

	known := c.table.Function(fn)
	if known != nil {
		if len(known.Params) != len(params) {
			return c.errorRef(errors.E3002, fn, "The attribute function '%s' should have %d parameter(s) but is declared with %d parameter(s) instead",
				fname, len(params), len(known.Params))
		}
		if known.Return != ret {
			return c.errorRef(errors.E3002, fn, "The attribute function '%s' must return type '%s' but returns '%s' instead",
				fname, c.table.VartypeName(ret), c.table.VartypeName(known.Return))
		}
		for i, p := range params {
			if got := known.Params[i].Vartype; got != p.Vartype {
				return c.errorRef(errors.E3002, fn, "Parameter #%d of attribute function '%s' must have type '%s' but has type '%s' instead",
					i+1, fname, c.table.VartypeName(p.Vartype), c.table.VartypeName(got))
			}
		}
	}

	q.Import = true
	if known != nil && !known.IsImport() {
		if c.opts.NoImportOverride {
			return c.errorRef(errors.E3014, fn, "In here, attribute functions may not be defined locally")
		}
		q.Import, q.TryImport = false, false
	}
	c.addMember(stname, fn)

	f := &symbols.Function{
		Parent: stname,
		Return: ret,
		Params: params,
		Qualifiers: symbols.Qualifiers{
			Import:         q.Import,
			TryImport:      q.TryImport,
			Protected:      q.Protected,
			Static:         q.Static,
			WriteProtected: q.WriteProtected,
		},
		Offset: -1,
	}
	if known != nil {
		f.HasBody = known.HasBody
	}
	if c.pass == passMain {
		switch {
		case f.IsImport():
			f.Offset = c.imports.FindOrAdd(fmt.Sprintf("%s^%d", fname, arity(f)))
			c.importCalls.Set(fn, f.Offset)
		case known != nil:
			f.Offset, f.Defined = known.Offset, known.Defined
		}
	}
	c.declare(fn, f)
	return nil
}

// parseEnum compiles an enum declaration after 'enum'. Items without a
// value count up from the previous item, starting at 1.
func (c *Compiler) parseEnum(q symbols.Qualifiers) error {
	if c.funcName != symbols.None {
		return c.errorf(errors.E2003, "Enum declaration is not allowed within a function body")
	}
	if q.Builtin {
		return c.errorf(errors.E3010, "'builtin' can only be used in a struct declaration")
	}
	name := c.src.GetNext()
	if !c.table.IsIdentifier(name) {
		return c.errorf(errors.E2001, "Expected an identifier, found the predefined symbol '%s' instead", c.symName(name))
	}
	if k := c.table.Kind(name); k == symbols.KindFunction || k == symbols.KindType {
		return c.errorRef(errors.E3002, name, "'%s' is already defined", c.table.Name(name))
	}
	c.declare(name, &symbols.Type{Size: 4, Enum: true})
	if err := c.expect(symbols.OpenBrace); err != nil {
		return err
	}

	value := int32(0)
	for {
		item := c.src.GetNext()
		if item == symbols.CloseBrace {
			break
		}
		iname := c.symName(item)
		if !c.table.IsIdentifier(item) {
			return c.errorf(errors.E2001, "Expected '}' or an unused identifier, found '%s' instead", iname)
		}
		if c.pass == passMain {
			switch c.table.Kind(item) {
			case symbols.KindConstant:
				return c.errorRef(errors.E3002, item, "'%s' is already defined as a constant or enum value", iname)
			case symbols.KindVariable, symbols.KindFunction, symbols.KindType:
				return c.errorf(errors.E2001, "Expected '}' or an unused identifier, found '%s' instead", iname)
			}
		}

		p := c.src.PeekNext()
		if err := c.expectOneOf(p, symbols.Comma, symbols.Assign, symbols.CloseBrace); err != nil {
			return err
		}
		if p == symbols.Assign {
			c.src.GetNext()
			lit, err := c.readIntLiteralOrConst(c.src, fmt.Sprintf("In the assignment to %s: ", iname))
			if err != nil {
				return err
			}
			value = c.table.Literal(lit).Value
		} else {
			if value == math.MaxInt32 {
				return c.errorf(errors.E3003, "Cannot assign an enum value higher that %d to %s", math.MaxInt32, iname)
			}
			value++
		}
		c.declare(item, &symbols.Constant{Vartype: symbols.Of(symbols.Int), Value: c.table.IntLiteral(value)})

		punct := c.src.GetNext()
		if err := c.expectOneOf(punct, symbols.Comma, symbols.CloseBrace); err != nil {
			return err
		}
		if punct == symbols.CloseBrace {
			break
		}
	}
	return c.afterTypeDeclaration(name, q)
}
