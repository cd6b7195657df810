package compiler

import (
	"strings"

	"github.com/agsc-lang/agsc/bytecode"
	"github.com/agsc-lang/agsc/errors"
	"github.com/agsc-lang/agsc/internal/token"
	"github.com/agsc-lang/agsc/op"
	"github.com/agsc-lang/agsc/symbols"
)

type memScope int

const (
	memNone memScope = iota
	memGlobal
	memLocal
	memImport
)

// memLocation accumulates the address of a value so that a single
// instruction can load it into MAR.
type memLocation struct {
	scope     memScope
	start     int
	component int
}

func (m *memLocation) setStart(scope symbols.Scope, offset int) {
	switch scope {
	case symbols.ScopeGlobal:
		m.scope = memGlobal
	case symbols.ScopeLocal:
		m.scope = memLocal
	case symbols.ScopeImport:
		m.scope = memImport
	}
	m.start = offset
	m.component = 0
}

func (m *memLocation) addComponent(offset int) { m.component += offset }

func (m *memLocation) reset() { *m = memLocation{} }

// makeMARCurrent emits the code that loads the pending address into MAR.
func (c *Compiler) makeMARCurrent(m *memLocation) error {
	switch m.scope {
	case memNone:
		if m.component > 0 {
			c.writeCmd(op.Add, mar, int32(m.component))
		}
	case memGlobal:
		c.writeCmd(op.LitToReg, mar, int32(m.start+m.component))
		c.mod.FixupPrevious(bytecode.FixupGlobalData)
	case memImport:
		c.writeCmd(op.LitToReg, mar, int32(m.start))
		c.mod.FixupPrevious(bytecode.FixupImport)
		if m.component != 0 {
			c.writeCmd(op.Add, mar, int32(m.component))
		}
	case memLocal:
		off := c.offset - m.start - m.component
		if off < 0 {
			return c.internalf("Trying to emit the negative offset %d to the top-of-stack", off)
		}
		c.writeCmd(op.LoadSPOffs, int32(off))
	}
	m.reset()
	return nil
}

func (c *Compiler) markAccessed(id symbols.ID) {
	if e := c.table.Entry(id); e != nil {
		e.Accessed = true
	}
}

// isClauseLast reports whether no '.' follows on the outer level of expr.
func isClauseLast(expr *token.List) bool {
	return expr.At(skipTo(expr, expr.Cursor(), symbols.Dot)) != symbols.Dot
}

// accessData compiles a chain of clauses such as "a.b[2].c". With writing
// set, the last clause is the target of an assignment.
func (c *Compiler) accessData(writing bool, expr *token.List) (result, error) {
	var mloc memLocation
	r, implied, static, err := c.firstClause(writing && isClauseLast(expr), expr, &mloc)
	if err != nil {
		return r, err
	}

	var outer symbols.Vartype
	for implied || expr.PeekNext() == symbols.Dot {
		if !implied {
			expr.GetNext()
		}
		if r.vt.IsDynpointer() {
			if err := c.dereference(&r, &mloc); err != nil {
				return r, err
			}
			r.vt.Pointer = false
		}
		if !c.table.IsStruct(r.vt.Base) || r.vt.Pointer || r.vt.Dynarray || r.vt.IsArray() {
			if r.vt.IsArray() || r.vt.Dynarray {
				return r, c.errorf(errors.E3003, "Expected a struct in front of '.' but found an array instead")
			}
			return r, c.errorf(errors.E3003, "Expected a struct in front of '.' but found an expression of type '%s' instead", c.table.VartypeName(r.vt))
		}
		if expr.AtEnd() {
			return r, c.errorf(errors.E2002, "Expected struct component after '.' but did not find it")
		}
		outer = r.vt
		last := isClauseLast(expr)
		if err := c.subsequentClause(writing && last, implied, static, expr, &r, &mloc); err != nil {
			return r, err
		}
		implied, static = false, false
	}

	switch r.loc {
	case locAttribute:
		r.vt = symbols.Of(outer.Base)
		return r, nil
	case locAX:
		c.setAX(r.vt, r.scope)
		return r, nil
	}
	return r, c.makeMARCurrent(&mloc)
}

// firstClause compiles the first clause of an access chain. It reports
// whether a '.' is implied by 'this' and whether the clause named a type.
func (c *Compiler) firstClause(writing bool, expr *token.List, mloc *memLocation) (r result, implied, static bool, err error) {
	first := expr.PeekNext()
	r.scope = symbols.ScopeGlobal

	switch {
	case first == symbols.This:
		expr.GetNext()
		if c.thisType == symbols.None {
			return r, false, false, c.errorf(errors.E3001, "'this' is only legal in non-static struct functions")
		}
		c.writeCmd(op.RegToReg, opr, mar)
		c.writeCmd(op.CheckNull)
		mloc.reset()
		r.loc, r.vt = locMAR, symbols.Of(c.thisType)
		if expr.PeekNext() == symbols.Dot {
			expr.GetNext()
			implied = true
		}
		return r, implied, false, nil

	case first == symbols.Null:
		expr.GetNext()
		c.writeCmd(op.LitToReg, ax, 0)
		r.loc, r.vt = locAX, symbols.Of(symbols.Null)
		c.setAX(r.vt, r.scope)
		return r, false, false, nil

	case c.isConstOrLiteral(first):
		if writing {
			return r, false, false, c.errorf(errors.E3006, "Cannot assign a value to '%s'", c.table.Name(first))
		}
		lit, err := c.readLiteralOrConst(expr)
		if err != nil {
			return r, false, false, err
		}
		return c.emitLiteral(lit), false, false, nil

	case c.table.Kind(first) == symbols.KindFunction:
		r.loc = locAX
		if r.vt, err = c.functionCall(expr, mloc); err != nil {
			return r, false, false, err
		}
		if r.vt.Dynarray {
			err = c.processArrayIndex(expr, &r, mloc)
		}
		return r, false, false, err

	case c.table.Kind(first) == symbols.KindVariable:
		v := c.table.Variable(first)
		if !v.Parameter {
			r.scope = v.Scope
		}
		r.loc = locMAR
		return r, false, false, c.accessVariable(writing, expr, mloc, &r)

	case c.table.IsType(first):
		expr.GetNext()
		c.markAccessed(first)
		mloc.reset()
		r.loc, r.vt = locMAR, symbols.Of(first)
		return r, false, true, nil

	case c.isThisMember(first):
		c.writeCmd(op.RegToReg, opr, mar)
		c.writeCmd(op.CheckNull)
		mloc.reset()
		r.loc, r.vt = locMAR, symbols.Of(c.thisType)
		return r, true, false, nil
	}

	expr.GetNext()
	if c.isUndeclared(first) {
		return r, false, false, c.undeclared(first)
	}
	return r, false, false, c.errorf(errors.E2001, "Unexpected '%s'", c.symName(first))
}

// isUndeclared reports whether id is a name that denotes nothing yet.
func (c *Compiler) isUndeclared(id symbols.ID) bool {
	return c.table.IsIdentifier(id) && c.table.Kind(id) == symbols.KindNone
}

// undeclared reports the use of a name that denotes nothing, suggesting
// declared names that are spelled alike.
func (c *Compiler) undeclared(id symbols.ID) error {
	name := c.table.Name(id)
	return errors.Newf(errors.E3001, "Unexpected '%s'", name).
		At(c.sectionOrDefault(c.src.Section()), c.src.Line()).
		WithSuggestions(errors.SuggestSimilar(name, c.table.Names()))
}

// subsequentClause compiles a clause after a '.'. r describes the struct the
// clause is a member of.
func (c *Compiler) subsequentClause(writing, viaThis, static bool, expr *token.List, r *result, mloc *memLocation) error {
	comp := expr.PeekNext()
	member, ok := c.table.FindMember(r.vt.Base, comp)
	if !ok {
		return c.errorf(errors.E3001, "Expected a component of '%s', found '%s' instead",
			c.table.Name(r.vt.Base), c.symName(comp))
	}

	switch c.table.Kind(member) {
	case symbols.KindFunction:
		f := c.table.Function(member)
		if static && !f.Qualifiers.Static {
			return c.errorf(errors.E3010, "Must specify a specific object for non-static function %s", c.table.Name(member))
		}
		r.loc, r.scope = locAX, symbols.ScopeLocal
		vt, err := c.memberCall(member, expr, mloc)
		if err != nil {
			return err
		}
		r.vt = vt
		if vt.Dynarray {
			return c.processArrayIndex(expr, r, mloc)
		}
		return nil

	case symbols.KindAttribute:
		a := c.table.Attribute(member)
		if static && !a.Qualifiers.Static {
			return c.errorf(errors.E3010, "Must specify a specific object for non-static component %s", c.table.Name(member))
		}
		if err := c.makeMARCurrent(mloc); err != nil {
			return err
		}
		if writing {
			if a.Qualifiers.Readonly {
				return c.errorf(errors.E3006, "Cannot write to readonly '%s'", symbols.Unmangle(c.table.Name(member)))
			}
			r.loc = locAttribute
			return nil
		}
		vt, err := c.callAttributeFunc(false, expr, r.vt)
		if err != nil {
			return err
		}
		r.loc, r.scope, r.vt = locAX, symbols.ScopeLocal, vt
		return nil

	case symbols.KindComponent:
		if static {
			return c.errorf(errors.E3010, "Must specify a specific object for non-static component %s", c.table.Name(member))
		}
		expr.GetNext()
		comp := c.table.Component(member)
		name := symbols.Unmangle(c.table.Name(member))
		if writing && comp.Qualifiers.WriteProtected && !viaThis {
			return c.errorf(errors.E3011, "Writeprotected component '%s' must not be modified from outside", name)
		}
		if comp.Qualifiers.Protected && !viaThis {
			return c.errorf(errors.E3011, "Protected component '%s' must not be accessed from outside", name)
		}
		if writing && comp.Qualifiers.Readonly {
			return c.errorf(errors.E3006, "Cannot write to readonly '%s'", name)
		}
		mloc.addComponent(comp.Offset)
		r.loc, r.vt = locMAR, comp.Vartype
		return c.processArrayIndex(expr, r, mloc)
	}
	return c.errorf(errors.E3001, "Expected a variable, attribute, or function component of '%s', found '%s' instead",
		c.table.Name(r.vt.Base), c.symName(comp))
}

// memberCall calls the member function fn, whose unmangled name is at the
// cursor of expr.
func (c *Compiler) memberCall(fn symbols.ID, expr *token.List, mloc *memLocation) (symbols.Vartype, error) {
	return c.callFunction(fn, expr, mloc)
}

// functionCall calls the function named at the cursor of expr.
func (c *Compiler) functionCall(expr *token.List, mloc *memLocation) (symbols.Vartype, error) {
	return c.callFunction(expr.PeekNext(), expr, mloc)
}

func (c *Compiler) accessVariable(writing bool, expr *token.List, mloc *memLocation, r *result) error {
	name := expr.GetNext()
	v := c.table.Variable(name)
	if v.Scope == symbols.ScopeImport {
		c.markAccessed(name)
	}
	if writing && v.Qualifiers.Readonly {
		return c.errorf(errors.E3006, "Cannot write to readonly '%s'", c.table.Name(name))
	}
	mloc.setStart(v.Scope, v.Offset)
	r.vt = v.Vartype
	return c.processArrayIndex(expr, r, mloc)
}

// dereference makes MAR point to the object a pointer refers to.
func (c *Compiler) dereference(r *result, mloc *memLocation) error {
	if r.loc == locAX {
		c.writeCmd(op.RegToReg, ax, mar)
		c.writeCmd(op.CheckNull)
		r.loc = locMAR
		mloc.reset()
		return nil
	}
	if err := c.makeMARCurrent(mloc); err != nil {
		return err
	}
	c.writeCmd(op.MemReadPtr, mar)
	c.writeCmd(op.CheckNull)
	return nil
}

// processArrayIndex compiles "[index]" if it follows.
func (c *Compiler) processArrayIndex(expr *token.List, r *result, mloc *memLocation) error {
	if expr.PeekNext() != symbols.OpenBracket {
		return nil
	}
	expr.GetNext()
	if !r.vt.IsArray() && !r.vt.Dynarray {
		return c.errorf(errors.E3003, "Array index is only legal after an array expression")
	}
	isDyn := r.vt.Dynarray
	dim := r.vt.Array
	elem := r.vt
	elem.Array, elem.Dynarray = 0, false
	size := c.table.Size(elem)

	if isDyn {
		if err := c.dereference(r, mloc); err != nil {
			return err
		}
	}
	r.vt = elem

	if err := c.processIndex(1, dim, size, isDyn, expr, mloc); err != nil {
		return err
	}
	switch got := expr.GetNext(); got {
	case symbols.CloseBracket:
	case symbols.Comma:
		return c.errorf(errors.E3012, "Expected %d indexes, found more", 1)
	default:
		return c.errorf(errors.E2002, "Expected ']', found '%s' instead", c.symName(got))
	}
	if expr.PeekNext() == symbols.OpenBracket {
		return c.errorf(errors.E3012, "Expected %d indexes, found more", 1)
	}
	return nil
}

func (c *Compiler) processIndex(num, dim, factor int, isDyn bool, expr *token.List, mloc *memLocation) error {
	start := expr.Cursor()
	end := skipTo(expr, start, symbols.Comma)
	in := expr.Sub(start, end)
	expr.SetCursor(end)
	if in.Len() == 0 {
		return c.errorf(errors.E2004, "Empty array index is not supported")
	}

	switch {
	case in.Len() == 1 && c.isConstOrLiteral(in.At(0)):
		return c.processConstIndex(num, in, false, dim, factor, mloc)
	case in.Len() == 2 && in.At(0) == symbols.Minus && c.isConstOrLiteral(in.At(1)):
		in.GetNext()
		return c.processConstIndex(num, in, true, dim, factor, mloc)
	}

	if err := c.makeMARCurrent(mloc); err != nil {
		return err
	}
	c.pushReg(mar)
	if err := c.readIntExpression(in); err != nil {
		return err
	}
	c.popReg(mar)
	if !isDyn {
		c.writeCmd(op.CheckBounds, ax, int32(dim))
	}
	if factor != 1 {
		c.writeCmd(op.Mul, ax, int32(factor))
	}
	if isDyn {
		c.writeCmd(op.DynamicBounds, ax)
	}
	c.writeCmd(op.AddReg, mar, ax)
	return nil
}

func (c *Compiler) processConstIndex(num int, in *token.List, negate bool, dim, factor int, mloc *memLocation) error {
	s := in.PeekNext()
	read := c.readLiteralOrConst
	if negate {
		read = c.readLiteralToNegate
	}
	lit, err := read(in)
	if err != nil {
		return err
	}
	l := c.table.Literal(lit)
	if !l.Vartype.IsInteger() {
		return c.errorf(errors.E3003, "Expected an integer expression in array index #%d but found '%s' instead which is type '%s'",
			num, c.table.Name(s), c.table.VartypeName(l.Vartype))
	}
	v := int(l.Value)
	if negate {
		v = int(-l.Value)
	}
	if v < 0 {
		return c.errorf(errors.E3012, "Array index #%d is %d, thus too low (minimum is 0)", num, v)
	}
	if dim > 0 && v >= dim {
		return c.errorf(errors.E3012, "Array index #%d is %d, thus too high (maximum is %d)", num, v, dim-1)
	}
	mloc.addComponent(v * factor)
	return nil
}

// callFunction compiles a call of fn. The cursor of expr is on the name.
func (c *Compiler) callFunction(fn symbols.ID, expr *token.List, mloc *memLocation) (symbols.Vartype, error) {
	if expr.At(expr.Cursor()+1) != symbols.OpenParen {
		return symbols.Vartype{}, c.errorf(errors.E2002, "Expected '('")
	}
	expr.GetNext()
	f := c.table.Function(fn)
	isImport := f.IsImport()
	calledUsesThis := strings.Contains(c.table.Name(fn), "::") && !f.Qualifiers.Static
	callingUsesThis := c.thisType != symbols.None

	args, closer, err := c.argRanges(expr)
	if err != nil {
		return symbols.Vartype{}, err
	}
	numArgs := max(len(args), len(f.Params))

	if callingUsesThis {
		c.pushReg(opr)
	}
	marPushed := false
	if calledUsesThis {
		if err := c.makeMARCurrent(mloc); err != nil {
			return symbols.Vartype{}, err
		}
		if numArgs > 0 {
			c.pushReg(mar)
			marPushed = true
		}
	}

	if err := c.pushCallParams(fn, f, isImport, expr, args); err != nil {
		return symbols.Vartype{}, err
	}
	expr.SetCursor(closer + 1)

	if calledUsesThis {
		if marPushed {
			depth := 1
			if !isImport {
				depth += numArgs
			}
			c.writeCmd(op.LoadSPOffs, int32(4*depth))
			c.writeCmd(op.MemRead, mar)
		}
		c.writeCmd(op.CallObj, mar)
	}
	c.generateCall(fn, f, numArgs, isImport)

	c.setAX(f.Return, symbols.ScopeLocal)
	if marPushed {
		c.popReg(mar)
	}
	if callingUsesThis {
		c.popReg(opr)
	}
	c.markAccessed(fn)
	return f.Return, nil
}

// argRanges splits the parenthesized argument list at the cursor of expr.
// It returns [start, end) pairs and the index of the closing parenthesis.
func (c *Compiler) argRanges(expr *token.List) ([][2]int, int, error) {
	open := expr.Cursor()
	closer := skipTo(expr, open+1)
	if expr.At(closer) != symbols.CloseParen {
		return nil, 0, c.internalf("Missing ')' at the end of the parameter list")
	}
	if closer == open+1 {
		return nil, closer, nil
	}
	var args [][2]int
	start := open + 1
	for start <= closer {
		end := skipTo(expr, start, symbols.Comma)
		if end == start {
			if end == closer {
				return nil, 0, c.errorf(errors.E2004, "Last argument in function call is empty")
			}
			return nil, 0, c.errorf(errors.E2004, "Argument %d in function call is empty", len(args)+1)
		}
		args = append(args, [2]int{start, end})
		start = end + 1
	}
	return args, closer, nil
}

func (c *Compiler) pushArg(isImport bool) {
	if isImport {
		c.writeCmd(op.PushReal, ax)
		return
	}
	c.pushReg(ax)
}

// pushCallParams pushes the arguments, last first, including default values
// for the parameters that are not supplied.
func (c *Compiler) pushCallParams(fn symbols.ID, f *symbols.Function, isImport bool, expr *token.List, args [][2]int) error {
	declared, supplied := len(f.Params), len(args)
	for i := declared - 1; i >= supplied; i-- {
		def := f.Params[i].Default
		if def == symbols.None {
			return c.errorf(errors.E3005, "Function call parameter #%d isn't provided and doesn't have any default value", i+1)
		}
		if def == symbols.Null {
			c.writeCmd(op.LitToReg, ax, 0)
			c.setAX(symbols.Of(symbols.Null), symbols.ScopeGlobal)
		} else {
			c.emitLiteral(def)
		}
		c.pushArg(isImport)
	}
	if supplied > declared && !f.Variadic {
		return c.errorf(errors.E3004, "Expected just %d parameters but found %d", declared, supplied)
	}

	for i := supplied - 1; i >= 0; i-- {
		r, err := c.term(expr.Sub(args[i][0], args[i][1]))
		if err != nil {
			return err
		}
		if err := c.resultToAX(r); err != nil {
			return err
		}
		if i < declared {
			pv := f.Params[i].Vartype
			c.convertAXToStringObject(pv)
			if c.table.IsStringObject(c.axType) && pv.WithoutConst().IsOldString() {
				c.writeCmd(op.CheckNullReg, ax)
			}
			if err := c.checkMismatch(c.axType, pv, true); err != nil {
				return err
			}
		}
		c.pushArg(isImport)
	}
	return nil
}

// generateCall emits the call instruction sequence once the arguments are
// on the stack.
func (c *Compiler) generateCall(fn symbols.ID, f *symbols.Function, numArgs int, isImport bool) {
	if isImport {
		c.writeCmd(op.NumFuncArgs, int32(numArgs))
		c.writeCmd(op.LitToReg, ax, int32(f.Offset))
		c.mod.FixupPrevious(bytecode.FixupImport)
		if f.Offset < 0 {
			c.importCalls.Track(fn, c.mod.Loc()-1)
		}
		c.writeCmd(op.CallExt, ax)
		if numArgs > 0 {
			c.writeCmd(op.SubRealStack, int32(numArgs))
		}
		return
	}

	c.writeCmd(op.LitToReg, ax, int32(f.Offset))
	c.mod.FixupPrevious(bytecode.FixupCode)
	if f.Offset < 0 {
		c.localCalls.Track(fn, c.mod.Loc()-1)
	}
	c.writeCmd(op.Call, ax)
	if numArgs > 0 {
		c.writeCmd(op.Sub, sp, int32(4*numArgs))
		c.offset -= 4 * numArgs
	}
}

func attributeAccessor(plain string, setter, indexed bool) string {
	prefix := "get"
	if setter {
		prefix = "set"
	}
	if indexed {
		return prefix + "i_" + plain
	}
	return prefix + "_" + plain
}

// callAttributeFunc calls the getter or setter of the attribute named at the
// cursor of expr. MAR points to the object. A setter takes its value from
// AX.
func (c *Compiler) callAttributeFunc(setter bool, expr *token.List, structVt symbols.Vartype) (symbols.Vartype, error) {
	comp := expr.GetNext()
	member, ok := c.table.FindMember(structVt.Base, comp)
	a := c.table.Attribute(member)
	if !ok || a == nil {
		return symbols.Vartype{}, c.errorf(errors.E3001, "Struct '%s' does not have an attribute named '%s'",
			c.table.Name(structVt.Base), c.symName(comp))
	}
	plain := symbols.Unmangle(c.table.Name(member))
	indexed := expr.PeekNext() == symbols.OpenBracket
	if indexed && !a.Indexed {
		return symbols.Vartype{}, c.errorf(errors.E2001, "Unexpected '[' after non-indexed attribute %s", plain)
	}
	if !indexed && a.Indexed {
		return symbols.Vartype{}, c.errorf(errors.E2002, "'[' expected after indexed attribute but not found")
	}

	fn, found := c.table.Find(c.table.Name(a.Parent) + "::" + attributeAccessor(plain, setter, indexed))
	f := c.table.Function(fn)
	if !found || f == nil {
		return symbols.Vartype{}, c.internalf("Attribute function '%s' not found in struct '%s'",
			attributeAccessor(plain, setter, indexed), c.table.Name(a.Parent))
	}
	isImport := f.IsImport()
	usesThis := !a.Qualifiers.Static

	if setter {
		c.convertAXToStringObject(a.Vartype)
		if err := c.checkMismatch(c.axType, a.Vartype, true); err != nil {
			return symbols.Vartype{}, err
		}
	}
	if usesThis {
		c.pushReg(opr)
	}
	numArgs := 0
	if setter {
		c.pushArg(isImport)
		numArgs++
	}
	if indexed {
		if usesThis {
			c.pushReg(mar)
		}
		if err := c.readBracketedIntExpression(expr); err != nil {
			return symbols.Vartype{}, err
		}
		if usesThis {
			c.popReg(mar)
		}
		c.pushArg(isImport)
		numArgs++
	}
	if usesThis {
		c.writeCmd(op.CallObj, mar)
	}
	c.generateCall(fn, f, numArgs, isImport)
	if usesThis {
		c.popReg(opr)
	}
	c.setAX(f.Return, symbols.ScopeLocal)
	c.markAccessed(fn)
	c.markAccessed(member)
	return f.Return, nil
}

// mayAccessClobberAX reports whether evaluating expr as an assignment
// target might change AX.
func (c *Compiler) mayAccessClobberAX(expr *token.List) bool {
	return expr.Len() != 1 || c.table.Kind(expr.At(0)) != symbols.KindVariable
}

// strcpy copies the string AX points to into the buffer MAR points to,
// truncating it to the string buffer length.
func (c *Compiler) strcpy() {
	c.writeCmd(op.RegToReg, ax, cx)  // source
	c.writeCmd(op.RegToReg, mar, bx) // dest
	c.writeCmd(op.LitToReg, dx, symbols.StringBufferLength-1)
	loop := c.mod.Loc()
	c.writeCmd(op.RegToReg, cx, mar)
	c.writeCmd(op.MemReadB, ax)
	c.writeCmd(op.RegToReg, bx, mar)
	c.writeCmd(op.MemWriteB, ax)
	toEnd := writeJumpForward(c.mod, op.Jz)
	c.writeCmd(op.Add, bx, 1)
	c.writeCmd(op.Add, cx, 1)
	c.writeCmd(op.Sub, dx, 1)
	c.writeCmd(op.RegToReg, dx, ax)
	writeJumpBack(c.mod, op.Jnz, loop)
	// truncated: terminate the buffer
	c.writeCmd(op.RegToReg, bx, mar)
	c.writeCmd(op.LitToReg, ax, 0)
	c.writeCmd(op.MemWriteB, ax)
	c.mod.PatchJump(toEnd, c.mod.Loc())
}

// assignTo stores the value in AX into the target described by lhs.
func (c *Compiler) assignTo(lhs *token.List) error {
	rhsType, rhsScope := c.axType, c.axScope
	pushed := c.mayAccessClobberAX(lhs)
	if pushed {
		c.pushReg(ax)
	}
	r, err := c.accessData(true, lhs)
	if err != nil {
		return err
	}
	if r.loc == locAX {
		if !c.table.IsManaged(r.vt.Base) {
			return c.errorf(errors.E3006, "Cannot modify this value")
		}
		c.writeCmd(op.RegToReg, ax, mar)
		c.writeCmd(op.CheckNull)
		r.loc = locMAR
	}
	if pushed {
		c.popReg(ax)
	}
	c.setAX(rhsType, rhsScope)

	if r.loc == locAttribute {
		// the cursor is on the attribute
		if _, err := c.callAttributeFunc(true, lhs, r.vt); err != nil {
			return err
		}
	} else if err := c.storeAX(r.vt); err != nil {
		return err
	}
	if !lhs.AtEnd() {
		return c.errorf(errors.E2001, "Unexpected '%s' after the assignment target", c.symName(lhs.PeekNext()))
	}
	return nil
}

// storeAX writes AX to the variable of type vt that MAR points to.
func (c *Compiler) storeAX(vt symbols.Vartype) error {
	if vt.WithoutConst().IsOldString() && c.axType.WithoutConst().IsOldString() {
		c.strcpy()
		return nil
	}
	c.convertAXToStringObject(vt)
	if !c.table.ConvertibleTo(c.axType, vt) {
		return c.errorf(errors.E3003, "Cannot assign a type '%s' value to a type '%s' variable",
			c.table.VartypeName(c.axType), c.table.VartypeName(vt))
	}
	if vt.IsManagedHandle() {
		c.writeCmd(op.MemWritePtr, ax)
	} else {
		c.writeCmd(writeOp(c.table.Size(vt)), ax)
	}
	return nil
}
