package compiler

import (
	"math"

	"github.com/agsc-lang/agsc/bytecode"
	"github.com/agsc-lang/agsc/errors"
	"github.com/agsc-lang/agsc/internal/token"
	"github.com/agsc-lang/agsc/op"
	"github.com/agsc-lang/agsc/symbols"
)

// valueLoc tells where the value of an evaluated term is.
type valueLoc int

const (
	// locAX: the value is in AX.
	locAX valueLoc = iota
	// locMAR: MAR holds the address of the value.
	locMAR
	// locAttribute: the value is an attribute whose object MAR points to.
	locAttribute
)

// result describes an evaluated term.
type result struct {
	loc   valueLoc
	scope symbols.Scope
	vt    symbols.Vartype
}

// floatOps maps integer opcodes to their float counterparts.
var floatOps = map[op.Code]op.Code{
	op.Add:      op.FAdd,
	op.AddReg:   op.FAddReg,
	op.DivReg:   op.FDivReg,
	op.Greater:  op.FGreater,
	op.Gte:      op.FGte,
	op.IsEqual:  op.IsEqual,
	op.LessThan: op.FLessThan,
	op.Lte:      op.FLte,
	op.MulReg:   op.FMulReg,
	op.NotEqual: op.NotEqual,
	op.Sub:      op.FSub,
	op.SubReg:   op.FSubReg,
}

func isPlainFloat(vt symbols.Vartype) bool {
	return vt.IsFloat() && vt.Array == 0 && !vt.Dynarray
}

func (c *Compiler) isConstOrLiteral(id symbols.ID) bool {
	k := c.table.Kind(id)
	return k == symbols.KindLiteral || k == symbols.KindConstant
}

// canBePartOfExpression reports whether s may continue an expression.
func (c *Compiler) canBePartOfExpression(s symbols.ID) bool {
	switch s {
	case symbols.OpenParen, symbols.CloseParen, symbols.OpenBracket, symbols.CloseBracket, symbols.This:
		return true
	}
	switch c.table.Kind(s) {
	case symbols.KindConstant, symbols.KindFunction, symbols.KindLiteral,
		symbols.KindOperator, symbols.KindVariable:
		return true
	}
	return false
}

func (c *Compiler) isThisMember(s symbols.ID) bool {
	if c.thisType == symbols.None {
		return false
	}
	_, ok := c.table.FindMember(c.thisType, s)
	return ok
}

// skipToEndOfExpression moves the cursor of the source past the symbols that
// belong to the expression starting at the cursor.
func (c *Compiler) skipToEndOfExpression() error {
	src := c.src
	depth, ternaries := 0, 0
	for !src.AtEnd() {
		s := src.PeekNext()
		switch s {
		case symbols.OpenParen, symbols.OpenBracket, symbols.OpenBrace:
			depth++
			src.GetNext()
			continue
		case symbols.CloseParen, symbols.CloseBracket, symbols.CloseBrace:
			if depth == 0 {
				return nil
			}
			depth--
			src.GetNext()
			continue
		case symbols.Colon:
			if ternaries == 0 {
				return nil
			}
			ternaries--
			src.GetNext()
			continue
		case symbols.Dot:
			src.GetNext()
			src.GetNext()
			continue
		case symbols.KwNew:
			src.GetNext()
			if !c.table.IsType(src.PeekNext()) {
				return c.errorf(errors.E2001, "Expected a type after 'new', found '%s' instead", c.symName(src.PeekNext()))
			}
			src.GetNext()
			continue
		case symbols.Null:
			src.GetNext()
			continue
		case symbols.Tern:
			ternaries++
			src.GetNext()
			continue
		}
		if depth > 0 {
			src.GetNext()
			continue
		}
		if c.table.IsType(s) {
			if src.At(src.Cursor()+1) != symbols.Dot {
				return nil
			}
			src.GetNext()
			continue
		}
		if c.isThisMember(s) || c.canBePartOfExpression(s) {
			src.GetNext()
			continue
		}
		if c.isUndeclared(s) {
			src.GetNext()
			return c.undeclared(s)
		}
		return nil
	}
	if depth > 0 {
		return c.errorf(errors.E2005, "Unexpected end of input")
	}
	return nil
}

// skipTo returns the index of the first symbol at or after from that is one
// of stops on the outermost nesting level, or of the closer that ends the
// level. It returns expr.Len() if there is neither.
func skipTo(expr *token.List, from int, stops ...symbols.ID) int {
	depth := 0
	for i := from; i < expr.Len(); i++ {
		s := expr.At(i)
		switch s {
		case symbols.OpenParen, symbols.OpenBracket, symbols.OpenBrace:
			depth++
			continue
		case symbols.CloseParen, symbols.CloseBracket, symbols.CloseBrace:
			if depth == 0 {
				return i
			}
			depth--
			continue
		}
		if depth > 0 {
			continue
		}
		for _, stop := range stops {
			if s == stop {
				return i
			}
		}
	}
	return expr.Len()
}

// parseExpression compiles the expression at the cursor. The value ends up
// in AX.
func (c *Compiler) parseExpression() error {
	start := c.src.Cursor()
	if err := c.skipToEndOfExpression(); err != nil {
		return err
	}
	expr := c.src.Sub(start, c.src.Cursor())
	if expr.Len() == 0 {
		return c.errorf(errors.E2004, "Expected an expression, found '%s' instead", c.symName(c.src.PeekNext()))
	}
	r, err := c.term(expr)
	if err != nil {
		return err
	}
	return c.resultToAX(r)
}

// parseDelimitedExpression compiles "( expression )".
func (c *Compiler) parseDelimitedExpression(opener symbols.ID) error {
	if err := c.expect(opener); err != nil {
		return err
	}
	if err := c.parseExpression(); err != nil {
		return err
	}
	closer := symbols.CloseParen
	if opener == symbols.OpenBracket {
		closer = symbols.CloseBracket
	}
	return c.expect(closer)
}

// readIntExpression compiles expr into AX and checks it is an integer.
func (c *Compiler) readIntExpression(expr *token.List) error {
	r, err := c.term(expr)
	if err != nil {
		return err
	}
	if err := c.resultToAX(r); err != nil {
		return err
	}
	return c.checkMismatch(c.axType, symbols.Of(symbols.Int), true)
}

// readBracketedIntExpression compiles "[ expression ]" at the cursor of expr.
func (c *Compiler) readBracketedIntExpression(expr *token.List) error {
	if got := expr.GetNext(); got != symbols.OpenBracket {
		return c.errorf(errors.E2002, "Expected '[', found '%s' instead", c.symName(got))
	}
	start := expr.Cursor()
	end := skipTo(expr, start)
	in := expr.Sub(start, end)
	if in.Len() == 0 {
		return c.errorf(errors.E2004, "Expected an integer expression within '[...]'")
	}
	if err := c.readIntExpression(in); err != nil {
		return err
	}
	if !in.AtEnd() {
		return c.errorf(errors.E2002, "Expected ']', found '%s' instead", c.symName(in.PeekNext()))
	}
	expr.SetCursor(end)
	if got := expr.GetNext(); got != symbols.CloseBracket {
		return c.errorf(errors.E2002, "Expected ']', found '%s' instead", c.symName(got))
	}
	return nil
}

// leastBindingOperator returns the index of the operator that binds least
// tightly in expr, 0 when that is a prefix operator, or -1 if there is no
// operator outside of parentheses.
func (c *Compiler) leastBindingOperator(expr *token.List) (int, error) {
	depth := 0
	operand := false
	largest := math.MinInt
	idx := -1
	binary := false
	for i := 0; i < expr.Len(); i++ {
		s := expr.At(i)
		switch s {
		case symbols.OpenParen, symbols.OpenBracket, symbols.OpenBrace:
			depth++
			continue
		case symbols.CloseParen, symbols.CloseBracket, symbols.CloseBrace:
			depth--
			operand = true
			continue
		}
		if !c.table.IsOperator(s) {
			operand = true
			continue
		}
		if depth > 0 {
			continue
		}
		isBinary := operand
		operand = false
		o := c.table.Operator(s)
		prio := o.UnaryPrio
		if isBinary {
			prio = o.BinaryPrio
		}
		if prio < 0 {
			kind := "unary"
			if isBinary {
				kind = "binary"
			}
			return -1, c.errorf(errors.E2001, "'%s' cannot be used as %s operator", c.table.Name(s), kind)
		}
		if prio < largest || (prio == largest && !c.opts.LeftToRight) {
			continue
		}
		largest, idx, binary = prio, i, isBinary
	}
	if idx >= 0 && !binary {
		idx = 0
	}
	return idx, nil
}

// term compiles expr, which must be consumed completely.
func (c *Compiler) term(expr *token.List) (result, error) {
	if expr.Len() == 0 {
		return result{}, c.internalf("Cannot parse empty subexpression")
	}
	switch first := expr.At(0); first {
	case symbols.CloseParen, symbols.CloseBracket, symbols.CloseBrace:
		return result{}, c.internalf("Unexpected '%s' at start of expression", c.table.Name(first))
	}

	idx, err := c.leastBindingOperator(expr)
	if err != nil {
		return result{}, err
	}
	var r result
	switch {
	case idx == 0:
		r, err = c.unaryTerm(expr)
	case idx > 0 && expr.At(idx) == symbols.Tern:
		r, err = c.ternary(idx, expr)
	case idx > 0:
		r, err = c.binary(idx, expr)
	case expr.At(0) == symbols.OpenParen:
		r, err = c.inParens(expr)
	default:
		r, err = c.accessData(false, expr)
	}
	if err != nil {
		return result{}, err
	}
	if !expr.AtEnd() {
		return result{}, c.errorf(errors.E2001, "Expected an operator, found '%s' instead", c.symName(expr.PeekNext()))
	}
	return c.structOrArrayResult(r)
}

func (c *Compiler) inParens(expr *token.List) (result, error) {
	end := skipTo(expr, 1)
	if expr.At(end) != symbols.CloseParen {
		return result{}, c.errorf(errors.E2005, "Open parenthesis doesn't have a matching ')'")
	}
	in := expr.Sub(1, end)
	if in.Len() == 0 {
		return result{}, c.errorf(errors.E2004, "Empty parentheses '()' are not allowed here")
	}
	r, err := c.term(in)
	if err != nil {
		return result{}, err
	}
	if !in.AtEnd() {
		return result{}, c.errorf(errors.E2002, "Expected ')', found '%s' instead.", c.symName(in.PeekNext()))
	}
	expr.SetCursor(end + 1)
	return r, nil
}

// structOrArrayResult turns a whole managed struct into a pointer to it.
func (c *Compiler) structOrArrayResult(r result) (result, error) {
	if r.vt.IsArray() {
		return r, c.errorf(errors.E3003, "Cannot access array as a whole (did you forget to add \"[0]\"?)")
	}
	if c.table.IsStruct(r.vt.Base) && !r.vt.Pointer && !r.vt.Dynarray {
		if !c.table.IsManaged(r.vt.Base) {
			return r, c.errorf(errors.E3003, "Cannot access non-managed struct as a whole")
		}
		if r.loc == locMAR {
			c.writeCmd(op.RegToReg, mar, ax)
			r.loc = locAX
		}
		r.vt.Pointer = true
		c.setAX(r.vt, r.scope)
	}
	return r, nil
}

// resultToAX loads the value of r into AX.
func (c *Compiler) resultToAX(r result) error {
	if r.loc == locAX {
		c.setAX(r.vt, r.scope)
		return nil
	}
	if r.loc == locAttribute {
		return c.internalf("Attribute value cannot be read here")
	}
	switch {
	case c.table.IsAnyString(r.vt) && !r.vt.Pointer:
		c.writeCmd(op.RegToReg, mar, ax)
	case r.vt.IsManagedHandle():
		c.writeCmd(op.MemReadPtr, ax)
	default:
		c.writeCmd(readOp(c.table.Size(r.vt)), ax)
	}
	c.setAX(r.vt, r.scope)
	return nil
}

func readOp(size int) op.Code {
	switch size {
	case 1:
		return op.MemReadB
	case 2:
		return op.MemReadW
	}
	return op.MemRead
}

func writeOp(size int) op.Code {
	switch size {
	case 1:
		return op.MemWriteB
	case 2:
		return op.MemWriteW
	}
	return op.MemWrite
}

// convertAXToStringObject wraps a string in AX into a string object if a
// string object is wanted.
func (c *Compiler) convertAXToStringObject(wanted symbols.Vartype) {
	if !c.axType.WithoutConst().IsOldString() || !c.table.IsStringObject(wanted.WithoutConst()) {
		return
	}
	c.writeCmd(op.CreateString, ax)
	c.axType = symbols.PointerTo(c.table.StringStruct())
}

// checkMismatch fails unless a value of type is converts to wants. With
// orderMatters unset either direction will do.
func (c *Compiler) checkMismatch(is, wants symbols.Vartype, orderMatters bool) error {
	if c.table.ConvertibleTo(is, wants) {
		return nil
	}
	if !orderMatters && c.table.ConvertibleTo(wants, is) {
		return nil
	}
	return c.errorf(errors.E3003, "Type mismatch: cannot convert '%s' to '%s'", c.table.VartypeName(is), c.table.VartypeName(wants))
}

// opcodeFor picks the variant of the integer opcode code that applies to
// operands of the given types.
func (c *Compiler) opcodeFor(code op.Code, vt1, vt2 symbols.Vartype) (op.Code, error) {
	if isPlainFloat(vt1) || isPlainFloat(vt2) {
		f, ok := floatOps[code]
		if !ok {
			return code, c.errorf(errors.E3003, "The operator cannot be applied to float values")
		}
		return f, nil
	}

	s1, s2 := c.table.IsAnyString(vt1), c.table.IsAnyString(vt2)
	if s1 || s2 {
		switch code {
		case op.IsEqual:
			code = op.StringsEqual
		case op.NotEqual:
			code = op.StringsNotEq
		default:
			return code, c.errorf(errors.E3003, "Operator cannot be applied to string type values")
		}
		if vt1.IsNull() || vt2.IsNull() {
			return code, nil
		}
		if s1 != s2 {
			return code, c.errorf(errors.E3003, "A string type value cannot be compared to a value that isn't a string type")
		}
		return code, nil
	}

	if ((vt1.IsDynpointer() || vt1.IsNull()) && (vt2.IsDynpointer() || vt2.IsNull())) ||
		((vt1.Dynarray || vt1.IsNull()) && (vt2.Dynarray || vt2.IsNull())) {
		if code != op.IsEqual && code != op.NotEqual {
			return code, c.errorf(errors.E3003, "The operator cannot be applied to managed types")
		}
		return code, nil
	}
	if vt1.IsDynpointer() || vt2.IsDynpointer() {
		return code, c.errorf(errors.E3003, "The operator cannot be applied to values of these types")
	}

	if err := c.checkMismatch(vt1, symbols.Of(symbols.Int), true); err != nil {
		return code, err
	}
	return code, c.checkMismatch(vt2, symbols.Of(symbols.Int), true)
}

func (c *Compiler) unaryTerm(expr *token.List) (result, error) {
	switch prefix := expr.At(0); prefix {
	case symbols.Minus:
		return c.unaryMinus(expr)
	case symbols.Plus:
		return c.unaryPlus(expr)
	case symbols.Not, symbols.BitNeg:
		return c.negation(expr)
	case symbols.KwNew:
		return c.parseNew(expr)
	default:
		return result{}, c.errorf(errors.E2001, "Can't use '%s' as a prefix operator", c.table.Name(prefix))
	}
}

// operand returns the part of expr after its prefix operator.
func (c *Compiler) operand(expr *token.List) (*token.List, error) {
	if expr.Len() < 2 {
		return nil, c.errorf(errors.E2004, "Expected a term after '%s' but didn't find any", c.table.Name(expr.At(0)))
	}
	rest := expr.Sub(1, expr.Len())
	expr.SetCursor(expr.Len())
	return rest, nil
}

func (c *Compiler) unaryMinus(expr *token.List) (result, error) {
	rest, err := c.operand(expr)
	if err != nil {
		return result{}, err
	}
	if rest.Len() == 1 && c.isConstOrLiteral(rest.At(0)) {
		lit, err := c.readLiteralToNegate(rest)
		if err != nil {
			return result{}, err
		}
		if lit, err = c.negateLiteral(lit); err != nil {
			return result{}, err
		}
		return c.emitLiteral(lit), nil
	}

	r, err := c.term(rest)
	if err != nil {
		return result{}, err
	}
	if err := c.resultToAX(r); err != nil {
		return result{}, err
	}
	code, err := c.opcodeFor(op.SubReg, c.axType, c.axType)
	if err != nil {
		return result{}, err
	}
	c.writeCmd(op.LitToReg, bx, 0)
	c.writeCmd(code, bx, ax)
	c.writeCmd(op.RegToReg, bx, ax)
	return result{loc: locAX, scope: c.axScope, vt: c.axType}, nil
}

func (c *Compiler) unaryPlus(expr *token.List) (result, error) {
	rest, err := c.operand(expr)
	if err != nil {
		return result{}, err
	}
	if rest.Len() == 1 && c.isConstOrLiteral(rest.At(0)) {
		lit, err := c.readLiteralOrConst(rest)
		if err != nil {
			return result{}, err
		}
		return c.emitLiteral(lit), nil
	}
	r, err := c.term(rest)
	if err != nil {
		return result{}, err
	}
	if !r.vt.IsInteger() && !isPlainFloat(r.vt) {
		return result{}, c.errorf(errors.E3003, "Cannot apply unary '+' to an expression of type '%s'", c.table.VartypeName(r.vt))
	}
	return r, nil
}

// negation compiles '!' and '~'.
func (c *Compiler) negation(expr *token.List) (result, error) {
	prefix := expr.At(0)
	rest, err := c.operand(expr)
	if err != nil {
		return result{}, err
	}
	r, err := c.term(rest)
	if err != nil {
		return result{}, err
	}
	if err := c.resultToAX(r); err != nil {
		return result{}, err
	}
	if !c.axType.IsInteger() {
		return result{}, c.errorf(errors.E3003, "Expected an integer expression after '%s' but found type %s",
			c.table.Name(prefix), c.table.VartypeName(c.axType))
	}
	if prefix == symbols.BitNeg {
		// ~x == -1 - x
		c.writeCmd(op.LitToReg, bx, -1)
		c.writeCmd(op.SubReg, bx, ax)
		c.writeCmd(op.RegToReg, bx, ax)
	} else {
		c.writeCmd(op.NotReg, ax)
	}
	c.setAX(symbols.Of(symbols.Int), c.axScope)
	return result{loc: locAX, scope: c.axScope, vt: c.axType}, nil
}

func (c *Compiler) parseNew(expr *token.List) (result, error) {
	if expr.Len() < 2 {
		return result{}, c.errorf(errors.E2004, "Expected a type after 'new' but didn't find any")
	}
	expr.SetCursor(1)
	base := expr.GetNext()
	if !c.table.IsType(base) {
		return result{}, c.errorf(errors.E2001, "Expected a type after 'new', found '%s' instead", c.symName(base))
	}
	if ty := c.table.Type(base); ty.Undefined {
		return result{}, c.errorRef(errors.E3001, base, "The struct '%s' hasn't been completely defined yet", c.table.Name(base))
	}
	managed := c.table.IsManaged(base)
	if !symbols.Of(base).IsInteger() && !isPlainFloat(symbols.Of(base)) && !managed {
		return result{}, c.errorf(errors.E3016, "Can only use integer types or 'float' or managed types with 'new'")
	}

	var vt, elem symbols.Vartype
	if expr.PeekNext() == symbols.OpenBracket || expr.PeekNext() == symbols.Multiply {
		if expr.PeekNext() == symbols.Multiply {
			if !managed {
				return result{}, c.errorf(errors.E3016, "Cannot use '*' on the non-managed type '%s'", c.table.Name(base))
			}
			expr.GetNext()
		}
		if err := c.readBracketedIntExpression(expr); err != nil {
			return result{}, err
		}
		elem = symbols.Of(base)
		if managed {
			elem = symbols.PointerTo(base)
		}
		vt = elem.DynarrayOf()
	} else {
		if c.table.Type(base).Builtin {
			return result{}, c.errorf(errors.E2002, "Expected '[' after the built-in type '%s'", c.table.Name(base))
		}
		if !managed {
			return result{}, c.errorf(errors.E2002, "Expected '[' after the integer type '%s'", c.table.Name(base))
		}
		elem = symbols.Of(base)
		vt = symbols.PointerTo(base)
	}

	size := c.table.Size(elem)
	if size == 0 {
		return result{}, c.internalf("Trying to emit allocation of zero dynamic memory")
	}
	if vt.Dynarray {
		isManaged := int32(0)
		if managed {
			isManaged = 1
		}
		c.writeCmd(op.NewArray, ax, int32(size), isManaged)
	} else {
		c.writeCmd(op.NewUserObject, ax, int32(size))
	}
	c.table.Entry(base).Accessed = true
	c.setAX(vt, symbols.ScopeGlobal)
	return result{loc: locAX, scope: symbols.ScopeGlobal, vt: vt}, nil
}

func (c *Compiler) ternary(idx int, expr *token.List) (result, error) {
	after := expr.Sub(idx+1, expr.Len())
	colon := skipTo(after, 0, symbols.Colon)
	if after.At(colon) != symbols.Colon {
		return result{}, c.errorf(errors.E2002, "Didn't find the matching ':' to '?'")
	}
	expr.SetCursor(expr.Len())
	term1 := expr.Sub(0, idx)
	term2 := after.Sub(0, colon)
	term3 := after.Sub(colon+1, after.Len())
	if term1.Len() == 0 {
		return result{}, c.errorf(errors.E2004, "The first expression of this ternary is empty")
	}

	r1, err := c.term(term1)
	if err != nil {
		return result{}, err
	}
	if err := c.resultToAX(r1); err != nil {
		return result{}, err
	}

	stringObj := symbols.PointerTo(c.table.StringStruct())
	hasTerm2 := term2.Len() > 0
	testCode := op.Jnz
	if hasTerm2 {
		testCode = op.Jz
	}
	toTerm3 := writeJumpForward(c.mod, testCode)

	vt2, scope2 := c.axType, c.axScope
	toEnd := -1
	if hasTerm2 {
		r2, err := c.term(term2)
		if err != nil {
			return result{}, err
		}
		if err := c.resultToAX(r2); err != nil {
			return result{}, err
		}
		c.convertAXToStringObject(stringObj)
		vt2, scope2 = c.axType, c.axScope
		toEnd = writeJumpForward(c.mod, op.Jmp)
	} else {
		c.convertAXToStringObject(stringObj)
		vt2 = c.axType
	}

	if term3.Len() == 0 {
		return result{}, c.errorf(errors.E2004, "The third expression of this ternary is empty")
	}
	if hasTerm2 {
		c.mod.PatchJump(toTerm3, c.mod.Loc())
	}
	r3, err := c.term(term3)
	if err != nil {
		return result{}, err
	}
	if err := c.resultToAX(r3); err != nil {
		return result{}, err
	}
	c.convertAXToStringObject(stringObj)
	vt3, scope3 := c.axType, c.axScope
	if hasTerm2 {
		c.mod.PatchJump(toEnd, c.mod.Loc())
	} else {
		c.mod.PatchJump(toTerm3, c.mod.Loc())
	}

	scope := symbols.ScopeGlobal
	if scope2 == symbols.ScopeLocal || scope3 == symbols.ScopeLocal {
		scope = symbols.ScopeLocal
	}
	var vt symbols.Vartype
	switch {
	case c.table.ConvertibleTo(vt2, vt3):
		vt = vt3
	case c.table.ConvertibleTo(vt3, vt2):
		vt = vt2
	default:
		return result{}, c.errorf(errors.E3003, "An expression of type '%s' is incompatible with an expression of type '%s'",
			c.table.VartypeName(vt2), c.table.VartypeName(vt3))
	}
	c.setAX(vt, scope)
	return result{loc: locAX, scope: scope, vt: vt}, nil
}

func (c *Compiler) binary(idx int, expr *token.List) (result, error) {
	opSym := expr.At(idx)
	expr.SetCursor(expr.Len())

	r1, err := c.term(expr.Sub(0, idx))
	if err != nil {
		return result{}, err
	}
	if err := c.resultToAX(r1); err != nil {
		return result{}, err
	}
	vt1 := c.axType

	code := c.table.Operator(opSym).IntOp
	toExit := -1
	switch code {
	case op.And:
		toExit = writeJumpForward(c.mod, op.Jz)
	case op.Or:
		toExit = writeJumpForward(c.mod, op.Jnz)
	}

	c.pushReg(ax)
	rhs := expr.Sub(idx+1, expr.Len())
	if rhs.Len() == 0 {
		return result{}, c.errorf(errors.E2004, "Binary operator '%s' doesn't have a right hand side", c.table.Name(opSym))
	}
	r2, err := c.term(rhs)
	if err != nil {
		return result{}, err
	}
	if err := c.resultToAX(r2); err != nil {
		return result{}, err
	}
	c.popReg(bx)
	vt2 := c.axType

	if err := c.checkMismatch(vt1, vt2, false); err != nil {
		return result{}, err
	}
	actual, err := c.opcodeFor(code, vt1, vt2)
	if err != nil {
		return result{}, err
	}
	c.writeCmd(actual, bx, ax)
	c.writeCmd(op.RegToReg, bx, ax)
	if toExit >= 0 {
		c.mod.PatchJump(toExit, c.mod.Loc())
	}

	vt := vt1
	if op.IsBoolean(actual) {
		vt = symbols.Of(symbols.Int)
	}
	scope := symbols.ScopeGlobal
	if r1.scope == symbols.ScopeLocal || r2.scope == symbols.ScopeLocal {
		scope = symbols.ScopeLocal
	}
	c.setAX(vt, scope)
	return result{loc: locAX, scope: scope, vt: vt}, nil
}

// readLiteralOrConst reads a literal or constant from expr and returns the
// literal symbol behind it.
func (c *Compiler) readLiteralOrConst(expr *token.List) (symbols.ID, error) {
	lit, err := c.readLiteralToNegate(expr)
	if err != nil {
		return lit, err
	}
	return lit, c.checkOverflow(lit)
}

// readLiteralToNegate is readLiteralOrConst for a literal that the caller
// negates, which admits 2147483648.
func (c *Compiler) readLiteralToNegate(expr *token.List) (symbols.ID, error) {
	s := expr.GetNext()
	if k := c.table.Kind(s); k == symbols.KindConstant {
		return c.table.Constant(s).Value, nil
	} else if k == symbols.KindLiteral {
		return s, nil
	}
	return symbols.None, c.errorf(errors.E2001, "Expected a constant or a literal, found '%s' instead", c.symName(s))
}

// checkOverflow rejects an integer literal that only fits when negated.
func (c *Compiler) checkOverflow(lit symbols.ID) error {
	if l := c.table.Literal(lit); l != nil && l.Overflow {
		return c.errorf(errors.E1006, "Literal value '%s' is too high (max. is %d)", c.table.Name(lit), math.MaxInt32)
	}
	return nil
}

// readIntLiteralOrConst reads an integer literal or constant, possibly
// negated.
func (c *Compiler) readIntLiteralOrConst(expr *token.List, msg string) (symbols.ID, error) {
	negate := false
	if expr.PeekNext() == symbols.Minus {
		expr.GetNext()
		negate = true
	}
	read := c.readLiteralOrConst
	if negate {
		read = c.readLiteralToNegate
	}
	lit, err := read(expr)
	if err != nil {
		return lit, err
	}
	if vt := c.table.Literal(lit).Vartype; !vt.IsInteger() {
		return lit, c.errorf(errors.E3003, "%sExpected an integer, found type '%s' instead", msg, c.table.VartypeName(vt))
	}
	if negate {
		return c.negateLiteral(lit)
	}
	return lit, nil
}

func (c *Compiler) negateLiteral(lit symbols.ID) (symbols.ID, error) {
	l := c.table.Literal(lit)
	switch {
	case l.Vartype.IsInteger():
		return c.table.IntLiteral(-l.Value), nil
	case isPlainFloat(l.Vartype):
		return c.table.FloatLiteral(-symbols.LiteralFloat(l)), nil
	}
	return lit, c.errorf(errors.E3003, "Cannot negate a value of type '%s'", c.table.VartypeName(l.Vartype))
}

// emitLiteral loads the literal into AX.
func (c *Compiler) emitLiteral(lit symbols.ID) result {
	l := c.table.Literal(lit)
	c.writeCmd(op.LitToReg, ax, l.Value)
	if l.Vartype.WithoutConst().IsOldString() {
		c.mod.FixupPrevious(bytecode.FixupString)
	}
	c.setAX(l.Vartype, symbols.ScopeGlobal)
	return result{loc: locAX, scope: symbols.ScopeGlobal, vt: l.Vartype}
}
