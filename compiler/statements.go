package compiler

import (
	"github.com/agsc-lang/agsc/errors"
	"github.com/agsc-lang/agsc/op"
	"github.com/agsc-lang/agsc/symbols"
)

// parseCommand compiles a statement within a function body that starts with
// leading.
func (c *Compiler) parseCommand(leading symbols.ID) error {
	var err error
	switch leading {
	case symbols.OpenBrace:
		if c.pass == passPreAnalyze {
			c.funcName, c.funcStruct = symbols.None, symbols.None
			return c.skipToClose(symbols.CloseBrace)
		}
		if c.nest.level() == levelParameters {
			return c.funcBodyStart()
		}
		c.nest.push(frameBraces)
		return nil
	case symbols.CloseBrace:
		if c.nest.level() <= levelFunction {
			return c.endOfFuncBody()
		}
		if c.nest.top().kind == frameSwitch {
			err = c.endOfSwitch()
		} else {
			c.endOfBraces()
		}
	case symbols.Do:
		f := c.nest.push(frameDo)
		f.start = c.mod.Loc()
		return nil
	case symbols.While:
		return c.parseWhile()
	case symbols.For:
		return c.parseFor()
	case symbols.If:
		return c.parseIf()
	case symbols.Else:
		return c.errorf(errors.E2001, "Cannot find any 'if' clause that matches this 'else'")
	case symbols.Switch:
		err = c.parseSwitch()
	case symbols.Case, symbols.Default:
		err = c.parseSwitchLabel(leading)
	case symbols.Break:
		err = c.parseBreak()
	case symbols.Continue:
		err = c.parseContinue()
	case symbols.Return:
		err = c.parseReturn()
	default:
		if err = c.parseAssignmentOrExpression(leading); err == nil {
			err = c.expect(symbols.Semicolon)
		}
	}
	if err != nil {
		return err
	}
	return c.endOfCompoundStatements()
}

// endOfCompoundStatements closes the unbraced constructs that the statement
// just compiled completes, e.g. both levels of "while (a) if (b) i++;".
func (c *Compiler) endOfCompoundStatements() error {
	for c.nest.level() > levelFunction {
		switch f := c.nest.top(); f.kind {
		case frameBraces, frameSwitch:
			return nil
		case frameDo:
			if err := c.endOfDo(); err != nil {
				return err
			}
		case frameElse:
			f.patchJumpOuts(c.mod, c.mod.Loc())
			c.nest.pop()
		case frameIf:
			if c.endOfIf() {
				return nil
			}
		case frameWhile:
			c.endOfWhile()
		default:
			return c.internalf("Nesting of kind '%s' ends", f.kind)
		}
	}
	return nil
}

func (c *Compiler) skipToClose(closer symbols.ID) error {
	c.src.SetCursor(skipTo(c.src, c.src.Cursor()))
	if c.src.GetNext() != closer {
		return c.internalf("Unexpected closing symbol")
	}
	return nil
}

func (c *Compiler) funcBodyStart() error {
	f := c.table.Function(c.funcName)
	c.nest.push(frameFunction)

	c.writeCmd(op.ThisBase, int32(f.Offset))
	if f.NoLoopCheck {
		c.writeCmd(op.LoopCheckOff)
	}
	// Callers push managed handles as plain values. Declare the cells as
	// pointers so that releasing them at the end balances the count.
	for i, p := range f.Params {
		if !p.Vartype.IsManagedHandle() {
			continue
		}
		c.writeCmd(op.LoadSPOffs, int32(4*(i+2)))
		c.writeCmd(op.MemRead, ax)
		c.writeCmd(op.MemInitPtr, ax)
	}
	if c.funcStruct != symbols.None && !f.Qualifiers.Static {
		c.thisType = c.funcStruct
	}
	return nil
}

func (c *Compiler) endOfFuncBody() error {
	f := c.table.Function(c.funcName)
	if f == nil {
		return c.internalf("Function '%s' ends but isn't a function", c.table.Name(c.funcName))
	}

	c.freeLocals(c.releasableLocals(levelParameters))
	// Parameters stay; the caller removes them after the return.
	c.removeLocals(levelFunction)
	c.restoreLocals(levelParameters)
	if !f.Return.IsVoid() {
		c.writeCmd(op.LitToReg, ax, 0)
	}
	c.funcName, c.funcStruct, c.thisType = symbols.None, symbols.None, symbols.None

	c.nest.pop()
	c.nest.top().patchJumpOuts(c.mod, c.mod.Loc())
	c.nest.pop()
	c.writeCmd(op.Ret)
	c.offset -= 4 // return address
	return nil
}

func (c *Compiler) endOfBraces() {
	level := c.nest.level()
	c.freeLocals(c.releasableLocals(level))
	c.removeLocals(level)
	c.restoreLocals(level)
	c.nest.pop()
}

func (c *Compiler) parseIf() error {
	if err := c.parseDelimitedExpression(symbols.OpenParen); err != nil {
		return err
	}
	f := c.nest.push(frameIf)
	f.addJumpOut(writeJumpForward(c.mod, op.Jz))
	return nil
}

// endOfIf closes the then-branch. It reports whether an 'else' follows;
// the frame turns into the else-branch then.
func (c *Compiler) endOfIf() bool {
	f := c.nest.top()
	if c.src.PeekNext() != symbols.Else {
		f.patchJumpOuts(c.mod, c.mod.Loc())
		c.nest.pop()
		return false
	}
	c.src.GetNext()
	jmp := writeJumpForward(c.mod, op.Jmp)
	f.patchJumpOuts(c.mod, c.mod.Loc())
	f.addJumpOut(jmp)
	f.kind = frameElse
	return true
}

func (c *Compiler) parseWhile() error {
	start := c.mod.Loc()
	if err := c.parseDelimitedExpression(symbols.OpenParen); err != nil {
		return err
	}
	f := c.nest.push(frameWhile)
	f.start = start
	f.addJumpOut(writeJumpForward(c.mod, op.Jz))
	return nil
}

func (c *Compiler) endOfWhile() {
	f := c.nest.top()
	// the iterate clause of a for loop
	if len(f.chunks) > 0 {
		c.writeChunk(f.chunks[0])
		f.chunks = nil
	}
	writeJumpBack(c.mod, op.Jmp, f.start)
	f.patchJumpOuts(c.mod, c.mod.Loc())
	c.nest.pop()

	if c.nest.top().kind == frameFor {
		c.endOfBraces()
	}
}

func (c *Compiler) endOfDo() error {
	f := c.nest.top()
	if err := c.expectMsg(symbols.While, "Expected the 'while' of a 'do ... while(...)' statement"); err != nil {
		return err
	}
	cond := c.mod.Loc()
	if err := c.parseDelimitedExpression(symbols.OpenParen); err != nil {
		return err
	}
	if err := c.expect(symbols.Semicolon); err != nil {
		return err
	}
	for _, loc := range f.continues {
		c.mod.PatchJump(loc, cond)
	}
	writeJumpBack(c.mod, op.Jnz, f.start)
	f.patchJumpOuts(c.mod, c.mod.Loc())
	c.nest.pop()
	return nil
}

// parseFor compiles the header of "for (I; E; C)" as "{ I; while (E) { ...; C } }".
// The outer frame holds the locals of I. C is compiled right away and
// yanked into a chunk of the inner frame until the loop body is done.
func (c *Compiler) parseFor() error {
	c.nest.push(frameFor)
	if err := c.expect(symbols.OpenParen); err != nil {
		return err
	}

	p := c.src.PeekNext()
	switch {
	case p == symbols.CloseParen:
		return c.errorf(errors.E2003, "Empty parentheses '()' aren't allowed after 'for' (write 'for(;;)' instead")
	case p == symbols.Semicolon:
	case c.table.IsType(p):
		if err := c.forInitVardecl(); err != nil {
			return err
		}
	default:
		if err := c.parseAssignmentOrExpression(c.src.GetNext()); err != nil {
			return err
		}
	}
	if err := c.expectMsg(symbols.Semicolon, "Expected ';' after for loop initializer clause"); err != nil {
		return err
	}

	condStart := c.mod.Loc()
	c.mod.ForceLine()
	if c.src.PeekNext() == symbols.Semicolon {
		c.writeCmd(op.LitToReg, ax, 1)
	} else if err := c.parseExpression(); err != nil {
		return err
	}
	if err := c.expectMsg(symbols.Semicolon, "Expected ';' after for loop while clause"); err != nil {
		return err
	}

	iterStart, fixupStart, line := c.mod.Loc(), c.mod.NumFixups(), c.src.LineAt(c.src.Cursor())
	if c.src.PeekNext() != symbols.CloseParen {
		if err := c.parseAssignmentOrExpression(c.src.GetNext()); err != nil {
			return err
		}
	}
	if err := c.expectMsg(symbols.CloseParen, "Expected ')' after for loop iterate clause"); err != nil {
		return err
	}

	inner := c.nest.push(frameWhile)
	inner.start = condStart
	c.yankChunk(inner, iterStart, fixupStart, line)
	inner.addJumpOut(writeJumpForward(c.mod, op.Jz))
	return nil
}

func (c *Compiler) forInitVardecl() error {
	typ := c.src.GetNext()
	vt := c.vartypeOf(typ)
	if c.table.IsManaged(typ) {
		vt.Pointer = true
	}
	if c.src.PeekNext() == symbols.Multiply {
		c.src.GetNext()
	}
	for {
		name := c.src.GetNext()
		if p := c.src.PeekNext(); p == symbols.ScopeRes || p == symbols.OpenParen {
			return c.errorf(errors.E2003, "Function definition not allowed in for loop initialiser")
		}
		if !c.table.IsIdentifier(name) {
			return c.errorf(errors.E2001, "Expected an identifier, found '%s' instead", c.symName(name))
		}
		if err := c.vardecl(name, vt, symbols.Qualifiers{}, symbols.ScopeLocal); err != nil {
			return err
		}
		punct := c.src.PeekNext()
		if err := c.expectOneOf(punct, symbols.Comma, symbols.Semicolon); err != nil {
			return err
		}
		if punct == symbols.Semicolon {
			return nil
		}
		c.src.GetNext()
	}
}

// parseSwitch compiles the head of a switch. The value stays in BX while
// the case expressions are compared against it.
func (c *Compiler) parseSwitch() error {
	if err := c.parseDelimitedExpression(symbols.OpenParen); err != nil {
		return err
	}
	vt := c.axType
	c.writeCmd(op.RegToReg, ax, bx)
	if err := c.expect(symbols.OpenBrace); err != nil {
		return err
	}

	f := c.nest.push(frameSwitch)
	f.switchType = vt
	f.switchTable = writeJumpForward(c.mod, op.Jmp)
	if c.src.AtEnd() {
		return c.errorf(errors.E2005, "Unexpected end of input")
	}
	return c.expectOneOf(c.src.PeekNext(), symbols.Default, symbols.Case, symbols.CloseBrace)
}

func (c *Compiler) parseSwitchLabel(label symbols.ID) error {
	f := c.nest.top()
	if f.kind != frameSwitch {
		return c.errorf(errors.E3008, "'%s' is only allowed directly within a 'switch' block", c.table.Name(label))
	}

	if label == symbols.Default {
		if f.switchDefault >= 0 {
			return c.errorf(errors.E3008, "This switch block already has a 'default' label")
		}
		f.switchDefault = c.mod.Loc()
		return c.expect(symbols.Colon)
	}

	codeStart, fixupStart, line := c.mod.Loc(), c.mod.NumFixups(), c.src.Line()
	c.pushReg(bx)
	if err := c.parseExpression(); err != nil {
		return err
	}
	if err := c.checkMismatch(c.axType, f.switchType, false); err != nil {
		return err
	}
	c.popReg(bx)
	c.yankChunk(f, codeStart, fixupStart, line)
	f.caseStarts = append(f.caseStarts, c.mod.Loc())
	return c.expect(symbols.Colon)
}

// endOfSwitch writes the jump table: one compare and branch per case in
// source order, then the jump to 'default'.
func (c *Compiler) endOfSwitch() error {
	f := c.nest.top()
	if c.mod.LastOp() != op.Jmp {
		f.addJumpOut(writeJumpForward(c.mod, op.Jmp))
	}
	c.mod.PatchJump(f.switchTable, c.mod.Loc())

	eq := op.IsEqual
	if c.table.IsAnyString(f.switchType) {
		eq = op.StringsEqual
	}
	if len(f.chunks) != len(f.caseStarts) {
		return c.internalf("Switch has %d case expressions for %d cases", len(f.chunks), len(f.caseStarts))
	}
	for i, ch := range f.chunks {
		c.writeChunk(ch)
		c.writeCmd(eq, ax, bx)
		writeJumpBack(c.mod, op.Jnz, f.caseStarts[i])
	}
	if f.switchDefault >= 0 {
		writeJumpBack(c.mod, op.Jmp, f.switchDefault)
	}
	f.patchJumpOuts(c.mod, c.mod.Loc())
	c.nest.pop()
	return nil
}

// exitLevel returns the innermost level whose frame matches, or 0.
func (c *Compiler) exitLevel(match func(*frame) bool) int {
	for level := c.nest.level(); level > levelFunction; level-- {
		if match(c.nest.at(level)) {
			return level
		}
	}
	return 0
}

func (c *Compiler) parseBreak() error {
	if err := c.expect(symbols.Semicolon); err != nil {
		return err
	}
	level := c.exitLevel(func(f *frame) bool { return f.isLoop() || f.kind == frameSwitch })
	if level == 0 {
		return c.errorf(errors.E3007, "'break' is only valid inside a loop or a switch statement block")
	}

	// The locals are only gone on the path that takes the jump.
	saved := c.offset
	c.freeLocals(c.releasableLocals(level + 1))
	c.removeLocals(level + 1)
	c.nest.at(level).addJumpOut(writeJumpForward(c.mod, op.Jmp))
	c.offset = saved
	return nil
}

func (c *Compiler) parseContinue() error {
	if err := c.expect(symbols.Semicolon); err != nil {
		return err
	}
	level := c.exitLevel((*frame).isLoop)
	if level == 0 {
		return c.errorf(errors.E3007, "'continue' is only valid inside a loop")
	}

	saved := c.offset
	c.freeLocals(c.releasableLocals(level + 1))
	c.removeLocals(level + 1)
	f := c.nest.at(level)
	switch {
	case f.kind == frameDo:
		f.continues = append(f.continues, writeJumpForward(c.mod, op.Jmp))
	default:
		if len(f.chunks) > 0 {
			c.writeChunk(f.chunks[0])
		}
		writeJumpBack(c.mod, op.Jmp, f.start)
	}
	c.offset = saved
	return nil
}

func (c *Compiler) parseReturn() error {
	f := c.table.Function(c.funcName)
	ret := f.Return

	switch {
	case c.src.PeekNext() != symbols.Semicolon:
		if ret.IsVoid() {
			return c.errorf(errors.E3013, "Cannot return value from void function")
		}
		if err := c.parseExpression(); err != nil {
			return err
		}
		c.convertAXToStringObject(ret)
		if err := c.checkMismatch(c.axType, ret, true); err != nil {
			return err
		}
		if c.axType.WithoutConst().IsOldString() && c.axScope == symbols.ScopeLocal {
			return c.errorf(errors.E3013, "Cannot return local string from function")
		}
	case ret.IsInteger():
		c.writeCmd(op.LitToReg, ax, 0)
	case !ret.IsVoid():
		return c.errorf(errors.E3013, "Must return a '%s' value from function", c.table.VartypeName(ret))
	}
	if err := c.expect(symbols.Semicolon); err != nil {
		return err
	}

	saved := c.offset
	locals := c.releasableLocals(levelParameters)
	switch {
	case ret.IsManagedHandle():
		c.freeLocalsKeepHandle(locals)
	case !ret.IsVoid():
		c.freeLocalsKeepAX(locals)
	default:
		c.freeLocals(locals)
	}
	c.removeLocals(levelFunction)
	c.nest.at(levelParameters).addJumpOut(writeJumpForward(c.mod, op.Jmp))
	c.offset = saved
	return nil
}
