package compiler

import (
	"github.com/agsc-lang/agsc/op"
	"github.com/agsc-lang/agsc/symbols"
)

// A dynpointer array at least this long is released in a loop.
const releaseLoopThreshold = 4

// localsOf returns the locals declared at level from and deeper. A name
// declared at several levels yields each of its variables.
func (c *Compiler) localsOf(from int) []*symbols.Variable {
	var vars []*symbols.Variable
	above := map[symbols.ID]symbols.Data{}
	for level := c.nest.level(); level >= from; level-- {
		stash := c.nest.at(level).stash
		for i := len(stash) - 1; i >= 0; i-- {
			s := stash[i]
			d, ok := above[s.id]
			if !ok {
				d = c.table.Entry(s.id).Data
			}
			if v, ok := d.(*symbols.Variable); ok && v.Scope == symbols.ScopeLocal {
				vars = append(vars, v)
			}
			above[s.id] = s.entry.Data
		}
	}
	return vars
}

// localsSize returns the stack space taken by the locals declared at level
// from and deeper. Parameters don't count; the caller owns them.
func (c *Compiler) localsSize(from int) int {
	size := 0
	for _, v := range c.localsOf(from) {
		if !v.Parameter {
			size += c.table.Size(v.Vartype)
		}
	}
	return size
}

// removeLocals pops the locals of level from and deeper off the stack.
func (c *Compiler) removeLocals(from int) {
	if size := c.localsSize(from); size > 0 {
		c.offset -= size
		c.writeCmd(op.Sub, sp, int32(size))
	}
}

// restoreLocals brings back the definitions that the locals of level from
// and deeper hid.
func (c *Compiler) restoreLocals(from int) {
	for level := c.nest.level(); level >= from; level-- {
		stash := c.nest.at(level).stash
		for i := len(stash) - 1; i >= 0; i-- {
			*c.table.Entry(stash[i].id) = stash[i].entry
		}
	}
}

// releasableLocals returns the locals of level from and deeper whose
// storage holds managed handles.
func (c *Compiler) releasableLocals(from int) []*symbols.Variable {
	var vars []*symbols.Variable
	for _, v := range c.localsOf(from) {
		if c.holdsHandles(v.Vartype) {
			vars = append(vars, v)
		}
	}
	return vars
}

// components returns the data members of strct including inherited ones.
func (c *Compiler) components(strct symbols.ID) []*symbols.Component {
	var comps []*symbols.Component
	for s := strct; s != symbols.None; {
		ty := c.table.Type(s)
		if ty == nil {
			break
		}
		for _, m := range ty.Members {
			if comp := c.table.Component(m); comp != nil {
				comps = append(comps, comp)
			}
		}
		s = ty.Parent
	}
	return comps
}

// holdsHandles reports whether a value of vt contains managed handles that
// must be released when it goes out of scope.
func (c *Compiler) holdsHandles(vt symbols.Vartype) bool {
	switch {
	case vt.IsManagedHandle():
		return true
	case vt.IsArray():
		return c.holdsHandles(vt.Element())
	case vt.Pointer || !c.table.IsStruct(vt.Base):
		return false
	}
	for _, comp := range c.components(vt.Base) {
		if c.holdsHandles(comp.Vartype) {
			return true
		}
	}
	return false
}

// releaseClobbersAX reports whether releasing the handles in a value of vt
// uses AX as a loop counter.
func (c *Compiler) releaseClobbersAX(vt symbols.Vartype) bool {
	switch {
	case vt.IsManagedHandle():
		return false
	case vt.IsArray():
		elem := vt.Element()
		if elem.IsManagedHandle() {
			return vt.Array >= releaseLoopThreshold
		}
		return c.holdsHandles(elem)
	}
	for _, comp := range c.components(vt.Base) {
		if c.holdsHandles(comp.Vartype) && c.releaseClobbersAX(comp.Vartype) {
			return true
		}
	}
	return false
}

// freeLocals releases the handles held by vars. It clobbers MAR and may
// clobber AX.
func (c *Compiler) freeLocals(vars []*symbols.Variable) {
	for _, v := range vars {
		c.writeCmd(op.LoadSPOffs, int32(c.offset-v.Offset))
		c.release(v.Vartype)
	}
}

// freeLocalsKeepAX is freeLocals for when AX holds a result.
func (c *Compiler) freeLocalsKeepAX(vars []*symbols.Variable) {
	clobbers := false
	for _, v := range vars {
		clobbers = clobbers || c.releaseClobbersAX(v.Vartype)
	}
	if clobbers {
		c.pushReg(ax)
	}
	c.freeLocals(vars)
	if clobbers {
		c.popReg(ax)
	}
}

// freeLocalsKeepHandle is freeLocals for when AX holds a managed handle
// that may point into one of the locals. The handle is parked in a pointer
// cell of its own so that the object survives, and released at the end
// without deallocating it.
func (c *Compiler) freeLocalsKeepHandle(vars []*symbols.Variable) {
	if len(vars) == 0 {
		return
	}
	c.pushReg(ax)
	c.writeCmd(op.LoadSPOffs, 4)
	c.writeCmd(op.MemInitPtr, ax)
	c.freeLocals(vars)
	c.writeCmd(op.LoadSPOffs, 4)
	c.writeCmd(op.MemReadPtr, ax)
	c.writeCmd(op.MemZeroPtrND)
	c.popReg(bx)
}

// release frees the handles in the value of type vt that MAR points to.
func (c *Compiler) release(vt symbols.Vartype) {
	switch {
	case vt.IsManagedHandle():
		c.writeCmd(op.MemZeroPtr)
	case vt.IsArray():
		c.releaseArray(vt)
	case c.table.IsStruct(vt.Base):
		c.releaseStruct(vt.Base)
	}
}

func (c *Compiler) releaseArray(vt symbols.Vartype) {
	n := vt.Array
	elem := vt.Element()
	if elem.IsManagedHandle() {
		if n < releaseLoopThreshold {
			c.writeCmd(op.MemZeroPtr)
			for i := 1; i < n; i++ {
				c.writeCmd(op.Add, mar, 4)
				c.writeCmd(op.MemZeroPtr)
			}
			return
		}
		c.writeCmd(op.LitToReg, ax, int32(n))
		loop := c.mod.Loc()
		c.writeCmd(op.MemZeroPtr)
		c.writeCmd(op.Add, mar, 4)
		c.writeCmd(op.Sub, ax, 1)
		writeJumpBack(c.mod, op.Jnz, loop)
		return
	}
	if !c.table.IsStruct(elem.Base) || !c.holdsHandles(elem) {
		return
	}
	c.writeCmd(op.LitToReg, ax, int32(n))
	loop := c.mod.Loc()
	c.pushReg(mar)
	c.pushReg(ax)
	c.releaseStruct(elem.Base)
	c.popReg(ax)
	c.popReg(mar)
	c.writeCmd(op.Add, mar, int32(c.table.Size(elem)))
	c.writeCmd(op.Sub, ax, 1)
	writeJumpBack(c.mod, op.Jnz, loop)
}

func (c *Compiler) releaseStruct(strct symbols.ID) {
	var comps []*symbols.Component
	for _, comp := range c.components(strct) {
		if c.holdsHandles(comp.Vartype) {
			comps = append(comps, comp)
		}
	}

	at := 0
	for i, comp := range comps {
		if diff := comp.Offset - at; diff != 0 {
			c.writeCmd(op.Add, mar, int32(diff))
		}
		at = comp.Offset
		if comp.Vartype.IsManagedHandle() {
			c.writeCmd(op.MemZeroPtr)
			continue
		}
		last := i == len(comps)-1
		if !last {
			c.pushReg(mar)
		}
		c.release(comp.Vartype)
		if !last {
			c.popReg(mar)
		}
	}
}
