package bytecode

import "github.com/agsc-lang/agsc/op"

// Chunk is code that has been detached from a module. Fixup locations are
// relative to the start of the chunk.
type Chunk struct {
	ID     int
	Line   int
	Code   []int32
	Fixups []Fixup
}

// Len returns the number of code cells in the chunk.
func (c *Chunk) Len() int { return len(c.Code) }

// Yank detaches the code from codeStart and the fixups from fixupStart to
// the end of the module into a new chunk. line is the source line the code
// was generated for.
func (m *Module) Yank(codeStart, fixupStart, line int) *Chunk {
	m.nextChunkID++
	m.lastOp = op.Invalid
	c := &Chunk{ID: m.nextChunkID, Line: line}
	if codeStart < len(m.Code) {
		c.Code = append([]int32(nil), m.Code[codeStart:]...)
		m.Code = m.Code[:codeStart]
	}
	if fixupStart < len(m.Fixups) {
		for _, f := range m.Fixups[fixupStart:] {
			c.Fixups = append(c.Fixups, Fixup{Loc: f.Loc - int32(codeStart), Kind: f.Kind})
		}
		m.Fixups = m.Fixups[:fixupStart]
	}
	return c
}

// WriteChunk appends the chunk's code and fixups and returns the location
// the chunk starts at. The next instruction re-emits its line number.
func (m *Module) WriteChunk(c *Chunk) int {
	if m.lineNumbers && c.Line > 0 && len(c.Code) > 0 && c.Code[0] != int32(op.LineNum) {
		m.Code = append(m.Code, int32(op.LineNum), int32(c.Line))
	}
	start := len(m.Code)
	m.Code = append(m.Code, c.Code...)
	for _, f := range c.Fixups {
		m.Fixups = append(m.Fixups, Fixup{Loc: f.Loc + int32(start), Kind: f.Kind})
	}
	m.ForceLine()
	m.lastOp = op.Invalid
	return start
}

// NumFixups returns the number of fixups recorded so far.
func (m *Module) NumFixups() int { return len(m.Fixups) }
