package compiler

import (
	"github.com/agsc-lang/agsc/bytecode"
	"github.com/agsc-lang/agsc/op"
	"github.com/agsc-lang/agsc/symbols"
)

type frameKind int

const (
	frameNone frameKind = iota
	frameParameters
	frameFunction
	frameBraces
	frameIf
	frameElse
	frameWhile
	frameDo
	frameFor
	frameSwitch
)

func (k frameKind) String() string {
	switch k {
	case frameNone:
		return "none"
	case frameParameters:
		return "parameters"
	case frameFunction:
		return "function"
	case frameBraces:
		return "braces"
	case frameIf:
		return "if"
	case frameElse:
		return "else"
	case frameWhile:
		return "while"
	case frameDo:
		return "do"
	case frameFor:
		return "for"
	case frameSwitch:
		return "switch"
	}
	return "unknown"
}

// Fixed nesting levels.
const (
	levelGlobal     = 0
	levelParameters = 1
	levelFunction   = 2
)

type stashed struct {
	id    symbols.ID
	entry symbols.Entry
}

// frame is one open construct.
type frame struct {
	kind frameKind

	// start is where a loop jumps back to, -1 if none.
	start int
	// jumpOuts are operand cells of jumps to the end of the construct.
	jumpOuts []int
	// continues are operand cells of 'continue' jumps in a do loop; they
	// land on the condition.
	continues []int
	// chunks hold yanked code: the iterate clause of a for loop, or the
	// case expressions of a switch in source order.
	chunks []*bytecode.Chunk

	// switch bookkeeping
	switchType    symbols.Vartype
	switchTable   int // operand cell of the jump to the jump table
	switchDefault int // location of the default label, -1 if none
	caseStarts    []int

	// locals declared at this level with the definitions they hide
	stash []stashed
}

func (f *frame) addJumpOut(loc int) { f.jumpOuts = append(f.jumpOuts, loc) }

func (f *frame) patchJumpOuts(mod *bytecode.Module, dest int) {
	for _, loc := range f.jumpOuts {
		mod.PatchJump(loc, dest)
	}
	f.jumpOuts = nil
}

func (f *frame) isLoop() bool { return f.kind == frameWhile || f.kind == frameDo }

// nesting is the stack of open constructs. Level 0 is a sentinel that
// stands for the global level.
type nesting struct {
	frames []*frame
}

func newNesting() *nesting {
	n := &nesting{}
	n.push(frameNone)
	return n
}

func (n *nesting) push(kind frameKind) *frame {
	f := &frame{kind: kind, start: -1, switchDefault: -1}
	n.frames = append(n.frames, f)
	return f
}

func (n *nesting) pop() {
	if len(n.frames) > 1 {
		n.frames = n.frames[:len(n.frames)-1]
	}
}

func (n *nesting) level() int { return len(n.frames) - 1 }

func (n *nesting) top() *frame { return n.frames[len(n.frames)-1] }

func (n *nesting) at(level int) *frame { return n.frames[level] }

// writeJumpBack emits a jump instruction that lands on dest.
func writeJumpBack(mod *bytecode.Module, code op.Code, dest int) {
	mod.WriteCmd(code, 0)
	mod.PatchJump(mod.Loc()-1, dest)
}

// writeJumpForward emits a jump whose destination is patched later and
// returns its operand cell.
func writeJumpForward(mod *bytecode.Module, code op.Code) int {
	mod.WriteCmd(code, 0)
	return mod.Loc() - 1
}
