// Package compiler turns preprocessed script source into a bytecode module.
//
// # Two-Pass Compilation Strategy
//
// The token stream is parsed twice. Functions may be called before their
// body appears, and the first pass exists to make that possible:
//
//	int IsEven(int n) { if (n == 0) return 1; return IsOdd(n - 1); }
//	int IsOdd(int n)  { if (n == 0) return 0; return IsEven(n - 1); }
//
// Pass 1: pre-analysis
//
// Walks the top-level declarations, records every function header and
// whether a body exists for it, and skips function bodies entirely. No code
// is emitted. Global variables are noted so that an import declaration can
// be told apart from a local definition of the same name.
//
// Pass 2: main
//
// The symbol table is rebuilt from a snapshot that keeps only the function
// headers and literals of the first pass. Then every declaration and
// statement is compiled into the module. Calls to functions whose address
// is not known yet are recorded and patched once the body is emitted.
//
// # Code Relocation
//
// Some code is generated before the position it must run at: the iterate
// clause of a for loop and the case expressions of a switch. That code is
// yanked from the module into a chunk that belongs to the open construct,
// and written back once the construct closes. Forward call sites inside a
// chunk move along with it.
//
// # Stack Layout
//
// The stack grows upward. The compiler tracks the distance between the top
// of the stack and the start of the local variable block; a local is
// addressed as LOADSPOFFS (offset - local's offset). Parameters lie below
// the return address and therefore have negative offsets.
package compiler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/agsc-lang/agsc/bytecode"
	"github.com/agsc-lang/agsc/errors"
	"github.com/agsc-lang/agsc/internal/token"
	"github.com/agsc-lang/agsc/internal/tokenizer"
	"github.com/agsc-lang/agsc/op"
	"github.com/agsc-lang/agsc/symbols"
)

// Register operands.
const (
	sp  = int32(op.SP)
	mar = int32(op.MAR)
	ax  = int32(op.AX)
	bx  = int32(op.BX)
	cx  = int32(op.CX)
	opr = int32(op.OP)
	dx  = int32(op.DX)
)

const (
	// MaxParams is the maximum number of parameters of a function.
	MaxParams = 15

	// placeholder is written into jump and call operands that are patched
	// later.
	placeholder = -77
)

type pass int

const (
	passPreAnalyze pass = iota
	passMain
)

func (p pass) String() string {
	if p == passPreAnalyze {
		return "pre-analysis"
	}
	return "main"
}

// Compiler compiles one compilation unit.
type Compiler struct {
	opts        Options
	log         zerolog.Logger
	sectionName string

	table *symbols.Table
	// out is the module being built; mod is where the current pass emits.
	out  *bytecode.Module
	mod  *bytecode.Module
	src  *token.List
	pass pass

	nest        *nesting
	localCalls  *callpoints
	importCalls *callpoints
	imports     *importCache

	// Global variables met in the first pass: true for a definition, false
	// for an import declaration.
	givm map[symbols.ID]bool

	// Mangled names declared as struct members, including extenders.
	members map[symbols.ID]bool
	exports []pendingExport

	// Distance from the start of the local variable block to the top of
	// the stack.
	offset int

	// The function whose body is open, and its struct for member functions.
	funcName   symbols.ID
	funcStruct symbols.ID
	// Type of 'this', None outside of non-static member functions.
	thisType symbols.ID

	// What the value in AX is.
	axType  symbols.Vartype
	axScope symbols.Scope

	section      string
	sectionValid bool
}

// Compile compiles source into a module. Pass nil for cfg to use the
// default options.
func Compile(source string, cfg *Config) (*bytecode.Module, error) {
	return New(cfg).Compile(source)
}

// New creates a compiler. Pass nil for cfg to use the default options.
func New(cfg *Config) *Compiler {
	c := &Compiler{opts: DefaultOptions(), log: zerolog.Nop()}
	if cfg != nil {
		c.opts = cfg.Options
		c.sectionName = cfg.SectionName
		if cfg.Logger != nil {
			c.log = *cfg.Logger
		}
	}
	return c
}

// Compile compiles source. A compiler can be reused for several units;
// nothing is shared between them.
func (c *Compiler) Compile(source string) (*bytecode.Module, error) {
	table := symbols.New()
	out := bytecode.NewModule(c.opts.LineNumbers)
	out.AutoImport = c.opts.AutoImport

	stream, err := tokenizer.Tokenize(source, table, out)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Int("tokens", stream.Len()).Int("symbols", table.Len()).Msg("tokenized")

	c.out = out
	c.givm = map[symbols.ID]bool{}

	c.table = table
	c.setModule(bytecode.NewModule(false))
	if err := c.runPass(passPreAnalyze, stream); err != nil {
		return nil, err
	}

	c.table = table.Snapshot()
	c.setModule(out)
	if err := c.runPass(passMain, stream); err != nil {
		return nil, err
	}
	if err := c.finish(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Compiler) setModule(mod *bytecode.Module) {
	c.mod = mod
	c.localCalls = newCallpoints("local", mod, c.log)
	c.importCalls = newCallpoints("import", mod, c.log)
	c.imports = newImportCache(mod)
}

func (c *Compiler) runPass(p pass, stream *token.Stream) error {
	c.pass = p
	c.src = stream.List()
	c.nest = newNesting()
	c.offset = 0
	c.members = map[symbols.ID]bool{}
	c.exports = nil
	c.funcName, c.funcStruct, c.thisType = symbols.None, symbols.None, symbols.None
	c.sectionValid = false

	c.log.Debug().Stringer("pass", p).Msg("pass started")
	if err := c.parseInput(); err != nil {
		return err
	}
	c.log.Debug().Stringer("pass", p).Int("code", c.mod.Loc()).Msg("pass finished")
	return nil
}

func (c *Compiler) parseInput() error {
	for !c.src.AtEnd() {
		pos := c.src.Cursor()
		c.handleSectionChange(pos)
		c.mod.SetLine(c.src.LineAt(pos))

		q, err := c.parseQualifiers()
		if err != nil {
			return err
		}
		leading := c.src.GetNext()

		switch {
		case leading == symbols.Enum:
			if err := c.checkQualifiers(q, c.funcName != symbols.None, false); err != nil {
				return err
			}
			err = c.parseEnum(q)
		case leading == symbols.Export:
			if err := c.checkQualifiersEmpty(q); err != nil {
				return err
			}
			err = c.parseExport()
		case leading == symbols.Struct:
			if err := c.checkQualifiers(q, c.funcName != symbols.None, false); err != nil {
				return err
			}
			err = c.parseStruct(q)
		case c.table.IsType(leading) && c.src.PeekNext() != symbols.Dot:
			err = c.parseVartype(leading, q)
		default:
			if c.funcName == symbols.None {
				return c.errorf(errors.E2001, "'%s' is illegal outside a function", c.symName(leading))
			}
			if err := c.checkQualifiersEmpty(q); err != nil {
				return err
			}
			err = c.parseCommand(leading)
		}
		if err != nil {
			return err
		}
	}
	if c.pass == passMain && c.nest.level() != levelGlobal {
		return c.errorf(errors.E2005, "At end of input: body of function '%s' isn't closed", c.table.Name(c.funcName))
	}
	return nil
}

func (c *Compiler) handleSectionChange(pos int) {
	name := c.src.SectionAt(pos)
	if c.sectionValid && name == c.section {
		return
	}
	c.section, c.sectionValid = name, true
	if c.pass == passMain {
		c.mod.StartSection(c.sectionOrDefault(name))
	}
}

func (c *Compiler) sectionOrDefault(name string) string {
	if name == "" {
		return c.sectionName
	}
	return name
}

// finish runs the checks that need the whole unit and completes the
// import and export tables.
func (c *Compiler) finish() error {
	if ids := c.localCalls.Unresolved(); len(ids) > 0 {
		return c.errorAtDecl(errors.E3009, ids[0], "The called function '%s()' isn't defined with body nor imported", c.table.Name(ids[0]))
	}
	if ids := c.importCalls.Unresolved(); len(ids) > 0 {
		return c.errorAtDecl(errors.E3009, ids[0], "The called function '%s()' isn't defined with body nor imported", c.table.Name(ids[0]))
	}
	for id := symbols.ID(1); int(id) < c.table.Len(); id++ {
		ty := c.table.Type(id)
		if ty != nil && ty.Struct && ty.Undefined && c.table.Entry(id).Accessed {
			return c.errorAtDecl(errors.E3001, id, "Struct '%s' is used but never completely defined", c.table.Name(id))
		}
	}
	if err := c.addFunctionExports(); err != nil {
		return err
	}
	if c.opts.ExportAll {
		for _, f := range c.out.Functions {
			if _, err := c.out.AddExport(f.Name, bytecode.ExportFunction, int(f.Offset), f.NumParams); err != nil {
				return errors.Internalf("%s", err).At(c.sectionOrDefault(c.section), c.src.Line())
			}
		}
	}
	c.blankUnusedImports()
	return c.checkImportFixups()
}

func (c *Compiler) blankUnusedImports() {
	for id := symbols.ID(1); int(id) < c.table.Len(); id++ {
		e := c.table.Entry(id)
		if e.Accessed {
			continue
		}
		switch d := e.Data.(type) {
		case *symbols.Function:
			if d.IsImport() && d.Offset >= 0 {
				c.imports.Blank(d.Offset)
			}
		case *symbols.Variable:
			if d.Scope == symbols.ScopeImport {
				c.imports.Blank(d.Offset)
			}
		}
	}
}

func (c *Compiler) checkImportFixups() error {
	for i, f := range c.out.Fixups {
		if f.Kind != bytecode.FixupImport {
			continue
		}
		if f.Loc < 0 || int(f.Loc) >= len(c.out.Code) {
			return errors.Internalf("Fixup #%d references non-existent code offset #%d", i, f.Loc)
		}
		v := c.out.Code[f.Loc]
		if v < 0 || int(v) >= len(c.out.Imports) || c.out.Imports[v] == "" {
			return errors.Internalf("Fixup #%d references non-existent import #%d", i, v)
		}
	}
	return nil
}

// errorf returns an error located at the most recently read symbol.
func (c *Compiler) errorf(code errors.ErrorCode, format string, args ...any) error {
	return errors.Newf(code, format, args...).At(c.sectionOrDefault(c.src.Section()), c.src.Line())
}

func (c *Compiler) internalf(format string, args ...any) error {
	return errors.Internalf(format, args...).At(c.sectionOrDefault(c.src.Section()), c.src.Line())
}

// errorAtDecl returns an error located at the declaration of id.
func (c *Compiler) errorAtDecl(code errors.ErrorCode, id symbols.ID, format string, args ...any) error {
	e := c.table.Entry(id)
	err := errors.Newf(code, format, args...)
	if e != nil && e.Line > 0 {
		return err.At(c.sectionOrDefault(e.Section), e.Line)
	}
	return err.At(c.sectionOrDefault(c.src.Section()), c.src.Line())
}

// refMsg appends a pointer to an earlier declaration to msg.
func (c *Compiler) refMsg(msg, section string, line int) string {
	if line <= 0 || (section != "" && section[0] == '_') {
		return msg
	}
	switch {
	case section != c.src.Section():
		return fmt.Sprintf("%s. See %s line %d", msg, c.sectionOrDefault(section), line)
	case line != c.src.Line():
		return fmt.Sprintf("%s. See line %d", msg, line)
	}
	return msg + ". See the current line"
}

// errorRef is errorf with a pointer to the declaration of id.
func (c *Compiler) errorRef(code errors.ErrorCode, id symbols.ID, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if e := c.table.Entry(id); e != nil {
		msg = c.refMsg(msg, e.Section, e.Line)
	}
	return c.errorf(code, "%s", msg)
}

func (c *Compiler) redeclarationError(err error) error {
	if re, ok := err.(*symbols.RedeclarationError); ok {
		return c.errorf(errors.E3002, "%s", c.refMsg(re.Msg, re.Section, re.Line))
	}
	return err
}

func (c *Compiler) warnf(format string, args ...any) {
	if !c.opts.ShowWarnings || c.pass != passMain {
		return
	}
	c.mod.Warn(c.sectionOrDefault(c.src.Section()), c.src.Line(), format, args...)
}

// declare stores data for id, located at the most recently read symbol.
func (c *Compiler) declare(id symbols.ID, data symbols.Data) {
	c.table.Set(id, data, c.src.Section(), c.src.Line())
}

// expect reads the next symbol and fails unless it is want.
func (c *Compiler) expect(want symbols.ID) error {
	got := c.src.GetNext()
	if got == want {
		return nil
	}
	return c.errorf(errors.E2002, "Expected '%s', found '%s' instead", c.table.Name(want), c.symName(got))
}

// expectMsg is expect with a custom message.
func (c *Compiler) expectMsg(want symbols.ID, msg string) error {
	if got := c.src.GetNext(); got != want {
		return c.errorf(errors.E2002, "%s", msg)
	}
	return nil
}

// expectOneOf fails unless got is one of want.
func (c *Compiler) expectOneOf(got symbols.ID, want ...symbols.ID) error {
	for _, w := range want {
		if got == w {
			return nil
		}
	}
	msg := "Expected "
	for i, w := range want {
		switch {
		case i == 0:
		case i == len(want)-1:
			msg += " or "
		default:
			msg += ", "
		}
		msg += "'" + c.table.Name(w) + "'"
	}
	return c.errorf(errors.E2002, "%s, found '%s' instead", msg, c.symName(got))
}

func (c *Compiler) symName(id symbols.ID) string {
	if id == symbols.None {
		return "<end of input>"
	}
	return c.table.Name(id)
}

func (c *Compiler) writeCmd(code op.Code, args ...int32) { c.mod.WriteCmd(code, args...) }

func (c *Compiler) pushReg(reg int32) {
	c.writeCmd(op.PushReg, reg)
	c.offset += 4
}

func (c *Compiler) popReg(reg int32) {
	c.writeCmd(op.PopReg, reg)
	c.offset -= 4
}

func (c *Compiler) setAX(vt symbols.Vartype, scope symbols.Scope) {
	c.axType, c.axScope = vt, scope
}

// yankChunk moves the code from codeStart on into a chunk of f.
func (c *Compiler) yankChunk(f *frame, codeStart, fixupStart, line int) {
	length := c.mod.Loc() - codeStart
	ch := c.mod.Yank(codeStart, fixupStart, line)
	c.localCalls.OnYank(codeStart, length, ch.ID)
	c.importCalls.OnYank(codeStart, length, ch.ID)
	f.chunks = append(f.chunks, ch)
	c.log.Debug().Int("chunk", ch.ID).Int("start", codeStart).Int("len", length).Msg("chunk yanked")
}

// writeChunk appends a copy of ch to the code.
func (c *Compiler) writeChunk(ch *bytecode.Chunk) {
	start := c.mod.WriteChunk(ch)
	c.localCalls.OnWrite(start, ch.ID)
	c.importCalls.OnWrite(start, ch.ID)
	c.log.Debug().Int("chunk", ch.ID).Int("start", start).Msg("chunk written")
}
