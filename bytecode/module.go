package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/agsc-lang/agsc/op"
)

// FixupKind tells which base a fixed up cell is relative to.
type FixupKind uint8

const (
	FixupGlobalData FixupKind = 1 // code cell holds an offset into global data
	FixupCode       FixupKind = 2 // code cell holds a code offset
	FixupString     FixupKind = 3 // code cell holds an offset into the string pool
	FixupImport     FixupKind = 4 // code cell holds an import index
	FixupDataData   FixupKind = 5 // global data cell holds an offset into global data
	FixupStack      FixupKind = 6 // code cell holds a stack offset
)

func (k FixupKind) String() string {
	switch k {
	case FixupGlobalData:
		return "global"
	case FixupCode:
		return "code"
	case FixupString:
		return "string"
	case FixupImport:
		return "import"
	case FixupDataData:
		return "datadata"
	case FixupStack:
		return "stack"
	}
	return fmt.Sprintf("fixup(%d)", k)
}

// Fixup marks a cell that must be relocated when the module is loaded.
type Fixup struct {
	Loc  int32     `cbor:"1,keyasint" json:"loc"`
	Kind FixupKind `cbor:"2,keyasint" json:"kind"`
}

// ExportKind distinguishes exported functions from exported data.
type ExportKind uint8

const (
	ExportFunction ExportKind = 1
	ExportData     ExportKind = 2
)

// MaxExportOffset is the first offset that no longer fits into an export
// address.
const MaxExportOffset = 0x00ffffff

// Export is an entry of the export table. Address packs the offset into the
// low 24 bits and the kind into the high byte.
type Export struct {
	Name    string `cbor:"1,keyasint" json:"name"`
	Address int32  `cbor:"2,keyasint" json:"address"`
}

// Kind returns the kind packed into the export address.
func (e Export) Kind() ExportKind { return ExportKind(uint32(e.Address) >> 24) }

// Offset returns the code or data offset packed into the export address.
func (e Export) Offset() int32 { return e.Address & MaxExportOffset }

// Section records where the code of a virtual input file begins.
type Section struct {
	Name   string `cbor:"1,keyasint" json:"name"`
	Offset int32  `cbor:"2,keyasint" json:"offset"`
}

// Function records a function with a body, for exporting.
type Function struct {
	Name      string `cbor:"1,keyasint" json:"name"`
	Offset    int32  `cbor:"2,keyasint" json:"offset"`
	NumParams int    `cbor:"3,keyasint" json:"num_params"`
}

// Warning is a non-fatal diagnostic raised while compiling.
type Warning struct {
	Section string `cbor:"1,keyasint" json:"section"`
	Line    int    `cbor:"2,keyasint" json:"line"`
	Message string `cbor:"3,keyasint" json:"message"`
}

func (w Warning) String() string {
	if w.Section != "" {
		return fmt.Sprintf("%s:%d: warning: %s", w.Section, w.Line, w.Message)
	}
	return fmt.Sprintf("%d: warning: %s", w.Line, w.Message)
}

// Module is a compiled compilation unit.
type Module struct {
	GlobalData []byte     `cbor:"1,keyasint" json:"global_data"`
	Code       []int32    `cbor:"2,keyasint" json:"code"`
	Strings    []byte     `cbor:"3,keyasint" json:"strings"`
	Fixups     []Fixup    `cbor:"4,keyasint" json:"fixups"`
	Imports    []string   `cbor:"5,keyasint" json:"imports"`
	Exports    []Export   `cbor:"6,keyasint" json:"exports"`
	Sections   []Section  `cbor:"7,keyasint" json:"sections"`
	Functions  []Function `cbor:"8,keyasint" json:"functions"`
	Warnings   []Warning  `cbor:"9,keyasint,omitempty" json:"warnings,omitempty"`
	AutoImport bool       `cbor:"10,keyasint,omitempty" json:"auto_import,omitempty"`

	lineNumbers bool
	line        int
	lastLine    int
	nextChunkID int
	lastOp      op.Code
}

// NewModule returns an empty module. When lineNumbers is set, a LINENUM
// instruction is emitted before the first instruction of every new source
// line.
func NewModule(lineNumbers bool) *Module {
	return &Module{lineNumbers: lineNumbers, lastLine: -1}
}

// SetLine sets the source line of the instructions emitted next.
func (m *Module) SetLine(line int) { m.line = line }

// ForceLine makes the next instruction emit a line number even if the
// line has not changed.
func (m *Module) ForceLine() { m.lastLine = -1 }

// Loc returns the offset of the next code cell.
func (m *Module) Loc() int { return len(m.Code) }

// WriteCode appends a raw cell.
func (m *Module) WriteCode(v int32) { m.Code = append(m.Code, v) }

// WriteCmd appends an instruction, preceded by a line number instruction if
// the source line has changed.
func (m *Module) WriteCmd(code op.Code, args ...int32) {
	if m.lineNumbers && m.line > 0 && m.line != m.lastLine && code != op.LineNum {
		m.lastLine = m.line
		m.Code = append(m.Code, int32(op.LineNum), int32(m.line))
	}
	m.Code = append(m.Code, int32(code))
	m.Code = append(m.Code, args...)
	m.lastOp = code
}

// LastOp returns the opcode of the most recently written instruction, or
// Invalid if code has been detached or inserted since.
func (m *Module) LastOp() op.Code { return m.lastOp }

// AddFixup records a fixup at the given code location.
func (m *Module) AddFixup(loc int, kind FixupKind) {
	m.Fixups = append(m.Fixups, Fixup{Loc: int32(loc), Kind: kind})
}

// FixupPrevious records a fixup for the most recently written cell.
func (m *Module) FixupPrevious(kind FixupKind) {
	m.AddFixup(len(m.Code)-1, kind)
}

// Patch overwrites the cell at loc.
func (m *Module) Patch(loc int, v int32) { m.Code[loc] = v }

// RelativeJump returns the distance to store in the operand cell at loc so
// that the jump lands on dest.
func RelativeJump(dest, loc int) int32 { return int32(dest - loc - 1) }

// PatchJump makes the jump whose operand cell is at loc land on dest.
func (m *Module) PatchJump(loc, dest int) {
	m.Code[loc] = RelativeJump(dest, loc)
}

// AddString stores s NUL terminated in the string pool and returns its
// offset.
func (m *Module) AddString(s string) int {
	off := len(m.Strings)
	m.Strings = append(m.Strings, s...)
	m.Strings = append(m.Strings, 0)
	return off
}

// StringAt returns the NUL terminated string at off in the pool.
func (m *Module) StringAt(off int) (string, bool) {
	if off < 0 || off >= len(m.Strings) {
		return "", false
	}
	for end := off; end < len(m.Strings); end++ {
		if m.Strings[end] == 0 {
			return string(m.Strings[off:end]), true
		}
	}
	return "", false
}

// AddGlobal reserves size bytes of global data and returns their offset.
// If init is non-nil it is copied into the new space.
func (m *Module) AddGlobal(size int, init []byte) int {
	off := len(m.GlobalData)
	m.GlobalData = append(m.GlobalData, make([]byte, size)...)
	copy(m.GlobalData[off:], init)
	return off
}

// PutGlobal32 stores v little endian at the global data offset off.
func (m *Module) PutGlobal32(off int, v int32) {
	binary.LittleEndian.PutUint32(m.GlobalData[off:], uint32(v))
}

// AddImport appends name to the import table and returns its index.
func (m *Module) AddImport(name string) int {
	m.Imports = append(m.Imports, name)
	return len(m.Imports) - 1
}

// AddExport adds an export and returns its index. Function export names
// carry the number of arguments. Exporting the same name twice returns the
// existing index.
func (m *Module) AddExport(name string, kind ExportKind, offset int, numArgs int) (int, error) {
	if offset >= MaxExportOffset {
		return -1, fmt.Errorf("export offset too high; script data size too large?")
	}
	if kind == ExportFunction {
		name = fmt.Sprintf("%s$%d", name, numArgs)
	}
	for i, e := range m.Exports {
		if e.Name == name {
			return i, nil
		}
	}
	m.Exports = append(m.Exports, Export{
		Name:    name,
		Address: int32(offset) | int32(kind)<<24,
	})
	return len(m.Exports) - 1, nil
}

// AddFunction records a function with a body starting at offset.
func (m *Module) AddFunction(name string, offset int, numParams int) {
	m.Functions = append(m.Functions, Function{Name: name, Offset: int32(offset), NumParams: numParams})
}

// StartSection records that the code of the named section starts at the
// current location. A section that has not emitted any code is replaced.
func (m *Module) StartSection(name string) {
	loc := int32(len(m.Code))
	if n := len(m.Sections); n > 0 && m.Sections[n-1].Offset == loc {
		m.Sections[n-1].Name = name
		return
	}
	m.Sections = append(m.Sections, Section{Name: name, Offset: loc})
}

// Warn records a warning.
func (m *Module) Warn(section string, line int, format string, args ...any) {
	m.Warnings = append(m.Warnings, Warning{Section: section, Line: line, Message: fmt.Sprintf(format, args...)})
}

// Stats summarizes the size of a module.
type Stats struct {
	CodeCells      int
	GlobalDataSize int
	StringPoolSize int
	FixupCount     int
	ImportCount    int
	ExportCount    int
}

// Stats returns size statistics for the module.
func (m *Module) Stats() Stats {
	return Stats{
		CodeCells:      len(m.Code),
		GlobalDataSize: len(m.GlobalData),
		StringPoolSize: len(m.Strings),
		FixupCount:     len(m.Fixups),
		ImportCount:    len(m.Imports),
		ExportCount:    len(m.Exports),
	}
}
