// Package dis supports analysis of compiled modules by disassembling them.
// It works with the opcodes defined in the op package and uses the fixups,
// imports and string pool of the module to annotate operands.
package dis

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/agsc-lang/agsc/bytecode"
	"github.com/agsc-lang/agsc/internal/table"
	"github.com/agsc-lang/agsc/op"
	"github.com/fatih/color"
)

// Instruction represents a single instruction and its operands.
type Instruction struct {
	Offset     int
	Name       string
	Opcode     op.Code
	Operands   []int32
	Kinds      []op.OperandKind
	Annotation string
	// Function is set on the first instruction of a function body.
	Function string
}

// Disassemble returns a parsed representation of the code of mod.
func Disassemble(mod *bytecode.Module) ([]Instruction, error) {
	fixups := make(map[int]bytecode.FixupKind, len(mod.Fixups))
	for _, f := range mod.Fixups {
		if f.Kind != bytecode.FixupDataData {
			fixups[int(f.Loc)] = f.Kind
		}
	}
	functions := make(map[int]string, len(mod.Functions))
	for _, f := range mod.Functions {
		functions[int(f.Offset)] = f.Name
	}

	var instructions []Instruction
	for offset := 0; offset < len(mod.Code); {
		code := op.Code(mod.Code[offset])
		info := op.GetInfo(code)
		if info.Name == "" {
			return nil, fmt.Errorf("invalid opcode %d at offset %d", code, offset)
		}
		end := offset + 1 + info.OperandCount
		if end > len(mod.Code) {
			return nil, fmt.Errorf("instruction '%s' at offset %d is truncated", info.Name, offset)
		}
		instr := Instruction{
			Offset:   offset,
			Name:     info.Name,
			Opcode:   code,
			Operands: mod.Code[offset+1 : end],
			Kinds:    info.Operands,
			Function: functions[offset],
		}
		var notes []string
		for i, v := range instr.Operands {
			loc := offset + 1 + i
			if kind, ok := fixups[loc]; ok {
				notes = append(notes, annotateFixup(mod, kind, v, functions))
			} else if info.Operands[i] == op.Offset {
				notes = append(notes, fmt.Sprintf("-> %d", loc+1+int(v)))
			}
		}
		instr.Annotation = strings.Join(notes, " ")
		instructions = append(instructions, instr)
		offset = end
	}
	return instructions, nil
}

func annotateFixup(mod *bytecode.Module, kind bytecode.FixupKind, v int32, functions map[int]string) string {
	switch kind {
	case bytecode.FixupString:
		if s, ok := mod.StringAt(int(v)); ok {
			if len(s) > 60 {
				s = s[:57] + "..."
			}
			return strconv.Quote(s)
		}
	case bytecode.FixupImport:
		if v >= 0 && int(v) < len(mod.Imports) {
			return "import " + mod.Imports[v]
		}
	case bytecode.FixupCode:
		if name, ok := functions[int(v)]; ok {
			return "func " + name
		}
	case bytecode.FixupGlobalData:
		return fmt.Sprintf("global+%d", v)
	}
	return kind.String()
}

// FormatOperands renders the operands of an instruction, naming registers.
func FormatOperands(instr Instruction) string {
	parts := make([]string, len(instr.Operands))
	for i, v := range instr.Operands {
		if i < len(instr.Kinds) && instr.Kinds[i] == op.Reg {
			parts[i] = op.Register(v).String()
		} else {
			parts[i] = strconv.Itoa(int(v))
		}
	}
	return strings.Join(parts, ", ")
}

var (
	bold    = color.New(color.Bold).SprintFunc()
	magenta = color.New(color.FgMagenta).SprintFunc()
	green   = color.New(color.FgGreen).SprintFunc()
	cyan    = color.New(color.FgHiCyan).SprintFunc()
)

// Print a string representation of the given instructions to the given
// writer.
func Print(instructions []Instruction, writer io.Writer) {
	var lines [][]string
	for _, instr := range instructions {
		info := instr.Annotation
		switch {
		case strings.HasPrefix(info, "\""):
			info = green(info)
		case info != "":
			info = cyan(info)
		}
		if instr.Function != "" {
			label := magenta(instr.Function + ":")
			if info != "" {
				info = label + " " + info
			} else {
				info = label
			}
		}
		lines = append(lines, []string{
			strconv.Itoa(instr.Offset),
			bold(instr.Name),
			FormatOperands(instr),
			info,
		})
	}

	table.NewTable(writer).
		WithHeader([]string{"OFFSET", "OPCODE", "OPERANDS", "INFO"}).
		WithColumnAlignment([]table.Alignment{
			table.AlignRight,
			table.AlignLeft,
			table.AlignLeft,
			table.AlignLeft,
		}).
		WithHeaderAlignment([]table.Alignment{
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
		}).
		WithRows(lines).
		Render()
}
