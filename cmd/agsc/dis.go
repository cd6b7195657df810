package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/agsc-lang/agsc/bytecode"
	"github.com/agsc-lang/agsc/dis"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newDisCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dis file",
		Short: "Disassemble a module or script",
		Long: `Print the instructions of a module. Files with the .agsc extension are
read as compiled modules; anything else is compiled first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := a.loadModule(cmd, args[0])
			if err != nil {
				return err
			}
			instructions, err := dis.Disassemble(mod)
			if err != nil {
				return err
			}
			if name, _ := cmd.Flags().GetString("func"); name != "" {
				if instructions, err = functionCode(mod, instructions, name); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			saved := color.NoColor
			color.NoColor = !a.useColor(out)
			defer func() { color.NoColor = saved }()
			dis.Print(instructions, out)
			return nil
		},
	}
	cmd.Flags().String("func", "", "only disassemble this function")
	return cmd
}

// loadModule reads a compiled module, or compiles a script.
func (a *app) loadModule(cmd *cobra.Command, path string) (*bytecode.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) == ".agsc" {
		return bytecode.Unmarshal(data)
	}
	p, err := a.project()
	if err != nil {
		return nil, err
	}
	u := unit{source: string(data), section: a.sectionName(path)}
	return a.compileUnit(u, a.options(p), cmd.ErrOrStderr())
}

// functionCode returns the instructions of the named function, which run
// up to the start of the next function.
func functionCode(mod *bytecode.Module, instructions []dis.Instruction, name string) ([]dis.Instruction, error) {
	start := -1
	for _, f := range mod.Functions {
		if f.Name == name {
			start = int(f.Offset)
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("function %q not found", name)
	}
	var result []dis.Instruction
	for _, instr := range instructions {
		if instr.Offset < start {
			continue
		}
		if instr.Offset > start && instr.Function != "" {
			break
		}
		result = append(result, instr)
	}
	return result, nil
}
