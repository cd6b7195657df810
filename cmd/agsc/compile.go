package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/agsc-lang/agsc/bytecode"
	"github.com/agsc-lang/agsc/compiler"
	"github.com/agsc-lang/agsc/config"
	"github.com/agsc-lang/agsc/errors"
	"github.com/agsc-lang/agsc/internal/scanner"
	"github.com/hashicorp/go-multierror"
	"github.com/hokaccha/go-prettyjson"
	"github.com/spf13/cobra"
)

func newCompileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [files...]",
		Short: "Compile script files into modules",
		Long: `Compile each script file into a module written next to it with the
.agsc extension. Without arguments the sources of the project file
(agsc.toml) are compiled.

When an output path is given, all inputs are joined into a single
compilation unit, one section per file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.compileCmd(cmd, args)
		},
	}
	cmd.Flags().StringP("output", "o", "", "write a single module to this path")
	cmd.Flags().Bool("json", false, "print the module as JSON instead of writing it")
	return cmd
}

// unit is one compilation unit: the source, the section name of its first
// line and the file the module goes to.
type unit struct {
	source  string
	section string
	output  string
}

func (a *app) compileCmd(cmd *cobra.Command, args []string) error {
	p, err := a.project()
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	asJSON, _ := cmd.Flags().GetBool("json")

	paths := args
	if len(paths) == 0 {
		if p == nil {
			return fmt.Errorf("no input files and no %s found", config.FileName)
		}
		if paths, err = p.SourcePaths(); err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("project %q has no sources", p.Meta.Name)
		}
		if output == "" {
			output = p.OutputPath()
		}
	}

	units, err := a.units(paths, output)
	if err != nil {
		return err
	}
	opts := a.options(p)
	a.log.Debug().Str("options", opts.String()).Int("units", len(units)).Msg("compiling")

	var result error
	for _, u := range units {
		mod, err := a.compileUnit(u, opts, cmd.ErrOrStderr())
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if asJSON {
			if err := printJSON(cmd.OutOrStdout(), mod, a.useColor(cmd.OutOrStdout())); err != nil {
				return err
			}
			continue
		}
		if err := writeModule(u.output, mod); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		stats := mod.Stats()
		a.log.Info().
			Str("file", u.output).
			Int("code", stats.CodeCells).
			Int("globals", stats.GlobalDataSize).
			Int("imports", stats.ImportCount).
			Int("exports", stats.ExportCount).
			Msg("module written")
	}
	if merr, ok := result.(*multierror.Error); ok && merr.Len() == 1 {
		return merr.Errors[0]
	}
	return result
}

// units reads the inputs. With an output path all inputs form one unit;
// otherwise every input is its own unit.
func (a *app) units(paths []string, output string) ([]unit, error) {
	sources := make([]string, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		sources[i] = string(data)
	}
	if output == "" {
		units := make([]unit, len(paths))
		for i, path := range paths {
			units[i] = unit{source: sources[i], section: a.sectionName(path), output: outputPath(path)}
		}
		return units, nil
	}
	if len(paths) == 1 {
		return []unit{{source: sources[0], section: a.sectionName(paths[0]), output: output}}, nil
	}
	var b strings.Builder
	for i, path := range paths {
		if i > 0 {
			fmt.Fprintf(&b, "\n\"%s%s\"\n", scanner.NewSectionPrefix, filepath.Base(path))
		}
		b.WriteString(sources[i])
	}
	return []unit{{source: b.String(), section: a.sectionName(paths[0]), output: output}}, nil
}

// compileUnit compiles u, printing diagnostics to errOut.
func (a *app) compileUnit(u unit, opts compiler.Options, errOut io.Writer) (*bytecode.Module, error) {
	log := a.log.With().Str("section", u.section).Logger()
	mod, err := compiler.Compile(u.source, &compiler.Config{
		Options:     opts,
		Logger:      &log,
		SectionName: u.section,
	})
	if err != nil {
		if ce, ok := errors.AsCompileError(err); ok {
			if ce.SourceLine == "" {
				ce.SourceLine = sourceLine(u.source, u.section, ce.Section, ce.Line)
			}
			fmt.Fprint(errOut, errors.NewFormatter(a.useColor(errOut)).Format(ce.ToFormatted()))
			return nil, fmt.Errorf("%s: compilation failed", u.section)
		}
		return nil, err
	}
	for _, w := range mod.Warnings {
		log.Warn().Str("section", w.Section).Int("line", w.Line).Msg(w.Message)
	}
	return mod, nil
}

// sourceLine returns the text of line in the given section of src, where
// first names the section before any section marker.
func sourceLine(src, first, section string, line int) string {
	if line <= 0 {
		return ""
	}
	current, n := first, 0
	sc := bufio.NewScanner(strings.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), len(src)+1)
	for sc.Scan() {
		text := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "\""+scanner.NewSectionPrefix) && strings.HasSuffix(trimmed, "\"") {
			current = strings.TrimSuffix(strings.TrimPrefix(trimmed, "\""+scanner.NewSectionPrefix), "\"")
			n = 0
			continue
		}
		n++
		if current == section && n == line {
			return strings.TrimSpace(text)
		}
	}
	return ""
}

func printJSON(w io.Writer, mod *bytecode.Module, useColor bool) error {
	f := prettyjson.NewFormatter()
	f.DisabledColor = !useColor
	data, err := f.Marshal(mod)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeModule(path string, mod *bytecode.Module) error {
	data, err := bytecode.Marshal(mod)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
