package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/agsc-lang/agsc/compiler"
	"github.com/agsc-lang/agsc/config"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var red = color.New(color.FgRed).SprintFunc()

func fatal(msg interface{}) {
	var s string
	switch msg := msg.(type) {
	case string:
		s = msg
	case error:
		s = msg.Error()
	default:
		s = fmt.Sprintf("%v", msg)
	}
	fmt.Fprintf(os.Stderr, "%s\n", red(s))
	os.Exit(1)
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (a *app) useColor(w io.Writer) bool {
	return !a.v.GetBool("no-color") && isTerminal(w)
}

// project returns the project file found above the working directory, or
// nil.
func (a *app) project() (*config.Project, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.FindAndLoad(wd)
}

var optionKeys = []struct {
	key string
	get func(*compiler.Options) *bool
}{
	{"export-all", func(o *compiler.Options) *bool { return &o.ExportAll }},
	{"line-numbers", func(o *compiler.Options) *bool { return &o.LineNumbers }},
	{"left-to-right", func(o *compiler.Options) *bool { return &o.LeftToRight }},
	{"old-strings", func(o *compiler.Options) *bool { return &o.OldStrings }},
	{"no-import-override", func(o *compiler.Options) *bool { return &o.NoImportOverride }},
	{"show-warnings", func(o *compiler.Options) *bool { return &o.ShowWarnings }},
	{"auto-import", func(o *compiler.Options) *bool { return &o.AutoImport }},
}

// options merges the compiler options. Flags, environment variables and the
// global config file take precedence over the project file, which takes
// precedence over the defaults.
func (a *app) options(p *config.Project) compiler.Options {
	o := compiler.DefaultOptions()
	if p != nil {
		o = p.Options(o)
	}
	for _, k := range optionKeys {
		if a.v.IsSet(k.key) {
			*k.get(&o) = a.v.GetBool(k.key)
		}
	}
	return o
}

// sectionName returns the section name for diagnostics about path.
func (a *app) sectionName(path string) string {
	if s := a.v.GetString("section"); s != "" {
		return s
	}
	return filepath.Base(path)
}

// outputPath derives the module path from a source path.
func outputPath(source string) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + ".agsc"
}
