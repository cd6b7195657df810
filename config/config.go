// Package config handles agsc.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/agsc-lang/agsc/compiler"
)

// FileName is the name of the project file.
const FileName = "agsc.toml"

// Project represents an agsc.toml project configuration.
type Project struct {
	Meta    Meta          `toml:"project"`
	Compile CompileConfig `toml:"compile"`

	// Dir is the directory containing the project file (set at load time).
	Dir string `toml:"-"`
}

// Meta contains project metadata.
type Meta struct {
	Name string `toml:"name"`
}

// CompileConfig selects the sources and the compiler options. Unset options
// keep their defaults.
type CompileConfig struct {
	Sources []string `toml:"sources"`
	Output  string   `toml:"output"`

	ExportAll        *bool `toml:"export_all"`
	LineNumbers      *bool `toml:"line_numbers"`
	LeftToRight      *bool `toml:"left_to_right"`
	OldStrings       *bool `toml:"old_strings"`
	NoImportOverride *bool `toml:"no_import_override"`
	ShowWarnings     *bool `toml:"show_warnings"`
	AutoImport       *bool `toml:"auto_import"`
}

// Load parses the agsc.toml file in dir.
func Load(dir string) (*Project, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	p.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return p, nil
}

// Parse decodes a project file. Unknown keys are an error so that typos in
// option names don't go unnoticed.
func Parse(data []byte) (*Project, error) {
	var p Project
	md, err := toml.Decode(string(data), &p)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	if len(p.Compile.Sources) == 0 {
		p.Compile.Sources = []string{"*.asc"}
	}
	return &p, nil
}

// FindAndLoad walks up from startDir to find an agsc.toml file, then loads
// and returns the project. Returns nil if no project file is found.
func FindAndLoad(startDir string) (*Project, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Options returns the compiler options for the project, starting from base.
func (p *Project) Options(base compiler.Options) compiler.Options {
	o := base
	c := p.Compile
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&o.ExportAll, c.ExportAll)
	set(&o.LineNumbers, c.LineNumbers)
	set(&o.LeftToRight, c.LeftToRight)
	set(&o.OldStrings, c.OldStrings)
	set(&o.NoImportOverride, c.NoImportOverride)
	set(&o.ShowWarnings, c.ShowWarnings)
	set(&o.AutoImport, c.AutoImport)
	return o
}

// SourcePaths expands the source patterns relative to the project
// directory. The result is sorted and free of duplicates.
func (p *Project) SourcePaths() ([]string, error) {
	seen := map[string]bool{}
	var paths []string
	for _, pattern := range p.Compile.Sources {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(p.Dir, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad source pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// OutputPath returns the configured output path relative to the project
// directory, or "" if none is set.
func (p *Project) OutputPath() string {
	if p.Compile.Output == "" || filepath.IsAbs(p.Compile.Output) {
		return p.Compile.Output
	}
	return filepath.Join(p.Dir, p.Compile.Output)
}
