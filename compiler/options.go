package compiler

import (
	"strings"

	"github.com/rs/zerolog"
)

// Options are the switches that change how a compilation unit is compiled.
type Options struct {
	// ShowWarnings records warnings on the module.
	ShowWarnings bool
	// ExportAll exports every function that has a body.
	ExportAll bool
	// LineNumbers emits LINENUM instructions.
	LineNumbers bool
	// AutoImport is recorded on the module for the linker.
	AutoImport bool
	// DebugRun is accepted for compatibility and otherwise ignored.
	DebugRun bool
	// NoImportOverride forbids giving a local body to an imported function
	// or redefining an imported variable.
	NoImportOverride bool
	// LeftToRight evaluates operators of equal priority from left to right.
	LeftToRight bool
	// OldStrings permits the fixed size "string" type.
	OldStrings bool
}

// Legacy bit values of the options.
const (
	FlagExportAll        uint32 = 0x01
	FlagShowWarnings     uint32 = 0x02
	FlagLineNumbers      uint32 = 0x04
	FlagAutoImport       uint32 = 0x08
	FlagDebugRun         uint32 = 0x10
	FlagNoImportOverride uint32 = 0x20
	FlagLeftToRight      uint32 = 0x40
	FlagOldStrings       uint32 = 0x80
)

type optionFlag struct {
	flag uint32
	name string
	get  func(*Options) *bool
}

var optionFlags = []optionFlag{
	{FlagExportAll, "export_all", func(o *Options) *bool { return &o.ExportAll }},
	{FlagShowWarnings, "show_warnings", func(o *Options) *bool { return &o.ShowWarnings }},
	{FlagLineNumbers, "line_numbers", func(o *Options) *bool { return &o.LineNumbers }},
	{FlagAutoImport, "auto_import", func(o *Options) *bool { return &o.AutoImport }},
	{FlagDebugRun, "debug_run", func(o *Options) *bool { return &o.DebugRun }},
	{FlagNoImportOverride, "no_import_override", func(o *Options) *bool { return &o.NoImportOverride }},
	{FlagLeftToRight, "left_to_right", func(o *Options) *bool { return &o.LeftToRight }},
	{FlagOldStrings, "old_strings", func(o *Options) *bool { return &o.OldStrings }},
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{ShowWarnings: true, LineNumbers: true, LeftToRight: true}
}

// OptionsFromFlags converts a legacy bit mask. Unknown bits are ignored.
func OptionsFromFlags(flags uint32) Options {
	var o Options
	for _, f := range optionFlags {
		*f.get(&o) = flags&f.flag != 0
	}
	return o
}

// Flags returns the legacy bit mask for o.
func (o Options) Flags() uint32 {
	var flags uint32
	for _, f := range optionFlags {
		if *f.get(&o) {
			flags |= f.flag
		}
	}
	return flags
}

// String lists the options that are set, e.g. "export_all,line_numbers".
func (o Options) String() string {
	var names []string
	for _, f := range optionFlags {
		if *f.get(&o) {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, ",")
}

// Config holds compiler configuration.
type Config struct {
	// Options select language and output variants.
	Options Options

	// Logger receives debug events about the compilation. Nil disables
	// logging.
	Logger *zerolog.Logger

	// SectionName names the code that precedes the first section marker.
	// It appears in diagnostics.
	SectionName string
}
