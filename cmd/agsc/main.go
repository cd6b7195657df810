// Command agsc compiles game scripts into bytecode modules.
package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

// app holds the state shared by the commands of one invocation.
type app struct {
	v   *viper.Viper
	log zerolog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), log: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "agsc",
		Short:         "Compile game scripts into bytecode modules",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initConfig(); err != nil {
				return err
			}
			a.log = newLogger(cmd.ErrOrStderr(), a.v.GetBool("verbose"), a.useColor(cmd.ErrOrStderr()))
			if used := a.v.ConfigFileUsed(); used != "" {
				a.log.Debug().Str("file", used).Msg("using config file")
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.agsc.toml)")
	flags.BoolP("verbose", "v", false, "log debug events")
	flags.Bool("no-color", false, "disable colored output")
	flags.String("section", "", "section name used in diagnostics (default is the file name)")
	flags.Bool("export-all", false, "export every function with a body")
	flags.Bool("line-numbers", true, "emit line number instructions")
	flags.Bool("left-to-right", true, "evaluate operators of equal priority from left to right")
	flags.Bool("old-strings", false, "permit the fixed size 'string' type")
	flags.Bool("no-import-override", false, "forbid local bodies for imported functions")
	flags.Bool("show-warnings", true, "record and log warnings")
	flags.Bool("auto-import", false, "mark the module for automatic import")
	if err := a.v.BindPFlags(flags); err != nil {
		panic(err)
	}

	root.AddCommand(
		newCompileCmd(a),
		newDisCmd(a),
		newTokensCmd(a),
		newRunCmd(a),
	)
	return root
}

func (a *app) initConfig() error {
	a.v.SetEnvPrefix("AGSC")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	a.v.SetConfigType("toml")

	if cfgFile := a.v.GetString("config"); cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("cannot read config file: %w", err)
		}
		return nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return nil
	}
	a.v.AddConfigPath(home)
	a.v.SetConfigName(".agsc")
	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("cannot read config file: %w", err)
		}
	}
	return nil
}

func newLogger(w io.Writer, verbose, useColor bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: !useColor, TimeFormat: "15:04:05"}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
