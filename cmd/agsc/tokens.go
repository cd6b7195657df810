package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/agsc-lang/agsc/bytecode"
	"github.com/agsc-lang/agsc/errors"
	"github.com/agsc-lang/agsc/internal/table"
	"github.com/agsc-lang/agsc/internal/tokenizer"
	"github.com/agsc-lang/agsc/symbols"
	"github.com/spf13/cobra"
)

func newTokensCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tokens file",
		Short: "Print the token stream of a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			section := a.sectionName(args[0])
			syms := symbols.New()
			stream, err := tokenizer.Tokenize(string(data), syms, bytecode.NewModule(false))
			if err != nil {
				if ce, ok := errors.AsCompileError(err); ok {
					if ce.Section == "" {
						ce.Section = section
					}
					errOut := cmd.ErrOrStderr()
					fmt.Fprint(errOut, errors.NewFormatter(a.useColor(errOut)).Format(ce.ToFormatted()))
					return fmt.Errorf("%s: tokenizing failed", section)
				}
				return err
			}

			rows := make([][]string, 0, stream.Len())
			for i := 0; i < stream.Len(); i++ {
				id := stream.At(i)
				rows = append(rows, []string{
					strconv.Itoa(i),
					sectionOr(stream.SectionAt(i), section) + ":" + strconv.Itoa(stream.LineAt(i)),
					syms.Kind(id).String(),
					syms.Name(id),
				})
			}
			table.NewTable(cmd.OutOrStdout()).
				WithHeader([]string{"INDEX", "LINE", "KIND", "SYMBOL"}).
				WithColumnAlignment([]table.Alignment{
					table.AlignRight,
					table.AlignLeft,
					table.AlignLeft,
					table.AlignLeft,
				}).
				WithRows(rows).
				Render()
			a.log.Debug().Int("tokens", stream.Len()).Int("symbols", syms.Len()).Msg("tokenized")
			return nil
		},
	}
}

func sectionOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
