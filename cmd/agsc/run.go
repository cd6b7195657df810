package main

import (
	"fmt"

	"github.com/agsc-lang/agsc"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run file",
		Short: "Run a function of a module or script",
		Long: `Run a function on the reference interpreter and print its result.
Imported functions are not available, so calling one fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := a.loadModule(cmd, args[0])
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("func")
			callArgs, _ := cmd.Flags().GetInt32Slice("arg")
			maxSteps, _ := cmd.Flags().GetInt("max-steps")

			opts := []agsc.Option{agsc.WithMaxSteps(maxSteps)}
			if a.v.GetBool("verbose") {
				opts = append(opts, agsc.WithLogger(a.log))
			}
			result, err := agsc.Run(cmd.Context(), mod, name, callArgs, opts...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringP("func", "f", "main", "function to call")
	cmd.Flags().Int32Slice("arg", nil, "integer argument, may be repeated")
	cmd.Flags().Int("max-steps", 0, "instruction limit (0 uses the default)")
	return cmd
}
