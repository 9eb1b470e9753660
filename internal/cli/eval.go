package cli

import (
	"github.com/spf13/cobra"
)

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "eval <schema> <data.json>",
		Short: "Print the visible, required and disabled state of every field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := loadSchema(args[0])
			if err != nil {
				return err
			}
			data, err := readData(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}
			rt, err := rootOpts.newRuntime()
			if err != nil {
				return WrapExitError(ExitCommandError, "setup", err)
			}
			defer rt.close()
			return writeJSON(cmd.OutOrStdout(), rt.orchestrator.State(form, data))
		},
	}
}
