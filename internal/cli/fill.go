package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formrules/pkg/prompt"
)

// NewFillCommand creates the fill command.
func NewFillCommand(rootOpts *RootOptions) *cobra.Command {
	var prefillPath string
	cmd := &cobra.Command{
		Use:   "fill <schema>",
		Short: "Fill a schema interactively and print the data as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := loadSchema(args[0])
			if err != nil {
				return err
			}
			prefill := map[string]any{}
			if prefillPath != "" {
				if prefill, err = readData(prefillPath, cmd.InOrStdin()); err != nil {
					return err
				}
			}
			rt, err := rootOpts.newRuntime(form.Lookups...)
			if err != nil {
				return WrapExitError(ExitCommandError, "setup", err)
			}
			defer rt.close()

			driver := rootOpts.Driver
			if driver == nil {
				driver = prompt.NewSurveyDriver(cmd.ErrOrStderr())
			}
			filler := prompt.New(
				prompt.WithPromptDriver(driver),
				prompt.WithOrchestrator(rt.orchestrator),
				prompt.WithLocale(rootOpts.viper.GetString("locale")),
				prompt.WithLogger(rootOpts.log().Named("prompt")),
			)
			data, err := filler.Fill(cmd.Context(), form, prefill)
			if errors.Is(err, prompt.ErrAborted) {
				return WrapExitError(ExitFailure, "fill", err)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "fill", err)
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().StringVar(&prefillPath, "data", "", "JSON file with initial values")
	return cmd
}
