package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/orchestrator"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var trigger string
	cmd := &cobra.Command{
		Use:   "validate <schema> <data.json>",
		Short: "Validate form data against a schema",
		Long: `Validate runs the schema's logic and validation rules over the data and
prints the report as JSON. It exits 1 when the data is invalid. Pass "-" to
read data from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := model.Trigger(trigger)
			if trigger != "" && !t.Valid() {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid trigger %q", trigger))
			}
			return runValidate(cmd, rootOpts, args[0], args[1], t)
		},
	}
	cmd.Flags().StringVar(&trigger, "trigger", string(model.TriggerSubmit), "trigger to validate for (blur, change, submit)")
	return cmd
}

func runValidate(cmd *cobra.Command, opts *RootOptions, schemaPath, dataPath string, trigger model.Trigger) error {
	form, err := loadSchema(schemaPath)
	if err != nil {
		return err
	}
	data, err := readData(dataPath, cmd.InOrStdin())
	if err != nil {
		return err
	}
	rt, err := opts.newRuntime()
	if err != nil {
		return WrapExitError(ExitCommandError, "setup", err)
	}
	defer rt.close()

	report, err := rt.orchestrator.Validate(cmd.Context(), form, data, trigger,
		orchestrator.WithLocale(opts.viper.GetString("locale")))
	if err != nil {
		return WrapExitError(ExitCommandError, "validate", err)
	}
	if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if !report.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: data is invalid", form.ID))
	}
	return nil
}
