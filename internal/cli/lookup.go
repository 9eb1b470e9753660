package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formrules/pkg/model"
)

type optionsResponse struct {
	Data []model.LookupOption `json:"data"`
}

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	var schemaPath string
	cmd := &cobra.Command{
		Use:   "lookup <ref> [key=value...]",
		Short: "Resolve a lookup ref and print its options",
		Long: `Lookup resolves ref through the configured endpoints, the built-in
timezones source, or the lookups declared by --schema, and prints the options
as {"data": [...]}.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return WrapExitError(ExitCommandError, "params", err)
			}
			var defs []model.LookupDefinition
			if schemaPath != "" {
				form, err := loadSchema(schemaPath)
				if err != nil {
					return err
				}
				defs = form.Lookups
			}
			rt, err := rootOpts.newRuntime(defs...)
			if err != nil {
				return WrapExitError(ExitCommandError, "setup", err)
			}
			defer rt.close()

			options, err := rt.lookups.GetLookup(cmd.Context(), args[0], params)
			if err != nil {
				return WrapExitError(ExitFailure, "lookup", err)
			}
			return writeJSON(cmd.OutOrStdout(), optionsResponse{Data: options})
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema whose lookups are registered before resolving")
	return cmd
}

func parseParams(args []string) (map[string]any, error) {
	params := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		params[key] = value
	}
	return params, nil
}
