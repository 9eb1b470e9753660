package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formrules/pkg/schema/openapi"
)

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		format   string
		list     bool
		validate bool
	)
	cmd := &cobra.Command{
		Use:   "import <openapi> [operationId]",
		Short: "Derive a form schema from an OpenAPI operation",
		Long: `Import maps the request body of an OpenAPI 3 operation onto a form schema
and prints it. x-formrules extensions on the operation and on properties are
merged into the result. --list prints the operations instead.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "read document", err)
			}
			out := cmd.OutOrStdout()
			if list {
				ops, err := openapi.Operations(cmd.Context(), raw)
				if err != nil {
					return WrapExitError(ExitCommandError, "operations", err)
				}
				for _, op := range ops {
					fmt.Fprintf(out, "%s\t%s %s\n", op.ID, op.Method, op.Path)
				}
				return nil
			}
			if len(args) < 2 {
				return NewExitError(ExitCommandError, "operationId is required without --list")
			}

			form, err := openapi.Import(cmd.Context(), raw, args[1], openapi.WithValidation(validate))
			if err != nil {
				return WrapExitError(ExitCommandError, "import", err)
			}
			rootOpts.log().Debug("schema imported",
				zap.String("operation", form.ID),
				zap.Int("fields", len(form.Fields)),
			)
			switch format {
			case "json":
				return writeJSON(out, form)
			case "yaml":
				return writeYAML(out, form)
			default:
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be json or yaml", format))
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format (json|yaml)")
	cmd.Flags().BoolVar(&list, "list", false, "list operations")
	cmd.Flags().BoolVar(&validate, "validate", false, "validate the document before importing")
	return cmd
}

// writeYAML renders v through its JSON encoding so custom marshalers apply,
// keeping the JSON key order.
func writeYAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return err
	}
	blockStyle(&node)
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(&node); err != nil {
		return err
	}
	return encoder.Close()
}

func blockStyle(node *yaml.Node) {
	if node.Kind == yaml.MappingNode || node.Kind == yaml.SequenceNode {
		node.Style = 0
	}
	if node.Kind == yaml.ScalarNode && node.Style == yaml.DoubleQuotedStyle && node.Tag == "!!str" {
		node.Style = 0
	}
	for _, child := range node.Content {
		blockStyle(child)
	}
}
