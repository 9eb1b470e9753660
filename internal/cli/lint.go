package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formrules/pkg/schema"
)

type violation struct {
	file     string
	location string
	message  string
}

// NewLintCommand creates the lint command.
func NewLintCommand(rootOpts *RootOptions) *cobra.Command {
	var validators []string
	cmd := &cobra.Command{
		Use:   "lint <schema...>",
		Short: "Report schema mistakes the engines would silently tolerate",
		Long: `Lint checks schemas for unknown operators and fields, broken patterns,
inverted bounds, validators missing from --validator and undeclared lookups. It prints
one issue per line and exits 1 when any are found.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []schema.LintOption{schema.WithKnownLookups(rootOpts.knownLookups()...)}
			if len(validators) > 0 {
				opts = append(opts, schema.WithValidators(newNameSet(validators)))
			}
			var violations []violation
			for _, path := range args {
				form, err := schema.LoadFile(path)
				if err != nil {
					violations = append(violations, violation{file: path, location: "-", message: err.Error()})
					continue
				}
				for _, issue := range schema.Lint(form, opts...) {
					violations = append(violations, violation{file: path, location: issue.Path, message: issue.Message})
				}
			}
			if len(violations) == 0 {
				return nil
			}

			sort.SliceStable(violations, func(i, j int) bool {
				return violations[i].file < violations[j].file
			})
			out := cmd.OutOrStdout()
			for _, v := range violations {
				fmt.Fprintf(out, "%s: %s -> %s\n", v.file, v.location, v.message)
			}
			return NewExitError(ExitFailure, fmt.Sprintf("%d issue(s)", len(violations)))
		},
	}
	cmd.Flags().StringSliceVar(&validators, "validator", nil, "custom validator names the host registers; enables unregistered-validator checks")
	return cmd
}

type nameSet map[string]struct{}

func newNameSet(names []string) nameSet {
	set := make(nameSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func (s nameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}
