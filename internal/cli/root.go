// Package cli implements the formrules command tree.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/goliatone/go-formrules/internal/logging"
	"github.com/goliatone/go-formrules/pkg/prompt"
)

// RootOptions holds global flags and the state built from them before a
// subcommand runs.
type RootOptions struct {
	ConfigFile string
	Verbose    bool

	// Driver replaces the survey prompt driver used by fill.
	Driver prompt.PromptDriver

	viper  *viper.Viper
	config Config
	logger *zap.Logger
}

// NewRootCommand creates the formrules command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	opts.viper = newViper()

	cmd := &cobra.Command{
		Use:   "formrules",
		Short: "Evaluate, validate and serve declarative form schemas",
		Long: `formrules loads JSON, JSONC or YAML form schemas and runs their logic,
validation and lookup rules from the command line or over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default ./formrules.yaml)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	flags.String("locale", "", "validation message locale")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "also write logs to this rotating file")
	_ = opts.viper.BindPFlag("locale", flags.Lookup("locale"))
	_ = opts.viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = opts.viper.BindPFlag("log.file", flags.Lookup("log-file"))

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewEvalCommand(opts))
	cmd.AddCommand(NewLintCommand(opts))
	cmd.AddCommand(NewLookupCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewFillCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	return cmd
}

func (o *RootOptions) init() error {
	cfg, err := loadConfig(o.viper, o.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "config", err)
	}
	o.config = cfg

	logger, err := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Verbose: o.Verbose,
		File:    cfg.Log.File,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "logger", err)
	}
	o.logger = logger
	if used := o.viper.ConfigFileUsed(); used != "" {
		o.logger.Debug("config loaded", zap.String("file", used))
	}
	return nil
}

func (o *RootOptions) log() *zap.Logger {
	if o.logger == nil {
		return zap.NewNop()
	}
	return o.logger
}
