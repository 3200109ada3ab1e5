// Package cli implements timectl, the operator command line for the
// timekeeping engine.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/cmlabs-hris/hris-timekeeping/internal/app"
	"github.com/cmlabs-hris/hris-timekeeping/internal/config"
	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	engine *app.App
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Builder constructs the engine; tests swap it for an in-memory one.
type Builder func(cmd *cobra.Command) (*app.App, error)

// DefaultBuilder loads configuration from the environment.
func DefaultBuilder(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logCfg := cfg.App
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logCfg.LogLevel = "debug"
	} else {
		logCfg.LogLevel = "warn"
	}
	slog.SetDefault(config.NewLogger(logCfg))
	return app.New(cmd.Context(), cfg)
}

// NewRootCommand creates the root command for timectl.
func NewRootCommand(build Builder) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "timectl",
		Short: "Operate the attendance and time-tracking engine",
		Long: `timectl runs the engine's maintenance operations by hand: payroll
validation and finalisation, missed-punch detection, escalation sweeps and
sync retries. Every command acts as the system actor.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			engine, err := build(cmd)
			if err != nil {
				return err
			}
			opts.engine = engine
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.engine != nil {
				opts.engine.Close()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewFinalizeCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewDetectMissedCommand(opts))
	cmd.AddCommand(NewEscalateCommand(opts))
	cmd.AddCommand(NewCutoffCommand(opts))
	cmd.AddCommand(NewRetrySyncCommand(opts))
	cmd.AddCommand(NewExpireAssignmentsCommand(opts))
	cmd.AddCommand(NewRunJobCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

var systemActor = approval.SystemActor

// output writes v as indented JSON, or text via the fallback printer.
func (o *RootOptions) output(w io.Writer, v interface{}, text func(w io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
