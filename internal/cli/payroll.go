package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/payrollsync"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/daterange"
	payrollSyncService "github.com/cmlabs-hris/hris-timekeeping/internal/service/payrollsync"
	"github.com/spf13/cobra"
)

type rangeFlags struct {
	start string
	end   string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "first day, YYYY-MM-DD (default: current payroll period)")
	cmd.Flags().StringVar(&f.end, "end", "", "last day, YYYY-MM-DD (default: current payroll period)")
}

// request fills missing bounds from the payroll period containing today.
func (f *rangeFlags) request(opts *RootOptions) payrollsync.RangeRequest {
	if f.start != "" && f.end != "" {
		return payrollsync.RangeRequest{StartDate: f.start, EndDate: f.end}
	}

	policy := opts.engine.Config.TimePolicy
	today := time.Now().In(policy.Location())
	period := payrollSyncService.PayrollPeriod(today, policy.PayrollCutoffDay)

	req := payrollsync.RangeRequest{
		StartDate: period.Start.Format(daterange.Layout),
		EndDate:   period.End.Format(daterange.Layout),
	}
	if f.start != "" {
		req.StartDate = f.start
	}
	if f.end != "" {
		req.EndDate = f.end
	}
	return req
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	var rng rangeFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a period for issues that block payroll finalisation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := rng.request(opts)
			if err := req.Validate(); err != nil {
				return err
			}

			result, err := opts.engine.PayrollSync.ValidateDataForPayrollSync(cmd.Context(), req)
			if err != nil {
				return err
			}

			err = opts.output(cmd.OutOrStdout(), result, func(w io.Writer) {
				printValidation(w, result)
			})
			if err != nil {
				return err
			}
			if !result.IsValid {
				return fmt.Errorf("%d blocking issue(s) found", result.ErrorCount)
			}
			return nil
		},
	}
	rng.register(cmd)

	return cmd
}

func printValidation(w io.Writer, result payrollsync.ValidationResult) {
	fmt.Fprintf(w, "Period %s .. %s: %d error(s), %d warning(s)\n",
		result.Start.Format(daterange.Layout), result.End.Format(daterange.Layout),
		result.ErrorCount, result.WarningCount)
	for _, issue := range result.Issues {
		fmt.Fprintf(w, "  %-7s %-20s %s %s: %s\n", issue.Severity, issue.Code, issue.EntityType, issue.EntityID, issue.Message)
	}
}

// NewFinalizeCommand creates the finalize command.
func NewFinalizeCommand(opts *RootOptions) *cobra.Command {
	var override bool

	cmd := &cobra.Command{
		Use:   "finalize <record-id>...",
		Short: "Finalise attendance records for payroll",
		Long: `Finalise attendance records for payroll.

The records' period is validated first; blocking issues abort the run unless
--override is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := payrollsync.FinalizeRequest{RecordIDs: args, Override: override}
			if err := req.Validate(); err != nil {
				return err
			}

			result, err := opts.engine.PayrollSync.FinalizeRecordsForPayroll(cmd.Context(), systemActor, req)
			if err != nil {
				var blocked *payrollsync.ValidationFailedError
				if errors.As(err, &blocked) {
					printValidation(cmd.ErrOrStderr(), blocked.Result)
				}
				return err
			}

			return opts.output(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "Finalised %d record(s)\n", result.RecordsFinalized)
				for _, f := range result.Failed {
					fmt.Fprintf(w, "  failed %s: %s\n", f.RecordID, f.Error)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&override, "override", false, "finalise despite blocking validation issues")

	return cmd
}

// NewExportCommand creates the export command.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	var rng rangeFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the payroll snapshot workbook for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := rng.request(opts)
			if err := req.Validate(); err != nil {
				return err
			}

			result, err := opts.engine.PayrollSync.ExportSnapshot(cmd.Context(), systemActor, req)
			if err != nil {
				return err
			}

			return opts.output(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "Exported %d employee(s) to %s\n", result.Employees, result.Path)
			})
		},
	}
	rng.register(cmd)

	return cmd
}

// NewRetrySyncCommand creates the retry-sync command.
func NewRetrySyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry-sync",
		Short: "Retry failed payroll sync deliveries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.engine.PayrollSync.RetryFailedSyncs(cmd.Context())
			if err != nil {
				return err
			}

			return opts.output(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "Retried %d: %d succeeded, %d failed\n", result.Attempted, result.Succeeded, result.Failed)
			})
		},
	}
}

// NewCutoffCommand creates the cutoff command.
func NewCutoffCommand(opts *RootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "cutoff",
		Short: "Run the payroll cutoff sweep",
		Long: `Run the payroll cutoff sweep as of --at (default: now). The sweep only
acts when --at falls on the configured cutoff day.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				day, err := time.ParseInLocation(daterange.Layout, at, opts.engine.Config.TimePolicy.Location())
				if err != nil {
					return fmt.Errorf("invalid --at %q: %w", at, err)
				}
				now = day
			}

			result, err := opts.engine.PayrollSync.RunCutoffSweep(cmd.Context(), now)
			if err != nil {
				return err
			}

			return opts.output(cmd.OutOrStdout(), result, printEscalation("cutoff sweep", result))
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "run as of this day, YYYY-MM-DD")

	return cmd
}
