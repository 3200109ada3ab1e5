package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/approval"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/daterange"
	"github.com/spf13/cobra"
)

func printEscalation(what string, res approval.Escalation) func(w io.Writer) {
	return func(w io.Writer) {
		fmt.Fprintf(w, "%s: scanned %d, escalated %d, failed %d\n", what, res.Scanned, res.Escalated, res.Failed)
	}
}

// NewDetectMissedCommand creates the detect-missed command.
func NewDetectMissedCommand(opts *RootOptions) *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "detect-missed",
		Short: "Flag incomplete attendance records of one work day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := opts.engine.Config.TimePolicy.Location()
			target := daterange.WorkDate(time.Now(), loc).AddDate(0, 0, -1)
			if day != "" {
				parsed, err := time.ParseInLocation(daterange.Layout, day, loc)
				if err != nil {
					return fmt.Errorf("invalid --day %q: %w", day, err)
				}
				target = parsed
			}

			result, err := opts.engine.Detector.DetectMissedPunches(cmd.Context(), target)
			if err != nil {
				return err
			}

			return opts.output(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "%s: scanned %d, flagged %d, exceptions created %d, deferred %d, failed %d\n",
					result.Day, result.Scanned, result.Flagged, result.ExceptionsCreated, result.Deferred, result.Failed)
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "work day, YYYY-MM-DD (default: yesterday)")

	return cmd
}

type escalationReport struct {
	Corrections approval.Escalation `json:"corrections"`
	Exceptions  approval.Escalation `json:"time_exceptions"`
}

// NewEscalateCommand creates the escalate command.
func NewEscalateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "escalate",
		Short: "Escalate overdue correction and time exception requests to HR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var report escalationReport
			var err error

			if report.Corrections, err = opts.engine.Corrections.EscalateOverdue(cmd.Context()); err != nil {
				return err
			}
			if report.Exceptions, err = opts.engine.Exceptions.EscalateOverdue(cmd.Context()); err != nil {
				return err
			}

			return opts.output(cmd.OutOrStdout(), report, func(w io.Writer) {
				printEscalation("corrections", report.Corrections)(w)
				printEscalation("time exceptions", report.Exceptions)(w)
			})
		},
	}
}

// NewExpireAssignmentsCommand creates the expire-assignments command.
func NewExpireAssignmentsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "expire-assignments",
		Short: "Expire approved shift assignments whose end date has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := opts.engine.TimeConfig.ExpireAssignments(cmd.Context())
			if err != nil {
				return err
			}

			return opts.output(cmd.OutOrStdout(), map[string]int{"expired": n}, func(w io.Writer) {
				fmt.Fprintf(w, "Expired %d assignment(s)\n", n)
			})
		},
	}
}

// NewRunJobCommand creates the run-job command.
func NewRunJobCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run-job <name>",
		Short: "Run one scheduled job immediately",
		Long: `Run one scheduled job immediately, ignoring its schedule.

Jobs: detect_missed_punches, escalate_overdue_corrections,
escalate_overdue_exceptions, payroll_cutoff_sweep,
retry_failed_payroll_syncs, expire_shift_assignments.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := opts.engine.Scheduler.RunJob(cmd.Context(), args[0])
			if !found {
				return fmt.Errorf("unknown job %q", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s finished\n", args[0])
			return nil
		},
	}
}

// NewTokenCommand creates the token command.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var actor approval.Actor
	var role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for an actor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor.Role = approval.Role(role)
			token, expiresAt, err := opts.engine.JWT.GenerateAccessToken(actor)
			if err != nil {
				return err
			}

			out := map[string]interface{}{"access_token": token, "expires_at": expiresAt}
			return opts.output(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintln(w, token)
			})
		},
	}
	cmd.Flags().StringVar(&actor.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&actor.EmployeeID, "employee", "", "employee id")
	cmd.Flags().StringVar(&role, "role", string(approval.RoleEmployee), "employee|manager|hr|owner|system")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
