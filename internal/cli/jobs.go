package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/acssjr/examscan/internal/models"
	"github.com/acssjr/examscan/internal/tracker"
)

var (
	retryAll  bool
	cancelAll bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect ingestion jobs",
	Long: `List all ingestion jobs or inspect a specific job by ID.

Examples:
  examscan jobs                  # List all jobs
  examscan jobs abc123           # Show details for job abc123
  examscan jobs retry abc123     # Retry a failed job
  examscan jobs cancel --all     # Cancel every in-flight job
  examscan jobs delete abc123    # Delete a finished job`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

var jobsRetryCmd = &cobra.Command{
	Use:   "retry [job-id]",
	Short: "Retry failed jobs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, err := loadTracker(cmd.Context())
		if err != nil {
			return err
		}
		if retryAll {
			return reportBatch("retry", tr.RetryAll(cmd.Context()))
		}
		if len(args) != 1 {
			return fmt.Errorf("a job ID or --all is required")
		}
		return tr.Retry(cmd.Context(), args[0])
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel [job-id]",
	Short: "Cancel in-flight jobs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, err := loadTracker(cmd.Context())
		if err != nil {
			return err
		}
		if cancelAll {
			return reportBatch("cancel", tr.CancelAll(cmd.Context()))
		}
		if len(args) != 1 {
			return fmt.Errorf("a job ID or --all is required")
		}
		return tr.Cancel(cmd.Context(), args[0])
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a finished job and its questions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, err := loadTracker(cmd.Context())
		if err != nil {
			return err
		}
		if err := tr.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted job %s\n", args[0])
		return nil
	},
}

func init() {
	jobsRetryCmd.Flags().BoolVar(&retryAll, "all", false, "retry every failed job")
	jobsCancelCmd.Flags().BoolVar(&cancelAll, "all", false, "cancel every in-flight job")
	jobsCmd.AddCommand(jobsRetryCmd, jobsCancelCmd, jobsDeleteCmd)
	rootCmd.AddCommand(jobsCmd)
}

// loadTracker builds a tracker seeded with the backend's current snapshot,
// so job commands see the same records a restarted client would.
func loadTracker(ctx context.Context) (*tracker.Tracker, error) {
	tr := tracker.New(api, tracker.Options{
		Scope:    cfg.Scope,
		Interval: cfg.PollInterval,
		Notifier: broker,
		Logger:   logger,
	})

	snapshot, err := api.QueryStatus(ctx, cfg.Scope)
	if err != nil {
		return nil, fmt.Errorf("query status: %w", err)
	}
	tr.ApplySnapshot(snapshot)
	return tr, nil
}

// reportBatch prints one line per failed command; batch commands are
// non-transactional, so partial failure is reported per job, never as a
// single aggregate error.
func reportBatch(verb string, failures []tracker.JobError) error {
	for _, f := range failures {
		fmt.Printf("%s failed: %v\n", verb, f)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d %s command(s) failed", len(failures), verb)
	}
	return nil
}

func runJobs(cmd *cobra.Command, args []string) error {
	tr, err := loadTracker(cmd.Context())
	if err != nil {
		return err
	}

	if len(args) == 1 {
		return showJob(tr, args[0])
	}
	return listJobs(tr)
}

func listJobs(tr *tracker.Tracker) error {
	jobs := tr.Jobs()
	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-12s %-22s %-12s %-10s %s\n", "ID", "LABEL", "STATE", "PROGRESS", "SUBMITTED")
	fmt.Println("------------------------------------------------------------------------")

	for _, job := range jobs {
		progress := ""
		if job.ProgressKnown() {
			progress = fmt.Sprintf("%d%%", job.Progress)
		}
		submitted := ""
		if !job.SubmittedAt.IsZero() {
			submitted = job.SubmittedAt.Format("15:04:05")
		}
		fmt.Printf("%-12s %-22s %-12s %-10s %s\n", job.ID, job.Label, job.State, progress, submitted)
	}

	return nil
}

func showJob(tr *tracker.Tracker, id string) error {
	job, ok := tr.Job(id)
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}

	fmt.Printf("Job: %s\n", job.ID)
	fmt.Printf("  Label: %s\n", job.Label)
	fmt.Printf("  State: %s\n", job.State)
	if job.ProgressKnown() {
		fmt.Printf("  Progress: %d%%\n", job.Progress)
	}
	if !job.SubmittedAt.IsZero() {
		fmt.Printf("  Submitted: %s\n", job.SubmittedAt.Format(time.RFC3339))
	}
	if job.ErrorDetail != "" {
		fmt.Printf("  Error: %s\n", job.ErrorDetail)
	}
	if job.ResultCounts != nil {
		fmt.Printf("\nResult:\n")
		fmt.Printf("  Questions extracted: %d\n", job.ResultCounts.Total)
		if job.ResultCounts.NeedsReview > 0 {
			fmt.Printf("  Need review: %d\n", job.ResultCounts.NeedsReview)
		}
	}

	switch {
	case job.State == models.JobStateFailed:
		fmt.Println("\nUse 'examscan jobs retry " + job.ID + "' to re-run this job.")
	case job.State.CanCancel():
		fmt.Println("\nUse 'examscan jobs cancel " + job.ID + "' to cancel this job.")
	}

	return nil
}
