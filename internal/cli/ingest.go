package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/acssjr/examscan/internal/models"
	"github.com/acssjr/examscan/internal/tracker"
)

var ingestNoWait bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Submit exam documents for extraction and classification",
	Long: `Submit one or more scanned exam documents to the backend. Each file
becomes one background ingestion job; the command then polls job status
until every job reaches a terminal state.

Examples:
  examscan ingest prova-2023.pdf
  examscan ingest exams/*.pdf --no-wait`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestNoWait, "no-wait", false, "submit and exit without polling")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	files := make([]string, 0, len(args))
	for _, arg := range args {
		files = append(files, filepath.Base(arg))
	}

	jobs, err := api.SubmitIngestion(ctx, cfg.Scope, files)
	if err != nil {
		return fmt.Errorf("submit ingestion: %w", err)
	}
	fmt.Printf("Submitted %d ingestion job(s)\n", len(jobs))

	if ingestNoWait {
		for _, job := range jobs {
			fmt.Printf("  %s  %s\n", job.ID, job.Label)
		}
		return nil
	}

	tr := tracker.New(api, tracker.Options{
		Scope:    cfg.Scope,
		Interval: cfg.PollInterval,
		Notifier: broker,
		Logger:   logger,
	})
	tr.Register(jobs...)

	if interactiveTerminal() {
		if err := RunIngestProgress(tr, broker, cfg.PollInterval); err != nil {
			return err
		}
	} else if err := waitForJobs(ctx, tr); err != nil {
		return err
	}

	return reportJobs(tr.Jobs())
}

// interactiveTerminal reports whether stdout is a terminal; plain polling
// output is used otherwise (pipes, CI).
func interactiveTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// waitForJobs polls the tracker without a UI until no active work remains,
// logging state transitions as they happen.
func waitForJobs(ctx context.Context, tr *tracker.Tracker) error {
	last := make(map[string]models.JobState)
	for _, job := range tr.Jobs() {
		last[job.ID] = job.State
	}

	for tr.HasActiveWork() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.PollInterval):
		}

		if err := tr.Refresh(ctx); err != nil {
			return err
		}
		broker.Expire(time.Now())

		for _, job := range tr.Jobs() {
			if last[job.ID] != job.State {
				logger.Info("job state changed", "job_id", job.ID, "label", job.Label, "state", job.State)
				last[job.ID] = job.State
			}
		}
	}
	return nil
}

// reportJobs prints the terminal outcome of a job batch. A failed job makes
// the command exit non-zero.
func reportJobs(jobs []models.JobRecord) error {
	failed := 0
	for _, job := range jobs {
		switch job.State {
		case models.JobStateCompleted, models.JobStatePartial:
			if job.ResultCounts != nil {
				fmt.Printf("%s: %d questions", job.Label, job.ResultCounts.Total)
				if job.ResultCounts.NeedsReview > 0 {
					fmt.Printf(" (%d need review)", job.ResultCounts.NeedsReview)
				}
				fmt.Println()
			}
		case models.JobStateFailed:
			failed++
			fmt.Printf("%s: failed", job.Label)
			if job.ErrorDetail != "" {
				fmt.Printf(" - %s", job.ErrorDetail)
			}
			fmt.Println()
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d job(s) failed; use 'examscan jobs retry' to re-run them", failed)
	}
	return nil
}
