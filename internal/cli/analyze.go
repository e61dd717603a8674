package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/acssjr/examscan/internal/models"
	"github.com/acssjr/examscan/internal/tracker"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <subject>",
	Short: "Run a deep analysis over one subject's questions",
	Long: `Start a deep-analysis job for an already-ingested subject area and
follow its progress. The pipeline runs four phases (preparing, clustering,
analyzing, reporting); on completion the clustered result is printed.

Examples:
  examscan analyze "Constitutional Law"
  examscan analyze cancel an-42`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var analyzeCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a pending or running analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tr := newAnalysisTracker(args[0])
		// One refresh so the cancel gate sees backend truth, not the
		// tracker's initial pending state.
		if err := tr.Refresh(cmd.Context()); err != nil {
			return err
		}
		if err := tr.Cancel(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Cancel requested for analysis %s\n", args[0])
		return nil
	},
}

func init() {
	analyzeCmd.AddCommand(analyzeCancelCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func newAnalysisTracker(jobID string) *tracker.AnalysisTracker {
	return tracker.NewAnalysis(api, jobID, tracker.AnalysisOptions{
		Interval: cfg.AnalysisPollInterval,
		Notifier: broker,
		Logger:   logger,
	})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	subject := args[0]

	jobID, err := api.SubmitAnalysis(ctx, cfg.Scope, subject)
	if err != nil {
		return fmt.Errorf("submit analysis: %w", err)
	}
	fmt.Printf("Analysis %s started for %q\n", jobID, subject)

	tr := newAnalysisTracker(jobID)

	if interactiveTerminal() {
		if err := RunPhaseProgress(tr, cfg.AnalysisPollInterval); err != nil {
			return err
		}
	} else if err := waitForAnalysis(ctx, tr); err != nil {
		return err
	}

	return reportAnalysis(tr)
}

// waitForAnalysis polls without a UI until the job is done, logging phase
// transitions.
func waitForAnalysis(ctx context.Context, tr *tracker.AnalysisTracker) error {
	lastPhase := 0
	for !tr.Done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.AnalysisPollInterval):
		}

		if err := tr.Refresh(ctx); err != nil {
			logger.Warn("analysis refresh", "error", err)
		}

		phase := tr.Phase()
		if phase.CurrentPhase != lastPhase {
			logger.Info("analysis phase changed",
				"job_id", tr.JobID(),
				"phase", phase.CurrentPhase,
				"name", models.PhaseName(phase.CurrentPhase))
			lastPhase = phase.CurrentPhase
		}
	}
	return nil
}

func reportAnalysis(tr *tracker.AnalysisTracker) error {
	phase := tr.Phase()
	switch phase.State {
	case models.AnalysisFailed:
		return fmt.Errorf("analysis %s failed", tr.JobID())
	case models.AnalysisCancelled:
		fmt.Printf("Analysis %s was cancelled\n", tr.JobID())
		return nil
	}

	result := tr.Result()
	if result == nil {
		// Terminal completed without a cached payload only happens when the
		// user backgrounded the UI early.
		return nil
	}

	fmt.Printf("Subject: %s\n", result.Subject)
	for _, c := range result.Clusters {
		fmt.Printf("  %s: %d questions\n", c.Name, c.Size)
	}
	if len(result.HotTopics) > 0 {
		fmt.Println("Hot topics:")
		for _, topic := range result.HotTopics {
			fmt.Printf("  - %s\n", topic)
		}
	}
	return nil
}
