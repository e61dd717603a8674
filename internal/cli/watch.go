package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/acssjr/examscan/internal/models"
	"github.com/acssjr/examscan/internal/tracker"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream job status updates from the backend",
	Long: `Subscribe to push-based status updates over a websocket and print
state transitions as they arrive. The stream drives the same tracking state
machine as polling; only the transport differs.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	tr := tracker.New(api, tracker.Options{
		Scope:    cfg.Scope,
		Notifier: broker,
		Logger:   logger,
	})

	// Seed from a snapshot so the first transitions have a baseline.
	if snapshot, err := api.QueryStatus(ctx, cfg.Scope); err == nil {
		tr.ApplySnapshot(snapshot)
	}

	last := make(map[string]models.JobState)
	for _, job := range tr.Jobs() {
		last[job.ID] = job.State
	}

	fmt.Println("Watching for status updates (Ctrl+C to stop)...")
	return api.StreamStatus(ctx, cfg.Scope, func(records []models.JobRecord) error {
		tr.ApplySnapshot(records)

		for _, job := range tr.Jobs() {
			if last[job.ID] == job.State {
				continue
			}
			last[job.ID] = job.State

			line := fmt.Sprintf("%s  %s -> %s", time.Now().Format("15:04:05"), job.Label, job.State)
			if job.State == models.JobStateFailed && job.ErrorDetail != "" {
				line += " (" + job.ErrorDetail + ")"
			}
			fmt.Println(line)
		}
		return nil
	})
}
