package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/acssjr/examscan/internal/models"
	"github.com/acssjr/examscan/internal/notify"
)

// DefaultAnalysisPollInterval is the deep-analysis refresh cadence.
const DefaultAnalysisPollInterval = 2 * time.Second

// AnalysisSource abstracts the backend's deep-analysis operations.
type AnalysisSource interface {
	QueryAnalysisStatus(ctx context.Context, jobID string) (models.PhaseRecord, error)
	FetchAnalysisResult(ctx context.Context, jobID string) (*models.AnalysisResult, error)
	CancelAnalysis(ctx context.Context, jobID string) error
}

// AnalysisOptions configures an AnalysisTracker.
type AnalysisOptions struct {
	Interval time.Duration
	Notifier Notifier
	Logger   *slog.Logger
}

// AnalysisTracker follows one long-running four-phase analysis job. It
// enforces phase monotonicity across snapshots and fetches the structured
// result payload exactly once, on the refresh that first observes the
// completed state.
type AnalysisTracker struct {
	source   AnalysisSource
	jobID    string
	interval time.Duration
	notifier Notifier
	logger   *slog.Logger

	mu         sync.RWMutex
	phase      models.PhaseRecord
	result     *models.AnalysisResult
	refreshing bool
}

// NewAnalysis creates a tracker for one analysis job.
func NewAnalysis(source AnalysisSource, jobID string, opts AnalysisOptions) *AnalysisTracker {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultAnalysisPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisTracker{
		source:   source,
		jobID:    jobID,
		interval: interval,
		notifier: opts.Notifier,
		logger:   logger,
		phase: models.PhaseRecord{
			JobID:        jobID,
			State:        models.AnalysisPending,
			CurrentPhase: 1,
		},
	}
}

// JobID returns the tracked job's ID.
func (a *AnalysisTracker) JobID() string { return a.jobID }

// Phase returns a copy of the current phase snapshot.
func (a *AnalysisTracker) Phase() models.PhaseRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p := a.phase
	p.PhasesCompleted = append([]int(nil), a.phase.PhasesCompleted...)
	return p
}

// Result returns the cached result payload, or nil while the job has not
// completed (or the payload has not been fetched yet).
func (a *AnalysisTracker) Result() *models.AnalysisResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.result
}

// Done reports whether polling may stop: the job is terminal and, when it
// completed successfully, the result payload has been fetched.
func (a *AnalysisTracker) Done() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.phase.State.IsTerminal() {
		return false
	}
	return a.phase.State != models.AnalysisCompleted || a.result != nil
}

// Refresh fetches the current phase snapshot and merges it. Transport
// failures retain last-known state, like the job tracker's refresh.
// Observing the completed state for the first time triggers the one-time
// result fetch; later refreshes see the cached payload and do nothing.
func (a *AnalysisTracker) Refresh(ctx context.Context) error {
	a.mu.Lock()
	if a.refreshing {
		a.mu.Unlock()
		return nil
	}
	a.refreshing = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.refreshing = false
		a.mu.Unlock()
	}()

	incoming, err := a.source.QueryAnalysisStatus(ctx, a.jobID)
	if err != nil {
		a.logger.Debug("analysis refresh failed, keeping last-known state", "job_id", a.jobID, "error", err)
		return nil
	}

	a.mu.Lock()
	a.merge(incoming)
	justCompleted := a.phase.State == models.AnalysisCompleted && a.result == nil
	a.mu.Unlock()

	if justCompleted {
		result, err := a.source.FetchAnalysisResult(ctx, a.jobID)
		if err != nil {
			// Leave the cache empty; the next refresh retries the fetch.
			a.logger.Warn("analysis result fetch failed", "job_id", a.jobID, "error", err)
			return fmt.Errorf("fetch analysis result: %w", err)
		}
		a.mu.Lock()
		a.result = result
		a.mu.Unlock()
		a.logger.Info("analysis completed", "job_id", a.jobID)
	}
	return nil
}

// merge applies an incoming snapshot under a.mu. The current phase never
// decreases and the completed-phase prefix never shrinks, whatever an
// out-of-order snapshot claims.
func (a *AnalysisTracker) merge(incoming models.PhaseRecord) {
	cur := &a.phase

	cur.State = incoming.State

	if incoming.CurrentPhase > cur.CurrentPhase {
		cur.CurrentPhase = incoming.CurrentPhase
		cur.PhaseProgress = incoming.PhaseProgress
	} else if incoming.CurrentPhase == cur.CurrentPhase && incoming.PhaseProgress > cur.PhaseProgress {
		cur.PhaseProgress = incoming.PhaseProgress
	}

	if len(incoming.PhasesCompleted) > len(cur.PhasesCompleted) {
		cur.PhasesCompleted = append([]int(nil), incoming.PhasesCompleted...)
	}
}

// Cancel issues a best-effort cancel. Legal only while the job is pending
// or running; the local state flips only once a later refresh confirms.
func (a *AnalysisTracker) Cancel(ctx context.Context) error {
	phase := a.Phase()
	if !phase.State.CanCancel() {
		return fmt.Errorf("analysis %s (%s): %w", a.jobID, phase.State, ErrNotActive)
	}

	if err := a.source.CancelAnalysis(ctx, a.jobID); err != nil {
		if a.notifier != nil {
			a.notifier.Push(notify.LevelError, fmt.Sprintf("cancel of analysis %s failed: %v", a.jobID, err))
		}
		return err
	}

	a.logger.Info("analysis cancel issued", "job_id", a.jobID)
	return nil
}

// Run polls the job until it is done or ctx is cancelled. Once the job
// reaches a terminal state polling stops permanently.
func (a *AnalysisTracker) Run(ctx context.Context) error {
	_ = a.Refresh(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for !a.Done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = a.Refresh(ctx)
		}
	}
	return nil
}
