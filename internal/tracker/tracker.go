// Package tracker drives the client-side lifecycle of background
// exam-processing jobs: it owns the tracked record set, decides when
// polling must run, and gates user commands by job state.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/acssjr/examscan/internal/models"
	"github.com/acssjr/examscan/internal/notify"
)

// State-gate rejections. Commands outside their legal states fail with one
// of these and never mutate the record.
var (
	ErrUnknownJob  = errors.New("job not tracked")
	ErrNotFailed   = errors.New("job is not in a failed state")
	ErrNotActive   = errors.New("job cannot be cancelled in its current state")
	ErrNotTerminal = errors.New("job is still active")
)

// DefaultPollInterval is the ingestion status refresh cadence. Fixed, not
// adaptive: fine for a handful of concurrent jobs.
const DefaultPollInterval = 3 * time.Second

// StatusSource abstracts the backend job service. The HTTP client satisfies
// it; tests and push-based transports supply their own.
type StatusSource interface {
	QueryStatus(ctx context.Context, scope string) ([]models.JobRecord, error)
	RetryJob(ctx context.Context, id string) error
	CancelJob(ctx context.Context, id string) error
	DeleteJob(ctx context.Context, id string) error
}

// Notifier receives per-command failure notifications. *notify.Broker
// satisfies it.
type Notifier interface {
	Push(level notify.Level, message string) notify.Notification
}

// Options configures a Tracker.
type Options struct {
	Scope    string
	Interval time.Duration // poll cadence, DefaultPollInterval when zero
	Notifier Notifier      // optional
	Logger   *slog.Logger  // optional
}

// Tracker owns a collection of job records and keeps them consistent with
// backend truth. Records are mutated only here, in response to a status
// snapshot or a user command's resolution; readers get copies.
type Tracker struct {
	source   StatusSource
	scope    string
	interval time.Duration
	notifier Notifier
	logger   *slog.Logger

	mu         sync.RWMutex
	jobs       map[string]*models.JobRecord
	order      []string // registration order, for stable listing
	refreshing bool     // an in-flight refresh; overlapping ticks are skipped

	polling atomic.Bool
	wake    chan struct{}
}

// New creates a tracker over the given status source.
func New(source StatusSource, opts Options) *Tracker {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		source:   source,
		scope:    opts.Scope,
		interval: interval,
		notifier: opts.Notifier,
		logger:   logger,
		jobs:     make(map[string]*models.JobRecord),
		wake:     make(chan struct{}, 1),
	}
}

// HasActiveWork reports whether any record still requires polling. This
// predicate is the sole gate for the polling loop.
func HasActiveWork(records []models.JobRecord) bool {
	for _, r := range records {
		if r.State.IsActive() {
			return true
		}
	}
	return false
}

// HasActiveWork reports whether any tracked job still requires polling.
func (t *Tracker) HasActiveWork() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, j := range t.jobs {
		if j.State.IsActive() {
			return true
		}
	}
	return false
}

// Polling reports whether the refresh loop is currently ticking.
func (t *Tracker) Polling() bool {
	return t.polling.Load()
}

// Register adds newly accepted jobs to the tracked set and wakes the
// polling loop.
func (t *Tracker) Register(records ...models.JobRecord) {
	t.mu.Lock()
	for _, r := range records {
		r.Normalize()
		if _, ok := t.jobs[r.ID]; !ok {
			t.order = append(t.order, r.ID)
		}
		rec := r
		t.jobs[r.ID] = &rec
	}
	t.mu.Unlock()
	t.nudge()
}

// Jobs returns copies of all tracked records in registration order.
func (t *Tracker) Jobs() []models.JobRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.JobRecord, 0, len(t.order))
	for _, id := range t.order {
		if j, ok := t.jobs[id]; ok {
			out = append(out, *j)
		}
	}
	return out
}

// Job returns a copy of one tracked record.
func (t *Tracker) Job(id string) (models.JobRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	j, ok := t.jobs[id]
	if !ok {
		return models.JobRecord{}, false
	}
	return *j, true
}

// Refresh fetches the current snapshot and merges it into the tracked set.
// Safe with an empty tracked set. A tick arriving while a previous refresh
// is still outstanding is skipped, not queued. Transport failures are
// swallowed: refresh is periodic and self-healing, last-known state is
// retained.
func (t *Tracker) Refresh(ctx context.Context) error {
	t.mu.Lock()
	if t.refreshing {
		t.mu.Unlock()
		return nil
	}
	t.refreshing = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.refreshing = false
		t.mu.Unlock()
	}()

	snapshot, err := t.source.QueryStatus(ctx, t.scope)
	if err != nil {
		t.logger.Debug("status refresh failed, keeping last-known state", "error", err)
		return nil
	}

	t.ApplySnapshot(snapshot)
	return nil
}

// ApplySnapshot merges a full status snapshot into the tracked set. This is
// the single "new status observed" entry point shared by the poll loop and
// the push stream. Tracked jobs missing from the snapshot are retained;
// unknown jobs in the snapshot are adopted, which repopulates the set after
// a client restart. IDs never change.
func (t *Tracker) ApplySnapshot(records []models.JobRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, r := range records {
		r.Normalize()
		existing, ok := t.jobs[r.ID]
		if !ok {
			t.order = append(t.order, r.ID)
			rec := r
			t.jobs[r.ID] = &rec
			continue
		}
		if r.SubmittedAt.IsZero() {
			r.SubmittedAt = existing.SubmittedAt
		}
		if r.Label == "" {
			r.Label = existing.Label
		}
		*existing = r
	}
}

// Retry issues a retry command for a failed job. Local state is left
// untouched either way: the next snapshot is authoritative, and if the
// command itself fails the job stays failed so retry can be re-offered.
func (t *Tracker) Retry(ctx context.Context, id string) error {
	job, ok := t.Job(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownJob)
	}
	if !job.State.CanRetry() {
		return fmt.Errorf("%s (%s): %w", id, job.State, ErrNotFailed)
	}

	if err := t.source.RetryJob(ctx, id); err != nil {
		t.notifyError(fmt.Sprintf("retry of %s failed: %v", job.Label, err))
		return err
	}

	t.logger.Info("retry issued", "job_id", id)
	t.nudge()
	return nil
}

// Cancel issues a best-effort cancel for an in-flight job. The record does
// not flip locally; it becomes failed (errorDetail "cancelled") once a
// snapshot confirms, so display never diverges from backend truth.
func (t *Tracker) Cancel(ctx context.Context, id string) error {
	job, ok := t.Job(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownJob)
	}
	if !job.State.CanCancel() {
		return fmt.Errorf("%s (%s): %w", id, job.State, ErrNotActive)
	}

	if err := t.source.CancelJob(ctx, id); err != nil {
		t.notifyError(fmt.Sprintf("cancel of %s failed: %v", job.Label, err))
		return err
	}

	t.logger.Info("cancel issued", "job_id", id)
	t.nudge()
	return nil
}

// Delete removes a terminal job, locally and on the backend. The record
// leaves the tracked set only after the backend acknowledges.
func (t *Tracker) Delete(ctx context.Context, id string) error {
	job, ok := t.Job(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownJob)
	}
	if !job.State.CanDelete() {
		return fmt.Errorf("%s (%s): %w", id, job.State, ErrNotTerminal)
	}

	if err := t.source.DeleteJob(ctx, id); err != nil {
		t.notifyError(fmt.Sprintf("delete of %s failed: %v", job.Label, err))
		return err
	}

	t.mu.Lock()
	delete(t.jobs, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.mu.Unlock()

	t.logger.Info("job deleted", "job_id", id)
	return nil
}

// JobError ties a command failure to the job it was issued for.
type JobError struct {
	JobID string
	Err   error
}

func (e JobError) Error() string {
	return fmt.Sprintf("job %s: %v", e.JobID, e.Err)
}

func (e JobError) Unwrap() error { return e.Err }

// RetryAll retries every failed job. Commands are issued and resolved
// independently, never transactionally: one failure does not block the
// rest of the batch, and each failure is reported on its own.
func (t *Tracker) RetryAll(ctx context.Context) []JobError {
	var failures []JobError
	for _, job := range t.Jobs() {
		if !job.State.CanRetry() {
			continue
		}
		if err := t.Retry(ctx, job.ID); err != nil {
			failures = append(failures, JobError{JobID: job.ID, Err: err})
		}
	}
	return failures
}

// CancelAll cancels every in-flight job, with the same independent-failure
// semantics as RetryAll.
func (t *Tracker) CancelAll(ctx context.Context) []JobError {
	var failures []JobError
	for _, job := range t.Jobs() {
		if !job.State.CanCancel() {
			continue
		}
		if err := t.Cancel(ctx, job.ID); err != nil {
			failures = append(failures, JobError{JobID: job.ID, Err: err})
		}
	}
	return failures
}

// Run drives the polling loop until ctx is cancelled. The ticker runs iff
// HasActiveWork holds: it starts the moment a job enters an active state
// (via the registration/command wake-up) and stops the instant none remain,
// so no requests are made once the user's work is done. There is no
// absolute timeout; the loop polls for as long as work stays active.
func (t *Tracker) Run(ctx context.Context) error {
	for {
		if !t.HasActiveWork() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.wake:
				// A command ack may have changed backend state without any
				// local record being active yet (a just-retried job is still
				// failed locally). One refresh picks that up and restarts
				// the ticker if the job went active.
				if !t.HasActiveWork() {
					_ = t.Refresh(ctx)
				}
			}
			continue
		}

		t.polling.Store(true)
		ticker := time.NewTicker(t.interval)
		_ = t.Refresh(ctx)

		for t.HasActiveWork() {
			select {
			case <-ctx.Done():
				ticker.Stop()
				t.polling.Store(false)
				return ctx.Err()
			case <-t.wake:
				_ = t.Refresh(ctx)
			case <-ticker.C:
				_ = t.Refresh(ctx)
			}
		}

		ticker.Stop()
		t.polling.Store(false)
		t.logger.Debug("no active work, polling stopped")
	}
}

// nudge wakes the polling loop without blocking. Used after registration
// and after command acks, so a retried job is re-polled immediately even
// when the loop had gone idle.
func (t *Tracker) nudge() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Tracker) notifyError(msg string) {
	if t.notifier != nil {
		t.notifier.Push(notify.LevelError, msg)
	}
}
