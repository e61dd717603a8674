package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acssjr/examscan/internal/models"
	"github.com/acssjr/examscan/internal/notify"
)

// fakeSource is an in-memory StatusSource for tests.
type fakeSource struct {
	mu         sync.Mutex
	snapshot   []models.JobRecord
	queryErr   error
	retryErr   error
	cancelErr  error
	deleteErr  error
	queryCalls int
	retried    []string
	cancelled  []string
	deleted    []string
	queryGate  chan struct{} // when set, QueryStatus blocks until closed
}

func (f *fakeSource) QueryStatus(ctx context.Context, scope string) ([]models.JobRecord, error) {
	f.mu.Lock()
	f.queryCalls++
	gate := f.queryGate
	err := f.queryErr
	snapshot := append([]models.JobRecord(nil), f.snapshot...)
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (f *fakeSource) RetryJob(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retryErr != nil {
		return f.retryErr
	}
	f.retried = append(f.retried, id)
	return nil
}

func (f *fakeSource) CancelJob(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeSource) DeleteJob(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSource) setSnapshot(records ...models.JobRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = records
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryCalls
}

func job(id string, state models.JobState) models.JobRecord {
	return models.JobRecord{ID: id, Label: id + ".pdf", State: state, Progress: models.ProgressUnknown}
}

func newTestTracker(t *testing.T, source *fakeSource) (*Tracker, *notify.Broker) {
	t.Helper()
	broker := notify.NewBroker(10, time.Minute)
	tr := New(source, Options{
		Scope:    "test",
		Interval: 10 * time.Millisecond,
		Notifier: broker,
	})
	return tr, broker
}

func TestHasActiveWorkPredicate(t *testing.T) {
	tests := []struct {
		name    string
		records []models.JobRecord
		want    bool
	}{
		{"empty", nil, false},
		{"pending", []models.JobRecord{job("a", models.JobStatePending)}, true},
		{"validating", []models.JobRecord{job("a", models.JobStateValidating)}, true},
		{"processing", []models.JobRecord{job("a", models.JobStateProcessing)}, true},
		{"retrying", []models.JobRecord{job("a", models.JobStateRetrying)}, true},
		{"completed only", []models.JobRecord{job("a", models.JobStateCompleted)}, false},
		{"partial only", []models.JobRecord{job("a", models.JobStatePartial)}, false},
		{"failed only", []models.JobRecord{job("a", models.JobStateFailed)}, false},
		{"mixed", []models.JobRecord{job("a", models.JobStateFailed), job("b", models.JobStatePending)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasActiveWork(tt.records))
		})
	}
}

func TestCommandStateGates(t *testing.T) {
	allStates := []models.JobState{
		models.JobStatePending, models.JobStateValidating, models.JobStateProcessing,
		models.JobStateCompleted, models.JobStatePartial, models.JobStateFailed,
		models.JobStateRetrying,
	}

	for _, state := range allStates {
		t.Run(string(state), func(t *testing.T) {
			source := &fakeSource{}
			tr, _ := newTestTracker(t, source)
			tr.Register(job("j1", state))
			ctx := context.Background()

			if err := tr.Retry(ctx, "j1"); state.CanRetry() {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrNotFailed)
				assert.Empty(t, source.retried)
			}

			if err := tr.Cancel(ctx, "j1"); state.CanCancel() {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrNotActive)
				assert.Empty(t, source.cancelled)
			}

			if err := tr.Delete(ctx, "j1"); state.CanDelete() {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrNotTerminal)
			}

			// A rejected command never mutates the record.
			if !state.CanDelete() {
				got, ok := tr.Job("j1")
				require.True(t, ok, "job must remain tracked")
				assert.Equal(t, state, got.State)
			}
		})
	}
}

func TestCommandsOnUnknownJob(t *testing.T) {
	tr, _ := newTestTracker(t, &fakeSource{})
	ctx := context.Background()

	assert.ErrorIs(t, tr.Retry(ctx, "ghost"), ErrUnknownJob)
	assert.ErrorIs(t, tr.Cancel(ctx, "ghost"), ErrUnknownJob)
	assert.ErrorIs(t, tr.Delete(ctx, "ghost"), ErrUnknownJob)
}

func TestRefreshMergesSnapshot(t *testing.T) {
	source := &fakeSource{}
	tr, _ := newTestTracker(t, source)

	submitted := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	initial := job("j1", models.JobStatePending)
	initial.SubmittedAt = submitted
	tr.Register(initial)

	update := job("j1", models.JobStateProcessing)
	update.Progress = 40
	source.setSnapshot(update)

	require.NoError(t, tr.Refresh(context.Background()))

	got, ok := tr.Job("j1")
	require.True(t, ok)
	assert.Equal(t, models.JobStateProcessing, got.State)
	assert.Equal(t, 40, got.Progress)
	// Fields the snapshot omitted are retained, the ID never changes.
	assert.Equal(t, "j1", got.ID)
	assert.Equal(t, submitted, got.SubmittedAt)
}

func TestRefreshRetainsJobsMissingFromSnapshot(t *testing.T) {
	source := &fakeSource{}
	tr, _ := newTestTracker(t, source)
	tr.Register(job("j1", models.JobStateProcessing), job("j2", models.JobStateProcessing))

	// j2 disappears from one response; it must not be dropped.
	source.setSnapshot(job("j1", models.JobStateCompleted))
	require.NoError(t, tr.Refresh(context.Background()))

	_, ok := tr.Job("j2")
	assert.True(t, ok)
	assert.Len(t, tr.Jobs(), 2)
}

func TestRefreshAdoptsUnknownJobs(t *testing.T) {
	source := &fakeSource{}
	tr, _ := newTestTracker(t, source)

	// A restarted client starts with an empty tracked set; the snapshot
	// repopulates it.
	source.setSnapshot(job("j1", models.JobStateProcessing), job("j2", models.JobStateFailed))
	require.NoError(t, tr.Refresh(context.Background()))

	assert.Len(t, tr.Jobs(), 2)
}

func TestRefreshSwallowsTransportErrors(t *testing.T) {
	source := &fakeSource{queryErr: errors.New("connection refused")}
	tr, broker := newTestTracker(t, source)
	tr.Register(job("j1", models.JobStateProcessing))

	require.NoError(t, tr.Refresh(context.Background()))

	// Last-known state retained, no user-facing notification.
	got, ok := tr.Job("j1")
	require.True(t, ok)
	assert.Equal(t, models.JobStateProcessing, got.State)
	assert.Empty(t, broker.Pending())
}

func TestRefreshEmptyTrackedSetIsNoop(t *testing.T) {
	source := &fakeSource{}
	tr, _ := newTestTracker(t, source)
	require.NoError(t, tr.Refresh(context.Background()))
	assert.Empty(t, tr.Jobs())
}

func TestRefreshSkippedWhileInFlight(t *testing.T) {
	gate := make(chan struct{})
	source := &fakeSource{queryGate: gate}
	tr, _ := newTestTracker(t, source)
	tr.Register(job("j1", models.JobStateProcessing))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tr.Refresh(context.Background())
	}()

	// Wait until the first refresh is inside the source call.
	require.Eventually(t, func() bool { return source.calls() == 1 }, time.Second, time.Millisecond)

	// A tick firing now is skipped, not queued.
	require.NoError(t, tr.Refresh(context.Background()))
	assert.Equal(t, 1, source.calls())

	close(gate)
	<-done
}

func TestRetryFlow(t *testing.T) {
	source := &fakeSource{}
	tr, _ := newTestTracker(t, source)

	failed := job("j1", models.JobStateFailed)
	failed.ErrorDetail = "PDF corrupted"
	tr.Register(failed)
	ctx := context.Background()

	require.NoError(t, tr.Retry(ctx, "j1"))
	assert.Equal(t, []string{"j1"}, source.retried)

	// Optimistically unchanged: still failed until a snapshot says otherwise.
	got, _ := tr.Job("j1")
	assert.Equal(t, models.JobStateFailed, got.State)
	assert.Equal(t, "PDF corrupted", got.ErrorDetail)

	// Backend re-accepted the job.
	source.setSnapshot(job("j1", models.JobStatePending))
	require.NoError(t, tr.Refresh(ctx))

	got, _ = tr.Job("j1")
	assert.Equal(t, models.JobStatePending, got.State)
	assert.Empty(t, got.ErrorDetail)
	assert.True(t, tr.HasActiveWork())
}

func TestRetryCommandFailureLeavesStateAndNotifies(t *testing.T) {
	source := &fakeSource{retryErr: errors.New("backend unavailable")}
	tr, broker := newTestTracker(t, source)
	tr.Register(job("j1", models.JobStateFailed))

	err := tr.Retry(context.Background(), "j1")
	require.Error(t, err)

	got, _ := tr.Job("j1")
	assert.Equal(t, models.JobStateFailed, got.State, "retry can be re-offered")
	require.Len(t, broker.Pending(), 1)
	assert.Equal(t, notify.LevelError, broker.Pending()[0].Level)
}

func TestCancelDoesNotMutateLocally(t *testing.T) {
	source := &fakeSource{}
	tr, _ := newTestTracker(t, source)
	tr.Register(job("j1", models.JobStateProcessing))
	ctx := context.Background()

	require.NoError(t, tr.Cancel(ctx, "j1"))
	assert.Equal(t, []string{"j1"}, source.cancelled)

	// Cancellation is best effort; displayed state follows backend truth.
	got, _ := tr.Job("j1")
	assert.Equal(t, models.JobStateProcessing, got.State)

	cancelled := job("j1", models.JobStateFailed)
	cancelled.ErrorDetail = "cancelled"
	source.setSnapshot(cancelled)
	require.NoError(t, tr.Refresh(ctx))

	got, _ = tr.Job("j1")
	assert.Equal(t, models.JobStateFailed, got.State)
	assert.Equal(t, "cancelled", got.ErrorDetail)
}

func TestDeleteBlockedWhileActive(t *testing.T) {
	source := &fakeSource{}
	tr, _ := newTestTracker(t, source)
	tr.Register(job("j1", models.JobStateProcessing))

	err := tr.Delete(context.Background(), "j1")
	assert.ErrorIs(t, err, ErrNotTerminal)

	_, ok := tr.Job("j1")
	assert.True(t, ok, "job must remain in the tracked set")
	assert.Empty(t, source.deleted)
}

func TestDeleteRemovesAfterBackendAck(t *testing.T) {
	source := &fakeSource{}
	tr, _ := newTestTracker(t, source)
	tr.Register(job("j1", models.JobStateCompleted), job("j2", models.JobStateFailed))

	require.NoError(t, tr.Delete(context.Background(), "j1"))

	assert.Equal(t, []string{"j1"}, source.deleted)
	_, ok := tr.Job("j1")
	assert.False(t, ok)
	assert.Len(t, tr.Jobs(), 1)
}

func TestDeleteKeptOnBackendFailure(t *testing.T) {
	source := &fakeSource{deleteErr: errors.New("backend unavailable")}
	tr, broker := newTestTracker(t, source)
	tr.Register(job("j1", models.JobStateFailed))

	require.Error(t, tr.Delete(context.Background(), "j1"))

	_, ok := tr.Job("j1")
	assert.True(t, ok, "record kept until the backend acknowledges")
	assert.Len(t, broker.Pending(), 1)
}

func TestRetryAllIndependentFailures(t *testing.T) {
	source := &fakeSource{}
	tr, broker := newTestTracker(t, source)
	tr.Register(
		job("j1", models.JobStateFailed),
		job("j2", models.JobStateFailed),
		job("j3", models.JobStateCompleted),
	)

	// Fail every command, then check each failure was reported on its own.
	source.retryErr = errors.New("backend unavailable")
	failures := tr.RetryAll(context.Background())

	require.Len(t, failures, 2)
	assert.Equal(t, "j1", failures[0].JobID)
	assert.Equal(t, "j2", failures[1].JobID)
	assert.Len(t, broker.Pending(), 2, "one notification per failed command")
}

func TestCancelAllOnlyEligible(t *testing.T) {
	source := &fakeSource{}
	tr, _ := newTestTracker(t, source)
	tr.Register(
		job("j1", models.JobStatePending),
		job("j2", models.JobStateProcessing),
		job("j3", models.JobStateFailed),
		job("j4", models.JobStateCompleted),
	)

	failures := tr.CancelAll(context.Background())

	assert.Empty(t, failures)
	assert.ElementsMatch(t, []string{"j1", "j2"}, source.cancelled)
}

func TestRunPollsWhileActiveAndStopsWhenDone(t *testing.T) {
	source := &fakeSource{}
	source.setSnapshot(job("j1", models.JobStateProcessing))
	tr, _ := newTestTracker(t, source)
	tr.Register(job("j1", models.JobStateProcessing))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = tr.Run(ctx) }()

	require.Eventually(t, tr.Polling, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return source.calls() >= 2 }, time.Second, time.Millisecond)

	// Work finishes; polling must stop on its own.
	source.setSnapshot(job("j1", models.JobStateCompleted))
	require.Eventually(t, func() bool { return !tr.Polling() }, time.Second, time.Millisecond)
	assert.False(t, tr.HasActiveWork())

	// Let any wake-up already queued before idling drain first.
	time.Sleep(20 * time.Millisecond)
	calls := source.calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, source.calls(), "no requests once work is done")
}

func TestRunRestartsPollingAfterRetry(t *testing.T) {
	source := &fakeSource{}
	source.setSnapshot(job("j1", models.JobStateFailed))
	tr, _ := newTestTracker(t, source)
	tr.Register(job("j1", models.JobStateFailed))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = tr.Run(ctx) }()

	assert.False(t, tr.Polling())

	// Retry succeeds and the backend reports the job active again.
	source.setSnapshot(job("j1", models.JobStatePending))
	require.NoError(t, tr.Retry(ctx, "j1"))

	require.Eventually(t, tr.Polling, time.Second, time.Millisecond)
}

func TestApplySnapshotSharedByPushTransport(t *testing.T) {
	tr, _ := newTestTracker(t, &fakeSource{})
	tr.Register(job("j1", models.JobStatePending))

	// A push transport delivers the same payloads refresh would.
	tr.ApplySnapshot([]models.JobRecord{job("j1", models.JobStateProcessing)})

	got, _ := tr.Job("j1")
	assert.Equal(t, models.JobStateProcessing, got.State)
}
