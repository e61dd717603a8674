package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobState(t *testing.T) {
	tests := []struct {
		raw     string
		want    JobState
		wantErr bool
	}{
		{"pending", JobStatePending, false},
		{"queued", JobStatePending, false},
		{"accepted", JobStatePending, false},
		{"validating", JobStateValidating, false},
		{"processing", JobStateProcessing, false},
		{"in_progress", JobStateProcessing, false},
		{"extracting", JobStateProcessing, false},
		{"completed", JobStateCompleted, false},
		{"done", JobStateCompleted, false},
		{"partial", JobStatePartial, false},
		{"needs_review", JobStatePartial, false},
		{"failed", JobStateFailed, false},
		{"cancelled", JobStateFailed, false},
		{"retrying", JobStateRetrying, false},
		{"", "", true},
		{"exploded", "", true},
		{"PENDING", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseJobState(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJobStatePredicates(t *testing.T) {
	active := []JobState{JobStatePending, JobStateValidating, JobStateProcessing, JobStateRetrying}
	terminal := []JobState{JobStateCompleted, JobStatePartial, JobStateFailed}

	for _, s := range active {
		assert.True(t, s.IsActive(), "%s should be active", s)
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
		assert.False(t, s.CanDelete(), "%s should not be deletable", s)
	}
	for _, s := range terminal {
		assert.False(t, s.IsActive(), "%s should not be active", s)
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
		assert.True(t, s.CanDelete(), "%s should be deletable", s)
	}

	assert.True(t, JobStateFailed.CanRetry())
	assert.False(t, JobStateCompleted.CanRetry())
	assert.False(t, JobStatePending.CanRetry())

	assert.True(t, JobStatePending.CanCancel())
	assert.True(t, JobStateValidating.CanCancel())
	assert.True(t, JobStateProcessing.CanCancel())
	assert.False(t, JobStateRetrying.CanCancel())
	assert.False(t, JobStateFailed.CanCancel())
	assert.False(t, JobStateCompleted.CanCancel())
}

func TestJobRecordNormalize(t *testing.T) {
	t.Run("error detail cleared unless failed", func(t *testing.T) {
		j := JobRecord{State: JobStateCompleted, ErrorDetail: "leftover"}
		j.Normalize()
		assert.Empty(t, j.ErrorDetail)

		j = JobRecord{State: JobStateFailed, ErrorDetail: "PDF corrupted"}
		j.Normalize()
		assert.Equal(t, "PDF corrupted", j.ErrorDetail)
	})

	t.Run("result counts only on terminal success", func(t *testing.T) {
		counts := &ResultCounts{Total: 10, NeedsReview: 2}

		j := JobRecord{State: JobStateProcessing, ResultCounts: counts}
		j.Normalize()
		assert.Nil(t, j.ResultCounts)

		j = JobRecord{State: JobStatePartial, ResultCounts: counts}
		j.Normalize()
		assert.Equal(t, counts, j.ResultCounts)
	})

	t.Run("progress meaningful only while validating or processing", func(t *testing.T) {
		j := JobRecord{State: JobStatePending, Progress: 40}
		j.Normalize()
		assert.False(t, j.ProgressKnown())

		j = JobRecord{State: JobStateProcessing, Progress: 40}
		j.Normalize()
		assert.Equal(t, 40, j.Progress)

		j = JobRecord{State: JobStateProcessing, Progress: 120}
		j.Normalize()
		assert.Equal(t, 100, j.Progress)

		j = JobRecord{State: JobStateValidating, Progress: -5}
		j.Normalize()
		assert.Equal(t, ProgressUnknown, j.Progress)
	})
}
