// Package models defines data structures shared by the examscan client.
package models

import (
	"fmt"
	"time"
)

// JobState is the lifecycle state of one ingestion job.
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateValidating JobState = "validating"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStatePartial    JobState = "partial"
	JobStateFailed     JobState = "failed"
	JobStateRetrying   JobState = "retrying"
)

// ProgressUnknown marks a job for which the backend has not yet reported a
// numeric progress value.
const ProgressUnknown = -1

// ParseJobState maps a raw backend status value into the closed JobState set.
// Backends have drifted on naming over time, so common aliases are accepted.
// Unknown values are rejected so the caller can retain its last-known state.
func ParseJobState(raw string) (JobState, error) {
	switch raw {
	case "pending", "queued", "accepted":
		return JobStatePending, nil
	case "validating", "validation":
		return JobStateValidating, nil
	case "processing", "running", "in_progress", "extracting":
		return JobStateProcessing, nil
	case "completed", "done", "success":
		return JobStateCompleted, nil
	case "partial", "needs_review", "completed_with_warnings":
		return JobStatePartial, nil
	case "failed", "error", "cancelled":
		return JobStateFailed, nil
	case "retrying", "retry_pending":
		return JobStateRetrying, nil
	default:
		return "", fmt.Errorf("unknown job status %q", raw)
	}
}

// IsActive reports whether the state still requires polling.
func (s JobState) IsActive() bool {
	switch s {
	case JobStatePending, JobStateValidating, JobStateProcessing, JobStateRetrying:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the job has reached a final state.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateCompleted, JobStatePartial, JobStateFailed:
		return true
	default:
		return false
	}
}

// CanRetry reports whether a retry command is legal in this state.
func (s JobState) CanRetry() bool {
	return s == JobStateFailed
}

// CanCancel reports whether a cancel command is legal in this state.
func (s JobState) CanCancel() bool {
	switch s {
	case JobStatePending, JobStateValidating, JobStateProcessing:
		return true
	default:
		return false
	}
}

// CanDelete reports whether a delete command is legal in this state.
// In-flight jobs may never be deleted; the backend is still mutating them.
func (s JobState) CanDelete() bool {
	return s.IsTerminal()
}

// ResultCounts summarizes an ingestion run once it reaches a terminal
// success state.
type ResultCounts struct {
	Total       int `json:"total"`
	NeedsReview int `json:"needsReview"`
}

// JobRecord is one tracked unit of background work: the extraction and
// classification of a single uploaded exam document.
type JobRecord struct {
	ID           string
	Label        string // source file name, informational only
	State        JobState
	ErrorDetail  string // set iff State == failed
	Progress     int    // 0-100, ProgressUnknown while indeterminate
	ResultCounts *ResultCounts
	SubmittedAt  time.Time
}

// ProgressKnown reports whether a numeric progress signal has arrived.
func (j JobRecord) ProgressKnown() bool {
	return j.Progress != ProgressUnknown
}

// Normalize enforces the record invariants after a decode or merge:
// ErrorDetail only on failed jobs, ResultCounts only on completed/partial
// jobs, numeric progress only while validating/processing.
func (j *JobRecord) Normalize() {
	if j.State != JobStateFailed {
		j.ErrorDetail = ""
	}
	if j.State != JobStateCompleted && j.State != JobStatePartial {
		j.ResultCounts = nil
	}
	switch j.State {
	case JobStateValidating, JobStateProcessing:
		if j.Progress < 0 {
			j.Progress = ProgressUnknown
		} else if j.Progress > 100 {
			j.Progress = 100
		}
	default:
		j.Progress = ProgressUnknown
	}
}
