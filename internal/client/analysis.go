package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/acssjr/examscan/internal/incidence"
	"github.com/acssjr/examscan/internal/models"
)

// phasePayload is the wire form of a deep-analysis status snapshot.
type phasePayload struct {
	JobID           string `json:"jobId"`
	Status          string `json:"status"`
	CurrentPhase    int    `json:"currentPhase,omitempty"`
	PhaseProgress   int    `json:"phaseProgress,omitempty"`
	PhasesCompleted []int  `json:"phasesCompleted,omitempty"`
}

func (p phasePayload) toRecord() (models.PhaseRecord, error) {
	state, err := models.ParseAnalysisState(p.Status)
	if err != nil {
		return models.PhaseRecord{}, err
	}
	return models.PhaseRecord{
		JobID:           p.JobID,
		State:           state,
		CurrentPhase:    p.CurrentPhase,
		PhaseProgress:   p.PhaseProgress,
		PhasesCompleted: p.PhasesCompleted,
	}, nil
}

// SubmitAnalysis starts a deep-analysis job over the questions of one
// subject area and returns the new job's ID.
func (c *Client) SubmitAnalysis(ctx context.Context, scope, subject string) (string, error) {
	body := map[string]any{"scope": scope, "subject": subject}

	var result struct {
		JobID string `json:"jobId"`
	}
	if err := c.post(ctx, "/api/analyses", body, &result); err != nil {
		return "", fmt.Errorf("submit analysis: %w", err)
	}
	return result.JobID, nil
}

// QueryAnalysisStatus fetches the current phase snapshot of one analysis job.
func (c *Client) QueryAnalysisStatus(ctx context.Context, jobID string) (models.PhaseRecord, error) {
	var payload phasePayload
	if err := c.get(ctx, "/api/analyses/"+url.PathEscape(jobID), nil, &payload); err != nil {
		return models.PhaseRecord{}, fmt.Errorf("query analysis status: %w", err)
	}

	rec, err := payload.toRecord()
	if err != nil {
		return models.PhaseRecord{}, fmt.Errorf("query analysis status: %w", err)
	}
	return rec, nil
}

// FetchAnalysisResult fetches the structured result payload of a completed
// analysis job.
func (c *Client) FetchAnalysisResult(ctx context.Context, jobID string) (*models.AnalysisResult, error) {
	var result models.AnalysisResult
	if err := c.get(ctx, "/api/analyses/"+url.PathEscape(jobID)+"/result", nil, &result); err != nil {
		return nil, fmt.Errorf("fetch analysis result: %w", err)
	}
	return &result, nil
}

// CancelAnalysis asks the backend to cancel a pending or running analysis.
func (c *Client) CancelAnalysis(ctx context.Context, jobID string) error {
	if err := c.post(ctx, "/api/analyses/"+url.PathEscape(jobID)+"/cancel", nil, nil); err != nil {
		return fmt.Errorf("cancel analysis %s: %w", jobID, err)
	}
	return nil
}

// FetchTaxonomy returns the authored taxonomy skeleton for a project scope,
// or nil when the backend has none (the aggregator then derives buckets
// ad hoc).
func (c *Client) FetchTaxonomy(ctx context.Context, scope string) ([]*incidence.Skeleton, error) {
	query := url.Values{}
	if scope != "" {
		query.Set("scope", scope)
	}

	var result struct {
		Subjects []*incidence.Skeleton `json:"subjects"`
	}
	if err := c.get(ctx, "/api/taxonomy", query, &result); err != nil {
		return nil, fmt.Errorf("fetch taxonomy: %w", err)
	}
	return result.Subjects, nil
}
