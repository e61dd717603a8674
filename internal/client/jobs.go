package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/acssjr/examscan/internal/models"
)

// jobPayload is the wire form of one ingestion job.
type jobPayload struct {
	ID           string               `json:"id"`
	Label        string               `json:"label"`
	Status       string               `json:"status"`
	ErrorDetail  string               `json:"errorDetail,omitempty"`
	Progress     *int                 `json:"progress,omitempty"`
	ResultCounts *models.ResultCounts `json:"resultCounts,omitempty"`
	SubmittedAt  time.Time            `json:"submittedAt"`
}

// toRecord converts a wire job into a JobRecord. An absent progress field
// means the backend has no numeric signal yet.
func (p jobPayload) toRecord() (models.JobRecord, error) {
	state, err := models.ParseJobState(p.Status)
	if err != nil {
		return models.JobRecord{}, err
	}
	rec := models.JobRecord{
		ID:           p.ID,
		Label:        p.Label,
		State:        state,
		ErrorDetail:  p.ErrorDetail,
		Progress:     models.ProgressUnknown,
		ResultCounts: p.ResultCounts,
		SubmittedAt:  p.SubmittedAt,
	}
	if p.Progress != nil {
		rec.Progress = *p.Progress
	}
	rec.Normalize()
	return rec, nil
}

// decodeJobs converts wire jobs, silently skipping entries whose status is
// outside the known set. The tracker retains its last-known state for any
// job missing from a snapshot, so skipping is safe.
func decodeJobs(payloads []jobPayload) []models.JobRecord {
	records := make([]models.JobRecord, 0, len(payloads))
	for _, p := range payloads {
		rec, err := p.toRecord()
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// SubmitIngestion asks the backend to ingest the named files and returns
// the accepted jobs, one per file, in initial pending state.
func (c *Client) SubmitIngestion(ctx context.Context, scope string, files []string) ([]models.JobRecord, error) {
	body := map[string]any{"scope": scope, "files": files}

	var result struct {
		Jobs []jobPayload `json:"jobs"`
	}
	if err := c.post(ctx, "/api/ingestions", body, &result); err != nil {
		return nil, fmt.Errorf("submit ingestion: %w", err)
	}
	return decodeJobs(result.Jobs), nil
}

// QueryStatus fetches the full current job snapshot for a project scope.
func (c *Client) QueryStatus(ctx context.Context, scope string) ([]models.JobRecord, error) {
	query := url.Values{}
	if scope != "" {
		query.Set("scope", scope)
	}

	var result struct {
		Jobs []jobPayload `json:"jobs"`
	}
	if err := c.get(ctx, "/api/jobs", query, &result); err != nil {
		return nil, fmt.Errorf("query status: %w", err)
	}
	return decodeJobs(result.Jobs), nil
}

// RetryJob asks the backend to re-run a failed job.
func (c *Client) RetryJob(ctx context.Context, id string) error {
	if err := c.post(ctx, "/api/jobs/"+url.PathEscape(id)+"/retry", nil, nil); err != nil {
		return fmt.Errorf("retry job %s: %w", id, err)
	}
	return nil
}

// CancelJob asks the backend to cancel an in-flight job. Best effort: the
// local record only changes once a later snapshot confirms it.
func (c *Client) CancelJob(ctx context.Context, id string) error {
	if err := c.post(ctx, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, nil); err != nil {
		return fmt.Errorf("cancel job %s: %w", id, err)
	}
	return nil
}

// DeleteJob removes a terminal job and its extracted questions.
func (c *Client) DeleteJob(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

// FetchQuestions returns the classified questions for a project scope.
func (c *Client) FetchQuestions(ctx context.Context, scope string) ([]models.Question, error) {
	query := url.Values{}
	if scope != "" {
		query.Set("scope", scope)
	}

	var result struct {
		Questions []models.Question `json:"questions"`
	}
	if err := c.get(ctx, "/api/questions", query, &result); err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	return result.Questions, nil
}
