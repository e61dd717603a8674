package models

import (
	"fmt"
	"time"
)

// AnalysisState is the lifecycle state of one deep-analysis job.
type AnalysisState string

const (
	AnalysisPending   AnalysisState = "pending"
	AnalysisRunning   AnalysisState = "running"
	AnalysisCompleted AnalysisState = "completed"
	AnalysisFailed    AnalysisState = "failed"
	AnalysisCancelled AnalysisState = "cancelled"
)

// PhaseCount is the number of pipeline phases in a deep analysis.
const PhaseCount = 4

// phaseNames indexes display names by phase number (1-based).
var phaseNames = [PhaseCount + 1]string{"", "preparing", "clustering", "analyzing", "reporting"}

// PhaseName returns the display name for a phase number, or "unknown" for
// values outside 1..PhaseCount.
func PhaseName(phase int) string {
	if phase < 1 || phase > PhaseCount {
		return "unknown"
	}
	return phaseNames[phase]
}

// ParseAnalysisState maps a raw backend status value into the closed
// AnalysisState set.
func ParseAnalysisState(raw string) (AnalysisState, error) {
	switch raw {
	case "pending", "queued", "accepted":
		return AnalysisPending, nil
	case "running", "processing", "in_progress":
		return AnalysisRunning, nil
	case "completed", "done", "success":
		return AnalysisCompleted, nil
	case "failed", "error":
		return AnalysisFailed, nil
	case "cancelled", "canceled":
		return AnalysisCancelled, nil
	default:
		return "", fmt.Errorf("unknown analysis status %q", raw)
	}
}

// IsTerminal reports whether the analysis has reached a final state.
func (s AnalysisState) IsTerminal() bool {
	switch s {
	case AnalysisCompleted, AnalysisFailed, AnalysisCancelled:
		return true
	default:
		return false
	}
}

// CanCancel reports whether a cancel command is legal in this state.
func (s AnalysisState) CanCancel() bool {
	return s == AnalysisPending || s == AnalysisRunning
}

// PhaseRecord is the status snapshot of one deep-analysis job. The pipeline
// runs four ordered phases; CurrentPhase and PhaseProgress are meaningful
// only while the job is pending or running.
type PhaseRecord struct {
	JobID           string
	State           AnalysisState
	CurrentPhase    int // 1..PhaseCount
	PhaseProgress   int // 0-100, intra-phase completion
	PhasesCompleted []int
}

// OverallProgress folds phase index and intra-phase progress into a single
// 0-100 number. Each phase counts as an equal 25% slice regardless of its
// true cost; that keeps the bar continuous without measuring phase weights.
func (p PhaseRecord) OverallProgress() float64 {
	if p.State == AnalysisCompleted {
		return 100
	}
	if p.CurrentPhase < 1 {
		return 0
	}
	overall := float64(p.CurrentPhase-1)*25 + float64(p.PhaseProgress)/100*25
	if overall > 100 {
		overall = 100
	}
	return overall
}

// AnalysisCluster is one cluster of related questions in an analysis result.
type AnalysisCluster struct {
	Name     string   `json:"name"`
	Size     int      `json:"size"`
	Keywords []string `json:"keywords,omitempty"`
}

// AnalysisResult is the structured payload fetched once when a deep-analysis
// job completes.
type AnalysisResult struct {
	JobID       string            `json:"jobId"`
	Subject     string            `json:"subject"`
	Clusters    []AnalysisCluster `json:"clusters"`
	HotTopics   []string          `json:"hotTopics,omitempty"`
	GeneratedAt time.Time         `json:"generatedAt"`
}
