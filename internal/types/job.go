package types

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of a background test run.
type JobStatus string

// Job statuses. Transitions only move forward:
// pending -> running -> completed | failed.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

func (s JobStatus) rank() int {
	switch s {
	case JobPending:
		return 0
	case JobRunning:
		return 1
	case JobCompleted, JobFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether a job may move from one status to another.
// Staying in a non-terminal status is allowed so progress can be reported.
func CanTransition(from, to JobStatus) bool {
	if from.rank() < 0 || to.rank() < 0 {
		return false
	}
	if from.Terminal() {
		return false
	}
	return to.rank() >= from.rank()
}

// ProviderResult is the outcome of one provider's pipeline within a run.
type ProviderResult struct {
	Provider      string `json:"provider"`
	Success       bool   `json:"success"`
	TotalQueries  int    `json:"totalQueries"`
	Error         string `json:"error,omitempty"`
	QueriesPath   string `json:"queriesPath,omitempty"`
	ResponsesPath string `json:"responsesPath,omitempty"`
	ReportPath    string `json:"reportPath,omitempty"`
	CollectError  string `json:"collectError,omitempty"`
	ReportError   string `json:"reportError,omitempty"`
}

// Job is a background test run tracked by the job store.
type Job struct {
	ID          string           `json:"job_id"`
	Status      JobStatus        `json:"status"`
	Progress    int              `json:"progress"`
	Message     string           `json:"message"`
	Results     []ProviderResult `json:"results,omitempty"`
	ReportPaths []string         `json:"report_paths,omitempty"`
	RunID       string           `json:"test_run_id,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// JobStatusPayload is the status document a backend returns while a job runs.
// Results are kept raw so completed payloads pass through unchanged.
type JobStatusPayload struct {
	Status   JobStatus       `json:"status"`
	Progress int             `json:"progress"`
	Message  string          `json:"message"`
	Results  json.RawMessage `json:"results,omitempty"`
	Error    string          `json:"error,omitempty"`
}
