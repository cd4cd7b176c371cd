package models

import "time"

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// IngestRun records one document ingestion attempt.
type IngestRun struct {
	ID          string         `json:"run_id"`
	Source      string         `json:"source"`
	Status      RunStatus      `json:"status"`
	ItemsFound  int            `json:"items_found"`
	ItemsSaved  int            `json:"items_saved"`
	Errors      int            `json:"errors"`
	Details     map[string]any `json:"details,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}
