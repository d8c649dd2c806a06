package models

import "time"

// RunStatus is the terminal state of an export run
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusInterrupted RunStatus = "interrupted"
	RunStatusFailed      RunStatus = "failed"
)

// RunSummary aggregates the export log counters of a run
type RunSummary struct {
	Projects            int `json:"projects"`
	ProjectsExported    int `json:"projects_exported"`
	Forms               int `json:"forms"`
	FormsFailed         int `json:"forms_failed"`
	PageErrors          int `json:"page_errors"`
	Documents           int `json:"documents"`
	DocumentPages       int `json:"document_pages"`
	UnreadableDocuments int `json:"unreadable_documents"`
}

// RunRecord is the persisted history entry of one export run
type RunRecord struct {
	ID            string     `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    time.Time  `json:"finished_at"`
	Status        RunStatus  `json:"status"`
	Summary       RunSummary `json:"summary"`
	ExportLogFile string     `json:"export_log_file"`
	Error         string     `json:"error,omitempty"`
}

// Duration returns how long the run took
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
