package model

import "time"

// RunStatus represents the current state of a 13F ingestion run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusSkipped  RunStatus = "skipped" // quarter already loaded
	RunStatusFailed   RunStatus = "failed"
)

// IsTerminal reports whether the run has stopped.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusComplete || s == RunStatusSkipped || s == RunStatusFailed
}

// Run is a single invocation of the 13F pipeline.
type Run struct {
	ID        string      `json:"id"`
	Quarter   string      `json:"quarter"`
	Force     bool        `json:"force"`
	Trigger   string      `json:"trigger"` // cli, api, schedule
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary holds the counters reported when a crawl finishes.
type RunSummary struct {
	Quarter          string        `json:"quarter"`
	IndexURL         string        `json:"index_url,omitempty"`
	DailyIndexes     int           `json:"daily_indexes"`
	DailyIndexErrors int           `json:"daily_index_errors"`
	Filings          int           `json:"filings"`
	Processed        int           `json:"processed"`
	Skipped          int           `json:"skipped"`
	Failed           int           `json:"failed"`
	Holdings         int64         `json:"holdings"`
	Elapsed          time.Duration `json:"elapsed"`
}
