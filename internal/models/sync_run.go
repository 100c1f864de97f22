package models

import "time"

type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusSuccess    RunStatus = "success"
	RunStatusPartial    RunStatus = "partial"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
	RunStatusTimeout    RunStatus = "timeout"
)

func (s RunStatus) String() string {
	return string(s)
}

// Terminal reports whether the status is absorbing. A terminal run is never
// transitioned again; retries create a new run row instead.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusSuccess, RunStatusPartial, RunStatusFailed,
		RunStatusCancelled, RunStatusTimeout:
		return true
	}
	return false
}

type TriggerSource string

const (
	TriggerScheduled TriggerSource = "scheduled"
	TriggerManual    TriggerSource = "manual"
	TriggerAPI       TriggerSource = "api"
	TriggerWebhook   TriggerSource = "webhook"
	TriggerRetry     TriggerSource = "retry"
)

func (t TriggerSource) String() string {
	return string(t)
}

// SyncRun is one execution attempt of a configuration. Rows are append-only:
// a run is created in_progress, completed exactly once, and never deleted.
type SyncRun struct {
	ID              int64         `db:"id"`
	RunID           string        `db:"run_id"`
	ConfigurationID int64         `db:"configuration_id"`
	Status          RunStatus     `db:"status"`
	StartedAt       time.Time     `db:"started_at"`
	CompletedAt     *time.Time    `db:"completed_at"`
	DurationSeconds *float64      `db:"duration_seconds"`
	TriggeredBy     TriggerSource `db:"triggered_by"`
	TriggeredByUser *string       `db:"triggered_by_user"`

	RecordsProcessed  int `db:"records_processed"`
	RecordsCreated    int `db:"records_created"`
	RecordsUpdated    int `db:"records_updated"`
	RecordsSkipped    int `db:"records_skipped"`
	RecordsFailed     int `db:"records_failed"`
	RecordsConflicted int `db:"records_conflicted"`

	ErrorMessage *string `db:"error_message"`
	ErrorStack   *string `db:"error_stack"`

	RetryCount    int    `db:"retry_count"`
	PreviousLogID *int64 `db:"previous_log_id"`
}

// RunStatistics is the per-configuration aggregate exposed by GetSyncStatus.
type RunStatistics struct {
	TotalRuns         int64 `db:"total_runs"`
	SuccessfulRuns    int64 `db:"successful_runs"`
	PartialRuns       int64 `db:"partial_runs"`
	FailedRuns        int64 `db:"failed_runs"`
	RecordsProcessed  int64 `db:"records_processed"`
	RecordsFailed     int64 `db:"records_failed"`
	RecordsConflicted int64 `db:"records_conflicted"`
}
