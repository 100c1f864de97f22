package repository

import (
	"context"
	"time"

	"qms-sync/internal/models"
)

// ConfigurationFilter narrows FindAll. Nil fields are not applied; the
// store translates set fields into parameterized predicates.
type ConfigurationFilter struct {
	Enabled      *bool
	SystemType   *models.SystemType
	EntityType   *models.EntityType
	ScheduleType *models.ScheduleType
}

// StatsUpdate is the post-run mutation applied to a configuration.
type StatsUpdate struct {
	Status           models.RunStatus
	RunAt            time.Time
	NextRunAt        *time.Time
	RecordsProcessed int
	RecordsFailed    int
	ErrorMessage     *string
	// AdvanceWatermark moves last_sync_timestamp; left nil on anything but a
	// fully successful delta-enabled run.
	AdvanceWatermark *time.Time
}

type ConfigurationRepository interface {
	Create(ctx context.Context, cfg *models.SyncConfiguration) (*models.SyncConfiguration, error)
	FindByID(ctx context.Context, id int64) (*models.SyncConfiguration, error)
	FindAll(ctx context.Context, filter ConfigurationFilter) ([]*models.SyncConfiguration, error)
	Update(ctx context.Context, cfg *models.SyncConfiguration) error
	Delete(ctx context.Context, id int64) error
	FindDueForSync(ctx context.Context, now time.Time) ([]*models.SyncConfiguration, error)
	UpdateSyncStats(ctx context.Context, id int64, update StatsUpdate) error
	MarkRunning(ctx context.Context, id int64, at time.Time) error
}

// RunCompletion is the single terminal transition applied to a run row.
type RunCompletion struct {
	Status       models.RunStatus
	CompletedAt  time.Time
	Processed    int
	Created      int
	Updated      int
	Skipped      int
	Failed       int
	Conflicted   int
	ErrorMessage *string
	ErrorStack   *string
}

type RunRepository interface {
	Create(ctx context.Context, run *models.SyncRun) (*models.SyncRun, error)
	FindByID(ctx context.Context, id int64) (*models.SyncRun, error)
	Complete(ctx context.Context, id int64, completion RunCompletion) error
	MarkCancelled(ctx context.Context, id int64, at time.Time) error
	FindRecentByConfiguration(ctx context.Context, configurationID int64, limit int) ([]*models.SyncRun, error)
	StatsByConfiguration(ctx context.Context, configurationID int64) (*models.RunStatistics, error)
}

// ConflictFilter narrows conflict listing; Limit <= 0 means no limit.
type ConflictFilter struct {
	Status               *models.ConflictStatus
	Severity             *models.ConflictSeverity
	EntityType           *models.EntityType
	RequiresManualReview *bool
	Limit                int
}

type ConflictRepository interface {
	Create(ctx context.Context, conflict *models.SyncConflict) (*models.SyncConflict, error)
	FindByID(ctx context.Context, id int64) (*models.SyncConflict, error)
	FindByConfigurationID(ctx context.Context, configurationID int64, filter ConflictFilter) ([]*models.SyncConflict, error)
	Resolve(ctx context.Context, id int64, resolution models.ConflictResolution) (*models.SyncConflict, error)
}

// ChangeSource reads changed rows out of the QMS entity tables for delta
// detection. Implementations must resolve table and column names from the
// EntityType enumeration, never from caller-supplied strings.
type ChangeSource interface {
	FindChangedSince(ctx context.Context, entity models.EntityType, since time.Time, limit int) ([]map[string]interface{}, error)
	FindChangedAfterID(ctx context.Context, entity models.EntityType, afterID int64, limit int) ([]map[string]interface{}, error)
}
