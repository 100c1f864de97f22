package audit

import (
	"context"

	"github.com/rs/zerolog"

	"qms-sync/internal/models"
	"qms-sync/pkg/log"
)

// Notifier is the audit/notification boundary. Completed runs and created
// conflicts are reported here fire-and-forget; a notifier failure must never
// fail the sync run itself.
type Notifier interface {
	RunCompleted(ctx context.Context, run *models.SyncRun)
	ConflictDetected(ctx context.Context, conflict *models.SyncConflict)
}

// LogNotifier writes audit events to the structured log. It stands in for
// the external audit-trail service; swapping implementations happens at the
// composition root.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{
		logger: log.Logger.With().Str("component", "audit_notifier").Logger(),
	}
}

func (n *LogNotifier) RunCompleted(_ context.Context, run *models.SyncRun) {
	n.logger.Info().
		Str("run_id", run.RunID).
		Int64("configuration_id", run.ConfigurationID).
		Str("status", run.Status.String()).
		Int("records_processed", run.RecordsProcessed).
		Int("records_failed", run.RecordsFailed).
		Int("records_conflicted", run.RecordsConflicted).
		Msg("Sync run completed")
}

func (n *LogNotifier) ConflictDetected(_ context.Context, conflict *models.SyncConflict) {
	n.logger.Warn().
		Int64("conflict_id", conflict.ID).
		Int64("configuration_id", conflict.ConfigurationID).
		Str("entity_type", conflict.EntityType.String()).
		Str("entity_id", conflict.EntityID).
		Str("field", conflict.FieldName).
		Msg("Sync conflict detected")
}
