package adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"qms-sync/internal/audit"
	"qms-sync/internal/delta"
	"qms-sync/internal/models"
	"qms-sync/internal/remote"
	"qms-sync/internal/repository"
	"qms-sync/pkg/converter"
)

// fullSyncLimit bounds the record fetch when delta is disabled or detection
// fell open without enumerating changes.
const fullSyncLimit = 5000

// volatileFields are local bookkeeping columns that never participate in
// conflict comparison.
//
//nolint:gochecknoglobals
var volatileFields = map[string]struct{}{
	"id":         {},
	"created_at": {},
	"updated_at": {},
}

// entitySyncer runs the shared fetch/compare/push flow for one entity type.
// Both system adapters delegate their implemented routines here; only the
// remote client and field mapping differ per system.
type entitySyncer struct {
	detector  delta.Detector
	source    repository.ChangeSource
	client    remote.Client
	conflicts repository.ConflictRepository
	notifier  audit.Notifier
	logger    zerolog.Logger
}

func (s *entitySyncer) run(ctx context.Context, cfg *models.SyncConfiguration, runID string) (*models.SyncResult, error) {
	logger := s.logger.With().
		Str("run_id", runID).
		Int64("configuration_id", cfg.ID).
		Str("entity_type", cfg.EntityType.String()).
		Logger()

	changeSet := s.detector.DetectChanges(ctx, cfg)
	if cfg.DeltaEnabled && !changeSet.HasChanges {
		logger.Info().Msg("No changes since last watermark, skipping sync")
		return models.SkippedResult(changeSet.ChangeCount, "no changes detected since last sync"), nil
	}

	records := changeSet.Changes
	if len(records) == 0 {
		// Full sync: delta disabled, or detection failed open without
		// enumerating records. A fetch failure here is a whole-operation
		// infrastructure failure and is raised to the orchestrator.
		fetched, err := s.source.FindChangedAfterID(ctx, cfg.EntityType, 0, fullSyncLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s records for full sync: %w", cfg.EntityType, err)
		}
		records = fetched
	}

	result := &models.SyncResult{}
	for _, record := range records {
		s.syncRecord(ctx, cfg, record, result, logger)
	}

	result.Finalize()
	result.Message = fmt.Sprintf(
		"synced %d %s records: %d created, %d updated, %d conflicted, %d failed",
		result.Processed, cfg.EntityType, result.Created, result.Updated, result.Conflicted, result.Failed,
	)
	return result, nil
}

// syncRecord pushes one record to the external system, raising conflicts when
// the remote copy disagrees. Per-record failures only bump counters.
func (s *entitySyncer) syncRecord(
	ctx context.Context,
	cfg *models.SyncConfiguration,
	record map[string]interface{},
	result *models.SyncResult,
	logger zerolog.Logger,
) {
	result.Processed++

	recordID, err := converter.ConvertInterfaceToInt64(record["id"])
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("record without usable id: %v", err))
		return
	}
	entityID := fmt.Sprintf("%d", recordID)

	// The transport gets its own copy of the record; the change set stays
	// untouched whatever the client does with the payload.
	payload := converter.DeepCopy(record)

	remoteRecord, err := s.client.Fetch(ctx, cfg.EntityType, entityID)
	switch {
	case errors.Is(err, remote.ErrRecordNotFound):
		if pushErr := s.client.Push(ctx, cfg.EntityType, entityID, payload); pushErr != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("record %s: push failed: %v", entityID, pushErr))
			return
		}
		result.Created++
		return
	case err != nil:
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("record %s: fetch failed: %v", entityID, err))
		return
	}

	conflicted := s.raiseConflicts(ctx, cfg, entityID, record, remoteRecord, result, logger)
	if conflicted {
		result.Conflicted++
		return
	}

	if pushErr := s.client.Push(ctx, cfg.EntityType, entityID, payload); pushErr != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("record %s: push failed: %v", entityID, pushErr))
		return
	}
	result.Updated++
}

// raiseConflicts compares the QMS record against the remote copy field by
// field and writes a conflict row for every disagreement. Conflicts are never
// auto-resolved here; an operator decides later.
func (s *entitySyncer) raiseConflicts(
	ctx context.Context,
	cfg *models.SyncConfiguration,
	entityID string,
	record, remoteRecord map[string]interface{},
	result *models.SyncResult,
	logger zerolog.Logger,
) bool {
	// Map iteration order is random; sort the fields so reruns write their
	// conflict rows in a stable order.
	fields := converter.MapKeysToSlice(record)
	sort.Strings(fields)

	conflicted := false
	for _, field := range fields {
		localValue := record[field]
		if _, volatile := volatileFields[field]; volatile {
			continue
		}
		remoteValue, present := remoteRecord[field]
		if !present {
			continue
		}

		localStr := converter.ValueToString(localValue)
		remoteStr := converter.ValueToString(remoteValue)
		if localStr == remoteStr {
			continue
		}

		conflicted = true
		conflict := &models.SyncConflict{
			ConfigurationID:      cfg.ID,
			EntityType:           cfg.EntityType,
			EntityID:             entityID,
			FieldName:            field,
			SourceValue:          &localStr,
			TargetValue:          &remoteStr,
			Severity:             models.SeverityMedium,
			Status:               models.ConflictUnresolved,
			RequiresManualReview: true,
		}
		created, err := s.conflicts.Create(ctx, conflict)
		if err != nil {
			// The disagreement still counts; losing the ledger row is a
			// per-record failure, not a reason to abort the run.
			logger.Error().Err(err).Str("entity_id", entityID).Str("field", field).Msg("Failed to record sync conflict")
			result.Errors = append(result.Errors, fmt.Sprintf("record %s: failed to record conflict on %s: %v", entityID, field, err))
			continue
		}
		// Fire-and-forget: the audit boundary must never slow a run down.
		go s.notifier.ConflictDetected(context.Background(), created)
		logger.Warn().Str("entity_id", entityID).Str("field", field).Msg("Detected sync conflict")
	}
	return conflicted
}
