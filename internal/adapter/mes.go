package adapter

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"qms-sync/internal/audit"
	"qms-sync/internal/delta"
	"qms-sync/internal/models"
	"qms-sync/internal/remote"
	"qms-sync/internal/repository"
	"qms-sync/pkg/log"
)

// MESAdapter syncs shop-floor entities (quality records, inspections) to the
// MES. Order sync is not implemented yet; the routine reports that as a
// failed result instead of raising.
type MESAdapter struct {
	syncer entitySyncer
	logger zerolog.Logger
}

func NewMESAdapter(
	detector delta.Detector,
	source repository.ChangeSource,
	client remote.Client,
	conflicts repository.ConflictRepository,
	notifier audit.Notifier,
) *MESAdapter {
	logger := log.Logger.With().Str("component", "mes_adapter").Logger()
	return &MESAdapter{
		syncer: entitySyncer{
			detector:  detector,
			source:    source,
			client:    client,
			conflicts: conflicts,
			notifier:  notifier,
			logger:    logger,
		},
		logger: logger,
	}
}

func (a *MESAdapter) SystemType() models.SystemType {
	return models.SystemTypeMES
}

func (a *MESAdapter) Sync(ctx context.Context, cfg *models.SyncConfiguration, runID string) (*models.SyncResult, error) {
	a.logger.Info().
		Str("run_id", runID).
		Int64("configuration_id", cfg.ID).
		Str("entity_type", cfg.EntityType.String()).
		Msg("Starting MES sync")

	switch cfg.EntityType {
	case models.EntityQualityRecords, models.EntityInspections, models.EntityNCR:
		return a.syncer.run(ctx, cfg, runID)
	default:
		return models.NotImplementedResult(
			fmt.Sprintf("%s synchronization is not implemented for MES", cfg.EntityType),
		), nil
	}
}
