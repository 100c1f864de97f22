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

// ERPAdapter syncs master-data entities (equipment, suppliers) to the ERP.
type ERPAdapter struct {
	syncer entitySyncer
	logger zerolog.Logger
}

func NewERPAdapter(
	detector delta.Detector,
	source repository.ChangeSource,
	client remote.Client,
	conflicts repository.ConflictRepository,
	notifier audit.Notifier,
) *ERPAdapter {
	logger := log.Logger.With().Str("component", "erp_adapter").Logger()
	return &ERPAdapter{
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

func (a *ERPAdapter) SystemType() models.SystemType {
	return models.SystemTypeERP
}

func (a *ERPAdapter) Sync(ctx context.Context, cfg *models.SyncConfiguration, runID string) (*models.SyncResult, error) {
	a.logger.Info().
		Str("run_id", runID).
		Int64("configuration_id", cfg.ID).
		Str("entity_type", cfg.EntityType.String()).
		Msg("Starting ERP sync")

	switch cfg.EntityType {
	case models.EntityEquipment, models.EntitySuppliers, models.EntityCAPA:
		return a.syncer.run(ctx, cfg, runID)
	default:
		return models.NotImplementedResult(
			fmt.Sprintf("%s synchronization is not implemented for ERP", cfg.EntityType),
		), nil
	}
}
