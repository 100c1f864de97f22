package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"

	"qms-sync/internal/models"
	"qms-sync/internal/repository"
	"qms-sync/pkg/db"
	"qms-sync/pkg/log"
)

type ConflictRepository struct {
	psql    *db.PostgresDatastore
	builder sq.StatementBuilderType
	logger  zerolog.Logger
}

func NewConflictRepository(psql *db.PostgresDatastore) *ConflictRepository {
	return &ConflictRepository{
		psql:    psql,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger:  log.Logger.With().Str("component", "conflict_repository").Logger(),
	}
}

func (repo *ConflictRepository) Create(ctx context.Context, conflict *models.SyncConflict) (*models.SyncConflict, error) {
	query := `
		INSERT INTO sync_conflicts (
			configuration_id, entity_type, entity_id, field_name,
			source_value, target_value, severity, status, requires_manual_review
		) VALUES (
			:configuration_id, :entity_type, :entity_id, :field_name,
			:source_value, :target_value, :severity, :status, :requires_manual_review
		) RETURNING id, created_at`

	rows, err := repo.psql.DB.NamedQueryContext(ctx, query, conflict)
	if err != nil {
		repo.logger.Error().Err(err).
			Str("entity_id", conflict.EntityID).
			Str("field", conflict.FieldName).
			Msg("Failed to create sync conflict")
		return nil, fmt.Errorf("failed to create sync conflict: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if scanErr := rows.Scan(&conflict.ID, &conflict.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan created sync conflict: %w", scanErr)
		}
	}
	return conflict, nil
}

func (repo *ConflictRepository) FindByID(ctx context.Context, id int64) (*models.SyncConflict, error) {
	var conflict models.SyncConflict
	err := repo.psql.DB.GetContext(ctx, &conflict, `SELECT * FROM sync_conflicts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrConflictNotFound
	}
	if err != nil {
		repo.logger.Error().Err(err).Int64("id", id).Msg("Failed to get sync conflict")
		return nil, fmt.Errorf("failed to get sync conflict: %w", err)
	}
	return &conflict, nil
}

func (repo *ConflictRepository) FindByConfigurationID(ctx context.Context, configurationID int64, filter repository.ConflictFilter) ([]*models.SyncConflict, error) {
	builder := repo.builder.
		Select("*").
		From("sync_conflicts").
		Where(sq.Eq{"configuration_id": configurationID}).
		OrderBy("created_at DESC", "id DESC")

	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"status": *filter.Status})
	}
	if filter.Severity != nil {
		builder = builder.Where(sq.Eq{"severity": *filter.Severity})
	}
	if filter.EntityType != nil {
		builder = builder.Where(sq.Eq{"entity_type": *filter.EntityType})
	}
	if filter.RequiresManualReview != nil {
		builder = builder.Where(sq.Eq{"requires_manual_review": *filter.RequiresManualReview})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrInvalidQueryParameters, err)
	}

	conflicts := make([]*models.SyncConflict, 0)
	if err := repo.psql.DB.SelectContext(ctx, &conflicts, query, args...); err != nil {
		repo.logger.Error().Err(err).Int64("configuration_id", configurationID).Msg("Failed to list sync conflicts")
		return nil, fmt.Errorf("failed to list sync conflicts: %w", err)
	}
	return conflicts, nil
}

// Resolve is a one-way transition. The status guard in the WHERE clause
// rejects re-resolution of an already-resolved conflict.
func (repo *ConflictRepository) Resolve(ctx context.Context, id int64, resolution models.ConflictResolution) (*models.SyncConflict, error) {
	query := `
		UPDATE sync_conflicts SET
			status = 'resolved',
			resolution = $2,
			resolved_value = $3,
			resolved_by = $4,
			resolution_notes = $5,
			resolved_at = $6
		WHERE id = $1 AND status = 'unresolved'`

	result, err := repo.psql.DB.ExecContext(ctx, query,
		id, resolution.Resolution, resolution.ResolvedValue,
		resolution.ResolvedBy, resolution.ResolutionNotes, time.Now().UTC(),
	)
	if err != nil {
		repo.logger.Error().Err(err).Int64("id", id).Msg("Failed to resolve sync conflict")
		return nil, fmt.Errorf("failed to resolve sync conflict: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		existing, findErr := repo.FindByID(ctx, id)
		if findErr != nil {
			return nil, findErr
		}
		if existing.Status == models.ConflictResolved {
			return nil, repository.ErrConflictAlreadyResolved
		}
		return nil, repository.ErrConflictNotFound
	}

	return repo.FindByID(ctx, id)
}
