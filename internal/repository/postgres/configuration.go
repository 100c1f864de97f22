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

type ConfigurationRepository struct {
	psql    *db.PostgresDatastore
	builder sq.StatementBuilderType
	logger  zerolog.Logger
}

func NewConfigurationRepository(psql *db.PostgresDatastore) *ConfigurationRepository {
	return &ConfigurationRepository{
		psql:    psql,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger:  log.Logger.With().Str("component", "configuration_repository").Logger(),
	}
}

func (repo *ConfigurationRepository) Create(ctx context.Context, cfg *models.SyncConfiguration) (*models.SyncConfiguration, error) {
	query := `
		INSERT INTO sync_configurations (
			name, system_type, entity_type, enabled,
			schedule_type, interval_minutes, cron_expression,
			delta_enabled, delta_field, last_sync_timestamp, last_sync_record_id,
			max_retries, next_run_at
		) VALUES (
			:name, :system_type, :entity_type, :enabled,
			:schedule_type, :interval_minutes, :cron_expression,
			:delta_enabled, :delta_field, :last_sync_timestamp, :last_sync_record_id,
			:max_retries, :next_run_at
		) RETURNING id, created_at, updated_at`

	rows, err := repo.psql.DB.NamedQueryContext(ctx, query, cfg)
	if err != nil {
		repo.logger.Error().Err(err).Str("name", cfg.Name).Msg("Failed to create sync configuration")
		return nil, fmt.Errorf("failed to create sync configuration: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if scanErr := rows.Scan(&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan created sync configuration: %w", scanErr)
		}
	}
	repo.logger.Debug().Int64("id", cfg.ID).Str("name", cfg.Name).Msg("Created sync configuration")
	return cfg, nil
}

func (repo *ConfigurationRepository) FindByID(ctx context.Context, id int64) (*models.SyncConfiguration, error) {
	var cfg models.SyncConfiguration
	query := `SELECT * FROM sync_configurations WHERE id = $1`

	err := repo.psql.DB.GetContext(ctx, &cfg, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrConfigurationNotFound
	}
	if err != nil {
		repo.logger.Error().Err(err).Int64("id", id).Msg("Failed to get sync configuration")
		return nil, fmt.Errorf("failed to get sync configuration: %w", err)
	}
	return &cfg, nil
}

func (repo *ConfigurationRepository) FindAll(ctx context.Context, filter repository.ConfigurationFilter) ([]*models.SyncConfiguration, error) {
	builder := repo.builder.
		Select("*").
		From("sync_configurations").
		OrderBy("id ASC")

	if filter.Enabled != nil {
		builder = builder.Where(sq.Eq{"enabled": *filter.Enabled})
	}
	if filter.SystemType != nil {
		builder = builder.Where(sq.Eq{"system_type": *filter.SystemType})
	}
	if filter.EntityType != nil {
		builder = builder.Where(sq.Eq{"entity_type": *filter.EntityType})
	}
	if filter.ScheduleType != nil {
		builder = builder.Where(sq.Eq{"schedule_type": *filter.ScheduleType})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrInvalidQueryParameters, err)
	}

	configs := make([]*models.SyncConfiguration, 0)
	if err := repo.psql.DB.SelectContext(ctx, &configs, query, args...); err != nil {
		repo.logger.Error().Err(err).Msg("Failed to list sync configurations")
		return nil, fmt.Errorf("failed to list sync configurations: %w", err)
	}
	return configs, nil
}

func (repo *ConfigurationRepository) Update(ctx context.Context, cfg *models.SyncConfiguration) error {
	query := `
		UPDATE sync_configurations SET
			name = :name,
			system_type = :system_type,
			entity_type = :entity_type,
			enabled = :enabled,
			schedule_type = :schedule_type,
			interval_minutes = :interval_minutes,
			cron_expression = :cron_expression,
			delta_enabled = :delta_enabled,
			delta_field = :delta_field,
			last_sync_timestamp = :last_sync_timestamp,
			last_sync_record_id = :last_sync_record_id,
			max_retries = :max_retries,
			next_run_at = :next_run_at,
			updated_at = NOW()
		WHERE id = :id`

	result, err := repo.psql.DB.NamedExecContext(ctx, query, cfg)
	if err != nil {
		repo.logger.Error().Err(err).Int64("id", cfg.ID).Msg("Failed to update sync configuration")
		return fmt.Errorf("failed to update sync configuration: %w", err)
	}
	return repo.requireRowAffected(result, repository.ErrConfigurationNotFound)
}

func (repo *ConfigurationRepository) Delete(ctx context.Context, id int64) error {
	result, err := repo.psql.DB.ExecContext(ctx, `DELETE FROM sync_configurations WHERE id = $1`, id)
	if err != nil {
		repo.logger.Error().Err(err).Int64("id", id).Msg("Failed to delete sync configuration")
		return fmt.Errorf("failed to delete sync configuration: %w", err)
	}
	return repo.requireRowAffected(result, repository.ErrConfigurationNotFound)
}

func (repo *ConfigurationRepository) FindDueForSync(ctx context.Context, now time.Time) ([]*models.SyncConfiguration, error) {
	query := `
		SELECT * FROM sync_configurations
		WHERE enabled = TRUE
		  AND schedule_type <> 'manual'
		  AND next_run_at IS NOT NULL
		  AND next_run_at <= $1
		ORDER BY next_run_at ASC`

	configs := make([]*models.SyncConfiguration, 0)
	if err := repo.psql.DB.SelectContext(ctx, &configs, query, now); err != nil {
		repo.logger.Error().Err(err).Msg("Failed to find configurations due for sync")
		return nil, fmt.Errorf("failed to find configurations due for sync: %w", err)
	}
	return configs, nil
}

func (repo *ConfigurationRepository) MarkRunning(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE sync_configurations
		SET last_run_status = $2, last_run_at = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := repo.psql.DB.ExecContext(ctx, query, id, models.RunStatusInProgress, at)
	if err != nil {
		repo.logger.Error().Err(err).Int64("id", id).Msg("Failed to mark configuration running")
		return fmt.Errorf("failed to mark configuration running: %w", err)
	}
	return repo.requireRowAffected(result, repository.ErrConfigurationNotFound)
}

func (repo *ConfigurationRepository) UpdateSyncStats(ctx context.Context, id int64, update repository.StatsUpdate) error {
	builder := repo.builder.
		Update("sync_configurations").
		Set("last_run_status", update.Status).
		Set("last_run_at", update.RunAt).
		Set("next_run_at", update.NextRunAt).
		Set("total_records_processed", sq.Expr("total_records_processed + ?", update.RecordsProcessed)).
		Set("total_records_failed", sq.Expr("total_records_failed + ?", update.RecordsFailed)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id})

	if update.AdvanceWatermark != nil {
		builder = builder.Set("last_sync_timestamp", *update.AdvanceWatermark)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("%w: %v", repository.ErrInvalidQueryParameters, err)
	}

	result, err := repo.psql.DB.ExecContext(ctx, query, args...)
	if err != nil {
		repo.logger.Error().Err(err).Int64("id", id).Msg("Failed to update sync stats")
		return fmt.Errorf("failed to update sync stats: %w", err)
	}
	return repo.requireRowAffected(result, repository.ErrConfigurationNotFound)
}

func (repo *ConfigurationRepository) requireRowAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
