package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"qms-sync/internal/models"
	"qms-sync/internal/repository"
	"qms-sync/pkg/db"
	"qms-sync/pkg/log"
)

type RunRepository struct {
	psql   *db.PostgresDatastore
	logger zerolog.Logger
}

func NewRunRepository(psql *db.PostgresDatastore) *RunRepository {
	return &RunRepository{
		psql:   psql,
		logger: log.Logger.With().Str("component", "run_repository").Logger(),
	}
}

func (repo *RunRepository) Create(ctx context.Context, run *models.SyncRun) (*models.SyncRun, error) {
	query := `
		INSERT INTO sync_logs (
			run_id, configuration_id, status, started_at,
			triggered_by, triggered_by_user, retry_count, previous_log_id
		) VALUES (
			:run_id, :configuration_id, :status, :started_at,
			:triggered_by, :triggered_by_user, :retry_count, :previous_log_id
		) RETURNING id`

	rows, err := repo.psql.DB.NamedQueryContext(ctx, query, run)
	if err != nil {
		repo.logger.Error().Err(err).Str("run_id", run.RunID).Msg("Failed to create sync run")
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if scanErr := rows.Scan(&run.ID); scanErr != nil {
			return nil, fmt.Errorf("failed to scan created sync run: %w", scanErr)
		}
	}
	repo.logger.Debug().Str("run_id", run.RunID).Int64("configuration_id", run.ConfigurationID).Msg("Created sync run")
	return run, nil
}

func (repo *RunRepository) FindByID(ctx context.Context, id int64) (*models.SyncRun, error) {
	var run models.SyncRun
	err := repo.psql.DB.GetContext(ctx, &run, `SELECT * FROM sync_logs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrRunNotFound
	}
	if err != nil {
		repo.logger.Error().Err(err).Int64("id", id).Msg("Failed to get sync run")
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	return &run, nil
}

// Complete applies the single terminal transition. The status guard in the
// WHERE clause makes the transition atomic: a row that is already terminal
// is left untouched and the caller gets ErrRunAlreadyCompleted.
func (repo *RunRepository) Complete(ctx context.Context, id int64, completion repository.RunCompletion) error {
	query := `
		UPDATE sync_logs SET
			status = $2,
			completed_at = $3,
			duration_seconds = GREATEST(EXTRACT(EPOCH FROM ($3::timestamptz - started_at)), 0),
			records_processed = $4,
			records_created = $5,
			records_updated = $6,
			records_skipped = $7,
			records_failed = $8,
			records_conflicted = $9,
			error_message = $10,
			error_stack = $11
		WHERE id = $1 AND status = 'in_progress'`

	result, err := repo.psql.DB.ExecContext(ctx, query,
		id, completion.Status, completion.CompletedAt,
		completion.Processed, completion.Created, completion.Updated,
		completion.Skipped, completion.Failed, completion.Conflicted,
		completion.ErrorMessage, completion.ErrorStack,
	)
	if err != nil {
		repo.logger.Error().Err(err).Int64("id", id).Msg("Failed to complete sync run")
		return fmt.Errorf("failed to complete sync run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		if _, findErr := repo.FindByID(ctx, id); findErr != nil {
			return findErr
		}
		return repository.ErrRunAlreadyCompleted
	}
	return nil
}

// MarkCancelled force-transitions a run to cancelled. Last write wins: the
// caller is trusted to know the run is still conceptually outstanding.
func (repo *RunRepository) MarkCancelled(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE sync_logs SET
			status = 'cancelled',
			completed_at = $2,
			duration_seconds = GREATEST(EXTRACT(EPOCH FROM ($2::timestamptz - started_at)), 0)
		WHERE id = $1`

	result, err := repo.psql.DB.ExecContext(ctx, query, id, at)
	if err != nil {
		repo.logger.Error().Err(err).Int64("id", id).Msg("Failed to cancel sync run")
		return fmt.Errorf("failed to cancel sync run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrRunNotFound
	}
	return nil
}

func (repo *RunRepository) FindRecentByConfiguration(ctx context.Context, configurationID int64, limit int) ([]*models.SyncRun, error) {
	query := `
		SELECT * FROM sync_logs
		WHERE configuration_id = $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2`

	runs := make([]*models.SyncRun, 0, limit)
	if err := repo.psql.DB.SelectContext(ctx, &runs, query, configurationID, limit); err != nil {
		repo.logger.Error().Err(err).Int64("configuration_id", configurationID).Msg("Failed to list recent sync runs")
		return nil, fmt.Errorf("failed to list recent sync runs: %w", err)
	}
	return runs, nil
}

func (repo *RunRepository) StatsByConfiguration(ctx context.Context, configurationID int64) (*models.RunStatistics, error) {
	query := `
		SELECT
			COUNT(*) AS total_runs,
			COUNT(*) FILTER (WHERE status = 'success') AS successful_runs,
			COUNT(*) FILTER (WHERE status = 'partial') AS partial_runs,
			COUNT(*) FILTER (WHERE status IN ('failed', 'timeout')) AS failed_runs,
			COALESCE(SUM(records_processed), 0) AS records_processed,
			COALESCE(SUM(records_failed), 0) AS records_failed,
			COALESCE(SUM(records_conflicted), 0) AS records_conflicted
		FROM sync_logs
		WHERE configuration_id = $1`

	var stats models.RunStatistics
	if err := repo.psql.DB.GetContext(ctx, &stats, query, configurationID); err != nil {
		repo.logger.Error().Err(err).Int64("configuration_id", configurationID).Msg("Failed to compute run statistics")
		return nil, fmt.Errorf("failed to compute run statistics: %w", err)
	}
	return &stats, nil
}
