package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"qms-sync/internal/adapter"
	"qms-sync/internal/audit"
	"qms-sync/internal/delta"
	"qms-sync/internal/models"
	"qms-sync/internal/repository"
	"qms-sync/internal/service/schedule"
	"qms-sync/pkg/log"
)

var (
	ErrConfigurationDisabled = errors.New("sync configuration is disabled")
	ErrRetryLimitExceeded    = errors.New("sync run retry limit exceeded")
	ErrRunInProgress         = errors.New("a sync run is already in progress for this configuration")
)

const (
	defaultRunTimeout = 30 * time.Minute
	defaultMaxRetries = 3

	recentRunsLimit          = 10
	unresolvedConflictsLimit = 50
)

// SyncStatus is the read-only aggregate returned by GetSyncStatus.
type SyncStatus struct {
	Configuration       *models.SyncConfiguration
	RecentRuns          []*models.SyncRun
	UnresolvedConflicts []*models.SyncConflict
	Statistics          *models.RunStatistics
}

// ScheduledSyncResult reports the outcome of one configuration in a
// scheduler pass.
type ScheduledSyncResult struct {
	ConfigurationID int64
	Name            string
	Success         bool
	Status          models.RunStatus
	Error           string
}

// ScheduledSyncReport summarizes one scheduler pass over all due
// configurations.
type ScheduledSyncReport struct {
	TotalProcessed int
	Successful     int
	Failed         int
	Results        []ScheduledSyncResult
}

// configLocks is the advisory per-configuration lock: at most one
// in-progress run per configuration in this process, so two runs can never
// race to advance the same watermark.
type configLocks struct {
	mu     sync.Mutex
	active map[int64]struct{}
}

func newConfigLocks() *configLocks {
	return &configLocks{active: make(map[int64]struct{})}
}

func (l *configLocks) acquire(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.active[id]; held {
		return false
	}
	l.active[id] = struct{}{}
	return true
}

func (l *configLocks) release(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, id)
}

// SyncService owns the run lifecycle: it creates run rows, dispatches to the
// adapter matching the configuration's system type, records the terminal
// state, and keeps configuration statistics and schedule current.
type SyncService struct {
	configs    repository.ConfigurationRepository
	runs       repository.RunRepository
	conflicts  repository.ConflictRepository
	detector   delta.Detector
	adapters   *adapter.Registry
	notifier   audit.Notifier
	runTimeout time.Duration
	maxRetries int
	locks      *configLocks
	logger     zerolog.Logger
}

func NewSyncService(
	configs repository.ConfigurationRepository,
	runs repository.RunRepository,
	conflicts repository.ConflictRepository,
	detector delta.Detector,
	adapters *adapter.Registry,
	notifier audit.Notifier,
	runTimeout time.Duration,
	maxRetries int,
) *SyncService {
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &SyncService{
		configs:    configs,
		runs:       runs,
		conflicts:  conflicts,
		detector:   detector,
		adapters:   adapters,
		notifier:   notifier,
		runTimeout: runTimeout,
		maxRetries: maxRetries,
		locks:      newConfigLocks(),
		logger:     log.Logger.With().Str("component", "sync_service").Logger(),
	}
}

// ExecuteSyncRun runs one synchronization attempt for the configuration.
// Configuration errors (missing, disabled, already running) reject before a
// run row exists. Adapter infrastructure errors complete the run as failed
// (or timeout) and are re-raised so the caller gets both the audit trail and
// a decision signal.
func (s *SyncService) ExecuteSyncRun(
	ctx context.Context,
	configurationID int64,
	triggeredBy models.TriggerSource,
	triggeredByUser *string,
) (*models.SyncResult, error) {
	cfg, err := s.configs.FindByID(ctx, configurationID)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("%w: configuration %d", ErrConfigurationDisabled, configurationID)
	}

	return s.executeRun(ctx, cfg, triggeredBy, triggeredByUser, nil)
}

func (s *SyncService) executeRun(
	ctx context.Context,
	cfg *models.SyncConfiguration,
	triggeredBy models.TriggerSource,
	triggeredByUser *string,
	retryOf *models.SyncRun,
) (*models.SyncResult, error) {
	if !s.locks.acquire(cfg.ID) {
		return nil, fmt.Errorf("%w: configuration %d", ErrRunInProgress, cfg.ID)
	}
	defer s.locks.release(cfg.ID)

	now := time.Now().UTC()
	run := &models.SyncRun{
		RunID:           uuid.NewString(),
		ConfigurationID: cfg.ID,
		Status:          models.RunStatusInProgress,
		StartedAt:       now,
		TriggeredBy:     triggeredBy,
		TriggeredByUser: triggeredByUser,
	}
	if retryOf != nil {
		run.RetryCount = retryOf.RetryCount + 1
		run.PreviousLogID = &retryOf.ID
	}

	logger := s.logger.With().
		Str("run_id", run.RunID).
		Int64("configuration_id", cfg.ID).
		Str("system_type", cfg.SystemType.String()).
		Str("entity_type", cfg.EntityType.String()).
		Logger()

	run, err := s.runs.Create(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("failed to create run record: %w", err)
	}
	if markErr := s.configs.MarkRunning(ctx, cfg.ID, now); markErr != nil {
		logger.Warn().Err(markErr).Msg("Failed to mark configuration as running")
	}

	systemAdapter, err := s.adapters.Lookup(cfg.SystemType)
	if err != nil {
		s.completeFailedRun(ctx, cfg, run, models.RunStatusFailed, err, logger)
		return nil, err
	}

	logger.Info().Str("triggered_by", triggeredBy.String()).Msg("Dispatching sync run to adapter")

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	result, err := systemAdapter.Sync(runCtx, cfg, run.RunID)
	cancel()

	if err != nil {
		status := models.RunStatusFailed
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			status = models.RunStatusTimeout
		}
		s.completeFailedRun(ctx, cfg, run, status, err, logger)
		logger.Error().Err(err).Str("status", status.String()).Msg("Adapter sync failed")
		return nil, err
	}

	s.completeRun(ctx, cfg, run, result, logger)
	logger.Info().
		Str("status", result.Status.String()).
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Int("conflicted", result.Conflicted).
		Msg("Sync run completed")
	return result, nil
}

// completeRun records the adapter's terminal result and rolls the
// configuration forward: statistics, next run time, and the delta watermark
// when and only when the run fully succeeded.
func (s *SyncService) completeRun(
	ctx context.Context,
	cfg *models.SyncConfiguration,
	run *models.SyncRun,
	result *models.SyncResult,
	logger zerolog.Logger,
) {
	completedAt := time.Now().UTC()

	var errorMessage *string
	if len(result.Errors) > 0 {
		joined := result.Errors[0]
		for _, e := range result.Errors[1:] {
			joined += "; " + e
		}
		errorMessage = &joined
	}

	completion := repository.RunCompletion{
		Status:       result.Status,
		CompletedAt:  completedAt,
		Processed:    result.Processed,
		Created:      result.Created,
		Updated:      result.Updated,
		Skipped:      result.Skipped,
		Failed:       result.Failed,
		Conflicted:   result.Conflicted,
		ErrorMessage: errorMessage,
	}
	if err := s.runs.Complete(ctx, run.ID, completion); err != nil {
		logger.Error().Err(err).Msg("Failed to persist run completion")
	}

	update := repository.StatsUpdate{
		Status:           configStatus(result.Status),
		RunAt:            completedAt,
		NextRunAt:        schedule.NextRunTime(cfg, completedAt),
		RecordsProcessed: result.Processed,
		RecordsFailed:    result.Failed,
		ErrorMessage:     errorMessage,
	}
	// The watermark only advances on an exact success: a partial run left
	// failed records behind that the next delta pass must pick up again.
	if cfg.DeltaEnabled && result.Status == models.RunStatusSuccess {
		update.AdvanceWatermark = &completedAt
	}
	if err := s.configs.UpdateSyncStats(ctx, cfg.ID, update); err != nil {
		logger.Error().Err(err).Msg("Failed to update configuration statistics")
	}

	s.notifyRunCompleted(run, result.Status, completion)
}

func (s *SyncService) completeFailedRun(
	ctx context.Context,
	cfg *models.SyncConfiguration,
	run *models.SyncRun,
	status models.RunStatus,
	cause error,
	logger zerolog.Logger,
) {
	completedAt := time.Now().UTC()
	message := cause.Error()
	stack := fmt.Sprintf("%+v", cause)

	completion := repository.RunCompletion{
		Status:       status,
		CompletedAt:  completedAt,
		ErrorMessage: &message,
		ErrorStack:   &stack,
	}
	if err := s.runs.Complete(ctx, run.ID, completion); err != nil {
		logger.Error().Err(err).Msg("Failed to persist failed run completion")
	}

	update := repository.StatsUpdate{
		Status:       configStatus(status),
		RunAt:        completedAt,
		NextRunAt:    schedule.NextRunTime(cfg, completedAt),
		ErrorMessage: &message,
	}
	if err := s.configs.UpdateSyncStats(ctx, cfg.ID, update); err != nil {
		logger.Error().Err(err).Msg("Failed to update configuration statistics")
	}

	s.notifyRunCompleted(run, status, completion)
}

// configStatus maps a run status onto the ternary configuration-level
// aggregate: timeout counts as failed there.
func configStatus(status models.RunStatus) models.RunStatus {
	if status == models.RunStatusTimeout {
		return models.RunStatusFailed
	}
	return status
}

// notifyRunCompleted reports the completed run to the audit boundary.
// Fire-and-forget: a notifier failure or hang must never fail the run.
func (s *SyncService) notifyRunCompleted(run *models.SyncRun, status models.RunStatus, completion repository.RunCompletion) {
	notified := *run
	notified.Status = status
	notified.CompletedAt = &completion.CompletedAt
	notified.RecordsProcessed = completion.Processed
	notified.RecordsCreated = completion.Created
	notified.RecordsUpdated = completion.Updated
	notified.RecordsSkipped = completion.Skipped
	notified.RecordsFailed = completion.Failed
	notified.RecordsConflicted = completion.Conflicted
	notified.ErrorMessage = completion.ErrorMessage

	go s.notifier.RunCompleted(context.Background(), &notified)
}

// ExecuteScheduledSyncs runs every due configuration sequentially. A failing
// configuration is recorded in the report and never aborts the batch.
func (s *SyncService) ExecuteScheduledSyncs(ctx context.Context) (*ScheduledSyncReport, error) {
	due, err := s.configs.FindDueForSync(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to find due configurations: %w", err)
	}

	report := &ScheduledSyncReport{Results: make([]ScheduledSyncResult, 0, len(due))}
	for _, cfg := range due {
		report.TotalProcessed++
		entry := ScheduledSyncResult{ConfigurationID: cfg.ID, Name: cfg.Name}

		result, runErr := s.ExecuteSyncRun(ctx, cfg.ID, models.TriggerScheduled, nil)
		if runErr != nil {
			report.Failed++
			entry.Success = false
			entry.Status = models.RunStatusFailed
			entry.Error = runErr.Error()
			s.logger.Error().Err(runErr).Int64("configuration_id", cfg.ID).Msg("Scheduled sync failed")
		} else {
			entry.Success = result.Success
			entry.Status = result.Status
			if result.Success {
				report.Successful++
			} else {
				report.Failed++
			}
		}
		report.Results = append(report.Results, entry)
	}

	s.logger.Info().
		Int("total", report.TotalProcessed).
		Int("successful", report.Successful).
		Int("failed", report.Failed).
		Msg("Scheduler pass completed")
	return report, nil
}

// RetrySyncRun re-executes the configuration behind an earlier run. The new
// attempt gets a fresh run id and references the original via previousLogId;
// the original row is never touched.
func (s *SyncService) RetrySyncRun(ctx context.Context, logID int64, triggeredByUser string) (*models.SyncResult, error) {
	original, err := s.runs.FindByID(ctx, logID)
	if err != nil {
		return nil, err
	}

	cfg, err := s.configs.FindByID(ctx, original.ConfigurationID)
	if err != nil {
		return nil, err
	}

	// Per-configuration limit when set, the configured service default
	// otherwise.
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = s.maxRetries
	}
	if original.RetryCount >= maxRetries {
		return nil, fmt.Errorf("%w: run %d already retried %d of %d times",
			ErrRetryLimitExceeded, logID, original.RetryCount, maxRetries)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("%w: configuration %d", ErrConfigurationDisabled, cfg.ID)
	}

	return s.executeRun(ctx, cfg, models.TriggerManual, &triggeredByUser, original)
}

// CancelSyncRun force-transitions a run to cancelled. It only marks the
// stored status: an adapter already executing is not interrupted, so the
// run is abandoned rather than stopped.
func (s *SyncService) CancelSyncRun(ctx context.Context, logID int64) error {
	return s.runs.MarkCancelled(ctx, logID, time.Now().UTC())
}

// GetSyncStatus aggregates the configuration with its recent runs, open
// conflicts, and run statistics.
func (s *SyncService) GetSyncStatus(ctx context.Context, configurationID int64) (*SyncStatus, error) {
	cfg, err := s.configs.FindByID(ctx, configurationID)
	if err != nil {
		return nil, err
	}

	runs, err := s.runs.FindRecentByConfiguration(ctx, configurationID, recentRunsLimit)
	if err != nil {
		return nil, err
	}

	unresolved := models.ConflictUnresolved
	conflicts, err := s.conflicts.FindByConfigurationID(ctx, configurationID, repository.ConflictFilter{
		Status: &unresolved,
		Limit:  unresolvedConflictsLimit,
	})
	if err != nil {
		return nil, err
	}

	stats, err := s.runs.StatsByConfiguration(ctx, configurationID)
	if err != nil {
		return nil, err
	}

	return &SyncStatus{
		Configuration:       cfg,
		RecentRuns:          runs,
		UnresolvedConflicts: conflicts,
		Statistics:          stats,
	}, nil
}

// GetDeltaChanges previews pending changes for a configuration. Delta being
// disabled is not an error; the preview is simply empty.
func (s *SyncService) GetDeltaChanges(ctx context.Context, configurationID int64) (*delta.ChangeSet, error) {
	cfg, err := s.configs.FindByID(ctx, configurationID)
	if err != nil {
		return nil, err
	}

	if !cfg.DeltaEnabled {
		return &delta.ChangeSet{HasChanges: false, ChangeCount: 0, Changes: []map[string]interface{}{}}, nil
	}
	return s.detector.DetectChanges(ctx, cfg), nil
}
