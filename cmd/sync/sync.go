package sync

import (
	"github.com/spf13/cobra"

	"qms-sync/internal/config"
	"qms-sync/internal/core"
	"qms-sync/internal/models"
	"qms-sync/pkg/log"
)

var (
	configurationID int64
	triggeredByUser string
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run synchronization between the QMS database and external systems",
	Long:  `Run synchronization operations against the configured ERP and MES systems.`,
}

var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "Trigger one sync run for a configuration and exit",
	Long:    `Execute a single synchronization run for the given configuration id.`,
	Example: `qms-sync sync run --id 3 --config /path/to/config.yaml`,
	Run:     runOnce,
}

var scheduledCmd = &cobra.Command{
	Use:     "scheduled",
	Short:   "Run all configurations that are due and exit",
	Long:    `Execute one scheduler pass: every enabled, non-manual configuration whose next run time has arrived is synchronized sequentially.`,
	Example: `qms-sync sync scheduled --config /path/to/config.yaml`,
	Run:     runScheduled,
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show sync status for a configuration",
	Long:    `Print the configuration's recent runs, unresolved conflicts, and run statistics.`,
	Example: `qms-sync sync status --id 3 --config /path/to/config.yaml`,
	Run:     runStatus,
}

func init() {
	runCmd.Flags().Int64Var(&configurationID, "id", 0, "sync configuration id")
	runCmd.Flags().StringVar(&triggeredByUser, "user", "", "identity triggering the run")
	runCmd.MarkFlagRequired("id")

	statusCmd.Flags().Int64Var(&configurationID, "id", 0, "sync configuration id")
	statusCmd.MarkFlagRequired("id")

	SyncCmd.AddCommand(runCmd)
	SyncCmd.AddCommand(scheduledCmd)
	SyncCmd.AddCommand(statusCmd)
}

func runOnce(cmd *cobra.Command, _ []string) {
	logger := log.Logger.With().Str("component", "sync-run").Logger()

	appConfig, err := config.NewConfig()
	if err != nil {
		logger.Error().Err(err).Msg("Error creating config")
		return
	}

	wiring := core.NewWiring(appConfig)
	ctx := cmd.Context()

	service := wiring.InitSyncService()

	var user *string
	if triggeredByUser != "" {
		user = &triggeredByUser
	}

	result, err := service.ExecuteSyncRun(ctx, configurationID, models.TriggerManual, user)
	if err != nil {
		logger.Error().Err(err).Int64("configuration_id", configurationID).Msg("Sync run failed")
		return
	}
	logger.Info().
		Str("status", result.Status.String()).
		Int("processed", result.Processed).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Int("conflicted", result.Conflicted).
		Msg("Sync run finished")
}

func runScheduled(cmd *cobra.Command, _ []string) {
	logger := log.Logger.With().Str("component", "sync-scheduled").Logger()

	appConfig, err := config.NewConfig()
	if err != nil {
		logger.Error().Err(err).Msg("Error creating config")
		return
	}

	wiring := core.NewWiring(appConfig)
	ctx := cmd.Context()

	service := wiring.InitSyncService()
	report, err := service.ExecuteScheduledSyncs(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Scheduler pass failed")
		return
	}

	for _, entry := range report.Results {
		event := logger.Info()
		if !entry.Success {
			event = logger.Warn()
		}
		event.
			Int64("configuration_id", entry.ConfigurationID).
			Str("name", entry.Name).
			Str("status", entry.Status.String()).
			Str("error", entry.Error).
			Msg("Scheduled sync result")
	}
	logger.Info().
		Int("total", report.TotalProcessed).
		Int("successful", report.Successful).
		Int("failed", report.Failed).
		Msg("Scheduler pass finished")
}

func runStatus(cmd *cobra.Command, _ []string) {
	logger := log.Logger.With().Str("component", "sync-status").Logger()

	appConfig, err := config.NewConfig()
	if err != nil {
		logger.Error().Err(err).Msg("Error creating config")
		return
	}

	wiring := core.NewWiring(appConfig)
	ctx := cmd.Context()

	service := wiring.InitSyncService()
	status, err := service.GetSyncStatus(ctx, configurationID)
	if err != nil {
		logger.Error().Err(err).Int64("configuration_id", configurationID).Msg("Failed to fetch sync status")
		return
	}

	cfg := status.Configuration
	logger.Info().
		Str("name", cfg.Name).
		Str("system_type", cfg.SystemType.String()).
		Str("entity_type", cfg.EntityType.String()).
		Bool("enabled", cfg.Enabled).
		Msg("Configuration")
	for _, run := range status.RecentRuns {
		logger.Info().
			Str("run_id", run.RunID).
			Str("status", run.Status.String()).
			Time("started_at", run.StartedAt).
			Int("processed", run.RecordsProcessed).
			Int("failed", run.RecordsFailed).
			Msg("Recent run")
	}
	for _, conflict := range status.UnresolvedConflicts {
		logger.Warn().
			Int64("conflict_id", conflict.ID).
			Str("entity_id", conflict.EntityID).
			Str("field", conflict.FieldName).
			Msg("Unresolved conflict")
	}
	logger.Info().
		Int64("total_runs", status.Statistics.TotalRuns).
		Int64("successful_runs", status.Statistics.SuccessfulRuns).
		Int64("failed_runs", status.Statistics.FailedRuns).
		Int64("records_processed", status.Statistics.RecordsProcessed).
		Msg("Run statistics")
}
