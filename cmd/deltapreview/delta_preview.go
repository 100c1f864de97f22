package deltapreview

import (
	"github.com/spf13/cobra"

	"qms-sync/internal/config"
	"qms-sync/internal/core"
	"qms-sync/pkg/log"
)

var configurationID int64

var DeltaPreviewCmd = &cobra.Command{
	Use:   "delta-preview",
	Short: "Show pending changes for a configuration without syncing",
	Long: `Run delta detection for the given configuration and print the changed
records that the next sync run would process. Nothing is written.`,
	Example: `qms-sync delta-preview --id 3 --config /path/to/config.yaml`,
	Run:     run,
}

func init() {
	DeltaPreviewCmd.Flags().Int64Var(&configurationID, "id", 0, "sync configuration id")
	DeltaPreviewCmd.MarkFlagRequired("id")
}

func run(cmd *cobra.Command, _ []string) {
	logger := log.Logger.With().Str("component", "delta_preview").Logger()

	appConfig, err := config.NewConfig()
	if err != nil {
		logger.Error().Err(err).Msg("Error creating config")
		return
	}

	wiring := core.NewWiring(appConfig)
	ctx := cmd.Context()

	service := wiring.InitSyncService()
	changeSet, err := service.GetDeltaChanges(ctx, configurationID)
	if err != nil {
		logger.Error().Err(err).Int64("configuration_id", configurationID).Msg("Delta preview failed")
		return
	}

	logger.Info().
		Bool("has_changes", changeSet.HasChanges).
		Int("change_count", changeSet.ChangeCount).
		Msg("=== DELTA PREVIEW ===")
	for _, record := range changeSet.Changes {
		logger.Info().Interface("record", record).Msg(" -> Would sync")
	}
}
