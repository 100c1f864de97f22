package configprint

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"qms-sync/internal/config"
	"qms-sync/pkg/log"
)

var (
	sectionFlag string
	formatFlag  string
)

var ConfigPrintCmd = &cobra.Command{
	Use:   "config-print",
	Short: "Print the current configuration",
	Long: `Print the loaded configuration or a specific section of it.
Supports YAML and JSON output formats. Secrets are redacted.`,
	Example: `  # Print entire config
  qms-sync config-print

  # Print specific section
  qms-sync config-print --section postgres
  qms-sync config-print --section erp

  # Print in YAML format
  qms-sync config-print --section mes --format yaml`,
	Run: run,
}

func init() {
	ConfigPrintCmd.Flags().StringVarP(&sectionFlag, "section", "s", "",
		"print only a specific section (postgres, erp, mes, sync, id, log_level)")
	ConfigPrintCmd.Flags().StringVarP(&formatFlag, "format", "f", "json",
		"output format (yaml|json)")
}

func run(_ *cobra.Command, _ []string) {
	logger := log.Logger.With().Str("component", "config_print").Logger()

	cfg, err := config.NewConfig()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return
	}
	redact(cfg)

	var output interface{}

	if sectionFlag == "" {
		output = cfg
		logger.Info().Msg("Printing entire configuration")
	} else {
		output, err = getSection(cfg, sectionFlag)
		if err != nil {
			logger.Error().Err(err).Str("section", sectionFlag).Msg("Invalid section")
			return
		}
		logger.Info().Str("section", sectionFlag).Msg("Printing configuration section")
	}

	switch formatFlag {
	case "yaml":
		printYAML(logger, output)
	case "json":
		printJSON(logger, output)
	default:
		logger.Error().Msgf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}

func redact(cfg *config.Config) {
	if cfg.Postgres.Password != "" {
		cfg.Postgres.Password = "xxxxx"
	}
	if cfg.ERP.APIKey != "" {
		cfg.ERP.APIKey = "xxxxx"
	}
	if cfg.MES.APIKey != "" {
		cfg.MES.APIKey = "xxxxx"
	}
}

func getSection(cfg *config.Config, section string) (interface{}, error) {
	switch section {
	case "postgres":
		return cfg.Postgres, nil
	case "erp":
		return cfg.ERP, nil
	case "mes":
		return cfg.MES, nil
	case "sync":
		return cfg.Sync, nil
	case "log_level":
		return map[string]string{"log_level": cfg.LogLevel}, nil
	case "id":
		return map[string]string{"id": cfg.ID}, nil
	default:
		return nil,
			fmt.Errorf("unknown section: %s (valid: postgres, erp, mes, sync, id, log_level)", section)
	}
}

func printYAML(logger zerolog.Logger, data interface{}) {
	bytes, err := yaml.Marshal(data)
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode YAML")
	}
	content := string(bytes)
	logger.Info().
		Str("format", "yaml").
		Str("config", "\n"+content).
		Msg("Printing Configuration")
}

func printJSON(logger zerolog.Logger, data interface{}) {
	logger.Info().Interface("config", data).Msg("Printing Configuration")
}
