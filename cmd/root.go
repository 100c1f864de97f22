package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"qms-sync/cmd/configprint"
	"qms-sync/cmd/deltapreview"
	"qms-sync/cmd/sync"
	"qms-sync/cmd/version"
)

var cfgFile string

const (
	CFG_FLAG_NAME = "config"
)

var RootCmd = &cobra.Command{
	Use:   "qms-sync",
	Short: "qms-sync reconciles QMS records with external enterprise systems",
	Long: `qms-sync is a data-synchronization engine that reconciles records between
the internal quality-management database and external enterprise systems (ERP, MES).
It manages per-configuration sync runs, incremental change detection, and conflict capture.`,
}

func Execute() {
	err := RootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d, b string) {
	version.SetVersionInfo(v, c, d, b)
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&cfgFile, CFG_FLAG_NAME, "c", "", "path to config file")

	viper.BindPFlag(CFG_FLAG_NAME, RootCmd.PersistentFlags().Lookup(CFG_FLAG_NAME))
	viper.SetConfigName(cfgFile)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("qms_sync")
	viper.AddConfigPath(".")               // For running from project root
	viper.AddConfigPath("/etc/qms-sync/")  // For production
	viper.AddConfigPath("$HOME/.qms-sync") // For user-specific config

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	RootCmd.AddCommand(sync.SyncCmd)
	RootCmd.AddCommand(configprint.ConfigPrintCmd)
	RootCmd.AddCommand(deltapreview.DeltaPreviewCmd)
	RootCmd.AddCommand(version.VersionCmd)
}
