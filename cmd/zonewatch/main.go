package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rewired-gh/zonewatch/internal/config"
	"github.com/rewired-gh/zonewatch/internal/logger"
	"github.com/rewired-gh/zonewatch/internal/storage"
	"github.com/rewired-gh/zonewatch/internal/vision"
	"github.com/rewired-gh/zonewatch/internal/zonestore"
	"github.com/spf13/cobra"
)

// app holds what every subcommand shares, built once the config is loaded.
type app struct {
	cfg    *config.Config
	store  *storage.Storage
	client *vision.Client
	zones  *zonestore.Store
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		logger.Error("Failed to close storage: %v", err)
	}
	a.store = nil
}

func main() {
	var configPath string
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "zonewatch",
		Short:         "Zone occupancy coordinator for a remote vision backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger.Init(cfg.Logging.Level, cfg.Logging.Format)
			if configPath != "" {
				logger.Debug("Configuration loaded from %s", configPath)
			}

			store, err := storage.New(cfg.Storage.DBPath)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}

			a.cfg = cfg
			a.store = store
			a.client = vision.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, store)
			a.zones = zonestore.New(a.client, store)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (defaults and ZONEWATCH_* env when empty)")

	rootCmd.AddCommand(
		runCmd(a),
		registerCmd(a),
		loginCmd(a),
		logoutCmd(a),
		whoamiCmd(a),
		profilesCmd(a),
		zonesCmd(a),
		uploadCmd(a),
		streamCmd(a),
		summaryCmd(a),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		a.close()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
