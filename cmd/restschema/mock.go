package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/artpar/restschema/bootstrap"
	"github.com/artpar/restschema/config"
)

var (
	mockListen string
	mockDSN    string
	hotReload  bool
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Serve a mock platform for every registered schema",
	Long: `Serve an in-process imitation of the platform.

Every registered schema gets its collection routes, its item routes and
its action routes. Lists are paginated with RFC 5988 Link headers and
honour the max parameter. Records live in memory, or in SQLite when
mock.dsn (or --dsn) is set.

With a config file, log settings are reloaded when the file changes or
on SIGHUP.

Examples:
  restschema mock
  restschema mock --listen :8090 --dsn ./mock.db
  RESTSCHEMA_BASE_URL=http://127.0.0.1:8090 restschema list meetings`,
	RunE: runMock,
}

func init() {
	rootCmd.AddCommand(mockCmd)

	mockCmd.Flags().StringVar(&mockListen, "listen", "", "listen address (overrides mock.listen)")
	mockCmd.Flags().StringVar(&mockDSN, "dsn", "", "SQLite file for records (overrides mock.dsn)")
	mockCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "reload log settings when the config file changes")
}

func runMock(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if mockListen != "" {
		cfg.Mock.Listen = mockListen
	}
	if mockDSN != "" {
		cfg.Mock.DSN = mockDSN
	}

	mock, err := bootstrap.NewMock(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Hot reload only works with a config file
	if _, statErr := os.Stat(cfgFile); statErr == nil && hotReload {
		holder, err := config.NewHolder(cfgFile, logger)
		if err != nil {
			return err
		}
		holder.OnChange(func(c *config.Config) {
			bootstrap.SetLogLevel(c.Logging.Level)
		})
		if mock.Metrics != nil {
			holder.OnReload(mock.Metrics.ObserveReload)
		}
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("config file watch unavailable")
		}
		holder.WatchSignals()
		defer holder.Stop()
	}

	// Run (blocks until shutdown)
	return mock.Run(cmd.Context())
}
