package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/restschema/bootstrap"
	"github.com/artpar/restschema/config"
	"github.com/artpar/restschema/core/formatter"
)

var (
	// Global flags
	cfgFile   string
	outputFmt string
	columns   []string
	noHeader  bool
	compact   bool
	maxWidth  int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "restschema",
	Short: "Schema-driven client for REST platforms",
	Long: `restschema calls REST resources described by YAML schemas.

Every resource supports the same verbs, limited to what its schema allows:
  restschema list meetings state=scheduled
  restschema get meeting <id>
  restschema create meeting title=Standup start=2024-01-01T09:00:00Z end=2024-01-01T09:15:00Z
  restschema update meeting <id> title=Retro ...
  restschema delete meeting <id>
  restschema action recordingReport accessSummary from_=2024-01-01

Schemas:
  restschema schemas list   # Registered schemas
  restschema gen            # Generate typed Go wrappers
  restschema mock           # Serve a mock platform`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "restschema.yaml", "config file path")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringSliceVar(&columns, "columns", nil, "fields to show (default: all present)")
	rootCmd.PersistentFlags().BoolVar(&noHeader, "no-header", false, "omit the table header")
	rootCmd.PersistentFlags().BoolVar(&compact, "compact", false, "compact json output")
	rootCmd.PersistentFlags().IntVar(&maxWidth, "max-width", 60, "truncate table cells (0 = no limit)")
}

// loadConfig reads the config file when present and the environment otherwise.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, bootstrap.SetupLogger(cfg.Logging, os.Stderr), nil
}

// newApp builds a configured client.
func newApp() (*bootstrap.App, error) {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return nil, err
	}
	app, err := bootstrap.New(cfg, logger, bootstrap.Options{})
	if err != nil {
		return nil, fmt.Errorf("error initializing: %w", err)
	}
	return app, nil
}

// printer returns the selected formatter and its options.
func printer() (formatter.Formatter, formatter.FormatOptions, error) {
	f, ok := formatter.Get(outputFmt)
	if !ok {
		return nil, formatter.FormatOptions{}, fmt.Errorf("unknown output format %q (available: %v)", outputFmt, formatter.List())
	}
	return f, formatter.FormatOptions{
		Columns:  columns,
		NoHeader: noHeader,
		Compact:  compact,
		MaxWidth: maxWidth,
	}, nil
}
