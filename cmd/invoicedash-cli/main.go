package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"invoicedash/internal/cli"
	"invoicedash/internal/config"
	applog "invoicedash/internal/log"
)

var (
	version = "dev"
	cfg     *config.Config

	rootCmd = &cobra.Command{
		Use:   "invoicedash-cli",
		Short: "Invoice revenue reports from the terminal",
		Long: `invoicedash-cli loads invoice records, prints the weekly revenue report,
imports CSV exports into SQLite and queues Google Sheets exports.

Settings come from the environment (and .env); flags override them.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().String("backend", "", "invoice source: csv, memory, sqlite or sheets (default $DATA_BACKEND)")
	rootCmd.PersistentFlags().String("csv", "", "CSV file path (default $CSV_PATH)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (default $SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default $LOG_LEVEL)")

	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(exportsCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err.Error()))
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	cli.LoadEnvFile()
	cfg = config.Load()

	flags := cmd.Flags()
	if v, _ := flags.GetString("backend"); v != "" {
		cfg.DataBackend = strings.ToLower(v)
	}
	if v, _ := flags.GetString("csv"); v != "" {
		cfg.CSVPath = v
	}
	if v, _ := flags.GetString("db"); v != "" {
		cfg.SQLiteDBPath = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}

	level, err := applog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: applog.ComponentCLI,
		Output:    os.Stderr,
	})
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return err
	}
	slog.Debug("Configuration loaded", "backend", cfg.DataBackend)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "invoicedash-cli %s\n", version)
		},
	}
}
