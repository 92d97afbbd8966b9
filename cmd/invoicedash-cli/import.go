package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"invoicedash/internal/backend"
	"invoicedash/internal/cli"
	"invoicedash/internal/sources/csvfile"
	"invoicedash/internal/storage"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [file.csv]",
		Short: "Replace the SQLite invoice table with a CSV export",
		Long: `Parse every row of the CSV first, then replace the stored invoices in a
single transaction. A malformed row aborts the import and leaves the
database untouched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runImport,
	}
	cmd.Flags().Bool("dry-run", false, "parse and validate without writing")
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	path := cfg.CSVPath
	if len(args) == 1 {
		path = args[0]
	}

	invoices, err := csvfile.New(path, backend.CSVColumns(cfg)).ReadInvoices(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Parsed %d invoices from %s", len(invoices), path)))

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		return nil
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	bar := cli.NewProgressBar(cmd.ErrOrStderr(), len(invoices), "Importing invoices...")
	n, err := repo.ReplaceInvoices(ctx, path, invoices, func() {
		if err := bar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Stored %d invoices in %s", n, cfg.SQLiteDBPath)))
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLiteDBPath), 0o755); err != nil {
				return fmt.Errorf("create database directory: %w", err)
			}
			v, err := storage.RunMigrations(cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Schema at version %d", v)))
			return nil
		},
	}
}
