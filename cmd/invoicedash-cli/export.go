package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"invoicedash/internal/amqp"
	"invoicedash/internal/backend"
	"invoicedash/internal/cli"
	"invoicedash/internal/services"
	"invoicedash/internal/storage"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the report to Google Sheets",
		Long: `Queue a Google Sheets export for the worker, or with --direct build the
report and write both tabs from this process.`,
		RunE: runExport,
	}
	cmd.Flags().Bool("direct", false, "write to Google Sheets now instead of queueing")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if direct, _ := cmd.Flags().GetBool("direct"); direct {
		res, err := backend.NewFactory(nil).Create(ctx, cfg, backend.Requirements{SheetsWriter: true})
		if err != nil {
			return err
		}
		defer res.Cleanup()

		rep, err := services.NewDashboardService(res.Reader, cfg.WeekStartDay()).Load(ctx)
		if err != nil {
			return err
		}
		ref, err := res.Sheets.WriteReport(ctx, rep)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, cli.FormatSuccess("Report written to "+ref))
		return nil
	}

	if !cfg.ExportsEnabled() {
		return errors.New("queueing exports needs AMQP_URL; use --direct to write immediately")
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer client.Close()

	run, err := services.NewExportService(repo, client, cfg.WeekStartDay()).Enqueue(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Export %s queued", run.ID)))
	return nil
}

func exportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exports",
		Short: "List recent export runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			runs, err := repo.ListExportRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return cli.RenderExportRuns(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "number of runs to show")
	return cmd
}
