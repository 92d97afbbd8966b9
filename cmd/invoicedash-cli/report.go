package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"invoicedash/internal/backend"
	"invoicedash/internal/cli"
	"invoicedash/internal/core"
	"invoicedash/internal/services"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print weekly revenue by status and the running total",
		Long: `Load every invoice from the configured source, bucket it by week and
status and print the totals. The whole load fails on the first malformed
record; nothing is printed in that case.`,
		RunE: runReport,
	}
	cmd.Flags().String("week-start", "", "first day of a week bucket (default $WEEK_START)")
	cmd.Flags().Bool("json", false, "print the report as JSON")
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	weekStart := cfg.WeekStartDay()
	if v, _ := cmd.Flags().GetString("week-start"); strings.TrimSpace(v) != "" {
		d, err := core.ParseWeekday(v)
		if err != nil {
			return err
		}
		weekStart = d
	}

	res, err := backend.NewFactory(nil).Create(ctx, cfg, backend.Requirements{})
	if err != nil {
		return err
	}
	defer res.Cleanup()

	rep, err := services.NewDashboardService(res.Reader, weekStart).Load(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return cli.RenderReport(out, fmt.Sprintf("%s: Weekly Revenue", cfg.DashboardTitle), rep)
}
