package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/boardsync/internal/audit"
	"github.com/zulandar/boardsync/internal/cache"
	"github.com/zulandar/boardsync/internal/db"
	"github.com/zulandar/boardsync/internal/logging"
)

func newAuditCmd() *cobra.Command {
	var (
		configPath string
		repair     bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check that every container is numbered 1..n",
		Long:  "Scans projects, boards and lists for duplicate or missing seqNo values. With --repair, renumbers broken containers by their current order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, configPath, repair)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to boardsync config file")
	cmd.Flags().BoolVar(&repair, "repair", false, "renumber containers that fail the check")
	return cmd
}

func runAudit(cmd *cobra.Command, configPath string, repair bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	ctx := context.Background()
	opts := audit.Options{Repair: repair, Logger: logging.New(cfg.Log, cfg.Telemetry.ServiceName)}
	if repair {
		// A repair changes order, so shared caches must drop their reads.
		if c, err := cache.New(ctx, cfg.Cache); err == nil {
			opts.Cache = c
		}
	}

	report, err := audit.Run(ctx, gormDB, opts)
	if err != nil {
		return err
	}
	return printReport(cmd, report)
}

func printReport(cmd *cobra.Command, report *audit.Report) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Checked %d containers in %s\n", report.Containers, report.Duration.Round(time.Millisecond))
	if len(report.Violations) == 0 {
		fmt.Fprintln(out, "All containers are numbered 1..n.")
		return nil
	}

	fmt.Fprintf(out, "%-6s %-10s %-9s %-9s %-6s %-6s %s\n", "KIND", "CONTAINER", "CHILDREN", "DISTINCT", "MIN", "MAX", "REPAIRED")
	for _, v := range report.Violations {
		fmt.Fprintf(out, "%-6s %-10d %-9d %-9d %-6d %-6d %d\n",
			v.Kind, v.ContainerID, v.Children, v.Distinct, v.MinSeqNo, v.MaxSeqNo, v.Repaired)
	}
	if !report.Healthy() {
		return errors.New("sequence violations found (rerun with --repair)")
	}
	fmt.Fprintf(out, "Repaired %d rows.\n", report.Repaired)
	return nil
}
