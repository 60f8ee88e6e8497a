package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taxonomix/backend/internal/names"
	"github.com/taxonomix/backend/internal/parser"
	"github.com/taxonomix/backend/internal/taxonomy"
)

func newWarmCommand(ctx *commandContext) *cobra.Command {
	var columns []string

	cmd := &cobra.Command{
		Use:   "warm <csv>",
		Short: "Preload the name cache from a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWarm(cmd.Context(), ctx, args[0], columns, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Taxonomic columns to read (default: detected)")
	return cmd
}

func runWarm(cmdCtx context.Context, ctx *commandContext, path string, columns []string, out io.Writer) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%s does not exist", path)
	}
	defer f.Close()

	table, err := parser.NewReader(logger).WithSampleBytes(cfg.Processing.SampleBytes).Read(f)
	if err != nil {
		return err
	}

	if len(columns) == 0 {
		columns = taxonomy.NewClassifier(nil).Classify(table)
	}
	for _, col := range columns {
		if table.Column(col) == nil {
			return fmt.Errorf("unknown column %q", col)
		}
	}

	svc, err := newServices(cmdCtx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	list := names.CollectWarmNames(table, columns)
	fmt.Fprintf(out, "Found %d unique names to warm cache.\n", len(list))

	stats := svc.warmer.Run(cmdCtx, list, func(done, total int, name string, ok bool) {
		status := "✘"
		if ok {
			status = "✔"
		}
		fmt.Fprintf(out, "[%d/%d] %s %s\n", done, total, status, name)
	})
	fmt.Fprintf(out, "Resolved %d of %d in %s (columns: %s)\n",
		stats.Resolved, stats.Total, stats.Elapsed.Round(time.Millisecond), strings.Join(columns, ", "))
	return nil
}
