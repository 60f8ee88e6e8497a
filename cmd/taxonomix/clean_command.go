package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/taxonomix/backend/internal/parser"
	"github.com/taxonomix/backend/internal/pipeline"
	"github.com/taxonomix/backend/internal/storage"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "clean <input>",
		Short: "Normalize a local table and write the cleaned copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd.Context(), ctx, args[0], output, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default <input>.cleaned.csv)")
	return cmd
}

func runClean(cmdCtx context.Context, ctx *commandContext, input, output string, out io.Writer) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if output == "" {
		output = defaultCleanOutput(input)
	}

	svc, err := newServices(cmdCtx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	// the upload directory is unused here; outputs land next to the target path
	sink, err := storage.NewLocalStore(filepath.Dir(output), filepath.Dir(output))
	if err != nil {
		return err
	}

	mgr := pipeline.NewManager(pipeline.Options{
		Reader:   parser.NewReader(logger).WithSampleBytes(cfg.Processing.SampleBytes),
		Resolver: svc.resolver,
		Warmer:   svc.warmer,
		Tracker:  svc.tracker,
		Sink:     sink,
		Metrics:  svc.metrics,
		Logger:   logger,
	})

	res, err := mgr.Run(cmdCtx, uuid.New().String(), filepath.Base(output), data)
	if err != nil {
		return err
	}

	if len(res.Columns) == 0 {
		fmt.Fprintln(out, res.Message)
	} else {
		fmt.Fprintf(out, "Taxonomic columns: %s\n", strings.Join(res.Columns, ", "))
		fmt.Fprintf(out, "Normalized names:  %d\n", len(res.Normalized))
	}
	fmt.Fprintf(out, "Wrote %s\n", output)
	return nil
}

func defaultCleanOutput(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".cleaned.csv"
}
