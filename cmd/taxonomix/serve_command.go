package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taxonomix/backend/internal/api"
	"github.com/taxonomix/backend/internal/config"
	"github.com/taxonomix/backend/internal/parser"
	"github.com/taxonomix/backend/internal/pipeline"
	"github.com/taxonomix/backend/internal/storage"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx, cmd.OutOrStdout())
		},
	}
}

func runServe(cmdCtx context.Context, ctx *commandContext, out io.Writer) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	svc, err := newServices(signalCtx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	files, err := storage.NewLocalStore(cfg.Storage.UploadsDirectory, cfg.Storage.OutputDirectory)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	mgr := pipeline.NewManager(pipeline.Options{
		Reader:   parser.NewReader(logger).WithSampleBytes(cfg.Processing.SampleBytes),
		Resolver: svc.resolver,
		Warmer:   svc.warmer,
		Tracker:  svc.tracker,
		Sink:     files,
		Metrics:  svc.metrics,
		Logger:   logger,
	})

	e := api.NewServer(&api.Dependencies{
		Jobs:     mgr,
		Progress: svc.tracker,
		Uploads:  files,
		Outputs:  files,
		Gatherer: svc.registry,
		Logger:   logger,
		Version:  Version,
	}, api.MiddlewareConfig{
		AllowOrigins:   cfg.Server.AllowOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		RequestLogging: cfg.Server.RequestLogging,
	})

	// a zero write timeout keeps SSE streams open
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	printBanner(out, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-signalCtx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSeconds)*time.Second)
	defer stop()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}

	drained := make(chan struct{})
	go func() {
		mgr.Wait()
		svc.warmer.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out with jobs in flight")
	}
	return nil
}

func printBanner(out io.Writer, cfg *config.AppConfig) {
	jobStore := "memory"
	switch {
	case cfg.Jobs.NATSURL != "":
		jobStore = "nats " + cfg.Jobs.NATSURL
	case cfg.Jobs.Embedded:
		jobStore = "nats (embedded)"
	}

	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(out, "║           Taxonomix Server                                ║\n")
	fmt.Fprintf(out, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(out, "║  Version:    %-45s║\n", Version)
	fmt.Fprintf(out, "║  Build Time: %-45s║\n", BuildTime)
	fmt.Fprintf(out, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(out, "║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Fprintf(out, "║  Data Dir:  %-46s║\n", cfg.Storage.DataDirectory)
	fmt.Fprintf(out, "║  Cache:     %-46s║\n", cfg.Cache.Driver)
	fmt.Fprintf(out, "║  Jobs:      %-46s║\n", jobStore)
	fmt.Fprintf(out, "╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Fprintf(out, "\n")
}
