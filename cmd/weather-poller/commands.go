package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-poller/internal/api/http"
	"github.com/i474232898/weather-poller/internal/scheduler"
	"github.com/i474232898/weather-poller/internal/weather"
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, true)
	if err != nil {
		return err
	}
	defer c.close()

	sched := scheduler.New(c.pipeline, c.registry, c.cfg.PollInterval, c.logger, c.metrics)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	app := httpapi.NewApp(weather.NewService(c.store), httpapi.Options{
		AllowedOrigins: c.cfg.CORSAllowedOrigins,
		Logger:         c.logger,
		AccessLog:      true,
	})

	listenErr := make(chan error, 1)
	go func() {
		c.logger.Info("http server listening", "port", c.cfg.Port)
		listenErr <- app.Listen(":" + c.cfg.Port)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		c.logger.Info("shutdown signal received")
	case serveErr = <-listenErr:
		c.logger.Error("http server stopped", "error", serveErr)
	}

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		c.logger.Error("error during shutdown", "error", err)
	}
	return serveErr
}

func runPoll(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, true)
	if err != nil {
		return err
	}
	defer c.close()

	report := c.pipeline.RunCycle(ctx, c.registry.Locations())
	if err := printJSON(report); err != nil {
		return err
	}
	if report.Cancelled {
		return context.Canceled
	}
	return nil
}

func runLatest(cmd *cobra.Command, _ []string) error {
	count, err := cmd.Flags().GetInt("count")
	if err != nil {
		return err
	}

	c, err := buildComponents(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer c.close()

	records, err := weather.NewService(c.store).GetLatest(cmd.Context(), count)
	if errors.Is(err, weather.ErrNotFound) {
		return errors.New("no weather records stored yet")
	}
	if err != nil {
		return err
	}
	return printJSON(records)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
