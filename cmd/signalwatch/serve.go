package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/signalwatch/internal/api"
	handler "github.com/newthinker/signalwatch/internal/api/handler/api"
	"github.com/newthinker/signalwatch/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scheduler and the metrics API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	rt, err := buildRuntime(log)
	if err != nil {
		return err
	}
	defer rt.close()

	log.Info("starting signalwatch",
		zap.String("host", rt.cfg.Server.Host),
		zap.Int("port", rt.cfg.Server.Port),
		zap.String("store", rt.cfg.Database.Driver),
		zap.Bool("scheduler", rt.cfg.Scheduler.Enabled),
	)

	var stats handler.StatsProvider
	if rt.cfg.Scheduler.Enabled {
		stats = rt.app
	}

	server, err := api.NewServer(api.Config{
		Host:        rt.cfg.Server.Host,
		Port:        rt.cfg.Server.Port,
		APIKey:      rt.cfg.Server.APIKey,
		MetricsPath: rt.cfg.Metrics.Path,
		Location:    rt.gate.Location(),
	}, api.Dependencies{
		Store:     rt.store,
		Scheduler: stats,
		Metrics:   rt.metrics,
	}, logger.Component(log, "api"))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- server.Start()
	}()

	schedDone := make(chan struct{})
	if rt.cfg.Scheduler.Enabled {
		go func() {
			defer close(schedDone)
			if err := rt.app.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("scheduler: %w", err)
			}
		}()
	} else {
		close(schedDone)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		if runErr != nil {
			log.Error("component failed", zap.Error(runErr))
		}
	}

	log.Info("shutting down signalwatch")
	rt.app.Stop()
	// let in-flight jobs finish their writes before the store closes
	<-schedDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return runErr
}
