package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/signalwatch/internal/app"
	"github.com/newthinker/signalwatch/internal/logger"
)

var jobAliases = map[string]string{
	"price-update": app.JobPriceUpdate,
	"announce":     app.JobAnnounce,
	"expiry":       app.JobExpirySweep,
	"summary":      app.JobDailySummary,
}

var runCmd = &cobra.Command{
	Use:       "run [price-update|announce|expiry|summary]",
	Short:     "Run one scheduler job once and print its report",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"price-update", "announce", "expiry", "summary"},
	RunE:      runJob,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func resolveJob(name string) (string, error) {
	if job, ok := jobAliases[name]; ok {
		return job, nil
	}
	for _, job := range app.Jobs {
		if job == name {
			return job, nil
		}
	}
	return "", fmt.Errorf("unknown job %q", name)
}

func runJob(cmd *cobra.Command, args []string) error {
	job, err := resolveJob(args[0])
	if err != nil {
		return err
	}

	log := logger.Must(debug)
	defer log.Sync()

	rt, err := buildRuntime(log)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := rt.app.Run(ctx, job)
	if err != nil {
		return err
	}
	log.Debug("job finished", zap.String("job", job), zap.Duration("duration", report.Duration))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.Error != "" {
		return fmt.Errorf("%s failed: %s", job, report.Error)
	}
	return nil
}
