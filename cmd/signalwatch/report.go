package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/signalwatch/internal/logger"
	"github.com/newthinker/signalwatch/internal/performance"
	"github.com/newthinker/signalwatch/internal/storage/signal"
)

var (
	metricsFrom string
	metricsTo   string
	pfYear      int
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print trading metrics for signals issued in a date range",
	RunE:  runMetrics,
}

var profitFactorCmd = &cobra.Command{
	Use:   "profit-factor",
	Short: "Print the monthly profit factor table for a year",
	RunE:  runProfitFactor,
}

func init() {
	metricsCmd.Flags().StringVar(&metricsFrom, "from", "", "Start date YYYY-MM-DD")
	metricsCmd.Flags().StringVar(&metricsTo, "to", "", "End date YYYY-MM-DD (inclusive)")
	profitFactorCmd.Flags().IntVar(&pfYear, "year", 0, "Year (default current year)")

	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(profitFactorCmd)
}

// readOnlyStore opens just the store and the market timezone.
func readOnlyStore(log *zap.Logger) (signal.Store, *time.Location, func(), error) {
	cfg, err := loadConfig(log)
	if err != nil {
		return nil, nil, nil, err
	}
	loc, err := time.LoadLocation(cfg.Calendar.Timezone)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading timezone: %w", err)
	}
	store, closeStore, err := openStore(cfg.Database, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening signal store: %w", err)
	}
	return store, loc, closeStore, nil
}

func parseDay(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", value, err)
	}
	return &d, nil
}

func runMetrics(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	store, loc, closeStore, err := readOnlyStore(log)
	if err != nil {
		return err
	}
	defer closeStore()

	from, err := parseDay(metricsFrom, loc)
	if err != nil {
		return err
	}
	to, err := parseDay(metricsTo, loc)
	if err != nil {
		return err
	}
	if to != nil {
		end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		to = &end
	}
	if from != nil && to != nil && to.Before(*from) {
		return fmt.Errorf("end date must be after start date")
	}

	m, err := performance.NewEngine(store, loc).TradingMetrics(context.Background(), from, to)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE\t")
	fmt.Fprintln(w, "------\t-----\t")
	fmt.Fprintf(w, "Total signals\t%d\t\n", m.TotalSignals)
	fmt.Fprintf(w, "Closed signals\t%d\t\n", m.ClosedSignals)
	fmt.Fprintf(w, "Win rate\t%.2f%%\t\n", m.WinRate)
	fmt.Fprintf(w, "Avg profit\t%+.2f%%\t\n", m.AvgProfit)
	fmt.Fprintf(w, "Max profit\t%+.2f%%\t\n", m.MaxProfit)
	fmt.Fprintf(w, "Min profit\t%+.2f%%\t\n", m.MinProfit)
	fmt.Fprintf(w, "Max drawdown\t%+.2f%%\t\n", m.MaxDrawdown)
	fmt.Fprintf(w, "Avg holding days\t%d\t\n", m.AvgHoldingDays)
	return w.Flush()
}

func runProfitFactor(cmd *cobra.Command, args []string) error {
	if pfYear != 0 && (pfYear < 1970 || pfYear > 9999) {
		return fmt.Errorf("invalid year %d", pfYear)
	}

	log := logger.Must(debug)
	defer log.Sync()

	store, loc, closeStore, err := readOnlyStore(log)
	if err != nil {
		return err
	}
	defer closeStore()

	report, err := performance.NewEngine(store, loc).ProfitFactor(context.Background(), pfYear)
	if err != nil {
		return err
	}

	fmt.Printf("Profit factor %d: %.2f\n\n", report.Year, report.ProfitFactor)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MONTH\tSIGNALS\tGROSS PROFIT\tGROSS LOSS\tPROFIT FACTOR\t")
	fmt.Fprintln(w, "-----\t-------\t------------\t----------\t-------------\t")
	for _, mo := range report.Monthly {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t\n",
			mo.Month, mo.Signals, mo.GrossProfit, mo.GrossLoss, mo.ProfitFactor)
	}
	return w.Flush()
}
