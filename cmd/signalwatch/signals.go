package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/signalwatch/internal/core"
	"github.com/newthinker/signalwatch/internal/logger"
	"github.com/newthinker/signalwatch/internal/performance"
	"github.com/newthinker/signalwatch/internal/storage/signal"
)

var (
	addSymbol      string
	addExchange    string
	addEntryMin    float64
	addEntryMax    float64
	addStopLoss    float64
	addTP          [3]float64
	addDate        string
	addHoldingDays int

	listSymbol string
	listStatus string
	listLimit  int
)

var signalCmd = &cobra.Command{
	Use:   "signal",
	Short: "Manage tracked signals",
}

var signalAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a new signal",
	RunE:  runSignalAdd,
}

var signalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked signals, newest first",
	RunE:  runSignalList,
}

func init() {
	f := signalAddCmd.Flags()
	f.StringVar(&addSymbol, "symbol", "", "Ticker symbol (required)")
	f.StringVar(&addExchange, "exchange", "HOSE", "Exchange code")
	f.Float64Var(&addEntryMin, "entry-min", 0, "Entry zone lower bound (required)")
	f.Float64Var(&addEntryMax, "entry-max", 0, "Entry zone upper bound (defaults to entry-min)")
	f.Float64Var(&addStopLoss, "sl", 0, "Stop-loss price (required)")
	f.Float64Var(&addTP[0], "tp1", 0, "First take-profit price (required)")
	f.Float64Var(&addTP[1], "tp2", 0, "Second take-profit price")
	f.Float64Var(&addTP[2], "tp3", 0, "Third take-profit price")
	f.StringVar(&addDate, "date", "", "Signal date YYYY-MM-DD (default today)")
	f.IntVar(&addHoldingDays, "holding-days", 0, "Holding period in days (default from config)")
	signalAddCmd.MarkFlagRequired("symbol")
	signalAddCmd.MarkFlagRequired("entry-min")
	signalAddCmd.MarkFlagRequired("sl")
	signalAddCmd.MarkFlagRequired("tp1")

	signalListCmd.Flags().StringVar(&listSymbol, "symbol", "", "Filter by symbol")
	signalListCmd.Flags().StringVar(&listStatus, "status", "", "Comma-separated statuses (PENDING,ACTIVE,CLOSED)")
	signalListCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum rows")

	signalCmd.AddCommand(signalAddCmd)
	signalCmd.AddCommand(signalListCmd)
	rootCmd.AddCommand(signalCmd)
}

func runSignalAdd(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(cfg.Calendar.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone: %w", err)
	}

	date := time.Now().In(loc)
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	if addDate != "" {
		if date, err = time.ParseInLocation("2006-01-02", addDate, loc); err != nil {
			return fmt.Errorf("invalid date (expected YYYY-MM-DD): %w", err)
		}
	}
	days := addHoldingDays
	if days <= 0 {
		days = cfg.Lifecycle.DefaultHoldingDays
	}

	sig, err := core.NewSignal(core.NewSignalParams{
		Symbol:        strings.ToUpper(addSymbol),
		Exchange:      strings.ToUpper(addExchange),
		EntryPriceMin: addEntryMin,
		EntryPriceMax: addEntryMax,
		StopLossPrice: addStopLoss,
		TP1Price:      addTP[0],
		TP2Price:      addTP[1],
		TP3Price:      addTP[2],
		SignalDate:    date,
		HoldingPeriod: date.AddDate(0, 0, days),
	})
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("opening signal store: %w", err)
	}
	defer closeStore()

	if err := store.Save(context.Background(), &sig); err != nil {
		return err
	}
	log.Info("signal recorded",
		zap.String("signal_id", sig.ID),
		zap.String("symbol", sig.Symbol),
		zap.Time("holding_period", sig.HoldingPeriod),
	)
	fmt.Println(sig.ID)
	return nil
}

func runSignalList(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	store, loc, closeStore, err := readOnlyStore(log)
	if err != nil {
		return err
	}
	defer closeStore()

	filter := signal.ListFilter{Symbol: strings.ToUpper(listSymbol), Limit: listLimit}
	if listStatus != "" {
		for _, s := range strings.Split(listStatus, ",") {
			st := core.Status(strings.ToUpper(strings.TrimSpace(s)))
			switch st {
			case core.StatusPending, core.StatusActive, core.StatusClosed:
				filter.Statuses = append(filter.Statuses, st)
			default:
				return fmt.Errorf("invalid status %q", s)
			}
		}
	}

	signals, err := store.List(context.Background(), filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYMBOL\tDATE\tENTRY\tPRICE\tSTATUS\tDISPLAY\tEFFICIENCY\t")
	fmt.Fprintln(w, "--\t------\t----\t-----\t-----\t------\t-------\t----------\t")
	for _, s := range signals {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%s\t%s\t%+.2f%%\t\n",
			s.ID, s.Symbol, s.SignalDate.In(loc).Format("2006-01-02"), s.EntryPrice(),
			s.CurrentPrice, s.Status, s.DisplayStatus(), performance.Efficiency(s))
	}
	return w.Flush()
}
