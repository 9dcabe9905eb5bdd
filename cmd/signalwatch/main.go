package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "signalwatch",
	Short: "signalwatch - trading signal lifecycle and market-data ingestion",
	Long: `signalwatch tracks published trading signals against live market data.
It polls quotes during trading hours, detects take-profit and stop-loss
crossings, broadcasts them to notifiers and reports performance metrics.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
