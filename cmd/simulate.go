package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/voltage/internal/simulator"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Submit live readings of simulated stations to a running API",
	Long: `Simulate a fleet of stations that post battery and panel readings to the
report API at a fixed interval, like the field stations do.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().String("api-url", "http://localhost:3000", "base URL of the report API")
	simulateCmd.Flags().Int("stations", 5, "number of simulated stations")
	simulateCmd.Flags().Int("workers", 1, "number of concurrent submitters")
	simulateCmd.Flags().Duration("interval", time.Second, "interval between reports of one worker")
	simulateCmd.Flags().Uint64("seed", 0, "random seed of the stations (0 picks one)")

	_ = viper.BindPFlag("simulate.api_url", simulateCmd.Flags().Lookup("api-url"))
	_ = viper.BindPFlag("simulate.stations", simulateCmd.Flags().Lookup("stations"))
	_ = viper.BindPFlag("simulate.workers", simulateCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("simulate.interval", simulateCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("simulate.seed", simulateCmd.Flags().Lookup("seed"))
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	logger := GetLogger()

	client, err := simulator.NewHTTPClient(viper.GetString("simulate.api_url"), nil)
	if err != nil {
		return err
	}

	sim, err := simulator.NewServer(&simulator.ServerConfig{
		Logger:    logger,
		Submitter: client,
		Stations:  viper.GetInt("simulate.stations"),
		Workers:   viper.GetInt("simulate.workers"),
		Interval:  viper.GetDuration("simulate.interval"),
		Seed:      viper.GetUint64("simulate.seed"),
	})
	if err != nil {
		logger.Error("failed to create simulator", "error", err)
		return err
	}

	logger.Info("simulating stations",
		"api_url", viper.GetString("simulate.api_url"),
		"stations", viper.GetInt("simulate.stations"),
	)

	return sim.Run(cmd.Context())
}
