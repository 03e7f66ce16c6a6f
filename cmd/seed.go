package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/voltage/internal/app"
	"procodus.dev/voltage/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add or remove sample reports",
}

var seedAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Write the sample reports to both tables",
	Long: `Write the sample reports of tonalapa, caracol, piedra grande and la piedra
to the reports and last reports tables. With --synthetic N, also generate N
stations with a report series over the last days.`,
	RunE: runSeedAdd,
}

var seedRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Delete the sample reports from both tables",
	RunE:  runSeedRemove,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.AddCommand(seedAddCmd, seedRemoveCmd)

	seedAddCmd.Flags().Int("synthetic", 0, "number of generated stations")
	seedAddCmd.Flags().Int("days", 7, "days of generated reports per station")
	seedAddCmd.Flags().Int("per-day", 24, "generated reports per station and day")
	seedAddCmd.Flags().Uint64("seed", 0, "random seed of the generator (0 picks one)")

	_ = viper.BindPFlag("seed.synthetic", seedAddCmd.Flags().Lookup("synthetic"))
	_ = viper.BindPFlag("seed.days", seedAddCmd.Flags().Lookup("days"))
	_ = viper.BindPFlag("seed.per_day", seedAddCmd.Flags().Lookup("per-day"))
	_ = viper.BindPFlag("seed.seed", seedAddCmd.Flags().Lookup("seed"))
}

func runSeedAdd(cmd *cobra.Command, _ []string) error {
	logger := GetLogger()

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	s, closeStore, err := app.OpenStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	reports := seed.Samples()
	if n := viper.GetInt("seed.synthetic"); n > 0 {
		g := seed.NewGenerator(viper.GetUint64("seed.seed"))
		generated := g.Reports(g.Stations(n), viper.GetInt("seed.days"), viper.GetInt("seed.per_day"), time.Now().UTC())
		logger.Info("generated synthetic reports", "stations", n, "reports", len(generated))
		reports = append(reports, generated...)
	}

	return seed.Add(cmd.Context(), s, reports, logger)
}

func runSeedRemove(cmd *cobra.Command, _ []string) error {
	logger := GetLogger()

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	s, closeStore, err := app.OpenStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	return seed.Remove(cmd.Context(), s, seed.Samples(), logger)
}
