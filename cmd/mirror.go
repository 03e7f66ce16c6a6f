package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/voltage/internal/app"
	"procodus.dev/voltage/internal/mirror"
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Replay report events into the configured store",
	Long: `Consume report.created events from RabbitMQ and write every report to the
configured store backend, for example a PostgreSQL copy of the DynamoDB tables:

  voltage mirror --store postgres`,
	RunE: runMirror,
}

func init() {
	rootCmd.AddCommand(mirrorCmd)

	mirrorCmd.Flags().String("rabbitmq-url", "", "RabbitMQ URL (defaults to events.rabbitmq_url)")
	mirrorCmd.Flags().Int("prefetch", 16, "maximum unacknowledged deliveries")

	_ = viper.BindPFlag("events.rabbitmq_url", mirrorCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("mirror.prefetch", mirrorCmd.Flags().Lookup("prefetch"))
}

func runMirror(cmd *cobra.Command, _ []string) error {
	logger := GetLogger()

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Events.RabbitMQURL == "" {
		return errors.New("events.rabbitmq_url must be set to mirror report events")
	}

	s, closeStore, err := app.OpenStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	consumer, err := mirror.NewConsumer(&mirror.ConsumerConfig{
		Logger:      logger,
		Store:       s,
		RabbitMQURL: cfg.Events.RabbitMQURL,
		QueueName:   cfg.Events.QueueName,
		Prefetch:    viper.GetInt("mirror.prefetch"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("mirroring report events",
		"queue", cfg.Events.QueueName,
		"store", cfg.Store.Backend,
	)

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return consumer.Stop()
}
