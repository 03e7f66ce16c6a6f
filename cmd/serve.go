package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/voltage/internal/app"
	"procodus.dev/voltage/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the report API over HTTP",
	Long: `Serve the report API on a local HTTP port. Requests are translated into
API Gateway proxy events and dispatched through the Lambda router.
Also serves /health and /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("http-port", 3000, "HTTP server port")
	serveCmd.Flags().String("stage", "local", "API Gateway stage reported to the handlers")

	_ = viper.BindPFlag("http.port", serveCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("http.stage", serveCmd.Flags().Lookup("stage"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting local API server")

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(cmd.Context(), &app.Options{Config: cfg, Logger: logger})
	if err != nil {
		logger.Error("failed to initialize handlers", "error", err)
		return err
	}

	srv, err := server.NewServer(&server.ServerConfig{
		Logger:   logger,
		Router:   a.Router,
		HTTPPort: cfg.HTTP.Port,
		Stage:    viper.GetString("http.stage"),
	})
	if err != nil {
		_ = a.Close()
		logger.Error("failed to create server", "error", err)
		return err
	}
	srv.OnShutdown(a.Close)

	logger.Info("server configuration",
		"http_port", cfg.HTTP.Port,
		"store", cfg.Store.Backend,
		"origin", cfg.Origin(),
		"events", cfg.Events.RabbitMQURL != "",
	)

	if err := srv.Run(cmd.Context()); err != nil {
		logger.Error("server error", "error", err)
		return err
	}

	logger.Info("local API server stopped")
	return nil
}
