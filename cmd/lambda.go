package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/voltage/internal/app"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run a report handler on the AWS Lambda runtime",
	Long: `Run one report handler as an AWS Lambda function behind API Gateway.
Handlers: router (default, dispatches by resource and method), create-report,
get-last-report, list-last-reports, list-station-reports, report-counts.`,
	RunE: runLambda,
}

func init() {
	rootCmd.AddCommand(lambdaCmd)

	lambdaCmd.Flags().String("handler", app.RouterHandler, "handler to serve")

	_ = viper.BindPFlag("lambda.handler", lambdaCmd.Flags().Lookup("handler"))
}

func runLambda(cmd *cobra.Command, _ []string) error {
	logger := GetLogger()

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(cmd.Context(), &app.Options{Config: cfg, Logger: logger})
	if err != nil {
		logger.Error("failed to initialize handlers", "error", err)
		return err
	}

	name := viper.GetString("lambda.handler")
	handler, err := a.Handler(name)
	if err != nil {
		_ = a.Close()
		return err
	}

	logger.Info("starting lambda handler",
		"handler", name,
		"store", cfg.Store.Backend,
		"deployment", cfg.Deployment,
	)

	lambda.StartWithOptions(handler, lambda.WithEnableSIGTERM(func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to release resources", "error", err)
		}
	}))
	return nil
}
