// Command bootstrap is the entry point of the report functions on the Lambda
// custom runtime. The handler is taken from the function's configured
// handler name and every other setting from the environment.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/viper"

	"procodus.dev/voltage/internal/app"
	"procodus.dev/voltage/internal/config"
	"procodus.dev/voltage/pkg/logger"
)

func main() {
	// Parse command-line flags
	handlerName := flag.String("handler", "", "Handler to serve (router, create-report, ...)")
	flag.Parse()

	v := viper.New()
	config.SetDefaults(v)
	log := logger.NewDefault()
	if err := config.BindEnv(v); err != nil {
		log.Error("failed to bind environment", "error", err)
		os.Exit(1)
	}

	log = logger.NewWithLevel(logger.ParseLevel(v.GetString("log.level")))

	cfg, err := config.Load(v)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	a, err := app.New(context.Background(), &app.Options{Config: cfg, Logger: log})
	if err != nil {
		log.Error("failed to initialize handlers", "error", err)
		os.Exit(1)
	}

	name := resolveHandler(*handlerName, v.GetString("lambda.handler"), os.Getenv("_HANDLER"))
	handler, err := a.Handler(name)
	if err != nil {
		log.Error("failed to select handler", "error", err, "available", a.HandlerNames())
		_ = a.Close()
		os.Exit(1)
	}

	log.Info("starting lambda handler",
		"handler", name,
		"store", cfg.Store.Backend,
		"deployment", cfg.Deployment,
	)

	lambda.StartWithOptions(handler, lambda.WithEnableSIGTERM(func() {
		if err := a.Close(); err != nil {
			log.Error("failed to release resources", "error", err)
		}
	}))
}

// resolveHandler picks the flag, then VOLTAGE_LAMBDA_HANDLER, then the
// runtime handler setting. The conventional "bootstrap" setting selects the
// router.
func resolveHandler(flagValue, configured, runtime string) string {
	switch {
	case flagValue != "":
		return flagValue
	case configured != "":
		return configured
	case runtime == "bootstrap":
		return app.RouterHandler
	default:
		return runtime
	}
}
