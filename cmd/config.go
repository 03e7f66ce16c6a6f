package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"procodus.dev/voltage/internal/config"
	"procodus.dev/voltage/pkg/logger"
)

// InitConfig initializes Viper configuration.
// It supports reading from config files (config.yaml) and environment variables.
func InitConfig(cfgFile string) error {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory and /etc/voltage/
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/voltage/")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	config.SetDefaults(viper.GetViper())
	if err := config.BindEnv(viper.GetViper()); err != nil {
		return err
	}

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if errors.As(err, &configNotFoundErr) {
			// Config file not found; rely on env vars and defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// LoadConfig returns the validated configuration.
func LoadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// GetLogger creates a slog.Logger based on configuration.
func GetLogger() *slog.Logger {
	return logger.NewWithLevel(logger.ParseLevel(viper.GetString("log.level")))
}
