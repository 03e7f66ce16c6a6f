// Package config turns viper settings into the validated configuration of
// the voltage components.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"procodus.dev/voltage/internal/api"
)

// EnvPrefix is the prefix of every environment variable read by viper.
const EnvPrefix = "VOLTAGE"

// Store backends.
const (
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// productionMarker in the deployment identifier selects the production origin.
const productionMarker = "production"

// Backends lists the supported store backends.
var Backends = []string{BackendDynamoDB, BackendPostgres, BackendMemory}

// Config is the validated configuration handed to components.
type Config struct {
	LogLevel   string
	Deployment string
	Store      StoreConfig
	API        APIConfig
	HTTP       HTTPConfig
	Events     EventsConfig
}

// StoreConfig selects and configures the report store.
type StoreConfig struct {
	Backend          string
	Region           string
	Endpoint         string
	ReportsTable     string
	LastReportsTable string
	Postgres         PostgresConfig
}

// PostgresConfig holds the connection settings of the postgres backend.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// APIConfig configures the handlers.
type APIConfig struct {
	PageSize         int
	ProductionOrigin string
}

// HTTPConfig configures the local server.
type HTTPConfig struct {
	Port int
}

// EventsConfig enables report events when RabbitMQURL is set.
type EventsConfig struct {
	RabbitMQURL string
	QueueName   string
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("deployment", "local")
	v.SetDefault("store.backend", BackendDynamoDB)
	v.SetDefault("store.reports_table", "voltage-reports")
	v.SetDefault("store.last_reports_table", "voltage-last-reports")
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.user", "postgres")
	v.SetDefault("store.postgres.name", "voltage")
	v.SetDefault("store.postgres.sslmode", "disable")
	v.SetDefault("api.page_size", 100)
	v.SetDefault("http.port", 3000)
	v.SetDefault("events.queue_name", "voltage-reports")
}

// BindEnv makes viper read VOLTAGE_* variables and the unprefixed names the
// deployed functions were configured with.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	aliases := map[string][]string{
		"store.reports_table":      {"VOLTAGE_STORE_REPORTS_TABLE", "REPORTS_TABLE", "DYNAMODB_TABLE_NAME"},
		"store.last_reports_table": {"VOLTAGE_STORE_LAST_REPORTS_TABLE", "LAST_REPORTS_TABLE"},
		"deployment":               {"VOLTAGE_DEPLOYMENT", "DEPLOYMENT"},
	}
	for key, names := range aliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		LogLevel:   v.GetString("log.level"),
		Deployment: v.GetString("deployment"),
		Store: StoreConfig{
			Backend:          strings.ToLower(v.GetString("store.backend")),
			Region:           v.GetString("store.region"),
			Endpoint:         v.GetString("store.endpoint"),
			ReportsTable:     v.GetString("store.reports_table"),
			LastReportsTable: v.GetString("store.last_reports_table"),
			Postgres: PostgresConfig{
				Host:     v.GetString("store.postgres.host"),
				Port:     v.GetInt("store.postgres.port"),
				User:     v.GetString("store.postgres.user"),
				Password: v.GetString("store.postgres.password"),
				Name:     v.GetString("store.postgres.name"),
				SSLMode:  v.GetString("store.postgres.sslmode"),
			},
		},
		API: APIConfig{
			PageSize:         v.GetInt("api.page_size"),
			ProductionOrigin: v.GetString("cors.production_origin"),
		},
		HTTP: HTTPConfig{
			Port: v.GetInt("http.port"),
		},
		Events: EventsConfig{
			RabbitMQURL: v.GetString("events.rabbitmq_url"),
			QueueName:   v.GetString("events.queue_name"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(Backends, c.Store.Backend) {
		errs = append(errs, fmt.Errorf("unknown store backend %q (want one of %s)",
			c.Store.Backend, strings.Join(Backends, ", ")))
	}

	if c.Store.Backend == BackendDynamoDB {
		if c.Store.ReportsTable == "" {
			errs = append(errs, errors.New("reports table name cannot be empty"))
		}
		if c.Store.LastReportsTable == "" {
			errs = append(errs, errors.New("last reports table name cannot be empty"))
		}
	}

	if c.Store.Backend == BackendPostgres {
		if c.Store.Postgres.Host == "" {
			errs = append(errs, errors.New("postgres host cannot be empty"))
		}
		if c.Store.Postgres.Port <= 0 {
			errs = append(errs, errors.New("postgres port must be positive"))
		}
	}

	if c.API.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}

	if c.Production() && c.API.ProductionOrigin == "" {
		errs = append(errs, errors.New("production origin cannot be empty in a production deployment"))
	}

	if c.Events.RabbitMQURL != "" && c.Events.QueueName == "" {
		errs = append(errs, errors.New("events queue name cannot be empty"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Production reports whether the deployment identifier marks production.
func (c *Config) Production() bool {
	return strings.Contains(strings.ToLower(c.Deployment), productionMarker)
}

// Origin returns the Access-Control-Allow-Origin value of the deployment.
func (c *Config) Origin() string {
	if c.Production() {
		return c.API.ProductionOrigin
	}
	return api.AnyOrigin
}
