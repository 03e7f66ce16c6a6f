// Package app assembles the report handlers and their dependencies from a
// validated configuration. Every entry point (Lambda, local server, seeding)
// builds its components here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"procodus.dev/voltage/internal/api"
	"procodus.dev/voltage/internal/config"
	"procodus.dev/voltage/internal/notify"
	"procodus.dev/voltage/internal/store"
	"procodus.dev/voltage/internal/store/dynamo"
	"procodus.dev/voltage/internal/store/memory"
	"procodus.dev/voltage/internal/store/postgres"
	"procodus.dev/voltage/pkg/metrics"
	"procodus.dev/voltage/pkg/mq"
)

// Options holds the inputs of New.
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	// Registerer receives the service metrics; defaults to metrics.Registry.
	Registerer prometheus.Registerer
}

// App is a fully wired set of report handlers.
type App struct {
	Store    store.Store
	Handlers *api.Handlers
	Router   *api.Router

	logger  *slog.Logger
	closers []func() error
}

// New opens the configured store, connects the optional event publisher and
// builds the handlers.
func New(ctx context.Context, opts *Options) (*App, error) {
	if opts == nil {
		return nil, errors.New("options cannot be nil")
	}
	if opts.Config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	reg := opts.Registerer
	if reg == nil {
		reg = metrics.Registry
	}

	a := &App{logger: opts.Logger}

	s, closeStore, err := OpenStore(ctx, opts.Config, opts.Logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)
	a.Store = store.NewInstrumented(s, metrics.NewStoreMetricsWith(reg, metrics.Namespace))

	var notifier api.Notifier
	if opts.Config.Events.RabbitMQURL != "" {
		p, err := newNotifier(opts.Config.Events, opts.Logger, reg)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, p.Close)
		notifier = p
	}

	a.Handlers, err = api.NewHandlers(&api.HandlersConfig{
		Store:    a.Store,
		Logger:   opts.Logger,
		Origin:   opts.Config.Origin(),
		PageSize: opts.Config.API.PageSize,
		Metrics:  metrics.NewAPIMetricsWith(reg, metrics.Namespace),
		Notifier: notifier,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create handlers: %w", err)
	}
	a.Router = api.NewRouter(a.Handlers)

	return a, nil
}

// RouterHandler names the handler dispatching every route.
const RouterHandler = "router"

// Handler returns the Lambda handler registered under name: one of the route
// names or RouterHandler.
func (a *App) Handler(name string) (api.Handler, error) {
	if name == "" || name == RouterHandler {
		return a.Router.Handle, nil
	}

	h, ok := a.Handlers.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown handler %q", name)
	}
	return h, nil
}

// HandlerNames lists the names accepted by Handler.
func (a *App) HandlerNames() []string {
	names := []string{RouterHandler}
	for _, route := range a.Handlers.Routes() {
		names = append(names, route.Name)
	}
	return names
}

// Close releases the store and publisher connections in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenStore opens the backend selected by cfg.Store.Backend. The returned
// function releases its connections.
func OpenStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Backend {
	case config.BackendDynamoDB:
		client, err := dynamo.NewClient(ctx, dynamo.ClientConfig{
			Region:       cfg.Store.Region,
			Endpoint:     cfg.Store.Endpoint,
			ReportsTable: cfg.Store.ReportsTable,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create dynamodb client: %w", err)
		}
		s, err := dynamo.New(&dynamo.Config{
			Client:           client,
			ReportsTable:     cfg.Store.ReportsTable,
			LastReportsTable: cfg.Store.LastReportsTable,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create dynamodb store: %w", err)
		}
		log.Info("using dynamodb store",
			"reports_table", cfg.Store.ReportsTable,
			"last_reports_table", cfg.Store.LastReportsTable,
			"endpoint", dynamo.ResolveEndpoint(cfg.Store.Endpoint, cfg.Store.ReportsTable),
		)
		return s, noop, nil

	case config.BackendPostgres:
		pg := cfg.Store.Postgres
		db, err := postgres.NewDB(&postgres.DBConfig{
			Logger:   log,
			Host:     pg.Host,
			Port:     pg.Port,
			User:     pg.User,
			Password: pg.Password,
			DBName:   pg.Name,
			SSLMode:  pg.SSLMode,
		})
		if err != nil {
			return nil, nil, err
		}
		s, err := postgres.New(db)
		if err != nil {
			_ = postgres.CloseDB(db, log)
			return nil, nil, fmt.Errorf("failed to create postgres store: %w", err)
		}
		log.Info("using postgres store", "host", pg.Host, "dbname", pg.Name)
		return s, func() error { return postgres.CloseDB(db, log) }, nil

	case config.BackendMemory:
		log.Warn("using in-memory store, reports are lost on exit")
		return memory.New(), noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func newNotifier(cfg config.EventsConfig, log *slog.Logger, reg prometheus.Registerer) (*notify.Publisher, error) {
	publisher, err := mq.NewPublisher(&mq.PublisherConfig{
		URL:       cfg.RabbitMQURL,
		QueueName: cfg.QueueName,
		Logger:    log,
		Metrics:   metrics.NewMQMetricsWith(reg, metrics.Namespace),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}

	n, err := notify.NewPublisher(&notify.PublisherConfig{
		MQ:     publisher,
		Logger: log,
	})
	if err != nil {
		_ = publisher.Close()
		return nil, fmt.Errorf("failed to create report notifier: %w", err)
	}

	log.Info("report events enabled", "queue", cfg.QueueName)
	return n, nil
}
