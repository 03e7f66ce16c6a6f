// Package simulator plays a fleet of stations that submit live voltage
// readings, for load and smoke testing of a running API.
package simulator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"procodus.dev/voltage/internal/seed"
)

// ServerConfig holds the configuration for the simulator.
type ServerConfig struct {
	// Logger is the structured logger
	Logger *slog.Logger
	// Submitter delivers the generated reports
	Submitter Submitter
	// Stations is the number of simulated stations
	Stations int
	// Workers is the number of concurrent submitters
	Workers int
	// Interval is the time between two reports of one worker
	Interval time.Duration
	// Seed makes station names and readings reproducible; 0 picks one
	Seed uint64
	// Now returns the report time; defaults to time.Now in UTC
	Now func() time.Time
}

// Server runs the simulated stations.
type Server struct {
	logger   *slog.Logger
	config   *ServerConfig
	stations []seed.Station
	wg       sync.WaitGroup

	submitted atomic.Int64
	failed    atomic.Int64
}

// Stats counts the submissions of a run.
type Stats struct {
	Submitted int64
	Failed    int64
}

var (
	errInvalidStations = errors.New("station count must be greater than 0")
	errInvalidWorkers  = errors.New("worker count must be greater than 0")
	errInvalidInterval = errors.New("interval must be greater than 0")
	errLoggerRequired  = errors.New("logger is required")
	errSubmitter       = errors.New("submitter is required")
)

// NewServer creates a simulator with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("simulator config cannot be nil")
	}

	if cfg.Stations <= 0 {
		return nil, errInvalidStations
	}

	if cfg.Workers <= 0 {
		return nil, errInvalidWorkers
	}

	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}

	if cfg.Logger == nil {
		return nil, errLoggerRequired
	}

	if cfg.Submitter == nil {
		return nil, errSubmitter
	}

	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	stations := seed.NewGenerator(cfg.Seed).Stations(cfg.Stations)
	for _, st := range stations {
		cfg.Logger.Debug("created station", "station", st.Name)
	}

	return &Server{
		logger:   cfg.Logger,
		config:   cfg,
		stations: stations,
	}, nil
}

// Stations returns the simulated stations.
func (s *Server) Stations() []seed.Station {
	return s.stations
}

// Stats returns the submissions so far.
func (s *Server) Stats() Stats {
	return Stats{Submitted: s.submitted.Load(), Failed: s.failed.Load()}
}

// Run starts all workers and blocks until a shutdown signal or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for i := range s.config.Workers {
		s.wg.Add(1)
		go s.runWorker(ctx, i)
	}

	s.logger.Info("simulator started",
		"stations", len(s.stations),
		"workers", s.config.Workers,
		"interval", s.config.Interval,
	)

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
	}

	s.logger.Info("waiting for workers to shut down...")
	s.wg.Wait()

	stats := s.Stats()
	s.logger.Info("simulator stopped", "submitted", stats.Submitted, "failed", stats.Failed)
	return nil
}

// runWorker submits one report of a random station per interval.
func (s *Server) runWorker(ctx context.Context, id int) {
	defer s.wg.Done()

	// Generators are not safe for concurrent use
	var gen *seed.Generator
	if s.config.Seed == 0 {
		gen = seed.NewGenerator(0)
	} else {
		gen = seed.NewGenerator(s.config.Seed + uint64(id) + 1)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	workerLogger := s.logger.With(slog.Int("worker_id", id))
	workerLogger.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			workerLogger.Info("worker shutting down")
			return

		case <-ticker.C:
			r := gen.Reading(gen.Pick(s.stations), s.config.Now())
			if err := s.config.Submitter.Submit(ctx, r); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.failed.Add(1)
				// Continue on error - don't stop the worker
				workerLogger.Error("failed to submit report", "station", r.Station, "error", err)
				continue
			}

			s.submitted.Add(1)
			workerLogger.Debug("report submitted", "station", r.Station, "date", r.Date)
		}
	}
}
