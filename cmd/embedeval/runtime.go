package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JS12540/evaluating-embedding-models/internal/backends"
	"github.com/JS12540/evaluating-embedding-models/internal/config"
	"github.com/JS12540/evaluating-embedding-models/internal/observability"
)

// globalOptions holds the persistent root flags.
type globalOptions struct {
	configPath string
	logLevel   string
}

// runtime bundles the resolved config with the observability handles shared by a command.
type runtime struct {
	cfg        *config.Config
	configPath string
	runID      string

	log      *slog.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	shutdown func(context.Context) error
}

func newRuntime(cmd *cobra.Command, opts *globalOptions) (*runtime, error) {
	cfg, path, err := config.Resolve(opts.configPath)
	if err != nil {
		if path != "" {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	slog.SetDefault(logger.Slog())

	tc := cfg.Observability.Tracing
	traceCfg := observability.TraceConfig{
		ServiceName:    tc.ServiceName,
		ServiceVersion: version,
		Environment:    tc.Environment,
		SamplingRate:   tc.SamplingRate,
		Attributes:     tc.Attributes,
		EnableInsecure: tc.Insecure,
	}
	if tc.Enabled {
		traceCfg.Endpoint = tc.Endpoint
	}
	tracer, shutdown := observability.NewTracer(traceCfg)

	rt := &runtime{
		cfg:        cfg,
		configPath: path,
		runID:      uuid.NewString(),
		log:        logger.Slog(),
		metrics:    observability.NewMetrics(),
		tracer:     tracer,
		shutdown:   shutdown,
	}
	if path == "" {
		rt.log.Debug("no config file found, using defaults")
	} else {
		rt.log.Debug("config loaded", "path", path)
	}
	return rt, nil
}

// context tags ctx with the run id.
func (rt *runtime) context(ctx context.Context) context.Context {
	return observability.WithRunID(ctx, rt.runID)
}

func (rt *runtime) deps() backends.Deps {
	return backends.Deps{Metrics: rt.metrics, Tracer: rt.tracer, Logger: rt.log}
}

// Close writes the metrics textfile and flushes pending spans.
func (rt *runtime) Close() error {
	var errs []error
	if path := rt.cfg.Observability.MetricsPath; path != "" {
		if err := rt.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
	}
	return errors.Join(errs...)
}

// withRuntime builds the runtime for cmd, runs fn and closes the runtime.
func withRuntime(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, rt *runtime) error) error {
	rt, err := newRuntime(cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			rt.log.Warn("cleanup failed", "error", closeErr)
		}
	}()
	return fn(rt.context(cmd.Context()), rt)
}
