package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/viper"

	"github.com/conneroisu/motiondeck/internal/catalog"
	"github.com/conneroisu/motiondeck/internal/config"
	"github.com/conneroisu/motiondeck/internal/demos"
	"github.com/conneroisu/motiondeck/internal/logging"
	"github.com/conneroisu/motiondeck/internal/manifest"
	"github.com/conneroisu/motiondeck/internal/monitoring"
	"github.com/conneroisu/motiondeck/internal/tracing"
)

// app holds the collaborators every command builds from the configuration.
type app struct {
	cfg       *config.Config
	logger    *logging.AppLogger
	collector *monitoring.MetricsCollector
	metrics   *monitoring.ApplicationMetrics
	tracing   *tracing.Provider
	source    *manifest.Source
	catalog   *catalog.Service
}

// newApp loads the configuration from viper and wires the catalog service.
// Logs go to logOut.
func newApp(logOut io.Writer) (*app, error) {
	cfg, err := config.LoadFrom(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return newAppFromConfig(cfg, logOut)
}

func newAppFromConfig(cfg *config.Config, logOut io.Writer) (*app, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: logOut,
	})

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	collector := monitoring.NewMetricsCollector("motiondeck")
	metrics := monitoring.NewApplicationMetrics(collector)

	source := &manifest.Source{
		Path:       cfg.Catalog.Manifest,
		Components: demos.Components,
		Strict:     cfg.Catalog.Strict,
		Logger:     logger.WithComponent("registry"),
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		metrics:   metrics,
		tracing:   provider,
		source:    source,
		catalog: catalog.NewService(source, catalog.Options{
			Logger:  logger,
			Metrics: metrics,
			Tracer:  provider.Tracer(),
		}),
	}, nil
}

// Close flushes the tracer.
func (a *app) Close(ctx context.Context) error {
	return a.tracing.Shutdown(ctx)
}
