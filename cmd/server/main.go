// Surveil - Bayesian market-abuse risk scoring engine
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantsentinel/surveil/internal/config"
	"github.com/quantsentinel/surveil/internal/logging"
	"github.com/quantsentinel/surveil/internal/metrics"
	"github.com/quantsentinel/surveil/internal/probability"
	"github.com/quantsentinel/surveil/internal/server"
	"github.com/quantsentinel/surveil/internal/typology"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	logger.Info("starting surveil",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = logging.New(cfg.LogLevel, cfg.LogFmt)

	registry := probability.NewRegistry()
	if err := registry.ValidateAll(); err != nil {
		logger.Error("probability registry validation failed", "error", err)
		os.Exit(1)
	}

	// Per-typology YAML documents are optional overlays on the builtin
	// definitions.
	var opts []typology.ServiceOption
	if cfg.TypologyConfigDir != "" {
		docs, err := config.LoadTypologyDocuments(cfg.TypologyConfigDir)
		if err != nil {
			logger.Error("failed to load typology documents", "error", err)
			os.Exit(1)
		}
		for t, doc := range docs {
			def, err := typology.DefinitionFor(t)
			if err != nil {
				logger.Error("unknown typology in config", "typology", t, "error", err)
				os.Exit(1)
			}
			if err := doc.Apply(&def); err != nil {
				logger.Error("invalid typology document", "typology", t, "error", err)
				os.Exit(1)
			}
			opts = append(opts, typology.WithDefinition(def))
		}
		logger.Info("typology documents loaded", "count", len(docs))
	}

	service, err := typology.NewService(registry, logger, opts...)
	if err != nil {
		logger.Error("failed to build typology models", "error", err)
		os.Exit(1)
	}

	metrics.ModelsReady.Set(float64(len(service.Typologies())))
	logger.Info("typology models ready", "count", len(service.Typologies()))

	// SIGHUP rebuilds every model against a fresh registry; a failed
	// reload keeps the current models serving.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			reg := probability.NewRegistry()
			if err := reg.ValidateAll(); err != nil {
				logger.Error("reload rejected: registry invalid", "error", err)
				continue
			}
			if err := service.Reload(reg); err != nil {
				logger.Error("reload failed", "error", err)
				continue
			}
			metrics.RegistryReloadsTotal.Inc()
			metrics.ModelsReady.Set(float64(len(service.Typologies())))
		}
	}()

	srv, err := server.New(cfg, service, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
