package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ecoledger/carbonsync-backend/internal/adapters/extmatcher"
	"github.com/ecoledger/carbonsync-backend/internal/adapters/snapshotfile"
	appsync "github.com/ecoledger/carbonsync-backend/internal/application/sync"
	"github.com/ecoledger/carbonsync-backend/internal/domain/carbon"
	"github.com/ecoledger/carbonsync-backend/internal/domain/matcher"
	"github.com/ecoledger/carbonsync-backend/internal/infrastructure/config"
	"github.com/ecoledger/carbonsync-backend/internal/infrastructure/logging"
	"github.com/ecoledger/carbonsync-backend/internal/infrastructure/storage"
)

func main() {
	// Parse flags
	var (
		configFile = flag.String("config", "", "Configuration file path")
		input      = flag.String("input", "", "Snapshot batch file (overrides config source)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	// Load configuration
	var cfg *config.Config
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.LoadOrEnv()
	}
	if *input != "" {
		cfg.Source = *input
	}
	if *verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "sync")

	// Initialize storage
	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Refresh carbon reference data when configured
	if cfg.Carbon.MappingsPath != "" {
		n, err := store.ImportCarbonMappingsFile(cfg.Carbon.MappingsPath)
		if err != nil {
			logger.Error("failed to import carbon mappings", "error", err)
			os.Exit(1)
		}
		logger.Info("carbon mappings loaded", "count", n)
	}

	// Select the fuzzy matching engine
	var engine matcher.Engine
	switch cfg.Matcher.Mode {
	case "external":
		engine = extmatcher.New(cfg.Matcher.Command, cfg.Matcher.WorkDir, logger)
	default:
		engine = matcher.NewLevenshteinEngine()
	}

	thresholds := matcher.Thresholds{
		Lower: cfg.Matcher.LowerThreshold,
		Upper: cfg.Matcher.UpperThreshold,
	}

	seeds, err := matcher.LoadSeeds(cfg.Matcher.Seeds.ManualMatches, cfg.Matcher.Seeds.FalsePositives)
	if err != nil {
		logger.Error("failed to load seed lists", "error", err)
		os.Exit(1)
	}

	resolver := matcher.NewResolver(store, engine, thresholds, seeds, logger)
	mapper := carbon.NewMapper(store, logger)
	source := snapshotfile.New(cfg.Source)

	orchestrator := appsync.NewOrchestrator(source, store, resolver, mapper, logger)

	result, err := orchestrator.Run(context.Background(), appsync.Options{Verbose: *verbose})
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}

	if len(result.Errors) > 0 {
		logger.Warn("run finished with item errors", "count", len(result.Errors))
	}
}
