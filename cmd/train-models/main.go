// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

// Command train-models trains and persists Pathfinder's models once.
//
// Without -data it bootstraps from synthetic samples, which is how a fresh
// installation gets non-neutral models before real feedback exists. Model
// hyperparameters come from the same configuration as the server (config
// file and environment); -out overrides MODEL_DIR.
//
// Usage:
//
//	train-models [-out DIR] [-data FILE] [-samples N] [-seed N]
//	             [-routes-db FILE] [-write-data FILE]
//
// After a successful run the model directory holds pathfinder_model.gob.gz,
// pathfinder_ann.gob.gz and pathfinder_ann_metadata.json.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/pathfinder/internal/config"
	"github.com/tomtom215/pathfinder/internal/logging"
	"github.com/tomtom215/pathfinder/internal/predict"
	"github.com/tomtom215/pathfinder/internal/predict/models"
	"github.com/tomtom215/pathfinder/internal/predict/storage"
	"github.com/tomtom215/pathfinder/internal/routestore"
)

// options are the command-line flags.
type options struct {
	modelDir  string
	dataPath  string
	routesDB  string
	writeData string
	samples   int
	seed      uint64
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("train-models", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.modelDir, "out", "", "model directory (default: MODEL_DIR)")
	fs.StringVar(&opts.dataPath, "data", "", "JSON training payload; synthetic samples are generated when empty")
	fs.IntVar(&opts.samples, "samples", 200, "number of synthetic samples")
	fs.Uint64Var(&opts.seed, "seed", 42, "seed for synthetic samples")
	fs.StringVar(&opts.routesDB, "routes-db", "", "also store the training routes in this SQLite route database")
	fs.StringVar(&opts.writeData, "write-data", "", "write the training payload as JSON to this file")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.dataPath == "" && opts.samples < 1 {
		return options{}, fmt.Errorf("-samples must be at least 1, got %d", opts.samples)
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.LoggingOptions())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logging.WithComponent("train-models")); err != nil {
		logging.Error().Err(err).Msg("Model training failed")
		stop()
		os.Exit(1) //nolint:gocritic // stop is called explicitly above
	}
}

// run trains both models through the coordinator and verifies the
// artifacts on disk.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func run(ctx context.Context, cfg *config.Config, opts options, logger zerolog.Logger) error {
	modelDir := cfg.Models.Dir
	if opts.modelDir != "" {
		modelDir = opts.modelDir
	}

	data, err := trainingData(opts, logger)
	if err != nil {
		return err
	}
	logger.Info().
		Int("ensemble_rows", len(data.EnsembleFeatures)).
		Int("neural_rows", len(data.NeuralFeatures)).
		Msg("Training data ready")

	if opts.writeData != "" {
		if err := writePayload(opts.writeData, data); err != nil {
			return err
		}
		logger.Info().Str("path", opts.writeData).Msg("Training payload written")
	}
	if opts.routesDB != "" {
		if err := storeRoutes(ctx, opts.routesDB, data.EnsembleFeatures, logger); err != nil {
			return err
		}
	}

	store, err := storage.NewStore(modelDir)
	if err != nil {
		return err
	}
	logger.Info().Str("model_dir", store.Dir()).Msg("Using model directory")

	coordinator, err := predict.NewCoordinator(predict.Config{
		CacheTTL:        cfg.Cache.TTL,
		CacheCapacity:   cfg.Cache.Capacity,
		ValidationSplit: cfg.Ensemble.ValidationSplit,
	},
		routestore.NewMemoryStore(),
		models.NewEnsemble(models.EnsembleConfigFromSettings(&cfg.Ensemble), store, logger),
		models.NewNeural(models.NeuralConfigFromSettings(&cfg.Neural), store, logger),
		logger,
	)
	if err != nil {
		return err
	}

	if !coordinator.UpdateModels(ctx, data) {
		return errors.New("model update reported failure")
	}

	var missing []string
	for _, file := range []string{models.EnsembleFile, models.NeuralFile, models.NeuralMetadataFile} {
		if !store.Exists(file) {
			missing = append(missing, file)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing expected model files: %v", missing)
	}

	logger.Info().Str("version", coordinator.Version()).Msg("All model files were created successfully")
	return nil
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func trainingData(opts options, logger zerolog.Logger) (*predict.TrainingData, error) {
	if opts.dataPath != "" {
		logger.Info().Str("path", opts.dataPath).Msg("Loading training payload")
		return predict.LoadTrainingData(opts.dataPath)
	}
	logger.Info().Int("samples", opts.samples).Uint64("seed", opts.seed).Msg("Generating synthetic training data")
	return predict.SyntheticTrainingData(opts.samples, opts.seed), nil
}

func writePayload(path string, data *predict.TrainingData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal training payload: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write training payload: %w", err)
	}
	return nil
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func storeRoutes(ctx context.Context, path string, routes []predict.RouteSnapshot, logger zerolog.Logger) (err error) {
	db, err := routestore.OpenSQLite(ctx, path, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for i := range routes {
		if err := db.PutRoute(ctx, &routes[i]); err != nil {
			return fmt.Errorf("store route %d: %w", routes[i].ID, err)
		}
	}
	logger.Info().Int("routes", len(routes)).Str("path", path).Msg("Training routes stored")
	return nil
}
