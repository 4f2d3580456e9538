// Command importer runs the import pipeline from the command line:
// one or more .xlsx files in, a JSON result out.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finsheet/internal/config"
	"finsheet/internal/extractor"
	"finsheet/internal/infrastructure"
	"finsheet/internal/learning"
	"finsheet/internal/operations"
	"finsheet/internal/services"
)

func main() {
	strategy := flag.String("strategy", "smart", "deduplication strategy for multi-file imports: strict|smart|none")
	out := flag.String("out", "", "output file for the JSON result (defaults to stdout)")
	templateName := flag.String("template", "", "name to save the learned template under")
	noLearn := flag.Bool("no-learn", false, "disable the learning store for this run")
	year := flag.Int("year", 0, "reference year for monthly columns (defaults to the current year)")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall import timeout")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: importer [flags] file.xlsx [file.xlsx ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		slog.Error("failed to prepare directories", "error", err)
		os.Exit(1)
	}

	logger := infrastructure.MustInitializeLogger(cfg.Logging)
	defer infrastructure.CloseLogFile()

	var store learning.Store = learning.NewMemoryStore()
	if !*noLearn {
		sqlStore, err := learning.NewSQLiteStore(cfg.Learning.DBPath)
		if err != nil {
			logger.Error("opening learning store", "error", err)
			os.Exit(1)
		}
		defer sqlStore.Close()
		store = sqlStore
	}
	learningSystem := learning.NewSystem(store, logger)

	pool := operations.NewWorkerPool(cfg.Pipeline.Workers, logger)
	defer pool.Close()

	broadcaster := operations.NewProgressBroadcaster(logger)
	broadcaster.Subscribe(progressPrinter{})

	manager := operations.NewManager(operations.ManagerConfig{
		Logger:           logger,
		Executor:         pool,
		Cache:            operations.NewResultCache(cfg.Pipeline.CacheTTL, cfg.Pipeline.CacheMaxSize),
		Broadcaster:      broadcaster,
		Learning:         learningSystem,
		BalanceMagnitude: cfg.Classifier.BalanceMagnitude,
		ChunkSize:        cfg.Pipeline.ChunkSize,
		MatchThreshold:   cfg.Learning.MatchThreshold,
		Workers:          cfg.Pipeline.Workers,
	})
	service := services.NewImportService(logger, extractor.New(logger), manager, learningSystem)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	options := operations.ImportOptions{
		EnableCaching: cfg.Pipeline.EnableCaching,
		ReferenceYear: *year,
		TemplateName:  *templateName,
	}

	var payload interface{}
	if len(files) == 1 {
		outcome, err := service.ImportFile(ctx, files[0], options)
		if err != nil {
			logger.Error("import failed", "file", files[0], "error", err)
			os.Exit(1)
		}
		payload = outcome
	} else {
		batch, err := service.ImportBatch(ctx, files, *strategy, options)
		if err != nil {
			logger.Error("batch import failed", "error", err)
			os.Exit(1)
		}
		payload = batch
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		logger.Error("encoding result", "error", err)
		os.Exit(1)
	}

	if *out == "" {
		fmt.Println(string(encoded))
		return
	}
	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		logger.Error("creating output directory", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, encoded, 0o644); err != nil {
		logger.Error("writing result", "error", err)
		os.Exit(1)
	}
	logger.Info("result written", "path", *out)
}

// progressPrinter mirrors pipeline progress onto stderr.
type progressPrinter struct{}

func (progressPrinter) Publish(event operations.ProgressEvent) {
	fmt.Fprintf(os.Stderr, "%-10s %3d%% %s\n",
		event.Phase, event.Percentage, strings.ToUpper(event.Status))
}
