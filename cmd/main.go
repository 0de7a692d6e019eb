package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"

	"bitcoin-gains/internal/config"
	"bitcoin-gains/internal/core"
	"bitcoin-gains/internal/logger"
	"bitcoin-gains/internal/metrics"
	"bitcoin-gains/internal/model"
	"bitcoin-gains/internal/normalizer"
	"bitcoin-gains/internal/pricing"
	"bitcoin-gains/internal/repository"
	"bitcoin-gains/internal/service"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	runID := uuid.NewString()
	logger.Init(cfg.LogLevel, cfg.LogFile, runID)
	logger.Info("Configuration loaded successfully",
		"files", cfg.Histories,
		"fmv_url", cfg.FMVURL,
		"data", cfg.DataPath,
		"method", cfg.Method,
		"transfer_window", cfg.TransferWindow,
		"confirm_all", cfg.ConfirmAll,
	)

	if err := run(cfg, runID); err != nil {
		logger.Error("Run failed", "error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, runID string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.Method == config.MethodLowest || cfg.Method == config.MethodHighest {
		fmt.Fprintf(os.Stderr, "warning: method %q picks lots by price; this changes how much gain is realized and when\n", cfg.Method)
		logger.Warn("Price based disposal method selected", "method", cfg.Method)
	}

	// Repositories
	storage := repository.NewStorage()
	ids := model.NewIDGenerator()

	// Price oracle, loaded on first lookup
	oracle := pricing.NewFeedOracle(pricing.NewFeed(cfg.FMVURL), cfg.FallbackPrice)

	ledger, err := core.NewLedger(cfg.Method, oracle)
	if err != nil {
		return err
	}

	var confirm core.Confirmer = core.AutoConfirm{}
	if !cfg.ConfirmAll {
		confirm = core.NewPromptConfirmer(os.Stdin, os.Stdout)
	}

	tracker := metrics.NewTracker()
	engine := core.NewEngine(
		normalizer.Default(ids, storage),
		core.NewTransferMatcher(cfg.TransferWindow, confirm),
		ledger,
		tracker,
		cfg.Method,
	)

	paths := append([]string(nil), cfg.Histories...)
	if storage.Exists(cfg.DataPath) {
		paths = append(paths, cfg.DataPath)
	} else {
		logger.Debug("No external transactions file", "path", cfg.DataPath)
	}

	res, err := engine.Run(ctx, paths)
	if err != nil {
		return err
	}
	if misses := oracle.Misses(); misses > 0 {
		logger.Warn("Prices missing from feed, fallback used", "lookups", misses, "fallback", cfg.FallbackPrice)
	}

	if err := service.NewReporter(os.Stdout).Render(res); err != nil {
		return err
	}

	collector := service.NewDataCollector(storage, runID)
	if cfg.CSVExport != "" {
		if err := collector.SaveSteps(cfg.CSVExport, res); err != nil {
			return err
		}
	}
	tracker.Log()
	if cfg.JSONExport != "" {
		if err := collector.SaveAudit(cfg.JSONExport, res, tracker.Summary()); err != nil {
			return err
		}
	}
	return nil
}
