package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"verdict/analyzer"
	"verdict/config"
	"verdict/logger"
	"verdict/output"
	"verdict/scanner"
	"verdict/systeminfo"
	"verdict/tracing"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)

	if err := tracing.Start(cfg.TraceFile); err != nil {
		logger.Warnf("Failed to start trace: %v", err)
	} else {
		defer tracing.Stop()
	}

	if cfg.TraceFlight {
		if err := tracing.StartFlightRecorder(cfg.TraceFlightMax, cfg.TraceFlightMinAge); err != nil {
			logger.Warnf("Failed to start flight recorder: %v", err)
		} else {
			defer func() {
				if err := tracing.WriteFlightRecorder(cfg.TraceFlightFile); err != nil {
					logger.Warnf("Failed to write flight recorder: %v", err)
				}
				tracing.StopFlightRecorder()
			}()
		}
	}

	metrics := output.Metrics{
		StartTime: time.Now().UTC().Format(time.RFC3339),
	}

	var host *systeminfo.HostInfo
	if cfg.CollectSystemInfo {
		host = systeminfo.Collect()
	}

	writer, err := output.New(cfg, host, &metrics)
	if err != nil {
		logger.Fatalf("Failed to initialize output: %v", err)
	}
	defer writer.Close()

	var known *analyzer.KnownSet
	if cfg.KnownHashFile != "" {
		known, err = analyzer.LoadKnownSet(cfg.KnownHashFile)
		if err != nil {
			logger.Fatalf("Failed to load known hashes from %s: %v", cfg.KnownHashFile, err)
		}
		logger.Infof("Loaded %d known-benign hashes", known.Size())
	}

	a := analyzer.New(analyzerOptions(cfg), analyzer.NewDigestCache(cfg.DigestCacheSize), known)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go handleSignalEvent(cancel, &metrics, cfg.TraceFlight, cfg.TraceFlightFile, sigChan)

	err = scanner.Run(ctx, cfg, a, writer)
	metrics.EndTime = time.Now().UTC().Format(time.RFC3339)

	switch {
	case err == nil:
		logger.Info("Analysis completed successfully.")
	case errors.Is(err, context.Canceled):
		logger.Info("Analysis interrupted; partial report written.")
	default:
		logger.Fatalf("Analysis failed: %v", err)
	}
}

// analyzerOptions maps the resolved configuration onto the analyzer's
// per-file limits and factor settings.
func analyzerOptions(cfg *config.Config) analyzer.Options {
	opts := analyzer.Options{
		MaxFileSize:     cfg.MaxFileSize,
		PerFileTimeout:  cfg.PerFileTimeout,
		MinStringLength: cfg.MinStringLength,
		MaxSuspicious:   cfg.MaxSuspicious,
		Patterns:        cfg.Patterns,
		HashAlgorithms:  cfg.HashAlgorithms,
		Weights:         cfg.FactorWeights,
		Thresholds:      cfg.RiskThresholds,
		Notable:         cfg.NotableThreshold,
		ContentReadMode: cfg.ContentReadMode,
		MmapMinSize:     cfg.MmapMinSize,
		StreamChunkSize: cfg.StreamChunkSize,
	}
	if cfg.FuzzyHash {
		opts.FuzzyAlgorithms = cfg.FuzzyAlgorithms
		opts.FuzzyMinSize = cfg.FuzzyMinSize
		opts.FuzzyMaxSize = cfg.FuzzyMaxSize
	}
	return opts
}

func handleSignalEvent(cancelFunc context.CancelFunc, metrics *output.Metrics, traceFlight bool, traceFlightFile string, sigChan chan os.Signal) {
	<-sigChan
	logger.Info("Interrupt signal received. Shutting down...")

	metrics.EndTime = time.Now().UTC().Format(time.RFC3339)

	if traceFlight {
		if err := tracing.WriteFlightRecorder(traceFlightFile); err != nil {
			logger.Warnf("Failed to write flight recorder: %v", err)
		}
		tracing.StopFlightRecorder()
	}

	cancelFunc()
}
