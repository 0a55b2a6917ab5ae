// Package scanner drives batch analysis: a traversal goroutine feeds file
// paths to a fixed worker pool, each worker runs the full pipeline, and the
// shared writer collects records. One failed file never stops the batch.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"verdict/analyzer"
	"verdict/config"
	"verdict/logger"
	"verdict/output"
	"verdict/utils"
)

// Run analyzes every matching file under the configured start paths. It
// returns only on completion or cancellation; per-file failures are counted
// and logged, not propagated.
func Run(ctx context.Context, cfg *config.Config, a *analyzer.Analyzer, w *output.Writer) error {
	adjustConcurrency(cfg)
	matcher := utils.NewPatternMatcher(cfg.IncludePatterns, cfg.ExcludePatterns)

	var bar *progressbar.ProgressBar
	if cfg.SkipCount {
		logger.Info("Skipping total file count")
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Analyzing files"),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetVisibility(progressVisible()),
			progressbar.OptionFullWidth(),
		)
	} else {
		logger.Info("Counting files...")
		total := 0
		for _, startPath := range cfg.StartPaths {
			count, err := countFiles(ctx, startPath, matcher, cfg.StartPaths)
			if err != nil {
				logger.Warnf("Failed to count files in %s: %v", startPath, err)
				continue
			}
			total += count
		}
		logger.Infof("Total files to analyze: %d", total)
		w.SetTotalFiles(total)
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Analyzing files"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionSetVisibility(progressVisible()),
			progressbar.OptionFullWidth(),
		)
	}

	var ioLimiter *rate.Limiter
	if cfg.MaxIOPerSecond > 0 {
		ioLimiter = rate.NewLimiter(rate.Limit(cfg.MaxIOPerSecond), cfg.MaxIOPerSecond)
	}

	progressCh := make(chan int, maxInt(cfg.ConcurrencyLevel*4, 64))
	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		for delta := range progressCh {
			_ = bar.Add(delta)
		}
	}()

	filesChan := make(chan string, cfg.ConcurrencyLevel)

	// Traversal stops dispatching on cancellation; workers drain what is
	// already queued and in-flight analyses run to their own timeouts.
	go func() {
		defer close(filesChan)
		for _, startPath := range cfg.StartPaths {
			err := walkTree(ctx, startPath, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					logger.Warnf("Failed to access %s: %v", path, err)
					return nil
				}
				if d == nil || d.IsDir() {
					return nil
				}
				if !matcher.ShouldInclude(path) {
					return nil
				}
				// Symlinked files can resolve outside the requested roots.
				if !utils.IsPathWithin(path, cfg.StartPaths) {
					logger.Debugf("Skipping %s: resolves outside the start paths", path)
					return nil
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case filesChan <- path:
					if ioLimiter != nil {
						if err := ioLimiter.Wait(ctx); err != nil {
							return err
						}
					}
				}
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warnf("Error walking path %s: %v", startPath, err)
			}
		}
	}()

	var scanned atomic.Int64
	var wg sync.WaitGroup
	for range cfg.ConcurrencyLevel {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range filesChan {
				w.IncrementScanned()
				scanned.Add(1)
				analyzeOne(ctx, a, w, path)
				progressCh <- 1
			}
		}()
	}

	wg.Wait()
	close(progressCh)
	progressWG.Wait()

	if cfg.SkipCount {
		w.SetTotalFiles(int(scanned.Load()))
	}
	return ctx.Err()
}

func analyzeOne(ctx context.Context, a *analyzer.Analyzer, w *output.Writer, path string) {
	record, err := a.AnalyzeFile(ctx, path)
	if err == nil {
		w.WriteRecord(record)
		return
	}

	var limitErr *analyzer.ResourceLimitExceededError
	var readErr *analyzer.ReadError
	switch {
	case errors.As(err, &limitErr):
		logger.Warnf("Resource limit for %s: %v", path, err)
		w.CountFailure(true)
	case errors.As(err, &readErr):
		logger.Warnf("Failed to read %s: %v", path, err)
		w.CountFailure(false)
	case errors.Is(err, context.Canceled):
		// Batch shutdown, not a file failure.
	default:
		logger.Warnf("Failed to analyze %s: %v", path, err)
		w.CountFailure(false)
	}
}

func countFiles(ctx context.Context, startPath string, matcher *utils.PatternMatcher, roots []string) (int, error) {
	var total int
	err := walkTree(ctx, startPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warnf("Failed to access %s: %v", path, err)
			return nil
		}
		if d != nil && !d.IsDir() && matcher.ShouldInclude(path) && utils.IsPathWithin(path, roots) {
			total++
		}
		return nil
	})
	return total, err
}

// adjustConcurrency maps the nice level onto a worker count unless the
// operator pinned one explicitly.
func adjustConcurrency(cfg *config.Config) {
	if cfg.ConcurrencySet {
		return
	}
	numCPU := runtime.NumCPU()
	switch cfg.NiceLevel {
	case "high":
		cfg.ConcurrencyLevel = numCPU
	case "medium":
		cfg.ConcurrencyLevel = numCPU / 2
		if cfg.ConcurrencyLevel < 1 {
			cfg.ConcurrencyLevel = 1
		}
	case "low":
		cfg.ConcurrencyLevel = 1
	}
}

func progressVisible() bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv("VERDICT_DISABLE_PROGRESS")))
	return value != "1" && value != "true" && value != "yes" && value != "on"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
