package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/nioload/internal/clientmetrics"
	"github.com/torosent/nioload/internal/config"
	"github.com/torosent/nioload/internal/logging"
	"github.com/torosent/nioload/internal/metrics"
	"github.com/torosent/nioload/internal/output"
	"github.com/torosent/nioload/internal/pool"
	"github.com/torosent/nioload/internal/runner"
	"github.com/torosent/nioload/internal/threshold"
	"github.com/torosent/nioload/internal/tracing"
	"github.com/torosent/nioload/internal/validate"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}
	validator, err := validate.Compile(cfg.Expect)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}()

	workers := pool.NewWorkers(cfg.Workers, 0, log.Named("pool"))
	defer func() {
		if err := workers.Close(); err != nil {
			log.Warn("Worker pool reported failures", zap.Error(err))
		}
	}()

	cm := clientmetrics.New()
	tr, err := newTransport(cfg, workers, cm, log)
	if err != nil {
		return err
	}
	defer tr.Close()

	factory, err := newRequesterFactory(cfg, tr, tp.Tracer(), tp.ShouldPropagate(), log)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	collector.AttachTransport(cm)

	harness := runner.New(runner.Options{
		Parallelism:   cfg.Parallelism,
		Repetitions:   cfg.Repetitions,
		Factory:       factory,
		Validate:      validator.Validate,
		RatePerSecond: cfg.Rate,
		FailFast:      cfg.FailFast,
		Recorder:      collector,
		Logger:        log.Named("runner"),
	})

	log.Info("Load run starting",
		zap.String("target", cfg.Target+cfg.Path),
		zap.String("transport", string(cfg.Transport)),
		zap.Int("parallelism", cfg.Parallelism),
		zap.Int("repetitions", cfg.Repetitions),
		zap.Int("workers", workers.Size()))

	var progress *output.ProgressReporter
	if cfg.Progress {
		progress = output.NewProgressReporter(collector, cfg.Expected(), progressInterval, stderr)
		progress.Start()
	}

	collector.Start()
	result := harness.Run(ctx)
	if progress != nil {
		progress.Stop()
	}
	stats := collector.Stats(result.Duration)
	results := threshold.Evaluate(thresholds, stats)

	log.Info("Load run finished",
		zap.Int64("counter", result.Succeeded),
		zap.Int64("expected", result.Expected),
		zap.Int("failed_units", result.Failed),
		zap.Duration("duration", result.Duration),
		zap.Int64("callbacks", workers.Executed()))

	report := output.NewReport(output.Run{
		Target:      cfg.Target + cfg.Path,
		Transport:   string(cfg.Transport),
		Parallelism: cfg.Parallelism,
		Repetitions: cfg.Repetitions,
	}, result, stats, results)
	if err := output.Write(stdout, cfg.Output, report); err != nil {
		return err
	}

	if result.FirstErr != nil {
		return fmt.Errorf("%d of %d requests succeeded: %w", result.Succeeded, result.Expected, result.FirstErr)
	}
	if !result.OK() {
		return fmt.Errorf("%d of %d requests succeeded", result.Succeeded, result.Expected)
	}
	if !threshold.AllPassed(results) {
		return errors.New("one or more thresholds failed")
	}
	return nil
}
