package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/slopscope/slopscope/pkg/classifier"
	"github.com/slopscope/slopscope/pkg/config"
	"github.com/slopscope/slopscope/pkg/content"
	"github.com/slopscope/slopscope/pkg/repository"
	"github.com/slopscope/slopscope/pkg/scanner"
	"github.com/slopscope/slopscope/pkg/scraper"
	"github.com/slopscope/slopscope/pkg/settings"
	"github.com/slopscope/slopscope/pkg/watch"
	"github.com/slopscope/slopscope/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"f" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		lgr.Printf("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		lgr.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1)
	}
	cancel()

	lgr.Printf("[INFO] shutdown complete")
}

// run wires all components and blocks until the context is canceled
func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	setupLog(opts.Debug, cfg.Classifier.APIKey)
	lgr.Printf("[INFO] starting slopscope version %s", revision)

	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}
	defer func() {
		if cerr := repos.Close(); cerr != nil {
			lgr.Printf("[WARN] database close: %v", cerr)
		}
	}()

	settingsManager, err := settings.NewManager(ctx, repos.Setting)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if err := settingsManager.SeedModel(ctx, cfg.Classifier.Model); err != nil {
		lgr.Printf("[WARN] seed configured model: %v", err)
	}

	backend := classifier.NewOpenAIBackend(cfg.GetClassifierConfig())
	gateway := classifier.NewGateway(backend, settingsManager, cfg.Classifier.RetryDelay)

	var submission scanner.SubmissionExtractor
	if cfg.Extraction.Enabled {
		submission = content.NewHTTPExtractor(cfg.Extraction.Timeout, cfg.Extraction.MinTextLength)
	}

	scn := scanner.New(scanner.Params{
		Fetcher:    scraper.NewPageFetcher(cfg.Scan.Timeout, cfg.Scan.UserAgent),
		Classifier: gateway,
		Repo:       repos.Reputation,
		Settings:   settingsManager,
		Submission: submission,
		MinTextLen: cfg.Scan.MinTextLength,
	})

	if cfg.Watch.Enabled {
		watcher := watch.NewWatcher(scn, settingsManager, watch.Config{
			Threads:  cfg.Watch.Threads,
			Interval: cfg.Watch.Interval,
			Timeout:  cfg.Scan.Timeout,
		})
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	srv := server.New(cfg, scn, gateway, repos.Reputation, settingsManager, revision, opts.Debug)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	if dbg {
		logOpts = append(logOpts, lgr.Debug, lgr.CallerFile, lgr.CallerFunc)
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	var filtered []string
	for _, s := range secs {
		if s != "" {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) > 0 {
		logOpts = append(logOpts, lgr.Secret(filtered...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
