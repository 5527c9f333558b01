// Package main is the CLI entry point for the price tracker.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"PriceSentry/internal/collector"
	"PriceSentry/internal/config"
	"PriceSentry/internal/fetch"
	"PriceSentry/internal/recorder"
	"PriceSentry/internal/scheduler"
	"PriceSentry/internal/server"
	"PriceSentry/internal/session"
	"PriceSentry/internal/store"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	app := &cli.Command{
		Name:    "tracker",
		Usage:   "Track one Amazon product price from the terminal",
		Version: version,
		Commands: []*cli.Command{
			runCommand(),
			versionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start tracking and open the query prompt",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   "config.yaml",
				Sources: cli.EnvVars("PRICESENTRY_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "Amazon product URL to track",
			},
			&cli.StringFlag{
				Name:  "data-file",
				Usage: "Path to the CSV price log",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (trace, debug, info, warn, error, fatal, panic)",
			},
			&cli.StringFlag{
				Name:  "listen-address",
				Usage: "Metrics listen address (e.g. :9100); empty disables the server",
			},
		},
		Action: runAction,
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(_ context.Context, _ *cli.Command) error {
			fmt.Printf("tracker %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	_ = godotenv.Load() // load .env if present; not fatal if missing

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	// CLI overrides
	if v := cmd.String("url"); v != "" {
		cfg.Source.URL = v
	}
	if v := cmd.String("data-file"); v != "" {
		cfg.DataFile = v
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := cmd.String("listen-address"); v != "" {
		cfg.Server.ListenAddress = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	log := logger.WithField("app", "tracker")
	log.WithFields(logrus.Fields{
		"version": version,
		"commit":  commit,
	}).Info("starting tracker")

	// One buffered reader shared by the URL prompt and the session, so
	// nothing typed ahead is lost between them.
	stdin := bufio.NewReader(os.Stdin)

	sourceURL := cfg.Source.URL
	if sourceURL == "" {
		fmt.Print("Paste Amazon product URL: ")
		line, err := stdin.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read product URL: %w", err)
		}
		sourceURL = strings.TrimSpace(line)
	}
	if sourceURL == "" {
		return fmt.Errorf("no product URL given")
	}

	fetcher := fetch.NewAmazonFetcher(fetch.Options{
		Timeout:           cfg.Source.Timeout(),
		Proxy:             cfg.Proxy,
		UserAgent:         cfg.Source.UserAgent,
		AcceptLanguage:    cfg.Source.AcceptLanguage,
		RequestsPerMinute: cfg.Source.RequestsPerMinute,
	})
	log.WithField("source", fetcher.Name()).Info("data source ready")

	st, err := store.Open(cfg.DataFile, log)
	if err != nil {
		return fmt.Errorf("open price log: %w", err)
	}
	defer st.Close()

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.WithError(err).Warn("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	col := collector.New(fetcher, st, rec, sourceURL, log)

	fmt.Println("\nInitial scrape ...")
	quote, err := col.Bootstrap(runCtx)
	if err != nil {
		return err
	}

	logPath := cfg.DataFile
	if abs, err := filepath.Abs(logPath); err == nil {
		logPath = abs
	}
	fmt.Print(session.RenderTracking(col.Identity(), quote.Price, logPath))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		col.Run(runCtx, collector.DefaultInterval)
	}()
	// Every exit path from here on stops and joins the sampler before the
	// deferred closes run.
	defer func() {
		cancel()
		wg.Wait()
	}()
	fmt.Printf("\nBackground polling every %d s started.\n\n", int(collector.DefaultInterval.Seconds()))

	sched := scheduler.NewScheduler(col, st, rec, log)
	if err := sched.Register(cfg.Schedule.DigestCron); err != nil {
		return err
	}
	sched.Start()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info("RUN_ON_START enabled, executing digest now")
		go sched.RunDigestNow()
	}

	var srv *server.Server
	if cfg.Server.ListenAddress != "" {
		srv = server.NewServer(cfg.Server.ListenAddress, log)
		if err := srv.Start(); err != nil {
			sched.Stop()
			return err
		}
	}

	sess := session.New(st, col.Identity(), stdin, os.Stdout, log)
	sess.Run(runCtx)

	// Session is over: stop sampling, wait for any in-flight append, then
	// tear the rest down.
	cancel()
	wg.Wait()
	sched.Stop()
	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			log.WithError(err).Warn("server shutdown failed")
		}
	}

	log.Info("tracker stopped")
	return nil
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger
}
