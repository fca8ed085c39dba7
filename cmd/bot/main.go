// Package main — entry point of the rights-audit bot.
// Parses the three --confirm-* flags, loads configuration and runs one
// audit pass (or keeps running on a cron schedule when RUN_SCHEDULE is
// set). A disabled on-wiki configuration exits with status 0.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"toolforge.org/rights-audit/internal/app"
	"toolforge.org/rights-audit/internal/common"
	"toolforge.org/rights-audit/internal/config"
	"toolforge.org/rights-audit/internal/features/report"
	"toolforge.org/rights-audit/internal/jobs"
)

func main() {
	var opts report.Options
	flag.BoolVar(&opts.ConfirmExport, "confirm-export", false,
		"show a diff and ask before saving the export page")
	flag.BoolVar(&opts.ConfirmNotice, "confirm-notice", false,
		"ask before posting each talk-page notice")
	flag.BoolVar(&opts.ConfirmReport, "confirm-report", false,
		"show a diff and ask before saving the escalation page")
	flag.Parse()

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prompter := common.NewConsolePrompter(os.Stdin, os.Stdout)

	application, err := app.New(ctx, cfg, opts, prompter)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	// Scheduled mode: stay resident and run on the cron expression until
	// SIGINT/SIGTERM.
	if cfg.RunSchedule != "" {
		scheduler := jobs.NewScheduler(cfg.RunSchedule, application.Run)
		if err := scheduler.Start(ctx); err != nil {
			log.WithError(err).Fatal("Failed to start scheduler")
		}
		defer scheduler.Stop()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit
		log.Infof("Received signal %s, shutting down...", sig)
		cancel()
		return
	}

	// Default: one pass and exit.
	if err := application.Run(ctx); err != nil {
		if errors.Is(err, common.ErrDisabled) {
			return
		}
		log.WithError(err).Fatal("Audit run failed")
	}
}

func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}
