// Package app initializes all components of the bot and owns the run
// pipeline: roster, activity refresh, classification, the three publish
// stages, and the optional maintainer notification.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"toolforge.org/rights-audit/internal/common"
	"toolforge.org/rights-audit/internal/config"
	"toolforge.org/rights-audit/internal/db/replica"
	"toolforge.org/rights-audit/internal/features/activity"
	"toolforge.org/rights-audit/internal/features/audit"
	"toolforge.org/rights-audit/internal/features/report"
	"toolforge.org/rights-audit/internal/features/roster"
	"toolforge.org/rights-audit/internal/notify"
	"toolforge.org/rights-audit/internal/state"
	"toolforge.org/rights-audit/internal/wiki"
)

// App holds the long-lived components of the bot.
type App struct {
	Config   *config.Config
	DB       *pgxpool.Pool
	Wiki     *wiki.Client
	Notifier *notify.Notifier

	opts   report.Options
	prompt report.Prompter
}

// New creates and initializes the application. Initialization order
// matters: the replica and the wiki login must both succeed before a run
// can be attempted.
func New(ctx context.Context, cfg *config.Config, opts report.Options,
	prompt report.Prompter) (*App, error) {
	pool, err := replica.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the replica: %w", err)
	}

	client, err := wiki.NewClient(cfg.WikiAPIURL, cfg.WikiUsername, cfg.WikiPassword)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := client.Login(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to log in to the wiki: %w", err)
	}

	notifier, err := notify.New(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &App{
		Config:   cfg,
		DB:       pool,
		Wiki:     client,
		Notifier: notifier,
		opts:     opts,
		prompt:   prompt,
	}, nil
}

// Close releases the replica pool.
func (a *App) Close() {
	a.DB.Close()
}

// Run executes one full audit pass. Returns common.ErrDisabled when the
// on-wiki configuration has the enable flag off.
func (a *App) Run(ctx context.Context) error {
	started := time.Now()
	summary := notify.Summary{}
	err := a.run(ctx, &summary)
	summary.Duration = time.Since(started)
	summary.Err = err
	if err == nil || errors.Is(err, common.ErrDisabled) {
		summary.Err = nil
	}
	a.Notifier.SendRunSummary(ctx, summary)
	return err
}

func (a *App) run(ctx context.Context, summary *notify.Summary) error {
	// All horizon math is UTC; one "now" per run keeps it consistent.
	now := time.Now().UTC()

	remote, err := config.FetchRemote(ctx, a.Wiki, a.Config.ConfigPage)
	if err != nil {
		return err
	}
	if !remote.Enable {
		log.Info("disabled")
		return common.ErrDisabled
	}

	horizons := audit.HorizonsAt(now)

	// 1. User universe: persisted state merged with both rosters.
	store := state.NewStore(a.Config.StateFile)
	persisted := store.Load()

	rosterService := roster.NewService(roster.NewRepository(a.DB), a.Wiki, a.Config.CheckPage)
	records, err := rosterService.Build(ctx, persisted)
	if err != nil {
		return err
	}

	// 2. Refresh stale activity. The repository is created per run so its
	// memo caches live exactly one run.
	resolver := activity.NewResolver(activity.NewRepository(a.DB), horizons.Display)
	if err := resolver.Refresh(ctx, records); err != nil {
		return err
	}

	// 3. Classify.
	result := audit.NewClassifier(horizons).Classify(records)
	summary.ReportRows = len(result.Report)
	summary.Notices = len(result.Notices)
	summary.Escalations = len(result.Escalations)

	// 4. Publish. Each stage flushes its own cooldown updates.
	publisher := report.NewService(a.Wiki, store, a.prompt, remote, a.opts, horizons, now)
	if err := publisher.PublishExport(ctx, result.Report); err != nil {
		return err
	}
	if err := publisher.SendNotices(ctx, result.Notices, records); err != nil {
		return err
	}
	if err := publisher.PublishEscalations(ctx, result.Escalations, records); err != nil {
		return err
	}

	// Final flush so dropped users disappear from the state file even when
	// no stage had anything to write.
	if err := publisher.Flush(records); err != nil {
		return err
	}

	log.Info("Audit run complete")
	return nil
}
