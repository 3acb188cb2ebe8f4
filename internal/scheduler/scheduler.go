// Package scheduler owns the rate table snapshot and reloads it from the
// configuration file on a cron schedule. Reload is the explicit
// administrative update path; the engine itself never mutates rates.
package scheduler

import (
	"fmt"

	"github.com/assetfin/quote-engine/internal/config"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reloader reloads the rate table from the configuration file on a schedule.
type Reloader struct {
	cron       *cron.Cron
	snapshot   *Snapshot
	configPath string
	logger     *zap.Logger
}

// NewReloader creates a Reloader around an existing snapshot.
func NewReloader(snapshot *Snapshot, configPath string, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{
		cron:       cron.New(),
		snapshot:   snapshot,
		configPath: configPath,
		logger:     logger,
	}
}

// Register schedules the reload job with the given cron spec.
func (r *Reloader) Register(cronSpec string) error {
	if _, err := r.cron.AddFunc(cronSpec, r.reload); err != nil {
		return fmt.Errorf("register reload task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (r *Reloader) Start() {
	r.cron.Start()
	r.logger.Info("rate reload scheduler started",
		zap.String("op", "scheduler.Start"),
	)
}

// Stop stops the cron scheduler gracefully.
func (r *Reloader) Stop() {
	r.cron.Stop()
	r.logger.Info("rate reload scheduler stopped",
		zap.String("op", "scheduler.Stop"),
	)
}

// ReloadNow reloads immediately (for manual trigger).
func (r *Reloader) ReloadNow() {
	r.reload()
}

// reload re-reads the configuration file and swaps the snapshot. A failed
// reload keeps the previous table in effect.
func (r *Reloader) reload() {
	conf, err := config.LoadConfiguration(r.configPath)
	if err != nil {
		r.logger.Error("rate reload failed to read configuration",
			zap.String("op", "scheduler.reload"),
			zap.Error(err),
		)
		return
	}
	if err := conf.Validate(); err != nil {
		r.logger.Error("rate reload rejected invalid configuration",
			zap.String("op", "scheduler.reload"),
			zap.Error(err),
		)
		return
	}

	table, err := conf.BuildTable()
	if err != nil {
		r.logger.Error("rate reload failed to build table",
			zap.String("op", "scheduler.reload"),
			zap.Error(err),
		)
		return
	}

	r.snapshot.Swap(table)
	r.logger.Info("rate table reloaded",
		zap.String("op", "scheduler.reload"),
		zap.Int("terms", len(table.Entries())),
		zap.Int("fees", len(table.Fees())),
	)
}
