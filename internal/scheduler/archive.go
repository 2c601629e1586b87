package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/btcindex/internal/domain"
)

// ArchiveLoop periodically rolls aged index and feature records out of the
// primary store into blob cold storage.
type ArchiveLoop struct {
	archiver      domain.Archiver
	retentionDays int
	interval      time.Duration
	logger        *slog.Logger
}

// NewArchiveLoop creates an ArchiveLoop. Records older than retentionDays are
// archived on each pass.
func NewArchiveLoop(archiver domain.Archiver, retentionDays int, interval time.Duration, logger *slog.Logger) *ArchiveLoop {
	return &ArchiveLoop{
		archiver:      archiver,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger.With(slog.String("component", "archive")),
	}
}

// Run executes one archive pass immediately, then repeats on the configured
// interval until the context is cancelled. Individual pass failures are
// logged and do not stop the loop.
func (a *ArchiveLoop) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "archive loop started",
		slog.Int("retention_days", a.retentionDays),
		slog.Duration("interval", a.interval),
	)

	if err := a.runOnce(ctx); err != nil {
		a.logger.ErrorContext(ctx, "archive pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archive loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.runOnce(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (a *ArchiveLoop) runOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)

	indexArchived, err := a.archiver.ArchiveIndex(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving index prices before %v: %w", cutoff, err)
	}

	featuresArchived, err := a.archiver.ArchiveFeatures(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving feature records before %v: %w", cutoff, err)
	}

	a.logger.InfoContext(ctx, "archive pass complete",
		slog.Time("cutoff", cutoff),
		slog.Int64("index_archived", indexArchived),
		slog.Int64("features_archived", featuresArchived),
	)
	return nil
}
