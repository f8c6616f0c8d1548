package service

import (
	"context"
	"log/slog"
	"time"
)

// ArchiveDeleter removes archived webhook payloads older than a cutoff.
type ArchiveDeleter interface {
	IsEnabled() bool
	DeleteArchivedWebhooks(ctx context.Context, cutoff time.Time) (int, error)
}

// ArchiveCleanup enforces the webhook archive retention period.
type ArchiveCleanup struct {
	archive   ArchiveDeleter
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewArchiveCleanup creates a retention sweeper. A zero retention keeps
// payloads forever.
func NewArchiveCleanup(archive ArchiveDeleter, retention, interval time.Duration, logger *slog.Logger) *ArchiveCleanup {
	return &ArchiveCleanup{
		archive:   archive,
		retention: retention,
		interval:  interval,
		logger:    logger.With("component", "archive_cleanup"),
		now:       time.Now,
	}
}

// Enabled reports whether sweeps will run.
func (c *ArchiveCleanup) Enabled() bool {
	return c.retention > 0 && c.interval > 0 && c.archive.IsEnabled()
}

// Sweep deletes payloads older than the retention period once.
func (c *ArchiveCleanup) Sweep(ctx context.Context) (int, error) {
	cutoff := c.now().Add(-c.retention)
	start := c.now()

	deleted, err := c.archive.DeleteArchivedWebhooks(ctx, cutoff)
	if err != nil {
		c.logger.Error("archive sweep failed", "deleted", deleted, "error", err)
		return deleted, err
	}
	c.logger.Info("archive sweep completed",
		"deleted", deleted,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", c.now().Sub(start).Milliseconds(),
	)
	return deleted, nil
}

// Run sweeps immediately and then every interval until ctx ends.
func (c *ArchiveCleanup) Run(ctx context.Context) {
	if !c.Enabled() {
		c.logger.Debug("archive retention disabled")
		return
	}
	c.logger.Info("archive retention started", "retention", c.retention.String(), "interval", c.interval.String())

	_, _ = c.Sweep(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = c.Sweep(ctx)
		}
	}
}
