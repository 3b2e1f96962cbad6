package usecase

import (
	"context"
	"fmt"
	"time"

	domrepo "HeatPulse/internal/domain/repository"
	applogger "HeatPulse/pkg/logger"
)

// CleanupJob purges rows older than the retention horizon.
type CleanupJob struct {
	store         domrepo.RetentionStore
	retentionDays int
	l             *applogger.Logger
}

func NewCleanupJob(store domrepo.RetentionStore, retentionDays int, l *applogger.Logger) *CleanupJob {
	return &CleanupJob{store: store, retentionDays: retentionDays, l: l}
}

func (c *CleanupJob) Run(ctx context.Context, progress func(string)) (string, error) {
	horizon := time.Now().AddDate(0, 0, -c.retentionDays)
	progress("purging")
	if err := c.store.PurgeOlderThan(ctx, horizon); err != nil {
		return "", fmt.Errorf("purge: %w", err)
	}
	return fmt.Sprintf("purged rows older than %s", horizon.Format("2006-01-02")), nil
}
