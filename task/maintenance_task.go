package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/icodeforyou/energiprice-go/config"
)

// Maintainer is the housekeeping the database offers.
type Maintainer interface {
	Backup(ctx context.Context) (string, error)
	PurgeBackups(retentionDays int) (int, error)
	PurgeLog(ctx context.Context, maxLogEntries int) error
	PurgePublishedPrices(ctx context.Context, retentionDays int) (int64, error)
}

func NewMaintenanceTask(logger *slog.Logger, db Maintainer, cnfg *config.AppConfig) func() {
	return func() {
		logger.Debug("running maintenance task...")

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()

		if _, err := db.Backup(ctx); err != nil {
			logger.Error("database backup error", slog.Any("error", err))
		}

		if n, err := db.PurgeBackups(cnfg.Database.GetBackupRetentionDays()); err != nil {
			logger.Error("backup maintenance error", slog.Any("error", err))
		} else if n > 0 {
			logger.Info("old backups deleted", slog.Int("count", n))
		}

		if err := db.PurgeLog(ctx, cnfg.Logging.GetDbMaxEntries()); err != nil {
			logger.Error("log maintenance error", slog.Any("error", err))
		}

		if _, err := db.PurgePublishedPrices(ctx, cnfg.Database.GetDataRetentionDays()); err != nil {
			logger.Error("published_price maintenance error", slog.Any("error", err))
		}

		logger.Info("maintenance task done")
	}
}
