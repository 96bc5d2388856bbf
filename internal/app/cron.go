package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/opennow/core/internal/config"
	"github.com/opennow/core/internal/modules/backup"
	"github.com/opennow/core/internal/modules/shop"
	pkgcron "github.com/opennow/core/internal/pkg/cron"
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, shopSvc *shop.Service, backupSvc *backup.Service, cfg *config.AppConfig, logger *zap.Logger) {
	cronLogger := logger.Named("CronService")

	sched.Register(pkgcron.Job{
		Name:        "sweep_stale_statuses",
		Description: "Demote shop statuses not confirmed within the staleness window to UNCERTAIN",
		Interval:    cfg.Sweep.Interval,
		Fn: func(ctx context.Context) error {
			n, err := shopSvc.SweepStale(ctx)
			if err != nil {
				cronLogger.Warn("stale-status sweep failed", zap.Error(err))
				return err
			}
			if n > 0 {
				cronLogger.Info("stale-status sweep done", zap.Int64("demoted", n))
			}
			return nil
		},
	})

	if cfg.Backup.Enable {
		sched.Register(pkgcron.Job{
			Name:        "auto_backup",
			Description: "Export tracked collections to the backup directory",
			Interval:    24 * time.Hour,
			Fn: func(ctx context.Context) error {
				if err := backupSvc.Run(ctx); err != nil {
					cronLogger.Warn("backup failed", zap.Error(err))
					return err
				}
				return nil
			},
		})
	}
}
