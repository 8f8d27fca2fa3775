package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/tripdesk/tripdesk/internal/auth"
	jobmetrics "github.com/tripdesk/tripdesk/internal/jobs"
	"github.com/tripdesk/tripdesk/internal/rbac"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSeedPermissions re-runs the permission catalog seed.
	TaskSeedPermissions = "rbac:seed_permissions"
	// TaskCleanupSessions purges expired session records.
	TaskCleanupSessions = "auth:cleanup_sessions"
)

// NewSeedPermissionsTask constructs the catalog seed task. It carries no
// payload; the seed is fully determined by the built-in catalog.
func NewSeedPermissionsTask() *asynq.Task {
	return asynq.NewTask(TaskSeedPermissions, nil)
}

// NewCleanupSessionsTask constructs the session cleanup task.
func NewCleanupSessionsTask() *asynq.Task {
	return asynq.NewTask(TaskCleanupSessions, nil)
}

// NewSeedPermissionsHandler processes TaskSeedPermissions tasks.
func NewSeedPermissionsHandler(svc *rbac.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskSeedPermissions)
		if err := svc.SeedCatalog(ctx, rbac.DefaultCatalog(), rbac.DefaultRoles()); err != nil {
			logger.Error("seed permissions", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("permission catalog seeded")
		return tracker.End(nil)
	}
}

// NewCleanupSessionsHandler processes TaskCleanupSessions tasks.
func NewCleanupSessionsHandler(svc *auth.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskCleanupSessions)
		removed, err := svc.CleanupExpiredSessions(ctx)
		if err != nil {
			logger.Error("cleanup sessions", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("expired sessions purged", slog.Int64("removed", removed))
		return tracker.End(nil)
	}
}
