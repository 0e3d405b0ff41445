package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// TaskResetTokenCleanup purges expired or consumed password reset tokens.
	TaskResetTokenCleanup = "auth:reset_token_cleanup"
)

// NewResetTokenCleanupTask constructs the cleanup task for cron registration.
func NewResetTokenCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskResetTokenCleanup, nil, asynq.Queue(QueueDefault))
}

// NewResetTokenCleanupHandler returns a handler deleting stale reset tokens.
func NewResetTokenCleanupHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tag, err := pool.Exec(ctx,
			`DELETE FROM password_reset_tokens WHERE used = TRUE OR expires_at < NOW()`)
		if err != nil {
			return err
		}
		logger.Info("reset token cleanup", slog.Int64("deleted", tag.RowsAffected()))
		return nil
	}
}
