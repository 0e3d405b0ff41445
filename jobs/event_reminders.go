package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// TaskEventReminders emails attending RSVPs for events starting soon.
	TaskEventReminders = "events:rsvp_reminders"
)

// NewEventRemindersTask constructs the reminder task for cron registration.
func NewEventRemindersTask() *asynq.Task {
	return asynq.NewTask(TaskEventReminders, nil, asynq.Queue(QueueDefault))
}

type reminderRow struct {
	Email     string
	EventName string
	StartTime time.Time
}

// NewEventRemindersHandler returns a handler that enqueues reminder emails for
// every attending RSVP on events starting within the next 24 hours.
func NewEventRemindersHandler(pool *pgxpool.Pool, client *Client, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		rows, err := pool.Query(ctx, `
			SELECT u.email, e.title, e.start_time
			FROM event_rsvps r
			JOIN events e ON e.id = r.event_id
			JOIN users u ON u.id = r.user_id
			WHERE r.status = 'attending'
			  AND e.start_time BETWEEN NOW() AND NOW() + INTERVAL '24 hours'`)
		if err != nil {
			return err
		}
		defer rows.Close()

		var reminders []reminderRow
		for rows.Next() {
			var rem reminderRow
			if err := rows.Scan(&rem.Email, &rem.EventName, &rem.StartTime); err != nil {
				return err
			}
			reminders = append(reminders, rem)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, rem := range reminders {
			payload := SendEmailPayload{
				To:      rem.Email,
				Subject: fmt.Sprintf("Reminder: %s", rem.EventName),
				Body: fmt.Sprintf("%s starts at %s. We look forward to seeing you there.",
					rem.EventName, rem.StartTime.Format(time.RFC1123)),
			}
			if _, err := client.EnqueueSendEmail(ctx, payload); err != nil {
				logger.Warn("enqueue reminder email", slog.Any("error", err))
			}
		}
		logger.Info("event reminders", slog.Int("count", len(reminders)))
		return nil
	}
}
