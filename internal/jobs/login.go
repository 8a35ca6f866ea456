package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/xui-console/internal/db"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DefaultEnqueueTimeout bounds how long a login waits on Redis.
const DefaultEnqueueTimeout = 2 * time.Second

// LoginRecorder hands successful logins to the worker. The login request
// waits only for the enqueue, at most Timeout, never for the last_login write.
type LoginRecorder struct {
	Client  Enqueuer
	Timeout time.Duration // zero means DefaultEnqueueTimeout
}

func (r LoginRecorder) RecordLogin(ctx context.Context, adminID uuid.UUID, at time.Time) error {
	payload, err := json.Marshal(RecordLoginPayload{AdminID: adminID.String(), AtUnix: at.Unix()})
	if err != nil {
		return err
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultEnqueueTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	info, err := r.Client.EnqueueContext(ctx, asynq.NewTask(TaskRecordLogin, payload),
		asynq.Queue(QueueAuth),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TaskRecordLogin, err)
	}
	zerolog.Ctx(ctx).Debug().Str("task_id", info.ID).Str("queue", info.Queue).Msg("login record enqueued")
	return nil
}

// LastLoginStore is the subset of db.Queries the worker needs.
type LastLoginStore interface {
	TouchAdminLastLogin(ctx context.Context, arg db.TouchAdminLastLoginParams) error
}

// HandleRecordLogin returns the asynq handler for TaskRecordLogin.
func HandleRecordLogin(store LastLoginStore, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p RecordLoginPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			logger.Error().Err(err).Msg("bad record_login payload")
			return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
		}
		id, err := uuid.Parse(p.AdminID)
		if err != nil {
			return fmt.Errorf("parse admin id %q: %v: %w", p.AdminID, err, asynq.SkipRetry)
		}

		at := time.Unix(p.AtUnix, 0).UTC()
		if err := store.TouchAdminLastLogin(ctx, db.TouchAdminLastLoginParams{ID: id, LastLogin: at}); err != nil {
			return fmt.Errorf("touch last login: %w", err)
		}
		logger.Info().Str("admin_id", id.String()).Time("at", at).Msg("last login recorded")
		return nil
	}
}
