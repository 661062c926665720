package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueAudit is the queue access denials are written through.
	QueueAudit = "audit"
	// TaskAccessDenied is the task type carrying a Denial.
	TaskAccessDenied = "audit:access_denied"
)

// NewAccessDeniedTask encodes d as an asynq task.
func NewAccessDeniedTask(d Denial) (*asynq.Task, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccessDenied, data), nil
}

// Enqueuer is the subset of *asynq.Client the sink needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DefaultEnqueueTimeout bounds a single denial enqueue.
const DefaultEnqueueTimeout = 500 * time.Millisecond

// QueueSink hands denials to the background worker.
type QueueSink struct {
	client  Enqueuer
	logger  *slog.Logger
	timeout time.Duration
}

// NewQueueSink constructs a QueueSink.
func NewQueueSink(client Enqueuer, logger *slog.Logger) *QueueSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueSink{client: client, logger: logger, timeout: DefaultEnqueueTimeout}
}

// WithTimeout sets the enqueue bound. Non-positive values keep the default.
func (s *QueueSink) WithTimeout(d time.Duration) *QueueSink {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// RecordDenial implements Sink. The enqueue is detached from request
// cancellation but bounded by the sink timeout, so a slow Redis delays the
// response by at most that long. Failures are logged and dropped.
func (s *QueueSink) RecordDenial(ctx context.Context, d Denial) {
	if d.At.IsZero() {
		d.At = time.Now().UTC()
	}
	task, err := NewAccessDeniedTask(d)
	if err != nil {
		s.logger.Warn("encode access denial", slog.Any("error", err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if _, err := s.client.EnqueueContext(ctx, task, asynq.Queue(QueueAudit), asynq.MaxRetry(5)); err != nil {
		s.logger.Warn("enqueue access denial", slog.Any("error", err), slog.String("layer", d.Layer))
	}
}

// Recorder persists denials.
type Recorder interface {
	Record(ctx context.Context, d Denial) error
}

// HandleAccessDenied returns the worker handler for TaskAccessDenied.
func HandleAccessDenied(rec Recorder, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var d Denial
		if err := json.Unmarshal(t.Payload(), &d); err != nil {
			return fmt.Errorf("audit: decode denial: %v: %w", err, asynq.SkipRetry)
		}
		if err := rec.Record(ctx, d); err != nil {
			return err
		}
		logger.Info("access denial recorded",
			slog.String("layer", d.Layer),
			slog.String("user_id", d.UserID),
			slog.String("reason", d.Reason))
		return nil
	}
}

// TaskPrune is the periodic retention task.
const TaskPrune = "audit:prune"

// Pruner deletes denials older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// HandlePrune returns the worker handler for TaskPrune. Rows older than
// retention are removed.
func HandlePrune(p Pruner, retention time.Duration, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, _ *asynq.Task) error {
		cutoff := time.Now().UTC().Add(-retention)
		n, err := p.Prune(ctx, cutoff)
		if err != nil {
			return err
		}
		logger.Info("access denials pruned", slog.Int64("rows", n), slog.Time("cutoff", cutoff))
		return nil
	}
}
