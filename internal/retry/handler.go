package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Mutter0815/ListSync/internal/notify"
	"github.com/Mutter0815/ListSync/internal/tasks"
	"github.com/Mutter0815/ListSync/pkg/logx"
	"github.com/Mutter0815/ListSync/pkg/metrics"
	"github.com/Mutter0815/ListSync/pkg/model"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeRetried   Outcome = "retried"
	OutcomeEscalated Outcome = "escalated"

	// OutcomeInterrupted means ctx was cancelled while fn ran. The task is
	// neither retried nor escalated and must be redelivered.
	OutcomeInterrupted Outcome = "interrupted"
)

// Handler wraps a task body. Transient failures below the attempt limit are
// re-enqueued as a new task with the counter advanced; everything else that
// fails is reported to the operator once and the task is finished.
type Handler struct {
	limit    int
	backoff  Backoff
	queue    tasks.Queue
	notifier notify.Notifier
	now      func() time.Time
	tracer   trace.Tracer
}

func NewHandler(limit int, backoff Backoff, q tasks.Queue, n notify.Notifier) *Handler {
	if limit < 1 {
		limit = 1
	}
	return &Handler{
		limit:    limit,
		backoff:  backoff,
		queue:    q,
		notifier: n,
		now:      time.Now,
		tracer:   otel.Tracer("github.com/Mutter0815/ListSync/internal/retry"),
	}
}

// Run executes fn for task. The returned error is non-nil when a retry could
// not be enqueued or ctx was cancelled under fn; the caller should then
// redeliver task.
func (h *Handler) Run(ctx context.Context, task model.Task, fn func(ctx context.Context) error) (Outcome, error) {
	attempt := task.CurrentAttempt()
	ctx, span := h.tracer.Start(ctx, "retry."+string(task.Type), trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.Int("task.attempt", attempt),
	))
	defer span.End()

	err := fn(ctx)
	if err == nil {
		span.SetAttributes(attribute.String("task.outcome", string(OutcomeSucceeded)))
		return OutcomeSucceeded, nil
	}
	span.RecordError(err)

	if errors.Is(ctx.Err(), context.Canceled) {
		span.SetAttributes(attribute.String("task.outcome", string(OutcomeInterrupted)))
		logx.L().Warnw("task_interrupted", "task_id", task.ID, "task_type", task.Type, "attempt", attempt, "error", err)
		return OutcomeInterrupted, fmt.Errorf("task %s interrupted: %w", task.ID, err)
	}

	fields := []any{"task_id", task.ID, "task_type", task.Type, "attempt", attempt, "error", err}
	transient := IsTransient(err)

	if transient && attempt < h.limit {
		next := task.Retry(h.now().Add(h.backoff.Delay(attempt + 1)))
		if qerr := h.queue.Enqueue(ctx, next); qerr != nil {
			span.SetStatus(codes.Error, "retry enqueue failed")
			logx.L().Errorw("retry_enqueue_error", append(fields, "enqueue_error", qerr)...)
			return "", fmt.Errorf("enqueue retry of %s: %w", task.ID, qerr)
		}
		metrics.WorkerTaskRetries.WithLabelValues(string(task.Type)).Inc()
		logx.L().Infow("task_retry_scheduled", append(fields, "next_attempt", next.Attempt, "not_before", next.NotBefore)...)
		span.SetAttributes(attribute.String("task.outcome", string(OutcomeRetried)))
		return OutcomeRetried, nil
	}

	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String("task.outcome", string(OutcomeEscalated)))
	metrics.WorkerTaskEscalations.WithLabelValues(string(task.Type)).Inc()
	logx.L().Errorw("task_escalated", append(fields, "transient", transient)...)

	f := notify.Failure{
		TaskID:     task.ID,
		TaskType:   string(task.Type),
		Attempt:    attempt,
		Transient:  transient,
		Error:      err.Error(),
		Payload:    string(task.Payload),
		OccurredAt: h.now(),
	}
	if nerr := h.notifier.Notify(ctx, f); nerr != nil {
		logx.L().Errorw("operator_notify_error", append(fields, "notify_error", nerr)...)
	}
	return OutcomeEscalated, nil
}
