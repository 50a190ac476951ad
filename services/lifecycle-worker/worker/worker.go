package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Mutter0815/ListSync/internal/retry"
	"github.com/Mutter0815/ListSync/pkg/logx"
	"github.com/Mutter0815/ListSync/pkg/metrics"
	"github.com/Mutter0815/ListSync/pkg/model"
)

// Handler is the body of one task type.
type Handler func(ctx context.Context, t model.Task) error

type consumer interface {
	Consume() (<-chan amqp.Delivery, error)
}

type runner interface {
	Run(ctx context.Context, t model.Task, fn func(ctx context.Context) error) (retry.Outcome, error)
}

type Worker struct {
	cons     consumer
	retry    runner
	handlers map[model.TaskType]Handler
	timeout  time.Duration
}

func New(cons consumer, r runner, handlers map[model.TaskType]Handler) *Worker {
	return &Worker{cons: cons, retry: r, handlers: handlers, timeout: 2 * time.Minute}
}

func (w *Worker) Run(ctx context.Context) error {
	msgs, err := w.cons.Consume()
	if err != nil {
		return err
	}
	logx.L().Infow("worker_started", "handlers", len(w.handlers))

	for {
		select {
		case <-ctx.Done():
			logx.L().Infow("worker_stopping")
			return ctx.Err()

		case d, ok := <-msgs:
			if !ok {
				logx.L().Warnw("consumer_channel_closed")
				return nil
			}
			w.Handle(ctx, d)
		}
	}
}

// Handle runs one delivery through the retry handler. The delivery is acked
// once the handler has either finished, re-enqueued or escalated the task.
// It is nacked for redelivery when a retry could not be enqueued or the
// worker was shut down mid-task.
func (w *Worker) Handle(ctx context.Context, d amqp.Delivery) {
	start := time.Now()

	var task model.Task
	if err := json.Unmarshal(d.Body, &task); err != nil {
		logx.L().Warnw("task_unmarshal_error", "error", err)
		_ = d.Ack(false)
		return
	}
	metrics.WorkerTasksConsumed.WithLabelValues(string(task.Type)).Inc()
	defer func() {
		metrics.WorkerProcessDuration.WithLabelValues(string(task.Type)).Observe(time.Since(start).Seconds())
	}()

	fields := []any{"task_id", task.ID, "task_type", task.Type, "attempt", task.CurrentAttempt()}

	h, ok := w.handlers[task.Type]
	if !ok {
		h = func(context.Context, model.Task) error {
			return fmt.Errorf("no handler for task type %q", task.Type)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	outcome, err := w.retry.Run(runCtx, task, func(ctx context.Context) error { return h(ctx, task) })
	if err != nil {
		logx.L().Errorw("task_requeue", append(fields, "error", err)...)
		_ = d.Nack(false, true)
		return
	}
	logx.L().Infow("task_done", append(fields, "outcome", outcome, "duration", time.Since(start).Seconds())...)
	_ = d.Ack(false)
}
