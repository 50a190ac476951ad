package worker

import (
	"context"
	"time"

	"github.com/Mutter0815/ListSync/internal/tasks"
	"github.com/Mutter0815/ListSync/pkg/logx"
	"github.com/Mutter0815/ListSync/pkg/model"
)

// Tick submits a task of typ every interval until ctx is done.
func Tick(ctx context.Context, q tasks.Queue, typ model.TaskType, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logx.L().Infow("tick_started", "type", typ, "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t, err := tasks.Submit(ctx, q, typ, nil, time.Time{})
			if err != nil {
				logx.L().Warnw("tick_submit_error", "type", typ, "error", err)
				continue
			}
			logx.L().Infow("tick_submitted", "type", typ, "task_id", t.ID)
		}
	}
}
