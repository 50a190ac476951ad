package tasks

import (
	"context"
	"time"

	"github.com/Mutter0815/ListSync/pkg/model"
)

// Queue accepts tasks for at-least-once execution no earlier than their
// NotBefore time.
type Queue interface {
	Enqueue(ctx context.Context, t model.Task) error
}

// Submit builds a first-attempt task of typ and enqueues it.
func Submit(ctx context.Context, q Queue, typ model.TaskType, payload any, notBefore time.Time) (model.Task, error) {
	t, err := model.NewTask(typ, payload)
	if err != nil {
		return model.Task{}, err
	}
	t.NotBefore = notBefore
	if err := q.Enqueue(ctx, t); err != nil {
		return model.Task{}, err
	}
	return t, nil
}
