package notify

import (
	"context"

	"github.com/Mutter0815/ListSync/pkg/logx"
)

// LogNotifier writes the rendered message to the process log.
type LogNotifier struct {
	r *Renderer
}

func NewLogNotifier(r *Renderer) *LogNotifier { return &LogNotifier{r: r} }

func (n *LogNotifier) Notify(_ context.Context, f Failure) error {
	msg, err := n.r.Render(f)
	if err != nil {
		return err
	}
	logx.L().Errorw("operator_notification",
		"task_id", f.TaskID,
		"task_type", f.TaskType,
		"attempt", f.Attempt,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
