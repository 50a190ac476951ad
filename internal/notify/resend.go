package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/Mutter0815/ListSync/pkg/logx"
)

type ResendNotifier struct {
	r      *Renderer
	client *resend.Client
	from   string
	to     string
}

func NewResendNotifier(r *Renderer, apiKey, from, to string) *ResendNotifier {
	return &ResendNotifier{r: r, client: resend.NewClient(apiKey), from: from, to: to}
}

func (n *ResendNotifier) Notify(ctx context.Context, f Failure) error {
	msg, err := n.r.Render(f)
	if err != nil {
		return err
	}
	sent, err := n.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{n.to},
		Subject: msg.Subject,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("resend notification: %w", err)
	}
	logx.L().Infow("operator_notified", "provider", "resend", "message_id", sent.Id, "task_id", f.TaskID)
	return nil
}
