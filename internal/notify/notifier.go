package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/osteele/liquid"

	"github.com/Mutter0815/ListSync/pkg/config"
)

// Failure describes a task that will not be retried any further.
type Failure struct {
	TaskID     string
	TaskType   string
	Attempt    int
	Transient  bool
	Error      string
	Payload    string
	OccurredAt time.Time
}

// Notifier delivers terminal failures to the operator.
type Notifier interface {
	Notify(ctx context.Context, f Failure) error
}

// Message is a rendered operator notification.
type Message struct {
	Subject string
	Text    string
}

const (
	subjectTemplate = `[lifecycle] {{ task_type }} failed after {{ attempt }} attempt{% if attempt != 1 %}s{% endif %}`
	textTemplate    = `Task {{ task_id }} ({{ task_type }}) stopped at {{ occurred_at }}.

Attempt: {{ attempt }}
Kind: {% if transient %}transient, retry limit reached{% else %}permanent{% endif %}
Error: {{ error }}

Payload:
{{ payload }}
`
)

// Renderer turns failures into messages with liquid templates.
type Renderer struct {
	subject *liquid.Template
	text    *liquid.Template
}

func NewRenderer() (*Renderer, error) {
	engine := liquid.NewEngine()
	subject, err := engine.ParseString(subjectTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse subject template: %w", err)
	}
	text, err := engine.ParseString(textTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}
	return &Renderer{subject: subject, text: text}, nil
}

func (r *Renderer) Render(f Failure) (Message, error) {
	bindings := liquid.Bindings{
		"task_id":     f.TaskID,
		"task_type":   f.TaskType,
		"attempt":     f.Attempt,
		"transient":   f.Transient,
		"error":       f.Error,
		"payload":     f.Payload,
		"occurred_at": f.OccurredAt.UTC().Format(time.RFC3339),
	}
	subject, err := r.subject.RenderString(bindings)
	if err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	text, err := r.text.RenderString(bindings)
	if err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	return Message{Subject: subject, Text: text}, nil
}

// New builds the notifier selected by cfg.Provider.
func New(ctx context.Context, cfg config.NotifierConfig) (Notifier, error) {
	r, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case "", "log":
		return NewLogNotifier(r), nil
	case "resend":
		if cfg.ResendAPIKey == "" || cfg.OperatorEmail == "" {
			return nil, fmt.Errorf("resend notifier needs resend_api_key and operator_email")
		}
		return NewResendNotifier(r, cfg.ResendAPIKey, cfg.From, cfg.OperatorEmail), nil
	case "ses":
		if cfg.OperatorEmail == "" {
			return nil, fmt.Errorf("ses notifier needs operator_email")
		}
		return NewSESNotifier(ctx, r, cfg)
	default:
		return nil, fmt.Errorf("unknown notifier provider %q", cfg.Provider)
	}
}
