package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/Mutter0815/ListSync/pkg/config"
	"github.com/Mutter0815/ListSync/pkg/logx"
)

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type SESNotifier struct {
	r      *Renderer
	client sesAPI
	from   string
	to     string
}

// NewSESNotifier uses static credentials when both keys are set and the
// default AWS credential chain otherwise.
func NewSESNotifier(ctx context.Context, r *Renderer, cfg config.NotifierConfig) (*SESNotifier, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.SESRegion)}
	if cfg.SESAccessKey != "" && cfg.SESSecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.SESAccessKey, cfg.SESSecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SESNotifier{r: r, client: sesv2.NewFromConfig(awsCfg), from: cfg.From, to: cfg.OperatorEmail}, nil
}

func (n *SESNotifier) Notify(ctx context.Context, f Failure) error {
	msg, err := n.r.Render(f)
	if err != nil {
		return err
	}
	out, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.from),
		Destination:      &types.Destination{ToAddresses: []string{n.to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses notification: %w", err)
	}
	logx.L().Infow("operator_notified", "provider", "ses", "message_id", aws.ToString(out.MessageId), "task_id", f.TaskID)
	return nil
}
