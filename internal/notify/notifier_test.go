package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mutter0815/ListSync/pkg/config"
)

var failure = Failure{
	TaskID:     "t-1",
	TaskType:   "list.modify",
	Attempt:    5,
	Transient:  true,
	Error:      "mailchimp update_list: status 503",
	Payload:    `{"segment_id":4}`,
	OccurredAt: time.Date(2025, 2, 1, 8, 30, 0, 0, time.UTC),
}

func TestRenderer(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	msg, err := r.Render(failure)
	require.NoError(t, err)
	assert.Equal(t, "[lifecycle] list.modify failed after 5 attempts", msg.Subject)
	assert.Contains(t, msg.Text, "Task t-1 (list.modify) stopped at 2025-02-01T08:30:00Z.")
	assert.Contains(t, msg.Text, "transient, retry limit reached")
	assert.Contains(t, msg.Text, `{"segment_id":4}`)

	single := failure
	single.Attempt = 1
	single.Transient = false
	msg, err = r.Render(single)
	require.NoError(t, err)
	assert.Equal(t, "[lifecycle] list.modify failed after 1 attempt", msg.Subject)
	assert.Contains(t, msg.Text, "Kind: permanent")
}

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sesv2.SendEmailOutput{MessageId: aws.String("m-1")}, nil
}

func TestSESNotifier(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	api := &fakeSES{}
	n := &SESNotifier{r: r, client: api, from: "lifecycle@shop.io", to: "ops@shop.io"}

	require.NoError(t, n.Notify(context.Background(), failure))
	require.Len(t, api.inputs, 1)
	in := api.inputs[0]
	assert.Equal(t, "lifecycle@shop.io", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"ops@shop.io"}, in.Destination.ToAddresses)
	assert.Contains(t, aws.ToString(in.Content.Simple.Subject.Data), "list.modify")
}

func newResendServer(t *testing.T, status int, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/emails" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer re_test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Error(err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(`{"id":"em-1"}`))
			return
		}
		_, _ = w.Write([]byte(`{"name":"validation_error","message":"invalid from"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestResend(t *testing.T, srv *httptest.Server) *ResendNotifier {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	n := NewResendNotifier(r, "re_test", "lifecycle@shop.io", "ops@shop.io")
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	n.client.BaseURL = base
	return n
}

func TestResendNotifier(t *testing.T) {
	var body map[string]any
	n := newTestResend(t, newResendServer(t, http.StatusOK, &body))

	require.NoError(t, n.Notify(context.Background(), failure))
	assert.Equal(t, "lifecycle@shop.io", body["from"])
	assert.Equal(t, []any{"ops@shop.io"}, body["to"])
	assert.Equal(t, "[lifecycle] list.modify failed after 5 attempts", body["subject"])
	assert.Contains(t, body["text"], "Task t-1 (list.modify)")
}

func TestResendNotifier_APIError(t *testing.T) {
	var body map[string]any
	n := newTestResend(t, newResendServer(t, http.StatusUnprocessableEntity, &body))

	err := n.Notify(context.Background(), failure)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resend notification")
}

func TestLogNotifier(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	assert.NoError(t, NewLogNotifier(r).Notify(context.Background(), failure))
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	n, err := New(ctx, config.NotifierConfig{Provider: "log"})
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)

	n, err = New(ctx, config.NotifierConfig{Provider: "resend", ResendAPIKey: "re_x", OperatorEmail: "ops@shop.io"})
	require.NoError(t, err)
	assert.IsType(t, &ResendNotifier{}, n)

	_, err = New(ctx, config.NotifierConfig{Provider: "resend"})
	assert.Error(t, err)

	_, err = New(ctx, config.NotifierConfig{Provider: "pager"})
	assert.Error(t, err)
}
