package mailchimp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Mutter0815/ListSync/pkg/config"
	"github.com/Mutter0815/ListSync/pkg/logx"
)

const (
	batchSize = 500
	pageSize  = 1000
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Mailchimp Marketing API v3.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
	defaults   config.MailchimpConfig
}

func NewClient(cfg config.MailchimpConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		defaults:   cfg,
	}
}

// doRequest sends body as JSON and decodes a 2xx response into out.
// Any failure comes back as *PlatformError.
func (c *Client) doRequest(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}
	req.SetBasicAuth("anystring", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &PlatformError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &PlatformError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		pe := &PlatformError{Op: op, Status: resp.StatusCode}
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil {
			pe.Title, pe.Detail = apiErr.Title, apiErr.Detail
		}
		return pe
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", op, err)
	}
	return nil
}

// UpdateList subscribes addEmails and removes the members with removeIDs.
// It returns the platform's records of the subscribed members.
func (c *Client) UpdateList(ctx context.Context, listID string, addEmails, removeIDs []string) ([]Member, error) {
	var members []Member
	for start := 0; start < len(addEmails); start += batchSize {
		end := min(start+batchSize, len(addEmails))
		req := batchRequest{UpdateExisting: true}
		for _, e := range addEmails[start:end] {
			req.Members = append(req.Members, batchMember{EmailAddress: e, Status: "subscribed"})
		}

		var resp batchResponse
		if err := c.doRequest(ctx, "update_list", http.MethodPost, "/lists/"+url.PathEscape(listID), nil, req, &resp); err != nil {
			return nil, err
		}
		for _, be := range resp.Errors {
			logx.L().Warnw("mailchimp_member_rejected",
				"list_id", listID,
				"email", logx.RedactEmail(be.EmailAddress),
				"code", be.ErrorCode,
				"error", be.Error,
			)
		}
		members = append(members, resp.NewMembers...)
		members = append(members, resp.UpdatedMembers...)
	}

	for _, id := range removeIDs {
		path := "/lists/" + url.PathEscape(listID) + "/members/" + url.PathEscape(id)
		err := c.doRequest(ctx, "remove_member", http.MethodDelete, path, nil, nil, nil)
		var pe *PlatformError
		if errors.As(err, &pe) && pe.Status == http.StatusNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	return members, nil
}

// FetchReport returns the stat snapshot of a sent campaign.
func (c *Client) FetchReport(ctx context.Context, campaignID string) (Report, error) {
	var r Report
	err := c.doRequest(ctx, "fetch_report", http.MethodGet, "/reports/"+url.PathEscape(campaignID), nil, nil, &r)
	return r, err
}

// CreateCampaign creates a campaign and schedules it when cfg carries a send time.
func (c *Client) CreateCampaign(ctx context.Context, cfg CampaignConfig) (string, error) {
	typ := cfg.Type
	if typ == "" {
		typ = "regular"
	}
	req := createCampaignRequest{
		Type:       typ,
		Recipients: Recipients{ListID: cfg.ListID},
		Settings: Settings{
			Title:       cfg.Title,
			SubjectLine: cfg.SubjectLine,
			FromName:    cfg.FromName,
			ReplyTo:     cfg.ReplyTo,
		},
	}
	var resp idResponse
	if err := c.doRequest(ctx, "create_campaign", http.MethodPost, "/campaigns", nil, req, &resp); err != nil {
		return "", err
	}

	if !cfg.ScheduleTime.IsZero() {
		body := map[string]string{"schedule_time": cfg.ScheduleTime.UTC().Format(time.RFC3339)}
		path := "/campaigns/" + url.PathEscape(resp.ID) + "/actions/schedule"
		if err := c.doRequest(ctx, "schedule_campaign", http.MethodPost, path, nil, body, nil); err != nil {
			return "", err
		}
	}
	return resp.ID, nil
}

// CreateList creates an audience list named name and returns its id.
func (c *Client) CreateList(ctx context.Context, name string) (string, error) {
	d := c.defaults
	req := createListRequest{
		Name: name,
		Contact: listContact{
			Company:  d.Company,
			Address1: d.Address,
			City:     d.City,
			Country:  d.Country,
		},
		PermissionReminder: d.PermissionReminder,
		CampaignDefaults: campaignDefaults{
			FromName:  d.FromName,
			FromEmail: d.FromEmail,
			Subject:   name,
			Language:  d.Language,
		},
	}
	var resp idResponse
	if err := c.doRequest(ctx, "create_list", http.MethodPost, "/lists", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// ListCampaigns returns sent campaigns with a send time after since.
func (c *Client) ListCampaigns(ctx context.Context, since time.Time) ([]Campaign, error) {
	var out []Campaign
	for offset := 0; ; offset += pageSize {
		q := url.Values{}
		q.Set("status", "sent")
		q.Set("since_send_time", since.UTC().Format(time.RFC3339))
		q.Set("count", strconv.Itoa(pageSize))
		q.Set("offset", strconv.Itoa(offset))

		var page campaignsPage
		if err := c.doRequest(ctx, "list_campaigns", http.MethodGet, "/campaigns", q, nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Campaigns...)
		if len(page.Campaigns) < pageSize || len(out) >= page.TotalItems {
			return out, nil
		}
	}
}

// ListRecipients returns every recipient of a sent campaign.
func (c *Client) ListRecipients(ctx context.Context, campaignID string) ([]SentTo, error) {
	var out []SentTo
	for offset := 0; ; offset += pageSize {
		q := url.Values{}
		q.Set("count", strconv.Itoa(pageSize))
		q.Set("offset", strconv.Itoa(offset))

		var page sentToPage
		path := "/reports/" + url.PathEscape(campaignID) + "/sent-to"
		if err := c.doRequest(ctx, "list_recipients", http.MethodGet, path, q, nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.SentTo...)
		if len(page.SentTo) < pageSize || len(out) >= page.TotalItems {
			return out, nil
		}
	}
}
