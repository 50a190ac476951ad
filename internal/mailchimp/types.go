package mailchimp

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

type Member struct {
	ID            string `json:"id"`
	EmailAddress  string `json:"email_address"`
	UniqueEmailID string `json:"unique_email_id"`
	Status        string `json:"status"`
}

type batchMember struct {
	EmailAddress string `json:"email_address"`
	Status       string `json:"status"`
}

type batchRequest struct {
	Members        []batchMember `json:"members"`
	UpdateExisting bool          `json:"update_existing"`
}

type batchError struct {
	EmailAddress string `json:"email_address"`
	Error        string `json:"error"`
	ErrorCode    string `json:"error_code"`
}

type batchResponse struct {
	NewMembers     []Member     `json:"new_members"`
	UpdatedMembers []Member     `json:"updated_members"`
	Errors         []batchError `json:"errors"`
	ErrorCount     int          `json:"error_count"`
}

type Bounces struct {
	HardBounces  int `json:"hard_bounces"`
	SoftBounces  int `json:"soft_bounces"`
	SyntaxErrors int `json:"syntax_errors"`
}

// Counts lists each bounce category.
func (b Bounces) Counts() []int {
	return []int{b.HardBounces, b.SoftBounces, b.SyntaxErrors}
}

type Opens struct {
	OpensTotal  int `json:"opens_total"`
	UniqueOpens int `json:"unique_opens"`
}

// Report is the campaign summary served by /reports/{id}.
type Report struct {
	ID         string  `json:"id"`
	EmailsSent int     `json:"emails_sent"`
	Bounces    Bounces `json:"bounces"`
	Opens      Opens   `json:"opens"`
}

type Recipients struct {
	ListID string `json:"list_id"`
}

type Settings struct {
	Title       string `json:"title,omitempty"`
	SubjectLine string `json:"subject_line,omitempty"`
	FromName    string `json:"from_name,omitempty"`
	ReplyTo     string `json:"reply_to,omitempty"`
}

type Campaign struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	SendTime   string     `json:"send_time"`
	Recipients Recipients `json:"recipients"`
	Settings   Settings   `json:"settings"`
}

// SentAt parses SendTime; unsent campaigns carry an empty string.
func (c Campaign) SentAt() (time.Time, bool) {
	if c.SendTime == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, c.SendTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type campaignsPage struct {
	Campaigns  []Campaign `json:"campaigns"`
	TotalItems int        `json:"total_items"`
}

// SentTo is one recipient of a sent campaign.
type SentTo struct {
	EmailID      string `json:"email_id"`
	EmailAddress string `json:"email_address"`
	Status       string `json:"status"`
	OpenCount    int    `json:"open_count"`
	LastOpen     string `json:"last_open"`
}

// OpenedAt parses LastOpen; recipients who never opened carry an empty string.
func (s SentTo) OpenedAt() *time.Time {
	if s.LastOpen == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.LastOpen)
	if err != nil {
		return nil
	}
	return &t
}

type sentToPage struct {
	SentTo     []SentTo `json:"sent_to"`
	TotalItems int      `json:"total_items"`
}

// CampaignConfig is what the lifecycle needs to create a campaign.
type CampaignConfig struct {
	Type         string
	ListID       string
	Title        string
	SubjectLine  string
	FromName     string
	ReplyTo      string
	ScheduleTime time.Time
}

type createCampaignRequest struct {
	Type       string     `json:"type"`
	Recipients Recipients `json:"recipients"`
	Settings   Settings   `json:"settings"`
}

type listContact struct {
	Company  string `json:"company"`
	Address1 string `json:"address1"`
	City     string `json:"city"`
	Country  string `json:"country"`
}

type campaignDefaults struct {
	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email"`
	Subject   string `json:"subject"`
	Language  string `json:"language"`
}

type createListRequest struct {
	Name               string           `json:"name"`
	Contact            listContact      `json:"contact"`
	PermissionReminder string           `json:"permission_reminder"`
	CampaignDefaults   campaignDefaults `json:"campaign_defaults"`
	EmailTypeOption    bool             `json:"email_type_option"`
}

type idResponse struct {
	ID string `json:"id"`
}

// SubscriberHash is the member id the API assigns to an email address.
func SubscriberHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(email)))
	return hex.EncodeToString(sum[:])
}
