package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskType names the body a worker runs for a queued task.
type TaskType string

const (
	TaskListGenerate    TaskType = "list.generate"
	TaskListGenerateAll TaskType = "list.generate_all"
	TaskListModify      TaskType = "list.modify"
	TaskCampaignCreate  TaskType = "campaign.create"
	TaskCampaignImport  TaskType = "campaign.import"
	TaskCampaignStats   TaskType = "campaign.stats"
	TaskCampaignReports TaskType = "campaign.reports"
)

// Task is the JSON envelope of every queued unit of work. Attempt travels
// with the payload so a retry is a fresh task that still knows its count.
type Task struct {
	ID        string          `json:"id"`
	Type      TaskType        `json:"type"`
	Attempt   int             `json:"attempt,omitempty"`
	NotBefore time.Time       `json:"not_before,omitzero"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewTask builds a first-attempt task with payload encoded as JSON.
func NewTask(typ TaskType, payload any) (Task, error) {
	t := Task{ID: uuid.NewString(), Type: typ, Attempt: 1}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Task{}, fmt.Errorf("encode %s payload: %w", typ, err)
		}
		t.Payload = raw
	}
	return t, nil
}

// CurrentAttempt treats a missing counter as the first attempt.
func (t Task) CurrentAttempt() int {
	if t.Attempt < 1 {
		return 1
	}
	return t.Attempt
}

// Retry returns a new instance of t with the attempt counter advanced.
func (t Task) Retry(notBefore time.Time) Task {
	return Task{
		ID:        uuid.NewString(),
		Type:      t.Type,
		Attempt:   t.CurrentAttempt() + 1,
		NotBefore: notBefore,
		Payload:   t.Payload,
	}
}

// Decode unmarshals the payload into v.
func (t Task) Decode(v any) error {
	if len(t.Payload) == 0 {
		return fmt.Errorf("decode %s payload: empty", t.Type)
	}
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", t.Type, err)
	}
	return nil
}

type Entity struct {
	ID      int64  `json:"entity_id,omitempty"`
	Type    string `json:"entity_type,omitempty"`
	Keyword string `json:"searched_keyword,omitempty"`
}

type ListGeneration struct {
	Kind   string `json:"kind"`
	Name   string `json:"name,omitempty"`
	Entity Entity `json:"entity"`
}

// ListModification is a computed membership diff waiting to be pushed.
type ListModification struct {
	SegmentID     int64            `json:"segment_id"`
	Additions     map[string]int64 `json:"additions"`
	RemovalEmails []string         `json:"removal_emails"`
}

// CampaignCreate asks for a new platform campaign, or adopts the existing
// one named by UID. RequestKey identifies the request across redeliveries.
type CampaignCreate struct {
	RequestKey  string    `json:"request_key,omitempty"`
	UID         string    `json:"uid,omitempty"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	SegmentUID  string    `json:"segment_uid"`
	Subject     string    `json:"subject"`
	FromName    string    `json:"from_name"`
	ReplyTo     string    `json:"reply_to"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type CampaignImport struct {
	Since time.Time `json:"since,omitzero"`
}

// CampaignRef targets the stat-refresh and report-generation bodies.
type CampaignRef struct {
	CampaignID int64     `json:"campaign_id"`
	Checkpoint time.Time `json:"checkpoint"`
}
