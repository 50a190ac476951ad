package campaign

import (
	"maps"
	"time"

	"github.com/Mutter0815/ListSync/internal/audience"
	"github.com/Mutter0815/ListSync/pkg/model"
)

// Stats is the persisted delivery snapshot of a campaign. Two snapshots are
// equal when every counter is equal.
type Stats struct {
	EmailsSent      int `json:"emails_sent"`
	EmailsBounced   int `json:"emails_bounced"`
	EmailsOpened    int `json:"emails_opened"`
	EmailsDelivered int `json:"emails_delivered"`
}

// Reports counts recipients per post-send behaviour.
type Reports map[audience.Report]int

func (r Reports) Equal(o Reports) bool { return maps.Equal(r, o) }

type Campaign struct {
	ID          int64     `json:"id"`
	UID         string    `json:"uid"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	SegmentID   int64     `json:"segment_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Stats       *Stats    `json:"stats,omitempty"`
	Reports     Reports   `json:"reports,omitempty"`

	// CheckpointsScheduled is set once every stat and report checkpoint
	// has been queued.
	CheckpointsScheduled bool      `json:"checkpoints_scheduled"`
	CreatedAt            time.Time `json:"created_at"`
}

// RecipientOpen is a recipient keyed by the platform's contact id.
type RecipientOpen struct {
	ContactUID string
	OpenedAt   *time.Time
}

type CreateCampaignReq struct {
	UID         string    `json:"uid"`
	Name        string    `json:"name" binding:"required"`
	Type        string    `json:"type"`
	SegmentUID  string    `json:"segment_uid" binding:"required"`
	Subject     string    `json:"subject"`
	FromName    string    `json:"from_name"`
	ReplyTo     string    `json:"reply_to" binding:"omitempty,email"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

type ImportCampaignsReq struct {
	Since *time.Time `json:"since"`
}

type TaskAccepted struct {
	TaskID string `json:"task_id"`
}

func (r CreateCampaignReq) Payload() model.CampaignCreate {
	return model.CampaignCreate{
		UID:         r.UID,
		Name:        r.Name,
		Type:        r.Type,
		SegmentUID:  r.SegmentUID,
		Subject:     r.Subject,
		FromName:    r.FromName,
		ReplyTo:     r.ReplyTo,
		ScheduledAt: r.ScheduledAt,
	}
}
