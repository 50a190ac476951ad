package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mutter0815/ListSync/internal/audience"
	"github.com/Mutter0815/ListSync/internal/mailchimp"
	"github.com/Mutter0815/ListSync/pkg/logx"
	"github.com/Mutter0815/ListSync/pkg/model"
)

type Platform interface {
	CreateCampaign(ctx context.Context, cfg mailchimp.CampaignConfig) (string, error)
	ListCampaigns(ctx context.Context, since time.Time) ([]mailchimp.Campaign, error)
	ListRecipients(ctx context.Context, campaignID string) ([]mailchimp.SentTo, error)
}

type Store interface {
	FindSegmentByUID(ctx context.Context, uid string) (audience.Segment, error)
	GetCampaignByUID(ctx context.Context, uid string) (Campaign, error)
	SaveCampaign(ctx context.Context, c Campaign, recipients []RecipientOpen) (Campaign, bool, error)
	ReserveCampaign(ctx context.Context, requestKey string, c Campaign) (Campaign, error)
	AttachCampaignUID(ctx context.Context, id int64, uid string) error
	MarkCheckpointsScheduled(ctx context.Context, id int64) error
}

type ImportResult struct {
	Imported int `json:"imported"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
}

// Service creates and imports campaigns and plans their checkpoints.
type Service struct {
	store     Store
	platform  Platform
	scheduler *Scheduler
	window    time.Duration
	now       func() time.Time
}

func NewService(s Store, p Platform, sch *Scheduler, importWindow time.Duration) *Service {
	return &Service{store: s, platform: p, scheduler: sch, window: importWindow, now: time.Now}
}

func ValidateCreate(req model.CampaignCreate) error {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidCampaign)
	case strings.TrimSpace(req.SegmentUID) == "":
		return fmt.Errorf("%w: segment_uid is required", ErrInvalidCampaign)
	case strings.TrimSpace(req.Subject) == "" && req.UID == "":
		return fmt.Errorf("%w: subject is required", ErrInvalidCampaign)
	case req.RequestKey == "" && req.UID == "":
		return fmt.Errorf("%w: request_key is required", ErrInvalidCampaign)
	case req.ScheduledAt.IsZero():
		return fmt.Errorf("%w: scheduled_at is required", ErrInvalidCampaign)
	}
	return nil
}

// Create stores a campaign for an active segment. When req.UID is set the
// platform campaign already exists and is adopted instead of created.
// Otherwise the row is reserved under req.RequestKey first, so a redelivered
// request finds it and does not create a second platform campaign.
func (s *Service) Create(ctx context.Context, req model.CampaignCreate) (Campaign, error) {
	if err := ValidateCreate(req); err != nil {
		return Campaign{}, err
	}
	seg, err := s.store.FindSegmentByUID(ctx, req.SegmentUID)
	if err != nil {
		return Campaign{}, err
	}
	if !seg.Active {
		return Campaign{}, fmt.Errorf("create campaign on %s: %w", seg.UID, audience.ErrSegmentInactive)
	}

	typ := req.Type
	if typ == "" {
		typ = "regular"
	}
	c := Campaign{
		UID:         req.UID,
		Name:        req.Name,
		Type:        typ,
		SegmentID:   seg.ID,
		ScheduledAt: req.ScheduledAt,
	}
	if req.UID != "" {
		c, _, err = s.store.SaveCampaign(ctx, c, nil)
	} else {
		c, err = s.createOnPlatform(ctx, seg, req, c)
	}
	if err != nil {
		return Campaign{}, err
	}
	logx.L().Infow("campaign_saved", "campaign_id", c.ID, "uid", c.UID, "segment_id", seg.ID, "checkpoints_scheduled", c.CheckpointsScheduled)
	return c, s.ensureCheckpoints(ctx, c)
}

func (s *Service) createOnPlatform(ctx context.Context, seg audience.Segment, req model.CampaignCreate, c Campaign) (Campaign, error) {
	c, err := s.store.ReserveCampaign(ctx, req.RequestKey, c)
	if err != nil {
		return Campaign{}, err
	}
	if c.UID != "" {
		return c, nil
	}
	uid, err := s.platform.CreateCampaign(ctx, mailchimp.CampaignConfig{
		Type:         c.Type,
		ListID:       seg.UID,
		Title:        req.Name,
		SubjectLine:  req.Subject,
		FromName:     req.FromName,
		ReplyTo:      req.ReplyTo,
		ScheduleTime: req.ScheduledAt,
	})
	if err != nil {
		return Campaign{}, fmt.Errorf("create platform campaign: %w", err)
	}
	if err := s.store.AttachCampaignUID(ctx, c.ID, uid); err != nil {
		return Campaign{}, err
	}
	c.UID = uid
	return c, nil
}

// ensureCheckpoints queues the checkpoints of c unless an earlier run did.
// Checkpoint tasks are idempotent, so a partial failure re-plans all of them.
func (s *Service) ensureCheckpoints(ctx context.Context, c Campaign) error {
	if c.CheckpointsScheduled {
		return nil
	}
	if _, err := s.scheduler.Schedule(ctx, c.ID, c.ScheduledAt); err != nil {
		return &CheckpointError{CampaignID: c.ID, Err: err}
	}
	return s.store.MarkCheckpointsScheduled(ctx, c.ID)
}

// Import adopts campaigns sent on the platform since the given time. A zero
// since means the configured window back from now.
func (s *Service) Import(ctx context.Context, since time.Time) (ImportResult, error) {
	if since.IsZero() {
		since = s.now().Add(-s.window)
	}
	sent, err := s.platform.ListCampaigns(ctx, since)
	if err != nil {
		return ImportResult{}, fmt.Errorf("list platform campaigns: %w", err)
	}

	var res ImportResult
	for _, mc := range sent {
		created, err := s.importOne(ctx, mc)
		switch {
		case errors.Is(err, errNotImportable):
			res.Skipped++
		case err != nil:
			return res, err
		case created:
			res.Imported++
		default:
			res.Existing++
		}
	}
	logx.L().Infow("campaign_import_done", "since", since, "imported", res.Imported, "existing", res.Existing, "skipped", res.Skipped)
	return res, nil
}

var errNotImportable = errors.New("campaign not importable")

func (s *Service) importOne(ctx context.Context, mc mailchimp.Campaign) (bool, error) {
	sentAt, ok := mc.SentAt()
	if !ok {
		return false, errNotImportable
	}
	seg, err := s.store.FindSegmentByUID(ctx, mc.Recipients.ListID)
	if errors.Is(err, audience.ErrSegmentNotFound) {
		logx.L().Debugw("campaign_import_unknown_list", "uid", mc.ID, "list_id", mc.Recipients.ListID)
		return false, errNotImportable
	}
	if err != nil {
		return false, err
	}

	if existing, err := s.store.GetCampaignByUID(ctx, mc.ID); err == nil {
		return false, s.ensureCheckpoints(ctx, existing)
	} else if !errors.Is(err, ErrCampaignNotFound) {
		return false, err
	}

	sentTo, err := s.platform.ListRecipients(ctx, mc.ID)
	if err != nil {
		return false, fmt.Errorf("list recipients of %s: %w", mc.ID, err)
	}
	recipients := make([]RecipientOpen, 0, len(sentTo))
	for _, r := range sentTo {
		recipients = append(recipients, RecipientOpen{ContactUID: r.EmailID, OpenedAt: r.OpenedAt()})
	}

	name := mc.Settings.Title
	if name == "" {
		name = mc.Settings.SubjectLine
	}
	c, created, err := s.store.SaveCampaign(ctx, Campaign{
		UID:         mc.ID,
		Name:        name,
		Type:        mc.Type,
		SegmentID:   seg.ID,
		ScheduledAt: sentAt,
	}, recipients)
	if err != nil {
		return false, err
	}
	return created, s.ensureCheckpoints(ctx, c)
}

func (s *Service) Get(ctx context.Context, uid string) (Campaign, error) {
	return s.store.GetCampaignByUID(ctx, uid)
}
