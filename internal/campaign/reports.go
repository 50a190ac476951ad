package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/Mutter0815/ListSync/internal/audience"
	"github.com/Mutter0815/ListSync/internal/mailchimp"
	"github.com/Mutter0815/ListSync/pkg/logx"
)

type RecipientLister interface {
	ListRecipients(ctx context.Context, campaignID string) ([]mailchimp.SentTo, error)
}

type reportStore interface {
	GetCampaign(ctx context.Context, id int64) (Campaign, error)
	GetSegment(ctx context.Context, id int64) (audience.Segment, error)
	UpdateRecipientOpens(ctx context.Context, campaignID int64, opens []RecipientOpen) (int, error)
	RecipientUserIDs(ctx context.Context, campaignID int64) ([]int64, error)
	ReportCounts(ctx context.Context, userIDs []int64, since time.Time) (map[audience.Report]int, error)
	UpdateCampaignReports(ctx context.Context, id int64, r Reports) error
}

// ReportGenerator counts what recipients did after a campaign was sent.
type ReportGenerator struct {
	store    reportStore
	platform RecipientLister
}

func NewReportGenerator(s reportStore, p RecipientLister) *ReportGenerator {
	return &ReportGenerator{store: s, platform: p}
}

// Generate refreshes recipient opens and the behaviour counts the segment's
// variant offers. It writes the reports only when they changed.
func (g *ReportGenerator) Generate(ctx context.Context, campaignID int64) (bool, error) {
	c, err := g.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return false, err
	}
	seg, err := g.store.GetSegment(ctx, c.SegmentID)
	if err != nil {
		return false, err
	}
	v, err := audience.Lookup(seg.Kind)
	if err != nil {
		return false, err
	}

	sentTo, err := g.platform.ListRecipients(ctx, c.UID)
	if err != nil {
		return false, fmt.Errorf("list recipients of %s: %w", c.UID, err)
	}
	opens := make([]RecipientOpen, 0, len(sentTo))
	for _, r := range sentTo {
		opens = append(opens, RecipientOpen{ContactUID: r.EmailID, OpenedAt: r.OpenedAt()})
	}
	changed, err := g.store.UpdateRecipientOpens(ctx, c.ID, opens)
	if err != nil {
		return false, err
	}

	users, err := g.store.RecipientUserIDs(ctx, c.ID)
	if err != nil {
		return false, err
	}
	counts, err := g.store.ReportCounts(ctx, users, c.ScheduledAt)
	if err != nil {
		return false, err
	}
	next := make(Reports, len(v.AvailableReports()))
	for _, r := range v.AvailableReports() {
		next[r] = counts[r]
	}

	if c.Reports != nil && c.Reports.Equal(next) {
		logx.L().Debugw("campaign_reports_unchanged", "campaign_id", c.ID, "opens_changed", changed)
		return false, nil
	}
	if err := g.store.UpdateCampaignReports(ctx, c.ID, next); err != nil {
		return false, fmt.Errorf("save reports: %w", err)
	}
	logx.L().Infow("campaign_reports_updated", "campaign_id", c.ID, "reports", next, "opens_changed", changed)
	return true, nil
}
