package campaign

import (
	"context"
	"fmt"

	"github.com/Mutter0815/ListSync/internal/mailchimp"
	"github.com/Mutter0815/ListSync/pkg/logx"
	"github.com/Mutter0815/ListSync/pkg/metrics"
)

type ReportFetcher interface {
	FetchReport(ctx context.Context, campaignID string) (mailchimp.Report, error)
}

type statsStore interface {
	GetCampaign(ctx context.Context, id int64) (Campaign, error)
	UpdateCampaignStats(ctx context.Context, id int64, st Stats) error
}

// DeriveStats maps a platform report onto the stored counters.
func DeriveStats(r mailchimp.Report) Stats {
	var bounced int
	for _, n := range r.Bounces.Counts() {
		bounced += n
	}
	return Stats{
		EmailsSent:      r.EmailsSent,
		EmailsBounced:   bounced,
		EmailsOpened:    r.Opens.UniqueOpens,
		EmailsDelivered: r.EmailsSent - bounced,
	}
}

// Reconciler refreshes campaign stats and writes only when they changed.
type Reconciler struct {
	store    statsStore
	platform ReportFetcher
}

func NewReconciler(s statsStore, p ReportFetcher) *Reconciler {
	return &Reconciler{store: s, platform: p}
}

func (r *Reconciler) Reconcile(ctx context.Context, campaignID int64) (bool, error) {
	c, err := r.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return false, err
	}
	report, err := r.platform.FetchReport(ctx, c.UID)
	if err != nil {
		return false, err
	}

	next := DeriveStats(report)
	if c.Stats != nil && *c.Stats == next {
		metrics.StatsReconciled.WithLabelValues("unchanged").Inc()
		logx.L().Debugw("campaign_stats_unchanged", "campaign_id", c.ID)
		return false, nil
	}
	if err := r.store.UpdateCampaignStats(ctx, c.ID, next); err != nil {
		return false, fmt.Errorf("save stats: %w", err)
	}
	metrics.StatsReconciled.WithLabelValues("updated").Inc()
	logx.L().Infow("campaign_stats_updated", "campaign_id", c.ID, "stats", next)
	return true, nil
}
