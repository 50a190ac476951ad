package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mutter0815/ListSync/internal/audience"
	"github.com/Mutter0815/ListSync/internal/mailchimp"
	"github.com/Mutter0815/ListSync/pkg/model"
)

type fakeQueue struct {
	tasks []model.Task
	fail  func(model.Task) error
}

func (q *fakeQueue) Enqueue(_ context.Context, t model.Task) error {
	if q.fail != nil {
		if err := q.fail(t); err != nil {
			return err
		}
	}
	q.tasks = append(q.tasks, t)
	return nil
}

type fakeStore struct {
	segments    map[string]audience.Segment
	campaigns   map[int64]Campaign
	recipients  map[int64][]RecipientOpen
	userIDs     []int64
	counts      map[audience.Report]int
	statsWrites int
	reportWrite int
	nextID      int64
	requests    map[string]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		segments:   map[string]audience.Segment{},
		campaigns:  map[int64]Campaign{},
		recipients: map[int64][]RecipientOpen{},
		requests:   map[string]int64{},
	}
}

func (f *fakeStore) FindSegmentByUID(_ context.Context, uid string) (audience.Segment, error) {
	s, ok := f.segments[strings.ToLower(uid)]
	if !ok {
		return audience.Segment{}, fmt.Errorf("find %s: %w", uid, audience.ErrSegmentNotFound)
	}
	return s, nil
}

func (f *fakeStore) GetSegment(_ context.Context, id int64) (audience.Segment, error) {
	for _, s := range f.segments {
		if s.ID == id {
			return s, nil
		}
	}
	return audience.Segment{}, audience.ErrSegmentNotFound
}

func (f *fakeStore) GetCampaign(_ context.Context, id int64) (Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return Campaign{}, ErrCampaignNotFound
	}
	return c, nil
}

func (f *fakeStore) GetCampaignByUID(_ context.Context, uid string) (Campaign, error) {
	for _, c := range f.campaigns {
		if strings.EqualFold(c.UID, uid) {
			return c, nil
		}
	}
	return Campaign{}, ErrCampaignNotFound
}

func (f *fakeStore) SaveCampaign(ctx context.Context, c Campaign, recipients []RecipientOpen) (Campaign, bool, error) {
	if existing, err := f.GetCampaignByUID(ctx, c.UID); err == nil {
		return existing, false, nil
	}
	f.nextID++
	c.ID = f.nextID
	f.campaigns[c.ID] = c
	f.recipients[c.ID] = recipients
	return c, true, nil
}

func (f *fakeStore) ReserveCampaign(_ context.Context, key string, c Campaign) (Campaign, error) {
	if id, ok := f.requests[key]; ok {
		return f.campaigns[id], nil
	}
	f.nextID++
	c.ID = f.nextID
	f.campaigns[c.ID] = c
	f.requests[key] = c.ID
	return c, nil
}

func (f *fakeStore) AttachCampaignUID(_ context.Context, id int64, uid string) error {
	c, ok := f.campaigns[id]
	if !ok {
		return ErrCampaignNotFound
	}
	c.UID = uid
	f.campaigns[id] = c
	return nil
}

func (f *fakeStore) MarkCheckpointsScheduled(_ context.Context, id int64) error {
	c, ok := f.campaigns[id]
	if !ok {
		return ErrCampaignNotFound
	}
	c.CheckpointsScheduled = true
	f.campaigns[id] = c
	return nil
}

func (f *fakeStore) UpdateCampaignStats(_ context.Context, id int64, st Stats) error {
	c := f.campaigns[id]
	c.Stats = &st
	f.campaigns[id] = c
	f.statsWrites++
	return nil
}

func (f *fakeStore) UpdateCampaignReports(_ context.Context, id int64, r Reports) error {
	c := f.campaigns[id]
	c.Reports = r
	f.campaigns[id] = c
	f.reportWrite++
	return nil
}

func (f *fakeStore) UpdateRecipientOpens(_ context.Context, campaignID int64, opens []RecipientOpen) (int, error) {
	var changed int
	current := f.recipients[campaignID]
	for i, r := range current {
		for _, o := range opens {
			if o.ContactUID == r.ContactUID && !sameTime(o.OpenedAt, r.OpenedAt) {
				current[i].OpenedAt = o.OpenedAt
				changed++
			}
		}
	}
	return changed, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (f *fakeStore) RecipientUserIDs(context.Context, int64) ([]int64, error) {
	return f.userIDs, nil
}

func (f *fakeStore) ReportCounts(context.Context, []int64, time.Time) (map[audience.Report]int, error) {
	return f.counts, nil
}

type fakePlatform struct {
	created   []mailchimp.CampaignConfig
	createErr error
	report    mailchimp.Report
	reportErr error
	sent      []mailchimp.Campaign
	sentTo    map[string][]mailchimp.SentTo
	fetches   int
}

func (p *fakePlatform) CreateCampaign(_ context.Context, cfg mailchimp.CampaignConfig) (string, error) {
	if p.createErr != nil {
		return "", p.createErr
	}
	p.created = append(p.created, cfg)
	return fmt.Sprintf("mc-%d", len(p.created)), nil
}

func (p *fakePlatform) FetchReport(context.Context, string) (mailchimp.Report, error) {
	p.fetches++
	return p.report, p.reportErr
}

func (p *fakePlatform) ListCampaigns(context.Context, time.Time) ([]mailchimp.Campaign, error) {
	return p.sent, nil
}

func (p *fakePlatform) ListRecipients(_ context.Context, id string) ([]mailchimp.SentTo, error) {
	if p.sentTo == nil {
		return nil, errors.New("no recipients configured")
	}
	return p.sentTo[id], nil
}
