package listsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Mutter0815/ListSync/internal/audience"
	"github.com/Mutter0815/ListSync/internal/mailchimp"
	"github.com/Mutter0815/ListSync/pkg/model"
)

type fakeQueue struct{ tasks []model.Task }

func (q *fakeQueue) Enqueue(_ context.Context, t model.Task) error {
	q.tasks = append(q.tasks, t)
	return nil
}

// fakeStore keeps contacts by platform id and memberships as a set.
type fakeStore struct {
	segments []audience.Segment
	contacts map[string]audience.Contact
	members  map[int64]map[string]struct{}
}

func newFakeStore(segs ...audience.Segment) *fakeStore {
	return &fakeStore{
		segments: segs,
		contacts: map[string]audience.Contact{},
		members:  map[int64]map[string]struct{}{},
	}
}

func (f *fakeStore) GetSegment(_ context.Context, id int64) (audience.Segment, error) {
	for _, s := range f.segments {
		if s.ID == id {
			return s, nil
		}
	}
	return audience.Segment{}, fmt.Errorf("get segment %d: %w", id, audience.ErrSegmentNotFound)
}

func (f *fakeStore) FindSegmentByUID(_ context.Context, uid string) (audience.Segment, error) {
	for _, s := range f.segments {
		if strings.EqualFold(s.UID, uid) {
			return s, nil
		}
	}
	return audience.Segment{}, audience.ErrSegmentNotFound
}

func (f *fakeStore) FindSegmentByScope(_ context.Context, kind audience.Kind, e audience.Entity) (audience.Segment, error) {
	for _, s := range f.segments {
		if s.Kind == kind && s.Entity.ID == e.ID && s.Entity.Keyword == e.Keyword {
			return s, nil
		}
	}
	return audience.Segment{}, audience.ErrSegmentNotFound
}

func (f *fakeStore) ListSegments(_ context.Context, kind audience.Kind, activeOnly bool) ([]audience.Segment, error) {
	var out []audience.Segment
	for _, s := range f.segments {
		if s.Kind == kind && (!activeOnly || s.Active) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateSegment(_ context.Context, seg audience.Segment) (audience.Segment, error) {
	seg.ID = int64(len(f.segments) + 1)
	f.segments = append(f.segments, seg)
	return seg, nil
}

func (f *fakeStore) AttachSegmentUID(_ context.Context, id int64, uid string) error {
	for i := range f.segments {
		if f.segments[i].ID == id {
			f.segments[i].UID = uid
			return nil
		}
	}
	return audience.ErrSegmentNotFound
}

func (f *fakeStore) SetSegmentActive(_ context.Context, id int64, active bool) error {
	for i := range f.segments {
		if f.segments[i].ID == id {
			f.segments[i].Active = active
			return nil
		}
	}
	return audience.ErrSegmentNotFound
}

func (f *fakeStore) CurrentMembership(_ context.Context, segmentID int64) (audience.Audience, error) {
	out := audience.Audience{}
	for uid := range f.members[segmentID] {
		c := f.contacts[uid]
		if c.UserID != nil {
			out[c.Email] = *c.UserID
		}
	}
	return out, nil
}

func (f *fakeStore) ContactUIDsByEmails(_ context.Context, segmentID int64, emails []string) ([]string, error) {
	var out []string
	for uid := range f.members[segmentID] {
		for _, e := range emails {
			if f.contacts[uid].Email == e {
				out = append(out, uid)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) CommitListSync(_ context.Context, segmentID int64, contacts []audience.Contact, removalEmails []string) (int, int, error) {
	set := f.members[segmentID]
	if set == nil {
		set = map[string]struct{}{}
		f.members[segmentID] = set
	}
	var added, removed int
	for _, c := range contacts {
		f.contacts[c.UID] = c
		if _, ok := set[c.UID]; !ok {
			set[c.UID] = struct{}{}
			added++
		}
	}
	for uid := range set {
		for _, e := range removalEmails {
			if f.contacts[uid].Email == e {
				delete(set, uid)
				removed++
			}
		}
	}
	return added, removed, nil
}

type updateCall struct {
	listID string
	add    []string
	remove []string
}

type fakePlatform struct {
	calls   []updateCall
	lists   []string
	err     error
	listErr error
}

func (p *fakePlatform) UpdateList(_ context.Context, listID string, add, remove []string) ([]mailchimp.Member, error) {
	p.calls = append(p.calls, updateCall{listID, add, remove})
	if p.err != nil {
		return nil, p.err
	}
	members := make([]mailchimp.Member, 0, len(add))
	for _, e := range add {
		members = append(members, mailchimp.Member{ID: mailchimp.SubscriberHash(e), EmailAddress: strings.ToLower(e), Status: "subscribed"})
	}
	return members, nil
}

func (p *fakePlatform) CreateList(_ context.Context, name string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if p.listErr != nil {
		return "", p.listErr
	}
	p.lists = append(p.lists, name)
	return fmt.Sprintf("list-%d", len(p.lists)), nil
}

// fakeSource serves fixed aggregates regardless of the window.
type fakeSource struct {
	pageViews []audience.ActorCount
	buyers    map[int64][]audience.UserCount
	sales     []audience.EntityCount
	payments  []audience.EntityCount
	emails    map[int64]string
}

func (s *fakeSource) PageViewCounts(context.Context, time.Time) ([]audience.ActorCount, error) {
	return s.pageViews, nil
}

func (s *fakeSource) SearchCounts(context.Context, string, time.Time) ([]audience.ActorCount, error) {
	return nil, nil
}

func (s *fakeSource) ProductBuyers(_ context.Context, id int64, _ time.Time) ([]audience.UserCount, error) {
	return s.buyers[id], nil
}

func (s *fakeSource) DiscountedOrderCounts(context.Context, time.Time) ([]audience.UserCount, error) {
	return nil, nil
}

func (s *fakeSource) PaymentMethodOrderCounts(context.Context, int64, time.Time) ([]audience.UserCount, error) {
	return nil, nil
}

func (s *fakeSource) ProductSales(context.Context, time.Time) ([]audience.EntityCount, error) {
	return s.sales, nil
}

func (s *fakeSource) PaymentMethodUsage(context.Context, time.Time) ([]audience.EntityCount, error) {
	return s.payments, nil
}

func (s *fakeSource) UserEmails(_ context.Context, ids []int64) (map[int64]string, error) {
	out := map[int64]string{}
	for _, id := range ids {
		if e, ok := s.emails[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

func id(v int64) *int64 { return &v }
