package listsync

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Mutter0815/ListSync/internal/audience"
	"github.com/Mutter0815/ListSync/internal/mailchimp"
	"github.com/Mutter0815/ListSync/pkg/logx"
	"github.com/Mutter0815/ListSync/pkg/metrics"
	"github.com/Mutter0815/ListSync/pkg/model"
)

type ListUpdater interface {
	UpdateList(ctx context.Context, listID string, addEmails, removeIDs []string) ([]mailchimp.Member, error)
}

type syncStore interface {
	GetSegment(ctx context.Context, id int64) (audience.Segment, error)
	ContactUIDsByEmails(ctx context.Context, segmentID int64, emails []string) ([]string, error)
	CommitListSync(ctx context.Context, segmentID int64, contacts []audience.Contact, removalEmails []string) (int, int, error)
}

// Delta is the membership change committed locally.
type Delta struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// Dispatcher pushes a membership diff to the platform and records it only
// after the platform accepted it.
type Dispatcher struct {
	store    syncStore
	platform ListUpdater
}

func NewDispatcher(s syncStore, p ListUpdater) *Dispatcher {
	return &Dispatcher{store: s, platform: p}
}

func (d *Dispatcher) Sync(ctx context.Context, m model.ListModification) (Delta, error) {
	seg, err := d.store.GetSegment(ctx, m.SegmentID)
	if err != nil {
		return Delta{}, err
	}
	if len(m.Additions) == 0 && len(m.RemovalEmails) == 0 {
		return Delta{}, nil
	}

	var removeIDs []string
	if len(m.RemovalEmails) > 0 {
		removeIDs, err = d.store.ContactUIDsByEmails(ctx, seg.ID, m.RemovalEmails)
		if err != nil {
			return Delta{}, err
		}
	}

	add := make([]string, 0, len(m.Additions))
	for email := range m.Additions {
		add = append(add, email)
	}
	sort.Strings(add)

	members, err := d.platform.UpdateList(ctx, seg.UID, add, removeIDs)
	if err != nil {
		return Delta{}, fmt.Errorf("update list %s: %w", seg.UID, err)
	}

	contacts := make([]audience.Contact, 0, len(members))
	for _, mem := range members {
		c := audience.Contact{UID: mem.ID, Email: mem.EmailAddress}
		if uid, ok := lookupUser(m.Additions, mem.EmailAddress); ok {
			c.UserID = &uid
		}
		contacts = append(contacts, c)
	}

	added, removed, err := d.store.CommitListSync(ctx, seg.ID, contacts, m.RemovalEmails)
	if err != nil {
		return Delta{}, err
	}
	metrics.ListMembersAdded.Add(float64(added))
	metrics.ListMembersRemoved.Add(float64(removed))
	logx.L().Infow("list_sync_committed",
		"segment_id", seg.ID,
		"list_id", seg.UID,
		"requested_add", len(add),
		"requested_remove", len(m.RemovalEmails),
		"added", added,
		"removed", removed,
	)
	return Delta{Added: added, Removed: removed}, nil
}

// lookupUser tolerates the platform normalizing the case of an address.
func lookupUser(additions map[string]int64, email string) (int64, bool) {
	if id, ok := additions[email]; ok {
		return id, true
	}
	for e, id := range additions {
		if strings.EqualFold(e, email) {
			return id, true
		}
	}
	return 0, false
}
