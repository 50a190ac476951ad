package listsync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Mutter0815/ListSync/internal/audience"
	"github.com/Mutter0815/ListSync/internal/tasks"
	"github.com/Mutter0815/ListSync/pkg/logx"
	"github.com/Mutter0815/ListSync/pkg/model"
)

type ListCreator interface {
	CreateList(ctx context.Context, name string) (string, error)
}

type refreshStore interface {
	FindSegmentByUID(ctx context.Context, uid string) (audience.Segment, error)
	FindSegmentByScope(ctx context.Context, kind audience.Kind, e audience.Entity) (audience.Segment, error)
	ListSegments(ctx context.Context, kind audience.Kind, activeOnly bool) ([]audience.Segment, error)
	CreateSegment(ctx context.Context, seg audience.Segment) (audience.Segment, error)
	AttachSegmentUID(ctx context.Context, id int64, uid string) error
	SetSegmentActive(ctx context.Context, id int64, active bool) error
	CurrentMembership(ctx context.Context, segmentID int64) (audience.Audience, error)
}

type RefreshResult struct {
	SegmentUID string `json:"segment_uid"`
	Additions  int    `json:"additions"`
	Removals   int    `json:"removals"`
	TaskID     string `json:"task_id,omitempty"`
}

type GenerateAllResult struct {
	Segments    []string `json:"segments"`
	Deactivated []string `json:"deactivated"`
}

// Refresher recomputes segment audiences and queues the resulting diffs.
type Refresher struct {
	store    refreshStore
	platform ListCreator
	selector *audience.Selector
	queue    tasks.Queue
}

func NewRefresher(s refreshStore, p ListCreator, sel *audience.Selector, q tasks.Queue) *Refresher {
	return &Refresher{store: s, platform: p, selector: sel, queue: q}
}

// Refresh diffs the current audience of an active segment against its
// synced membership and queues a list.modify task when they differ.
func (r *Refresher) Refresh(ctx context.Context, uid string) (RefreshResult, error) {
	seg, err := r.store.FindSegmentByUID(ctx, uid)
	if err != nil {
		return RefreshResult{}, err
	}
	return r.refresh(ctx, seg)
}

func (r *Refresher) refresh(ctx context.Context, seg audience.Segment) (RefreshResult, error) {
	res := RefreshResult{SegmentUID: seg.UID}
	if !seg.Active {
		return res, fmt.Errorf("refresh %s: %w", seg.UID, audience.ErrSegmentInactive)
	}
	next, err := r.selector.Select(ctx, seg)
	if err != nil {
		return res, err
	}
	current, err := r.store.CurrentMembership(ctx, seg.ID)
	if err != nil {
		return res, err
	}

	additions, removals := audience.Diff(next, current)
	res.Additions, res.Removals = len(additions), len(removals)
	if len(additions) == 0 && len(removals) == 0 {
		logx.L().Debugw("segment_unchanged", "segment_id", seg.ID)
		return res, nil
	}

	task, err := tasks.Submit(ctx, r.queue, model.TaskListModify, model.ListModification{
		SegmentID:     seg.ID,
		Additions:     additions,
		RemovalEmails: removals,
	}, time.Time{})
	if err != nil {
		return res, fmt.Errorf("queue list sync for %s: %w", seg.UID, err)
	}
	res.TaskID = task.ID
	logx.L().Infow("segment_diff_queued", "segment_id", seg.ID, "additions", res.Additions, "removals", res.Removals, "task_id", task.ID)
	return res, nil
}

// Generate creates the platform list and segment for req and queues the
// first sync. If a segment with the same scope exists it is reactivated and
// refreshed instead. The segment is stored before its list is created, so a
// redelivered request finishes that segment rather than creating a second
// list.
func (r *Refresher) Generate(ctx context.Context, req model.ListGeneration) (audience.Segment, error) {
	kind := audience.Kind(req.Kind)
	entity := audience.Entity{ID: req.Entity.ID, Type: req.Entity.Type, Keyword: req.Entity.Keyword}
	if err := audience.ValidateScope(kind, entity); err != nil {
		return audience.Segment{}, err
	}
	v, err := audience.Lookup(kind)
	if err != nil {
		return audience.Segment{}, err
	}

	existing, err := r.store.FindSegmentByScope(ctx, kind, entity)
	switch {
	case err == nil:
		if !existing.Active {
			if err := r.store.SetSegmentActive(ctx, existing.ID, true); err != nil {
				return audience.Segment{}, err
			}
			existing.Active = true
		}
		if existing.Pending() {
			return r.createList(ctx, existing)
		}
		_, err := r.refresh(ctx, existing)
		return existing, err
	case !errors.Is(err, audience.ErrSegmentNotFound):
		return audience.Segment{}, err
	}

	name := req.Name
	if name == "" {
		name = audience.DisplayName(v, qualifier(entity))
	}
	seg := audience.Segment{Name: name, Kind: kind, Entity: entity, Active: true}
	if err := seg.ValidateFields(); err != nil {
		return audience.Segment{}, err
	}
	seg, err = r.store.CreateSegment(ctx, seg)
	if err != nil {
		return audience.Segment{}, err
	}
	return r.createList(ctx, seg)
}

// createList creates the platform list of a pending segment, links it and
// queues the initial sync.
func (r *Refresher) createList(ctx context.Context, seg audience.Segment) (audience.Segment, error) {
	// Run the selection first so a failing query leaves nothing behind on
	// the platform.
	initial, err := r.selector.Select(ctx, seg)
	if err != nil {
		return audience.Segment{}, err
	}

	listID, err := r.platform.CreateList(ctx, seg.Name)
	if err != nil {
		return audience.Segment{}, fmt.Errorf("create list %q: %w", seg.Name, err)
	}
	if err := r.store.AttachSegmentUID(ctx, seg.ID, listID); err != nil {
		return audience.Segment{}, err
	}
	seg.UID = listID
	logx.L().Infow("segment_created", "segment_id", seg.ID, "list_id", seg.UID, "kind", seg.Kind, "members", len(initial))

	if len(initial) == 0 {
		return seg, nil
	}
	if _, err := tasks.Submit(ctx, r.queue, model.TaskListModify, model.ListModification{
		SegmentID: seg.ID,
		Additions: initial,
	}, time.Time{}); err != nil {
		return seg, fmt.Errorf("queue initial sync for %s: %w", seg.UID, err)
	}
	return seg, nil
}

// GenerateAll maintains the periodic segments: one per singleton kind and
// one per top entity of each ranked kind. Entity segments that fell out of
// the top are deactivated. Failures of one segment do not stop the rest.
func (r *Refresher) GenerateAll(ctx context.Context) (GenerateAllResult, error) {
	var (
		res  GenerateAllResult
		errs []error
	)
	add := func(seg audience.Segment, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		res.Segments = append(res.Segments, seg.UID)
	}

	for _, v := range audience.Generated() {
		ranker, ok := v.(audience.EntityRanker)
		if !ok {
			add(r.Generate(ctx, model.ListGeneration{Kind: string(v.Kind())}))
			continue
		}

		top, err := r.selector.Rank(ctx, ranker)
		if err != nil {
			errs = append(errs, fmt.Errorf("rank %s: %w", v.Kind(), err))
			continue
		}
		keep := make(map[int64]struct{}, len(top))
		for _, e := range top {
			keep[e.EntityID] = struct{}{}
			add(r.Generate(ctx, model.ListGeneration{
				Kind:   string(v.Kind()),
				Name:   audience.DisplayName(v, e.Name),
				Entity: model.Entity{ID: e.EntityID, Type: ranker.EntityType()},
			}))
		}

		active, err := r.store.ListSegments(ctx, v.Kind(), true)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, seg := range active {
			if _, ok := keep[seg.Entity.ID]; ok {
				continue
			}
			if err := r.store.SetSegmentActive(ctx, seg.ID, false); err != nil {
				errs = append(errs, err)
				continue
			}
			res.Deactivated = append(res.Deactivated, seg.UID)
			logx.L().Infow("segment_deactivated", "segment_id", seg.ID, "kind", seg.Kind, "entity_id", seg.Entity.ID)
		}
	}
	return res, errors.Join(errs...)
}

func qualifier(e audience.Entity) string {
	switch {
	case e.Keyword != "":
		return e.Keyword
	case e.ID > 0:
		return "#" + strconv.FormatInt(e.ID, 10)
	}
	return ""
}
