package audience

import (
	"context"
	"fmt"
	"time"
)

// Selector computes the current audience of a segment.
type Selector struct {
	src              ActivitySource
	defaultTimeframe time.Duration
	now              func() time.Time
}

func NewSelector(src ActivitySource, defaultTimeframe time.Duration) *Selector {
	return &Selector{src: src, defaultTimeframe: defaultTimeframe, now: time.Now}
}

// WithClock replaces the clock used for windows.
func (s *Selector) WithClock(now func() time.Time) *Selector {
	s.now = now
	return s
}

// Window returns the lookback window for v at the current clock reading.
func (s *Selector) Window(v Variant) Window {
	d := v.Timeframe()
	if d <= 0 {
		d = s.defaultTimeframe
	}
	return WindowAt(s.now(), d)
}

// Select runs the segment's variant and resolves the candidates to emails.
func (s *Selector) Select(ctx context.Context, seg Segment) (Audience, error) {
	v, err := Lookup(seg.Kind)
	if err != nil {
		return nil, err
	}
	ids, err := v.Candidates(ctx, s.src, s.Window(v), seg.Entity)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", seg.Kind, err)
	}
	return s.resolve(ctx, ids)
}

// Rank returns the top entities of an entity-scoped variant.
func (s *Selector) Rank(ctx context.Context, r EntityRanker) ([]EntityCount, error) {
	return r.TopEntities(ctx, s.src, s.Window(r))
}

// resolve maps user ids to emails. Ids without a registered user are dropped.
func (s *Selector) resolve(ctx context.Context, ids []int64) (Audience, error) {
	out := make(Audience, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	seen := make(map[int64]struct{}, len(ids))
	uniq := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	emails, err := s.src.UserEmails(ctx, uniq)
	if err != nil {
		return nil, fmt.Errorf("resolve emails: %w", err)
	}
	for _, id := range uniq {
		if email, ok := emails[id]; ok && email != "" {
			out[email] = id
		}
	}
	return out, nil
}
