package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Mutter0815/ListSync/internal/tasks"
	"github.com/Mutter0815/ListSync/pkg/config"
	"github.com/Mutter0815/ListSync/pkg/logx"
	"github.com/Mutter0815/ListSync/pkg/metrics"
	"github.com/Mutter0815/ListSync/pkg/model"
)

type CheckpointState string

const (
	StatePending CheckpointState = "pending"
	StateFired   CheckpointState = "fired"
	StateSkipped CheckpointState = "skipped"
)

type Checkpoint struct {
	At    time.Time       `json:"at"`
	State CheckpointState `json:"state"`
}

// Checkpoints returns scheduledAt + (i+1)*spacing for i in [0, count).
func Checkpoints(scheduledAt time.Time, count int, spacing time.Duration) []time.Time {
	out := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, scheduledAt.Add(time.Duration(i+1)*spacing))
	}
	return out
}

// Scheduler queues the post-send stat and report refreshes of a campaign.
type Scheduler struct {
	queue   tasks.Queue
	count   int
	spacing time.Duration
	now     func() time.Time
}

func NewScheduler(q tasks.Queue, cfg config.LifecycleConfig) *Scheduler {
	return &Scheduler{
		queue:   q,
		count:   cfg.CheckpointCount,
		spacing: cfg.CheckpointSpacing,
		now:     time.Now,
	}
}

// Plan marks every checkpoint strictly after now as pending and the rest as
// skipped.
func (s *Scheduler) Plan(scheduledAt, now time.Time) []Checkpoint {
	at := Checkpoints(scheduledAt, s.count, s.spacing)
	plan := make([]Checkpoint, len(at))
	for i, t := range at {
		plan[i] = Checkpoint{At: t, State: StateSkipped}
		if t.After(now) {
			plan[i].State = StatePending
		}
	}
	return plan
}

// Schedule evaluates the plan once and enqueues a stats task and a reports
// task at every pending checkpoint. A checkpoint that fails to enqueue stays
// pending; the others are still attempted and the errors are joined.
func (s *Scheduler) Schedule(ctx context.Context, campaignID int64, scheduledAt time.Time) ([]Checkpoint, error) {
	plan := s.Plan(scheduledAt, s.now())

	var errs []error
	for i, cp := range plan {
		if cp.State == StateSkipped {
			metrics.CheckpointsScheduled.WithLabelValues(string(StateSkipped)).Inc()
			continue
		}
		ref := model.CampaignRef{CampaignID: campaignID, Checkpoint: cp.At}
		var failed bool
		for _, typ := range []model.TaskType{model.TaskCampaignStats, model.TaskCampaignReports} {
			if _, err := tasks.Submit(ctx, s.queue, typ, ref, cp.At); err != nil {
				errs = append(errs, fmt.Errorf("schedule %s for campaign %d at %s: %w", typ, campaignID, cp.At.Format(time.RFC3339), err))
				failed = true
			}
		}
		if failed {
			continue
		}
		plan[i].State = StateFired
		metrics.CheckpointsScheduled.WithLabelValues(string(StateFired)).Inc()
	}

	logx.L().Infow("campaign_checkpoints_planned", "campaign_id", campaignID, "scheduled_at", scheduledAt, "plan", plan)
	return plan, errors.Join(errs...)
}
