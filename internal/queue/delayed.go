package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mutter0815/ListSync/pkg/logx"
	"github.com/Mutter0815/ListSync/pkg/metrics"
	"github.com/Mutter0815/ListSync/pkg/model"
)

const promoteBatch = 100

type publisher interface {
	PublishJSON(ctx context.Context, body []byte) error
}

// Delayed publishes due tasks straight to the broker and parks future ones in
// a Redis sorted set scored by their NotBefore time in unix milliseconds.
type Delayed struct {
	rdb redis.Cmdable
	pub publisher
	key string
	now func() time.Time
}

func NewDelayed(rdb redis.Cmdable, pub publisher, key string) *Delayed {
	return &Delayed{rdb: rdb, pub: pub, key: key, now: time.Now}
}

func (d *Delayed) Enqueue(ctx context.Context, t model.Task) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", t.Type, err)
	}

	if !t.NotBefore.After(d.now()) {
		if err := d.pub.PublishJSON(ctx, body); err != nil {
			return fmt.Errorf("publish task %s: %w", t.Type, err)
		}
		metrics.TasksEnqueued.WithLabelValues(string(t.Type), "false").Inc()
		return nil
	}

	z := redis.Z{Score: float64(t.NotBefore.UnixMilli()), Member: string(body)}
	if err := d.rdb.ZAdd(ctx, d.key, z).Err(); err != nil {
		return fmt.Errorf("delay task %s: %w", t.Type, err)
	}
	metrics.TasksEnqueued.WithLabelValues(string(t.Type), "true").Inc()
	return nil
}

// PromoteDue moves due tasks to the broker. A member is published only by
// the caller whose ZREM removed it, so concurrent promoters never publish the
// same task twice. A member whose publish fails is put back.
func (d *Delayed) PromoteDue(ctx context.Context) (int, error) {
	upper := strconv.FormatInt(d.now().UnixMilli(), 10)
	members, err := d.rdb.ZRangeByScoreWithScores(ctx, d.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   upper,
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan due tasks: %w", err)
	}

	promoted := 0
	for _, z := range members {
		member, _ := z.Member.(string)
		n, err := d.rdb.ZRem(ctx, d.key, member).Result()
		if err != nil {
			return promoted, fmt.Errorf("claim due task: %w", err)
		}
		if n == 0 {
			continue
		}
		if err := d.pub.PublishJSON(ctx, []byte(member)); err != nil {
			if rerr := d.rdb.ZAdd(ctx, d.key, redis.Z{Score: z.Score, Member: member}).Err(); rerr != nil {
				logx.L().Errorw("delayed_task_restore_error", "error", rerr)
			}
			return promoted, fmt.Errorf("publish due task: %w", err)
		}
		promoted++
		metrics.TasksPromoted.Inc()
	}
	return promoted, nil
}

// Pending reports how many tasks are parked.
func (d *Delayed) Pending(ctx context.Context) (int64, error) {
	return d.rdb.ZCard(ctx, d.key).Result()
}

// Run promotes due tasks every interval until ctx is done.
func (d *Delayed) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logx.L().Infow("promoter_started", "key", d.key, "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			logx.L().Infow("promoter_stopping")
			return ctx.Err()
		case <-ticker.C:
			for {
				n, err := d.PromoteDue(ctx)
				if err != nil {
					logx.L().Warnw("promote_due_error", "promoted", n, "error", err)
					break
				}
				if n < promoteBatch {
					break
				}
			}
		}
	}
}
