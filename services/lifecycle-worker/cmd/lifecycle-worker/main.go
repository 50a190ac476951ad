package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Mutter0815/ListSync/internal/audience"
	"github.com/Mutter0815/ListSync/internal/campaign"
	"github.com/Mutter0815/ListSync/internal/listsync"
	"github.com/Mutter0815/ListSync/internal/mailchimp"
	"github.com/Mutter0815/ListSync/internal/notify"
	"github.com/Mutter0815/ListSync/internal/queue"
	"github.com/Mutter0815/ListSync/internal/retry"
	"github.com/Mutter0815/ListSync/internal/store"
	"github.com/Mutter0815/ListSync/pkg/config"
	"github.com/Mutter0815/ListSync/pkg/db"
	"github.com/Mutter0815/ListSync/pkg/logx"
	"github.com/Mutter0815/ListSync/pkg/metrics"
	"github.com/Mutter0815/ListSync/pkg/model"
	"github.com/Mutter0815/ListSync/pkg/rmq"
	"github.com/Mutter0815/ListSync/pkg/telemetry"
	"github.com/Mutter0815/ListSync/services/lifecycle-worker/worker"
)

func main() {
	logx.Init()
	defer logx.Sync()

	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	flag.Parse()
	cfg := config.MustLoad(*cfgPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup("lifecycle-worker")
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logx.L().Warnw("tracing_shutdown_error", "error", err)
		}
	}()

	sqlDB, err := db.Open(cfg.Database.DSN)
	if err != nil {
		logx.L().Fatalw("db_open_error", "error", err)
	}
	defer sqlDB.Close()
	st := store.New(sqlDB)
	if cfg.Database.Migrate {
		if err := st.Migrate(ctx); err != nil {
			logx.L().Fatalw("db_migrate_error", "error", err)
		}
	}

	pub, err := rmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
	if err != nil {
		logx.L().Fatalw("rmq_publisher_init_error", "error", err)
	}
	defer pub.Close()
	cons, err := rmq.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, 10)
	if err != nil {
		logx.L().Fatalw("rmq_consumer_init_error", "error", err)
	}
	defer cons.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	delayed := queue.NewDelayed(rdb, pub, cfg.Redis.DelayedKey)

	notifier, err := notify.New(ctx, cfg.Notifier)
	if err != nil {
		logx.L().Fatalw("notifier_init_error", "provider", cfg.Notifier.Provider, "error", err)
	}

	mc := mailchimp.NewClient(cfg.Mailchimp)
	selector := audience.NewSelector(st, cfg.Lifecycle.DefaultTimeframe)
	scheduler := campaign.NewScheduler(delayed, cfg.Lifecycle)

	routes := worker.Routes(worker.Services{
		Dispatcher: listsync.NewDispatcher(st, mc),
		Refresher:  listsync.NewRefresher(st, mc, selector, delayed),
		Campaigns:  campaign.NewService(st, mc, scheduler, cfg.Lifecycle.CampaignImportWindow),
		Reconciler: campaign.NewReconciler(st, mc),
		Reports:    campaign.NewReportGenerator(st, mc),
	})
	handler := retry.NewHandler(cfg.Lifecycle.RetryLimit, retry.Backoff{
		Base: cfg.Lifecycle.RetryBaseDelay,
		Max:  cfg.Lifecycle.RetryMaxDelay,
	}, delayed, notifier)
	w := worker.New(cons, handler, routes)

	metricsSrv := &http.Server{Addr: ":" + cfg.Service.MetricsPort, Handler: metrics.Handler()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := w.Run(gctx); err != nil {
			return err
		}
		return errors.New("consumer channel closed")
	})
	g.Go(func() error { return delayed.Run(gctx, cfg.Redis.PollInterval) })
	g.Go(func() error {
		return worker.Tick(gctx, delayed, model.TaskListGenerateAll, cfg.Lifecycle.SegmentRefreshInterval)
	})
	g.Go(func() error {
		logx.L().Infow("metrics_listen_start", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logx.L().Errorw("worker_exit_error", "error", err)
		return
	}
	logx.L().Infow("lifecycle-worker stopped gracefully")
}
