package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mutter0815/ListSync/internal/audience"
	"github.com/Mutter0815/ListSync/internal/campaign"
	"github.com/Mutter0815/ListSync/internal/listsync"
	"github.com/Mutter0815/ListSync/internal/mailchimp"
	"github.com/Mutter0815/ListSync/internal/queue"
	"github.com/Mutter0815/ListSync/internal/store"
	"github.com/Mutter0815/ListSync/pkg/config"
	"github.com/Mutter0815/ListSync/pkg/db"
	"github.com/Mutter0815/ListSync/pkg/logx"
	"github.com/Mutter0815/ListSync/pkg/rmq"
	"github.com/Mutter0815/ListSync/pkg/telemetry"
	"github.com/Mutter0815/ListSync/services/campaign-api/server"
)

func main() {
	logx.Init()
	defer logx.Sync()

	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	flag.Parse()
	cfg := config.MustLoad(*cfgPath)

	shutdownTracing := telemetry.Setup("campaign-api")

	sqlDB, err := db.Open(cfg.Database.DSN)
	if err != nil {
		logx.L().Fatalw("db_open_error", "error", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			logx.L().Warnw("db_close_error", "error", err)
		} else {
			logx.L().Infow("db_closed")
		}
	}()
	st := store.New(sqlDB)

	pub, err := rmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
	if err != nil {
		logx.L().Fatalw("rmq_init_error", "error", err)
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logx.L().Warnw("rmq_publisher_close_error", "error", err)
		} else {
			logx.L().Infow("rmq_publisher_closed")
		}
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	tasks := queue.NewDelayed(rdb, pub, cfg.Redis.DelayedKey)

	mc := mailchimp.NewClient(cfg.Mailchimp)
	selector := audience.NewSelector(st, cfg.Lifecycle.DefaultTimeframe)
	scheduler := campaign.NewScheduler(tasks, cfg.Lifecycle)

	h := &server.Handlers{
		Queue:     tasks,
		Campaigns: campaign.NewService(st, mc, scheduler, cfg.Lifecycle.CampaignImportWindow),
		Segments:  st,
		Refresher: listsync.NewRefresher(st, mc, selector, tasks),
	}
	srv := server.NewHTTPServer(":"+cfg.Service.Port, h)

	go func() {
		logx.L().Infow("api_listen_start", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.L().Fatalw("http_server_error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logx.L().Infow("signal_received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logx.L().Errorw("server_shutdown_error", "error", err)
	} else {
		logx.L().Infow("server_shutdown_success")
	}
	if err := shutdownTracing(ctx); err != nil {
		logx.L().Warnw("tracing_shutdown_error", "error", err)
	}

	logx.L().Infow("campaign-api stopped gracefully")
}
