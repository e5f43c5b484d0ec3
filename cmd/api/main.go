package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	server "staybook/internal/adapters/http_server"
	"staybook/internal/adapters/notify"
	"staybook/internal/adapters/observability"
	redisad "staybook/internal/adapters/redis"
	"staybook/internal/app"
	"staybook/internal/schedule"
	"staybook/internal/shared"
	mysqlrepo "staybook/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// global logger: console in dev, JSON otherwise
	log.Logger = observability.NewLogger(cfg.AppEnv, "staybook-api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	rdb := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer rdb.Close()

	sink, closeSink, err := notify.FromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize notifiers")
	}
	defer closeSink()

	repo := mysqlrepo.New(db)
	accommodations := app.NewAccommodationService(repo, redisad.New(rdb), cfg.CacheTTL, sink)
	sweeper := app.NewSweeper(repo, sink)
	job := app.NewSweepJob(sweeper, redisad.NewLocker(rdb), cfg.SweepLockTTL)

	hour, minute, err := schedule.ParseClock(cfg.SweepAt)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid SWEEP_AT")
	}
	loc, err := time.LoadLocation(cfg.SweepTZ)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid SWEEP_TZ")
	}
	daily := &schedule.Daily{
		Name: "expiration-sweep", Hour: hour, Minute: minute, Location: loc,
		Job: func(ctx context.Context, now time.Time) {
			if _, err := job.Run(ctx, now); err != nil {
				log.Error().Err(err).Msg("scheduled sweep failed")
			}
		},
	}

	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{DB: db, Sweeps: job, Accommodations: accommodations, Bookings: repo})
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := daily.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("api stopped")
	}
	log.Info().Msg("api stopped")
}
