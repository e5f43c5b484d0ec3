package main

import (
	"context"
	"database/sql"
	"flag"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"staybook/internal/adapters/notify"
	"staybook/internal/adapters/observability"
	redisad "staybook/internal/adapters/redis"
	"staybook/internal/app"
	"staybook/internal/shared"
	mysqlrepo "staybook/internal/storage/mysql"
)

// sweep runs one expiration pass and exits; suited to an external cron.
func main() {
	at := flag.String("at", "", "run as if fired on this day (YYYY-MM-DD); defaults to now")
	noLock := flag.Bool("no-lock", false, "skip the once-per-day Redis lock")
	flag.Parse()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, "staybook-sweep")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	now := time.Now()
	if *at != "" {
		d, err := time.Parse(time.DateOnly, *at)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid -at")
		}
		now = d
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}

	sinks, closeSinks, err := notify.FromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize notifiers")
	}
	defer closeSinks()

	sweeper := app.NewSweeper(mysqlrepo.New(db), sinks)
	var job *app.SweepJob
	if *noLock {
		job = app.NewSweepJob(sweeper, nil, 0)
	} else {
		rdb := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rdb.Close()
		job = app.NewSweepJob(sweeper, redisad.NewLocker(rdb), cfg.SweepLockTTL)
	}

	rep, err := job.Run(ctx, now)
	if err != nil {
		log.Fatal().Err(err).Msg("sweep failed")
	}
	log.Info().
		Bool("skipped", rep.Skipped).
		Int("candidates", rep.Candidates).
		Int("expired", len(rep.Expired)).
		Int("failed", len(rep.Failed)).
		Msg("sweep completed")
}
