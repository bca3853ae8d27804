package main

import (
	"database/sql"
	"net/http"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "crowdmeter/internal/adapters/http_server"
	"crowdmeter/internal/adapters/memcache"
	"crowdmeter/internal/adapters/observability"
	"crowdmeter/internal/adapters/push"
	redisad "crowdmeter/internal/adapters/redis"
	"crowdmeter/internal/app"
	"crowdmeter/internal/background"
	"crowdmeter/internal/domain"
	"crowdmeter/internal/shared"
	mysqlrepo "crowdmeter/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve(cfg.MetricsAddr)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// cache backend
	var cache domain.Cache
	switch cfg.CacheBackend {
	case "redis":
		cache = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis cache")
	default:
		mc := memcache.New()
		defer mc.StartSweeper(time.Minute)()
		cache = mc
	}

	// push transport
	var transport domain.PushTransport
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		transport, err = push.New(cfg.PushSubscriber, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.PushRPS, cfg.PushTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize push transport")
		}
	} else {
		transport = push.Disabled{}
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("tz", cfg.Timezone).Msg("bad TIMEZONE")
	}

	// deps
	repo := mysqlrepo.New(db)
	runner := background.NewRunner(int64(cfg.FanoutWorkers), log.Logger)
	disp := app.NewDispatcher(repo, repo, transport, runner, cfg.PublicBaseURL, cfg.FanoutWorkers, cfg.PushTimeout)
	cmds := app.NewCommandService(repo, repo, disp)
	q := app.NewSearchService(repo, cache, cfg.RadiusTTL, cfg.DefaultRadiusM, cfg.Locale, loc)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, C: cmds})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
