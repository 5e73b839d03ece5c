package main

import (
	"context"

	"github.com/amberapp/amber-core/internal/app"
	"github.com/amberapp/amber-core/internal/cache"
	"github.com/amberapp/amber-core/internal/config"
	"github.com/amberapp/amber-core/internal/db"
	"github.com/amberapp/amber-core/internal/logger"
	"github.com/amberapp/amber-core/internal/notify"
	"github.com/amberapp/amber-core/internal/repository"
	"github.com/amberapp/amber-core/internal/server"
	"github.com/amberapp/amber-core/internal/service/chat"
	"github.com/amberapp/amber-core/internal/service/discovery"
	"github.com/amberapp/amber-core/internal/service/match"
	"github.com/amberapp/amber-core/internal/stream"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(cfg, database, redisCache, log)

	// One transport connection per notification listener; provisioning calls
	// share a single unconnected client for its REST surface.
	provisioningTransport := stream.NewClient(cfg, log)
	newTransport := func() stream.Transport { return stream.NewClient(cfg, log) }

	hub := notify.NewHub(appCtx, newTransport, repository.NewUserRepository(database))

	registrars := []server.Registrar{
		discovery.NewRegistrar(appCtx),
		match.NewRegistrar(appCtx),
		chat.NewRegistrar(appCtx, provisioningTransport),
		notify.NewRegistrar(hub),
	}

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting http server", "addr", addr)

	if err := server.StartHTTPServer(cfg, registrars...); err != nil {
		log.Error("failed to start http server", "err", err)
	}
}
