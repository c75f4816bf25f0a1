// Package main provides the omok server binary: WebSocket matchmaking and
// relay, optional account routes, the Redis room directory and the admin
// health endpoint.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/omok/internal/admin"
	"github.com/cory-johannsen/omok/internal/config"
	"github.com/cory-johannsen/omok/internal/frontend/handlers"
	"github.com/cory-johannsen/omok/internal/frontend/ws"
	"github.com/cory-johannsen/omok/internal/game/lobby"
	"github.com/cory-johannsen/omok/internal/game/session"
	"github.com/cory-johannsen/omok/internal/gameserver"
	"github.com/cory-johannsen/omok/internal/observability"
	"github.com/cory-johannsen/omok/internal/server"
	"github.com/cory-johannsen/omok/internal/storage/postgres"
	"github.com/cory-johannsen/omok/internal/storage/redis"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	healthInterval := flag.Duration("health-interval", 30*time.Second, "dependency health probe interval")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, cfg.Server.Name)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting omok server",
		zap.String("ws_addr", cfg.WebSocket.Addr()),
		zap.String("mode", cfg.Matchmaking.Mode),
	)

	lifecycle := server.NewLifecycle(logger)

	var adminSrv *admin.Server
	if cfg.Admin.Enabled {
		adminSrv = admin.NewServer(cfg.Admin, logger)
	}

	// Room directory mirror
	registryOpts := []lobby.Option{lobby.WithLogger(logger.Named("lobby"))}
	if cfg.Redis.Enabled {
		client := redis.NewClient(cfg.Redis)
		dir := redis.NewDirectory(client, cfg.Redis.KeyPrefix, cfg.Redis.QueueSize, logger.Named("directory"))

		resetCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := dir.Reset(resetCtx)
		cancel()
		if err != nil {
			logger.Fatal("resetting room directory", zap.Error(err))
		}
		logger.Info("room directory connected",
			zap.String("addr", cfg.Redis.Addr),
			zap.String("key", dir.Key()),
		)
		registryOpts = append(registryOpts, lobby.WithObserver(dir))

		dirCtx, dirCancel := context.WithCancel(ctx)
		dirDone := make(chan struct{})
		lifecycle.Add("directory", &server.FuncService{
			StartFn: func() error {
				defer close(dirDone)
				return dir.Run(dirCtx)
			},
			StopFn: func() {
				dirCancel()
				<-dirDone
				if err := client.Close(); err != nil {
					logger.Warn("closing redis client", zap.Error(err))
				}
			},
		})
		if adminSrv != nil {
			adminSrv.AddProbe("redis", dir.Ping)
		}
	}

	registry := lobby.NewRegistry(registryOpts...)
	sessions := session.NewManager(cfg.WebSocket.OutboxSize)
	router := gameserver.NewRouter(registry, sessions, cfg.Matchmaking.Mode, logger.Named("router"))
	bridge := handlers.NewGameBridge(router, logger.Named("bridge"))

	var acceptorOpts []ws.Option

	// Accounts
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)

		accounts := handlers.NewAccountHandler(postgres.NewAccountRepository(pool.DB()), logger.Named("accounts"))
		for _, pattern := range accounts.Patterns() {
			acceptorOpts = append(acceptorOpts, ws.WithRoute(pattern, accounts))
		}
		if adminSrv != nil {
			adminSrv.AddProbe("postgres", func(ctx context.Context) error {
				return pool.Health(ctx, 5*time.Second)
			})
		}
		defer pool.Close()
	}

	acceptor := ws.NewAcceptor(cfg.WebSocket, bridge, logger.Named("ws"), acceptorOpts...)
	lifecycle.Add("websocket", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	if cfg.Server.StatsInterval > 0 {
		lifecycle.Add("stats", server.NewPeriodicService(cfg.Server.StatsInterval, router.ReportStats, nil))
	}

	if adminSrv != nil {
		lifecycle.Add("admin", &server.FuncService{
			StartFn: adminSrv.ListenAndServe,
			StopFn:  adminSrv.Stop,
		})
		lifecycle.Add("health", server.NewPeriodicService(*healthInterval, adminSrv.Check, nil))
	}

	logger.Info("omok server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("ws_addr", cfg.WebSocket.Addr()),
		zap.Bool("accounts", cfg.Database.Enabled),
		zap.Bool("directory", cfg.Redis.Enabled),
		zap.Bool("admin", cfg.Admin.Enabled),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
