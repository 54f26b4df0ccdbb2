// Package main API Server 入口
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parking-admin/internal/apiserver/auth"
	"parking-admin/internal/apiserver/credstore"
	"parking-admin/internal/apiserver/registry"
	"parking-admin/internal/apiserver/server"
	"parking-admin/internal/apiserver/session"
	"parking-admin/internal/apiserver/simulator"
	"parking-admin/internal/config"
	"parking-admin/internal/shared/kvstore"
	pgdriver "parking-admin/internal/shared/kvstore/driver/postgres"
	sqlitedriver "parking-admin/internal/shared/kvstore/driver/sqlite"
	kvredis "parking-admin/internal/shared/kvstore/redis"
	"parking-admin/internal/shared/kvstore/sqlstore"
	"parking-admin/internal/shared/relay"
	relayredis "parking-admin/internal/shared/relay/redis"
	"parking-admin/pkg/logging"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换环境）
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	logger := logging.New(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Output:    "stdout",
		Component: "api-server",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化 KV 存储（会话/账户快照）
	kv, kvRedisClient, err := openKVStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open KV store: %v", err)
	}
	defer kv.Close()
	log.Printf("KV store ready [driver=%s]", cfg.Database.Driver)

	// 账户存储 + 会话管理
	creds, err := credstore.NewStore(ctx, kv, logger)
	if err != nil {
		log.Fatalf("Failed to initialize credential store: %v", err)
	}
	sessions, err := session.NewManager(ctx, creds, kv, session.NewHasher(cfg.Auth.Hasher), logger)
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}

	// 车场注册表 + 事件中继
	reg := registry.New(logger)
	rel := openRelay(cfg, kvRedisClient)
	defer rel.Close()

	go func() {
		if err := reg.ConsumeRelay(ctx, rel); err != nil {
			log.Printf("Relay consumer stopped: %v", err)
		}
	}()

	// 可用车位模拟器
	sim := simulator.New(reg, cfg.Simulator, nil, nil, logger)
	go sim.Run(ctx)

	authCfg := auth.Config{
		JWTSecret:      cfg.Auth.JWTSecret,
		AccessTokenTTL: cfg.Auth.AccessTokenTTL,
	}
	if !authCfg.Enabled() {
		log.Println("WARNING: JWT_SECRET not set, running without authentication")
	}

	h := server.NewHandler(reg, sessions, sim, rel, authCfg, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}

// openKVStore 根据配置选择 KV 存储后端
//
// redis 后端会额外返回底层客户端，供事件中继复用同一连接。
func openKVStore(cfg *config.Config) (kvstore.Store, *kvredis.Store, error) {
	switch cfg.Database.Driver {
	case "redis":
		store, err := kvredis.NewStoreFromURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case "sqlite":
		db, err := sqlitedriver.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, err
		}
		store, err := sqlstore.NewStore(db, sqlitedriver.NewDialect())
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, nil, nil
	case "postgres":
		db, err := pgdriver.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store, err := sqlstore.NewStore(db, pgdriver.NewDialect())
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, nil, nil
	case "memory", "":
		return kvstore.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}
}

// openRelay 选择事件中继实现
//
// KV 已使用 Redis 时复用其连接做 Pub/Sub，否则回落到进程内中继。
func openRelay(cfg *config.Config, kvRedis *kvredis.Store) relay.Relay {
	if kvRedis != nil {
		return relayredis.NewRelay(kvRedis.Client())
	}
	if cfg.RedisURL != "" {
		rel, err := relayredis.NewRelayFromURL(cfg.RedisURL)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err = rel.Ping(pingCtx); err == nil {
				return rel
			}
			rel.Close()
		}
		log.Printf("Redis relay unavailable, using in-process relay: %v", err)
	}
	return relay.NewLocal()
}
