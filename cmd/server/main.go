package main

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"realtime-calculator/internal/config"
	"realtime-calculator/internal/database"
	"realtime-calculator/internal/feed"
	"realtime-calculator/internal/metrics"
	"realtime-calculator/internal/presence"
	"realtime-calculator/internal/server"
	"realtime-calculator/internal/store"
)

func main() {
	// 설정 로드
	cfg := config.Load()
	if cfg.Server.ServerID == "" {
		cfg.Server.ServerID = uuid.NewString()
	}

	// 지표 레지스트리
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// 상태 저장소
	var (
		db *gorm.DB
		st store.StateStore
	)
	switch cfg.Calculator.StoreDriver {
	case "memory":
		st = store.NewMemoryStore()
		log.Println("ℹ️ Using in-memory calculator store (state is lost on restart)")
	case "postgres":
		var err error
		db, err = database.ConnectDB(cfg.Database)
		if err != nil {
			log.Fatalf("❌ Database connection failed: %v", err)
		}
		defer database.Close()

		// Ping 테스트
		if err := database.Ping(); err != nil {
			log.Fatalf("❌ Database ping failed: %v", err)
		}
		log.Printf("✅ Database connected successfully")
		st = store.NewGormStore(db)
	default:
		log.Fatalf("❌ Unknown STORE_DRIVER %q (expected postgres or memory)", cfg.Calculator.StoreDriver)
	}

	// 피드 허브 + presence (Redis 있으면 다중 인스턴스 구성)
	hub := feed.NewHub(
		feed.WithBufferSize(cfg.WebSocket.SubscriberBuffer),
		feed.WithDropHandler(func(sessionID string) {
			m.FeedDropsTotal.Inc()
		}),
	)
	deps := server.Deps{
		Store:    st,
		Hub:      hub,
		Registry: presence.NewMemoryRegistry(),
		DB:       db,
		Metrics:  m,
		Gatherer: registry,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("❌ Redis connection failed: %v", err)
		}
		log.Printf("✅ Redis connected: %s", cfg.Redis.Addr)

		bridge := feed.NewRedisBridge(rdb, hub, cfg.Server.ServerID)
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("⚠️ Feed bridge stopped: %v", err)
			}
		}()

		deps.Store = store.NewCachedStore(st, rdb, cfg.Calculator.CacheTTL)
		deps.Publisher = bridge
		deps.Registry = presence.NewRedisRegistry(rdb, cfg.WebSocket.PresenceTTL)
		deps.Redis = rdb
	}

	// 서버 생성 및 설정
	srv := server.New(cfg, deps)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	// 서버 시작
	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
