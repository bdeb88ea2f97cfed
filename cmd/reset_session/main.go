package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"realtime-calculator/internal/config"
	"realtime-calculator/internal/database"
	"realtime-calculator/internal/feed"
	"realtime-calculator/internal/model"
	"realtime-calculator/internal/store"
)

// 사용법: reset_session [sessionId...] (없으면 CALCULATOR_SESSION_ID)
func main() {
	cfg := config.Load()

	sessionIDs := os.Args[1:]
	if len(sessionIDs) == 0 {
		sessionIDs = []string{cfg.Calculator.DefaultSessionID}
	}

	// Connect to database
	db, err := database.ConnectDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	var (
		st        store.StateStore = store.NewGormStore(db)
		publisher feed.Publisher   = feed.NewHub()
	)

	// Redis가 있으면 캐시도 갱신하고 접속 중인 클라이언트에게 알린다
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		st = store.NewCachedStore(st, rdb, cfg.Calculator.CacheTTL)
		publisher = feed.NewRedisBridge(rdb, feed.NewHub(), "reset_session")
	}

	log.Println("Database connected. Starting calculator reset...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, sessionID := range sessionIDs {
		changeType := feed.ChangeUpdate
		if _, err := st.Read(ctx, sessionID); errors.Is(err, store.ErrNotFound) {
			changeType = feed.ChangeInsert
		}

		state := model.DefaultCalculatorState(sessionID)
		if err := st.Upsert(ctx, &state); err != nil {
			log.Fatalf("Failed to reset %s: %v", sessionID, err)
		}

		if err := publisher.Publish(ctx, feed.ChangeEvent(feed.Notification{Type: changeType, SessionID: sessionID, Record: &state})); err != nil {
			log.Printf("⚠️ Failed to notify clients of %s: %v", sessionID, err)
		}
		log.Printf("Session %s reset to %s.", sessionID, state.Display)
	}
}
