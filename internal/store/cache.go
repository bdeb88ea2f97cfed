package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"realtime-calculator/internal/model"
)

// CachedStore Redis read-through / write-through 캐시
type CachedStore struct {
	next   StateStore
	client *redis.Client
	ttl    time.Duration
	locks  *KeyedMutex
}

// NewCachedStore 하위 저장소 앞에 Redis 캐시를 둔다
func NewCachedStore(next StateStore, client *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{next: next, client: client, ttl: ttl, locks: NewKeyedMutex()}
}

func (s *CachedStore) key(sessionID string) string {
	return "calculator:state:" + sessionID
}

// Read 캐시 우선 조회, 미스 시 하위 저장소에서 읽고 채운다
func (s *CachedStore) Read(ctx context.Context, sessionID string) (*model.CalculatorState, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	switch {
	case err == nil:
		var state model.CalculatorState
		if err := json.Unmarshal([]byte(val), &state); err == nil {
			return &state, nil
		}
		log.Printf("[Cache] Corrupt entry for %s, falling through", sessionID)
		s.client.Del(ctx, s.key(sessionID))
	case !errors.Is(err, redis.Nil):
		// 캐시 장애는 치명적이지 않음
		log.Printf("[Cache] Get failed for %s: %v", sessionID, err)
	}

	state, err := s.next.Read(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// 동시에 끝난 Upsert가 채운 최신 값을 덮어쓰지 않는다
	s.fillIfAbsent(ctx, state)
	return state, nil
}

// Upsert 하위 저장소에 먼저 쓰고 캐시를 갱신한다. 같은 세션의 쓰기와 캐시 갱신은 한 쌍으로 직렬화된다.
func (s *CachedStore) Upsert(ctx context.Context, state *model.CalculatorState) error {
	if state == nil || state.SessionID == "" {
		return ErrInvalidState
	}
	unlock := s.locks.Lock(state.SessionID)
	defer unlock()

	if err := s.next.Upsert(ctx, state); err != nil {
		// 오래된 캐시가 남지 않도록 제거
		s.client.Del(ctx, s.key(state.SessionID))
		return err
	}
	s.fill(ctx, state)
	return nil
}

func (s *CachedStore) fill(ctx context.Context, state *model.CalculatorState) {
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, s.key(state.SessionID), data, s.ttl).Err(); err != nil {
		log.Printf("[Cache] Set failed for %s: %v", state.SessionID, err)
	}
}

func (s *CachedStore) fillIfAbsent(ctx context.Context, state *model.CalculatorState) {
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := s.client.SetNX(ctx, s.key(state.SessionID), data, s.ttl).Err(); err != nil {
		log.Printf("[Cache] SetNX failed for %s: %v", state.SessionID, err)
	}
}
