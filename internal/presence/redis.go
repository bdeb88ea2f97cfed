package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"realtime-calculator/internal/model"
)

// DefaultTTL presence 키 만료 시간 (Heartbeat로 연장)
const DefaultTTL = 60 * time.Second

// RedisRegistry 멀티 서버용 Registry.
// 피어마다 TTL 키 1개, 세션마다 피어 ID 인덱스 Set 1개를 둔다.
// 서버가 죽어 Untrack을 못 해도 피어 키는 TTL 후 사라진다.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRegistry 생성자
func NewRedisRegistry(client *redis.Client, ttl time.Duration) *RedisRegistry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRegistry{client: client, ttl: ttl}
}

// Key 생성 유틸
func (r *RedisRegistry) peerKey(sessionID, peerID string) string {
	return fmt.Sprintf("presence:calculator:{%s}:peer:%s", sessionID, peerID)
}

func (r *RedisRegistry) indexKey(sessionID string) string {
	return fmt.Sprintf("presence:calculator:{%s}:peers", sessionID)
}

// Track 피어 등록 (Connect)
func (r *RedisRegistry) Track(ctx context.Context, sessionID string, peer model.Peer) error {
	data, err := json.Marshal(peer)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.peerKey(sessionID, peer.PeerID), data, r.ttl)
	pipe.SAdd(ctx, r.indexKey(sessionID), peer.PeerID)
	// 인덱스는 마지막 피어보다 오래 남지 않도록 함께 연장
	pipe.Expire(ctx, r.indexKey(sessionID), r.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Heartbeat 생존 신고 (피어 키 TTL 연장). 이미 만료됐으면 ErrNotTracked.
func (r *RedisRegistry) Heartbeat(ctx context.Context, sessionID, peerID string) error {
	pipe := r.client.TxPipeline()
	peerExp := pipe.Expire(ctx, r.peerKey(sessionID, peerID), r.ttl)
	pipe.Expire(ctx, r.indexKey(sessionID), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if !peerExp.Val() {
		return fmt.Errorf("%w: session %s peer %s", ErrNotTracked, sessionID, peerID)
	}
	return nil
}

// Untrack 피어 삭제 (Disconnect)
func (r *RedisRegistry) Untrack(ctx context.Context, sessionID, peerID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.peerKey(sessionID, peerID))
	pipe.SRem(ctx, r.indexKey(sessionID), peerID)
	_, err := pipe.Exec(ctx)
	return err
}

// Snapshot 살아 있는 피어 전체 조회. 만료된 피어는 인덱스에서 정리한다.
func (r *RedisRegistry) Snapshot(ctx context.Context, sessionID string) (map[string]model.Peer, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	peers := make(map[string]model.Peer, len(ids))
	if len(ids) == 0 {
		return peers, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.peerKey(sessionID, id)
	}

	// MGET으로 한 번에 조회
	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var stale []interface{}
	for i, result := range results {
		strVal, ok := result.(string)
		if !ok {
			stale = append(stale, ids[i]) // 만료 (Offline)
			continue
		}
		var p model.Peer
		if err := json.Unmarshal([]byte(strVal), &p); err != nil {
			continue
		}
		peers[ids[i]] = p
	}

	if len(stale) > 0 {
		if err := r.client.SRem(ctx, r.indexKey(sessionID), stale...).Err(); err != nil {
			return nil, err
		}
	}
	return peers, nil
}
