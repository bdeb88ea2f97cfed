package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "calculator:feed:"

// envelope 서버 간 전달 포맷
type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisBridge 여러 서버 인스턴스 사이에서 피드 이벤트를 중계한다
type RedisBridge struct {
	client   *redis.Client
	hub      *Hub
	serverID string
}

// NewRedisBridge RedisBridge 생성
func NewRedisBridge(client *redis.Client, hub *Hub, serverID string) *RedisBridge {
	return &RedisBridge{client: client, hub: hub, serverID: serverID}
}

// Channel 세션별 Redis 채널 이름
func Channel(sessionID string) string {
	return channelPrefix + sessionID
}

// Publish 로컬 구독자에게 즉시 전달하고 다른 인스턴스로 발행한다
func (b *RedisBridge) Publish(ctx context.Context, ev Event) error {
	b.hub.Deliver(ev)

	data, err := json.Marshal(envelope{Origin: b.serverID, Event: ev})
	if err != nil {
		return fmt.Errorf("failed to marshal feed event: %w", err)
	}
	if err := b.client.Publish(ctx, Channel(ev.SessionID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish feed event: %w", err)
	}
	return nil
}

// Run 다른 인스턴스의 이벤트를 로컬 Hub로 중계 (ctx 취소 시 종료)
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	// 구독 확인
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe feed channel: %w", err)
	}
	log.Printf("📡 Feed bridge subscribed (server=%s)", b.serverID)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("[Feed] Dropping malformed message on %s: %v", msg.Channel, err)
				continue
			}
			if env.Origin == b.serverID {
				continue
			}
			if env.Event.SessionID == "" {
				env.Event.SessionID = strings.TrimPrefix(msg.Channel, channelPrefix)
			}
			b.hub.Deliver(env.Event)
		}
	}
}
