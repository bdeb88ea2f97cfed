package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"realtime-calculator/internal/feed"
	"realtime-calculator/internal/metrics"
	"realtime-calculator/internal/middleware"
	"realtime-calculator/internal/model"
	"realtime-calculator/internal/presence"
)

// CalculatorWSHandler 변경 피드 + presence WebSocket 핸들러
type CalculatorWSHandler struct {
	hub          *feed.Hub
	publisher    feed.Publisher
	registry     presence.Registry
	metrics      *metrics.Metrics
	writeTimeout time.Duration
}

// feedClient 연결 하나. 쓰기는 writeMu로 직렬화한다.
type feedClient struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
}

// NewCalculatorWSHandler CalculatorWSHandler 생성
func NewCalculatorWSHandler(hub *feed.Hub, publisher feed.Publisher, registry presence.Registry, m *metrics.Metrics, writeTimeout time.Duration) *CalculatorWSHandler {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &CalculatorWSHandler{
		hub:          hub,
		publisher:    publisher,
		registry:     registry,
		metrics:      m,
		writeTimeout: writeTimeout,
	}
}

func (fc *feedClient) send(ev feed.Event) error {
	fc.writeMu.Lock()
	defer fc.writeMu.Unlock()
	fc.conn.SetWriteDeadline(time.Now().Add(fc.writeTimeout))
	return fc.conn.WriteJSON(ev)
}

// HandleWebSocket WebSocket 연결 처리
func (h *CalculatorWSHandler) HandleWebSocket(c *websocket.Conn) {
	sessionID, ok := c.Locals(middleware.SessionIDKey).(string)
	if !ok || sessionID == "" {
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","error":"invalid session"}`))
		c.Close()
		return
	}

	client := &feedClient{conn: c, writeTimeout: h.writeTimeout}
	sub := h.hub.Subscribe(sessionID)
	if h.metrics != nil {
		h.metrics.Subscribers.Inc()
	}
	log.Printf("계산기 피드 연결: session=%s", sessionID)

	var tracked *model.Peer
	writerDone := make(chan struct{})

	// 연결 해제 시 정리 (구독 해제는 모든 경로에서 보장)
	defer func() {
		sub.Close()
		// 핸들러 반환 후에는 conn을 쓰면 안 된다
		<-writerDone
		if h.metrics != nil {
			h.metrics.Subscribers.Dec()
		}
		if tracked != nil {
			h.leave(sessionID, *tracked)
		}
		c.Close()
		log.Printf("계산기 피드 연결 해제: session=%s", sessionID)
	}()

	// 피드 -> 클라이언트 쓰기 루프
	go func() {
		defer close(writerDone)
		for ev := range sub.C() {
			if err := client.send(ev); err != nil {
				log.Printf("피드 전송 실패: session=%s, err=%v", sessionID, err)
				return
			}
		}
	}()

	if err := client.send(feed.Event{Kind: feed.KindSubscribed, SessionID: sessionID}); err != nil {
		return
	}
	h.sendSync(client, sessionID)

	// 메시지 수신 루프
	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			break
		}

		var msg feed.ClientMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			client.send(feed.Event{Kind: feed.KindError, SessionID: sessionID, Error: "malformed message"})
			continue
		}

		switch msg.Type {
		case feed.ClientTrack:
			if msg.Peer == nil || msg.Peer.PeerID == "" {
				client.send(feed.Event{Kind: feed.KindError, SessionID: sessionID, Error: "peer_id is required"})
				continue
			}
			peer := *msg.Peer
			if peer.OnlineAt.IsZero() {
				peer.OnlineAt = time.Now().UTC()
			}
			if tracked != nil && tracked.PeerID != peer.PeerID {
				h.leave(sessionID, *tracked)
			}
			if h.join(sessionID, peer) {
				tracked = &peer
			}

		case feed.ClientPing:
			// Redis presence TTL 연장
			if tracked != nil {
				h.refresh(sessionID, *tracked)
			}
			client.send(feed.Event{Kind: feed.KindPong, SessionID: sessionID})
		}
	}
}

// sendSync 접속 직후 현재 스냅샷을 이 클라이언트에게만 전송
func (h *CalculatorWSHandler) sendSync(client *feedClient, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.writeTimeout)
	defer cancel()

	peers, err := h.registry.Snapshot(ctx, sessionID)
	if err != nil {
		log.Printf("presence 스냅샷 조회 실패: %v", err)
		return
	}
	client.send(feed.PresenceEvent(feed.KindPresenceSync, sessionID, nil, peers))
}

func (h *CalculatorWSHandler) join(sessionID string, peer model.Peer) bool {
	ctx, cancel := context.WithTimeout(context.Background(), h.writeTimeout)
	defer cancel()

	if err := h.registry.Track(ctx, sessionID, peer); err != nil {
		log.Printf("presence 등록 실패: session=%s, peer=%s, err=%v", sessionID, peer.PeerID, err)
		return false
	}
	h.broadcastPresence(ctx, feed.KindPresenceJoin, sessionID, peer)
	return true
}

func (h *CalculatorWSHandler) leave(sessionID string, peer model.Peer) {
	ctx, cancel := context.WithTimeout(context.Background(), h.writeTimeout)
	defer cancel()

	if err := h.registry.Untrack(ctx, sessionID, peer.PeerID); err != nil {
		log.Printf("presence 삭제 실패: session=%s, peer=%s, err=%v", sessionID, peer.PeerID, err)
	}
	h.broadcastPresence(ctx, feed.KindPresenceLeave, sessionID, peer)
}

// refresh TTL 연장. 이미 만료됐으면 다시 등록하고 join을 알린다.
func (h *CalculatorWSHandler) refresh(sessionID string, peer model.Peer) {
	ctx, cancel := context.WithTimeout(context.Background(), h.writeTimeout)
	err := h.registry.Heartbeat(ctx, sessionID, peer.PeerID)
	cancel()

	switch {
	case err == nil:
	case errors.Is(err, presence.ErrNotTracked):
		log.Printf("presence 만료 후 재등록: session=%s, peer=%s", sessionID, peer.PeerID)
		h.join(sessionID, peer)
	default:
		log.Printf("presence 갱신 실패: %v", err)
	}
}

// broadcastPresence 전체 스냅샷을 담아 발행 (받는 쪽은 스냅샷 크기로 다시 계산)
func (h *CalculatorWSHandler) broadcastPresence(ctx context.Context, kind feed.Kind, sessionID string, peer model.Peer) {
	peers, err := h.registry.Snapshot(ctx, sessionID)
	if err != nil {
		log.Printf("presence 스냅샷 조회 실패: %v", err)
		return
	}
	if h.metrics != nil {
		h.metrics.TrackedPeers.WithLabelValues(sessionID).Set(float64(len(peers)))
	}

	if err := h.publisher.Publish(ctx, feed.PresenceEvent(kind, sessionID, &peer, peers)); err != nil {
		log.Printf("presence 브로드캐스트 실패: %v", err)
		return
	}
	if h.metrics != nil {
		h.metrics.FeedEventsTotal.WithLabelValues(string(kind)).Inc()
	}
}
