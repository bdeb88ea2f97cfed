// Package feed delivers calculator_state change notifications and presence
// events to every subscriber of a session.
package feed

import (
	"context"
	"sync"
)

// Publisher 피드 이벤트 발행자
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Hub 세션별 구독자 관리 (프로세스 내)
type Hub struct {
	sessions   map[string]map[*Subscription]struct{}
	mu         sync.RWMutex
	bufferSize int
	onDrop     func(sessionID string)
}

// Subscription 하나의 세션 구독. Close로 반드시 해제한다.
type Subscription struct {
	SessionID string
	hub       *Hub
	ch        chan Event
	once      sync.Once
}

// HubOption Hub 옵션
type HubOption func(*Hub)

// WithBufferSize 구독자별 버퍼 크기
func WithBufferSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

// WithDropHandler 느린 구독자에게 이벤트를 버렸을 때 호출
func WithDropHandler(fn func(sessionID string)) HubOption {
	return func(h *Hub) { h.onDrop = fn }
}

// NewHub Hub 생성
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		sessions:   make(map[string]map[*Subscription]struct{}),
		bufferSize: 64,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe 세션 구독 시작
func (h *Hub) Subscribe(sessionID string) *Subscription {
	sub := &Subscription{
		SessionID: sessionID,
		hub:       h,
		ch:        make(chan Event, h.bufferSize),
	}

	h.mu.Lock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*Subscription]struct{})
	}
	h.sessions[sessionID][sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Publish 로컬 구독자에게 전달 (Publisher 구현)
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.Deliver(ev)
	return nil
}

// Deliver 로컬 구독자에게 전달하고 전달된 수를 반환한다.
// 버퍼가 찬 구독자는 건너뛴다 (쓰기 쪽을 막지 않음).
func (h *Hub) Deliver(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.sessions[ev.SessionID] {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			if h.onDrop != nil {
				h.onDrop(ev.SessionID)
			}
		}
	}
	return delivered
}

// SubscriberCount 세션 구독자 수
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// C 이벤트 수신 채널 (Close 후 닫힘)
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close 구독 해제 (여러 번 호출해도 안전)
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		delete(h.sessions[s.SessionID], s)
		if len(h.sessions[s.SessionID]) == 0 {
			delete(h.sessions, s.SessionID)
		}
		// Deliver는 RLock 안에서만 보내므로 여기서 닫아도 안전
		close(s.ch)
		h.mu.Unlock()
	})
}
