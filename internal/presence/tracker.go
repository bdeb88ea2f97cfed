package presence

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"realtime-calculator/internal/feed"
	"realtime-calculator/internal/model"
)

// Tracker 클라이언트 측 접속자 수 계산.
// 카운터를 증감하지 않고 매 이벤트의 스냅샷 크기로 다시 계산한다.
type Tracker struct {
	self      model.Peer
	count     int
	connected bool
	mu        sync.RWMutex
}

// NewTracker 세션마다 새 임시 피어 ID를 만든다 (저장하지 않음)
func NewTracker() *Tracker {
	return &Tracker{
		self: model.Peer{
			PeerID:   uuid.NewString(),
			OnlineAt: time.Now().UTC(),
		},
	}
}

// Announce 구독 성공 후 track 할 로컬 presence 페이로드
func (t *Tracker) Announce() model.Peer {
	return t.self
}

// Handle presence sync/join/leave 이벤트 처리. presence 이벤트가 아니면 false.
func (t *Tracker) Handle(ev feed.Event) (int, bool) {
	if !ev.Kind.IsPresence() || ev.Presence == nil {
		return t.Count(), false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.count = len(ev.Presence.Peers)
	if ev.Kind == feed.KindPresenceSync {
		t.connected = true
	}
	return t.count, true
}

// SetConnected 구독 상태 반영 (끊기면 Offline 표시)
func (t *Tracker) SetConnected(connected bool) {
	t.mu.Lock()
	t.connected = connected
	t.mu.Unlock()
}

// Count 현재 접속자 수
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// Connected 구독 여부
func (t *Tracker) Connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}
