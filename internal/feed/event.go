package feed

import (
	"realtime-calculator/internal/model"
)

// ChangeType 행 변경 종류
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
)

// Notification calculator_state 행 변경 알림
type Notification struct {
	Type      ChangeType             `json:"type"`
	SessionID string                 `json:"session_id"`
	Record    *model.CalculatorState `json:"record"`
}

// Kind 피드 이벤트 종류 (WebSocket 메시지 type 필드)
type Kind string

const (
	KindSubscribed    Kind = "subscribed"
	KindChange        Kind = "change"
	KindPresenceSync  Kind = "presence_sync"
	KindPresenceJoin  Kind = "presence_join"
	KindPresenceLeave Kind = "presence_leave"
	KindPong          Kind = "pong"
	KindError         Kind = "error"
)

// IsPresence presence 하위 채널 이벤트인지 확인
func (k Kind) IsPresence() bool {
	return k == KindPresenceSync || k == KindPresenceJoin || k == KindPresenceLeave
}

// PresenceState presence 이벤트 페이로드 (항상 전체 스냅샷 포함)
type PresenceState struct {
	Peer  *model.Peer           `json:"peer,omitempty"`
	Peers map[string]model.Peer `json:"peers"`
}

// Event 서버 -> 클라이언트 메시지
type Event struct {
	Kind      Kind           `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Change    *Notification  `json:"change,omitempty"`
	Presence  *PresenceState `json:"presence,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// ClientMessageType 클라이언트 -> 서버 메시지 종류
type ClientMessageType string

const (
	ClientTrack ClientMessageType = "track"
	ClientPing  ClientMessageType = "ping"
)

// ClientMessage 클라이언트 -> 서버 메시지
type ClientMessage struct {
	Type ClientMessageType `json:"type"`
	Peer *model.Peer       `json:"peer,omitempty"`
}

// ChangeEvent 변경 알림을 피드 이벤트로 감싼다
func ChangeEvent(n Notification) Event {
	return Event{Kind: KindChange, SessionID: n.SessionID, Change: &n}
}

// PresenceEvent presence 이벤트 생성
func PresenceEvent(kind Kind, sessionID string, peer *model.Peer, peers map[string]model.Peer) Event {
	if peers == nil {
		peers = map[string]model.Peer{}
	}
	return Event{
		Kind:      kind,
		SessionID: sessionID,
		Presence:  &PresenceState{Peer: peer, Peers: peers},
	}
}
