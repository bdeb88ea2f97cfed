package model

import "time"

// Peer 계산기 채널에 접속한 임시 피어 (저장되지 않음)
type Peer struct {
	PeerID   string    `json:"peer_id"`
	OnlineAt time.Time `json:"online_at"`
}
