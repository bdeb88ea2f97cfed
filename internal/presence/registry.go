// Package presence tracks which ephemeral peers are connected to a calculator
// session. The server keeps a Registry; clients derive their peer count with a
// Tracker from the snapshots the feed delivers.
package presence

import (
	"context"
	"errors"
	"sync"

	"realtime-calculator/internal/model"
)

// ErrNotTracked Heartbeat 대상 피어가 없음 (만료 또는 미등록)
var ErrNotTracked = errors.New("peer is not tracked")

// Registry 세션별 접속 피어 저장소 (서버 측)
type Registry interface {
	Track(ctx context.Context, sessionID string, peer model.Peer) error
	Heartbeat(ctx context.Context, sessionID, peerID string) error
	Untrack(ctx context.Context, sessionID, peerID string) error
	Snapshot(ctx context.Context, sessionID string) (map[string]model.Peer, error)
}

// MemoryRegistry 단일 인스턴스용 Registry
type MemoryRegistry struct {
	sessions map[string]map[string]model.Peer
	mu       sync.RWMutex
}

// NewMemoryRegistry 생성자
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{sessions: make(map[string]map[string]model.Peer)}
}

func (r *MemoryRegistry) Track(_ context.Context, sessionID string, peer model.Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[sessionID] == nil {
		r.sessions[sessionID] = make(map[string]model.Peer)
	}
	r.sessions[sessionID][peer.PeerID] = peer
	return nil
}

// Heartbeat 메모리 구현은 만료가 없어 등록 여부만 확인한다
func (r *MemoryRegistry) Heartbeat(_ context.Context, sessionID, peerID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.sessions[sessionID][peerID]; !ok {
		return ErrNotTracked
	}
	return nil
}

func (r *MemoryRegistry) Untrack(_ context.Context, sessionID, peerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions[sessionID], peerID)
	if len(r.sessions[sessionID]) == 0 {
		delete(r.sessions, sessionID)
	}
	return nil
}

func (r *MemoryRegistry) Snapshot(_ context.Context, sessionID string) (map[string]model.Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]model.Peer, len(r.sessions[sessionID]))
	for id, p := range r.sessions[sessionID] {
		out[id] = p
	}
	return out, nil
}
