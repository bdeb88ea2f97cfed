package store

import (
	"context"
	"sync"
	"time"

	"realtime-calculator/internal/model"
)

// MemoryStore 프로세스 내 저장소 (STORE_DRIVER=memory, 테스트용)
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]model.CalculatorState
}

// NewMemoryStore MemoryStore 생성
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]model.CalculatorState)}
}

func (s *MemoryStore) Read(ctx context.Context, sessionID string) (*model.CalculatorState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := row.Clone()
	return &out, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, state *model.CalculatorState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state == nil || state.SessionID == "" {
		return ErrInvalidState
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	s.rows[state.SessionID] = state.Clone()
	s.mu.Unlock()
	return nil
}
