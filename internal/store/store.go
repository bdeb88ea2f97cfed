// Package store persists the single calculator_state row of each session.
package store

import (
	"context"
	"errors"

	"realtime-calculator/internal/model"
)

var (
	ErrNotFound     = errors.New("calculator state not found")
	ErrInvalidState = errors.New("invalid calculator state")
)

// StateStore 세션 키 단위 전체 행 읽기/업서트
type StateStore interface {
	// Read 세션 상태 조회 (없으면 ErrNotFound)
	Read(ctx context.Context, sessionID string) (*model.CalculatorState, error)
	// Upsert 전체 행 교체 (충돌 기준: session_id)
	Upsert(ctx context.Context, state *model.CalculatorState) error
}
