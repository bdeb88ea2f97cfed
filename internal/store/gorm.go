package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"realtime-calculator/internal/model"
)

// GormStore calculator_state 테이블 기반 저장소
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore GormStore 생성
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// Read 단건 조회
func (s *GormStore) Read(ctx context.Context, sessionID string) (*model.CalculatorState, error) {
	var state model.CalculatorState
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read calculator state: %w", err)
	}
	return &state, nil
}

// Upsert INSERT ... ON CONFLICT (session_id) DO UPDATE
func (s *GormStore) Upsert(ctx context.Context, state *model.CalculatorState) error {
	if state == nil || state.SessionID == "" {
		return ErrInvalidState
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)
	}

	// 전체 행 교체 (델타 아님)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display", "previous_value", "operation", "waiting_for_operand", "updated_at",
		}),
	}).Create(state).Error
	if err != nil {
		return fmt.Errorf("failed to upsert calculator state: %w", err)
	}
	return nil
}
