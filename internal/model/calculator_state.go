package model

import (
	"time"
)

// CalculatorState 공유 계산기 상태 (세션당 1행)
type CalculatorState struct {
	SessionID         string     `gorm:"primaryKey;type:varchar(100)" json:"session_id"`
	Display           string     `gorm:"type:varchar(64);not null" json:"display"`
	PreviousValue     *string    `gorm:"type:varchar(64)" json:"previous_value"`
	Operation         *Operation `gorm:"type:varchar(8)" json:"operation"`
	WaitingForOperand bool       `gorm:"not null" json:"waiting_for_operand"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (CalculatorState) TableName() string {
	return "calculator_state"
}

// DefaultCalculatorState 기본 상태 반환
func DefaultCalculatorState(sessionID string) CalculatorState {
	return CalculatorState{
		SessionID: sessionID,
		Display:   DefaultDisplay,
	}
}

// Clone 포인터 필드까지 복사
func (s CalculatorState) Clone() CalculatorState {
	out := s
	if s.PreviousValue != nil {
		v := *s.PreviousValue
		out.PreviousValue = &v
	}
	if s.Operation != nil {
		op := *s.Operation
		out.Operation = &op
	}
	return out
}

// Equal UpdatedAt을 제외한 필드 비교
func (s CalculatorState) Equal(other CalculatorState) bool {
	return s.SessionID == other.SessionID &&
		s.Display == other.Display &&
		s.WaitingForOperand == other.WaitingForOperand &&
		equalPtr(s.PreviousValue, other.PreviousValue) &&
		equalPtr(s.Operation, other.Operation)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
