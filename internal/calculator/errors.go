package calculator

import (
	"errors"
	"fmt"

	"realtime-calculator/internal/model"
)

var (
	ErrNonFinite        = errors.New("result is not finite")
	ErrInvalidDisplay   = errors.New("display is not a valid numeral")
	ErrInvalidOperation = errors.New("unsupported operation")
	ErrDanglingOperator = errors.New("operation set without previous value")
	ErrMissingSession   = errors.New("session id is required")
)

// ArithmeticError 0으로 나누기 등 비유한 결과
type ArithmeticError struct {
	Op     model.Operation
	Left   string
	Right  string
	Result string
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("%s %s %s = %s: %v", e.Left, e.Op, e.Right, e.Result, ErrNonFinite)
}

func (e *ArithmeticError) Unwrap() error {
	return ErrNonFinite
}
