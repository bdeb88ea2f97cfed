// Package calculator implements the pure transition function of the shared
// calculator. Apply never touches storage or the network; callers persist
// the returned state themselves.
package calculator

import (
	"fmt"
	"math"
	"strings"

	"realtime-calculator/internal/model"
)

// EventType 사용자 입력 종류
type EventType string

const (
	EventDigit        EventType = "digit"
	EventDecimalPoint EventType = "decimal_point"
	EventOperator     EventType = "operator"
	EventEquals       EventType = "equals"
	EventBackspace    EventType = "backspace"
	EventToggleSign   EventType = "toggle_sign"
	EventClear        EventType = "clear"
)

// Event 상태 전이 입력
type Event struct {
	Type     EventType
	Digit    string
	Operator model.Operation
}

func Digit(d string) Event { return Event{Type: EventDigit, Digit: d} }
func DecimalPoint() Event { return Event{Type: EventDecimalPoint} }
func Operator(op model.Operation) Event { return Event{Type: EventOperator, Operator: op} }
func Equals() Event { return Event{Type: EventEquals} }
func Backspace() Event { return Event{Type: EventBackspace} }
func ToggleSign() Event { return Event{Type: EventToggleSign} }
func Clear() Event { return Event{Type: EventClear} }

func (e Event) String() string {
	switch e.Type {
	case EventDigit:
		return "digit(" + e.Digit + ")"
	case EventOperator:
		return "operator(" + e.Operator.String() + ")"
	}
	return string(e.Type)
}

// Apply 현재 상태와 입력으로 다음 상태를 계산한다.
// 두 번째 반환값이 false면 no-op이며 저장할 필요가 없다.
func Apply(s model.CalculatorState, e Event) (model.CalculatorState, bool) {
	next := s.Clone()

	switch e.Type {
	case EventDigit:
		if !isDigit(e.Digit) {
			return s, false
		}
		if next.WaitingForOperand || next.Display == model.DefaultDisplay || IsNonFinite(next.Display) {
			next.Display = e.Digit
		} else {
			next.Display += e.Digit
		}
		next.WaitingForOperand = false

	case EventDecimalPoint:
		switch {
		case next.WaitingForOperand || IsNonFinite(next.Display):
			next.Display = "0."
			next.WaitingForOperand = false
		case strings.ContainsAny(next.Display, ".e"):
			return s, false
		default:
			next.Display += "."
		}

	case EventOperator:
		if !e.Operator.Valid() {
			return s, false
		}
		switch {
		case next.PreviousValue == nil:
			prev := normalize(next.Display)
			next.PreviousValue = &prev
		case next.Operation != nil:
			result := apply(*next.Operation, *next.PreviousValue, next.Display)
			next.Display = result
			next.PreviousValue = &result
		}
		op := e.Operator
		next.Operation = &op
		next.WaitingForOperand = true

	case EventEquals:
		if next.PreviousValue == nil || next.Operation == nil {
			return s, false
		}
		next.Display = apply(*next.Operation, *next.PreviousValue, next.Display)
		next.PreviousValue = nil
		next.Operation = nil
		next.WaitingForOperand = true

	case EventBackspace:
		if len(next.Display) > 1 {
			next.Display = next.Display[:len(next.Display)-1]
		} else {
			next.Display = model.DefaultDisplay
		}
		// "-5" -> "-", "Infinity" -> "Infinit"
		if !ValidDisplay(next.Display) {
			next.Display = model.DefaultDisplay
		}

	case EventToggleSign:
		switch {
		case next.Display == DisplayNaN:
			return s, false
		case strings.HasPrefix(next.Display, "-"):
			next.Display = next.Display[1:]
		default:
			next.Display = "-" + next.Display
		}

	case EventClear:
		return model.DefaultCalculatorState(s.SessionID), true

	default:
		return s, false
	}

	return next, true
}

// Compute 연산을 수행한다. 결과가 비유한이면 *ArithmeticError를 함께 반환한다.
func Compute(op model.Operation, left, right string) (string, error) {
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOperation, op)
	}

	a, b := ParseNumber(left), ParseNumber(right)
	var v float64
	switch op {
	case model.OperationAdd:
		v = a + b
	case model.OperationSubtract:
		v = a - b
	case model.OperationMultiply:
		v = a * b
	case model.OperationDivide:
		v = a / b
	case model.OperationModulo:
		v = math.Mod(a, b)
	}

	result := FormatNumber(v)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return result, &ArithmeticError{Op: op, Left: left, Right: right, Result: result}
	}
	return result, nil
}

// apply 비유한 결과도 문자열 그대로 표시한다 (IEEE 의미 유지)
func apply(op model.Operation, left, right string) string {
	result, err := Compute(op, left, right)
	if err != nil && result == "" {
		return right
	}
	return result
}

// Validate 데이터 모델 불변식 검사
func Validate(s model.CalculatorState) error {
	if s.SessionID == "" {
		return ErrMissingSession
	}
	if !ValidDisplay(s.Display) {
		return fmt.Errorf("%w: %q", ErrInvalidDisplay, s.Display)
	}
	if s.Operation != nil {
		if !s.Operation.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidOperation, *s.Operation)
		}
		if s.PreviousValue == nil {
			return ErrDanglingOperator
		}
	}
	if s.PreviousValue != nil && !ValidDisplay(*s.PreviousValue) {
		return fmt.Errorf("%w: previous value %q", ErrInvalidDisplay, *s.PreviousValue)
	}
	return nil
}

func isDigit(d string) bool {
	return len(d) == 1 && d[0] >= '0' && d[0] <= '9'
}
