package model

import (
	"database/sql/driver"
	"fmt"
)

// Operation 계산기 연산자
type Operation string

const (
	OperationAdd      Operation = "+"
	OperationSubtract Operation = "-"
	OperationMultiply Operation = "×"
	OperationDivide   Operation = "÷"
	OperationModulo   Operation = "%"
)

// String 메서드
func (o Operation) String() string {
	return string(o)
}

// Valid 지원하는 연산자인지 확인
func (o Operation) Valid() bool {
	switch o {
	case OperationAdd, OperationSubtract, OperationMultiply, OperationDivide, OperationModulo:
		return true
	}
	return false
}

// Value DB 저장용
func (o Operation) Value() (driver.Value, error) {
	return string(o), nil
}

// Scan DB 조회용
func (o *Operation) Scan(src any) error {
	switch v := src.(type) {
	case string:
		*o = Operation(v)
	case []byte:
		*o = Operation(v)
	default:
		return fmt.Errorf("cannot scan %T into Operation", src)
	}
	return nil
}

// ParseOperation 키보드 입력 등 별칭을 연산자로 변환 (* -> ×, / -> ÷)
func ParseOperation(s string) (Operation, bool) {
	switch s {
	case "*", "x", "X":
		return OperationMultiply, true
	case "/":
		return OperationDivide, true
	}
	op := Operation(s)
	return op, op.Valid()
}

// DefaultDisplay 초기 표시값
const DefaultDisplay = "0"
