package collab

import (
	"errors"
	"fmt"
)

var (
	ErrPersist   = errors.New("failed to sync calculator state")
	ErrQueueFull = errors.New("persist queue is full")
	ErrClosed    = errors.New("machine is closed")
)

// PersistError 업서트 실패 (로컬 상태는 롤백하지 않음)
type PersistError struct {
	SessionID string
	Display   string
	Err       error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%v (session=%s, display=%s): %v", ErrPersist, e.SessionID, e.Display, e.Err)
}

func (e *PersistError) Unwrap() []error {
	return []error{ErrPersist, e.Err}
}
