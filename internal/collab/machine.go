// Package collab keeps one in-memory calculator state convergent with the
// shared row. Local input is applied optimistically and persisted in the
// background; feed notifications overwrite the local copy in delivery order.
package collab

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"realtime-calculator/internal/calculator"
	"realtime-calculator/internal/feed"
	"realtime-calculator/internal/model"
	"realtime-calculator/internal/store"
)

const (
	defaultPersistTimeout = 5 * time.Second
	defaultQueueSize      = 256
)

// Machine 공유 계산기 상태 머신
type Machine struct {
	sessionID      string
	store          store.StateStore
	persistTimeout time.Duration
	onPersistError func(error)
	now            func() time.Time

	state     model.CalculatorState
	listeners []func(model.CalculatorState)
	closed    bool
	mu        sync.RWMutex

	queue chan model.CalculatorState
	done  chan struct{}
}

// Option Machine 옵션
type Option func(*Machine)

// WithPersistTimeout 업서트 1회 타임아웃
func WithPersistTimeout(d time.Duration) Option {
	return func(m *Machine) { m.persistTimeout = d }
}

// WithPersistErrorHandler 업서트 실패 알림 (토스트 표시용)
func WithPersistErrorHandler(fn func(error)) Option {
	return func(m *Machine) { m.onPersistError = fn }
}

// WithQueueSize 대기 가능한 업서트 수
func WithQueueSize(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.queue = make(chan model.CalculatorState, n)
		}
	}
}

// WithClock 테스트용 시계
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine 세션 ID를 명시적으로 받아 생성한다
func NewMachine(sessionID string, st store.StateStore, opts ...Option) *Machine {
	m := &Machine{
		sessionID:      sessionID,
		store:          st,
		persistTimeout: defaultPersistTimeout,
		now:            time.Now,
		state:          model.DefaultCalculatorState(sessionID),
		queue:          make(chan model.CalculatorState, defaultQueueSize),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.persistLoop()
	return m
}

// SessionID 문서 키
func (m *Machine) SessionID() string {
	return m.sessionID
}

// Load 최초 1회 조회. 없거나 실패하면 기본 상태로 시작한다 (사용자에게 노출하지 않음).
func (m *Machine) Load(ctx context.Context) model.CalculatorState {
	next := model.DefaultCalculatorState(m.sessionID)

	row, err := m.store.Read(ctx, m.sessionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Printf("[Calculator] No state for %s, starting new session", m.sessionID)
	case err != nil:
		log.Printf("[Calculator] Initial load failed for %s: %v", m.sessionID, err)
	default:
		if verr := calculator.Validate(*row); verr != nil {
			log.Printf("[Calculator] Stored state for %s is invalid, using defaults: %v", m.sessionID, verr)
		} else {
			next = row.Clone()
		}
	}

	m.replace(next)
	return next
}

// Dispatch 사용자 입력을 즉시 적용하고 업서트를 예약한다.
// no-op 입력은 저장하지 않는다.
func (m *Machine) Dispatch(ev calculator.Event) model.CalculatorState {
	m.mu.Lock()
	if m.closed {
		current := m.state.Clone()
		m.mu.Unlock()
		m.reportPersistError(current, ErrClosed)
		return current
	}

	next, changed := calculator.Apply(m.state, ev)
	if !changed {
		current := m.state.Clone()
		m.mu.Unlock()
		return current
	}
	next.UpdatedAt = m.now().UTC()
	m.state = next
	snapshot := next.Clone()

	var queueErr error
	select {
	case m.queue <- snapshot.Clone():
	default:
		queueErr = ErrQueueFull
	}
	listeners := m.listeners
	m.mu.Unlock()

	if queueErr != nil {
		m.reportPersistError(snapshot, queueErr)
	}
	notify(listeners, snapshot)
	return snapshot
}

// Reconcile 피드 알림으로 로컬 상태를 무조건 덮어쓴다 (전달 순서 기준 last-write-wins).
// 다른 세션이나 형식이 잘못된 알림은 무시하고 false를 반환한다.
func (m *Machine) Reconcile(n feed.Notification) bool {
	if n.Type != feed.ChangeInsert && n.Type != feed.ChangeUpdate {
		return false
	}
	if n.SessionID != m.sessionID || n.Record == nil || n.Record.SessionID != m.sessionID {
		return false
	}
	if err := calculator.Validate(*n.Record); err != nil {
		log.Printf("[Calculator] Ignoring malformed notification for %s: %v", m.sessionID, err)
		return false
	}

	m.replace(n.Record.Clone())
	return true
}

// Resync 저장된 행을 다시 읽어 덮어쓴다. 행이 없거나 조회에 실패하면 로컬 상태를 유지한다.
func (m *Machine) Resync(ctx context.Context) bool {
	row, err := m.store.Read(ctx, m.sessionID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[Calculator] Resync failed for %s: %v", m.sessionID, err)
		}
		return false
	}
	if err := calculator.Validate(*row); err != nil {
		log.Printf("[Calculator] Stored state for %s is invalid, keeping local: %v", m.sessionID, err)
		return false
	}

	m.replace(row.Clone())
	return true
}

// HandleEvent 피드 이벤트 반영. 구독(재연결 포함) 직후에는 끊긴 동안 놓친 변경을 저장소에서 다시 읽는다.
func (m *Machine) HandleEvent(ev feed.Event) bool {
	switch ev.Kind {
	case feed.KindSubscribed:
		ctx, cancel := context.WithTimeout(context.Background(), m.persistTimeout)
		defer cancel()
		return m.Resync(ctx)
	case feed.KindChange:
		if ev.Change == nil {
			return false
		}
		return m.Reconcile(*ev.Change)
	}
	return false
}

// State 현재 상태 복사본
func (m *Machine) State() model.CalculatorState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// OnChange 상태 변경 콜백 등록 (View 렌더링용)
func (m *Machine) OnChange(fn func(model.CalculatorState)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Close 더 이상 입력을 받지 않고 남은 업서트를 마칠 때까지 기다린다
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.done
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()
	<-m.done
}

func (m *Machine) replace(next model.CalculatorState) {
	m.mu.Lock()
	m.state = next
	listeners := m.listeners
	m.mu.Unlock()
	notify(listeners, next.Clone())
}

// persistLoop 로컬 쓰기 순서대로 한 번에 하나씩 업서트. 재시도하지 않는다.
func (m *Machine) persistLoop() {
	defer close(m.done)
	for st := range m.queue {
		ctx, cancel := context.WithTimeout(context.Background(), m.persistTimeout)
		err := m.store.Upsert(ctx, &st)
		cancel()
		if err != nil {
			m.reportPersistError(st, err)
		}
	}
}

func (m *Machine) reportPersistError(st model.CalculatorState, err error) {
	perr := &PersistError{SessionID: st.SessionID, Display: st.Display, Err: err}
	log.Printf("⚠️ %v", perr)
	if m.onPersistError != nil {
		m.onPersistError(perr)
	}
}

func notify(listeners []func(model.CalculatorState), st model.CalculatorState) {
	for _, fn := range listeners {
		fn(st)
	}
}
