package collab

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-calculator/internal/calculator"
	"realtime-calculator/internal/feed"
	"realtime-calculator/internal/model"
	"realtime-calculator/internal/store"
)

const session = "shared-calculator"

// recordingStore 업서트 기록 + 실패 주입
type recordingStore struct {
	*store.MemoryStore
	mu      sync.Mutex
	upserts []model.CalculatorState
	failErr error
	readErr error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: store.NewMemoryStore()}
}

func (s *recordingStore) Read(ctx context.Context, sessionID string) (*model.CalculatorState, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.MemoryStore.Read(ctx, sessionID)
}

func (s *recordingStore) Upsert(ctx context.Context, st *model.CalculatorState) error {
	s.mu.Lock()
	failErr := s.failErr
	s.upserts = append(s.upserts, st.Clone())
	s.mu.Unlock()
	if failErr != nil {
		return failErr
	}
	return s.MemoryStore.Upsert(ctx, st)
}

func (s *recordingStore) displays() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.upserts))
	for i, u := range s.upserts {
		out[i] = u.Display
	}
	return out
}

func update(display string) feed.Notification {
	st := model.DefaultCalculatorState(session)
	st.Display = display
	return feed.Notification{Type: feed.ChangeUpdate, SessionID: session, Record: &st}
}

func TestMachine_LoadMissingUsesDefaults(t *testing.T) {
	m := NewMachine(session, newRecordingStore())
	defer m.Close()

	got := m.Load(context.Background())
	assert.Equal(t, model.DefaultCalculatorState(session), got)
}

func TestMachine_LoadErrorUsesDefaults(t *testing.T) {
	st := newRecordingStore()
	st.readErr = errors.New("connection refused")
	m := NewMachine(session, st)
	defer m.Close()

	assert.Equal(t, model.DefaultCalculatorState(session), m.Load(context.Background()))
}

func TestMachine_LoadAdoptsStoredRow(t *testing.T) {
	st := newRecordingStore()
	prev := "10"
	op := model.OperationSubtract
	row := model.CalculatorState{SessionID: session, Display: "4", PreviousValue: &prev, Operation: &op}
	require.NoError(t, st.MemoryStore.Upsert(context.Background(), &row))

	m := NewMachine(session, st)
	defer m.Close()
	got := m.Load(context.Background())
	assert.True(t, row.Equal(got))

	m.Dispatch(calculator.Equals())
	assert.Equal(t, "6", m.State().Display)
}

func TestMachine_LoadRejectsInvalidRow(t *testing.T) {
	st := newRecordingStore()
	row := model.CalculatorState{SessionID: session, Display: "abc"}
	require.NoError(t, st.MemoryStore.Upsert(context.Background(), &row))

	m := NewMachine(session, st)
	defer m.Close()
	assert.Equal(t, "0", m.Load(context.Background()).Display)
}

func TestMachine_DispatchAppliesOptimisticallyAndPersistsInOrder(t *testing.T) {
	st := newRecordingStore()
	m := NewMachine(session, st)

	got := m.Dispatch(calculator.Digit("5"))
	assert.Equal(t, "5", got.Display)
	assert.Equal(t, "5", m.State().Display)

	m.Dispatch(calculator.Operator(model.OperationAdd))
	m.Dispatch(calculator.Digit("3"))
	m.Dispatch(calculator.Equals())
	m.Dispatch(calculator.Equals()) // no-op, 저장 안 함
	m.Close()

	assert.Equal(t, []string{"5", "5", "3", "8"}, st.displays())

	final, err := st.Read(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, "8", final.Display)
	assert.Nil(t, final.Operation)
	assert.Nil(t, final.PreviousValue)
}

func TestMachine_StampsUpdatedAt(t *testing.T) {
	fixed := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	st := newRecordingStore()
	m := NewMachine(session, st, WithClock(func() time.Time { return fixed }))
	m.Dispatch(calculator.Digit("1"))
	m.Close()

	require.Len(t, st.upserts, 1)
	assert.Equal(t, fixed, st.upserts[0].UpdatedAt)
}

func TestMachine_PersistFailureKeepsLocalState(t *testing.T) {
	st := newRecordingStore()
	st.failErr = errors.New("backend unavailable")

	var (
		mu   sync.Mutex
		errs []error
	)
	m := NewMachine(session, st, WithPersistErrorHandler(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}))

	m.Dispatch(calculator.Digit("9"))
	m.Close()

	assert.Equal(t, "9", m.State().Display)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrPersist)
	assert.ErrorContains(t, errs[0], "backend unavailable")

	var perr *PersistError
	require.True(t, errors.As(errs[0], &perr))
	assert.Equal(t, session, perr.SessionID)

	// 자동 재시도 없음
	assert.Len(t, st.upserts, 1)
}

func TestMachine_DispatchAfterCloseReportsError(t *testing.T) {
	var got error
	m := NewMachine(session, newRecordingStore(), WithPersistErrorHandler(func(err error) { got = err }))
	m.Close()
	m.Close()

	m.Dispatch(calculator.Digit("1"))
	assert.ErrorIs(t, got, ErrClosed)
	assert.Equal(t, "0", m.State().Display)
}

func TestMachine_RemoteNotificationOverwritesLocalEdit(t *testing.T) {
	m := NewMachine(session, newRecordingStore())
	defer m.Close()

	m.Dispatch(calculator.Digit("7"))
	require.Equal(t, "7", m.State().Display)

	// 원격 알림이 벽시계상 더 오래되었어도 전달 순서로 덮어쓴다
	n := update("42")
	n.Record.UpdatedAt = time.Now().Add(-time.Hour)
	assert.True(t, m.Reconcile(n))
	assert.Equal(t, "42", m.State().Display)
}

func TestMachine_ConvergesOnSameNotification(t *testing.T) {
	a := NewMachine(session, newRecordingStore())
	defer a.Close()
	b := NewMachine(session, newRecordingStore())
	defer b.Close()

	a.Dispatch(calculator.Digit("1"))
	a.Dispatch(calculator.Operator(model.OperationMultiply))
	b.Dispatch(calculator.Digit("9"))
	b.Dispatch(calculator.DecimalPoint())
	require.False(t, a.State().Equal(b.State()))

	prev := "3"
	op := model.OperationAdd
	n := update("2")
	n.Record.PreviousValue, n.Record.Operation = &prev, &op

	a.HandleEvent(feed.ChangeEvent(n))
	b.HandleEvent(feed.ChangeEvent(n))
	assert.Equal(t, a.State(), b.State())
}

func TestMachine_IgnoresForeignAndMalformedNotifications(t *testing.T) {
	m := NewMachine(session, newRecordingStore())
	defer m.Close()
	m.Dispatch(calculator.Digit("5"))

	other := update("1")
	other.SessionID = "another"
	other.Record.SessionID = "another"
	assert.False(t, m.Reconcile(other))

	bad := update("not-a-number")
	assert.False(t, m.Reconcile(bad))

	dangling := update("1")
	op := model.OperationDivide
	dangling.Record.Operation = &op
	assert.False(t, m.Reconcile(dangling))

	assert.False(t, m.Reconcile(feed.Notification{Type: feed.ChangeUpdate, SessionID: session}))
	assert.False(t, m.Reconcile(feed.Notification{Type: "DELETE", SessionID: session, Record: update("3").Record}))
	assert.False(t, m.HandleEvent(feed.PresenceEvent(feed.KindPresenceSync, session, nil, nil)))

	assert.Equal(t, "5", m.State().Display)
}

func TestMachine_SubscribedRereadsStore(t *testing.T) {
	st := newRecordingStore()
	m := NewMachine(session, st)
	defer m.Close()

	// 끊긴 동안 다른 클라이언트가 쓴 행
	missed := update("42").Record
	require.NoError(t, st.MemoryStore.Upsert(context.Background(), missed))
	m.Reconcile(update("7"))

	subscribed := feed.Event{Kind: feed.KindSubscribed, SessionID: session}
	assert.True(t, m.HandleEvent(subscribed))
	assert.Equal(t, "42", m.State().Display)

	// 조회 실패 시 로컬 상태 유지
	st.readErr = errors.New("connection refused")
	assert.False(t, m.HandleEvent(subscribed))
	assert.Equal(t, "42", m.State().Display)
	assert.Empty(t, st.upserts)
}

func TestMachine_SubscribedWithoutRowKeepsLocal(t *testing.T) {
	st := newRecordingStore()
	st.failErr = errors.New("offline")
	m := NewMachine(session, st)
	defer m.Close()
	m.Dispatch(calculator.Digit("5"))

	assert.False(t, m.Resync(context.Background()))
	assert.Equal(t, "5", m.State().Display)
}

func TestMachine_ReconcileDoesNotPersist(t *testing.T) {
	st := newRecordingStore()
	m := NewMachine(session, st)
	m.Reconcile(update("12"))
	m.Close()
	assert.Empty(t, st.upserts)
}

func TestMachine_OnChangeReceivesLocalAndRemote(t *testing.T) {
	m := NewMachine(session, newRecordingStore())
	defer m.Close()

	var seen []string
	m.OnChange(func(s model.CalculatorState) { seen = append(seen, s.Display) })

	m.Dispatch(calculator.Digit("4"))
	m.Reconcile(update("40"))
	m.Dispatch(calculator.Backspace())

	assert.Equal(t, []string{"4", "40", "4"}, seen)
}

func TestMachine_PersistedStateReadsBackEqual(t *testing.T) {
	shared := store.NewMemoryStore()
	a := NewMachine(session, shared)
	a.Dispatch(calculator.Digit("8"))
	a.Dispatch(calculator.Operator(model.OperationModulo))
	a.Dispatch(calculator.Digit("3"))
	a.Close()

	b := NewMachine(session, shared)
	defer b.Close()
	loaded := b.Load(context.Background())
	assert.Equal(t, a.State(), loaded)
}

func TestMachine_QueueFullReportsError(t *testing.T) {
	block := make(chan struct{})
	st := &blockingStore{release: block}

	var (
		mu   sync.Mutex
		errs []error
	)
	m := NewMachine(session, st, WithQueueSize(1), WithPersistErrorHandler(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}))

	for _, d := range []string{"1", "2", "3", "4"} {
		m.Dispatch(calculator.Digit(d))
	}
	close(block)
	m.Close()

	assert.Equal(t, "1234", m.State().Display)
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[0], ErrQueueFull)
}

// blockingStore release가 닫힐 때까지 업서트를 막는다
type blockingStore struct {
	release chan struct{}
}

func (s *blockingStore) Read(context.Context, string) (*model.CalculatorState, error) {
	return nil, store.ErrNotFound
}

func (s *blockingStore) Upsert(context.Context, *model.CalculatorState) error {
	<-s.release
	return nil
}
