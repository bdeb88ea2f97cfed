// Package view renders the shared calculator in the terminal with bubbletea.
//
// The model never computes anything itself. Key presses become calculator
// events handed to a Dispatcher, and every displayed value comes from the
// state snapshots it is sent.
package view

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"realtime-calculator/internal/calculator"
	"realtime-calculator/internal/model"
)

// ToastDuration 저장 실패 알림 표시 시간
const ToastDuration = 4 * time.Second

// Dispatcher 입력 이벤트를 받는 상태 머신
type Dispatcher interface {
	Dispatch(ev calculator.Event) model.CalculatorState
	State() model.CalculatorState
}

// StateMsg 상태 머신 변경 (로컬 입력 또는 원격 알림)
type StateMsg struct {
	State model.CalculatorState
}

// PresenceMsg 접속자 수 / 구독 상태 변경
type PresenceMsg struct {
	Count     int
	Connected bool
}

// PersistErrorMsg 업서트 실패 (롤백 없이 알림만)
type PersistErrorMsg struct {
	Err error
}

type toastExpiredMsg struct {
	id int
}

// Model 계산기 화면
type Model struct {
	machine   Dispatcher
	state     model.CalculatorState
	peers     int
	connected bool
	toast     string
	toastID   int
}

// New 현재 상태로 화면 모델 생성
func New(machine Dispatcher) Model {
	return Model{
		machine: machine,
		state:   machine.State(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		m.state = msg.State

	case PresenceMsg:
		m.peers = msg.Count
		m.connected = msg.Connected

	case PersistErrorMsg:
		m.toastID++
		m.toast = "Connection Error: Failed to sync calculator state"
		id := m.toastID
		return m, tea.Tick(ToastDuration, func(time.Time) tea.Msg {
			return toastExpiredMsg{id: id}
		})

	case toastExpiredMsg:
		// 새 알림이 떴으면 유지
		if msg.id == m.toastID {
			m.toast = ""
		}

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		if ev, ok := keyEvent(msg); ok {
			m.state = m.machine.Dispatch(ev)
		}
	}
	return m, nil
}

// keyEvent 키 입력을 계산기 이벤트로 변환
func keyEvent(msg tea.KeyMsg) (calculator.Event, bool) {
	switch msg.Type {
	case tea.KeyEnter:
		return calculator.Equals(), true
	case tea.KeyBackspace, tea.KeyDelete:
		return calculator.Backspace(), true
	case tea.KeyEsc:
		return calculator.Clear(), true
	case tea.KeyRunes:
	default:
		return calculator.Event{}, false
	}

	key := msg.String()
	switch {
	case len(key) == 1 && key[0] >= '0' && key[0] <= '9':
		return calculator.Digit(key), true
	case key == ".":
		return calculator.DecimalPoint(), true
	case key == "=":
		return calculator.Equals(), true
	case key == "n" || key == "_":
		return calculator.ToggleSign(), true
	case key == "c" || key == "C":
		return calculator.Clear(), true
	}
	if op, ok := model.ParseOperation(key); ok {
		return calculator.Operator(op), true
	}
	return calculator.Event{}, false
}

// State 화면에 표시 중인 상태
func (m Model) State() model.CalculatorState {
	return m.state
}

// Toast 현재 알림 문구 (없으면 빈 문자열)
func (m Model) Toast() string {
	return m.toast
}
