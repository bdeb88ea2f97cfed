package handler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"realtime-calculator/internal/calculator"
	"realtime-calculator/internal/feed"
	"realtime-calculator/internal/metrics"
	"realtime-calculator/internal/middleware"
	"realtime-calculator/internal/model"
	"realtime-calculator/internal/store"
)

// CalculatorHandler 공유 계산기 상태 REST 핸들러 (StateStore 경계)
type CalculatorHandler struct {
	store     store.StateStore
	publisher feed.Publisher
	metrics   *metrics.Metrics
	timeout   time.Duration
	locks     *store.KeyedMutex
}

// NewCalculatorHandler CalculatorHandler 생성
func NewCalculatorHandler(st store.StateStore, publisher feed.Publisher, m *metrics.Metrics, timeout time.Duration) *CalculatorHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CalculatorHandler{store: st, publisher: publisher, metrics: m, timeout: timeout, locks: store.NewKeyedMutex()}
}

// GetState 세션 상태 조회
func (h *CalculatorHandler) GetState(c *fiber.Ctx) error {
	sessionID, err := sessionParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	state, err := h.store.Read(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "calculator state not found"})
		}
		log.Printf("[Calculator] Read failed for %s: %v", sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read calculator state"})
	}

	return c.JSON(state)
}

// PutState 전체 행 업서트 후 변경 알림 발행
func (h *CalculatorHandler) PutState(c *fiber.Ctx) error {
	sessionID, err := sessionParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var state model.CalculatorState
	if err := c.BodyParser(&state); err != nil {
		h.countUpsert("invalid")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if state.SessionID == "" {
		state.SessionID = sessionID
	}
	if state.SessionID != sessionID {
		h.countUpsert("invalid")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_id does not match path"})
	}
	if err := calculator.Validate(state); err != nil {
		h.countUpsert("invalid")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	// 조회-업서트-발행을 세션 단위로 묶어 알림 순서를 저장 순서와 맞춘다
	unlock := h.locks.Lock(sessionID)
	defer unlock()

	// INSERT / UPDATE 구분 (알림 종류 표시용)
	changeType := feed.ChangeUpdate
	if _, err := h.store.Read(ctx, sessionID); errors.Is(err, store.ErrNotFound) {
		changeType = feed.ChangeInsert
	}

	if err := h.store.Upsert(ctx, &state); err != nil {
		h.countUpsert("error")
		log.Printf("[Calculator] Upsert failed for %s: %v", sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save calculator state"})
	}
	h.countUpsert("ok")

	// 발신자 포함 모든 구독자에게 브로드캐스트
	record := state.Clone()
	ev := feed.ChangeEvent(feed.Notification{Type: changeType, SessionID: sessionID, Record: &record})
	if err := h.publisher.Publish(ctx, ev); err != nil {
		log.Printf("⚠️ [Calculator] Publish failed for %s: %v", sessionID, err)
	} else if h.metrics != nil {
		h.metrics.FeedEventsTotal.WithLabelValues(string(feed.KindChange)).Inc()
	}

	return c.JSON(state)
}

func (h *CalculatorHandler) countUpsert(result string) {
	if h.metrics != nil {
		h.metrics.UpsertsTotal.WithLabelValues(result).Inc()
	}
}

// sessionParam middleware.RequireSession이 검증한 세션 ID
func sessionParam(c *fiber.Ctx) (string, error) {
	sessionID, ok := middleware.SessionID(c)
	if !ok {
		return "", errors.New("session id is required")
	}
	return sessionID, nil
}
