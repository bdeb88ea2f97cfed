package middleware

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SessionIDKey 검증된 세션 ID가 저장되는 Locals 키
const SessionIDKey = "sessionId"

// MaxSessionIDLength calculator_state.session_id 컬럼 길이
const MaxSessionIDLength = 100

// RequireSession :sessionId 경로 파라미터 검증 후 컨텍스트에 저장
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 라우팅은 원본 경로 기준이라 파라미터는 이스케이프된 상태로 들어온다
		sessionID, err := url.PathUnescape(c.Params("sessionId"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "session id is not a valid path segment",
			})
		}
		sessionID = strings.Clone(sessionID)
		if sessionID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "session id is required",
			})
		}
		if len(sessionID) > MaxSessionIDLength {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "session id is too long",
			})
		}

		// 세션 ID를 컨텍스트에 저장
		c.Locals(SessionIDKey, sessionID)
		return c.Next()
	}
}

// SessionID RequireSession이 저장한 세션 ID
func SessionID(c *fiber.Ctx) (string, bool) {
	sessionID, ok := c.Locals(SessionIDKey).(string)
	return sessionID, ok && sessionID != ""
}
