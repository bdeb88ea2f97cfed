package server

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"realtime-calculator/internal/auth"
	"realtime-calculator/internal/config"
	"realtime-calculator/internal/feed"
	"realtime-calculator/internal/handler"
	"realtime-calculator/internal/metrics"
	"realtime-calculator/internal/middleware"
	"realtime-calculator/internal/presence"
	"realtime-calculator/internal/store"
)

// Deps 서버가 사용하는 외부 구성 요소
type Deps struct {
	Store     store.StateStore
	Hub       *feed.Hub
	Publisher feed.Publisher // nil이면 Hub 직접 사용
	Registry  presence.Registry
	DB        *gorm.DB      // nil 가능 (memory 드라이버)
	Redis     *redis.Client // nil 가능
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
}

// Server Fiber 서버 래퍼
type Server struct {
	app                 *fiber.App
	cfg                 *config.Config
	healthHandler       *handler.HealthHandler
	calculatorHandler   *handler.CalculatorHandler
	calculatorWSHandler *handler.CalculatorWSHandler
	jwtManager          *auth.JWTManager
	gatherer            prometheus.Gatherer
}

// New 새 서버 인스턴스 생성
func New(cfg *config.Config, deps Deps) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Realtime Calculator",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // WebSocket과 호환성 문제로 비활성화
		BodyLimit:             64 * 1024,
		DisableStartupMessage: true,
	})

	publisher := deps.Publisher
	if publisher == nil {
		publisher = deps.Hub
	}

	// Auth 초기화 (시크릿이 없으면 데모 모드)
	var jwtManager *auth.JWTManager
	if cfg.Auth.Enabled() {
		jwtManager = auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	} else {
		log.Println("ℹ️ JWT_SECRET not set, calculator routes are open (demo mode)")
	}

	return &Server{
		app:                 app,
		cfg:                 cfg,
		healthHandler:       handler.NewHealthHandler(deps.DB, deps.Redis),
		calculatorHandler:   handler.NewCalculatorHandler(deps.Store, publisher, deps.Metrics, cfg.Calculator.PersistTimeout),
		calculatorWSHandler: handler.NewCalculatorWSHandler(deps.Hub, publisher, deps.Registry, deps.Metrics, cfg.WebSocket.WriteTimeout),
		jwtManager:          jwtManager,
		gatherer:            deps.Gatherer,
	}
}

// App 내부 Fiber 앱 (테스트용)
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, PUT, OPTIONS",
		AllowCredentials: false,
	}))
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	// 헬스체크 엔드포인트
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	if s.cfg.Server.Metrics && s.gatherer != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	// Rate Limiter 설정 (쓰기 엔드포인트용)
	writeLimiter := limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() // IP 기반 제한
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	// Calculator 라우트 그룹
	calculatorGroup := s.app.Group("/api/calculator", auth.AuthMiddleware(s.jwtManager))
	calculatorGroup.Get("/:sessionId", middleware.RequireSession(), s.calculatorHandler.GetState)
	calculatorGroup.Put("/:sessionId", middleware.RequireSession(), writeLimiter, s.calculatorHandler.PutState)

	// WebSocket 업그레이드 체크 미들웨어
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket 계산기 피드 엔드포인트
	s.app.Get("/ws/calculator/:sessionId", auth.AuthMiddleware(s.jwtManager), middleware.RequireSession(), websocket.New(s.calculatorWSHandler.HandleWebSocket, websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))
}

// Start 서버 시작 (Graceful Shutdown 지원)
func (s *Server) Start() error {
	// Graceful Shutdown 설정
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("🛑 Shutting down server...")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Fatalf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 Realtime Calculator starting on %s", s.cfg.Server.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost%s/ws/calculator/%s", s.cfg.Server.Port, s.cfg.Calculator.DefaultSessionID)

	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown 서버 종료
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
