package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 애플리케이션 전체 설정
type Config struct {
	Server     ServerConfig
	WebSocket  WebSocketConfig
	CORS       CORSConfig
	Auth       AuthConfig
	Redis      RedisConfig
	Database   DatabaseConfig
	Calculator CalculatorConfig
}

// RedisConfig Redis 설정 (Addr가 비어 있으면 사용 안 함)
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled Redis 사용 여부
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// AuthConfig 인증 설정 (JWTSecret이 비어 있으면 데모 모드)
type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

// Enabled JWT 검증 사용 여부
func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	ServerID     string
	Metrics      bool
}

// WebSocketConfig WebSocket 관련 설정
type WebSocketConfig struct {
	ReadBufferSize    int
	WriteBufferSize   int
	WriteTimeout      time.Duration
	SubscriberBuffer  int
	PresenceTTL       time.Duration
	HeartbeatInterval time.Duration
}

// CORSConfig CORS 설정
type CORSConfig struct {
	AllowOrigins string
	AllowHeaders string
}

// DatabaseConfig 데이터베이스 설정
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	TimeZone string
}

// CalculatorConfig 공유 계산기 설정
type CalculatorConfig struct {
	DefaultSessionID string
	StoreDriver      string // postgres | memory
	CacheTTL         time.Duration
	PersistTimeout   time.Duration
}

// Load 환경 변수에서 설정 로드
func Load() *Config {
	// .env 파일 로드 (없어도 에러 무시)
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️ No .env file found, using environment variables")
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "change-this-secret-in-production" {
		log.Fatal("🚨 CRITICAL: JWT_SECRET must be changed from default value in production!")
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
			ServerID:     getEnv("SERVER_ID", ""),
			Metrics:      getBool("METRICS_ENABLED", true),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:    getInt("WS_READ_BUFFER_SIZE", 4096),
			WriteBufferSize:   getInt("WS_WRITE_BUFFER_SIZE", 4096),
			WriteTimeout:      getDuration("WS_WRITE_TIMEOUT", 5*time.Second),
			SubscriberBuffer:  getInt("WS_SUBSCRIBER_BUFFER", 64),
			PresenceTTL:       getDuration("PRESENCE_TTL", 60*time.Second),
			HeartbeatInterval: getDuration("PRESENCE_HEARTBEAT", 30*time.Second),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
			AllowHeaders: getEnv("CORS_ALLOW_HEADERS", "Origin, Content-Type, Accept, Authorization"),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getDuration("ACCESS_TOKEN_EXPIRY", 24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "postgres"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			TimeZone: getEnv("DB_TIMEZONE", "UTC"),
		},
		Calculator: CalculatorConfig{
			DefaultSessionID: getEnv("CALCULATOR_SESSION_ID", "shared-calculator"),
			StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
			CacheTTL:         getDuration("CALCULATOR_CACHE_TTL", 10*time.Minute),
			PersistTimeout:   getDuration("CALCULATOR_PERSIST_TIMEOUT", 5*time.Second),
		},
	}
}

// getEnv 환경 변수 조회 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt 정수형 환경 변수 조회
func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getBool 불리언 환경 변수 조회
func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getDuration 시간 환경 변수 조회
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		// 숫자만 있으면 초로 간주
		if !strings.ContainsAny(value, "smh") {
			if secs, err := strconv.Atoi(value); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
