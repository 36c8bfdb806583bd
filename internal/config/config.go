package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnectTimeout  time.Duration

	// Session token
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration

	// Social accounts
	SocialAccountDefaultTTL time.Duration

	// Instagram
	InstagramClientID     string
	InstagramClientSecret string
	InstagramRedirectURL  string
	InstagramScope        string
	InstagramAuthURL      string
	InstagramTokenURL     string
	InstagramGraphURL     string
	ExternalHTTPTimeout   time.Duration

	// Cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
	CacheMaxItems int

	// Sync worker
	SyncInterval      time.Duration
	SyncMaxConcurrent int

	// Rate Limit
	RateLimitGeneral int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string
	required := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.DatabaseURL = required("DATABASE_URL")
	cfg.JWTSecret = required("JWT_SECRET")
	cfg.InstagramClientID = required("INSTAGRAM_CLIENT_ID")
	cfg.InstagramClientSecret = required("INSTAGRAM_CLIENT_SECRET")
	cfg.InstagramRedirectURL = required("INSTAGRAM_REDIRECT_URL")

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.DBConnectTimeout = getEnvDuration("DB_CONNECT_TIMEOUT", 5*time.Second)
	cfg.JWTIssuer = getEnvString("JWT_ISSUER", "SocialSyncHub")
	cfg.JWTAudience = getEnvString("JWT_AUDIENCE", "SocialSyncHubUsers")
	cfg.JWTTTL = getEnvDuration("JWT_TTL", time.Hour)
	cfg.SocialAccountDefaultTTL = getEnvDuration("SOCIAL_ACCOUNT_DEFAULT_TTL", 60*24*time.Hour)
	cfg.InstagramScope = getEnvString("INSTAGRAM_SCOPE", "user_profile,user_media")
	cfg.InstagramAuthURL = getEnvString("INSTAGRAM_AUTH_URL", "https://api.instagram.com/oauth/authorize")
	cfg.InstagramTokenURL = getEnvString("INSTAGRAM_TOKEN_URL", "https://api.instagram.com/oauth/access_token")
	cfg.InstagramGraphURL = getEnvString("INSTAGRAM_GRAPH_URL", "https://graph.instagram.com")
	cfg.ExternalHTTPTimeout = getEnvDuration("EXTERNAL_HTTP_TIMEOUT", 15*time.Second)
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", 10*time.Minute)
	cfg.CacheMaxItems = getEnvInt("CACHE_MAX_ITEMS", 10000)
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", time.Hour)
	cfg.SyncMaxConcurrent = getEnvInt("SYNC_MAX_CONCURRENT", 5)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	if cfg.SyncInterval <= 0 {
		return nil, fmt.Errorf("SYNC_INTERVAL must be positive, got %s", cfg.SyncInterval)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
