package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jhgaldino/socialsynchub/internal/auth"
	"github.com/jhgaldino/socialsynchub/internal/cache"
	"github.com/jhgaldino/socialsynchub/internal/config"
	"github.com/jhgaldino/socialsynchub/internal/database"
	"github.com/jhgaldino/socialsynchub/internal/instagram"
	"github.com/jhgaldino/socialsynchub/internal/media"
	"github.com/jhgaldino/socialsynchub/internal/metrics"
	"github.com/jhgaldino/socialsynchub/internal/repository"
	"github.com/jhgaldino/socialsynchub/internal/security"
	"github.com/jhgaldino/socialsynchub/internal/social"
	"github.com/jhgaldino/socialsynchub/internal/user"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// components はserve/workerの両モードで共有する依存関係。
type components struct {
	db       *sql.DB
	redis    *redis.Client
	registry *prometheus.Registry
	metrics  *metrics.Collector

	userRepo    repository.UserRepository
	accountRepo repository.SocialAccountRepository
	mediaRepo   repository.MediaRepository

	codec           *auth.TokenCodec
	authService     *auth.Service
	userService     *user.Service
	socialService   *social.Service
	instagramClient *instagram.Client
	linker          *social.InstagramLinker
	mediaService    *media.Service
}

// buildComponents はDB接続を開き、リポジトリとサービスを組み立てる。
// 戻り値のcloseで開いた接続をすべて閉じる。
func buildComponents(ctx context.Context, cfg *config.Config) (*components, func(), error) {
	c := &components{}

	// 1. DB接続
	db, err := database.Connect(ctx, cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}, cfg.DBConnectTimeout)
	if err != nil {
		return nil, nil, err
	}
	c.db = db
	slog.Info("database connection established")

	closeAll := func() {
		if c.redis != nil {
			c.redis.Close()
		}
		c.db.Close()
	}

	// 2. メトリクス
	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.metrics = metrics.NewCollector(c.registry)

	// 3. リポジトリの初期化
	c.userRepo = repository.NewPostgresUserRepo(db)
	c.accountRepo = repository.NewPostgresSocialAccountRepo(db)
	c.mediaRepo = repository.NewPostgresMediaRepo(db)

	// 4. キャッシュ（REDIS_ADDR未設定時はプロセス内キャッシュ）
	var userCache cache.Cache
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.DBConnectTimeout)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.redis = client
		userCache = cache.NewRedisCache(client)
		slog.Info("redis cache enabled", slog.String("addr", cfg.RedisAddr))
	} else {
		userCache = cache.NewMemoryCache(cfg.CacheMaxItems)
		slog.Info("in-memory cache enabled", slog.Int("max_items", cfg.CacheMaxItems))
	}

	// 5. セッショントークン
	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	c.codec = codec

	// 6. 外部通信（プロバイダーのエンドポイントを起動時に検証する）
	guard := security.NewOutboundGuard()
	for _, endpoint := range []string{cfg.InstagramAuthURL, cfg.InstagramTokenURL, cfg.InstagramGraphURL} {
		if err := guard.ValidateEndpoint(endpoint); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("invalid instagram endpoint: %w", err)
		}
	}
	c.instagramClient = instagram.NewClient(instagram.Config{
		ClientID:     cfg.InstagramClientID,
		ClientSecret: cfg.InstagramClientSecret,
		RedirectURL:  cfg.InstagramRedirectURL,
		Scope:        cfg.InstagramScope,
		AuthURL:      cfg.InstagramAuthURL,
		TokenURL:     cfg.InstagramTokenURL,
		GraphURL:     cfg.InstagramGraphURL,
	}, guard.NewProviderClient(cfg.ExternalHTTPTimeout), slog.Default())

	// 7. ドメインサービスの初期化
	c.authService = auth.NewService(c.userRepo, codec, userCache, c.metrics)
	c.userService = user.NewService(c.userRepo, userCache, cfg.CacheTTL, c.metrics)
	c.socialService = social.NewService(c.userRepo, c.accountRepo, cfg.SocialAccountDefaultTTL, c.metrics)
	c.linker = social.NewInstagramLinker(c.instagramClient, c.socialService, slog.Default())
	c.mediaService = media.NewService(c.accountRepo, c.mediaRepo, c.instagramClient, security.NewCaptionSanitizer(), c.metrics)

	return c, closeAll, nil
}
