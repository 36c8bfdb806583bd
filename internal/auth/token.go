package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jhgaldino/socialsynchub/internal/model"
)

// DefaultTokenTTL はセッショントークンの既定の有効期間。
const DefaultTokenTTL = time.Hour

// refreshTokenBytes はリフレッシュトークンの乱数バイト長。
const refreshTokenBytes = 32

// TokenConfig はセッショントークンの署名・検証設定。
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// SessionClaims はセッショントークンに含めるクレーム。
// SubjectにユーザーIDを保持する。
type SessionClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IssuedToken は発行したセッショントークンと対になるリフレッシュトークン。
type IssuedToken struct {
	Token        string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenCodec はHS256署名のセッショントークンを発行・検証する。
type TokenCodec struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokenCodec はTokenCodecを生成する。署名鍵が空の場合はエラーを返す。
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token signing secret is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenCodec{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Issue はユーザーのセッショントークンとリフレッシュトークンを発行する。
// リフレッシュトークンは32バイトの乱数をbase64化したもので、どこにも保存しない。
func (c *TokenCodec) Issue(user *model.User) (*IssuedToken, error) {
	// JWTの時刻クレームは秒精度なので、応答のExpiresAtも秒に揃える。
	now := c.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(c.ttl)

	claims := SessionClaims{
		Name:  user.Name,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	refresh, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	return &IssuedToken{
		Token:        signed,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

// Parse は署名、発行者、対象者、有効期限を検証してクレームを返す。
// 有効期限の許容誤差はゼロ。
func (c *TokenCodec) Parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("invalid session token: missing subject")
	}
	return claims, nil
}

// Validate はトークンが有効であればtrueを返す。検証失敗の理由は呼び出し元に返さない。
func (c *TokenCodec) Validate(token string) bool {
	_, err := c.Parse(token)
	return err == nil
}

// generateRefreshToken は暗号的に安全なリフレッシュトークンを生成する。
func generateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
