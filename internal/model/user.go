package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはストア層とauthパッケージの外に出さない。
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// UserSummary は呼び出し元に返すユーザー情報。パスワードハッシュを含まない。
// キャッシュの値としてもJSONで保存される。
type UserSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Summary はUserからUserSummaryを生成する。
func (u *User) Summary() UserSummary {
	s := UserSummary{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		s.LastLoginAt = &t
	}
	return s
}

// AuthResponse はログイン・登録成功時の応答を表す。
// RefreshTokenは発行するだけで保存も検証もしない。
type AuthResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         UserSummary `json:"user"`
}
