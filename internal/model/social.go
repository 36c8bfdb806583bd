package model

import (
	"fmt"
	"strings"
	"time"
)

// NetworkType は連携先ソーシャルネットワークの種別を表す。
// 値の集合は固定であり、switch文では全ケースを列挙する。
type NetworkType string

const (
	// NetworkInstagram はInstagramを表す。
	NetworkInstagram NetworkType = "instagram"
	// NetworkTikTok はTikTokを表す。
	NetworkTikTok NetworkType = "tiktok"
	// NetworkX はX（旧Twitter）を表す。
	NetworkX NetworkType = "x"
)

// AllNetworks は対応している全ネットワーク種別を返す。
func AllNetworks() []NetworkType {
	return []NetworkType{NetworkInstagram, NetworkTikTok, NetworkX}
}

// ParseNetworkType は文字列をNetworkTypeに変換する。大文字小文字は区別しない。
// "Instagram" や "TikTok" のような表記も受け付ける。
func ParseNetworkType(s string) (NetworkType, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for _, n := range AllNetworks() {
		if string(n) == normalized {
			return n, nil
		}
	}
	return "", NewInvalidNetworkError(s)
}

// Valid はNetworkTypeが定義済みの値であるかを返す。
func (n NetworkType) Valid() bool {
	switch n {
	case NetworkInstagram, NetworkTikTok, NetworkX:
		return true
	default:
		return false
	}
}

// DisplayName は表示用の名前を返す。
func (n NetworkType) DisplayName() string {
	switch n {
	case NetworkInstagram:
		return "Instagram"
	case NetworkTikTok:
		return "TikTok"
	case NetworkX:
		return "X"
	default:
		return fmt.Sprintf("unknown(%s)", string(n))
	}
}

// String はfmt.Stringerを実装する。
func (n NetworkType) String() string {
	return n.DisplayName()
}

// SocialAccount はユーザーと外部ネットワークアカウントの連携を表す。
// (UserID, NetworkType) の組につき最大1件。作成後に更新されることはない。
type SocialAccount struct {
	ID           string
	UserID       string
	NetworkType  NetworkType
	AccessToken  string
	RefreshToken *string
	ExpiresAt    *time.Time
	Username     *string
	CreatedAt    time.Time
}

// SocialAccountSummary は呼び出し元に返す連携アカウント情報。
// アクセストークン、リフレッシュトークンは含まない。
type SocialAccountSummary struct {
	ID          string      `json:"id"`
	NetworkType NetworkType `json:"network_type"`
	Username    *string     `json:"username,omitempty"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
}

// Summary はSocialAccountからSocialAccountSummaryを生成する。
func (a *SocialAccount) Summary() SocialAccountSummary {
	s := SocialAccountSummary{
		ID:          a.ID,
		NetworkType: a.NetworkType,
	}
	if a.Username != nil {
		u := *a.Username
		s.Username = &u
	}
	if a.ExpiresAt != nil {
		t := *a.ExpiresAt
		s.ExpiresAt = &t
	}
	return s
}
