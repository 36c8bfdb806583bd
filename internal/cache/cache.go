// Package cache は読み取り経路の前段に置く短期キャッシュを提供する。
// キャッシュは権威ではなく、TTLの範囲で古い値を返すことがある。
package cache

import (
	"context"
	"time"
)

// Cache はTTL付きのキー・バイト列キャッシュ。
// 存在しないキーのGetは (nil, false, nil) を返す。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// UserKey はユーザー情報のキャッシュキーを返す。
func UserKey(userID string) string {
	return "user:" + userID
}
