package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// HashPassword はパスワードのSHA-256ダイジェストをbase64で返す。
// ソルトは付与しない（既存データとの互換性のため）。同じ入力には常に同じ値を返す。
func HashPassword(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// VerifyPassword はplaintextのハッシュがhashと一致するかを返す。
func VerifyPassword(plaintext, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashPassword(plaintext)), []byte(hash)) == 1
}
