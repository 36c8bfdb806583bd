// Package security は外部プロバイダーとのやり取りに関わるセキュリティ機能を提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// CaptionSanitizer は外部プロバイダーから取得したキャプションを保存前に無害化する。
type CaptionSanitizer interface {
	// Sanitize はHTMLタグをすべて除去したプレーンテキストを返す。
	// nilにはnilを返し、空文字列は空文字列のまま返す（未設定と空を区別する）。
	Sanitize(caption *string) *string
}

// captionSanitizer はbluemondayのStrictPolicyでタグを除去する実装。
// Policyはスレッドセーフなので同時に複数の同期から使用できる。
type captionSanitizer struct {
	policy *bluemonday.Policy
}

// NewCaptionSanitizer はCaptionSanitizerを生成する。
func NewCaptionSanitizer() CaptionSanitizer {
	return &captionSanitizer{policy: bluemonday.StrictPolicy()}
}

// maxSanitizePasses はエンティティの多重エンコードを剥がす最大回数。
const maxSanitizePasses = 5

// Sanitize はキャプションからタグを除去する。
// エンティティを復元してからStrictPolicyを適用し、除去するタグがなくなるまで繰り返す。
// 収束した文字列はタグを含まないのでプレーンテキストのまま保存する。
// 回数内に収束しない場合はStrictPolicyのエスケープ済み出力を返す。
func (s *captionSanitizer) Sanitize(caption *string) *string {
	if caption == nil {
		return nil
	}
	cur := *caption
	for i := 0; i < maxSanitizePasses; i++ {
		plain := unescapeAll(cur)
		escaped := s.policy.Sanitize(plain)
		if html.UnescapeString(escaped) == plain {
			cleaned := strings.TrimSpace(plain)
			return &cleaned
		}
		cur = escaped
	}
	cleaned := strings.TrimSpace(s.policy.Sanitize(unescapeAll(cur)))
	return &cleaned
}

// unescapeAll は "&amp;lt;" のような多重エンコードを変化しなくなるまで復元する。
func unescapeAll(s string) string {
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}
