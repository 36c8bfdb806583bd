// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind はドメインエラーの種別を表す。
// ハンドラー層はKindのみを見てHTTPステータスを決定する。
type ErrorKind string

const (
	// KindNotFound は対象（ユーザー、連携アカウント等）が存在しないことを表す。
	KindNotFound ErrorKind = "not_found"
	// KindValidation は入力値や認証情報が不正であることを表す。
	KindValidation ErrorKind = "validation"
	// KindConflict は一意性制約に違反することを表す。
	KindConflict ErrorKind = "conflict"
	// KindExternalService は外部プロバイダーが失敗応答を返したことを表す。
	KindExternalService ErrorKind = "external_service"
	// KindNotImplemented は未実装の機能が呼び出されたことを表す。リトライしても成功しない。
	KindNotImplemented ErrorKind = "not_implemented"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Kind     ErrorKind // エラー種別
	Code     string    // エラーコード
	Message  string    // エラーメッセージ
	Category string    // カテゴリ: auth, validation, social, media, system
	Action   string    // ユーザー向け対処方法
	Detail   string    // 外部サービスの応答本文など診断用の情報
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// IsKind はerrがAPIErrorであり、指定された種別であるかを返す。
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials     = "INVALID_CREDENTIALS"
	ErrCodeEmailAlreadyExists     = "EMAIL_ALREADY_EXISTS"
	ErrCodeUserNotFound           = "USER_NOT_FOUND"
	ErrCodeInvalidInput           = "INVALID_INPUT"
	ErrCodeInvalidState           = "INVALID_STATE"
	ErrCodeInvalidNetwork         = "INVALID_NETWORK"
	ErrCodeAccountAlreadyLinked   = "ACCOUNT_ALREADY_LINKED"
	ErrCodeAccountNotLinked       = "ACCOUNT_NOT_LINKED"
	ErrCodeExternalServiceFailure = "EXTERNAL_SERVICE_FAILURE"
	ErrCodeRefreshNotImplemented  = "REFRESH_NOT_IMPLEMENTED"
)

// invalidCredentialsMessage はログイン失敗時の共通メッセージ。
// メールアドレス未登録とパスワード不一致で同じ文言を返し、アカウントの列挙を防ぐ。
const invalidCredentialsMessage = "メールアドレスまたはパスワードが正しくありません。"

// NewUnknownEmailError はログイン時にメールアドレスが未登録だった場合のエラーを生成する。
func NewUnknownEmailError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeInvalidCredentials,
		Message:  invalidCredentialsMessage,
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewPasswordMismatchError はログイン時にパスワードが一致しなかった場合のエラーを生成する。
func NewPasswordMismatchError() *APIError {
	return &APIError{
		Kind:     KindValidation,
		Code:     ErrCodeInvalidCredentials,
		Message:  invalidCredentialsMessage,
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewEmailAlreadyExistsError は登録済みメールアドレスで再登録しようとした場合のエラーを生成する。
func NewEmailAlreadyExistsError(email string) *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeEmailAlreadyExists,
		Message:  fmt.Sprintf("メールアドレス '%s' のユーザーは既に存在します。", email),
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスを使用してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewInvalidInputError は入力値の検証に失敗した場合のエラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Kind:     KindValidation,
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidStateError はOAuthコールバックのstateからユーザーIDを復元できない場合のエラーを生成する。
func NewInvalidStateError() *APIError {
	return &APIError{
		Kind:     KindValidation,
		Code:     ErrCodeInvalidState,
		Message:  "stateパラメータが不正です。",
		Category: "social",
		Action:   "連携処理を最初からやり直してください。",
	}
}

// NewInvalidNetworkError は未知のソーシャルネットワーク種別が指定された場合のエラーを生成する。
func NewInvalidNetworkError(network string) *APIError {
	names := make([]string, 0, len(AllNetworks()))
	for _, n := range AllNetworks() {
		names = append(names, n.DisplayName())
	}
	return &APIError{
		Kind:     KindValidation,
		Code:     ErrCodeInvalidNetwork,
		Message:  fmt.Sprintf("未対応のソーシャルネットワークです: %s", network),
		Category: "validation",
		Action:   strings.Join(names, "、") + " のいずれかを指定してください。",
	}
}

// NewAccountAlreadyLinkedError は同一ネットワークのアカウントが既に連携済みの場合のエラーを生成する。
func NewAccountAlreadyLinkedError(network NetworkType) *APIError {
	return &APIError{
		Kind:     KindConflict,
		Code:     ErrCodeAccountAlreadyLinked,
		Message:  fmt.Sprintf("%s アカウントは既に連携されています。", network),
		Category: "social",
		Action:   "再連携する場合は、先に連携を解除してください。",
	}
}

// NewAccountNotLinkedError は指定ネットワークのアカウントが連携されていない場合のエラーを生成する。
func NewAccountNotLinkedError(network NetworkType) *APIError {
	return &APIError{
		Kind:     KindNotFound,
		Code:     ErrCodeAccountNotLinked,
		Message:  fmt.Sprintf("%s アカウントは連携されていません。", network),
		Category: "social",
		Action:   "アカウントを連携してから再度お試しください。",
	}
}

// NewExternalServiceError は外部プロバイダーが失敗応答を返した場合のエラーを生成する。
// detailにはプロバイダーの応答本文を含める。
func NewExternalServiceError(provider string, statusCode int, detail string) *APIError {
	return &APIError{
		Kind:     KindExternalService,
		Code:     ErrCodeExternalServiceFailure,
		Message:  fmt.Sprintf("%s がステータス %d を返しました。", provider, statusCode),
		Category: "media",
		Action:   "しばらく待ってから再度お試しください。",
		Detail:   detail,
	}
}

// NewRefreshNotImplementedError はリフレッシュトークンによる再発行が未実装であることを表すエラーを生成する。
func NewRefreshNotImplementedError() *APIError {
	return &APIError{
		Kind:     KindNotImplemented,
		Code:     ErrCodeRefreshNotImplemented,
		Message:  "リフレッシュトークンによる再発行は未実装です。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}
