// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/jhgaldino/socialsynchub/internal/model"
)

// ErrDuplicate は一意性制約違反を表す。
// 同時実行時の重複登録はサービス層の事前チェックをすり抜けるため、ストア層が最終的な防御となる。
var ErrDuplicate = errors.New("duplicate key")

// ErrNotFound は更新・削除の対象行が存在しないことを表す。
var ErrNotFound = errors.New("row not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。大文字小文字は区別しない。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// ExistsByID は指定IDのユーザーが存在するかを返す。
	ExistsByID(ctx context.Context, id string) (bool, error)

	// ExistsByEmail は指定メールアドレスのユーザーが存在するかを返す。
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// List は全ユーザーを作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザーの名前、パスワードハッシュ、最終ログイン日時を更新する。
	// IDとメールアドレスは変更しない。対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, user *model.User) error
}

// SocialAccountRepository は連携アカウントの永続化インターフェース。
type SocialAccountRepository interface {
	// FindByUserAndNetwork はユーザーIDとネットワーク種別で連携アカウントを検索する。
	// 見つからない場合はnilを返す。
	FindByUserAndNetwork(ctx context.Context, userID string, network model.NetworkType) (*model.SocialAccount, error)

	// ListByUserID はユーザーの連携アカウント一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.SocialAccount, error)

	// ListByNetwork は指定ネットワークの連携アカウントを全ユーザー分返す。
	// 定期同期ワーカーが対象ユーザーを列挙するために使用する。
	ListByNetwork(ctx context.Context, network model.NetworkType) ([]*model.SocialAccount, error)

	// Create は連携アカウントを作成する。
	// (user_id, network_type) が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, account *model.SocialAccount) error

	// Delete は指定IDの連携アカウントを削除する。対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// MediaRepository は同期済みメディアの永続化インターフェース。
type MediaRepository interface {
	// Upsert は (user_id, external_media_id) をキーにメディアを冪等に保存する。
	// 既存の場合はmedia_type、media_url、caption、timestampを上書きし、IDと作成日時は維持する。
	// 戻り値のboolは新規作成の場合にtrue。
	Upsert(ctx context.Context, item *model.MediaItem) (bool, error)

	// ListByUserID はユーザーの同期済みメディアをtimestamp降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.MediaItem, error)
}
