package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jhgaldino/socialsynchub/internal/model"
)

// インメモリ実装はテストとローカル動作確認用。
// PostgreSQL実装と同じ一意性制約を持ち、エンティティは常にコピーで出し入れする。

// MemoryUserRepo はメモリ上のユーザーリポジトリ。
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]model.User
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[string]model.User)}
}

func copyUser(u model.User) *model.User {
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		u.LastLoginAt = &t
	}
	return &u
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

// FindByEmail はメールアドレスでユーザーを検索する。大文字小文字は区別しない。
func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

// ExistsByID は指定IDのユーザーが存在するかを返す。
func (r *MemoryUserRepo) ExistsByID(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[id]
	return ok, nil
}

// ExistsByEmail は指定メールアドレスのユーザーが存在するかを返す。
func (r *MemoryUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	u, err := r.FindByEmail(ctx, email)
	return u != nil, err
}

// List は全ユーザーを作成日時の昇順で返す。
func (r *MemoryUserRepo) List(_ context.Context) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// Create はユーザーを作成する。IDまたはメールアドレスが重複する場合はErrDuplicateを返す。
func (r *MemoryUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return fmt.Errorf("user id %q: %w", user.ID, ErrDuplicate)
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("email %q: %w", user.Email, ErrDuplicate)
		}
	}
	r.users[user.ID] = *copyUser(*user)
	return nil
}

// Update はユーザーの名前、パスワードハッシュ、最終ログイン日時を更新する。
func (r *MemoryUserRepo) Update(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", user.ID, ErrNotFound)
	}
	existing.Name = user.Name
	existing.PasswordHash = user.PasswordHash
	existing.LastLoginAt = copyUser(*user).LastLoginAt
	r.users[user.ID] = existing
	return nil
}

// MemorySocialAccountRepo はメモリ上の連携アカウントリポジトリ。
type MemorySocialAccountRepo struct {
	mu       sync.RWMutex
	accounts map[string]model.SocialAccount
}

// NewMemorySocialAccountRepo はMemorySocialAccountRepoを生成する。
func NewMemorySocialAccountRepo() *MemorySocialAccountRepo {
	return &MemorySocialAccountRepo{accounts: make(map[string]model.SocialAccount)}
}

func copySocialAccount(a model.SocialAccount) *model.SocialAccount {
	if a.RefreshToken != nil {
		s := *a.RefreshToken
		a.RefreshToken = &s
	}
	if a.Username != nil {
		s := *a.Username
		a.Username = &s
	}
	if a.ExpiresAt != nil {
		t := *a.ExpiresAt
		a.ExpiresAt = &t
	}
	return &a
}

// FindByUserAndNetwork はユーザーIDとネットワーク種別で連携アカウントを検索する。
func (r *MemorySocialAccountRepo) FindByUserAndNetwork(_ context.Context, userID string, network model.NetworkType) (*model.SocialAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if a.UserID == userID && a.NetworkType == network {
			return copySocialAccount(a), nil
		}
	}
	return nil, nil
}

// ListByUserID はユーザーの連携アカウント一覧を返す。
func (r *MemorySocialAccountRepo) ListByUserID(_ context.Context, userID string) ([]*model.SocialAccount, error) {
	return r.filter(func(a model.SocialAccount) bool { return a.UserID == userID }), nil
}

// ListByNetwork は指定ネットワークの連携アカウントを全ユーザー分返す。
func (r *MemorySocialAccountRepo) ListByNetwork(_ context.Context, network model.NetworkType) ([]*model.SocialAccount, error) {
	return r.filter(func(a model.SocialAccount) bool { return a.NetworkType == network }), nil
}

func (r *MemorySocialAccountRepo) filter(match func(model.SocialAccount) bool) []*model.SocialAccount {
	r.mu.RLock()
	defer r.mu.RUnlock()
	accounts := []*model.SocialAccount{}
	for _, a := range r.accounts {
		if match(a) {
			accounts = append(accounts, copySocialAccount(a))
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts
}

// Create は連携アカウントを作成する。
// (user_id, network_type) が重複する場合はErrDuplicateを返す。
func (r *MemorySocialAccountRepo) Create(_ context.Context, account *model.SocialAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.UserID == account.UserID && a.NetworkType == account.NetworkType {
			return fmt.Errorf("social account (%s, %s): %w", account.UserID, account.NetworkType, ErrDuplicate)
		}
	}
	r.accounts[account.ID] = *copySocialAccount(*account)
	return nil
}

// Delete は指定IDの連携アカウントを削除する。
func (r *MemorySocialAccountRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return fmt.Errorf("social account %s: %w", id, ErrNotFound)
	}
	delete(r.accounts, id)
	return nil
}

// MemoryMediaRepo はメモリ上の同期済みメディアリポジトリ。
type MemoryMediaRepo struct {
	mu    sync.RWMutex
	items map[mediaKey]model.MediaItem
}

type mediaKey struct {
	userID          string
	externalMediaID string
}

// NewMemoryMediaRepo はMemoryMediaRepoを生成する。
func NewMemoryMediaRepo() *MemoryMediaRepo {
	return &MemoryMediaRepo{items: make(map[mediaKey]model.MediaItem)}
}

func copyMediaItem(m model.MediaItem) *model.MediaItem {
	if m.Caption != nil {
		c := *m.Caption
		m.Caption = &c
	}
	return &m
}

// Upsert は (user_id, external_media_id) をキーにメディアを冪等に保存する。
func (r *MemoryMediaRepo) Upsert(_ context.Context, item *model.MediaItem) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	key := mediaKey{userID: item.UserID, externalMediaID: item.ExternalMediaID}

	if existing, ok := r.items[key]; ok {
		existing.MediaType = item.MediaType
		existing.MediaURL = item.MediaURL
		existing.Caption = copyMediaItem(*item).Caption
		existing.Timestamp = item.Timestamp
		existing.UpdatedAt = now
		r.items[key] = existing

		item.ID = existing.ID
		item.CreatedAt = existing.CreatedAt
		item.UpdatedAt = now
		return false, nil
	}

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	r.items[key] = *copyMediaItem(*item)
	return true, nil
}

// ListByUserID はユーザーの同期済みメディアをtimestamp降順で返す。
func (r *MemoryMediaRepo) ListByUserID(_ context.Context, userID string) ([]*model.MediaItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := []*model.MediaItem{}
	for k, m := range r.items {
		if k.userID == userID {
			items = append(items, copyMediaItem(m))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Timestamp.Equal(items[j].Timestamp) {
			return items[i].ExternalMediaID < items[j].ExternalMediaID
		}
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	return items, nil
}

// compile-time interface checks
var _ UserRepository = (*MemoryUserRepo)(nil)
var _ SocialAccountRepository = (*MemorySocialAccountRepo)(nil)
var _ MediaRepository = (*MemoryMediaRepo)(nil)
