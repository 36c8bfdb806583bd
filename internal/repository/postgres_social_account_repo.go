package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jhgaldino/socialsynchub/internal/model"
)

// PostgresSocialAccountRepo はPostgreSQLを使用した連携アカウントリポジトリ。
type PostgresSocialAccountRepo struct {
	db *sql.DB
}

// NewPostgresSocialAccountRepo はPostgresSocialAccountRepoを生成する。
func NewPostgresSocialAccountRepo(db *sql.DB) *PostgresSocialAccountRepo {
	return &PostgresSocialAccountRepo{db: db}
}

const socialAccountColumns = `id, user_id, network_type, access_token, refresh_token, expires_at, username, created_at`

// scanSocialAccount は1行分の連携アカウントを読み取る。
func scanSocialAccount(row interface{ Scan(dest ...any) error }) (*model.SocialAccount, error) {
	account := &model.SocialAccount{}
	var network string
	var refreshToken, username sql.NullString
	var expiresAt sql.NullTime

	if err := row.Scan(
		&account.ID, &account.UserID, &network, &account.AccessToken,
		&refreshToken, &expiresAt, &username, &account.CreatedAt,
	); err != nil {
		return nil, err
	}

	nt, err := model.ParseNetworkType(network)
	if err != nil {
		return nil, fmt.Errorf("unexpected network_type %q in social_accounts: %w", network, err)
	}
	account.NetworkType = nt
	account.RefreshToken = stringPtr(refreshToken)
	account.ExpiresAt = timePtr(expiresAt)
	account.Username = stringPtr(username)

	return account, nil
}

// FindByUserAndNetwork はユーザーIDとネットワーク種別で連携アカウントを検索する。
func (r *PostgresSocialAccountRepo) FindByUserAndNetwork(ctx context.Context, userID string, network model.NetworkType) (*model.SocialAccount, error) {
	account, err := scanSocialAccount(r.db.QueryRowContext(ctx,
		`SELECT `+socialAccountColumns+` FROM social_accounts WHERE user_id = $1 AND network_type = $2`,
		userID, string(network),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find social account by user and network: %w", err)
	}
	return account, nil
}

// ListByUserID はユーザーの連携アカウント一覧を返す。
func (r *PostgresSocialAccountRepo) ListByUserID(ctx context.Context, userID string) ([]*model.SocialAccount, error) {
	return r.list(ctx,
		`SELECT `+socialAccountColumns+` FROM social_accounts WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
}

// ListByNetwork は指定ネットワークの連携アカウントを全ユーザー分返す。
func (r *PostgresSocialAccountRepo) ListByNetwork(ctx context.Context, network model.NetworkType) ([]*model.SocialAccount, error) {
	return r.list(ctx,
		`SELECT `+socialAccountColumns+` FROM social_accounts WHERE network_type = $1 ORDER BY created_at ASC`,
		string(network),
	)
}

func (r *PostgresSocialAccountRepo) list(ctx context.Context, query string, args ...any) ([]*model.SocialAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list social accounts: %w", err)
	}
	defer rows.Close()

	accounts := []*model.SocialAccount{}
	for rows.Next() {
		account, err := scanSocialAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan social account row: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate social account rows: %w", err)
	}
	return accounts, nil
}

// Create は連携アカウントを作成する。
// UNIQUE(user_id, network_type) に違反する場合はErrDuplicateを返す。
func (r *PostgresSocialAccountRepo) Create(ctx context.Context, account *model.SocialAccount) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO social_accounts (id, user_id, network_type, access_token, refresh_token, expires_at, username, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID, account.UserID, string(account.NetworkType), account.AccessToken,
		nullString(account.RefreshToken), nullTime(account.ExpiresAt), nullString(account.Username),
		account.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("social account (%s, %s): %w", account.UserID, account.NetworkType, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert social account: %w", err)
	}
	return nil
}

// Delete は指定IDの連携アカウントを削除する。
func (r *PostgresSocialAccountRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM social_accounts WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete social account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("social account %s: %w", id, ErrNotFound)
	}
	return nil
}

// compile-time interface check
var _ SocialAccountRepository = (*PostgresSocialAccountRepo)(nil)
