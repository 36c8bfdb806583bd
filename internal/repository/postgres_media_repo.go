package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhgaldino/socialsynchub/internal/model"
)

// PostgresMediaRepo はPostgreSQLを使用した同期済みメディアリポジトリ。
type PostgresMediaRepo struct {
	db *sql.DB
}

// NewPostgresMediaRepo はPostgresMediaRepoを生成する。
func NewPostgresMediaRepo(db *sql.DB) *PostgresMediaRepo {
	return &PostgresMediaRepo{db: db}
}

// Upsert は (user_id, external_media_id) をキーにメディアを冪等に保存する。
// UNIQUE(user_id, external_media_id)制約を利用したINSERT ON CONFLICTで実装する。
// 既存行の場合はIDと作成日時を維持し、item.ID と item.CreatedAt を既存の値で上書きする。
func (r *PostgresMediaRepo) Upsert(ctx context.Context, item *model.MediaItem) (bool, error) {
	now := time.Now().UTC()
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	var inserted bool
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO media_items (id, user_id, external_media_id, media_type, media_url, caption, media_timestamp, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 ON CONFLICT (user_id, external_media_id) DO UPDATE SET
		     media_type = EXCLUDED.media_type,
		     media_url = EXCLUDED.media_url,
		     caption = EXCLUDED.caption,
		     media_timestamp = EXCLUDED.media_timestamp,
		     updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at, updated_at, (xmax = 0) AS inserted`,
		item.ID, item.UserID, item.ExternalMediaID, item.MediaType, item.MediaURL,
		nullString(item.Caption), item.Timestamp, now,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("メディアのUPSERTに失敗しました: %w", err)
	}

	return inserted, nil
}

// ListByUserID はユーザーの同期済みメディアをtimestamp降順で返す。
func (r *PostgresMediaRepo) ListByUserID(ctx context.Context, userID string) ([]*model.MediaItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, external_media_id, media_type, media_url, caption, media_timestamp, created_at, updated_at
		 FROM media_items WHERE user_id = $1
		 ORDER BY media_timestamp DESC, external_media_id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("メディア一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	items := []*model.MediaItem{}
	for rows.Next() {
		item := &model.MediaItem{}
		var caption sql.NullString
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.ExternalMediaID, &item.MediaType, &item.MediaURL,
			&caption, &item.Timestamp, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("メディア行の読み取りに失敗しました: %w", err)
		}
		item.Caption = stringPtr(caption)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メディア行の走査に失敗しました: %w", err)
	}

	return items, nil
}

// compile-time interface check
var _ MediaRepository = (*PostgresMediaRepo)(nil)
