package model

import "time"

// MediaItem は外部プロバイダーから同期した投稿のローカルコピーを表す。
// (UserID, ExternalMediaID) の組で一意。同期のたびに作成または上書きされ、削除はされない。
type MediaItem struct {
	ID              string
	UserID          string
	ExternalMediaID string
	MediaType       string
	MediaURL        string
	Caption         *string
	Timestamp       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ExternalMediaItem はプロバイダーのメディア一覧APIから取得した未保存の投稿データを表す。
type ExternalMediaItem struct {
	ID        string
	MediaType string
	MediaURL  string
	Caption   *string
	Timestamp time.Time
}

// MediaItemSummary は呼び出し元に返す同期済みメディア情報。
type MediaItemSummary struct {
	ID              string    `json:"id"`
	ExternalMediaID string    `json:"media_id"`
	MediaType       string    `json:"media_type"`
	MediaURL        string    `json:"media_url"`
	Caption         *string   `json:"caption,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Summary はMediaItemからMediaItemSummaryを生成する。
func (m *MediaItem) Summary() MediaItemSummary {
	s := MediaItemSummary{
		ID:              m.ID,
		ExternalMediaID: m.ExternalMediaID,
		MediaType:       m.MediaType,
		MediaURL:        m.MediaURL,
		Timestamp:       m.Timestamp,
	}
	if m.Caption != nil {
		c := *m.Caption
		s.Caption = &c
	}
	return s
}
