// Package media はInstagramのメディア一覧をローカルに同期する。
package media

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jhgaldino/socialsynchub/internal/instagram"
	"github.com/jhgaldino/socialsynchub/internal/metrics"
	"github.com/jhgaldino/socialsynchub/internal/model"
	"github.com/jhgaldino/socialsynchub/internal/repository"
	"github.com/jhgaldino/socialsynchub/internal/security"
)

// DefaultMaxPages は1回の同期で取得するページ数の上限。
const DefaultMaxPages = 20

// MediaFetcher はメディア一覧の取得操作。*instagram.Client が満たす。
type MediaFetcher interface {
	FetchMediaPage(ctx context.Context, accessToken, after string) (*instagram.MediaPage, error)
}

// Recorder は同期結果のメトリクス記録インターフェース。
type Recorder interface {
	RecordSync(result string, duration time.Duration)
	RecordMediaUpserted(count int)
}

type nopRecorder struct{}

func (nopRecorder) RecordSync(string, time.Duration) {}
func (nopRecorder) RecordMediaUpserted(int)          {}

// Service はメディア同期のサービス層。
type Service struct {
	accountRepo repository.SocialAccountRepository
	mediaRepo   repository.MediaRepository
	fetcher     MediaFetcher
	sanitizer   security.CaptionSanitizer
	recorder    Recorder
	maxPages    int
}

// NewService はServiceを生成する。sanitizerとrecorderはnil可。
func NewService(
	accountRepo repository.SocialAccountRepository,
	mediaRepo repository.MediaRepository,
	fetcher MediaFetcher,
	sanitizer security.CaptionSanitizer,
	recorder Recorder,
) *Service {
	if sanitizer == nil {
		sanitizer = security.NewCaptionSanitizer()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		accountRepo: accountRepo,
		mediaRepo:   mediaRepo,
		fetcher:     fetcher,
		sanitizer:   sanitizer,
		recorder:    recorder,
		maxPages:    DefaultMaxPages,
	}
}

// SyncUserMedia はユーザーのInstagramメディアを取得し、(user_id, external_media_id) をキーにUPSERTする。
// Instagramが未連携の場合はNotFoundのAPIErrorを返す。
// 全ページの取得が終わるまでUPSERTは行わないため、取得に失敗した場合はストアを変更しない。
// 戻り値は今回同期したメディア。
func (s *Service) SyncUserMedia(ctx context.Context, userID string) ([]model.MediaItemSummary, error) {
	start := time.Now()

	items, err := s.sync(ctx, userID)
	if err != nil {
		s.recorder.RecordSync(metrics.ResultFailure, time.Since(start))
		return nil, err
	}

	s.recorder.RecordSync(metrics.ResultSuccess, time.Since(start))
	return items, nil
}

func (s *Service) sync(ctx context.Context, userID string) ([]model.MediaItemSummary, error) {
	account, err := s.accountRepo.FindByUserAndNetwork(ctx, userID, model.NetworkInstagram)
	if err != nil {
		return nil, fmt.Errorf("failed to find instagram account: %w", err)
	}
	if account == nil {
		return nil, model.NewAccountNotLinkedError(model.NetworkInstagram)
	}

	fetched, err := s.fetchAll(ctx, account.AccessToken)
	if err != nil {
		slog.Error("メディア一覧の取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	inserted, updated := 0, 0
	synced := make([]model.MediaItemSummary, 0, len(fetched))
	for _, ext := range fetched {
		item := &model.MediaItem{
			UserID:          userID,
			ExternalMediaID: ext.ID,
			MediaType:       ext.MediaType,
			MediaURL:        ext.MediaURL,
			Caption:         s.sanitizer.Sanitize(ext.Caption),
			Timestamp:       ext.Timestamp,
		}
		created, err := s.mediaRepo.Upsert(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert media %s: %w", ext.ID, err)
		}
		if created {
			inserted++
		} else {
			updated++
		}
		synced = append(synced, item.Summary())
	}

	s.recorder.RecordMediaUpserted(len(synced))
	slog.Info("メディア同期完了",
		slog.String("user_id", userID),
		slog.Int("media_count", len(synced)),
		slog.Int("inserted", inserted),
		slog.Int("updated", updated),
	)
	return synced, nil
}

// fetchAll はページングカーソルをたどって全メディアを取得する。
// 同じIDが複数ページに現れた場合は後のページの値を採用する。
func (s *Service) fetchAll(ctx context.Context, accessToken string) ([]model.ExternalMediaItem, error) {
	var all []model.ExternalMediaItem
	index := make(map[string]int)

	after := ""
	for page := 0; page < s.maxPages; page++ {
		p, err := s.fetcher.FetchMediaPage(ctx, accessToken, after)
		if err != nil {
			return nil, err
		}
		for _, item := range p.Items {
			if item.ID == "" {
				continue
			}
			if i, ok := index[item.ID]; ok {
				all[i] = item
				continue
			}
			index[item.ID] = len(all)
			all = append(all, item)
		}
		if p.NextCursor == "" || p.NextCursor == after {
			return all, nil
		}
		after = p.NextCursor
	}

	slog.Warn("メディア一覧のページ数が上限に達しました", slog.Int("max_pages", s.maxPages))
	return all, nil
}

// ListUserMedia はユーザーの同期済みメディアをtimestamp降順で返す。
func (s *Service) ListUserMedia(ctx context.Context, userID string) ([]model.MediaItemSummary, error) {
	items, err := s.mediaRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	summaries := make([]model.MediaItemSummary, 0, len(items))
	for _, m := range items {
		summaries = append(summaries, m.Summary())
	}
	return summaries, nil
}
