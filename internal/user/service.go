// Package user はユーザー情報の参照を提供する。
// ID指定の参照はキャッシュを前段に置いた読み取り経路となる。
package user

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jhgaldino/socialsynchub/internal/cache"
	"github.com/jhgaldino/socialsynchub/internal/metrics"
	"github.com/jhgaldino/socialsynchub/internal/model"
	"github.com/jhgaldino/socialsynchub/internal/repository"
)

// DefaultCacheTTL はユーザー情報をキャッシュする既定の期間。
const DefaultCacheTTL = 10 * time.Minute

// Recorder はキャッシュ参照結果のメトリクス記録インターフェース。
type Recorder interface {
	RecordCacheRequest(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheRequest(string) {}

// Service はユーザー参照のサービス層。
type Service struct {
	userRepo repository.UserRepository
	cache    cache.Cache
	ttl      time.Duration
	recorder Recorder
}

// NewService はServiceの新しいインスタンスを生成する。
// ttlが0以下の場合はDefaultCacheTTLを使用する。recorderはnil可。
func NewService(userRepo repository.UserRepository, c cache.Cache, ttl time.Duration, recorder Recorder) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		userRepo: userRepo,
		cache:    c,
		ttl:      ttl,
		recorder: recorder,
	}
}

// GetByID は指定IDのユーザー情報を返す。存在しない場合はNotFoundのAPIErrorを返す。
// キャッシュにあればその値を返し、なければストアから取得してキャッシュに同期的に書き込む。
// キャッシュの読み書きに失敗してもストアの結果を返す。
func (s *Service) GetByID(ctx context.Context, id string) (*model.UserSummary, error) {
	key := cache.UserKey(id)

	if summary, ok := s.fromCache(ctx, key); ok {
		return summary, nil
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	summary := user.Summary()
	s.toCache(ctx, key, &summary)
	return &summary, nil
}

// List は全ユーザーの情報を作成日時の昇順で返す。
func (s *Service) List(ctx context.Context) ([]model.UserSummary, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}

	summaries := make([]model.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	return summaries, nil
}

// Exists は指定IDのユーザーが存在するかを返す。
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	exists, err := s.userRepo.ExistsByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("ユーザーの存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

func (s *Service) fromCache(ctx context.Context, key string) (*model.UserSummary, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.recorder.RecordCacheRequest(metrics.ResultError)
		slog.Warn("cache get failed", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	if !ok {
		s.recorder.RecordCacheRequest(metrics.ResultMiss)
		return nil, false
	}

	var summary model.UserSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		s.recorder.RecordCacheRequest(metrics.ResultError)
		slog.Warn("cache value is corrupt", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}

	s.recorder.RecordCacheRequest(metrics.ResultHit)
	return &summary, true
}

func (s *Service) toCache(ctx context.Context, key string, summary *model.UserSummary) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(summary)
	if err != nil {
		slog.Warn("cache value marshal failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		slog.Warn("cache set failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
