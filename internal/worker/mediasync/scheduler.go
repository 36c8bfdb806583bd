// Package mediasync は連携済みInstagramアカウントのメディアを定期的に同期する。
// 同期そのものは1回ごとのプルであり、ワーカーは対象ユーザーの列挙と並列数の制御だけを行う。
package mediasync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jhgaldino/socialsynchub/internal/model"
	"github.com/jhgaldino/socialsynchub/internal/repository"
)

const (
	// DefaultMaxConcurrency は同時に実行する同期の既定の上限。
	DefaultMaxConcurrency = 5
	// DefaultInterval はStartに0以下の間隔が渡されたときの同期間隔。
	DefaultInterval = time.Hour
)

// UserMediaSyncer はユーザー1人分のメディア同期。*media.Service が満たす。
type UserMediaSyncer interface {
	SyncUserMedia(ctx context.Context, userID string) ([]model.MediaItemSummary, error)
}

// RunResult は1サイクル分の同期結果。
type RunResult struct {
	Accounts  int
	Succeeded int
	Failed    int
}

// Scheduler はメディア同期のスケジューリングと並列制御を行う。
type Scheduler struct {
	accountRepo    repository.SocialAccountRepository
	syncer         UserMediaSyncer
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerを生成する。
// maxConcurrencyが0以下の場合はDefaultMaxConcurrencyを使用する。
func NewScheduler(
	accountRepo repository.SocialAccountRepository,
	syncer UserMediaSyncer,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		accountRepo:    accountRepo,
		syncer:         syncer,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は起動直後に1回、その後interval間隔で同期サイクルを実行する。
// コンテキストがキャンセルされるまで戻らない。
// intervalが0以下の場合はDefaultIntervalを使用する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.logger.Warn("同期間隔が不正なため既定値を使用します",
			slog.Duration("requested", interval),
			slog.Duration("interval", DefaultInterval),
		)
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("メディア同期スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	s.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("メディア同期スケジューラを停止しました")
			return
		case <-ticker.C:
			s.runAndLog(ctx)
		}
	}
}

func (s *Scheduler) runAndLog(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("同期サイクルの実行に失敗しました", slog.String("error", err.Error()))
	}
}

// RunOnce はInstagram連携済みの全ユーザーについて同期を1回ずつ実行する。
// 個々のユーザーの失敗はログに記録し、他のユーザーの同期は継続する。
func (s *Scheduler) RunOnce(ctx context.Context) (RunResult, error) {
	start := time.Now()

	accounts, err := s.accountRepo.ListByNetwork(ctx, model.NetworkInstagram)
	if err != nil {
		return RunResult{}, err
	}

	result := RunResult{Accounts: len(accounts)}
	if len(accounts) == 0 {
		s.logger.Info("同期対象のアカウントはありません")
		return result, nil
	}

	s.logger.Info("同期サイクルを開始します", slog.Int("account_count", len(accounts)))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.maxConcurrency)
	)

loop:
	for _, account := range accounts {
		select {
		case <-ctx.Done():
			break loop
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			defer func() { <-sem }()

			items, err := s.syncer.SyncUserMedia(ctx, userID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				s.logger.Error("メディア同期に失敗しました",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				return
			}
			result.Succeeded++
			s.logger.Debug("メディア同期に成功しました",
				slog.String("user_id", userID),
				slog.Int("media_count", len(items)),
			)
		}(account.UserID)
	}

	wg.Wait()

	s.logger.Info("同期サイクルが完了しました",
		slog.Int("account_count", result.Accounts),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return result, ctx.Err()
}
