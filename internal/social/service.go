// Package social はユーザーと外部ソーシャルネットワークアカウントの連携を管理する。
//
// 連携の状態は (ユーザー, ネットワーク) の組ごとに「未連携」と「連携済み」の2つのみ。
// Connectで未連携から連携済みへ、Disconnectで連携済みから未連携へ遷移する。
// 連携済みのまま再度Connectすることはできない。
package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhgaldino/socialsynchub/internal/metrics"
	"github.com/jhgaldino/socialsynchub/internal/model"
	"github.com/jhgaldino/socialsynchub/internal/repository"
)

// DefaultAccountTTL は連携アカウントの既定の有効期限（60日）。
const DefaultAccountTTL = 60 * 24 * time.Hour

// Recorder は連携操作のメトリクス記録インターフェース。
type Recorder interface {
	RecordSocialLink(network, action string)
}

type nopRecorder struct{}

func (nopRecorder) RecordSocialLink(string, string) {}

// ConnectRequest は連携アカウント作成の入力。
type ConnectRequest struct {
	UserID       string
	Network      model.NetworkType
	AccessToken  string
	RefreshToken *string
	Username     *string
}

// Service は連携アカウントのライフサイクルを管理する。
type Service struct {
	userRepo    repository.UserRepository
	accountRepo repository.SocialAccountRepository
	accountTTL  time.Duration
	recorder    Recorder
	now         func() time.Time
}

// NewService はServiceを生成する。
// accountTTLが0以下の場合はDefaultAccountTTLを使用する。
func NewService(userRepo repository.UserRepository, accountRepo repository.SocialAccountRepository, accountTTL time.Duration, recorder Recorder) *Service {
	if accountTTL <= 0 {
		accountTTL = DefaultAccountTTL
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		userRepo:    userRepo,
		accountRepo: accountRepo,
		accountTTL:  accountTTL,
		recorder:    recorder,
		now:         time.Now,
	}
}

// ListAccounts はユーザーの連携アカウント一覧を返す。連携がない場合は空のスライスを返す。
func (s *Service) ListAccounts(ctx context.Context, userID string) ([]model.SocialAccountSummary, error) {
	accounts, err := s.accountRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list social accounts: %w", err)
	}

	summaries := make([]model.SocialAccountSummary, 0, len(accounts))
	for _, a := range accounts {
		summaries = append(summaries, a.Summary())
	}
	return summaries, nil
}

// Connect はユーザーと外部アカウントを連携する。
// ユーザーが存在しない場合はNotFound、同一ネットワークが連携済みの場合はConflictを返す。
func (s *Service) Connect(ctx context.Context, req ConnectRequest) (*model.SocialAccountSummary, error) {
	if !req.Network.Valid() {
		return nil, model.NewInvalidNetworkError(string(req.Network))
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		return nil, model.NewInvalidInputError("access token is required")
	}

	exists, err := s.userRepo.ExistsByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return nil, model.NewUserNotFoundError()
	}

	// 事前チェックはエラーメッセージのため。最終的な一意性はストアのUNIQUE制約で保証する。
	linked, err := s.accountRepo.FindByUserAndNetwork(ctx, req.UserID, req.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to find social account: %w", err)
	}
	if linked != nil {
		return nil, model.NewAccountAlreadyLinkedError(req.Network)
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.accountTTL)
	account := &model.SocialAccount{
		ID:           uuid.New().String(),
		UserID:       req.UserID,
		NetworkType:  req.Network,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresAt:    &expiresAt,
		Username:     req.Username,
		CreatedAt:    now,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewAccountAlreadyLinkedError(req.Network)
		}
		return nil, fmt.Errorf("failed to create social account: %w", err)
	}

	s.recorder.RecordSocialLink(string(req.Network), metrics.ActionConnect)
	slog.Info("social account connected",
		slog.String("user_id", req.UserID),
		slog.String("network", string(req.Network)),
	)

	summary := account.Summary()
	return &summary, nil
}

// Disconnect は連携を解除する。連携が存在しない場合はNotFoundを返す。
func (s *Service) Disconnect(ctx context.Context, userID string, network model.NetworkType) (bool, error) {
	if !network.Valid() {
		return false, model.NewInvalidNetworkError(string(network))
	}

	account, err := s.accountRepo.FindByUserAndNetwork(ctx, userID, network)
	if err != nil {
		return false, fmt.Errorf("failed to find social account: %w", err)
	}
	if account == nil {
		return false, model.NewAccountNotLinkedError(network)
	}

	if err := s.accountRepo.Delete(ctx, account.ID); err != nil {
		// 同時に解除された場合
		if errors.Is(err, repository.ErrNotFound) {
			return false, model.NewAccountNotLinkedError(network)
		}
		return false, fmt.Errorf("failed to delete social account: %w", err)
	}

	s.recorder.RecordSocialLink(string(network), metrics.ActionDisconnect)
	slog.Info("social account disconnected",
		slog.String("user_id", userID),
		slog.String("network", string(network)),
	)
	return true, nil
}
