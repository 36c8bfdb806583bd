package social

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jhgaldino/socialsynchub/internal/instagram"
	"github.com/jhgaldino/socialsynchub/internal/model"
)

// InstagramAuthorizer はInstagramの認可フローに必要な外部クライアントの操作。
// *instagram.Client が満たす。
type InstagramAuthorizer interface {
	AuthorizationURL(userID string) string
	ExchangeCodeForToken(ctx context.Context, code, redirectURI string) (*instagram.TokenResult, error)
	FetchProfile(ctx context.Context, accessToken string) (*instagram.Profile, error)
}

// InstagramLinker はInstagramの認可コードフローを連携アカウントの作成につなぐ。
// stateにユーザーIDを埋め込み、コールバック時にサーバー側セッションなしでユーザーを復元する。
type InstagramLinker struct {
	client  InstagramAuthorizer
	service *Service
	logger  *slog.Logger
}

// NewInstagramLinker はInstagramLinkerを生成する。
func NewInstagramLinker(client InstagramAuthorizer, service *Service, logger *slog.Logger) *InstagramLinker {
	if logger == nil {
		logger = slog.Default()
	}
	return &InstagramLinker{client: client, service: service, logger: logger}
}

// StartAuthorization はユーザーをリダイレクトする認可URLを返す。
func (l *InstagramLinker) StartAuthorization(userID string) string {
	return l.client.AuthorizationURL(userID)
}

// CompleteAuthorization は認可コードをアクセストークンに交換し、Instagramアカウントを連携する。
// 既に連携済みの場合はConflictを返す。
func (l *InstagramLinker) CompleteAuthorization(ctx context.Context, state, code, redirectURI string) (*model.SocialAccountSummary, error) {
	userID, err := uuid.Parse(state)
	if err != nil {
		return nil, model.NewInvalidStateError()
	}
	if code == "" {
		return nil, model.NewInvalidInputError("authorization code is required")
	}

	token, err := l.client.ExchangeCodeForToken(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}

	username := token.ExternalUserID
	profile, err := l.client.FetchProfile(ctx, token.AccessToken)
	if err != nil {
		l.logger.Warn("failed to fetch instagram profile, using external user id as username",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
	} else if profile.Username != "" {
		username = profile.Username
	}

	return l.service.Connect(ctx, ConnectRequest{
		UserID:      userID.String(),
		Network:     model.NetworkInstagram,
		AccessToken: token.AccessToken,
		Username:    &username,
	})
}
