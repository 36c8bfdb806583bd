// Package auth はパスワードハッシュ、セッショントークンの発行・検証、
// ログイン・ユーザー登録を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhgaldino/socialsynchub/internal/cache"
	"github.com/jhgaldino/socialsynchub/internal/metrics"
	"github.com/jhgaldino/socialsynchub/internal/model"
	"github.com/jhgaldino/socialsynchub/internal/repository"
)

// Recorder は認証結果のメトリクス記録インターフェース。
type Recorder interface {
	RecordLogin(result string)
	RecordRegistration(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordLogin(string)        {}
func (nopRecorder) RecordRegistration(string) {}

// RegisterInput はユーザー登録の入力。
// パスワードの強度と確認用パスワードの一致はハンドラー層で検証済みであること。
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	codec     *TokenCodec
	userCache cache.Cache
	recorder  Recorder
	now       func() time.Time
}

// NewService はServiceを生成する。
// userCacheにはユーザーサマリーのキャッシュを渡す。ログインで最終ログイン日時が
// 変わるとエントリを破棄する。nilの場合は何もしない。
// recorderがnilの場合はメトリクスを記録しない。
func NewService(userRepo repository.UserRepository, codec *TokenCodec, userCache cache.Cache, recorder Recorder) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		userRepo:  userRepo,
		codec:     codec,
		userCache: userCache,
		recorder:  recorder,
		now:       time.Now,
	}
}

// Login はメールアドレスとパスワードで認証し、セッショントークンを発行する。
// メールアドレス未登録はNotFound、パスワード不一致はValidationのAPIErrorを返す。
// 成功時は最終ログイン日時を更新する。
func (s *Service) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		s.recorder.RecordLogin(metrics.ResultError)
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.recorder.RecordLogin(metrics.ResultFailure)
		return nil, model.NewUnknownEmailError()
	}

	if !VerifyPassword(password, user.PasswordHash) {
		s.recorder.RecordLogin(metrics.ResultFailure)
		slog.Info("login rejected", slog.String("user_id", user.ID), slog.String("reason", "password_mismatch"))
		return nil, model.NewPasswordMismatchError()
	}

	now := s.now().UTC()
	user.LastLoginAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.recorder.RecordLogin(metrics.ResultError)
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}
	s.invalidateUserCache(ctx, user.ID)

	resp, err := s.issue(user)
	if err != nil {
		s.recorder.RecordLogin(metrics.ResultError)
		return nil, err
	}

	s.recorder.RecordLogin(metrics.ResultSuccess)
	slog.Info("user logged in", slog.String("user_id", user.ID))
	return resp, nil
}

// invalidateUserCache はキャッシュ済みのユーザーサマリーを破棄する。
// 失敗してもTTLで失効するのでログに残して続行する。
func (s *Service) invalidateUserCache(ctx context.Context, userID string) {
	if s.userCache == nil {
		return
	}
	if err := s.userCache.Delete(ctx, cache.UserKey(userID)); err != nil {
		slog.Warn("failed to invalidate user cache",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// Register はユーザーを作成し、セッショントークンを発行する。
// メールアドレスが登録済みの場合はConflictのAPIErrorを返し、既存ユーザーは変更しない。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.AuthResponse, error) {
	email := strings.TrimSpace(in.Email)

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		s.recorder.RecordRegistration(metrics.ResultError)
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		s.recorder.RecordRegistration(metrics.ResultFailure)
		return nil, model.NewEmailAlreadyExistsError(email)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: HashPassword(in.Password),
		CreatedAt:    s.now().UTC(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 事前チェック後に同じメールアドレスで登録された場合
		if errors.Is(err, repository.ErrDuplicate) {
			s.recorder.RecordRegistration(metrics.ResultFailure)
			return nil, model.NewEmailAlreadyExistsError(email)
		}
		s.recorder.RecordRegistration(metrics.ResultError)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	resp, err := s.issue(user)
	if err != nil {
		s.recorder.RecordRegistration(metrics.ResultError)
		return nil, err
	}

	s.recorder.RecordRegistration(metrics.ResultSuccess)
	slog.Info("user registered", slog.String("user_id", user.ID))
	return resp, nil
}

// RefreshToken はリフレッシュトークンによるセッショントークンの再発行。
// リフレッシュトークンを保存・検証する仕組みがないため、常にNotImplementedを返す。
func (s *Service) RefreshToken(_ context.Context, _ string) (*model.AuthResponse, error) {
	return nil, model.NewRefreshNotImplementedError()
}

// ValidateToken はセッショントークンが有効かを返す。
func (s *Service) ValidateToken(token string) bool {
	return s.codec.Validate(token)
}

func (s *Service) issue(user *model.User) (*model.AuthResponse, error) {
	issued, err := s.codec.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}
	return &model.AuthResponse{
		Token:        issued.Token,
		RefreshToken: issued.RefreshToken,
		ExpiresAt:    issued.ExpiresAt,
		User:         user.Summary(),
	}, nil
}
