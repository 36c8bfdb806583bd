package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jhgaldino/socialsynchub/internal/model"
	"github.com/jhgaldino/socialsynchub/internal/social"
)

// SocialServiceInterface は連携アカウントハンドラーが必要とするサービスインターフェース。
type SocialServiceInterface interface {
	ListAccounts(ctx context.Context, userID string) ([]model.SocialAccountSummary, error)
	Connect(ctx context.Context, req social.ConnectRequest) (*model.SocialAccountSummary, error)
	Disconnect(ctx context.Context, userID string, network model.NetworkType) (bool, error)
}

// SocialHandler は連携アカウント管理のHTTPハンドラー。
type SocialHandler struct {
	service SocialServiceInterface
}

// NewSocialHandler はSocialHandlerを生成する。
func NewSocialHandler(service SocialServiceInterface) *SocialHandler {
	return &SocialHandler{service: service}
}

type connectRequest struct {
	NetworkType  string  `json:"network_type"`
	AccessToken  string  `json:"access_token"`
	RefreshToken *string `json:"refresh_token,omitempty"`
	Username     *string `json:"username,omitempty"`
}

type disconnectResponse struct {
	Disconnected bool `json:"disconnected"`
}

// List は認証ユーザーの連携アカウント一覧を返す。
// GET /api/social-accounts
func (h *SocialHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accounts)
}

// Connect は認証ユーザーにソーシャルアカウントを連携する。
// POST /api/social-accounts
func (h *SocialHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req connectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	network, err := model.ParseNetworkType(req.NetworkType)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("アクセストークンは必須です"))
		return
	}

	account, err := h.service.Connect(r.Context(), social.ConnectRequest{
		UserID:       userID,
		Network:      network,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		Username:     req.Username,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// Disconnect は指定ネットワークの連携を解除する。連携がない場合は404を返す。
// DELETE /api/social-accounts/{network}
func (h *SocialHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	network, err := model.ParseNetworkType(chi.URLParam(r, "network"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	removed, err := h.service.Disconnect(r.Context(), userID, network)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !removed {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAccountNotLinkedError(network))
		return
	}

	writeJSON(w, http.StatusOK, disconnectResponse{Disconnected: true})
}
