package handler

import (
	"context"
	"net/http"

	"github.com/jhgaldino/socialsynchub/internal/model"
)

// InstagramLinkerInterface はInstagram認可フローに必要な操作。
type InstagramLinkerInterface interface {
	StartAuthorization(userID string) string
	CompleteAuthorization(ctx context.Context, state, code, redirectURI string) (*model.SocialAccountSummary, error)
}

// MediaServiceInterface はメディア同期・一覧に必要な操作。
type MediaServiceInterface interface {
	SyncUserMedia(ctx context.Context, userID string) ([]model.MediaItemSummary, error)
	ListUserMedia(ctx context.Context, userID string) ([]model.MediaItemSummary, error)
}

// InstagramHandler はInstagram連携とメディア同期のHTTPハンドラー。
type InstagramHandler struct {
	linker      InstagramLinkerInterface
	media       MediaServiceInterface
	redirectURL string
}

// NewInstagramHandler はInstagramHandlerを生成する。
// redirectURLはコールバックでredirect_uriが省略された場合に使用する。
func NewInstagramHandler(linker InstagramLinkerInterface, media MediaServiceInterface, redirectURL string) *InstagramHandler {
	return &InstagramHandler{linker: linker, media: media, redirectURL: redirectURL}
}

type authStartResponse struct {
	URL string `json:"url"`
}

type callbackRequest struct {
	Code        string `json:"code"`
	State       string `json:"state"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

type syncResponse struct {
	Synced int                      `json:"synced"`
	Items  []model.MediaItemSummary `json:"items"`
}

// StartAuth は認証ユーザーのIDをstateに含めた認可URLを返す。
// GET /api/instagram/auth/start
func (h *InstagramHandler) StartAuth(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, authStartResponse{URL: h.linker.StartAuthorization(userID)})
}

// Callback は認可コードを受け取り、Instagramアカウントを連携する。
// GET /api/instagram/auth/callback?code=...&state=...
// POST /api/instagram/auth/callback
// プロバイダーからのリダイレクトで呼ばれるためセッショントークンを要求しない。
func (h *InstagramHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if r.Method == http.MethodPost {
		if !decodeJSON(w, r, &req) {
			return
		}
	} else {
		q := r.URL.Query()
		if msg := q.Get("error"); msg != "" {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("認可が拒否されました: "+msg))
			return
		}
		req = callbackRequest{
			Code:        q.Get("code"),
			State:       q.Get("state"),
			RedirectURI: q.Get("redirect_uri"),
		}
	}

	redirectURI := req.RedirectURI
	if redirectURI == "" {
		redirectURI = h.redirectURL
	}

	account, err := h.linker.CompleteAuthorization(r.Context(), req.State, req.Code, redirectURI)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// Sync は認証ユーザーのInstagramメディアを同期し、同期した項目を返す。
// POST /api/instagram/sync
func (h *InstagramHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	items, err := h.media.SyncUserMedia(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{Synced: len(items), Items: items})
}

// ListMedia は認証ユーザーの保存済みメディアを投稿日時の新しい順に返す。
// GET /api/instagram/media
func (h *InstagramHandler) ListMedia(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	items, err := h.media.ListUserMedia(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}
