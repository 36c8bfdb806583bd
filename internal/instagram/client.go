// Package instagram はInstagramの認可コード交換とGraph APIの呼び出しを提供する。
// 状態は持たず、トークンの保存は呼び出し元が行う。
package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jhgaldino/socialsynchub/internal/model"
	"golang.org/x/oauth2"
)

const (
	defaultAuthURL  = "https://api.instagram.com/oauth/authorize"
	defaultTokenURL = "https://api.instagram.com/oauth/access_token"
	defaultGraphURL = "https://graph.instagram.com"
	defaultScope    = "user_profile,user_media"

	// mediaFields はメディア一覧で取得するフィールド。
	mediaFields = "id,media_type,media_url,caption,timestamp"
	// maxResponseSize はレスポンスボディの読み取り上限。
	maxResponseSize = 1 << 20

	providerName = "Instagram"
)

// timestampLayout はGraph APIが返すtimestampの形式（例: 2017-08-31T18:10:00+0000）。
const timestampLayout = "2006-01-02T15:04:05-0700"

// Config はInstagramクライアントの設定。
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	GraphURL string
}

// TokenResult は認可コード交換の結果。
type TokenResult struct {
	AccessToken    string
	ExternalUserID string
}

// MediaPage はメディア一覧の1ページ分。NextCursorが空なら最終ページ。
type MediaPage struct {
	Items      []model.ExternalMediaItem
	NextCursor string
}

// Profile はInstagramアカウントのプロフィール。
type Profile struct {
	ID       string
	Username string
}

// Client はInstagram APIのクライアント。
type Client struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	logger     *slog.Logger
	tokenURL   string
	graphURL   string
}

// NewClient はClientの新しいインスタンスを生成する。
// httpClientには本番ではSSRFガード付きのクライアントを渡す。
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.GraphURL == "" {
		cfg.GraphURL = defaultGraphURL
	}
	if cfg.Scope == "" {
		cfg.Scope = defaultScope
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			// Instagramはカンマ区切りのscopeを1つの値として受け取る
			Scopes: []string{cfg.Scope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		logger:     logger,
		tokenURL:   cfg.TokenURL,
		graphURL:   strings.TrimRight(cfg.GraphURL, "/"),
	}
}

// AuthorizationURL は認可画面のURLを生成する。
// stateにユーザーIDを埋め込み、コールバックでサーバー側セッションなしにユーザーを特定できるようにする。
func (c *Client) AuthorizationURL(userID string) string {
	return c.oauth.AuthCodeURL(userID)
}

// tokenResponse はトークンエンドポイントのレスポンス。
// user_idは64bit整数のためjson.Numberで受け取る。
type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	UserID      json.Number `json:"user_id"`
}

// ExchangeCodeForToken は認可コードをアクセストークンに交換する。
// redirectURIが空の場合は設定のリダイレクトURLを使用する。
// 2xx以外のステータスはレスポンス本文を含むExternalServiceのAPIErrorとして返す。
func (c *Client) ExchangeCodeForToken(ctx context.Context, code, redirectURI string) (*TokenResult, error) {
	if redirectURI == "" {
		redirectURI = c.oauth.RedirectURL
	}

	form := url.Values{
		"client_id":     {c.oauth.ClientID},
		"client_secret": {c.oauth.ClientSecret},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {redirectURI},
		"code":          {code},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "token_exchange")
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var tr tokenResponse
	if err := dec.Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" || tr.UserID == "" {
		return nil, model.NewExternalServiceError(providerName, http.StatusOK, "token response is missing access_token or user_id")
	}

	return &TokenResult{
		AccessToken:    tr.AccessToken,
		ExternalUserID: tr.UserID.String(),
	}, nil
}

// mediaResponse はメディア一覧エンドポイントのレスポンス。
type mediaResponse struct {
	Data []struct {
		ID        string  `json:"id"`
		MediaType string  `json:"media_type"`
		MediaURL  string  `json:"media_url"`
		Caption   *string `json:"caption"`
		Timestamp string  `json:"timestamp"`
	} `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

// FetchMediaPage はアクセストークンの所有者のメディア一覧を1ページ取得する。
// afterには前ページのNextCursorを渡す。空の場合は先頭ページ。
func (c *Client) FetchMediaPage(ctx context.Context, accessToken, after string) (*MediaPage, error) {
	q := url.Values{
		"fields":       {mediaFields},
		"access_token": {accessToken},
	}
	if after != "" {
		q.Set("after", after)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.graphURL+"/me/media?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create media request: %w", err)
	}

	body, err := c.do(req, "media")
	if err != nil {
		return nil, err
	}

	var mr mediaResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, fmt.Errorf("failed to decode media response: %w", err)
	}

	page := &MediaPage{Items: make([]model.ExternalMediaItem, 0, len(mr.Data))}
	for _, d := range mr.Data {
		ts, err := parseTimestamp(d.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("media %s: %w", d.ID, err)
		}
		page.Items = append(page.Items, model.ExternalMediaItem{
			ID:        d.ID,
			MediaType: d.MediaType,
			MediaURL:  d.MediaURL,
			Caption:   d.Caption,
			Timestamp: ts,
		})
	}
	// 最終ページでもcursors.afterは返るため、nextの有無で続きを判定する
	if mr.Paging.Next != "" {
		page.NextCursor = mr.Paging.Cursors.After
	}

	return page, nil
}

// FetchProfile はアクセストークンの所有者のプロフィールを取得する。
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	q := url.Values{
		"fields":       {"id,username"},
		"access_token": {accessToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.graphURL+"/me?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}

	body, err := c.do(req, "profile")
	if err != nil {
		return nil, err
	}

	var p struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile response: %w", err)
	}
	return &Profile{ID: p.ID, Username: p.Username}, nil
}

// do はリクエストを実行し、2xxであればレスポンス本文を返す。
// URLにアクセストークンを含むため、通信エラーからURLを取り除いてから返す。
func (c *Client) do(req *http.Request, operation string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		c.logger.Error("Instagram APIの呼び出しに失敗しました",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("instagram %s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read instagram %s response: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("Instagram APIがエラーステータスを返しました",
			slog.String("operation", operation),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewExternalServiceError(providerName, resp.StatusCode, string(body))
	}

	return body, nil
}

// parseTimestamp はGraph APIのtimestampを解析する。RFC3339形式も受け付ける。
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return t.UTC(), nil
}
