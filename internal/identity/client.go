// Package identity は外部の認証・チーム管理サービス（IdP）との連携機能を提供する。
// ユーザー、チーム、チームメンバーシップ、課金用チェックアウトURLをREST APIで扱う。
package identity

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

	"github.com/hitoshi/blossom/internal/model"
)

const userAgent = "Blossom/1.0"

// ErrNotFound はIdP上に対象が存在しない場合のエラー。
// 公開メソッドはこれを (nil, nil) に変換して返す。
var ErrNotFound = errors.New("identity: resource not found")

// Config はIdPクライアントの接続設定。
type Config struct {
	BaseURL   string // 例: https://api.stack-auth.com
	ProjectID string
	SecretKey string
}

// Client はIdPのサーバーAPIクライアント。
// すべての呼び出しはサーバーキーで認証され、リトライは行わない。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
	projectID  string
	secretKey  string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/"),
		projectID:  cfg.ProjectID,
		secretKey:  cfg.SecretKey,
	}
}

type userResponse struct {
	ID             string         `json:"id"`
	DisplayName    string         `json:"display_name"`
	PrimaryEmail   string         `json:"primary_email"`
	ClientMetadata map[string]any `json:"client_metadata"`
}

func (r *userResponse) toModel() *model.User {
	u := &model.User{
		ID:          r.ID,
		DisplayName: r.DisplayName,
		Email:       r.PrimaryEmail,
	}
	if status, ok := r.ClientMetadata["subscriptionStatus"].(string); ok {
		u.SubscriptionStatus = status
	}
	return u
}

type teamResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

func (r *teamResponse) toModel() *model.Team {
	return &model.Team{ID: r.ID, DisplayName: r.DisplayName, Description: r.Description}
}

type teamListResponse struct {
	Items []teamResponse `json:"items"`
}

// GetUser はユーザーを取得する。存在しない場合はnilを返す。
func (c *Client) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var resp userResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/users/"+url.PathEscape(userID), nil, &resp)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return resp.toModel(), nil
}

// GetTeam はチームを取得する。存在しない場合はnilを返す。
func (c *Client) GetTeam(ctx context.Context, teamID string) (*model.Team, error) {
	var resp teamResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/teams/"+url.PathEscape(teamID), nil, &resp)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チームの取得に失敗しました: %w", err)
	}
	return resp.toModel(), nil
}

// ListUserTeams はユーザーが所属するチーム一覧を返す。
// IdPがユーザーを知らない（404）場合は所属なしとして空の一覧を返す。
func (c *Client) ListUserTeams(ctx context.Context, userID string) ([]*model.Team, error) {
	var resp teamListResponse
	path := "/api/v1/teams?user_id=" + url.QueryEscape(userID)
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	if errors.Is(err, ErrNotFound) {
		return []*model.Team{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("所属チーム一覧の取得に失敗しました: %w", err)
	}

	teams := make([]*model.Team, 0, len(resp.Items))
	for i := range resp.Items {
		teams = append(teams, resp.Items[i].toModel())
	}
	return teams, nil
}

// GetUserTeam はユーザーが指定チームに所属していればそのチームを返す。
// 所属していない場合はnilを返す。結果はキャッシュしない。
func (c *Client) GetUserTeam(ctx context.Context, userID, teamID string) (*model.Team, error) {
	teams, err := c.ListUserTeams(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, t := range teams {
		if t.ID == teamID {
			return t, nil
		}
	}
	return nil, nil
}

// CreateTeam はチームを作成する。
func (c *Client) CreateTeam(ctx context.Context, displayName string) (*model.Team, error) {
	body := map[string]string{"display_name": displayName}
	var resp teamResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/teams", body, &resp); err != nil {
		return nil, fmt.Errorf("チームの作成に失敗しました: %w", err)
	}
	return resp.toModel(), nil
}

// AddUser はユーザーをチームに追加する。
func (c *Client) AddUser(ctx context.Context, teamID, userID string) error {
	path := "/api/v1/team-memberships/" + url.PathEscape(teamID) + "/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodPost, path, map[string]string{}, nil); err != nil {
		return fmt.Errorf("チームへのメンバー追加に失敗しました: %w", err)
	}
	return nil
}

// RemoveUser はユーザーをチームから外す。
func (c *Client) RemoveUser(ctx context.Context, teamID, userID string) error {
	path := "/api/v1/team-memberships/" + url.PathEscape(teamID) + "/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("チームからのメンバー削除に失敗しました: %w", err)
	}
	return nil
}

// CreateCheckoutURL はユーザー向けの購入ページURLを発行する。
func (c *Client) CreateCheckoutURL(ctx context.Context, userID, offerID string) (string, error) {
	body := map[string]string{
		"customer_type": "user",
		"customer_id":   userID,
		"offer_id":      offerID,
	}
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/payments/purchases/create-purchase-url", body, &resp); err != nil {
		return "", fmt.Errorf("チェックアウトURLの発行に失敗しました: %w", err)
	}
	if resp.URL == "" {
		return "", errors.New("チェックアウトURLが空です")
	}
	return resp.URL, nil
}

// do はリクエストを送信し、2xxのレスポンスをoutにデコードする。
// 404はErrNotFoundを返す。
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("リクエストJSONの生成に失敗しました: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Stack-Access-Type", "server")
	req.Header.Set("X-Stack-Project-Id", c.projectID)
	req.Header.Set("X-Stack-Secret-Server-Key", c.secretKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("IdP APIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("IdP APIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("IdP APIがステータス %d を返しました", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}
