// Package backend は永続化サービス（REST API）の型付きクライアントを提供する。
//
// 本コアは永続化サービスを実装せず、HTTPで外部コラボレーターとして消費する。
// HTTPエラーは型付きエラー（NotFoundError / ConflictError / RemoteError /
// DecodeError）に変換され、呼び出し元が構造的に分岐できる。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/biolog/internal/model"
)

// maxErrorBodyBytes はエラーレスポンスボディをログ・エラーに含める際の上限。
const maxErrorBodyBytes = 2048

// Client は永続化サービスのHTTPクライアント。
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは末尾スラッシュなしの形式に正規化される（例: http://localhost:5189/api）。
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// do はリクエストを実行し、ステータスを型付きエラーに変換する。
// 2xxの場合はoutが非nilならレスポンスJSONをデコードする。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, resource string) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("永続化サービスの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("永続化サービスの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fallthroughせずに下のデコード処理へ
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Resource: resource}
	case resp.StatusCode == http.StatusConflict:
		return &ConflictError{Resource: resource}
	default:
		detail := string(respBody)
		if len(detail) > maxErrorBodyBytes {
			detail = detail[:maxErrorBodyBytes]
		}
		c.logger.Error("永続化サービスがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return &RemoteError{Method: method, Path: path, Status: resp.StatusCode, Body: detail}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &DecodeError{Resource: resource, Err: err}
	}
	return nil
}

// --- Users ---

// FindUserByEmail はメールアドレスで内部ユーザーを検索する。
// 該当するユーザーが存在しない場合はnilを返す（エラーにはしない）。
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := url.Values{"email": {email}}
	var dtos []userDTO
	if err := c.do(ctx, http.MethodGet, "/Users", query, nil, &dtos, "Users"); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, dto := range dtos {
		if strings.EqualFold(dto.Email, email) {
			return dto.toModel(), nil
		}
	}
	return nil, nil
}

// CreateUser は内部ユーザーレコードを作成し、採番済みのレコードを返す。
func (c *Client) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	body := userWriteDTO{
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Email:        user.Email,
		Provider:     user.Provider,
		ExternalID:   user.ExternalID,
		MotivationID: user.MotivationID,
	}
	var dto userDTO
	if err := c.do(ctx, http.MethodPost, "/Users", nil, body, &dto, "Users"); err != nil {
		return nil, err
	}
	return dto.toModel(), nil
}

// UpdateUserMotivation はユーザーのMotivation割り当てを更新する。
func (c *Client) UpdateUserMotivation(ctx context.Context, user *model.User, motivationID *int64) (*model.User, error) {
	body := userWriteDTO{
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Email:        user.Email,
		Provider:     user.Provider,
		ExternalID:   user.ExternalID,
		MotivationID: motivationID,
	}
	var dto userDTO
	path := fmt.Sprintf("/Users/%d", user.ID)
	if err := c.do(ctx, http.MethodPut, path, nil, body, &dto, "Users"); err != nil {
		return nil, err
	}
	return dto.toModel(), nil
}

// GetUser は指定IDの内部ユーザーを取得する。見つからない場合はnilを返す。
func (c *Client) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var dto userDTO
	path := fmt.Sprintf("/Users/%d", id)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &dto, "Users"); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return dto.toModel(), nil
}

// --- Motivations ---

// ListMotivations は全Motivationを取得する。
func (c *Client) ListMotivations(ctx context.Context) ([]*model.Motivation, error) {
	var dtos []motivationDTO
	if err := c.do(ctx, http.MethodGet, "/Motivations", nil, nil, &dtos, "Motivations"); err != nil {
		return nil, err
	}
	results := make([]*model.Motivation, len(dtos))
	for i, dto := range dtos {
		results[i] = dto.toModel()
	}
	return results, nil
}

// GetMotivation は指定IDのMotivationを取得する。見つからない場合はnilを返す。
func (c *Client) GetMotivation(ctx context.Context, id int64) (*model.Motivation, error) {
	var dto motivationDTO
	path := fmt.Sprintf("/Motivations/%d", id)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &dto, "Motivations"); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return dto.toModel(), nil
}

// CreateMotivation はMotivationを作成し、採番済みのレコードを返す。
func (c *Client) CreateMotivation(ctx context.Context, m *model.Motivation) (*model.Motivation, error) {
	body := motivationWriteDTO{
		Title:       m.Title,
		Description: m.Description,
		Category:    string(m.Category),
	}
	var dto motivationDTO
	if err := c.do(ctx, http.MethodPost, "/Motivations", nil, body, &dto, "Motivations"); err != nil {
		return nil, err
	}
	return dto.toModel(), nil
}

// UpdateMotivation は既存のMotivationを更新する。
func (c *Client) UpdateMotivation(ctx context.Context, m *model.Motivation) (*model.Motivation, error) {
	body := motivationWriteDTO{
		Title:       m.Title,
		Description: m.Description,
		Category:    string(m.Category),
	}
	var dto motivationDTO
	path := fmt.Sprintf("/Motivations/%d", m.ID)
	if err := c.do(ctx, http.MethodPut, path, nil, body, &dto, "Motivations"); err != nil {
		return nil, err
	}
	return dto.toModel(), nil
}

// DeleteMotivation は指定IDのMotivationを削除する。
func (c *Client) DeleteMotivation(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/Motivations/%d", id)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil, "Motivations")
}

// ListMotivationBiohacks は指定Motivationに紐付くBiohack一覧を取得する。
// 404は「紐付きなし」として空リストを返す。
func (c *Client) ListMotivationBiohacks(ctx context.Context, motivationID int64) ([]*model.Biohack, error) {
	var dtos []biohackDTO
	path := fmt.Sprintf("/Motivations/%d/biohacks", motivationID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &dtos, "MotivationBiohacks"); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	results := make([]*model.Biohack, len(dtos))
	for i, dto := range dtos {
		results[i] = dto.toModel()
	}
	return results, nil
}

// --- Biohacks ---

// ListBiohacks は全Biohackを取得する。
func (c *Client) ListBiohacks(ctx context.Context) ([]*model.Biohack, error) {
	var dtos []biohackDTO
	if err := c.do(ctx, http.MethodGet, "/Biohacks", nil, nil, &dtos, "Biohacks"); err != nil {
		return nil, err
	}
	results := make([]*model.Biohack, len(dtos))
	for i, dto := range dtos {
		results[i] = dto.toModel()
	}
	return results, nil
}

// GetBiohack は指定IDのBiohackを取得する。見つからない場合はnilを返す。
func (c *Client) GetBiohack(ctx context.Context, id int64) (*model.Biohack, error) {
	var dto biohackDTO
	path := fmt.Sprintf("/Biohacks/%d", id)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &dto, "Biohacks"); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return dto.toModel(), nil
}

// CreateBiohack はBiohackを作成し、採番済みのレコードを返す。
// 研究引用はEncodeStudiesで文字列化してから送信する。
func (c *Client) CreateBiohack(ctx context.Context, b *model.Biohack) (*model.Biohack, error) {
	body, err := toBiohackWriteDTO(b)
	if err != nil {
		return nil, err
	}
	var dto biohackDTO
	if err := c.do(ctx, http.MethodPost, "/Biohacks", nil, body, &dto, "Biohacks"); err != nil {
		return nil, err
	}
	return dto.toModel(), nil
}

// UpdateBiohack は既存のBiohackを更新する。
func (c *Client) UpdateBiohack(ctx context.Context, b *model.Biohack) (*model.Biohack, error) {
	body, err := toBiohackWriteDTO(b)
	if err != nil {
		return nil, err
	}
	var dto biohackDTO
	path := fmt.Sprintf("/Biohacks/%d", b.ID)
	if err := c.do(ctx, http.MethodPut, path, nil, body, &dto, "Biohacks"); err != nil {
		return nil, err
	}
	return dto.toModel(), nil
}

// DeleteBiohack は指定IDのBiohackを削除する。
func (c *Client) DeleteBiohack(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/Biohacks/%d", id)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil, "Biohacks")
}

// --- Journals ---

// CreateJournal は進捗エントリを作成し、採番済みのレコードを返す。
func (c *Client) CreateJournal(ctx context.Context, j *model.Journal) (*model.Journal, error) {
	body := journalWriteDTO{
		UserID:    j.UserID,
		BiohackID: j.BiohackID,
		Notes:     j.Notes,
		Rating:    j.Rating,
		DateTime:  j.Date,
	}
	var dto journalDTO
	if err := c.do(ctx, http.MethodPost, "/Journals", nil, body, &dto, "Journals"); err != nil {
		return nil, err
	}
	saved := dto.toModel()
	// 永続化サービスがbiohackNameを返さない場合は入力値で補完する
	if saved.BiohackTitle == "" {
		saved.BiohackTitle = j.BiohackTitle
	}
	return saved, nil
}

// ListJournals は指定 (user, biohack) ペアの進捗エントリを全件取得する。
// 404の扱い（履歴なし=空）は呼び出し元で判断するため、ここではそのまま返す。
func (c *Client) ListJournals(ctx context.Context, userID, biohackID int64) ([]*model.Journal, error) {
	var dtos []journalDTO
	path := fmt.Sprintf("/Journals/user/%d/biohack/%d", userID, biohackID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &dtos, "Journals"); err != nil {
		return nil, err
	}
	results := make([]*model.Journal, len(dtos))
	for i, dto := range dtos {
		results[i] = dto.toModel()
	}
	return results, nil
}

// --- MotivationBiohacks ---

// ListLinks は全関連を (motivationId, biohackId) ペアのリストとして取得する。
func (c *Client) ListLinks(ctx context.Context) ([]model.MotivationBiohackLink, error) {
	var dtos []linkDTO
	if err := c.do(ctx, http.MethodGet, "/MotivationBiohacks", nil, nil, &dtos, "MotivationBiohacks"); err != nil {
		return nil, err
	}
	results := make([]model.MotivationBiohackLink, len(dtos))
	for i, dto := range dtos {
		results[i] = dto.toModel()
	}
	return results, nil
}

// CreateLink はMotivationとBiohackの関連を作成する。
// 既に関連が存在する場合、永続化サービスは409を返し、ConflictErrorに変換される。
func (c *Client) CreateLink(ctx context.Context, motivationID, biohackID int64) error {
	body := linkDTO{MotivationID: motivationID, BiohackID: biohackID}
	return c.do(ctx, http.MethodPost, "/MotivationBiohacks/link", nil, body, nil, "MotivationBiohacks")
}

// DeleteLink はMotivationとBiohackの関連を削除する。
func (c *Client) DeleteLink(ctx context.Context, motivationID, biohackID int64) error {
	body := linkDTO{MotivationID: motivationID, BiohackID: biohackID}
	return c.do(ctx, http.MethodPost, "/MotivationBiohacks/unlink", nil, body, nil, "MotivationBiohacks")
}
