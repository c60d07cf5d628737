// Package catalog はMotivationとBiohackのカタログ管理のドメインロジックを提供する。
// 管理画面向けのCRUD操作と、選択中Motivationに紐付くBiohack一覧の取得を含む。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/biolog/internal/backend"
	"github.com/hitoshi/biolog/internal/model"
	"github.com/hitoshi/biolog/internal/security"
)

// verifyTimeout は引用リンク到達確認のタイムアウト。
const verifyTimeout = 10 * time.Second

// CatalogStore はカタログの読み書きに必要なインターフェース。
// backend.Clientの部分集合として定義する。
type CatalogStore interface {
	ListMotivations(ctx context.Context) ([]*model.Motivation, error)
	GetMotivation(ctx context.Context, id int64) (*model.Motivation, error)
	CreateMotivation(ctx context.Context, m *model.Motivation) (*model.Motivation, error)
	UpdateMotivation(ctx context.Context, m *model.Motivation) (*model.Motivation, error)
	DeleteMotivation(ctx context.Context, id int64) error

	ListBiohacks(ctx context.Context) ([]*model.Biohack, error)
	GetBiohack(ctx context.Context, id int64) (*model.Biohack, error)
	CreateBiohack(ctx context.Context, b *model.Biohack) (*model.Biohack, error)
	UpdateBiohack(ctx context.Context, b *model.Biohack) (*model.Biohack, error)
	DeleteBiohack(ctx context.Context, id int64) error

	ListMotivationBiohacks(ctx context.Context, motivationID int64) ([]*model.Biohack, error)
}

// inflightFetch は実行中のBiohack一覧取得を表す。
// 同一Motivationへの重複リクエストは新しい取得を開始せず、この結果を待つ。
type inflightFetch struct {
	done     chan struct{}
	biohacks []*model.Biohack
	err      error
}

// Service はカタログ管理のサービス層。
type Service struct {
	store     CatalogStore
	guard     security.SourceURLGuardService
	sanitizer security.ContentSanitizerService

	// verifyClient は引用リンク到達確認用のSSRF防止付きHTTPクライアント。
	verifyClient *http.Client

	// 同一Motivationに対するBiohack一覧取得の同時重複を抑止するガード。
	inflightMu sync.Mutex
	inflight   map[int64]*inflightFetch
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store CatalogStore, guard security.SourceURLGuardService, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		store:        store,
		guard:        guard,
		sanitizer:    sanitizer,
		verifyClient: guard.NewSafeClient(verifyTimeout),
		inflight:     make(map[int64]*inflightFetch),
	}
}

// --- Motivations ---

// ListMotivations は全Motivationを返す。
func (s *Service) ListMotivations(ctx context.Context) ([]*model.Motivation, error) {
	motivations, err := s.store.ListMotivations(ctx)
	if err != nil {
		return nil, asReadError(err, "Motivation一覧の取得に失敗しました")
	}
	return motivations, nil
}

// GetMotivation は指定IDのMotivationを返す。
func (s *Service) GetMotivation(ctx context.Context, id int64) (*model.Motivation, error) {
	m, err := s.store.GetMotivation(ctx, id)
	if err != nil {
		return nil, asReadError(err, "Motivationの取得に失敗しました")
	}
	if m == nil {
		return nil, model.NewMotivationNotFoundError(id)
	}
	return m, nil
}

// SaveMotivation はMotivationを作成または更新する。
// IDが0の場合は新規作成、それ以外は更新として扱う。
func (s *Service) SaveMotivation(ctx context.Context, m *model.Motivation) (*model.Motivation, error) {
	if err := s.validateMotivation(m); err != nil {
		return nil, err
	}

	m.Title = s.sanitizer.SanitizePlainText(m.Title)
	m.Description = s.sanitizer.SanitizePlainText(m.Description)

	var (
		saved *model.Motivation
		err   error
	)
	if m.ID == 0 {
		saved, err = s.store.CreateMotivation(ctx, m)
	} else {
		saved, err = s.store.UpdateMotivation(ctx, m)
	}
	if err != nil {
		if backend.IsNotFound(err) {
			return nil, model.NewMotivationNotFoundError(m.ID)
		}
		return nil, asWriteError(err, "Motivationの保存に失敗しました")
	}
	return saved, nil
}

// DeleteMotivation は指定IDのMotivationを削除する。
// 破壊的操作のため、失敗時は原因を含むエラーを呼び出し元に伝播する。
func (s *Service) DeleteMotivation(ctx context.Context, id int64) error {
	if err := s.store.DeleteMotivation(ctx, id); err != nil {
		if backend.IsNotFound(err) {
			return model.NewMotivationNotFoundError(id)
		}
		return asWriteError(err, "Motivationの削除に失敗しました")
	}
	return nil
}

// validateMotivation はMotivationの必須項目を検証する。
func (s *Service) validateMotivation(m *model.Motivation) error {
	if strings.TrimSpace(m.Title) == "" {
		return model.NewValidationError("タイトルは必須です")
	}
	if strings.TrimSpace(m.Description) == "" {
		return model.NewValidationError("説明は必須です")
	}
	if !model.ValidMotivationCategory(m.Category) {
		return model.NewValidationError(fmt.Sprintf("カテゴリが不正です: %s", m.Category))
	}
	return nil
}

// --- Biohacks ---

// ListBiohacks は全Biohackを返す。
func (s *Service) ListBiohacks(ctx context.Context) ([]*model.Biohack, error) {
	biohacks, err := s.store.ListBiohacks(ctx)
	if err != nil {
		return nil, asReadError(err, "Biohack一覧の取得に失敗しました")
	}
	return biohacks, nil
}

// GetBiohack は指定IDのBiohackを返す。
func (s *Service) GetBiohack(ctx context.Context, id int64) (*model.Biohack, error) {
	b, err := s.store.GetBiohack(ctx, id)
	if err != nil {
		return nil, asReadError(err, "Biohackの取得に失敗しました")
	}
	if b == nil {
		return nil, model.NewBiohackNotFoundError(id)
	}
	return b, nil
}

// SaveBiohack はBiohackを作成または更新する。
// IDが0の場合は新規作成、それ以外は更新として扱う。
// 研究引用は要約とhttp(s)のソースURLが揃った「完全」なもののみ受け付ける。
func (s *Service) SaveBiohack(ctx context.Context, b *model.Biohack) (*model.Biohack, error) {
	if err := s.validateBiohack(b); err != nil {
		return nil, err
	}

	s.sanitizeBiohack(b)

	var (
		saved *model.Biohack
		err   error
	)
	if b.ID == 0 {
		saved, err = s.store.CreateBiohack(ctx, b)
	} else {
		saved, err = s.store.UpdateBiohack(ctx, b)
	}
	if err != nil {
		if backend.IsNotFound(err) {
			return nil, model.NewBiohackNotFoundError(b.ID)
		}
		return nil, asWriteError(err, "Biohackの保存に失敗しました")
	}
	return saved, nil
}

// DeleteBiohack は指定IDのBiohackを削除する。
func (s *Service) DeleteBiohack(ctx context.Context, id int64) error {
	if err := s.store.DeleteBiohack(ctx, id); err != nil {
		if backend.IsNotFound(err) {
			return model.NewBiohackNotFoundError(id)
		}
		return asWriteError(err, "Biohackの削除に失敗しました")
	}
	return nil
}

// validateBiohack はBiohackの必須項目と研究引用の完全性を検証する。
func (s *Service) validateBiohack(b *model.Biohack) error {
	if strings.TrimSpace(b.Title) == "" {
		return model.NewValidationError("タイトルは必須です")
	}
	if strings.TrimSpace(b.Technique) == "" {
		return model.NewValidationError("テクニック名は必須です")
	}
	if !model.ValidBiohackCategory(b.Category) {
		return model.NewValidationError(fmt.Sprintf("カテゴリが不正です: %s", b.Category))
	}
	if !model.ValidDifficulty(b.Difficulty) {
		return model.NewValidationError(fmt.Sprintf("難易度が不正です: %s", b.Difficulty))
	}

	steps := 0
	for _, step := range b.ActionSteps {
		if strings.TrimSpace(step) != "" {
			steps++
		}
	}
	if steps == 0 {
		return model.NewValidationError("アクションステップは1件以上必要です")
	}

	for i, study := range b.ResearchStudies {
		if !study.Complete() {
			return model.NewIncompleteStudyError(i)
		}
		if err := s.guard.ValidateURL(study.SourceURL); err != nil {
			return model.NewUnsafeStudyURLError(err.Error())
		}
	}

	return nil
}

// sanitizeBiohack は保存前にテキストフィールドをサニタイズする。
// 解説系フィールドは限定的なマークアップを許可し、それ以外はプレーンテキスト化する。
func (s *Service) sanitizeBiohack(b *model.Biohack) {
	b.Title = s.sanitizer.SanitizePlainText(b.Title)
	b.Technique = s.sanitizer.SanitizePlainText(b.Technique)
	b.TimeRequired = s.sanitizer.SanitizePlainText(b.TimeRequired)
	for i, step := range b.ActionSteps {
		b.ActionSteps[i] = s.sanitizer.SanitizePlainText(step)
	}
	b.Mechanism = s.sanitizer.SanitizeRichText(b.Mechanism)
	b.Biology = s.sanitizer.SanitizeRichText(b.Biology)
	for i, study := range b.ResearchStudies {
		b.ResearchStudies[i].Summary = s.sanitizer.SanitizePlainText(study.Summary)
	}
}

// --- Motivationに紐付くBiohack一覧 ---

// GetMotivationBiohacks は指定Motivationに紐付くBiohack一覧を返す。
//
// 同一Motivationに対する取得が既に実行中の場合、新しいリモート呼び出しは
// 開始せず、実行中の取得の結果を待って返す。キューではなく単純なガードで、
// 実行中の取得をキャンセルすることもない。
func (s *Service) GetMotivationBiohacks(ctx context.Context, motivationID int64) ([]*model.Biohack, error) {
	s.inflightMu.Lock()
	if call, ok := s.inflight[motivationID]; ok {
		s.inflightMu.Unlock()
		select {
		case <-call.done:
			return call.biohacks, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &inflightFetch{done: make(chan struct{})}
	s.inflight[motivationID] = call
	s.inflightMu.Unlock()

	biohacks, err := s.store.ListMotivationBiohacks(ctx, motivationID)
	if err != nil {
		err = asReadError(err, "Biohack一覧の取得に失敗しました")
	}

	call.biohacks = biohacks
	call.err = err
	close(call.done)

	s.inflightMu.Lock()
	delete(s.inflight, motivationID)
	s.inflightMu.Unlock()

	return biohacks, err
}

// --- 引用リンクの到達確認 ---

// StudyURLCheck は引用リンク到達確認の結果。
type StudyURLCheck struct {
	URL        string
	Reachable  bool
	StatusCode int
	Reason     string
}

// VerifyStudyURL は研究引用のソースURLが公開Webとして到達可能かを確認する。
// 静的検証で不適切なURLはエラーを返し、到達確認自体の失敗は
// Reachable=falseの結果として返す（ネットワーク起因はエラーにしない）。
func (s *Service) VerifyStudyURL(ctx context.Context, rawURL string) (*StudyURLCheck, error) {
	if err := s.guard.ValidateURL(rawURL); err != nil {
		return nil, model.NewUnsafeStudyURLError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, model.NewUnsafeStudyURLError(err.Error())
	}

	resp, err := s.verifyClient.Do(req)
	if err != nil {
		return &StudyURLCheck{URL: rawURL, Reachable: false, Reason: err.Error()}, nil
	}
	defer resp.Body.Close()

	check := &StudyURLCheck{URL: rawURL, StatusCode: resp.StatusCode}
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		check.Reachable = true
	} else {
		check.Reason = fmt.Sprintf("リンク先がステータス %d を返しました", resp.StatusCode)
	}
	return check, nil
}

// asReadError はbackendの読み取りエラーをAPIErrorに変換する。
func asReadError(err error, msg string) error {
	var remoteErr *backend.RemoteError
	if errors.As(err, &remoteErr) {
		return model.NewRemoteReadError(remoteErr.Status, remoteErr.Body)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// asWriteError はbackendの書き込みエラーをAPIErrorに変換する。
func asWriteError(err error, msg string) error {
	var remoteErr *backend.RemoteError
	if errors.As(err, &remoteErr) {
		return model.NewRemoteWriteError(remoteErr.Status, remoteErr.Body)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
