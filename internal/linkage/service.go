// Package linkage はMotivationとBiohackの多対多関連のドメインロジックを提供する。
package linkage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/hitoshi/biolog/internal/backend"
	"github.com/hitoshi/biolog/internal/model"
)

// LinkStore は関連の読み書きに必要なインターフェース。
// backend.Clientの部分集合として定義する。
type LinkStore interface {
	// ListLinks は全関連を取得する。
	ListLinks(ctx context.Context) ([]model.MotivationBiohackLink, error)
	// CreateLink は関連を作成する。重複の場合はConflictErrorを返す。
	CreateLink(ctx context.Context, motivationID, biohackID int64) error
	// DeleteLink は関連を削除する。
	DeleteLink(ctx context.Context, motivationID, biohackID int64) error
}

// ConflictCollector は重複検出によるreconciliationの計測に必要なインターフェース。
// metrics.MetricsCollectorの部分集合として定義する。
type ConflictCollector interface {
	RecordLinkConflictReconciled()
}

// Service は関連管理のサービス層。
//
// ローカルの関連集合はキャッシュであり、権威は常に永続化サービス側にある。
// 成功時の楽観的更新と、重複検出時の全件再取得（reconciliation）で
// 結果整合を保つ。プロセス再起動をまたいで信頼されることはない。
type Service struct {
	store     LinkStore
	collector ConflictCollector

	mu     sync.RWMutex
	links  map[model.MotivationBiohackLink]struct{}
	loaded bool
}

// NewService はServiceの新しいインスタンスを生成する。collectorはnil可。
func NewService(store LinkStore, collector ConflictCollector) *Service {
	return &Service{
		store:     store,
		collector: collector,
		links:     make(map[model.MotivationBiohackLink]struct{}),
	}
}

// Refresh は永続化サービスから関連の全件を取得し、ローカルキャッシュを置き換える。
func (s *Service) Refresh(ctx context.Context) error {
	links, err := s.store.ListLinks(ctx)
	if err != nil {
		return s.asReadError(err, "関連一覧の取得に失敗しました")
	}

	fresh := make(map[model.MotivationBiohackLink]struct{}, len(links))
	for _, l := range links {
		fresh[l] = struct{}{}
	}

	s.mu.Lock()
	s.links = fresh
	s.loaded = true
	s.mu.Unlock()

	return nil
}

// List は全関連を (motivationId, biohackId) ペアのリストとして返す。
// 初回呼び出し時はキャッシュを永続化サービスから取得する。
func (s *Service) List(ctx context.Context) ([]model.MotivationBiohackLink, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]model.MotivationBiohackLink, 0, len(s.links))
	for l := range s.links {
		results = append(results, l)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].MotivationID != results[j].MotivationID {
			return results[i].MotivationID < results[j].MotivationID
		}
		return results[i].BiohackID < results[j].BiohackID
	})
	return results, nil
}

// IsLinked は現在のスナップショットに対する純粋な述語。
// リモート呼び出しは行わない。
func (s *Service) IsLinked(motivationID, biohackID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.links[model.MotivationBiohackLink{MotivationID: motivationID, BiohackID: biohackID}]
	return ok
}

// Link はMotivationとBiohackの関連を作成する。
//
// 永続化サービスが重複（409）を報告した場合はエラーにせず、全件再取得で
// ローカル状態をreconcileして正常終了する。結果として、2回呼び出しても
// (motivationId, biohackId) の関連はちょうど1件に収束する。
// 重複以外の失敗は呼び出し元に伝播する。
func (s *Service) Link(ctx context.Context, motivationID, biohackID int64) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	err := s.store.CreateLink(ctx, motivationID, biohackID)
	if err != nil {
		if backend.IsConflict(err) {
			slog.Info("関連が既に存在していたためreconcileします",
				slog.Int64("motivation_id", motivationID),
				slog.Int64("biohack_id", biohackID),
			)
			if s.collector != nil {
				s.collector.RecordLinkConflictReconciled()
			}
			return s.Refresh(ctx)
		}
		return s.asWriteError(err, "関連の作成に失敗しました")
	}

	s.mu.Lock()
	s.links[model.MotivationBiohackLink{MotivationID: motivationID, BiohackID: biohackID}] = struct{}{}
	s.mu.Unlock()

	return nil
}

// Unlink はMotivationとBiohackの関連を削除する。
// 成功時はローカルキャッシュから即座に取り除く（再取得は不要）。
func (s *Service) Unlink(ctx context.Context, motivationID, biohackID int64) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	err := s.store.DeleteLink(ctx, motivationID, biohackID)
	if err != nil {
		if backend.IsNotFound(err) {
			return model.NewLinkNotFoundError(motivationID, biohackID)
		}
		return s.asWriteError(err, "関連の削除に失敗しました")
	}

	s.mu.Lock()
	delete(s.links, model.MotivationBiohackLink{MotivationID: motivationID, BiohackID: biohackID})
	s.mu.Unlock()

	return nil
}

// ensureLoaded はキャッシュ未取得の場合に全件を取得する。
func (s *Service) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.Refresh(ctx)
}

// asReadError はbackendの読み取りエラーをAPIErrorに変換する。
func (s *Service) asReadError(err error, msg string) error {
	var remoteErr *backend.RemoteError
	if errors.As(err, &remoteErr) {
		return model.NewRemoteReadError(remoteErr.Status, remoteErr.Body)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// asWriteError はbackendの書き込みエラーをAPIErrorに変換する。
func (s *Service) asWriteError(err error, msg string) error {
	var remoteErr *backend.RemoteError
	if errors.As(err, &remoteErr) {
		return model.NewRemoteWriteError(remoteErr.Status, remoteErr.Body)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
