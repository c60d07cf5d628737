// Package auth はOAuth認証フロー、セッショントークン管理、
// 外部identityと内部ユーザーレコードのreconciliationを提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/hitoshi/biolog/internal/model"
)

// ExternalIdentity はOAuthプロバイダーで検証済みのユーザー情報を表す。
type ExternalIdentity struct {
	Provider string // "google" 等
	Subject  string // プロバイダー採番のsubject id
	Email    string
	Name     string
	Picture  string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、検証済みidentityを取得する。
	ExchangeCode(ctx context.Context, code string) (*ExternalIdentity, error)
}

// UserStore は内部ユーザーのreconciliationに必要なインターフェース。
// backend.Clientの部分集合として定義する。
type UserStore interface {
	// FindUserByEmail はメールアドレスで内部ユーザーを検索する。見つからない場合はnilを返す。
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	// CreateUser は内部ユーザーレコードを作成し、採番済みのレコードを返す。
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	// GetUser は指定IDの内部ユーザーを取得する。見つからない場合はnilを返す。
	GetUser(ctx context.Context, id int64) (*model.User, error)
	// UpdateUserMotivation はユーザーのMotivation割り当てを更新する。
	UpdateUserMotivation(ctx context.Context, user *model.User, motivationID *int64) (*model.User, error)
}

// MotivationSyncStatus はSetMotivationの結果種別を表す。
type MotivationSyncStatus string

const (
	// SyncStatusSynced はリモートのユーザーレコードまで更新が反映されたことを示す。
	SyncStatusSynced MotivationSyncStatus = "synced"
	// SyncStatusLocalOnly はセッション上の更新のみで、リモート反映が保留されていることを示す。
	// 次回のログインでreconciliationされるまで、リモート側は古い値のままになりうる。
	SyncStatusLocalOnly MotivationSyncStatus = "local_only"
)

// MotivationSyncResult はSetMotivationの結果。
// 呼び出し元はStatusを見てリトライやユーザーへの警告を判断できる。
type MotivationSyncResult struct {
	Status MotivationSyncStatus
	Reason string // local_onlyの場合の理由
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth  OAuthProvider
	users  UserStore
	tokens *TokenManager
}

// NewService はServiceを生成する。
func NewService(oauth OAuthProvider, users UserStore, tokens *TokenManager) *Service {
	return &Service{
		oauth:  oauth,
		users:  users,
		tokens: tokens,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッショントークンを発行する。
// 検証済みの外部identityをメールアドレスで内部ユーザーとreconcileし、
// 未登録の場合は内部ユーザーレコードを自動作成する。
//
// 内部ユーザーのreconciliationがリモートエラーで失敗しても認証は成功させる
// （ログインの可用性を二次システムの可用性に依存させない）。その場合の
// セッションは内部IDとMotivation IDを持たず、次回以降のログインで補完される。
func (s *Service) HandleCallback(ctx context.Context, code string) (string, *SessionClaims, error) {
	// 1. 認可コードをトークンに交換し、検証済みidentityを取得
	identity, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	claims := SessionClaims{
		ExternalID: identity.Subject,
		Email:      identity.Email,
		Name:       identity.Name,
		Picture:    identity.Picture,
	}

	// 2. 内部ユーザーとのreconciliation（失敗しても認証は継続する）
	user, err := s.reconcile(ctx, identity)
	if err != nil {
		slog.Warn("内部ユーザーのreconciliationに失敗しました（外部identityのみで認証を継続します）",
			slog.String("provider", identity.Provider),
			slog.String("email", identity.Email),
			slog.String("error", err.Error()),
		)
	} else {
		claims.UserID = &user.ID
		claims.MotivationID = user.MotivationID
	}

	// 3. セッショントークンを発行
	token, err := s.tokens.Issue(claims)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	return token, &claims, nil
}

// reconcile は外部identityを内部ユーザーレコードと突き合わせる。
// メールアドレスで既存ユーザーを検索し、存在しない場合は新規作成する。
func (s *Service) reconcile(ctx context.Context, identity *ExternalIdentity) (*model.User, error) {
	existing, err := s.users.FindUserByEmail(ctx, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		slog.Info("existing user logged in",
			slog.Int64("user_id", existing.ID),
			slog.String("provider", identity.Provider),
		)
		return existing, nil
	}

	first, last := model.SplitDisplayName(identity.Name)
	created, err := s.users.CreateUser(ctx, &model.User{
		FirstName:  first,
		LastName:   last,
		Email:      identity.Email,
		Provider:   identity.Provider,
		ExternalID: identity.Subject,
		// Motivationは未割り当てで作成し、ユーザーの選択を待つ
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created",
		slog.Int64("user_id", created.ID),
		slog.String("email", identity.Email),
		slog.String("provider", identity.Provider),
	)
	return created, nil
}

// SetMotivation は現在のMotivation選択を更新する。
// セッションクレームは常に即時更新し（楽観的更新）、内部IDが既知の場合は
// リモートのユーザーレコードへの反映も試みる。リモート反映の失敗はエラー
// ではなくSyncStatusLocalOnlyとして構造的に返し、呼び出し元がリトライや
// 警告表示を判断できるようにする。
//
// 戻り値のトークンは更新後クレームで再発行されたもので、呼び出し元が
// セッションCookieを差し替えることで次回のセッション検証にも反映される。
func (s *Service) SetMotivation(ctx context.Context, claims SessionClaims, motivationID *int64) (string, SessionClaims, MotivationSyncResult, error) {
	claims.MotivationID = motivationID

	token, err := s.tokens.Issue(claims)
	if err != nil {
		return "", SessionClaims{}, MotivationSyncResult{}, fmt.Errorf("failed to issue session token: %w", err)
	}

	result := s.syncMotivation(ctx, claims, motivationID)
	return token, claims, result, nil
}

// syncMotivation はリモートのユーザーレコードへMotivation割り当てを反映する。
func (s *Service) syncMotivation(ctx context.Context, claims SessionClaims, motivationID *int64) MotivationSyncResult {
	if claims.UserID == nil {
		return MotivationSyncResult{
			Status: SyncStatusLocalOnly,
			Reason: "内部ユーザーIDが未確定のため、リモート反映は次回ログイン時に行われます",
		}
	}

	user, err := s.users.GetUser(ctx, *claims.UserID)
	if err == nil && user == nil {
		err = model.NewUserNotFoundError()
	}
	if err == nil {
		_, err = s.users.UpdateUserMotivation(ctx, user, motivationID)
	}
	if err != nil {
		slog.Warn("Motivation割り当てのリモート反映に失敗しました",
			slog.Int64("user_id", *claims.UserID),
			slog.String("error", err.Error()),
		)
		return MotivationSyncResult{
			Status: SyncStatusLocalOnly,
			Reason: "リモートの更新に失敗しました。セッション上の選択は維持されます",
		}
	}

	return MotivationSyncResult{Status: SyncStatusSynced}
}

// GenerateState はCSRF対策用のランダムなstate値を生成する。
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
