// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, remote, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidRating      = "INVALID_RATING"
	ErrCodeRemoteRead         = "REMOTE_READ_FAILED"
	ErrCodeRemoteWrite        = "REMOTE_WRITE_FAILED"
	ErrCodeDecodeFailed       = "DECODE_FAILED"
	ErrCodeAuthConfigMissing  = "AUTH_CONFIG_MISSING"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeMotivationNotFound = "MOTIVATION_NOT_FOUND"
	ErrCodeBiohackNotFound    = "BIOHACK_NOT_FOUND"
	ErrCodeLinkNotFound       = "LINK_NOT_FOUND"
	ErrCodeIncompleteStudy    = "INCOMPLETE_STUDY"
	ErrCodeUnsafeStudyURL     = "UNSAFE_STUDY_URL"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewValidationError は入力値の契約違反エラーを生成する。
// リモート呼び出しの前に検出されるべきエラーで、リトライは不要。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidRatingError は評価値の範囲外エラーを生成する。
func NewInvalidRatingError(rating int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRating,
		Message:  fmt.Sprintf("評価値が範囲外です: %d（1〜5で指定してください）", rating),
		Category: "validation",
		Action:   "評価は1〜5の整数で指定してください。",
	}
}

// NewRemoteReadError は永続化サービスからの読み取り失敗エラーを生成する。
// 404は「該当なし」として呼び出し元で区別されるため、ここには到達しない。
func NewRemoteReadError(status int, detail string) *APIError {
	return &APIError{
		Code:     ErrCodeRemoteRead,
		Message:  fmt.Sprintf("データの取得に失敗しました（ステータス %d）: %s", status, detail),
		Category: "remote",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRemoteWriteError は永続化サービスへの書き込み失敗エラーを生成する。
func NewRemoteWriteError(status int, detail string) *APIError {
	return &APIError{
		Code:     ErrCodeRemoteWrite,
		Message:  fmt.Sprintf("データの保存に失敗しました（ステータス %d）: %s", status, detail),
		Category: "remote",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewDecodeError は永続化サービスのレスポンス解釈失敗エラーを生成する。
func NewDecodeError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeDecodeFailed,
		Message:  fmt.Sprintf("レスポンスの解釈に失敗しました: %s", resource),
		Category: "remote",
		Action:   "しばらく待ってから再度お試しください。問題が続く場合は管理者に連絡してください。",
	}
}

// NewAuthConfigMissingError はサーバー側の認証設定不足エラーを生成する。
// 該当リクエストに対するfatalなレスポンスであり、プロセス全体のクラッシュではない。
func NewAuthConfigMissingError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthConfigMissing,
		Message:  fmt.Sprintf("サーバーの認証設定が不足しています: %s", name),
		Category: "system",
		Action:   "管理者に連絡してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewMotivationNotFoundError はMotivation未検出エラーを生成する。
func NewMotivationNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeMotivationNotFound,
		Message:  fmt.Sprintf("指定されたMotivationが見つかりません: %d", id),
		Category: "validation",
		Action:   "Motivation IDを確認してください。",
	}
}

// NewBiohackNotFoundError はBiohack未検出エラーを生成する。
func NewBiohackNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeBiohackNotFound,
		Message:  fmt.Sprintf("指定されたBiohackが見つかりません: %d", id),
		Category: "validation",
		Action:   "Biohack IDを確認してください。",
	}
}

// NewLinkNotFoundError はMotivationとBiohackの関連未検出エラーを生成する。
func NewLinkNotFoundError(motivationID, biohackID int64) *APIError {
	return &APIError{
		Code:     ErrCodeLinkNotFound,
		Message:  fmt.Sprintf("指定された関連が見つかりません: motivation=%d biohack=%d", motivationID, biohackID),
		Category: "validation",
		Action:   "関連の組み合わせを確認してください。",
	}
}

// NewIncompleteStudyError は研究引用の不備エラーを生成する。
func NewIncompleteStudyError(index int) *APIError {
	return &APIError{
		Code:     ErrCodeIncompleteStudy,
		Message:  fmt.Sprintf("研究引用が不完全です（%d件目）: 要約とhttp(s)のソースURLの両方が必要です", index+1),
		Category: "validation",
		Action:   "引用の要約とソースURLを入力してください。",
	}
}

// NewUnsafeStudyURLError はソースURLの安全性検証失敗エラーを生成する。
func NewUnsafeStudyURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsafeStudyURL,
		Message:  fmt.Sprintf("ソースURLが許可されていません: %s", reason),
		Category: "validation",
		Action:   "公開されているWebサイトのURLを指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
