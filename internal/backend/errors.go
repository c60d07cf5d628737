// Package backend は永続化サービス（REST API）の型付きクライアントを提供する。
package backend

import (
	"errors"
	"fmt"
)

// NotFoundError は永続化サービスが404を返したことを表す。
// 「履歴がまだない」を表す正常系として扱うかどうかは呼び出し元が決める。
type NotFoundError struct {
	Resource string
}

// Error はerrorインターフェースを実装する。
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("リソースが見つかりません: %s", e.Resource)
}

// ConflictError は永続化サービスが409（重複）を返したことを表す。
// 関連の重複作成などで発生し、呼び出し元のreconciliationを駆動する。
// エラーメッセージの文字列照合ではなく、この型で構造的に判定すること。
type ConflictError struct {
	Resource string
}

// Error はerrorインターフェースを実装する。
func (e *ConflictError) Error() string {
	return fmt.Sprintf("リソースが既に存在します: %s", e.Resource)
}

// RemoteError は404/409以外の非2xxレスポンスを表す。
// ステータスコードとレスポンスボディを保持し、呼び出し元のログ・表示に使う。
type RemoteError struct {
	Method string
	Path   string
	Status int
	Body   string
}

// Error はerrorインターフェースを実装する。
func (e *RemoteError) Error() string {
	return fmt.Sprintf("永続化サービスがステータス %d を返しました: %s %s: %s", e.Status, e.Method, e.Path, e.Body)
}

// DecodeError はレスポンスJSONのデコード失敗を表す。
// 境界でfail fastし、型の緩いオブジェクトを内側に伝播させない。
type DecodeError struct {
	Resource string
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *DecodeError) Error() string {
	return fmt.Sprintf("レスポンスのデコードに失敗しました: %s: %v", e.Resource, e.Err)
}

// Unwrap はラップされたエラーを返す。
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsNotFound はエラーが404由来かを判定する。
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict はエラーが409由来かを判定する。
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
