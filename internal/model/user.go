// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// User は永続化サービス上の内部ユーザーレコードを表す。
// 外部IdPのidentity（Provider + ExternalID）は作成後に変更されない。
// 内部IDは初回のreconciliation時に永続化サービスが1回だけ採番する。
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	Provider     string
	ExternalID   string
	MotivationID *int64 // 未設定の場合はnil
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SplitDisplayName はIdPの表示名を最初の空白境界でfirst/lastに分割する。
// 2語目以降はすべてlast側に結合される。空白がない場合はlastが空になる。
func SplitDisplayName(name string) (first, last string) {
	parts := strings.Fields(strings.TrimSpace(name))
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
