// Package model はドメインモデルを定義する。
package model

import "time"

// Journal はユーザーがBiohackを1回実施した記録（進捗エントリ）を表す。
// 作成後は不変で、更新・削除の操作は定義されない。
type Journal struct {
	ID           int64
	UserID       int64
	BiohackID    int64
	BiohackTitle string // 表示用の非正規化フィールド
	Date         time.Time
	Notes        string
	Rating       int // 1〜5
	Completed    bool
}

// 評価値の有効範囲。
const (
	MinRating = 1
	MaxRating = 5
)

// ValidRating は評価値が1〜5の範囲内かを検証する。
func ValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}

// BiohackProgress は1つの (user, biohack) ペアに対する進捗集計を表す。
// 永続化されない派生データで、Journalのリストから毎回計算される。
type BiohackProgress struct {
	BiohackTitle  string
	Entries       []Journal
	TotalSessions int
	AverageRating float64
	Streak        int // 今日または昨日で終わる連続実施日数
	LongestStreak int // 履歴上の最長連続実施日数
}
