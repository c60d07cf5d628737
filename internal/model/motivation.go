// Package model はドメインモデルを定義する。
package model

import "time"

// Motivation はユーザーが選択するゴールカテゴリを表す。
// 紐付くBiohackはMotivationBiohackLink経由で0件以上関連付けられる。
type Motivation struct {
	ID          int64
	Title       string
	Description string
	Category    MotivationCategory
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MotivationCategory はMotivationの分類を表す。
type MotivationCategory string

const (
	// MotivationCategoryEnergy はエネルギー向上系のゴール。
	MotivationCategoryEnergy MotivationCategory = "energy"
	// MotivationCategoryFocus は集中力向上系のゴール。
	MotivationCategoryFocus MotivationCategory = "focus"
	// MotivationCategorySleep は睡眠改善系のゴール。
	MotivationCategorySleep MotivationCategory = "sleep"
	// MotivationCategoryStress はストレス軽減系のゴール。
	MotivationCategoryStress MotivationCategory = "stress"
	// MotivationCategoryPerformance はパフォーマンス向上系のゴール。
	MotivationCategoryPerformance MotivationCategory = "performance"
	// MotivationCategoryWellness は総合的なウェルネス系のゴール。
	MotivationCategoryWellness MotivationCategory = "wellness"
)

// ValidMotivationCategory はカテゴリが定義済みの値かを検証する。
func ValidMotivationCategory(c MotivationCategory) bool {
	switch c {
	case MotivationCategoryEnergy, MotivationCategoryFocus, MotivationCategorySleep,
		MotivationCategoryStress, MotivationCategoryPerformance, MotivationCategoryWellness:
		return true
	}
	return false
}

// MotivationBiohackLink はMotivationとBiohackの多対多関連を表す。
// (MotivationID, BiohackID) の組につき高々1件しか存在しない。
type MotivationBiohackLink struct {
	MotivationID int64
	BiohackID    int64
}
