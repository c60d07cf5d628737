// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Biohack はウェルネステクニック1件を表す。
// ActionStepsは順序付きで、コレクションとして空であってはならない。
type Biohack struct {
	ID              int64
	Title           string
	Technique       string
	Category        BiohackCategory
	Difficulty      Difficulty
	TimeRequired    string
	Icon            string
	Color           string
	ActionSteps     []string
	Mechanism       string
	Biology         string // 任意の詳細な生物学的解説
	ResearchStudies []ResearchStudy
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BiohackCategory はBiohackの表示タブ分類を表す。
type BiohackCategory string

const (
	// BiohackCategoryLifestyle は生活習慣系のテクニック。
	BiohackCategoryLifestyle BiohackCategory = "lifestyle"
	// BiohackCategoryFeelGood は即効性のある気分改善系のテクニック。
	BiohackCategoryFeelGood BiohackCategory = "feel-good"
)

// ValidBiohackCategory はカテゴリが定義済みの値かを検証する。
func ValidBiohackCategory(c BiohackCategory) bool {
	return c == BiohackCategoryLifestyle || c == BiohackCategoryFeelGood
}

// Difficulty はBiohackの難易度を表す。
type Difficulty string

const (
	// DifficultyBeginner は初心者向け。
	DifficultyBeginner Difficulty = "beginner"
	// DifficultyIntermediate は中級者向け。
	DifficultyIntermediate Difficulty = "intermediate"
	// DifficultyAdvanced は上級者向け。
	DifficultyAdvanced Difficulty = "advanced"
)

// ValidDifficulty は難易度が定義済みの値かを検証する。
func ValidDifficulty(d Difficulty) bool {
	return d == DifficultyBeginner || d == DifficultyIntermediate || d == DifficultyAdvanced
}

// ResearchStudy はBiohackを裏付ける研究の引用を表す。
type ResearchStudy struct {
	Summary   string `json:"summary"`
	SourceURL string `json:"sourceURL,omitempty"`
}

// Complete は引用が「完全」か（要約が非空、かつSourceURLがhttp/httpsスキーム）を判定する。
func (s ResearchStudy) Complete() bool {
	if strings.TrimSpace(s.Summary) == "" {
		return false
	}
	u, err := url.Parse(s.SourceURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// EncodeStudies は研究引用リストを永続化サービスのテキストフィールド向けに
// JSON配列文字列へエンコードする。永続化レイヤーの契約（文字列化JSON）を維持する。
// 空リストは空文字列にエンコードされる。
func EncodeStudies(studies []ResearchStudy) (string, error) {
	if len(studies) == 0 {
		return "", nil
	}
	b, err := json.Marshal(studies)
	if err != nil {
		return "", fmt.Errorf("研究引用のエンコードに失敗しました: %w", err)
	}
	return string(b), nil
}

// DecodeStudies はテキストフィールドに格納された研究引用を復元する。
// 歴史的経緯により格納形式が揺れているため、以下をすべて受け付ける:
//   - JSON配列（文字列要素またはオブジェクト要素の混在可）
//   - 単一のJSONオブジェクト
//   - JSONでないプレーンテキスト（全体を1件の要約として扱う）
//
// 空文字列はnilを返す。
func DecodeStudies(raw string) []ResearchStudy {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
		studies := make([]ResearchStudy, 0, len(items))
		for _, item := range items {
			studies = append(studies, decodeStudyElement(item))
		}
		return studies
	}

	var study ResearchStudy
	if err := json.Unmarshal([]byte(trimmed), &study); err == nil && study.Summary != "" {
		return []ResearchStudy{study}
	}

	// JSONとして解釈できない場合はプレーンテキストとして扱う
	return []ResearchStudy{{Summary: raw}}
}

// decodeStudyElement はJSON配列の1要素をResearchStudyに変換する。
func decodeStudyElement(raw json.RawMessage) ResearchStudy {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ResearchStudy{Summary: s}
	}

	var study ResearchStudy
	if err := json.Unmarshal(raw, &study); err == nil {
		return study
	}

	return ResearchStudy{Summary: string(raw)}
}
