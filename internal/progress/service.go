// Package progress は進捗記録とストリーク統計のドメインロジックを提供する。
package progress

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hitoshi/biolog/internal/backend"
	"github.com/hitoshi/biolog/internal/model"
)

// JournalStore は進捗エントリの読み書きに必要なインターフェース。
// backend.Clientの部分集合として定義する。
type JournalStore interface {
	// CreateJournal は進捗エントリを作成し、採番済みのレコードを返す。
	CreateJournal(ctx context.Context, j *model.Journal) (*model.Journal, error)
	// ListJournals は指定 (user, biohack) ペアの進捗エントリを全件取得する。
	ListJournals(ctx context.Context, userID, biohackID int64) ([]*model.Journal, error)
}

// NotesSanitizer は自由記述ノートのサニタイズに必要なインターフェース。
type NotesSanitizer interface {
	SanitizePlainText(raw string) string
}

// SaveInput は進捗エントリ作成の入力。
type SaveInput struct {
	BiohackTitle string
	Notes        string
	Rating       int
	Date         time.Time // ゼロ値の場合は現在時刻
}

// Service は進捗記録のサービス層。
// エントリの保存と、(user, biohack) ペアごとの統計集計を提供する。
type Service struct {
	store     JournalStore
	sanitizer NotesSanitizer
	location  *time.Location

	// now はテストで評価時点を固定するために差し替え可能。
	now func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// locationはストリーク計算の日付バケツに使うタイムゾーン。nilの場合はUTC。
func NewService(store JournalStore, sanitizer NotesSanitizer, location *time.Location) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		store:     store,
		sanitizer: sanitizer,
		location:  location,
		now:       time.Now,
	}
}

// SaveProgress は進捗エントリを1件保存し、採番済みのエントリを返す。
// 評価値はリモート呼び出しの前に防御的に検証し、範囲外は即座に失敗させる。
func (s *Service) SaveProgress(ctx context.Context, userID, biohackID int64, input SaveInput) (*model.Journal, error) {
	if !model.ValidRating(input.Rating) {
		return nil, model.NewInvalidRatingError(input.Rating)
	}

	date := input.Date
	if date.IsZero() {
		date = s.now()
	}

	notes := input.Notes
	if s.sanitizer != nil {
		notes = s.sanitizer.SanitizePlainText(notes)
	}

	entry := &model.Journal{
		UserID:       userID,
		BiohackID:    biohackID,
		BiohackTitle: input.BiohackTitle,
		Date:         date,
		Notes:        notes,
		Rating:       input.Rating,
		Completed:    true,
	}

	saved, err := s.store.CreateJournal(ctx, entry)
	if err != nil {
		var remoteErr *backend.RemoteError
		if errors.As(err, &remoteErr) {
			return nil, model.NewRemoteWriteError(remoteErr.Status, remoteErr.Body)
		}
		return nil, fmt.Errorf("進捗エントリの保存に失敗しました: %w", err)
	}

	return saved, nil
}

// GetProgress は指定 (user, biohack) ペアの進捗エントリを全件取得する。
// 永続化サービスの404は「履歴がまだない」を意味するため、空リストを返す。
// それ以外の失敗は転送エラーとして呼び出し元に伝播する。
func (s *Service) GetProgress(ctx context.Context, userID, biohackID int64) ([]model.Journal, error) {
	journals, err := s.store.ListJournals(ctx, userID, biohackID)
	if err != nil {
		if backend.IsNotFound(err) {
			return []model.Journal{}, nil
		}
		var remoteErr *backend.RemoteError
		if errors.As(err, &remoteErr) {
			return nil, model.NewRemoteReadError(remoteErr.Status, remoteErr.Body)
		}
		return nil, fmt.Errorf("進捗エントリの取得に失敗しました: %w", err)
	}

	entries := make([]model.Journal, len(journals))
	for i, j := range journals {
		entries[i] = *j
	}
	return entries, nil
}

// GetBiohackProgress は進捗エントリを取得し、統計集計を計算して返す。
// 呼び出し元はエントリのソートを保証しなくてよい（内部でソートする）。
func (s *Service) GetBiohackProgress(ctx context.Context, userID, biohackID int64, biohackTitle string) (*model.BiohackProgress, error) {
	entries, err := s.GetProgress(ctx, userID, biohackID)
	if err != nil {
		return nil, err
	}
	result := s.aggregate(entries, biohackTitle)
	return &result, nil
}

// aggregate はエントリのリストから統計集計を計算する。
func (s *Service) aggregate(entries []model.Journal, biohackTitle string) model.BiohackProgress {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})

	total := len(entries)

	var average float64
	if total > 0 {
		sum := 0
		for _, e := range entries {
			sum += e.Rating
		}
		average = float64(sum) / float64(total)
	}

	activeDays := s.activeDays(entries)

	return model.BiohackProgress{
		BiohackTitle:  biohackTitle,
		Entries:       entries,
		TotalSessions: total,
		AverageRating: average,
		Streak:        s.currentStreak(activeDays),
		LongestStreak: longestStreak(activeDays),
	}
}

// activeDays はエントリをカレンダー日に丸め、重複を除いた実施日集合を返す。
// 同一日に複数エントリがあっても実施日は1日として数える。
func (s *Service) activeDays(entries []model.Journal) map[time.Time]bool {
	days := make(map[time.Time]bool, len(entries))
	for _, e := range entries {
		days[dayOf(e.Date, s.location)] = true
	}
	return days
}

// currentStreak は今日で終わる連続実施日数を返す。
// 今日の実施がまだない場合は昨日を起点にする（当日中はストリークが切れない猶予）。
// 起点から過去方向に1日ずつ遡り、最初の未実施日で打ち切る。
func (s *Service) currentStreak(activeDays map[time.Time]bool) int {
	check := dayOf(s.now(), s.location)
	if !activeDays[check] {
		check = check.AddDate(0, 0, -1)
	}

	streak := 0
	for activeDays[check] {
		streak++
		check = check.AddDate(0, 0, -1)
	}
	return streak
}

// longestStreak は履歴上の最長連続実施日数を返す。
// 実施日を昇順に走査し、前日との差がちょうど1日の連なりの最大長を求める。
// エントリが1件でもあれば最小1、なければ0。
func longestStreak(activeDays map[time.Time]bool) int {
	if len(activeDays) == 0 {
		return 0
	}

	days := make([]time.Time, 0, len(activeDays))
	for d := range activeDays {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest := 1
	run := 1
	for i := 1; i < len(days); i++ {
		if days[i-1].AddDate(0, 0, 1).Equal(days[i]) {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 1
		}
	}
	return longest
}

// dayOf はタイムスタンプを指定タイムゾーンのカレンダー日に丸める。
// 夏時間の切り替えで深夜0時が存在しないゾーンがあるため、日キーは
// ローカルの日付を取り出した上でUTCの0時として表現する。UTCにはDSTが
// なく、AddDateによる前日・翌日の計算が常にちょうど24時間になる。
func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
