package progress

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hitoshi/biolog/internal/backend"
	"github.com/hitoshi/biolog/internal/model"
)

// --- モック定義 ---

type mockJournalStore struct {
	createJournalFn func(ctx context.Context, j *model.Journal) (*model.Journal, error)
	listJournalsFn  func(ctx context.Context, userID, biohackID int64) ([]*model.Journal, error)
}

func (m *mockJournalStore) CreateJournal(ctx context.Context, j *model.Journal) (*model.Journal, error) {
	if m.createJournalFn != nil {
		return m.createJournalFn(ctx, j)
	}
	return j, nil
}

func (m *mockJournalStore) ListJournals(ctx context.Context, userID, biohackID int64) ([]*model.Journal, error) {
	if m.listJournalsFn != nil {
		return m.listJournalsFn(ctx, userID, biohackID)
	}
	return nil, nil
}

type mockSanitizer struct {
	sanitizeFn func(raw string) string
}

func (m *mockSanitizer) SanitizePlainText(raw string) string {
	if m.sanitizeFn != nil {
		return m.sanitizeFn(raw)
	}
	return raw
}

// fixedNow はテスト全体で使う固定の評価時点。
var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(store *mockJournalStore, loc *time.Location) *Service {
	s := NewService(store, &mockSanitizer{}, loc)
	s.now = func() time.Time { return fixedNow }
	return s
}

// entryOn は指定日時のエントリを生成するヘルパー。
func entryOn(t time.Time, rating int) *model.Journal {
	return &model.Journal{
		UserID:    1,
		BiohackID: 10,
		Date:      t,
		Rating:    rating,
		Completed: true,
	}
}

// --- SaveProgressのテスト ---

func TestSaveProgress_InvalidRating_FailsBeforeRemoteCall(t *testing.T) {
	for _, rating := range []int{0, -1, 6, 100} {
		called := false
		store := &mockJournalStore{
			createJournalFn: func(ctx context.Context, j *model.Journal) (*model.Journal, error) {
				called = true
				return j, nil
			},
		}
		svc := newTestService(store, nil)

		_, err := svc.SaveProgress(context.Background(), 1, 10, SaveInput{Rating: rating})
		if err == nil {
			t.Fatalf("rating=%d: expected error", rating)
		}

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidRating {
			t.Errorf("rating=%d: error = %v, want code %s", rating, err, model.ErrCodeInvalidRating)
		}
		if called {
			t.Errorf("rating=%d: remote call should not happen for invalid rating", rating)
		}
	}
}

func TestSaveProgress_ZeroDate_UsesCurrentTime(t *testing.T) {
	var captured *model.Journal
	store := &mockJournalStore{
		createJournalFn: func(ctx context.Context, j *model.Journal) (*model.Journal, error) {
			captured = j
			return j, nil
		},
	}
	svc := newTestService(store, nil)

	_, err := svc.SaveProgress(context.Background(), 1, 10, SaveInput{Rating: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured == nil {
		t.Fatal("store should be called")
	}
	if !captured.Date.Equal(fixedNow) {
		t.Errorf("date = %v, want %v", captured.Date, fixedNow)
	}
	if !captured.Completed {
		t.Error("saved entry should be marked completed")
	}
}

func TestSaveProgress_SanitizesNotes(t *testing.T) {
	var captured *model.Journal
	store := &mockJournalStore{
		createJournalFn: func(ctx context.Context, j *model.Journal) (*model.Journal, error) {
			captured = j
			return j, nil
		},
	}
	svc := NewService(store, &mockSanitizer{
		sanitizeFn: func(raw string) string { return "clean" },
	}, nil)
	svc.now = func() time.Time { return fixedNow }

	_, err := svc.SaveProgress(context.Background(), 1, 10, SaveInput{
		Rating: 3,
		Notes:  "<script>alert(1)</script>",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.Notes != "clean" {
		t.Errorf("notes = %q, want sanitized value", captured.Notes)
	}
}

func TestSaveProgress_RemoteError_MapsToWriteError(t *testing.T) {
	store := &mockJournalStore{
		createJournalFn: func(ctx context.Context, j *model.Journal) (*model.Journal, error) {
			return nil, &backend.RemoteError{
				Method: http.MethodPost,
				Path:   "/Journals",
				Status: http.StatusInternalServerError,
				Body:   "boom",
			}
		},
	}
	svc := newTestService(store, nil)

	_, err := svc.SaveProgress(context.Background(), 1, 10, SaveInput{Rating: 5})
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeRemoteWrite {
		t.Errorf("error = %v, want code %s", err, model.ErrCodeRemoteWrite)
	}
}

// --- GetProgressのテスト ---

func TestGetProgress_NotFound_ReturnsEmptyList(t *testing.T) {
	store := &mockJournalStore{
		listJournalsFn: func(ctx context.Context, userID, biohackID int64) ([]*model.Journal, error) {
			return nil, &backend.NotFoundError{Resource: "Journals"}
		},
	}
	svc := newTestService(store, nil)

	entries, err := svc.GetProgress(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("404 should not be an error, got %v", err)
	}
	if entries == nil {
		t.Fatal("entries should be an empty list, not nil")
	}
	if len(entries) != 0 {
		t.Errorf("len(entries) = %d, want 0", len(entries))
	}
}

func TestGetProgress_RemoteError_MapsToReadError(t *testing.T) {
	store := &mockJournalStore{
		listJournalsFn: func(ctx context.Context, userID, biohackID int64) ([]*model.Journal, error) {
			return nil, &backend.RemoteError{
				Method: http.MethodGet,
				Path:   "/Journals/user/1/biohack/10",
				Status: http.StatusBadGateway,
			}
		},
	}
	svc := newTestService(store, nil)

	_, err := svc.GetProgress(context.Background(), 1, 10)
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeRemoteRead {
		t.Errorf("error = %v, want code %s", err, model.ErrCodeRemoteRead)
	}
}

// --- 集計のテスト ---

func TestGetBiohackProgress_NoEntries_AllZero(t *testing.T) {
	store := &mockJournalStore{
		listJournalsFn: func(ctx context.Context, userID, biohackID int64) ([]*model.Journal, error) {
			return nil, &backend.NotFoundError{Resource: "Journals"}
		},
	}
	svc := newTestService(store, nil)

	stats, err := svc.GetBiohackProgress(context.Background(), 1, 10, "朝散歩")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalSessions != 0 || stats.AverageRating != 0 || stats.Streak != 0 || stats.LongestStreak != 0 {
		t.Errorf("stats = %+v, want all zero", stats)
	}
	if stats.BiohackTitle != "朝散歩" {
		t.Errorf("title = %q, want %q", stats.BiohackTitle, "朝散歩")
	}
}

func TestGetBiohackProgress_ConsecutiveDaysEndingToday(t *testing.T) {
	// 今日を含む直近3日連続のエントリ
	store := &mockJournalStore{
		listJournalsFn: func(ctx context.Context, userID, biohackID int64) ([]*model.Journal, error) {
			return []*model.Journal{
				entryOn(fixedNow, 5),
				entryOn(fixedNow.AddDate(0, 0, -1), 4),
				entryOn(fixedNow.AddDate(0, 0, -2), 3),
			}, nil
		},
	}
	svc := newTestService(store, nil)

	stats, err := svc.GetBiohackProgress(context.Background(), 1, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Streak != 3 {
		t.Errorf("streak = %d, want 3", stats.Streak)
	}
	if stats.LongestStreak != 3 {
		t.Errorf("longest = %d, want 3", stats.LongestStreak)
	}
	if stats.TotalSessions != 3 {
		t.Errorf("total = %d, want 3", stats.TotalSessions)
	}
	if want := 4.0; stats.AverageRating != want {
		t.Errorf("average = %f, want %f", stats.AverageRating, want)
	}
}

func TestGetBiohackProgress_LastEntryYesterday_StreakSurvives(t *testing.T) {
	// 今日の実施がまだなくても、昨日までの連続は当日中は切れない
	store := &mockJournalStore{
		listJournalsFn: func(ctx context.Context, userID, biohackID int64) ([]*model.Journal, error) {
			return []*model.Journal{
				entryOn(fixedNow.AddDate(0, 0, -1), 4),
				entryOn(fixedNow.AddDate(0, 0, -2), 4),
			}, nil
		},
	}
	svc := newTestService(store, nil)

	stats, err := svc.GetBiohackProgress(context.Background(), 1, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Streak != 2 {
		t.Errorf("streak = %d, want 2", stats.Streak)
	}
}

func TestGetBiohackProgress_LastEntryTwoDaysAgo_StreakIsZero(t *testing.T) {
	store := &mockJournalStore{
		listJournalsFn: func(ctx context.Context, userID, biohackID int64) ([]*model.Journal, error) {
			return []*model.Journal{
				entryOn(fixedNow.AddDate(0, 0, -2), 4),
				entryOn(fixedNow.AddDate(0, 0, -3), 4),
			}, nil
		},
	}
	svc := newTestService(store, nil)

	stats, err := svc.GetBiohackProgress(context.Background(), 1, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Streak != 0 {
		t.Errorf("streak = %d, want 0", stats.Streak)
	}
	if stats.LongestStreak != 2 {
		t.Errorf("longest = %d, want 2", stats.LongestStreak)
	}
}

func TestGetBiohackProgress_SameDayEntriesCollapse(t *testing.T) {
	// 同一日に複数エントリがあっても実施日は1日として数える
	store := &mockJournalStore{
		listJournalsFn: func(ctx context.Context, userID, biohackID int64) ([]*model.Journal, error) {
			return []*model.Journal{
				entryOn(fixedNow.Add(-2*time.Hour), 5),
				entryOn(fixedNow.Add(-5*time.Hour), 3),
				entryOn(fixedNow.AddDate(0, 0, -1), 4),
			}, nil
		},
	}
	svc := newTestService(store, nil)

	stats, err := svc.GetBiohackProgress(context.Background(), 1, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Streak != 2 {
		t.Errorf("streak = %d, want 2", stats.Streak)
	}
	if stats.TotalSessions != 3 {
		t.Errorf("total = %d, want 3 (セッション数は丸めない)", stats.TotalSessions)
	}
}

func TestGetBiohackProgress_GapInHistory_LongestStreakScansAllRuns(t *testing.T) {
	// 履歴: 10〜8日前の3日連続、5日前の単発、昨日の単発
	store := &mockJournalStore{
		listJournalsFn: func(ctx context.Context, userID, biohackID int64) ([]*model.Journal, error) {
			return []*model.Journal{
				entryOn(fixedNow.AddDate(0, 0, -10), 4),
				entryOn(fixedNow.AddDate(0, 0, -9), 4),
				entryOn(fixedNow.AddDate(0, 0, -8), 4),
				entryOn(fixedNow.AddDate(0, 0, -5), 4),
				entryOn(fixedNow.AddDate(0, 0, -1), 4),
			}, nil
		},
	}
	svc := newTestService(store, nil)

	stats, err := svc.GetBiohackProgress(context.Background(), 1, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Streak != 1 {
		t.Errorf("streak = %d, want 1", stats.Streak)
	}
	if stats.LongestStreak != 3 {
		t.Errorf("longest = %d, want 3", stats.LongestStreak)
	}
	if stats.Streak > stats.LongestStreak {
		t.Error("longest streak must be >= current streak")
	}
}

func TestGetBiohackProgress_TimezoneBucketing(t *testing.T) {
	// UTC 22:00のエントリは、東京（UTC+9）では翌日の実施として数える
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}

	// fixedNow(6/15 12:00 UTC) = 6/15 21:00 JST
	store := &mockJournalStore{
		listJournalsFn: func(ctx context.Context, userID, biohackID int64) ([]*model.Journal, error) {
			return []*model.Journal{
				// 6/14 22:00 UTC = 6/15 07:00 JST → 東京では今日の実施
				entryOn(time.Date(2025, 6, 14, 22, 0, 0, 0, time.UTC), 4),
			}, nil
		},
	}
	svc := newTestService(store, tokyo)

	stats, err := svc.GetBiohackProgress(context.Background(), 1, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Streak != 1 {
		t.Errorf("streak = %d, want 1 (東京の日付バケツでは当日の実施)", stats.Streak)
	}

	// 同じエントリをUTCバケツで評価すると昨日の実施になる（猶予でストリークは1）
	svcUTC := newTestService(store, time.UTC)
	statsUTC, err := svcUTC.GetBiohackProgress(context.Background(), 1, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if statsUTC.Streak != 1 {
		t.Errorf("UTC streak = %d, want 1", statsUTC.Streak)
	}
}

func TestGetBiohackProgress_DSTSkippedMidnight_StreakSurvives(t *testing.T) {
	// チリは2025-09-07に夏時間が始まり、この日の深夜0時が存在しない。
	// 切り替え日をまたぐ連続実施がストリークを切らないことを確認する。
	santiago, err := time.LoadLocation("America/Santiago")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}

	store := &mockJournalStore{
		listJournalsFn: func(ctx context.Context, userID, biohackID int64) ([]*model.Journal, error) {
			return []*model.Journal{
				entryOn(time.Date(2025, 9, 5, 12, 0, 0, 0, santiago), 4),
				entryOn(time.Date(2025, 9, 6, 12, 0, 0, 0, santiago), 4),
				entryOn(time.Date(2025, 9, 7, 12, 0, 0, 0, santiago), 4),
				entryOn(time.Date(2025, 9, 8, 12, 0, 0, 0, santiago), 4),
			}, nil
		},
	}
	svc := newTestService(store, santiago)
	svc.now = func() time.Time { return time.Date(2025, 9, 8, 15, 0, 0, 0, santiago) }

	stats, err := svc.GetBiohackProgress(context.Background(), 1, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Streak != 4 {
		t.Errorf("streak = %d, want 4", stats.Streak)
	}
	if stats.LongestStreak != 4 {
		t.Errorf("longest = %d, want 4", stats.LongestStreak)
	}
}

func TestGetBiohackProgress_AverageRatingWithinBounds(t *testing.T) {
	store := &mockJournalStore{
		listJournalsFn: func(ctx context.Context, userID, biohackID int64) ([]*model.Journal, error) {
			return []*model.Journal{
				entryOn(fixedNow, 1),
				entryOn(fixedNow.AddDate(0, 0, -1), 5),
				entryOn(fixedNow.AddDate(0, 0, -2), 2),
			}, nil
		},
	}
	svc := newTestService(store, nil)

	stats, err := svc.GetBiohackProgress(context.Background(), 1, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.AverageRating < float64(model.MinRating) || stats.AverageRating > float64(model.MaxRating) {
		t.Errorf("average %f outside [%d, %d]", stats.AverageRating, model.MinRating, model.MaxRating)
	}
	want := (1.0 + 5.0 + 2.0) / 3.0
	if stats.AverageRating != want {
		t.Errorf("average = %f, want %f", stats.AverageRating, want)
	}
}

func TestGetBiohackProgress_EntriesSortedByDate(t *testing.T) {
	store := &mockJournalStore{
		listJournalsFn: func(ctx context.Context, userID, biohackID int64) ([]*model.Journal, error) {
			return []*model.Journal{
				entryOn(fixedNow, 5),
				entryOn(fixedNow.AddDate(0, 0, -3), 3),
				entryOn(fixedNow.AddDate(0, 0, -1), 4),
			}, nil
		},
	}
	svc := newTestService(store, nil)

	stats, err := svc.GetBiohackProgress(context.Background(), 1, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(stats.Entries); i++ {
		if stats.Entries[i].Date.Before(stats.Entries[i-1].Date) {
			t.Fatal("entries should be sorted in ascending date order")
		}
	}
}
