package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/biolog/internal/metrics"
	"github.com/hitoshi/biolog/internal/middleware"
	"github.com/hitoshi/biolog/internal/model"
	"github.com/hitoshi/biolog/internal/progress"
)

// ProgressServiceInterface は進捗ハンドラーが必要とするサービスインターフェース。
type ProgressServiceInterface interface {
	// SaveProgress は進捗エントリを保存する。
	SaveProgress(ctx context.Context, userID, biohackID int64, input progress.SaveInput) (*model.Journal, error)
	// GetProgress は指定Biohackの進捗エントリを全件取得する。
	GetProgress(ctx context.Context, userID, biohackID int64) ([]model.Journal, error)
	// GetBiohackProgress は指定Biohackの進捗集計を取得する。
	GetBiohackProgress(ctx context.Context, userID, biohackID int64, biohackTitle string) (*model.BiohackProgress, error)
}

// ProgressHandler は進捗記録のHTTPハンドラー。
type ProgressHandler struct {
	service   ProgressServiceInterface
	collector metrics.MetricsCollector
}

// NewProgressHandler はProgressHandlerを生成する。collectorはnil可。
func NewProgressHandler(service ProgressServiceInterface, collector metrics.MetricsCollector) *ProgressHandler {
	return &ProgressHandler{
		service:   service,
		collector: collector,
	}
}

// saveProgressRequest は進捗保存リクエストのボディ。
// dateはRFC 3339形式。省略時はサーバー時刻が使用される。
type saveProgressRequest struct {
	BiohackID    int64  `json:"biohackId"`
	BiohackTitle string `json:"biohackTitle"`
	Date         string `json:"date,omitempty"`
	Notes        string `json:"notes"`
	Rating       int    `json:"rating"`
}

// journalResponse は進捗エントリのAPIレスポンス。
type journalResponse struct {
	ID           int64  `json:"id"`
	BiohackID    int64  `json:"biohackId"`
	BiohackTitle string `json:"biohackTitle"`
	Date         string `json:"date"`
	Notes        string `json:"notes"`
	Rating       int    `json:"rating"`
	Completed    bool   `json:"completed"`
}

// progressStatsResponse は進捗集計のAPIレスポンス。
type progressStatsResponse struct {
	BiohackTitle  string            `json:"biohackTitle"`
	TotalSessions int               `json:"totalSessions"`
	AverageRating float64           `json:"averageRating"`
	Streak        int               `json:"streak"`
	LongestStreak int               `json:"longestStreak"`
	Entries       []journalResponse `json:"entries"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// SaveProgress は進捗エントリを保存する。
// POST /api/progress
func (h *ProgressHandler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := internalUserID(w, r)
	if !ok {
		return
	}

	var req saveProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	if req.BiohackID <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("biohackIdが不正です"))
		return
	}

	var date time.Time
	if req.Date != "" {
		parsed, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("dateはRFC 3339形式で指定してください"))
			return
		}
		date = parsed
	}

	journal, err := h.service.SaveProgress(r.Context(), userID, req.BiohackID, progress.SaveInput{
		BiohackTitle: req.BiohackTitle,
		Notes:        req.Notes,
		Rating:       req.Rating,
		Date:         date,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordProgressSave()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toJournalResponse(journal))
}

// GetProgress は指定Biohackの進捗エントリ一覧を返す。
// 記録が1件もない場合は空配列を返す。
// GET /api/progress/{biohackID}
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := internalUserID(w, r)
	if !ok {
		return
	}

	biohackID, err := parseIDParam(r, "biohackID")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("biohackIDが不正です"))
		return
	}

	journals, err := h.service.GetProgress(r.Context(), userID, biohackID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]journalResponse, 0, len(journals))
	for i := range journals {
		resp = append(resp, toJournalResponse(&journals[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetStats は指定Biohackの進捗集計を返す。
// GET /api/progress/{biohackID}/stats?title=xxx
func (h *ProgressHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := internalUserID(w, r)
	if !ok {
		return
	}

	biohackID, err := parseIDParam(r, "biohackID")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("biohackIDが不正です"))
		return
	}

	title := r.URL.Query().Get("title")

	start := time.Now()
	stats, err := h.service.GetBiohackProgress(r.Context(), userID, biohackID, title)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if h.collector != nil {
		h.collector.RecordStreakComputation(time.Since(start))
	}

	entries := make([]journalResponse, 0, len(stats.Entries))
	for i := range stats.Entries {
		entries = append(entries, toJournalResponse(&stats.Entries[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(progressStatsResponse{
		BiohackTitle:  stats.BiohackTitle,
		TotalSessions: stats.TotalSessions,
		AverageRating: stats.AverageRating,
		Streak:        stats.Streak,
		LongestStreak: stats.LongestStreak,
		Entries:       entries,
	})
}

// --- ヘルパー関数 ---

// toJournalResponse はmodel.JournalからAPIレスポンスに変換する。
func toJournalResponse(j *model.Journal) journalResponse {
	return journalResponse{
		ID:           j.ID,
		BiohackID:    j.BiohackID,
		BiohackTitle: j.BiohackTitle,
		Date:         j.Date.Format(time.RFC3339),
		Notes:        j.Notes,
		Rating:       j.Rating,
		Completed:    j.Completed,
	}
}

// internalUserID は認証済みセッションから内部ユーザーIDを取得する。
// セッションがない場合は401、内部IDが未確定の場合は404を書き込みfalseを返す。
func internalUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return 0, false
	}
	if claims.UserID == nil {
		// reconciliation未完了のセッション。再ログインで内部IDが補完される
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return 0, false
	}
	return *claims.UserID, true
}

// parseIDParam はURLパラメータから数値IDを取得する。
func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// invalidRequestBodyError はリクエストボディ解析失敗の統一エラーを返す。
func invalidRequestBodyError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeInvalidRating:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeUnsafeStudyURL:
		return http.StatusForbidden
	case model.ErrCodeMotivationNotFound, model.ErrCodeBiohackNotFound,
		model.ErrCodeLinkNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeIncompleteStudy:
		return http.StatusUnprocessableEntity
	case model.ErrCodeRemoteRead, model.ErrCodeRemoteWrite, model.ErrCodeDecodeFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
