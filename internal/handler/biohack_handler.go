package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/biolog/internal/catalog"
	"github.com/hitoshi/biolog/internal/model"
)

// BiohackServiceInterface はBiohackハンドラーが必要とするサービスインターフェース。
type BiohackServiceInterface interface {
	ListBiohacks(ctx context.Context) ([]*model.Biohack, error)
	GetBiohack(ctx context.Context, id int64) (*model.Biohack, error)
	SaveBiohack(ctx context.Context, b *model.Biohack) (*model.Biohack, error)
	DeleteBiohack(ctx context.Context, id int64) error
	VerifyStudyURL(ctx context.Context, rawURL string) (*catalog.StudyURLCheck, error)
}

// BiohackHandler はBiohack管理のHTTPハンドラー。
type BiohackHandler struct {
	service BiohackServiceInterface
}

// NewBiohackHandler はBiohackHandlerを生成する。
func NewBiohackHandler(service BiohackServiceInterface) *BiohackHandler {
	return &BiohackHandler{service: service}
}

// researchStudyPayload は研究引用のリクエスト・レスポンス表現。
type researchStudyPayload struct {
	Summary   string `json:"summary"`
	SourceURL string `json:"sourceURL"`
}

// biohackRequest はBiohack作成・更新リクエストのボディ。
type biohackRequest struct {
	Title           string                 `json:"title"`
	Technique       string                 `json:"technique"`
	Category        string                 `json:"category"`
	Difficulty      string                 `json:"difficulty"`
	TimeRequired    string                 `json:"timeRequired"`
	Icon            string                 `json:"icon"`
	Color           string                 `json:"color"`
	ActionSteps     []string               `json:"actionSteps"`
	Mechanism       string                 `json:"mechanism"`
	Biology         string                 `json:"biology"`
	ResearchStudies []researchStudyPayload `json:"researchStudies"`
}

// biohackResponse はBiohack情報のAPIレスポンス。
type biohackResponse struct {
	ID              int64                  `json:"id"`
	Title           string                 `json:"title"`
	Technique       string                 `json:"technique"`
	Category        string                 `json:"category"`
	Difficulty      string                 `json:"difficulty"`
	TimeRequired    string                 `json:"timeRequired"`
	Icon            string                 `json:"icon"`
	Color           string                 `json:"color"`
	ActionSteps     []string               `json:"actionSteps"`
	Mechanism       string                 `json:"mechanism"`
	Biology         string                 `json:"biology,omitempty"`
	ResearchStudies []researchStudyPayload `json:"researchStudies"`
}

// verifyStudyRequest は引用リンク到達確認リクエストのボディ。
type verifyStudyRequest struct {
	URL string `json:"url"`
}

// verifyStudyResponse は引用リンク到達確認のレスポンス。
type verifyStudyResponse struct {
	URL        string `json:"url"`
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"statusCode,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// ListBiohacks はBiohack一覧を返す。
// GET /api/biohacks
func (h *BiohackHandler) ListBiohacks(w http.ResponseWriter, r *http.Request) {
	biohacks, err := h.service.ListBiohacks(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]biohackResponse, 0, len(biohacks))
	for _, b := range biohacks {
		resp = append(resp, toBiohackResponse(b))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetBiohack はBiohack詳細を返す。
// GET /api/biohacks/{id}
func (h *BiohackHandler) GetBiohack(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("idが不正です"))
		return
	}

	b, err := h.service.GetBiohack(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBiohackResponse(b))
}

// CreateBiohack はBiohackを新規作成する。
// POST /api/biohacks
func (h *BiohackHandler) CreateBiohack(w http.ResponseWriter, r *http.Request) {
	var req biohackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	saved, err := h.service.SaveBiohack(r.Context(), fromBiohackRequest(0, req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toBiohackResponse(saved))
}

// UpdateBiohack はBiohackを更新する。
// PUT /api/biohacks/{id}
func (h *BiohackHandler) UpdateBiohack(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("idが不正です"))
		return
	}

	var req biohackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	saved, err := h.service.SaveBiohack(r.Context(), fromBiohackRequest(id, req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBiohackResponse(saved))
}

// DeleteBiohack はBiohackを削除する。
// DELETE /api/biohacks/{id}
func (h *BiohackHandler) DeleteBiohack(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("idが不正です"))
		return
	}

	if err := h.service.DeleteBiohack(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// VerifyStudy は研究引用のソースURLが到達可能かを確認する。
// POST /api/biohacks/{id}/verify-study
func (h *BiohackHandler) VerifyStudy(w http.ResponseWriter, r *http.Request) {
	var req verifyStudyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("urlが空です"))
		return
	}

	check, err := h.service.VerifyStudyURL(r.Context(), req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(verifyStudyResponse{
		URL:        check.URL,
		Reachable:  check.Reachable,
		StatusCode: check.StatusCode,
		Reason:     check.Reason,
	})
}

// --- ヘルパー関数 ---

// fromBiohackRequest はリクエストボディからmodel.Biohackに変換する。
func fromBiohackRequest(id int64, req biohackRequest) *model.Biohack {
	studies := make([]model.ResearchStudy, 0, len(req.ResearchStudies))
	for _, s := range req.ResearchStudies {
		studies = append(studies, model.ResearchStudy{
			Summary:   s.Summary,
			SourceURL: s.SourceURL,
		})
	}
	return &model.Biohack{
		ID:              id,
		Title:           req.Title,
		Technique:       req.Technique,
		Category:        model.BiohackCategory(req.Category),
		Difficulty:      model.Difficulty(req.Difficulty),
		TimeRequired:    req.TimeRequired,
		Icon:            req.Icon,
		Color:           req.Color,
		ActionSteps:     req.ActionSteps,
		Mechanism:       req.Mechanism,
		Biology:         req.Biology,
		ResearchStudies: studies,
	}
}

// toBiohackResponse はmodel.BiohackからAPIレスポンスに変換する。
func toBiohackResponse(b *model.Biohack) biohackResponse {
	studies := make([]researchStudyPayload, 0, len(b.ResearchStudies))
	for _, s := range b.ResearchStudies {
		studies = append(studies, researchStudyPayload{
			Summary:   s.Summary,
			SourceURL: s.SourceURL,
		})
	}
	return biohackResponse{
		ID:              b.ID,
		Title:           b.Title,
		Technique:       b.Technique,
		Category:        string(b.Category),
		Difficulty:      string(b.Difficulty),
		TimeRequired:    b.TimeRequired,
		Icon:            b.Icon,
		Color:           b.Color,
		ActionSteps:     b.ActionSteps,
		Mechanism:       b.Mechanism,
		Biology:         b.Biology,
		ResearchStudies: studies,
	}
}
