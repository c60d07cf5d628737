package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/biolog/internal/model"
)

// MotivationServiceInterface はMotivationハンドラーが必要とするサービスインターフェース。
type MotivationServiceInterface interface {
	ListMotivations(ctx context.Context) ([]*model.Motivation, error)
	GetMotivation(ctx context.Context, id int64) (*model.Motivation, error)
	SaveMotivation(ctx context.Context, m *model.Motivation) (*model.Motivation, error)
	DeleteMotivation(ctx context.Context, id int64) error
	GetMotivationBiohacks(ctx context.Context, motivationID int64) ([]*model.Biohack, error)
}

// MotivationHandler はMotivation管理のHTTPハンドラー。
type MotivationHandler struct {
	service MotivationServiceInterface
}

// NewMotivationHandler はMotivationHandlerを生成する。
func NewMotivationHandler(service MotivationServiceInterface) *MotivationHandler {
	return &MotivationHandler{service: service}
}

// motivationRequest はMotivation作成・更新リクエストのボディ。
type motivationRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// motivationResponse はMotivation情報のAPIレスポンス。
type motivationResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// ListMotivations はMotivation一覧を返す。
// GET /api/motivations
func (h *MotivationHandler) ListMotivations(w http.ResponseWriter, r *http.Request) {
	motivations, err := h.service.ListMotivations(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]motivationResponse, 0, len(motivations))
	for _, m := range motivations {
		resp = append(resp, toMotivationResponse(m))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetMotivation はMotivation詳細を返す。
// GET /api/motivations/{id}
func (h *MotivationHandler) GetMotivation(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("idが不正です"))
		return
	}

	m, err := h.service.GetMotivation(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toMotivationResponse(m))
}

// CreateMotivation はMotivationを新規作成する。
// POST /api/motivations
func (h *MotivationHandler) CreateMotivation(w http.ResponseWriter, r *http.Request) {
	var req motivationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	saved, err := h.service.SaveMotivation(r.Context(), &model.Motivation{
		Title:       req.Title,
		Description: req.Description,
		Category:    model.MotivationCategory(req.Category),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toMotivationResponse(saved))
}

// UpdateMotivation はMotivationを更新する。
// PUT /api/motivations/{id}
func (h *MotivationHandler) UpdateMotivation(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("idが不正です"))
		return
	}

	var req motivationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	saved, err := h.service.SaveMotivation(r.Context(), &model.Motivation{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Category:    model.MotivationCategory(req.Category),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toMotivationResponse(saved))
}

// DeleteMotivation はMotivationを削除する。
// DELETE /api/motivations/{id}
func (h *MotivationHandler) DeleteMotivation(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("idが不正です"))
		return
	}

	if err := h.service.DeleteMotivation(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMotivationBiohacks は指定Motivationに紐付くBiohack一覧を返す。
// GET /api/motivations/{id}/biohacks
func (h *MotivationHandler) ListMotivationBiohacks(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("idが不正です"))
		return
	}

	biohacks, err := h.service.GetMotivationBiohacks(r.Context(), id)
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

// toMotivationResponse はmodel.MotivationからAPIレスポンスに変換する。
func toMotivationResponse(m *model.Motivation) motivationResponse {
	resp := motivationResponse{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Category:    string(m.Category),
	}
	if !m.CreatedAt.IsZero() {
		resp.CreatedAt = m.CreatedAt.Format(time.RFC3339)
	}
	if !m.UpdatedAt.IsZero() {
		resp.UpdatedAt = m.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}
