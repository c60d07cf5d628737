package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/biolog/internal/model"
)

// LinkServiceInterface は関連ハンドラーが必要とするサービスインターフェース。
type LinkServiceInterface interface {
	// List は全関連を返す。
	List(ctx context.Context) ([]model.MotivationBiohackLink, error)
	// Link は関連を作成する。既存の場合もエラーにならない。
	Link(ctx context.Context, motivationID, biohackID int64) error
	// Unlink は関連を削除する。
	Unlink(ctx context.Context, motivationID, biohackID int64) error
}

// LinkHandler はMotivation-Biohack関連管理のHTTPハンドラー。
type LinkHandler struct {
	service LinkServiceInterface
}

// NewLinkHandler はLinkHandlerを生成する。
func NewLinkHandler(service LinkServiceInterface) *LinkHandler {
	return &LinkHandler{service: service}
}

// linkRequest は関連作成リクエストのボディ。
type linkRequest struct {
	MotivationID int64 `json:"motivationId"`
	BiohackID    int64 `json:"biohackId"`
}

// linkResponse は関連のAPIレスポンス。
type linkResponse struct {
	MotivationID int64 `json:"motivationId"`
	BiohackID    int64 `json:"biohackId"`
}

// ListLinks は全関連を返す。
// GET /api/links
func (h *LinkHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]linkResponse, 0, len(links))
	for _, l := range links {
		resp = append(resp, linkResponse{
			MotivationID: l.MotivationID,
			BiohackID:    l.BiohackID,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CreateLink は関連を作成する。
// 関連が既に存在していた場合も成功として204を返す（2回呼んでも結果は同じ）。
// POST /api/links
func (h *LinkHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	if req.MotivationID <= 0 || req.BiohackID <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("motivationIdとbiohackIdは必須です"))
		return
	}

	if err := h.service.Link(r.Context(), req.MotivationID, req.BiohackID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteLink は関連を削除する。
// DELETE /api/links/{motivationID}/{biohackID}
func (h *LinkHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	motivationID, err := parseIDParam(r, "motivationID")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("motivationIDが不正です"))
		return
	}

	biohackID, err := parseIDParam(r, "biohackID")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("biohackIDが不正です"))
		return
	}

	if err := h.service.Unlink(r.Context(), motivationID, biohackID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
