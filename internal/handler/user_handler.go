package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/biolog/internal/auth"
	"github.com/hitoshi/biolog/internal/middleware"
	"github.com/hitoshi/biolog/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// SetMotivation は現在のMotivation選択を更新し、再発行されたトークンと
	// リモート反映の結果を返す。
	SetMotivation(ctx context.Context, claims auth.SessionClaims, motivationID *int64) (string, auth.SessionClaims, auth.MotivationSyncResult, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	config  AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, config AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service: service,
		config:  config,
	}
}

// setMotivationRequest はMotivation選択リクエストのボディ。
// motivationIdにnullを指定すると選択解除になる。
type setMotivationRequest struct {
	MotivationID *int64 `json:"motivationId"`
}

// setMotivationResponse はMotivation選択のレスポンス。
// syncはリモート反映の結果で、local_onlyの場合は理由を含む。
type setMotivationResponse struct {
	User *auth.SessionClaims `json:"user"`
	Sync syncStatusPayload   `json:"sync"`
}

type syncStatusPayload struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// SetMotivation は現在のMotivation選択を更新する。
// セッションクレームは常に即時更新され、セッションCookieが差し替えられる。
// リモート反映に失敗してもリクエストは成功し、syncステータスで通知される。
// PUT /api/users/me/motivation
func (h *UserHandler) SetMotivation(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req setMotivationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	if req.MotivationID != nil && *req.MotivationID <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("motivationIdが不正です"))
		return
	}

	token, updated, sync, err := h.service.SetMotivation(r.Context(), *claims, req.MotivationID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 更新後クレームを含むトークンでセッションCookieを差し替える
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(setMotivationResponse{
		User: &updated,
		Sync: syncStatusPayload{
			Status: string(sync.Status),
			Reason: sync.Reason,
		},
	})
}
