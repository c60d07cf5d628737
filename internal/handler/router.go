package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/biolog/internal/metrics"
	"github.com/hitoshi/biolog/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// メトリクス
	Collector metrics.MetricsCollector
	Gatherer  prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメインサービス
	ProgressService   ProgressServiceInterface
	MotivationService MotivationServiceInterface
	BiohackService    BiohackServiceInterface
	LinkService       LinkServiceInterface
	UserService       UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → SecurityHeaders → Logging → CORS
//	→（/api配下のみ）Session → RateLimit(General)
//
// RequestIDはRecoveryより外側に置く。panic時のログにもリクエストIDが
// 載るようにするため。
// 認証ルート（/auth/*）とヘルスチェック、メトリクスはセッション検証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.TokenVerifier, deps.AuthConfig, deps.Collector)
	progressHandler := NewProgressHandler(deps.ProgressService, deps.Collector)
	motivationHandler := NewMotivationHandler(deps.MotivationService)
	biohackHandler := NewBiohackHandler(deps.BiohackService)
	linkHandler := NewLinkHandler(deps.LinkService)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)

	// --- 認証不要のルート ---

	// 認証ルート（OAuthフローとセッション照会）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/session", authHandler.Session)
	})

	// ヘルスチェック
	r.Get("/healthz", healthzHandler)

	// Prometheusスクレイプ
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 進捗記録
		r.Route("/api/progress", func(r chi.Router) {
			// POST /api/progress - 進捗保存（保存専用レート制限を追加）
			r.With(deps.RateLimiter.ProgressMiddleware()).Post("/", progressHandler.SaveProgress)

			r.Route("/{biohackID}", func(r chi.Router) {
				r.Get("/", progressHandler.GetProgress)
				r.Get("/stats", progressHandler.GetStats)
			})
		})

		// Motivation管理
		r.Route("/api/motivations", func(r chi.Router) {
			r.Get("/", motivationHandler.ListMotivations)
			r.Post("/", motivationHandler.CreateMotivation)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", motivationHandler.GetMotivation)
				r.Put("/", motivationHandler.UpdateMotivation)
				r.Delete("/", motivationHandler.DeleteMotivation)

				// GET /api/motivations/{id}/biohacks - 紐付くBiohack一覧
				r.Get("/biohacks", motivationHandler.ListMotivationBiohacks)
			})
		})

		// Biohack管理
		r.Route("/api/biohacks", func(r chi.Router) {
			r.Get("/", biohackHandler.ListBiohacks)
			r.Post("/", biohackHandler.CreateBiohack)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", biohackHandler.GetBiohack)
				r.Put("/", biohackHandler.UpdateBiohack)
				r.Delete("/", biohackHandler.DeleteBiohack)
				r.Post("/verify-study", biohackHandler.VerifyStudy)
			})
		})

		// Motivation-Biohack関連管理
		r.Route("/api/links", func(r chi.Router) {
			r.Get("/", linkHandler.ListLinks)
			r.Post("/", linkHandler.CreateLink)
			r.Delete("/{motivationID}/{biohackID}", linkHandler.DeleteLink)
		})

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Put("/me/motivation", userHandler.SetMotivation)
		})
	})

	return r
}

// healthzHandler はヘルスチェックエンドポイント。
func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
