package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/biolog/internal/auth"
	"golang.org/x/time/rate"
)

func newTestRateLimiter(t *testing.T, config RateLimiterConfig) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(config)
	t.Cleanup(rl.Stop)
	return rl
}

func authedRequest(externalID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	ctx := ContextWithClaims(req.Context(), &auth.SessionClaims{ExternalID: externalID})
	return req.WithContext(ctx)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGeneralMiddleware_WithinLimit_Allows(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.CleanupInterval = time.Hour
	rl := newTestRateLimiter(t, config)

	handler := rl.GeneralMiddleware()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("sub-1"))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestGeneralMiddleware_OverLimit_Returns429WithRetryAfter(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.GeneralRate = rate.Limit(1.0 / 60.0)
	config.GeneralBurst = 2
	config.CleanupInterval = time.Hour
	rl := newTestRateLimiter(t, config)

	handler := rl.GeneralMiddleware()(okHandler())

	// バーストを使い切る
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest("sub-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("sub-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry Retry-After")
	}
}

func TestGeneralMiddleware_LimitsArePerUser(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.GeneralRate = rate.Limit(1.0 / 60.0)
	config.GeneralBurst = 1
	config.CleanupInterval = time.Hour
	rl := newTestRateLimiter(t, config)

	handler := rl.GeneralMiddleware()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("sub-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	// sub-1が枯渇してもsub-2は通る
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("sub-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("sub-1 status = %d, want 429", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("sub-2"))
	if rec.Code != http.StatusOK {
		t.Errorf("sub-2 status = %d, want 200", rec.Code)
	}

	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("limiter count = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestProgressMiddleware_IndependentFromGeneral(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.ProgressRate = rate.Limit(1.0 / 60.0)
	config.ProgressBurst = 1
	config.CleanupInterval = time.Hour
	rl := newTestRateLimiter(t, config)

	progressHandler := rl.ProgressMiddleware()(okHandler())
	generalHandler := rl.GeneralMiddleware()(okHandler())

	// 進捗保存の予算を使い切る
	rec := httptest.NewRecorder()
	progressHandler.ServeHTTP(rec, authedRequest("sub-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	rec = httptest.NewRecorder()
	progressHandler.ServeHTTP(rec, authedRequest("sub-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("progress status = %d, want 429", rec.Code)
	}

	// API全般の予算は消費されていない
	rec = httptest.NewRecorder()
	generalHandler.ServeHTTP(rec, authedRequest("sub-1"))
	if rec.Code != http.StatusOK {
		t.Errorf("general status = %d, want 200", rec.Code)
	}
}

func TestGeneralMiddleware_NoClaims_Returns401(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.CleanupInterval = time.Hour
	rl := newTestRateLimiter(t, config)

	handler := rl.GeneralMiddleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
