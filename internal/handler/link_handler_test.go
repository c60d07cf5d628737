package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/biolog/internal/model"
)

// --- モック定義 ---

type mockLinkService struct {
	listFn   func(ctx context.Context) ([]model.MotivationBiohackLink, error)
	linkFn   func(ctx context.Context, motivationID, biohackID int64) error
	unlinkFn func(ctx context.Context, motivationID, biohackID int64) error
}

func (m *mockLinkService) List(ctx context.Context) ([]model.MotivationBiohackLink, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockLinkService) Link(ctx context.Context, motivationID, biohackID int64) error {
	if m.linkFn != nil {
		return m.linkFn(ctx, motivationID, biohackID)
	}
	return nil
}

func (m *mockLinkService) Unlink(ctx context.Context, motivationID, biohackID int64) error {
	if m.unlinkFn != nil {
		return m.unlinkFn(ctx, motivationID, biohackID)
	}
	return nil
}

// --- テスト ---

func TestListLinks_NoLinks_ReturnsEmptyArray(t *testing.T) {
	h := NewLinkHandler(&mockLinkService{})

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	rec := httptest.NewRecorder()
	h.ListLinks(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestCreateLink_Success_Returns204(t *testing.T) {
	var gotMotivation, gotBiohack int64
	h := NewLinkHandler(&mockLinkService{
		linkFn: func(ctx context.Context, motivationID, biohackID int64) error {
			gotMotivation, gotBiohack = motivationID, biohackID
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/links",
		strings.NewReader(`{"motivationId":1,"biohackId":2}`))
	rec := httptest.NewRecorder()
	h.CreateLink(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if gotMotivation != 1 || gotBiohack != 2 {
		t.Errorf("link args = %d/%d, want 1/2", gotMotivation, gotBiohack)
	}
}

func TestCreateLink_InvalidIDs_Returns400(t *testing.T) {
	h := NewLinkHandler(&mockLinkService{})

	bodies := []string{
		`{"motivationId":0,"biohackId":2}`,
		`{"motivationId":1,"biohackId":-1}`,
		`{}`,
	}
	for _, body := range bodies {
		req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.CreateLink(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestDeleteLink_Success_Returns204(t *testing.T) {
	var gotMotivation, gotBiohack int64
	h := NewLinkHandler(&mockLinkService{
		unlinkFn: func(ctx context.Context, motivationID, biohackID int64) error {
			gotMotivation, gotBiohack = motivationID, biohackID
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/links/1/2", nil)
	req = withURLParams(req, "motivationID", "1", "biohackID", "2")
	rec := httptest.NewRecorder()
	h.DeleteLink(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if gotMotivation != 1 || gotBiohack != 2 {
		t.Errorf("unlink args = %d/%d, want 1/2", gotMotivation, gotBiohack)
	}
}

func TestDeleteLink_NotFound_Returns404(t *testing.T) {
	h := NewLinkHandler(&mockLinkService{
		unlinkFn: func(ctx context.Context, motivationID, biohackID int64) error {
			return model.NewLinkNotFoundError(motivationID, biohackID)
		},
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/links/1/2", nil)
	req = withURLParams(req, "motivationID", "1", "biohackID", "2")
	rec := httptest.NewRecorder()
	h.DeleteLink(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
