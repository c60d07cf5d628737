package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/biolog/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewClient(server.URL, server.Client(), logger)
}

// --- エラー変換のテスト ---

func TestClient_404_ReturnsNotFoundError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetMotivation(context.Background(), 1)
	// GetMotivationは404をnilに変換する
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 404のまま伝播するAPIでは型付きエラーになる
	_, err = client.ListJournals(context.Background(), 1, 2)
	if !IsNotFound(err) {
		t.Errorf("error = %v, want NotFoundError", err)
	}
}

func TestClient_409_ReturnsConflictError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	err := client.CreateLink(context.Background(), 1, 2)
	if !IsConflict(err) {
		t.Errorf("error = %v, want ConflictError", err)
	}
}

func TestClient_5xx_ReturnsRemoteErrorWithDetails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("database exploded"))
	})

	_, err := client.ListMotivations(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	remoteErr, ok := err.(*RemoteError)
	if !ok {
		t.Fatalf("error type = %T, want *RemoteError", err)
	}
	if remoteErr.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", remoteErr.Status)
	}
	if remoteErr.Method != http.MethodGet || remoteErr.Path != "/Motivations" {
		t.Errorf("method/path = %s %s", remoteErr.Method, remoteErr.Path)
	}
	if remoteErr.Body != "database exploded" {
		t.Errorf("body = %q", remoteErr.Body)
	}
}

func TestClient_MalformedJSON_ReturnsDecodeError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	})

	_, err := client.ListBiohacks(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*DecodeError); !ok {
		t.Errorf("error type = %T, want *DecodeError", err)
	}
}

// --- Usersのテスト ---

func TestFindUserByEmail_MatchesCaseInsensitive(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users" {
			t.Errorf("path = %q, want /Users", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "email": "other@example.com"},
			{"id": 2, "email": "Taro@Example.com", "firstname": "Taro", "externalid": "sub-1"},
		})
	})

	user, err := client.FindUserByEmail(context.Background(), "taro@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil {
		t.Fatal("expected a user")
	}
	if user.ID != 2 || user.FirstName != "Taro" {
		t.Errorf("user = %+v", user)
	}
}

func TestFindUserByEmail_NoMatch_ReturnsNil(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{})
	})

	user, err := client.FindUserByEmail(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil", user)
	}
}

func TestCreateUser_SendsLowercaseWireFields(t *testing.T) {
	var received map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(map[string]any{"id": 7, "firstname": "Taro"})
	})

	created, err := client.CreateUser(context.Background(), &model.User{
		FirstName:  "Taro",
		LastName:   "Yamada",
		Email:      "taro@example.com",
		Provider:   "google",
		ExternalID: "sub-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != 7 {
		t.Errorf("id = %d, want 7", created.ID)
	}

	// ワイヤフィールド名は小文字連結
	for _, key := range []string{"firstname", "lastname", "externalid", "provider"} {
		if _, ok := received[key]; !ok {
			t.Errorf("wire body should contain %q, got %v", key, received)
		}
	}
}

// --- Biohacksのテスト ---

func TestGetBiohack_DecodesStringifiedStudies(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":              3,
			"title":           "朝散歩",
			"action":          []string{"起床後30分以内に外に出る"},
			"researchStudies": `[{"summary":"概日リズムの研究","sourceURL":"https://example.com/study"}]`,
		})
	})

	b, err := client.GetBiohack(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.ResearchStudies) != 1 {
		t.Fatalf("len(studies) = %d, want 1", len(b.ResearchStudies))
	}
	if b.ResearchStudies[0].SourceURL != "https://example.com/study" {
		t.Errorf("sourceURL = %q", b.ResearchStudies[0].SourceURL)
	}
}

func TestCreateBiohack_EncodesStudiesAsString(t *testing.T) {
	var received map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(map[string]any{"id": 1})
	})

	_, err := client.CreateBiohack(context.Background(), &model.Biohack{
		Title: "朝散歩",
		ResearchStudies: []model.ResearchStudy{
			{Summary: "概日リズムの研究", SourceURL: "https://example.com/study"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, ok := received["researchStudies"].(string)
	if !ok {
		t.Fatalf("researchStudies should be a string on the wire, got %T", received["researchStudies"])
	}
	var decoded []model.ResearchStudy
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("wire value should be stringified JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Summary != "概日リズムの研究" {
		t.Errorf("decoded = %+v", decoded)
	}
}

// --- Journalsのテスト ---

func TestCreateJournal_BackfillsBiohackTitle(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// 永続化サービスはbiohackNameを返さない
		json.NewEncoder(w).Encode(map[string]any{
			"id": 10, "userId": 1, "biohackId": 2, "rating": 5,
		})
	})

	saved, err := client.CreateJournal(context.Background(), &model.Journal{
		UserID:       1,
		BiohackID:    2,
		BiohackTitle: "朝散歩",
		Rating:       5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.BiohackTitle != "朝散歩" {
		t.Errorf("biohackTitle = %q, want backfilled input value", saved.BiohackTitle)
	}
	if !saved.Completed {
		t.Error("saved entry should be marked completed")
	}
}

func TestListJournals_UsesUserBiohackPath(t *testing.T) {
	var path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "userId": 5, "biohackId": 9, "rating": 4},
		})
	})

	journals, err := client.ListJournals(context.Background(), 5, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/Journals/user/5/biohack/9" {
		t.Errorf("path = %q", path)
	}
	if len(journals) != 1 || journals[0].Rating != 4 {
		t.Errorf("journals = %+v", journals)
	}
}

// --- MotivationBiohacksのテスト ---

func TestCreateLink_PostsToLinkEndpoint(t *testing.T) {
	var path string
	var received linkDTO
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	})

	if err := client.CreateLink(context.Background(), 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/MotivationBiohacks/link" {
		t.Errorf("path = %q", path)
	}
	if received.MotivationID != 1 || received.BiohackID != 2 {
		t.Errorf("body = %+v", received)
	}
}

func TestDeleteLink_PostsToUnlinkEndpoint(t *testing.T) {
	var path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	if err := client.DeleteLink(context.Background(), 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/MotivationBiohacks/unlink" {
		t.Errorf("path = %q", path)
	}
}

func TestNewClient_NormalizesTrailingSlash(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	client := NewClient("http://localhost:5189/api/", nil, logger)
	if client.baseURL != "http://localhost:5189/api" {
		t.Errorf("baseURL = %q", client.baseURL)
	}
}
