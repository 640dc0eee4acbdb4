package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CampusPulseLab/pulse/backend/internal/auth"
	"github.com/CampusPulseLab/pulse/backend/internal/database"
	"github.com/CampusPulseLab/pulse/backend/internal/feed"
	"github.com/CampusPulseLab/pulse/backend/internal/recommend"
	"github.com/CampusPulseLab/pulse/backend/internal/remote"
	"github.com/CampusPulseLab/pulse/backend/internal/server"
	"github.com/CampusPulseLab/pulse/backend/internal/store"
	"github.com/CampusPulseLab/pulse/backend/internal/users"
)

// fakeBackend stands in for the managed backend: it validates the remote
// access token and serves the canonical event catalog.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer remote-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"sub-1","email":"student@campus.edu","user_metadata":{"full_name":"Sam Student"}}`))
	})
	mux.HandleFunc("/rest/v1/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"remote-1","name":"Spring Derby","date":"2024-01-05","category":"Sports","popularity":12,"location":"Stadium"},
			{"id":"remote-2","title":"Recital","date":"2024-01-06","category":"Music","popularity":3}
		]`))
	})
	backend := httptest.NewServer(mux)
	t.Cleanup(backend.Close)
	return backend
}

func newAPIServer(t *testing.T, backendURL string) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "pulse.db"), logger)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	kv, err := store.NewGormKV(db, func() int64 { return clock().Unix() })
	if err != nil {
		t.Fatalf("failed to build kv: %v", err)
	}
	st, err := store.NewStore(store.StoreConfig{
		KV:         kv,
		Clock:      clock,
		IDProvider: store.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	recommender, err := recommend.NewService(recommend.ServiceConfig{Store: st, Clock: clock, Logger: logger})
	if err != nil {
		t.Fatalf("failed to build recommender: %v", err)
	}
	identities, err := users.NewService(users.ServiceConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("failed to build identity service: %v", err)
	}
	issuer := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte("integration-secret"),
		Issuer:        "pulse-auth",
		Audience:      "pulse-api",
		SessionTTL:    time.Hour,
		Clock:         clock,
	})
	directory, err := remote.NewClient(remote.ClientConfig{BaseURL: backendURL, APIKey: "anon-key", Logger: logger})
	if err != nil {
		t.Fatalf("failed to build remote client: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Store:       st,
		Tokens:      issuer,
		Identities:  identities,
		Recommender: recommender,
		Remote:      directory,
		Feed:        feed.NewDispatcher(),
		Logger:      logger,
		Clock:       clock,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return handler
}

func call(t *testing.T, handler http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode %q: %v", recorder.Body.String(), err)
	}
}

func TestSignInRefreshRegisterAndRecommend(t *testing.T) {
	backend := fakeBackend(t)
	handler := newAPIServer(t, backend.URL)

	// A stale remote token is turned away before a session exists.
	recorder := call(t, handler, http.MethodPost, "/auth/session", `{"access_token":"stale"}`, "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a stale remote token, got %d", recorder.Code)
	}

	recorder = call(t, handler, http.MethodPost, "/auth/session", `{"access_token":"remote-token"}`, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 from sign-in, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var session struct {
		AccessToken string `json:"access_token"`
		UserID      string `json:"user_id"`
	}
	decode(t, recorder, &session)
	if session.UserID != "sub-1" || session.AccessToken == "" {
		t.Fatalf("unexpected session payload %#v", session)
	}

	// Mirror the remote catalog, then do it again to prove idempotence.
	for i := 0; i < 2; i++ {
		recorder = call(t, handler, http.MethodPost, "/catalog/refresh", "", session.AccessToken)
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200 from refresh, got %d: %s", recorder.Code, recorder.Body.String())
		}
	}
	recorder = call(t, handler, http.MethodGet, "/events", "", session.AccessToken)
	var catalog struct {
		Events []store.Event `json:"events"`
	}
	decode(t, recorder, &catalog)
	if len(catalog.Events) != 2 {
		t.Fatalf("expected two mirrored events, got %d", len(catalog.Events))
	}

	recorder = call(t, handler, http.MethodPost, "/events/remote-1/registrations", "", session.AccessToken)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 from registration, got %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = call(t, handler, http.MethodPost, "/events/remote-1/comments", `{"content":"see you there"}`, session.AccessToken)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 from comment, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var comment store.Comment
	decode(t, recorder, &comment)

	recorder = call(t, handler, http.MethodPost, "/comments/"+comment.ID+"/likes", "", session.AccessToken)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 from like, got %d: %s", recorder.Code, recorder.Body.String())
	}

	// The sports registration drives the ranking: the derby outranks the
	// recital even though both are upcoming.
	recorder = call(t, handler, http.MethodGet, "/me/recommendations", "", session.AccessToken)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 from recommendations, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var recommendations struct {
		Events []store.Event `json:"events"`
	}
	decode(t, recorder, &recommendations)
	if len(recommendations.Events) != 2 {
		t.Fatalf("expected both upcoming events, got %d", len(recommendations.Events))
	}
	if recommendations.Events[0].ID != "remote-1" {
		t.Fatalf("expected the sports event first, got %q", recommendations.Events[0].Title)
	}
}
