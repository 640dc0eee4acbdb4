package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/CampusPulseLab/pulse/backend/internal/store"
)

func TestCatalogRefreshImportsRemoteEvents(t *testing.T) {
	directory := &stubRemote{events: []store.Event{
		{ID: "remote-1", Title: "Career Fair", Date: "2024-06-01"},
		{ID: "remote-2", Title: "Open Day", Date: "2024-06-02"},
		{Title: "No ID, skipped", Date: "2024-06-03"},
	}}
	ts := newTestServer(t, directory)

	recorder := ts.do(t, http.MethodPost, "/catalog/refresh", "", "user-1")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var response struct {
		Imported int `json:"imported"`
	}
	decodeBody(t, recorder, &response)
	if response.Imported != 2 {
		t.Fatalf("expected two imported events, got %d", response.Imported)
	}

	event, err := ts.store.EventByID(context.Background(), "remote-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event == nil {
		t.Fatalf("expected the remote id to be preserved")
	}

	// Refreshing again replaces rather than duplicates.
	recorder = ts.do(t, http.MethodPost, "/catalog/refresh", "", "user-1")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 on refresh, got %d", recorder.Code)
	}
	events, err := ts.store.Events(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected the catalog to stay at two events, got %d", len(events))
	}
}

func TestCatalogRefreshWithoutRemote(t *testing.T) {
	ts := newTestServer(t, nil)

	recorder := ts.do(t, http.MethodPost, "/catalog/refresh", "", "user-1")
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a remote backend, got %d", recorder.Code)
	}
}

func TestAdminResets(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx := context.Background()

	createTestEvent(t, ts, "user-1", `{"title":"Doomed","date":"2024-02-02"}`)
	if _, err := ts.store.SetPushToken(ctx, store.PushToken{UserID: "user-1", PushToken: "tok"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recorder := ts.do(t, http.MethodPost, "/admin/reset", "", "user-1")
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
	events, err := ts.store.Events(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected the data reset to clear events")
	}
	token, err := ts.store.PushTokenFor(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == nil {
		t.Fatalf("expected push tokens to survive the data reset")
	}

	recorder = ts.do(t, http.MethodPost, "/admin/reset-tokens", "", "user-1")
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
	token, err = ts.store.PushTokenFor(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != nil {
		t.Fatalf("expected the token reset to clear push tokens")
	}

	recorder = ts.do(t, http.MethodPost, "/admin/reset-all", "", "user-1")
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
}
