package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/CampusPulseLab/pulse/backend/internal/store"
)

func createTestEvent(t *testing.T, ts *testServer, userID, body string) store.Event {
	t.Helper()
	recorder := ts.do(t, http.MethodPost, "/events", body, userID)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var event store.Event
	decodeBody(t, recorder, &event)
	return event
}

func TestCreateAndListEvents(t *testing.T) {
	ts := newTestServer(t, nil)

	created := createTestEvent(t, ts, "user-1", `{"title":"Hack Night","date":"2024-02-20","venue":"Lab 3","category":"Tech"}`)
	if created.ID == "" {
		t.Fatalf("expected an id on the created event")
	}
	if created.CreatorID != "user-1" {
		t.Fatalf("expected the session user as creator, got %q", created.CreatorID)
	}

	recorder := ts.do(t, http.MethodGet, "/events", "", "user-2")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var response struct {
		Events []store.Event `json:"events"`
	}
	decodeBody(t, recorder, &response)
	if len(response.Events) != 1 || response.Events[0].ID != created.ID {
		t.Fatalf("expected the created event in the list, got %#v", response.Events)
	}
}

func TestCreateEventValidatesPayload(t *testing.T) {
	ts := newTestServer(t, nil)

	recorder := ts.do(t, http.MethodPost, "/events", `{"title":"No Date"}`, "user-1")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a date, got %d", recorder.Code)
	}
}

func TestGetEventNotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	recorder := ts.do(t, http.MethodGet, "/events/missing", "", "user-1")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown event, got %d", recorder.Code)
	}
}

func TestPatchAndDeleteEvent(t *testing.T) {
	ts := newTestServer(t, nil)
	created := createTestEvent(t, ts, "user-1", `{"title":"Hack Night","date":"2024-02-20"}`)

	recorder := ts.do(t, http.MethodPatch, "/events/"+created.ID, `{"venue":"Lab 5"}`, "user-1")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var patched store.Event
	decodeBody(t, recorder, &patched)
	if patched.Venue != "Lab 5" || patched.Title != "Hack Night" {
		t.Fatalf("unexpected patched event %#v", patched)
	}

	recorder = ts.do(t, http.MethodDelete, "/events/"+created.ID, "", "user-1")
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
	recorder = ts.do(t, http.MethodDelete, "/events/"+created.ID, "", "user-1")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeat delete, got %d", recorder.Code)
	}
}

func TestRegisterForEvent(t *testing.T) {
	ts := newTestServer(t, nil)
	created := createTestEvent(t, ts, "creator", `{"title":"Workshop","date":"2024-02-20","capacity":2}`)

	recorder := ts.do(t, http.MethodPost, "/events/missing/registrations", "", "user-1")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown event, got %d", recorder.Code)
	}

	recorder = ts.do(t, http.MethodPost, "/events/"+created.ID+"/registrations", "", "user-1")
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var registration store.Registration
	decodeBody(t, recorder, &registration)
	if registration.Status != store.StatusRegistered {
		t.Fatalf("expected default status registered, got %q", registration.Status)
	}

	recorder = ts.do(t, http.MethodPost, "/events/"+created.ID+"/registrations", "", "user-1")
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a duplicate registration, got %d", recorder.Code)
	}
}

func TestRegisterEnforcesCapacity(t *testing.T) {
	ts := newTestServer(t, nil)
	created := createTestEvent(t, ts, "creator", `{"title":"Tiny Room","date":"2024-02-20","capacity":2}`)

	for i := 1; i <= 2; i++ {
		recorder := ts.do(t, http.MethodPost, "/events/"+created.ID+"/registrations", "", fmt.Sprintf("user-%d", i))
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201 for seat %d, got %d", i, recorder.Code)
		}
	}

	recorder := ts.do(t, http.MethodPost, "/events/"+created.ID+"/registrations", "", "user-3")
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 when full, got %d", recorder.Code)
	}
}

func TestCancelledRegistrationCanBeRevived(t *testing.T) {
	ts := newTestServer(t, nil)
	created := createTestEvent(t, ts, "creator", `{"title":"Workshop","date":"2024-02-20"}`)

	recorder := ts.do(t, http.MethodPost, "/events/"+created.ID+"/registrations", "", "user-1")
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", recorder.Code)
	}
	var registration store.Registration
	decodeBody(t, recorder, &registration)

	recorder = ts.do(t, http.MethodPatch, "/registrations/"+registration.ID, `{"status":"cancelled"}`, "user-1")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = ts.do(t, http.MethodPost, "/events/"+created.ID+"/registrations", "", "user-1")
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected a cancelled registration to be revivable, got %d", recorder.Code)
	}
	var revived store.Registration
	decodeBody(t, recorder, &revived)
	if revived.ID != registration.ID {
		t.Fatalf("expected the existing registration row to be reused")
	}
	if revived.Status != store.StatusRegistered {
		t.Fatalf("expected status registered after revival, got %q", revived.Status)
	}
}

func TestPatchRegistrationValidation(t *testing.T) {
	ts := newTestServer(t, nil)
	created := createTestEvent(t, ts, "creator", `{"title":"Workshop","date":"2024-02-20"}`)

	recorder := ts.do(t, http.MethodPost, "/events/"+created.ID+"/registrations", "", "user-1")
	var registration store.Registration
	decodeBody(t, recorder, &registration)

	recorder = ts.do(t, http.MethodPatch, "/registrations/"+registration.ID, `{"status":"waitlisted"}`, "user-1")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown status, got %d", recorder.Code)
	}

	// Another user must not be able to touch the registration.
	recorder = ts.do(t, http.MethodPatch, "/registrations/"+registration.ID, `{"status":"attended"}`, "user-2")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a foreign registration, got %d", recorder.Code)
	}
}

func TestMyRegistrations(t *testing.T) {
	ts := newTestServer(t, nil)
	created := createTestEvent(t, ts, "creator", `{"title":"Workshop","date":"2024-02-20"}`)

	recorder := ts.do(t, http.MethodGet, "/me/registrations", "", "user-1")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var response struct {
		Registrations []store.Registration `json:"registrations"`
	}
	decodeBody(t, recorder, &response)
	if len(response.Registrations) != 0 {
		t.Fatalf("expected an empty list, got %d entries", len(response.Registrations))
	}

	ts.do(t, http.MethodPost, "/events/"+created.ID+"/registrations", "", "user-1")
	recorder = ts.do(t, http.MethodGet, "/me/registrations", "", "user-1")
	decodeBody(t, recorder, &response)
	if len(response.Registrations) != 1 {
		t.Fatalf("expected one registration, got %d", len(response.Registrations))
	}
}

func TestRegistrationNotifiesEventCreator(t *testing.T) {
	ts := newTestServer(t, nil)
	created := createTestEvent(t, ts, "creator", `{"title":"Workshop","date":"2024-02-20"}`)

	stream, cleanup := ts.dispatcher.Subscribe(context.Background(), "creator")
	defer cleanup()

	ts.do(t, http.MethodPost, "/events/"+created.ID+"/registrations", "", "user-1")

	select {
	case message := <-stream:
		if message.ActorID != "user-1" || message.EventID != created.ID {
			t.Fatalf("unexpected feed message %#v", message)
		}
	default:
		t.Fatalf("expected the creator to receive a feed message")
	}
}
