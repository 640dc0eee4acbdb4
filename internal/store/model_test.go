package store

import (
	"errors"
	"testing"
	"time"
)

func TestParseRegistrationStatus(t *testing.T) {
	cases := []struct {
		raw     string
		want    RegistrationStatus
		wantErr bool
	}{
		{raw: "registered", want: StatusRegistered},
		{raw: "attended", want: StatusAttended},
		{raw: "cancelled", want: StatusCancelled},
		{raw: "", wantErr: true},
		{raw: "waitlisted", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseRegistrationStatus(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidStatus) {
				t.Fatalf("expected ErrInvalidStatus for %q, got %v", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("expected %q for %q, got %q", tc.want, tc.raw, got)
		}
	}
}

func TestEventStartDate(t *testing.T) {
	event := Event{Date: "2024-07-04"}
	start, err := event.StartDate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Fatalf("expected %v, got %v", want, start)
	}

	if _, err := (Event{Date: "July 4th"}).StartDate(); err == nil {
		t.Fatalf("expected malformed date to error")
	}
}

func TestCommentIsReply(t *testing.T) {
	if (Comment{}).IsReply() {
		t.Fatalf("expected root comment to not be a reply")
	}
	if !(Comment{ParentID: "c-1"}).IsReply() {
		t.Fatalf("expected comment with parent to be a reply")
	}
}
