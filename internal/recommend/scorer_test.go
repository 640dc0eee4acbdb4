package recommend

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/CampusPulseLab/pulse/backend/internal/store"
)

func TestDerivePreferencesOrdersByFrequency(t *testing.T) {
	got := DerivePreferences([]string{"Sports", "Academic", "Sports", "", "Music"})
	want := []string{"Sports", "Academic", "Music"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("preference order mismatch (-want +got):\n%s", diff)
	}
}

func TestDerivePreferencesTiesKeepFirstSeenOrder(t *testing.T) {
	got := DerivePreferences([]string{"Sports", "Sports", "Academic"})
	want := []string{"Sports", "Academic"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tie break mismatch (-want +got):\n%s", diff)
	}

	// Academic first and equal counts must keep Academic first.
	got = DerivePreferences([]string{"Academic", "Sports"})
	want = []string{"Academic", "Sports"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tie break mismatch (-want +got):\n%s", diff)
	}
}

func TestRankScoresAndOrders(t *testing.T) {
	today := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	preferences := []string{"Sports", "Academic"}
	events := []store.Event{
		{ID: "a", Title: "Pickup Soccer", Category: "Sports", Popularity: 10, Date: "2024-01-02"},
		{ID: "b", Title: "Guest Lecture", Category: "Academic", Popularity: 50, Date: "2024-01-10"},
		{ID: "c", Title: "Last Year's Gala", Category: "Sports", Popularity: 99, Date: "2023-12-01"},
	}

	// a: 2*10 + 10 + (7-1)*2 = 42. b: 1*10 + 50 = 60. c is in the past.
	ranked := Rank(events, preferences, today)
	if len(ranked) != 2 {
		t.Fatalf("expected two ranked events, got %d", len(ranked))
	}
	if ranked[0].ID != "b" || ranked[1].ID != "a" {
		t.Fatalf("expected order [b a], got [%s %s]", ranked[0].ID, ranked[1].ID)
	}
}

func TestRankKeepsToday(t *testing.T) {
	today := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	events := []store.Event{{ID: "a", Category: "Sports", Date: "2024-01-01"}}

	ranked := Rank(events, []string{"Sports"}, today)
	if len(ranked) != 1 {
		t.Fatalf("expected same-day event to stay eligible, got %d results", len(ranked))
	}
}

func TestRankSkipsUnparseableDates(t *testing.T) {
	today := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []store.Event{
		{ID: "a", Category: "Sports", Date: "soonish"},
		{ID: "b", Category: "Sports", Date: "2024-01-03"},
	}

	ranked := Rank(events, []string{"Sports"}, today)
	if len(ranked) != 1 || ranked[0].ID != "b" {
		t.Fatalf("expected only the parseable event, got %#v", ranked)
	}
}

func TestRankEmptyInputs(t *testing.T) {
	today := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []store.Event{{ID: "a", Category: "Sports", Date: "2024-01-02"}}

	if got := Rank(events, nil, today); len(got) != 0 {
		t.Fatalf("expected no results without preferences, got %d", len(got))
	}
	if got := Rank(nil, []string{"Sports"}, today); len(got) != 0 {
		t.Fatalf("expected no results without a catalog, got %d", len(got))
	}
}

func TestRankCapsResults(t *testing.T) {
	today := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events := make([]store.Event, 0, TopN+3)
	for i := 0; i < TopN+3; i++ {
		events = append(events, store.Event{
			ID:         fmt.Sprintf("ev-%d", i),
			Category:   "Sports",
			Popularity: i,
			Date:       "2024-03-01",
		})
	}

	ranked := Rank(events, []string{"Sports"}, today)
	if len(ranked) != TopN {
		t.Fatalf("expected at most %d results, got %d", TopN, len(ranked))
	}
	if ranked[0].Popularity != TopN+2 {
		t.Fatalf("expected the cap to keep the highest scores, got popularity %d first", ranked[0].Popularity)
	}
}
