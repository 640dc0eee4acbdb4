package recommend

import (
	"sort"
	"time"

	"github.com/CampusPulseLab/pulse/backend/internal/store"
)

const (
	// TopN caps how many events a ranking returns.
	TopN = 5

	categoryWeight    = 10
	recencyWindowDays = 7
	recencyWeight     = 2
)

// DerivePreferences counts category occurrences and returns the categories
// ordered by descending frequency. Ties keep the order the counting pass first
// encountered them in.
func DerivePreferences(categories []string) []string {
	counts := make(map[string]int)
	ordered := make([]string, 0)
	for _, category := range categories {
		if category == "" {
			continue
		}
		if _, seen := counts[category]; !seen {
			ordered = append(ordered, category)
		}
		counts[category]++
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return counts[ordered[i]] > counts[ordered[j]]
	})
	return ordered
}

// Rank filters out past events, scores the rest against the preference list,
// and returns up to TopN events by descending score. An empty preference list
// or empty catalog yields an empty result.
func Rank(events []store.Event, preferences []string, today time.Time) []store.Event {
	if len(preferences) == 0 || len(events) == 0 {
		return nil
	}

	today = truncateToDay(today)
	type candidate struct {
		event store.Event
		score int
	}
	candidates := make([]candidate, 0, len(events))
	for _, event := range events {
		date, err := event.StartDate()
		if err != nil {
			continue
		}
		if date.Before(today) {
			continue
		}
		candidates = append(candidates, candidate{
			event: event,
			score: scoreEvent(event, preferences, date, today),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	limit := len(candidates)
	if limit > TopN {
		limit = TopN
	}
	ranked := make([]store.Event, 0, limit)
	for _, c := range candidates[:limit] {
		ranked = append(ranked, c.event)
	}
	return ranked
}

// scoreEvent sums the three independent contributions: category preference
// rank, raw popularity, and a graduated bonus for events within the coming
// week.
func scoreEvent(event store.Event, preferences []string, date, today time.Time) int {
	score := 0
	for i, category := range preferences {
		if category == event.Category {
			score += (len(preferences) - i) * categoryWeight
			break
		}
	}
	score += event.Popularity
	if days := daysUntil(date, today); days < recencyWindowDays {
		score += (recencyWindowDays - days) * recencyWeight
	}
	return score
}

func daysUntil(date, today time.Time) int {
	days := int(date.Sub(today).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func truncateToDay(value time.Time) time.Time {
	value = value.UTC()
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}
