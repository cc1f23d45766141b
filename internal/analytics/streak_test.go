package analytics

import (
	"testing"
	"time"

	"studyquiz/internal/domain"
)

func TestStreak(t *testing.T) {
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	daysAgo := func(n int) domain.AttemptRecord {
		return domain.AttemptRecord{CompletedAt: now.AddDate(0, 0, -n)}
	}

	cases := []struct {
		name    string
		records []domain.AttemptRecord
		want    int
	}{
		{"empty", nil, 0},
		{"stale", []domain.AttemptRecord{daysAgo(3)}, 0},
		{"three consecutive", []domain.AttemptRecord{daysAgo(0), daysAgo(1), daysAgo(2)}, 3},
		{"ending yesterday", []domain.AttemptRecord{daysAgo(1), daysAgo(2)}, 2},
		{"gap breaks", []domain.AttemptRecord{daysAgo(0), daysAgo(2), daysAgo(3)}, 1},
		{"same day twice", []domain.AttemptRecord{daysAgo(0), daysAgo(0), daysAgo(1)}, 2},
	}
	for _, c := range cases {
		if got := Streak(c.records, now); got != c.want {
			t.Fatalf("%s: expected %d, got %d", c.name, c.want, got)
		}
	}
}

func TestStreakUsesLocationOfNow(t *testing.T) {
	zone := time.FixedZone("UTC-5", -5*3600)
	// 03:00 UTC on the 11th is still the 10th in UTC-5
	records := []domain.AttemptRecord{
		{CompletedAt: time.Date(2024, 6, 11, 3, 0, 0, 0, time.UTC)},
		{CompletedAt: time.Date(2024, 6, 9, 12, 0, 0, 0, time.UTC)},
	}
	now := time.Date(2024, 6, 10, 20, 0, 0, 0, zone)
	if got := Streak(records, now); got != 2 {
		t.Fatalf("expected 2 in local days, got %d", got)
	}
}

func TestHeatmap(t *testing.T) {
	records := []domain.AttemptRecord{
		{CompletedAt: time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)},
		{CompletedAt: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)},
		{CompletedAt: time.Date(2024, 6, 2, 18, 0, 0, 0, time.UTC)},
	}
	got := Heatmap(records, time.UTC)
	if len(got) != 2 || got[0] != (DayCount{Date: "2024-06-01", Count: 1}) || got[1] != (DayCount{Date: "2024-06-02", Count: 2}) {
		t.Fatalf("unexpected heatmap %+v", got)
	}
}
