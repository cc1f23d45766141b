package analytics

import (
	"sort"
	"time"

	"studyquiz/internal/domain"
)

// DayCount is the number of attempts on one calendar day.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Streak counts consecutive active calendar days (in now's location) ending
// today or yesterday. An older most-recent day means no streak.
func Streak(records []domain.AttemptRecord, now time.Time) int {
	loc := now.Location()
	seen := make(map[int]struct{}, len(records))
	days := make([]int, 0, len(records))
	for _, r := range records {
		d := dayNumber(r.CompletedAt, loc)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	if len(days) == 0 {
		return 0
	}
	sort.Sort(sort.Reverse(sort.IntSlice(days)))

	if dayNumber(now, loc)-days[0] > 1 {
		return 0
	}
	streak := 1
	for i := 1; i < len(days); i++ {
		if days[i-1]-days[i] != 1 {
			break
		}
		streak++
	}
	return streak
}

// Heatmap counts attempts per calendar day in loc, oldest first.
func Heatmap(records []domain.AttemptRecord, loc *time.Location) []DayCount {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.CompletedAt.In(loc).Format(time.DateOnly)]++
	}
	out := make([]DayCount, 0, len(counts))
	for date, n := range counts {
		out = append(out, DayCount{Date: date, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// dayNumber maps t to a day count that ignores DST and offsets.
func dayNumber(t time.Time, loc *time.Location) int {
	y, m, d := t.In(loc).Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
