package analytics

import (
	"sort"
	"time"

	"studyquiz/internal/domain"
)

// ActivityKind tags a feed item.
type ActivityKind string

const (
	ActivityQuiz  ActivityKind = "quiz"
	ActivityBadge ActivityKind = "badge"
)

// Activity is one item of the recent-activity feed.
type Activity struct {
	Kind       ActivityKind   `json:"type"`
	At         time.Time      `json:"at"`
	QuizID     string         `json:"quizId,omitempty"`
	QuizTitle  string         `json:"quizTitle,omitempty"`
	Percentage int            `json:"percentage,omitempty"`
	BadgeID    domain.BadgeID `json:"badgeId,omitempty"`
	BadgeName  string         `json:"badgeName,omitempty"`
}

// RecentActivity merges attempts and awarded badges, newest first, and keeps
// at most limit items. Badges missing from names show as "Unknown".
func RecentActivity(records []domain.AttemptRecord, awards []domain.AwardedBadge, names map[domain.BadgeID]string, limit int) []Activity {
	feed := make([]Activity, 0, len(records)+len(awards))
	for _, r := range records {
		feed = append(feed, Activity{
			Kind:       ActivityQuiz,
			At:         r.CompletedAt,
			QuizID:     r.QuizID,
			QuizTitle:  r.QuizTitle,
			Percentage: r.Percentage,
		})
	}
	for _, a := range awards {
		name, ok := names[a.BadgeID]
		if !ok {
			name = "Unknown"
		}
		feed = append(feed, Activity{
			Kind:      ActivityBadge,
			At:        a.EarnedAt,
			BadgeID:   a.BadgeID,
			BadgeName: name,
		})
	}

	sort.SliceStable(feed, func(i, j int) bool { return feed[i].At.After(feed[j].At) })
	if limit >= 0 && len(feed) > limit {
		feed = feed[:limit]
	}
	return feed
}
