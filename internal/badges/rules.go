package badges

import (
	"strings"
	"time"

	"studyquiz/internal/domain"
)

// Qualifies reports whether any present criterion holds for history.
// Hour and day checks use loc.
func Qualifies(c Criteria, history []domain.AttemptRecord, loc *time.Location) bool {
	if c.QuizzesCompleted > 0 && len(history) >= c.QuizzesCompleted {
		return true
	}

	if c.Subject != "" {
		subject := strings.ToLower(c.Subject)
		matched := 0
		best := -1
		for _, r := range history {
			if !strings.Contains(strings.ToLower(r.QuizTitle), subject) {
				continue
			}
			matched++
			if r.Percentage > best {
				best = r.Percentage
			}
		}
		if c.Count > 0 && matched >= c.Count {
			return true
		}
		if c.MinPercentage > 0 && matched > 0 && best >= c.MinPercentage {
			return true
		}
	} else if c.MinPercentage > 0 {
		for _, r := range history {
			if r.Percentage >= c.MinPercentage {
				return true
			}
		}
	}

	if c.UniqueQuizzes > 0 && distinctQuizzes(history) >= c.UniqueQuizzes {
		return true
	}

	if c.UniqueDays > 0 && distinctDays(history, loc) >= c.UniqueDays {
		return true
	}

	if c.AfterHour > 0 {
		for _, r := range history {
			if r.CompletedAt.In(loc).Hour() >= c.AfterHour {
				return true
			}
		}
	}
	return false
}

// Pending returns the catalog entries not yet in earned that qualify now.
func Pending(catalog Catalog, history []domain.AttemptRecord, earned map[domain.BadgeID]struct{}, loc *time.Location) []Definition {
	var out []Definition
	for _, def := range catalog.defs {
		if _, ok := earned[def.ID]; ok {
			continue
		}
		if Qualifies(def.Criteria, history, loc) {
			out = append(out, def)
		}
	}
	return out
}

func distinctQuizzes(history []domain.AttemptRecord) int {
	seen := make(map[string]struct{}, len(history))
	for _, r := range history {
		seen[r.QuizID] = struct{}{}
	}
	return len(seen)
}

func distinctDays(history []domain.AttemptRecord, loc *time.Location) int {
	seen := make(map[string]struct{}, len(history))
	for _, r := range history {
		seen[r.CompletedAt.In(loc).Format(time.DateOnly)] = struct{}{}
	}
	return len(seen)
}
