package analytics

import (
	"sort"

	"studyquiz/internal/domain"
)

// UserHistory is one user's attempts plus their earned badge count.
type UserHistory struct {
	UserID       string
	Records      []domain.AttemptRecord
	BadgesEarned int
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank             int    `json:"rank"`
	UserID           string `json:"userId"`
	TotalScore       int    `json:"totalScore"`
	AverageScore     int    `json:"averageScore"`
	QuizzesCompleted int    `json:"quizzesCompleted"`
	BadgesEarned     int    `json:"badgesEarned"`
}

// GroupByUser splits records per user, keeping first-appearance order.
func GroupByUser(records []domain.AttemptRecord) []UserHistory {
	index := make(map[string]int)
	var out []UserHistory
	for _, r := range records {
		i, ok := index[r.UserID]
		if !ok {
			i = len(out)
			index[r.UserID] = i
			out = append(out, UserHistory{UserID: r.UserID})
		}
		out[i].Records = append(out[i].Records, r)
	}
	return out
}

// Leaderboard ranks users by 10 × total correct answers, descending.
// Ties keep input order.
func Leaderboard(users []UserHistory) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(users))
	for _, u := range users {
		raw, pct := 0, 0
		for _, r := range u.Records {
			raw += r.Score
			pct += r.Percentage
		}
		entries = append(entries, LeaderboardEntry{
			UserID:           u.UserID,
			TotalScore:       raw * PointsPerCorrectAnswer,
			AverageScore:     roundedMean(pct, len(u.Records)),
			QuizzesCompleted: distinctQuizzes(u.Records),
			BadgesEarned:     u.BadgesEarned,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalScore > entries[j].TotalScore
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Rank returns the 1-based position of userID, or 0 when unranked.
func Rank(entries []LeaderboardEntry, userID string) int {
	for i, e := range entries {
		if e.UserID == userID {
			return i + 1
		}
	}
	return 0
}
