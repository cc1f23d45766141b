// Package analytics reduces attempt history into progress, ranking and
// streak views. Every function is pure and safe for concurrent use.
package analytics

import "studyquiz/internal/domain"

// UnknownSubject buckets attempts whose quiz metadata cannot be resolved.
const UnknownSubject = "Unknown"

// PointsPerCorrectAnswer scales raw correct answers into leaderboard points.
const PointsPerCorrectAnswer = 10

// Summary is the per-user headline numbers.
type Summary struct {
	QuizzesCompleted int `json:"quizzesCompleted"`
	BestScore        int `json:"bestScore"`
	AverageScore     int `json:"averageScore"`
	TotalPoints      int `json:"totalPoints"`
}

// SubjectAverage is the rounded mean percentage for one subject.
type SubjectAverage struct {
	Subject string `json:"subject"`
	Average int    `json:"average"`
	Count   int    `json:"attempts"`
}

// SubjectLookup resolves a quiz id to its subject.
type SubjectLookup func(quizID string) (string, bool)

// SummaryStats counts distinct quizzes, best and mean percentage and points.
func SummaryStats(records []domain.AttemptRecord) Summary {
	if len(records) == 0 {
		return Summary{}
	}
	best, sum, raw := 0, 0, 0
	for _, r := range records {
		if r.Percentage > best {
			best = r.Percentage
		}
		sum += r.Percentage
		raw += r.Score
	}
	return Summary{
		QuizzesCompleted: distinctQuizzes(records),
		BestScore:        best,
		AverageScore:     roundedMean(sum, len(records)),
		TotalPoints:      raw * PointsPerCorrectAnswer,
	}
}

// SubjectProgress groups records by subject in first-seen order and averages
// their percentages.
func SubjectProgress(records []domain.AttemptRecord, subjectOf SubjectLookup) []SubjectAverage {
	type bucket struct{ sum, n int }
	var order []string
	buckets := make(map[string]*bucket)
	for _, r := range records {
		subject, ok := "", false
		if subjectOf != nil {
			subject, ok = subjectOf(r.QuizID)
		}
		if !ok || subject == "" {
			subject = UnknownSubject
		}
		b, seen := buckets[subject]
		if !seen {
			b = &bucket{}
			buckets[subject] = b
			order = append(order, subject)
		}
		b.sum += r.Percentage
		b.n++
	}

	out := make([]SubjectAverage, 0, len(order))
	for _, subject := range order {
		b := buckets[subject]
		out = append(out, SubjectAverage{Subject: subject, Average: roundedMean(b.sum, b.n), Count: b.n})
	}
	return out
}

// Feedback is the result-screen message for a percentage.
func Feedback(percentage int) string {
	switch {
	case percentage >= 90:
		return "Excellent! Outstanding performance!"
	case percentage >= 80:
		return "Great job! You're well prepared!"
	case percentage >= 60:
		return "Good work! Keep practicing!"
	default:
		return "Keep studying! You'll do better next time."
	}
}

func distinctQuizzes(records []domain.AttemptRecord) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.QuizID] = struct{}{}
	}
	return len(seen)
}

// roundedMean rounds half up; inputs are non-negative.
func roundedMean(sum, n int) int {
	if n == 0 {
		return 0
	}
	return (2*sum + n) / (2 * n)
}
