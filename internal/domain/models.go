package domain

import (
	"sort"
	"time"
)

// QuestionDefinition models an MCQ question with exactly one correct option.
type QuestionDefinition struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation,omitempty"`
}

// QuizDefinition is an immutable quiz with its ordered questions.
type QuizDefinition struct {
	ID               string               `json:"id"`
	Subject          string               `json:"subject"`
	Topic            string               `json:"topic,omitempty"`
	Difficulty       string               `json:"difficulty"`
	Title            string               `json:"title"`
	TimeLimitMinutes int                  `json:"timeLimitMinutes"`
	Questions        []QuestionDefinition `json:"questions"`
}

// TimeLimitSeconds is the countdown a fresh session starts from.
func (q QuizDefinition) TimeLimitSeconds() int {
	return q.TimeLimitMinutes * 60
}

// Summary strips the questions for catalog listings.
func (q QuizDefinition) Summary() QuizSummary {
	return QuizSummary{
		ID:               q.ID,
		Subject:          q.Subject,
		Topic:            q.Topic,
		Difficulty:       q.Difficulty,
		Title:            q.Title,
		TimeLimitMinutes: q.TimeLimitMinutes,
		QuestionCount:    len(q.Questions),
	}
}

// QuizSummary is a catalog row: quiz metadata without questions.
type QuizSummary struct {
	ID               string `json:"id"`
	Subject          string `json:"subject"`
	Topic            string `json:"topic,omitempty"`
	Difficulty       string `json:"difficulty"`
	Title            string `json:"title"`
	TimeLimitMinutes int    `json:"timeLimitMinutes"`
	QuestionCount    int    `json:"questionCount"`
}

// SortSummaries orders a catalog by title, then id.
func SortSummaries(list []QuizSummary) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Title != list[j].Title {
			return list[i].Title < list[j].Title
		}
		return list[i].ID < list[j].ID
	})
}

// AttemptRecord is the append-only result of one completed quiz run.
// QuizTitle is a snapshot taken at submit time.
type AttemptRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	QuizID         string    `json:"quizId"`
	QuizTitle      string    `json:"quizTitle"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Percentage     int       `json:"percentage"`
	CompletedAt    time.Time `json:"completedAt"`
}

// Percentage returns round(score/total*100), or 0 for an empty quiz.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	// half-up rounding on integers, matches round() for non-negative values
	return (score*200 + total) / (total * 2)
}

// BadgeID identifies a catalog entry.
type BadgeID int

// AwardedBadge records that a user earned a badge. (UserID, BadgeID) is unique.
type AwardedBadge struct {
	UserID   string    `json:"userId"`
	BadgeID  BadgeID   `json:"badgeId"`
	EarnedAt time.Time `json:"earnedAt"`
}

// SessionStatus enumerates quiz session lifecycle states.
type SessionStatus string

const (
	StatusLoading    SessionStatus = "LOADING"
	StatusInProgress SessionStatus = "IN_PROGRESS"
	StatusSubmitting SessionStatus = "SUBMITTING"
	StatusCompleted  SessionStatus = "COMPLETED"
	StatusFailed     SessionStatus = "FAILED"
	StatusAbandoned  SessionStatus = "ABANDONED"
)

// AttemptResult is what a completed session exposes for display.
type AttemptResult struct {
	Record         AttemptRecord        `json:"record"`
	Answers        map[int]int          `json:"answers"`
	Questions      []QuestionDefinition `json:"questions"`
	ElapsedSeconds int                  `json:"elapsedSeconds"`
	Persisted      bool                 `json:"persisted"`
	Feedback       string               `json:"feedback"`
}
