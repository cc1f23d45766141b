package analytics

import (
	"testing"
	"time"

	"studyquiz/internal/domain"
)

func TestRecentActivityMergesNewestFirst(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2024, 6, 1, h, 0, 0, 0, time.UTC) }
	records := []domain.AttemptRecord{
		{QuizID: "q1", QuizTitle: "One", Percentage: 50, CompletedAt: at(8)},
		{QuizID: "q2", QuizTitle: "Two", Percentage: 90, CompletedAt: at(12)},
	}
	awards := []domain.AwardedBadge{
		{BadgeID: 1, EarnedAt: at(9)},
		{BadgeID: 99, EarnedAt: at(13)},
	}
	names := map[domain.BadgeID]string{1: "First Quiz"}

	feed := RecentActivity(records, awards, names, 3)
	if len(feed) != 3 {
		t.Fatalf("expected 3 items, got %d", len(feed))
	}
	if feed[0].Kind != ActivityBadge || feed[0].BadgeName != "Unknown" {
		t.Fatalf("expected unknown badge first, got %+v", feed[0])
	}
	if feed[1].Kind != ActivityQuiz || feed[1].QuizID != "q2" {
		t.Fatalf("expected q2 second, got %+v", feed[1])
	}
	if feed[2].BadgeName != "First Quiz" {
		t.Fatalf("expected First Quiz third, got %+v", feed[2])
	}
}

func TestRecentActivityEmpty(t *testing.T) {
	if feed := RecentActivity(nil, nil, nil, 5); len(feed) != 0 {
		t.Fatalf("expected empty feed, got %+v", feed)
	}
}
