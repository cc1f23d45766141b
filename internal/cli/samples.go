package cli

import "studyquiz/internal/domain"

// sampleQuizzes provides demo content for in-memory mode and the seed command.
func sampleQuizzes() map[string]domain.QuizDefinition {
	return map[string]domain.QuizDefinition{
		"history-101": {
			ID:               "history-101",
			Subject:          "History",
			Topic:            "Modern History",
			Difficulty:       "Easy",
			Title:            "Modern History Basics",
			TimeLimitMinutes: 5,
			Questions: []domain.QuestionDefinition{
				{
					ID:           "history-101-q1",
					Prompt:       "In which year did India gain independence?",
					Options:      []string{"1945", "1947", "1950", "1952"},
					CorrectIndex: 1,
					Explanation:  "India became independent on 15 August 1947.",
				},
				{
					ID:           "history-101-q2",
					Prompt:       "Who was the first Prime Minister of India?",
					Options:      []string{"Sardar Patel", "B. R. Ambedkar", "Jawaharlal Nehru", "Rajendra Prasad"},
					CorrectIndex: 2,
				},
				{
					ID:           "history-101-q3",
					Prompt:       "The Berlin Wall fell in which year?",
					Options:      []string{"1987", "1989", "1991", "1993"},
					CorrectIndex: 1,
				},
			},
		},
		"geography-101": {
			ID:               "geography-101",
			Subject:          "Geography",
			Topic:            "Capitals",
			Difficulty:       "Medium",
			Title:            "Geography: Rivers and Capitals",
			TimeLimitMinutes: 3,
			Questions: []domain.QuestionDefinition{
				{
					ID:           "geography-101-q1",
					Prompt:       "What is the capital of Australia?",
					Options:      []string{"Sydney", "Melbourne", "Canberra", "Perth"},
					CorrectIndex: 2,
				},
				{
					ID:           "geography-101-q2",
					Prompt:       "Which is the longest river in the world?",
					Options:      []string{"Amazon", "Nile", "Yangtze", "Ganga"},
					CorrectIndex: 1,
					Explanation:  "The Nile is generally measured as slightly longer than the Amazon.",
				},
			},
		},
	}
}
