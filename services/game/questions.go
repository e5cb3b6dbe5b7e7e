package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/Maxapelquist/preparty-social-hub/models/postgres"
	"github.com/Maxapelquist/preparty-social-hub/services/errs"

	"gorm.io/gorm"
)

const maxQuestionLength = 300

var defaultQuestions = map[string][]string{
	"general": {
		"Never have I ever lied about my age",
		"Never have I ever fallen asleep at a party",
		"Never have I ever sent a text to the wrong person",
		"Never have I ever forgotten someone's name right after being introduced",
		"Never have I ever pretended to be sick to skip something",
		"Never have I ever sung karaoke",
		"Never have I ever eaten something off the floor",
		"Never have I ever been on TV",
		"Never have I ever broken a bone",
		"Never have I ever stalked an ex on social media",
	},
	"travel": {
		"Never have I ever missed a flight",
		"Never have I ever been to another continent",
		"Never have I ever gotten lost in a foreign city",
		"Never have I ever slept at an airport",
		"Never have I ever gone camping",
	},
	"student": {
		"Never have I ever pulled an all-nighter",
		"Never have I ever skipped a lecture to sleep",
		"Never have I ever cheated on a test",
		"Never have I ever shown up to an exam unprepared",
		"Never have I ever changed my major",
	},
	"party": {
		"Never have I ever crashed a party",
		"Never have I ever danced on a table",
		"Never have I ever been the last one to leave a party",
		"Never have I ever thrown a surprise party",
		"Never have I ever woken up somewhere without knowing how I got there",
	},
}

// SeedQuestions fills the question table on first start.
func SeedQuestions(ctx context.Context, db *gorm.DB) (int, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&postgres.Question{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting questions: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	var rows []postgres.Question
	for category, texts := range defaultQuestions {
		for _, text := range texts {
			rows = append(rows, postgres.Question{Category: category, Question: text})
		}
	}
	if err := db.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("seeding questions: %w", err)
	}
	return len(rows), nil
}

func (s *Service) ListQuestions(ctx context.Context, category string) ([]postgres.Question, error) {
	q := s.db.WithContext(ctx).Order("category asc, question asc")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var questions []postgres.Question
	if err := q.Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("listing questions: %w", err)
	}
	return questions, nil
}

// SubmitQuestion adds a user-written question to the shared pool.
func (s *Service) SubmitQuestion(ctx context.Context, userID, category, text string) (*postgres.Question, error) {
	text = strings.TrimSpace(text)
	category = strings.ToLower(strings.TrimSpace(category))
	if text == "" {
		return nil, errs.Invalid("question text is required")
	}
	if len(text) > maxQuestionLength {
		return nil, errs.Invalid("questions are limited to %d characters", maxQuestionLength)
	}
	if category == "" {
		category = "general"
	}
	if !strings.HasPrefix(strings.ToLower(text), "never have i ever") {
		text = "Never have I ever " + text
	}

	q := postgres.Question{Category: category, Question: text, SubmittedBy: &userID}
	if err := s.db.WithContext(ctx).Create(&q).Error; err != nil {
		return nil, fmt.Errorf("saving question: %w", err)
	}
	return &q, nil
}
