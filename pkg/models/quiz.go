package models

import "time"

// QuizStatus is the quiz lifecycle state. Transitions are linear:
// created -> in_progress -> completed, no backward moves.
type QuizStatus string

const (
	QuizCreated    QuizStatus = "created"
	QuizInProgress QuizStatus = "in_progress"
	QuizCompleted  QuizStatus = "completed"
)

// QuizDifficulty is a hint folded into question generation.
type QuizDifficulty string

const (
	DifficultyEasy   QuizDifficulty = "easy"
	DifficultyMedium QuizDifficulty = "medium"
	DifficultyHard   QuizDifficulty = "hard"
)

// Quiz is one assessment session over a frozen set of knowledge bases.
// KBIDs is captured at creation time and immutable afterwards.
type Quiz struct {
	ID          string         `json:"id"`
	Owner       string         `json:"owner"`
	KBIDs       []string       `json:"kb_ids"`
	Difficulty  QuizDifficulty `json:"difficulty"`
	Status      QuizStatus     `json:"status"`
	TotalScore  *int           `json:"total_score,omitempty"`
	Summary     *string        `json:"summary,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// QuizQuestion is one generated question. UserAnswer, Score and Feedback
// stay null until the question is graded, and are written at most once.
type QuizQuestion struct {
	ID             string    `json:"id"`
	QuizID         string    `json:"quiz_id"`
	QuestionNumber int       `json:"question_number"`
	ChunkContent   string    `json:"-"`
	Question       string    `json:"question"`
	StandardAnswer string    `json:"-"`
	UserAnswer     *string   `json:"user_answer,omitempty"`
	Score          *int      `json:"score,omitempty"`
	Feedback       *string   `json:"feedback,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Graded reports whether the question already has a score.
func (q *QuizQuestion) Graded() bool {
	return q.Score != nil
}
