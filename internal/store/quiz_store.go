package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/knowdeck/internal/apperrors"
	"github.com/knowdeck/pkg/models"
)

// QuizStore persists quizzes and their questions. State transitions are
// compare-and-set updates: the WHERE clause carries the precondition, so
// racing callers resolve to exactly one applied write.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

// CreateQuiz inserts a quiz in created state.
func (s *QuizStore) CreateQuiz(ctx context.Context, quiz *models.Quiz) error {
	const op = "quizstore.create"
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quizzes (id, owner, kb_ids, difficulty, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		quiz.ID, quiz.Owner, quiz.KBIDs, quiz.Difficulty, quiz.Status, quiz.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetQuiz returns one quiz by id.
func (s *QuizStore) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	const op = "quizstore.get"
	quiz := &models.Quiz{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner, kb_ids, difficulty, status, total_score, summary, created_at, completed_at
		 FROM quizzes WHERE id = $1`, id).
		Scan(&quiz.ID, &quiz.Owner, &quiz.KBIDs, &quiz.Difficulty, &quiz.Status,
			&quiz.TotalScore, &quiz.Summary, &quiz.CreatedAt, &quiz.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindNotFound, op, "quiz not found: "+id)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return quiz, nil
}

// StartQuiz transitions created -> in_progress and inserts the question
// batch in one transaction. The transition is the guard: when another
// start already won, zero rows update and nothing is inserted.
func (s *QuizStore) StartQuiz(ctx context.Context, quizID string, questions []*models.QuizQuestion) error {
	const op = "quizstore.start"

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE quizzes SET status = $2 WHERE id = $1 AND status = $3`,
		quizID, models.QuizInProgress, models.QuizCreated)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		var status models.QuizStatus
		err := tx.QueryRow(ctx, `SELECT status FROM quizzes WHERE id = $1`, quizID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.New(apperrors.KindNotFound, op, "quiz not found: "+quizID)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return apperrors.New(apperrors.KindInvalidState, op,
			fmt.Sprintf("quiz %s is %s, expected %s", quizID, status, models.QuizCreated))
	}

	for _, q := range questions {
		_, err := tx.Exec(ctx,
			`INSERT INTO quiz_questions
			 (id, quiz_id, question_number, chunk_content, question, standard_answer, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			q.ID, q.QuizID, q.QuestionNumber, q.ChunkContent, q.Question, q.StandardAnswer, q.CreatedAt)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetQuestion returns one question by id.
func (s *QuizStore) GetQuestion(ctx context.Context, id string) (*models.QuizQuestion, error) {
	const op = "quizstore.get_question"
	q := &models.QuizQuestion{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, quiz_id, question_number, chunk_content, question, standard_answer,
		        user_answer, score, feedback, created_at
		 FROM quiz_questions WHERE id = $1`, id).
		Scan(&q.ID, &q.QuizID, &q.QuestionNumber, &q.ChunkContent, &q.Question, &q.StandardAnswer,
			&q.UserAnswer, &q.Score, &q.Feedback, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindNotFound, op, "quiz question not found: "+id)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return q, nil
}

// ListQuestions returns a quiz's questions in question_number order.
func (s *QuizStore) ListQuestions(ctx context.Context, quizID string) ([]*models.QuizQuestion, error) {
	const op = "quizstore.list_questions"
	rows, err := s.pool.Query(ctx,
		`SELECT id, quiz_id, question_number, chunk_content, question, standard_answer,
		        user_answer, score, feedback, created_at
		 FROM quiz_questions WHERE quiz_id = $1 ORDER BY question_number ASC`, quizID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*models.QuizQuestion
	for rows.Next() {
		q := &models.QuizQuestion{}
		if err := rows.Scan(&q.ID, &q.QuizID, &q.QuestionNumber, &q.ChunkContent, &q.Question,
			&q.StandardAnswer, &q.UserAnswer, &q.Score, &q.Feedback, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// GradeQuestion writes the grade iff the question is still ungraded.
// Returns false when another submission already graded it.
func (s *QuizStore) GradeQuestion(ctx context.Context, questionID, userAnswer string, score int, feedback string) (bool, error) {
	const op = "quizstore.grade_question"
	tag, err := s.pool.Exec(ctx,
		`UPDATE quiz_questions SET user_answer = $2, score = $3, feedback = $4
		 WHERE id = $1 AND score IS NULL`,
		questionID, userAnswer, score, feedback)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteQuiz freezes the total score and summary iff the quiz is still
// in progress. Returns false when another summary call already won.
func (s *QuizStore) CompleteQuiz(ctx context.Context, quizID string, totalScore int, summary string) (bool, error) {
	const op = "quizstore.complete"
	tag, err := s.pool.Exec(ctx,
		`UPDATE quizzes SET status = $2, total_score = $3, summary = $4, completed_at = $5
		 WHERE id = $1 AND status = $6`,
		quizID, models.QuizCompleted, totalScore, summary, time.Now().UTC(), models.QuizInProgress)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected() == 1, nil
}
