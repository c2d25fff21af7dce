// Package quiz implements the assessment state machine: created ->
// in_progress -> completed. A quiz is a long-lived, externally paced
// interaction, so every operation is a short unit of work keyed by
// quiz/question id; no lock or transaction spans the human gap between
// start and the individual submissions.
package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/knowdeck/internal/apperrors"
	"github.com/knowdeck/pkg/models"
)

const (
	// QuestionCount is fixed: one quiz is exactly ten questions.
	QuestionCount = 10
	// ScorePerQuestion caps one question's grade; total is 0-100.
	ScorePerQuestion = 10
	// MinChunkLength filters out fragments too short to support a question.
	MinChunkLength = 50
	// maxAttemptsPerSlot bounds resampling when the model keeps skipping.
	maxAttemptsPerSlot = 3

	questionTemperature = 0.3
	gradingTemperature  = 0.1
	summaryTemperature  = 0.3
)

// Store is the quiz persistence contract. Grade and complete writes are
// compare-and-set: they report whether this call was the winning writer.
type Store interface {
	CreateQuiz(ctx context.Context, quiz *models.Quiz) error
	GetQuiz(ctx context.Context, id string) (*models.Quiz, error)
	StartQuiz(ctx context.Context, quizID string, questions []*models.QuizQuestion) error
	GetQuestion(ctx context.Context, id string) (*models.QuizQuestion, error)
	ListQuestions(ctx context.Context, quizID string) ([]*models.QuizQuestion, error)
	GradeQuestion(ctx context.Context, questionID, userAnswer string, score int, feedback string) (bool, error)
	CompleteQuiz(ctx context.Context, quizID string, totalScore int, summary string) (bool, error)
}

// Sampler draws random content chunks for question generation.
type Sampler interface {
	SampleRandom(ctx context.Context, kbIDs []string, minLength int, exclude []string) (*models.DocumentChunk, error)
}

// KBResolver validates that knowledge base ids exist.
type KBResolver interface {
	ResolveIDs(ctx context.Context, ids []string) (missing []string, err error)
}

// Generator is the language model gateway contract.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
	GenerateStream(ctx context.Context, prompt string, temperature float32, sink func(fragment string) error) (string, error)
}

// Publisher emits domain events; nil disables publishing.
type Publisher interface {
	Publish(ctx context.Context, event models.DomainEvent)
}

// Orchestrator drives the quiz lifecycle.
type Orchestrator struct {
	store     Store
	sampler   Sampler
	kbs       KBResolver
	generator Generator
	events    Publisher
	logger    *zap.Logger
}

func NewOrchestrator(store Store, sampler Sampler, kbs KBResolver, generator Generator, events Publisher, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		sampler:   sampler,
		kbs:       kbs,
		generator: generator,
		events:    events,
		logger:    logger,
	}
}

// SubmitResult is the outcome of grading one question. AlreadyGraded
// marks an idempotent replay of a previous grade.
type SubmitResult struct {
	QuestionID     string `json:"question_id"`
	QuestionNumber int    `json:"question_number"`
	Score          int    `json:"score"`
	Feedback       string `json:"feedback"`
	AlreadyGraded  bool   `json:"already_graded"`
}

// SummaryResult is the frozen aggregate of a completed quiz.
type SummaryResult struct {
	TotalScore int    `json:"total_score"`
	Summary    string `json:"summary"`
}

// Create validates the knowledge base scope and persists a quiz in
// created state. The kb id list is frozen at this point.
func (o *Orchestrator) Create(ctx context.Context, owner string, kbIDs []string, difficulty models.QuizDifficulty) (*models.Quiz, error) {
	const op = "quiz.create"

	if len(kbIDs) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidArgument, op, "kb_ids must not be empty")
	}
	missing, err := o.kbs.ResolveIDs(ctx, kbIDs)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, op, err)
	}
	if len(missing) > 0 {
		return nil, apperrors.New(apperrors.KindInvalidArgument, op,
			fmt.Sprintf("unknown knowledge base ids: %v", missing))
	}

	switch difficulty {
	case "":
		difficulty = models.DifficultyEasy
	case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
	default:
		return nil, apperrors.New(apperrors.KindInvalidArgument, op,
			"difficulty must be easy, medium or hard")
	}
	if owner == "" {
		owner = models.DefaultOwner
	}

	q := &models.Quiz{
		ID:         uuid.NewString(),
		Owner:      owner,
		KBIDs:      kbIDs,
		Difficulty: difficulty,
		Status:     models.QuizCreated,
		CreatedAt:  time.Now().UTC(),
	}
	if err := o.store.CreateQuiz(ctx, q); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, op, err)
	}
	return q, nil
}

// Start generates the full question batch and transitions the quiz to
// in_progress. Generation happens before any write; the batch insert
// plus transition commit atomically, so a failure mid-way leaves no
// visible partial state and the operation stays retryable. Standard
// answers are never serialized to callers.
func (o *Orchestrator) Start(ctx context.Context, quizID string) ([]*models.QuizQuestion, error) {
	const op = "quiz.start"

	q, err := o.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if q.Status != models.QuizCreated {
		return nil, apperrors.New(apperrors.KindInvalidState, op,
			fmt.Sprintf("quiz %s is %s, expected %s", quizID, q.Status, models.QuizCreated))
	}

	questions := make([]*models.QuizQuestion, 0, QuestionCount)
	used := make([]string, 0, QuestionCount*maxAttemptsPerSlot)

	for number := 1; number <= QuestionCount; number++ {
		question, err := o.generateQuestion(ctx, q, number, &used)
		if err != nil {
			return nil, err
		}
		questions = append(questions, question)
	}

	if err := o.store.StartQuiz(ctx, quizID, questions); err != nil {
		return nil, err
	}

	o.publish(ctx, models.EventQuizStarted, map[string]string{
		"quiz_id": quizID,
		"owner":   q.Owner,
	})
	o.logger.Info("quiz started", zap.String("quiz_id", quizID), zap.Int("questions", len(questions)))
	return questions, nil
}

// generateQuestion fills one slot: sample a chunk, ask the model for a
// question, resample on SKIP. The retry budget per slot is fixed; when
// it runs out the whole start fails with InsufficientContent.
func (o *Orchestrator) generateQuestion(ctx context.Context, q *models.Quiz, number int, used *[]string) (*models.QuizQuestion, error) {
	const op = "quiz.generate_question"

	for attempt := 1; attempt <= maxAttemptsPerSlot; attempt++ {
		chunk, err := o.sampler.SampleRandom(ctx, q.KBIDs, MinChunkLength, *used)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, op, err)
		}
		if chunk == nil {
			return nil, apperrors.New(apperrors.KindInsufficientContent, op,
				fmt.Sprintf("no eligible chunks left for question %d; upload more documents", number))
		}
		*used = append(*used, chunk.ID)

		reply, err := o.generator.Generate(ctx, buildQuestionPrompt(chunk.Content, q.Difficulty), questionTemperature)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindGenerationFailed, op, err)
		}

		generated, ok := parseQuestionReply(reply)
		if !ok {
			o.logger.Debug("chunk skipped for question generation",
				zap.String("quiz_id", q.ID),
				zap.String("chunk_id", chunk.ID),
				zap.Int("question_number", number),
				zap.Int("attempt", attempt))
			continue
		}

		return &models.QuizQuestion{
			ID:             uuid.NewString(),
			QuizID:         q.ID,
			QuestionNumber: number,
			ChunkContent:   chunk.Content,
			Question:       generated.Question,
			StandardAnswer: generated.StandardAnswer,
			CreatedAt:      time.Now().UTC(),
		}, nil
	}

	return nil, apperrors.New(apperrors.KindInsufficientContent, op,
		fmt.Sprintf("exhausted %d attempts generating question %d", maxAttemptsPerSlot, number))
}

// Submit grades one answer. Grading is synchronous and written at most
// once per question: the store write requires the score to still be
// null, so a concurrent duplicate submission loses the race and gets
// the stored grade back instead.
func (o *Orchestrator) Submit(ctx context.Context, quizID, questionID, userAnswer string) (*SubmitResult, error) {
	const op = "quiz.submit"

	q, err := o.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if q.Status != models.QuizInProgress {
		return nil, apperrors.New(apperrors.KindInvalidState, op,
			fmt.Sprintf("quiz %s is %s, expected %s", quizID, q.Status, models.QuizInProgress))
	}

	question, err := o.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if question.QuizID != quizID {
		return nil, apperrors.New(apperrors.KindInvalidArgument, op,
			fmt.Sprintf("question %s does not belong to quiz %s", questionID, quizID))
	}
	if question.Graded() {
		return replayGrade(question), nil
	}

	reply, err := o.generator.Generate(ctx,
		buildGradingPrompt(question.ChunkContent, question.Question, question.StandardAnswer, userAnswer),
		gradingTemperature)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindGenerationFailed, op, err)
	}
	grade, err := parseGradeReply(reply)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindGenerationFailed, op, err)
	}

	applied, err := o.store.GradeQuestion(ctx, questionID, userAnswer, grade.Score, grade.Feedback)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, op, err)
	}
	if !applied {
		// Lost the race to another submission; replay the stored grade.
		stored, err := o.store.GetQuestion(ctx, questionID)
		if err != nil {
			return nil, err
		}
		return replayGrade(stored), nil
	}

	o.logger.Info("question graded",
		zap.String("quiz_id", quizID),
		zap.String("question_id", questionID),
		zap.Int("score", grade.Score))
	return &SubmitResult{
		QuestionID:     questionID,
		QuestionNumber: question.QuestionNumber,
		Score:          grade.Score,
		Feedback:       grade.Feedback,
	}, nil
}

func replayGrade(q *models.QuizQuestion) *SubmitResult {
	res := &SubmitResult{
		QuestionID:     q.ID,
		QuestionNumber: q.QuestionNumber,
		AlreadyGraded:  true,
	}
	if q.Score != nil {
		res.Score = *q.Score
	}
	if q.Feedback != nil {
		res.Feedback = *q.Feedback
	}
	return res
}

// Summary computes the frozen total score and streams the narrative
// evaluation. Only callable once every question is graded. On a quiz
// that is already completed it replays the stored result as a single
// fragment without a second model call.
func (o *Orchestrator) Summary(ctx context.Context, quizID string, sink func(fragment string) error) (*SummaryResult, error) {
	const op = "quiz.summary"

	q, err := o.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	switch q.Status {
	case models.QuizCompleted:
		return o.replaySummary(q, sink)
	case models.QuizInProgress:
	default:
		return nil, apperrors.New(apperrors.KindInvalidState, op,
			fmt.Sprintf("quiz %s is %s, expected %s or %s", quizID, q.Status, models.QuizInProgress, models.QuizCompleted))
	}

	questions, err := o.store.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, op, err)
	}
	if len(questions) != QuestionCount {
		return nil, apperrors.New(apperrors.KindIncompleteQuiz, op,
			fmt.Sprintf("quiz has %d questions, expected %d", len(questions), QuestionCount))
	}

	totalScore := 0
	for _, question := range questions {
		if !question.Graded() {
			return nil, apperrors.New(apperrors.KindIncompleteQuiz, op,
				fmt.Sprintf("question %d is not graded yet", question.QuestionNumber))
		}
		totalScore += *question.Score
	}

	narrative, err := o.generator.GenerateStream(ctx, buildSummaryPrompt(totalScore, questions), summaryTemperature, sink)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindGenerationFailed, op, err)
	}

	applied, err := o.store.CompleteQuiz(ctx, quizID, totalScore, narrative)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, op, err)
	}
	if !applied {
		// A concurrent summary call won; its stored result is the truth.
		stored, err := o.store.GetQuiz(ctx, quizID)
		if err != nil {
			return nil, err
		}
		if stored.Status == models.QuizCompleted && stored.TotalScore != nil && stored.Summary != nil {
			return &SummaryResult{TotalScore: *stored.TotalScore, Summary: *stored.Summary}, nil
		}
		return nil, apperrors.New(apperrors.KindInvalidState, op, "quiz completion raced and no result was stored")
	}

	o.publish(ctx, models.EventQuizCompleted, map[string]string{
		"quiz_id":     quizID,
		"owner":       q.Owner,
		"total_score": fmt.Sprintf("%d", totalScore),
	})
	o.logger.Info("quiz completed", zap.String("quiz_id", quizID), zap.Int("total_score", totalScore))
	return &SummaryResult{TotalScore: totalScore, Summary: narrative}, nil
}

func (o *Orchestrator) replaySummary(q *models.Quiz, sink func(fragment string) error) (*SummaryResult, error) {
	const op = "quiz.summary"
	if q.TotalScore == nil || q.Summary == nil {
		return nil, apperrors.New(apperrors.KindInternal, op, "completed quiz is missing total score or summary")
	}
	if sink != nil {
		if err := sink(*q.Summary); err != nil {
			return nil, err
		}
	}
	return &SummaryResult{TotalScore: *q.TotalScore, Summary: *q.Summary}, nil
}

func (o *Orchestrator) publish(ctx context.Context, eventType string, data map[string]string) {
	if o.events == nil {
		return
	}
	o.events.Publish(ctx, models.DomainEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    "quiz",
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}
