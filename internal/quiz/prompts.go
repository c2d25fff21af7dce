package quiz

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/knowdeck/pkg/models"
)

const questionPromptTemplate = `You are an expert examiner for knowledge assessments. Write one short-answer question based on the source passage below.

Requirements:
1. The question must test understanding of the core knowledge in the passage%s.
2. Provide a precise standard answer based strictly on the passage. Do not add information the passage does not contain.
3. If the passage lacks the substance to support a meaningful question (for example it is a table of contents, a header/footer, or a fragment), reply with exactly: SKIP

Source passage:
%s

Reply strictly in this JSON format and nothing else:
{"question": "...", "standard_answer": "..."}

If no question can be written, reply with only:
SKIP`

const gradingPromptTemplate = `You are a strict grading tutor for knowledge assessments. Compare the user's answer against the source passage and the standard answer.

Grading rules:
1. The maximum score is %d. Give an integer score from 0 to %d.
2. Judge strictly against the passage and the standard answer; do not improvise.
3. Point out every mistake in the user's answer.
4. Point out every key point the user's answer missed.
5. A fully correct and complete answer gets the maximum score.
6. An empty or entirely irrelevant answer gets 0.

Source passage:
%s

Question:
%s

Standard answer:
%s

User answer:
%s

Reply strictly in this JSON format and nothing else:
{"score": <integer>, "feedback": "detailed grading feedback, including mistakes and omissions"}`

const summaryPromptTemplate = `You are a senior assessment reviewer. Write an overall evaluation of the following quiz results.

Total score: %d/100

Per-question details:
%s

Cover these aspects:
1. Overall judgement of the user's grasp of the material.
2. Typical mistakes and misconceptions in the answers.
3. Important knowledge points the user missed.
4. Targeted suggestions for further study.

Keep the tone professional but encouraging.`

func difficultyHint(d models.QuizDifficulty) string {
	switch d {
	case models.DifficultyMedium:
		return " and require connecting more than one fact from it"
	case models.DifficultyHard:
		return " and require reasoning about implications of the passage, not just recall"
	default:
		return ""
	}
}

func buildQuestionPrompt(chunkContent string, difficulty models.QuizDifficulty) string {
	return fmt.Sprintf(questionPromptTemplate, difficultyHint(difficulty), chunkContent)
}

func buildGradingPrompt(chunkContent, question, standardAnswer, userAnswer string) string {
	return fmt.Sprintf(gradingPromptTemplate,
		ScorePerQuestion, ScorePerQuestion, chunkContent, question, standardAnswer, userAnswer)
}

func buildSummaryPrompt(totalScore int, questions []*models.QuizQuestion) string {
	details := make([]string, 0, len(questions))
	for _, q := range questions {
		var userAnswer, feedback string
		score := 0
		if q.UserAnswer != nil {
			userAnswer = *q.UserAnswer
		}
		if q.Score != nil {
			score = *q.Score
		}
		if q.Feedback != nil {
			feedback = *q.Feedback
		}
		details = append(details, fmt.Sprintf(
			"Question %d (score %d/%d)\nQuestion: %s\nStandard answer: %s\nUser answer: %s\nFeedback: %s",
			q.QuestionNumber, score, ScorePerQuestion, q.Question, q.StandardAnswer, userAnswer, feedback))
	}
	return fmt.Sprintf(summaryPromptTemplate, totalScore, strings.Join(details, "\n\n---\n\n"))
}

type generatedQuestion struct {
	Question       string `json:"question"`
	StandardAnswer string `json:"standard_answer"`
}

type gradeReply struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// parseQuestionReply interprets the model's question-generation output.
// ok=false means the model signalled SKIP or produced something
// unusable; the caller resamples another chunk.
func parseQuestionReply(reply string) (generatedQuestion, bool) {
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(strings.ToUpper(reply), "SKIP") {
		return generatedQuestion{}, false
	}
	var out generatedQuestion
	if err := json.Unmarshal([]byte(extractJSON(reply)), &out); err != nil {
		return generatedQuestion{}, false
	}
	if strings.TrimSpace(out.Question) == "" || strings.TrimSpace(out.StandardAnswer) == "" {
		return generatedQuestion{}, false
	}
	return out, true
}

func parseGradeReply(reply string) (gradeReply, error) {
	var out gradeReply
	if err := json.Unmarshal([]byte(extractJSON(reply)), &out); err != nil {
		return gradeReply{}, fmt.Errorf("parse grade reply: %w", err)
	}
	if out.Score < 0 {
		out.Score = 0
	}
	if out.Score > ScorePerQuestion {
		out.Score = ScorePerQuestion
	}
	return out, nil
}

// extractJSON tolerates models that wrap JSON in a markdown code block.
func extractJSON(reply string) string {
	if !strings.Contains(reply, "```") {
		return reply
	}
	var block []string
	inBlock := false
	for _, line := range strings.Split(reply, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inBlock {
				break
			}
			inBlock = true
			continue
		}
		if inBlock {
			block = append(block, line)
		}
	}
	if len(block) == 0 {
		return reply
	}
	return strings.Join(block, "\n")
}
