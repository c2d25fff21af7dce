package quiz

import (
	"strings"
	"testing"

	"github.com/knowdeck/pkg/models"
)

func TestParseQuestionReply(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		wantOK bool
		want   generatedQuestion
	}{
		{
			name:   "plain json",
			reply:  `{"question": "What is X?", "standard_answer": "X is Y."}`,
			wantOK: true,
			want:   generatedQuestion{Question: "What is X?", StandardAnswer: "X is Y."},
		},
		{
			name: "json in code fence",
			reply: "```json\n" +
				`{"question": "What is X?", "standard_answer": "X is Y."}` +
				"\n```",
			wantOK: true,
			want:   generatedQuestion{Question: "What is X?", StandardAnswer: "X is Y."},
		},
		{
			name:   "skip",
			reply:  "SKIP",
			wantOK: false,
		},
		{
			name:   "skip with trailing chatter",
			reply:  "  skip: the passage is a table of contents",
			wantOK: false,
		},
		{
			name:   "not json",
			reply:  "Sure! Here is a question about the passage.",
			wantOK: false,
		},
		{
			name:   "empty question field",
			reply:  `{"question": "", "standard_answer": "X is Y."}`,
			wantOK: false,
		},
		{
			name:   "empty standard answer",
			reply:  `{"question": "What is X?", "standard_answer": "  "}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseQuestionReply(tt.reply)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseGradeReply(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantScore int
		wantErr   bool
	}{
		{name: "normal", reply: `{"score": 7, "feedback": "close"}`, wantScore: 7},
		{name: "clamped high", reply: `{"score": 42, "feedback": "too generous"}`, wantScore: ScorePerQuestion},
		{name: "clamped low", reply: `{"score": -3, "feedback": "harsh"}`, wantScore: 0},
		{
			name: "code fence",
			reply: "```json\n" +
				`{"score": 9, "feedback": "nearly perfect"}` +
				"\n```",
			wantScore: 9,
		},
		{name: "garbage", reply: "the answer deserves a 7", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGradeReply(tt.reply)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Score != tt.wantScore {
				t.Errorf("score = %d, want %d", got.Score, tt.wantScore)
			}
		})
	}
}

func TestBuildQuestionPromptDifficulty(t *testing.T) {
	easy := buildQuestionPrompt("passage", models.DifficultyEasy)
	if strings.Contains(easy, "connecting more than one fact") {
		t.Error("easy prompt carries the medium hint")
	}
	medium := buildQuestionPrompt("passage", models.DifficultyMedium)
	if !strings.Contains(medium, "connecting more than one fact") {
		t.Error("medium prompt missing its hint")
	}
	hard := buildQuestionPrompt("passage", models.DifficultyHard)
	if !strings.Contains(hard, "reasoning about implications") {
		t.Error("hard prompt missing its hint")
	}
	if !strings.Contains(easy, "passage") {
		t.Error("prompt missing the source passage")
	}
}

func TestExtractJSONWithoutFence(t *testing.T) {
	in := `{"score": 3}`
	if got := extractJSON(in); got != in {
		t.Errorf("extractJSON altered plain input: %q", got)
	}
}
