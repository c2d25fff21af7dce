package events

import (
	"testing"

	"github.com/knowdeck/pkg/models"
)

func TestTopicFor(t *testing.T) {
	tests := []struct {
		eventType string
		want      string
	}{
		{models.EventQuizStarted, TopicQuiz},
		{models.EventQuizCompleted, TopicQuiz},
		{models.EventDocumentIngested, TopicIngestion},
		{"something.else", TopicIngestion},
	}
	for _, tt := range tests {
		if got := topicFor(tt.eventType); got != tt.want {
			t.Errorf("topicFor(%s) = %s, want %s", tt.eventType, got, tt.want)
		}
	}
}
