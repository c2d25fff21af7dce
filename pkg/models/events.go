package models

import "time"

// Event types published on the domain event stream.
const (
	EventDocumentIngested = "document.ingested"
	EventQuizStarted      = "quiz.started"
	EventQuizCompleted    = "quiz.completed"
)

// DomainEvent is the envelope for asynchronous notifications about
// ingestion and quiz progress. Consumers are external; publishing is
// best-effort and never blocks the user-facing operation outcome.
type DomainEvent struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Source    string            `json:"source"`
	Timestamp time.Time         `json:"timestamp"`
	Data      map[string]string `json:"data,omitempty"`
}
