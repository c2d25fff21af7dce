package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := New(KindNotFound, "store.get", "quiz not found")
	if got := KindOf(err); got != KindNotFound {
		t.Errorf("KindOf = %q, want %q", got, KindNotFound)
	}

	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Errorf("untyped error KindOf = %q, want %q", got, KindInternal)
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := New(KindInvalidState, "quiz.start", "already started")
	outer := fmt.Errorf("handling request: %w", inner)

	if got := KindOf(outer); got != KindInvalidState {
		t.Errorf("KindOf through fmt wrap = %q, want %q", got, KindInvalidState)
	}
	if !IsKind(outer, KindInvalidState) {
		t.Error("IsKind through fmt wrap = false")
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if err := Wrap(KindInternal, "op", nil); err != nil {
		t.Errorf("Wrap(nil) = %v", err)
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindRetrievalUnavailable, "retrieval.retrieve", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is failed to find the cause")
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "message only",
			err:  New(KindInvalidArgument, "quiz.create", "kb_ids must not be empty"),
			want: "quiz.create: invalid_argument: kb_ids must not be empty",
		},
		{
			name: "cause only",
			err:  Wrap(KindGenerationFailed, "quiz.submit", errors.New("timeout")),
			want: "quiz.submit: generation_failed: timeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsKindNil(t *testing.T) {
	if IsKind(nil, KindInternal) {
		t.Error("IsKind(nil) = true")
	}
}
