package api

import (
	"encoding/json"
	"net/http"

	"github.com/knowdeck/internal/apperrors"
)

// envelope is the uniform response shape for every JSON endpoint.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeSuccess(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope{Code: http.StatusOK, Message: message, Data: data})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{Code: http.StatusBadRequest, Message: message})
}

// writeError maps the stable error kinds to response codes. Each kind
// keeps a distinct code so clients can branch without parsing messages.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(apperrors.KindOf(err))
	writeJSON(w, status, envelope{Code: status, Message: err.Error()})
}

func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindInvalidArgument:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindInvalidState, apperrors.KindIncompleteQuiz, apperrors.KindAlreadyGraded:
		return http.StatusConflict
	case apperrors.KindInsufficientContent:
		return http.StatusUnprocessableEntity
	case apperrors.KindGenerationFailed:
		return http.StatusBadGateway
	case apperrors.KindRetrievalUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
