package handler

import (
	"errors"
	"net/http"

	"github.com/olzhas-a/dispatch-core/internal/domain/types"
)

// GetCode maps the domain error taxonomy onto HTTP statuses.
func GetCode(err error) int {
	switch types.ErrCode(err) {
	case types.CodeValidation:
		return http.StatusUnprocessableEntity
	case types.CodeNotFound:
		return http.StatusNotFound
	case types.CodePrecondition:
		return http.StatusConflict
	case types.CodeUnauthorized:
		return http.StatusUnauthorized
	case types.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// domainErrorResponse serializes a failure as {code, message, userMessage},
// plus the allowed target statuses on invalid-transition errors.
func domainErrorResponse(w http.ResponseWriter, err error) {
	body := envelope{
		"code":        types.ErrCode(err),
		"message":     err.Error(),
		"userMessage": types.UserMessage(err),
	}

	var de *types.DomainError
	if errors.As(err, &de) && len(de.AllowedStatuses) > 0 {
		body["allowedStatuses"] = de.AllowedStatuses
	}

	errorResponse(w, GetCode(err), body)
}

func errorResponse(w http.ResponseWriter, status int, message any) {
	env := envelope{"error": message}

	if err := writeJSON(w, status, env, nil); err != nil {
		w.WriteHeader(500)
	}
}

// badRequestResponse reports a malformed request body or path value.
func badRequestResponse(w http.ResponseWriter, message any) {
	errorResponse(w, http.StatusBadRequest, message)
}

func internalErrorResponse(w http.ResponseWriter, message any) {
	errorResponse(w, http.StatusInternalServerError, message)
}
