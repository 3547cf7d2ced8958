package api

import (
	"net/http"
	"strings"

	"github.com/IvanShishkin/buckfinder/pkg/models"
)

func ValidationError(details map[string]string) *APIError {
	return &APIError{
		Status: http.StatusBadRequest,
		Err: Error{
			Code:    "validation_error",
			Message: "invalid request",
			Details: details,
		},
	}
}

// RequirePath trims raw and rejects an empty value for field
func RequirePath(raw, field string) (string, *APIError) {
	p := strings.TrimSpace(raw)
	if p == "" {
		return "", ValidationError(map[string]string{field: "must not be empty"})
	}
	return p, nil
}

// FromError maps a coded error onto an HTTP status and envelope
func FromError(err error) *APIError {
	code := models.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case models.CodeFolderNotFound:
		status = http.StatusNotFound
	case models.CodeNoImages, models.CodeNoSelection:
		status = http.StatusBadRequest
	case models.CodeFolderUnreadable, models.CodeDestinationUnwritable:
		status = http.StatusForbidden
	case models.CodeModelNotFound, models.CodeLoadFailed, models.CodeCompilationFailed:
		status = http.StatusServiceUnavailable
	}

	if code == "" {
		code = "internal_error"
	}
	return &APIError{
		Status: status,
		Err:    Error{Code: string(code), Message: models.Message(err)},
	}
}
