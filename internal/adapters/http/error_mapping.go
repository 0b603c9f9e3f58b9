package httpadapter

import (
	"errors"
	"net/http"

	"github.com/radonlabs/clindoc/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}

	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSessionNotFound),
		domain.IsKind(err, domain.ErrFileNotFound),
		domain.IsKind(err, domain.ErrGroupNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrUnsupportedFile):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrAlreadyRunning):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
