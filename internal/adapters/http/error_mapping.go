package httpadapter

import (
	"net/http"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrRetrieval), domain.IsKind(err, domain.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage keeps upstream details out of 5xx bodies.
func publicErrorMessage(status int, err error) string {
	switch {
	case status < http.StatusInternalServerError:
		return err.Error()
	case domain.IsKind(err, domain.ErrRetrieval):
		return "retrieval failed"
	case domain.IsKind(err, domain.ErrGeneration):
		return "answer generation failed"
	case status == http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	default:
		return "internal error"
	}
}
