package handler

import (
	"net/http"

	"github.com/iliyamo/tenant-auth/internal/service"
)

// statusOf is the single mapping from domain failure kind to HTTP
// status.  Anything that is not a typed domain error is an
// infrastructure fault and surfaces as 500.
func statusOf(err error) int {
	switch service.KindOf(err) {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindConflict:
		return http.StatusConflict
	case service.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// clientMessage echoes typed domain errors verbatim and hides
// infrastructure details behind a generic message.
func clientMessage(err error) string {
	if service.KindOf(err) != 0 {
		return err.Error()
	}
	return "internal error"
}
