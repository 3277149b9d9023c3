package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-image/pkg/simpleimage"
)

// StatusFor maps an error kind to the HTTP status reported for it.
func StatusFor(kind simpleimage.ErrorKind) int {
	switch kind {
	case simpleimage.KindUnsupportedFormat, simpleimage.KindBadRequest:
		return http.StatusBadRequest
	case simpleimage.KindNotFound:
		return http.StatusNotFound
	case simpleimage.KindConversionFailure:
		return http.StatusBadGateway
	case simpleimage.KindStorageFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as an ErrorResponse with the status of its kind.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(simpleimage.KindOf(err))
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeProblem(w, r, status, detailsOf(err))
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, details interface{}) {
	render.Status(r, status)
	render.JSON(w, r, simpleimage.ErrorResponse{
		ErrorCode:    status,
		ErrorMessage: http.StatusText(status),
		Details:      details,
	})
}

func detailsOf(err error) interface{} {
	var verr *simpleimage.ValidationError
	if errors.As(err, &verr) {
		return verr.Problems
	}
	if simpleimage.KindOf(err) == simpleimage.KindUnexpected {
		return "unable to process request"
	}
	return err.Error()
}
