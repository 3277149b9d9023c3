package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tendant/simple-image/pkg/simpleimage"
)

// APIError is an error status answered by the service. It unwraps to the
// sentinel of its status so simpleimage.KindOf classifies it.
type APIError struct {
	StatusCode int
	Response   simpleimage.ErrorResponse
}

func (e *APIError) Error() string {
	return fmt.Sprintf("repository responded %d: %s", e.StatusCode, e.Response.Error())
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return simpleimage.ErrBadRequest
	case http.StatusNotFound:
		return simpleimage.ErrImageNotFound
	case http.StatusBadGateway:
		return simpleimage.ErrConversionFailed
	case http.StatusServiceUnavailable:
		return simpleimage.ErrStorageFailure
	default:
		return nil
	}
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(data, &apiErr.Response); err != nil || apiErr.Response.ErrorCode == 0 {
		apiErr.Response = simpleimage.ErrorResponse{
			ErrorCode:    resp.StatusCode,
			ErrorMessage: http.StatusText(resp.StatusCode),
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			apiErr.Response.Details = text
		}
	}
	return apiErr
}
