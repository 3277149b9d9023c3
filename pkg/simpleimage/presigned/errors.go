package presigned

import (
	"errors"
	"net/http"
)

// Blob URL validation errors
var (
	ErrNoSecretKey       = errors.New("presigned: signing requested without a secret key")
	ErrMissingSignature  = errors.New("presigned: blob URL has no signature")
	ErrMissingExpiration = errors.New("presigned: blob URL has no expiry")
	ErrInvalidExpiration = errors.New("presigned: blob URL expiry is not a unix timestamp")
	ErrExpired           = errors.New("presigned: blob URL has expired")
	ErrInvalidSignature  = errors.New("presigned: blob URL signature does not match")
)

// rejections lists the response sent for each validation error. A malformed
// expiry is a client error; everything else refuses access.
var rejections = []struct {
	err     error
	status  int
	message string
}{
	{ErrMissingSignature, http.StatusForbidden, "Missing signature parameter"},
	{ErrMissingExpiration, http.StatusForbidden, "Missing expires parameter"},
	{ErrInvalidExpiration, http.StatusBadRequest, "Invalid expires parameter"},
	{ErrExpired, http.StatusForbidden, "Presigned URL has expired"},
	{ErrInvalidSignature, http.StatusForbidden, "Invalid signature"},
}

// rejection returns the status and body for a failed validation. known is
// false for errors outside the validation set.
func rejection(err error) (status int, message string, known bool) {
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			return r.status, r.message, true
		}
	}
	return http.StatusForbidden, "Authentication failed", false
}
