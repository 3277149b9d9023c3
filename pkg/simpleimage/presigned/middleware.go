package presigned

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

const (
	// ObjectKeyContextKey is the context key for storing the validated storage key
	ObjectKeyContextKey contextKey = "presigned:object_key"
)

// ValidateMiddleware validates presigned URL signatures and stores the
// extracted key in the request context.
func ValidateMiddleware(signer *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := signer.ValidateRequest(r); err != nil {
				handleValidationError(w, err)
				return
			}

			key, err := signer.ExtractObjectKey(r.URL.Path)
			if err != nil {
				slog.Warn("presigned: failed to extract object key", "path", r.URL.Path, "error", err)
				http.Error(w, "Invalid blob URL", http.StatusBadRequest)
				return
			}

			ctx := context.WithValue(r.Context(), ObjectKeyContextKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ObjectKeyFromContext extracts the validated storage key from the request context
func ObjectKeyFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(ObjectKeyContextKey).(string); ok {
		return key
	}
	return ""
}

func handleValidationError(w http.ResponseWriter, err error) {
	status, message, known := rejection(err)
	if !known {
		slog.Error("presigned: validation error", "error", err)
	}
	http.Error(w, message, status)
}
