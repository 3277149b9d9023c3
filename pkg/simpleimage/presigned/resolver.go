package presigned

import (
	"context"
	"net/http"
	"strings"
)

// Resolver turns storage keys into GET URLs served by Handler. It satisfies
// the ResolveURL half of a blob store.
type Resolver struct {
	signer  *Signer
	baseURL string
}

// NewResolver returns a resolver producing URLs under baseURL
func NewResolver(signer *Signer, baseURL string) *Resolver {
	if signer == nil {
		signer = New()
	}
	return &Resolver{signer: signer, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// ResolveURL signs the blob path of key. Without a secret the URL is
// returned unsigned. It never checks that key exists.
func (r *Resolver) ResolveURL(ctx context.Context, key string) (string, error) {
	path := r.signer.PathFor(key)
	if !r.signer.IsEnabled() {
		return r.baseURL + path, nil
	}
	return r.signer.SignURLWithBase(r.baseURL, http.MethodGet, path, 0)
}
