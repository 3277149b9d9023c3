// Package presigned signs and validates time-limited blob URLs for storage
// backends without a native presigning mechanism (memory and fs).
//
// A signed URL has the form
//
//	{base}/blobs/{key}?signature={hmac}&expires={unix}
//
// where the signature is HMAC-SHA256 over "METHOD|PATH|EXPIRES". The
// Handler serves such URLs after validating them.
//
//	signer := presigned.New(
//	    presigned.WithSecretKey(secret),
//	    presigned.WithDefaultExpiration(24*time.Hour),
//	)
//	resolver := presigned.NewResolver(signer, "https://images.example.com")
//	url, _ := resolver.ResolveURL(ctx, "c53c...")
package presigned
