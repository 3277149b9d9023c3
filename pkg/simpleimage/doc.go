// Package simpleimage provides an image repository that stores uploaded images
// in their original format and serves other formats lazily.
//
// A single Service orchestrates three collaborators: a Catalog holding one
// Image record per upload, a BlobStore holding the bytes of every
// representation, and a Converter turning original bytes into another format.
// Requests for a format that is already present in an image's formats mapping
// are answered with a presigned URL and no further work. Requests for a new
// format run the convert-and-cache pipeline exactly once per (image, format):
//
//	retrieve original -> convert -> store under a new key -> update catalog
//
// Concurrent misses for the same pair are collapsed in-process, and catalog
// updates are versioned so a race between processes never loses a published
// mapping.
//
// Catalog backends live under catalog/ (memory, postgres), blob stores under
// storage/ (memory, fs, s3) and converters under convert/ (local, remote).
package simpleimage
