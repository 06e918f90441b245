// Package storage abstracts where media backups live.
package storage

import (
	"context"
	"io"
)

// Provider stores and retrieves media blobs by key.
type Provider interface {
	Put(ctx context.Context, key string, reader io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// PublicURL returns a URL under which the stored blob can be fetched, or
	// an empty string when the provider has no public surface.
	PublicURL(key string) string
}
