// Package storage uploads image bytes to durable object storage.
package storage

import (
	"context"
	"io"
)

// Store uploads images and returns their public URLs.
type Store interface {
	// Upload stores data under the folder hint.
	Upload(ctx context.Context, data []byte, folder string) (string, error)
	// UploadStream stores the reader's content without an intermediate file.
	UploadStream(ctx context.Context, r io.Reader, folder string) (string, error)
}
