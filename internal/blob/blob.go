// Package blob defines the boundary to the binary attachment store.
package blob

import (
	"context"
	"io"
)

// Store accepts binary attachments and returns a retrievable URL.
type Store interface {
	Put(ctx context.Context, name, mimeType string, data io.Reader) (url string, err error)
}
