package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FS stores attachments as files under a session-owned directory and
// returns file:// URLs. The managed blob store is an external
// collaborator behind the same interface.
type FS struct {
	dir string
}

// NewFS creates a filesystem blob store rooted at dir.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FS{dir: dir}, nil
}

// Put writes the attachment and returns its terminal URL. The stored
// name is prefixed with a fresh id so uploads never collide.
func (s *FS) Put(ctx context.Context, name, mimeType string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, uuid.NewString()+"-"+sanitize(name))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close blob: %w", err)
	}

	return "file://" + path, nil
}

// sanitize strips path separators from a client-supplied name.
func sanitize(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	if name == "." || name == "" {
		return "attachment"
	}
	return name
}
