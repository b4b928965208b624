package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const maxLocalUploadBytes = 20 << 20

// LocalStore writes uploads to a directory served by the API under a public
// URL prefix. It backs development setups without Cloudinary credentials.
type LocalStore struct {
	dir       string
	publicURL string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(dir, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &LocalStore{dir: dir, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

// Dir is the directory uploads are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Upload writes data to a new file under folder.
func (s *LocalStore) Upload(ctx context.Context, data []byte, folder string) (string, error) {
	return s.UploadStream(ctx, bytes.NewReader(data), folder)
}

// UploadStream writes the reader's content to a new file under folder.
func (s *LocalStore) UploadStream(ctx context.Context, r io.Reader, folder string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(r, maxLocalUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("local upload: empty image")
	}
	if len(data) > maxLocalUploadBytes {
		return "", errors.New("local upload: image exceeds size limit")
	}

	folder = cleanFolder(folder)
	name := uuid.NewString() + extensionFor(data)
	target := filepath.Join(s.dir, filepath.FromSlash(folder))
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	if err := os.WriteFile(filepath.Join(target, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	return s.publicURL + "/" + path.Join(folder, name), nil
}

// cleanFolder keeps uploads inside the root directory.
func cleanFolder(folder string) string {
	cleaned := path.Clean("/" + strings.ReplaceAll(folder, "\\", "/"))
	return strings.TrimPrefix(cleaned, "/")
}

func extensionFor(data []byte) string {
	contentType := http.DetectContentType(data)
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
