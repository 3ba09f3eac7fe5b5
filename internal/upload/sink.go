// Package upload stores uploaded files on local disk under a configured
// root, one folder per kind of upload, and serves them back by relative
// path.
package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/spec-kit/commerce-platform/pkg/util"
)

// DiskSink writes uploads beneath a single root directory.
type DiskSink struct {
	root     string
	maxBytes int64
}

// NewDiskSink creates the sink and ensures the root directory exists.
func NewDiskSink(root string, maxBytes int64) (*DiskSink, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskSink{root: root, maxBytes: maxBytes}, nil
}

// Root returns the sink's base directory for static serving.
func (s *DiskSink) Root() string {
	return s.root
}

// Save stores an uploaded image under root/folder and returns its stable
// relative path of the form /uploads/<folder>/<name>. Only image content
// types are accepted.
func (s *DiskSink) Save(folder string, file *multipart.FileHeader) (string, error) {
	if s.maxBytes > 0 && file.Size > s.maxBytes {
		return "", apperrors.NewValidationError("file too large", map[string]any{"max_bytes": s.maxBytes})
	}
	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperrors.NewValidationError("only image files are allowed", nil)
	}

	dir := filepath.Join(s.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload folder: %w", err)
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}

	return "/uploads/" + folder + "/" + name, nil
}

// Remove deletes a previously saved file by its relative path. A missing
// file counts as success.
func (s *DiskSink) Remove(relPath string) error {
	rel, ok := strings.CutPrefix(relPath, "/uploads/")
	if !ok {
		return nil
	}
	// Refuse paths that would escape the upload root.
	clean := filepath.Clean(rel)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil
	}

	err := os.Remove(filepath.Join(s.root, clean))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
