package registry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	pulseerrors "github.com/UncleTupelo/pulse/internal/errors"
)

// BlobStore persists artifact binaries keyed by name and version.
type BlobStore interface {
	// Store copies the file at src into the store and returns the stored
	// path and size.
	Store(src, name, version string) (path string, size int64, err error)

	// Retrieve reads a stored blob back.
	Retrieve(path string) ([]byte, error)

	// Delete removes a stored blob and prunes empty parent directories.
	Delete(path string) error
}

// FileBlobStore lays blobs out as <root>/<name>/<version>/<filename>.
type FileBlobStore struct {
	root string
}

// NewFileBlobStore creates the root directory if needed.
func NewFileBlobStore(root string) (*FileBlobStore, error) {
	if root == "" {
		return nil, pulseerrors.Validation("blob store root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob store root: %w", err)
	}
	return &FileBlobStore{root: root}, nil
}

func (b *FileBlobStore) Store(src, name, version string) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, pulseerrors.New(pulseerrors.ErrCodeFileNotFound, fmt.Sprintf("artifact file not found: %s", src), err)
		}
		return "", 0, fmt.Errorf("open artifact file: %w", err)
	}
	defer in.Close()

	dir := filepath.Join(b.root, name, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create artifact dir: %w", err)
	}

	dest := filepath.Join(dir, filepath.Base(src))
	out, err := os.Create(dest)
	if err != nil {
		return "", 0, fmt.Errorf("create artifact copy: %w", err)
	}

	size, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", 0, fmt.Errorf("copy artifact file: %w", err)
	}
	return dest, size, nil
}

func (b *FileBlobStore) Retrieve(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pulseerrors.NotFound("artifact file", path)
		}
		return nil, fmt.Errorf("read artifact file: %w", err)
	}
	return data, nil
}

// Delete removes the blob and walks up toward the root removing
// directories left empty, so a fully deleted artifact leaves no trace.
func (b *FileBlobStore) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove artifact file: %w", err)
	}
	dir := filepath.Dir(path)
	for dir != b.root && len(dir) > len(b.root) {
		// Remove fails on non-empty directories, which ends the walk.
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	return nil
}
