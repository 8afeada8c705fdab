package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/firmware-fragmenter/internal/domain/fragment"
)

// DefaultFilePermissions is the mode of a newly created manifest.
const DefaultFilePermissions = 0o644

// ErrNotFound is returned when the manifest file does not exist.
var ErrNotFound = errors.New("manifest not found")

// Repository persists the manifest of a fragmentation run.
type Repository interface {
	Load(ctx context.Context) (*fragment.Manifest, error)
	Save(ctx context.Context, m *fragment.Manifest) error
}

// FileRepository stores the manifest as a text file on disk.
type FileRepository struct {
	// path is the filesystem location of the manifest.
	path string
}

// NewFileRepository creates a repository for the manifest at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the location of the manifest file.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads and decodes the manifest.
func (r *FileRepository) Load(_ context.Context) (*fragment.Manifest, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read manifest: %w", err)
	}

	m, err := Decode(contents)
	if err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	return m, nil
}

// Save creates or overwrites the manifest. Values are written as given.
func (r *FileRepository) Save(_ context.Context, m *fragment.Manifest) error {
	if err := os.WriteFile(r.path, Encode(m), DefaultFilePermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}
