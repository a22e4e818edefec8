package persist

import (
	"fmt"
	"os"
	"path/filepath"
)

// ArchiveSink is the destination for encrypted credential export archives.
// Sinks only ever see ciphertext: the vault layer encrypts an archive under an
// export-password-derived key before handing it over.
type ArchiveSink interface {
	// Put writes an archive under the given name, replacing any previous one.
	Put(name string, data []byte) error

	// Get reads the archive stored under name. Returns ErrNotFound if no such
	// archive exists.
	Get(name string) ([]byte, error)
}

// FileArchiveSink writes archives as files under a base directory, atomically
// via a temp file + rename, with user-only permissions.
type FileArchiveSink struct {
	baseDir string
}

func NewFileArchiveSink(baseDir string) (*FileArchiveSink, error) {
	if baseDir == "" {
		return nil, &StoreError{Op: "archive_open", Err: fmt.Errorf("empty archive directory")}
	}
	if err := os.MkdirAll(baseDir, DirPermissions); err != nil {
		return nil, &StoreError{Op: "archive_open", Err: err}
	}
	return &FileArchiveSink{baseDir: baseDir}, nil
}

func (f *FileArchiveSink) Put(name string, data []byte) error {
	path, err := f.archivePath(name)
	if err != nil {
		return err
	}
	if err := writeSecureFile(path, data, FilePermissions); err != nil {
		return &StoreError{Op: "archive_put", Err: err}
	}
	return nil
}

func (f *FileArchiveSink) Get(name string) ([]byte, error) {
	path, err := f.archivePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "archive_get", Err: err}
	}
	return data, nil
}

// archivePath rejects names that would escape the base directory.
func (f *FileArchiveSink) archivePath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", &StoreError{Op: "archive_path", Err: fmt.Errorf("invalid archive name %q", name)}
	}
	return filepath.Join(f.baseDir, name), nil
}

var _ ArchiveSink = (*FileArchiveSink)(nil)

// writeSecureFile writes data to path atomically: temp file in the same
// directory, sync, chmod, rename. A crash mid-write never leaves a partial
// archive at the target path.
func writeSecureFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err = tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}
