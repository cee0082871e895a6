package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Store persists uploaded files. Paths returned by Store are relative to the
// store root and are what gets saved in the database.
type Store interface {
	Store(ctx context.Context, r io.Reader, dir, name string) (string, error)
	Delete(ctx context.Context, path string) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Upload is a file received from a client, not yet persisted.
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Reader      io.Reader
}

// StoredFile is an upload after it has been written to the store.
type StoredFile struct {
	Name        string
	Path        string
	Size        int64
	ContentType string
}

// LocalStore keeps files on an afero filesystem rooted at the storage
// directory. Paths never leave that root.
type LocalStore struct {
	fs     afero.Fs
	logger *slog.Logger
}

// NewLocalStore creates root if needed and stores files below it on disk.
func NewLocalStore(root string, logger *slog.Logger) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return NewStoreOnFs(afero.NewBasePathFs(osFs, abs), logger), nil
}

// NewStoreOnFs stores files on fs as given; callers wanting containment pass
// an afero.BasePathFs.
func NewStoreOnFs(fs afero.Fs, logger *slog.Logger) *LocalStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalStore{fs: fs, logger: logger}
}

// Store writes r under dir with a random name keeping the lower-cased
// extension of name, and returns the relative path.
func (s *LocalStore) Store(ctx context.Context, r io.Reader, dir, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rel := path.Join(path.Clean("/"+filepath.ToSlash(dir))[1:], uuid.NewString()+strings.ToLower(path.Ext(name)))
	if err := s.fs.MkdirAll(path.Dir(rel), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	f, err := s.fs.OpenFile(rel, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		s.fs.Remove(rel)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(rel)
		return "", fmt.Errorf("close file: %w", err)
	}

	s.logger.Debug("file stored", "path", rel, "original_name", name)
	return rel, nil
}

// Delete removes path; a missing file is not an error.
func (s *LocalStore) Delete(_ context.Context, p string) error {
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// Open returns internal.ErrFileNotFound for missing files and for paths that
// would leave the store root.
func (s *LocalStore) Open(_ context.Context, p string) (io.ReadCloser, error) {
	f, err := s.fs.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, internal.ErrFileNotFound
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Batch tracks files written during one use case so they can be removed if
// the surrounding database transaction fails.
type Batch struct {
	store  Store
	logger *slog.Logger

	mu    sync.Mutex
	files []StoredFile
}

func NewBatch(store Store, logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{store: store, logger: logger}
}

func (b *Batch) Put(ctx context.Context, up Upload, dir string) (StoredFile, error) {
	path, err := b.store.Store(ctx, up.Reader, dir, up.Name)
	if err != nil {
		return StoredFile{}, err
	}
	f := StoredFile{Name: up.Name, Path: path, Size: up.Size, ContentType: up.ContentType}

	b.mu.Lock()
	b.files = append(b.files, f)
	b.mu.Unlock()
	return f, nil
}

func (b *Batch) PutAll(ctx context.Context, uploads []Upload, dir string) ([]StoredFile, error) {
	stored := make([]StoredFile, 0, len(uploads))
	for _, up := range uploads {
		f, err := b.Put(ctx, up, dir)
		if err != nil {
			return nil, err
		}
		stored = append(stored, f)
	}
	return stored, nil
}

func (b *Batch) Files() []StoredFile {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]StoredFile(nil), b.files...)
}

// Rollback deletes every file written through the batch.
func (b *Batch) Rollback(ctx context.Context) {
	b.mu.Lock()
	files := b.files
	b.files = nil
	b.mu.Unlock()

	for _, f := range files {
		if err := b.store.Delete(context.WithoutCancel(ctx), f.Path); err != nil {
			b.logger.Warn("failed to remove orphaned file", "path", f.Path, "error", err)
		}
	}
}

// DeletePaths removes files that were detached from their records after commit.
func DeletePaths(ctx context.Context, store Store, logger *slog.Logger, paths []string) {
	for _, p := range paths {
		if err := store.Delete(ctx, p); err != nil {
			logger.Warn("failed to delete detached file", "path", p, "error", err)
		}
	}
}
