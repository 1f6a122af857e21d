package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/elimu-lms/elimu/core/assignment"
)

// localStore keeps uploaded documents on disk under a single directory,
// addressed by a generated ref so original filenames never hit the
// filesystem.
type localStore struct {
	dir string
}

var _ assignment.FileStore = (*localStore)(nil)

func NewLocalStore(dir string) (*localStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating upload dir")
	}
	return &localStore{dir: dir}, nil
}

func (s *localStore) Save(_ context.Context, name string, r io.Reader) (string, error) {
	ref := uuid.NewString() + filepath.Ext(name)

	f, err := os.Create(filepath.Join(s.dir, ref))
	if err != nil {
		return "", errors.Wrap(err, "creating upload file")
	}
	defer f.Close()

	if _, err = io.Copy(f, r); err != nil {
		_ = os.Remove(f.Name())
		return "", errors.Wrap(err, "writing upload file")
	}
	return ref, nil
}

func (s *localStore) Open(_ context.Context, ref string) (io.ReadCloser, int64, error) {
	path := filepath.Join(s.dir, filepath.Base(ref)) // no path traversal

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrap(err, "opening upload file")
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, errors.Wrap(err, "stating upload file")
	}
	return f, info.Size(), nil
}

func (s *localStore) Delete(_ context.Context, ref string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(ref)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing upload file")
	}
	return nil
}
