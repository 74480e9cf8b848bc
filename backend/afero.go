package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"
)

// Afero reads files through an afero.Fs.
type Afero struct {
	fs afero.Fs
}

var _ Backend = (*Afero)(nil)

// NewAfero wraps fsys.
func NewAfero(fsys afero.Fs) *Afero {
	return &Afero{fs: fsys}
}

// NewOS serves files below root on the local disk. Paths escaping root are
// reported as not found.
func NewOS(root string) *Afero {
	return NewAfero(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// Stat implements Backend.
func (a *Afero) Stat(ctx context.Context, path string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}

	fi, err := a.fs.Stat(path)
	if err != nil {
		return Info{}, mapFSError(path, err)
	}
	if fi.IsDir() {
		return Info{}, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	return Info{Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Read implements Backend.
func (a *Afero) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return nil, mapFSError(path, err)
	}
	return data, nil
}

func mapFSError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return fmt.Errorf("failed to access %s: %w", path, err)
}
