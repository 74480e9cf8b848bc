package backend

import (
	"context"
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Billy reads files through a go-billy filesystem, such as an osfs rooted at
// a directory or an in-memory memfs.
type Billy struct {
	fs billy.Basic
}

var _ Backend = (*Billy)(nil)

// NewBilly wraps fsys.
func NewBilly(fsys billy.Basic) *Billy {
	return &Billy{fs: fsys}
}

// Stat implements Backend.
func (b *Billy) Stat(ctx context.Context, path string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}

	fi, err := b.fs.Stat(path)
	if err != nil {
		return Info{}, mapFSError(path, err)
	}
	if fi.IsDir() {
		return Info{}, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	return Info{Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Read implements Backend.
func (b *Billy) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := util.ReadFile(b.fs, path)
	if err != nil {
		return nil, mapFSError(path, err)
	}
	return data, nil
}
