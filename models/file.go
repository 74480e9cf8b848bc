package models

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// File is an immutable snapshot of one file's contents and metadata as read
// from a backing store.
//
// The underlying buffer is shared between the cache and every caller holding
// the handle. It is never written after NewFile returns, and eviction only
// drops the cache's reference, so a handle stays valid for as long as the
// caller keeps it.
type File struct {
	path    string
	data    []byte
	modTime time.Time
}

// NewFile takes ownership of data. The caller must not modify data afterwards.
func NewFile(path string, data []byte, modTime time.Time) *File {
	return &File{
		path:    path,
		data:    data,
		modTime: modTime,
	}
}

// Path returns the key the file was requested under.
func (f *File) Path() string {
	return f.path
}

// Size returns the length of the file contents in bytes.
func (f *File) Size() int64 {
	return int64(len(f.data))
}

// ModTime returns the backing store's last-modified time at read time.
func (f *File) ModTime() time.Time {
	return f.modTime
}

// Bytes returns an independent copy of the file contents.
func (f *File) Bytes() []byte {
	return bytes.Clone(f.data)
}

// Reader returns a read-only view over the shared contents.
func (f *File) Reader() *bytes.Reader {
	return bytes.NewReader(f.data)
}

// WriteTo writes the contents to w without copying them first.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.data)
	return int64(n), err
}

// Equal reports whether both handles hold the same path, modification time
// and contents.
func (f *File) Equal(other *File) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.path == other.path &&
		f.modTime.Equal(other.modTime) &&
		bytes.Equal(f.data, other.data)
}

// IsStaleAt reports whether a backing store modification time observed now is
// newer than the one captured in the handle.
func (f *File) IsStaleAt(modTime time.Time) bool {
	return modTime.After(f.modTime)
}

// String keeps the contents out of log output.
func (f *File) String() string {
	return fmt.Sprintf("File{path: %s, size: %d, modTime: %s}", f.path, len(f.data), f.modTime.Format(time.RFC3339Nano))
}
