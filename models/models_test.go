package models

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile(t *testing.T) {
	mod := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := NewFile("/docs/a.txt", []byte("secret contents"), mod)

	assert.Equal(t, "/docs/a.txt", f.Path())
	assert.Equal(t, int64(15), f.Size())
	assert.Equal(t, mod, f.ModTime())

	b := f.Bytes()
	b[0] = 'X'
	assert.Equal(t, "secret contents", string(f.Bytes()), "Bytes returns a copy")

	data, err := io.ReadAll(f.Reader())
	require.NoError(t, err)
	assert.Equal(t, "secret contents", string(data))

	var buf bytes.Buffer
	n, err := f.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(15), n)

	assert.NotContains(t, f.String(), "secret")
	assert.Contains(t, f.String(), "/docs/a.txt")
}

func TestFileStaleness(t *testing.T) {
	mod := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := NewFile("/a", nil, mod)

	assert.False(t, f.IsStaleAt(mod))
	assert.False(t, f.IsStaleAt(mod.Add(-time.Second)))
	assert.True(t, f.IsStaleAt(mod.Add(time.Nanosecond)))
}

func TestFileEqual(t *testing.T) {
	mod := time.Now()
	a := NewFile("/a", []byte("x"), mod)

	assert.True(t, a.Equal(NewFile("/a", []byte("x"), mod)))
	assert.False(t, a.Equal(NewFile("/a", []byte("y"), mod)))
	assert.False(t, a.Equal(NewFile("/a", []byte("x"), mod.Add(time.Second))))
	assert.False(t, a.Equal(nil))

	var none *File
	assert.True(t, none.Equal(nil))
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	assert.Zero(t, m.Snapshot().HitRatio())

	m.Hits.Add(3)
	m.Misses.Inc()
	m.EvictedBytes.Add(100)

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.Hits)
	assert.InDelta(t, 0.75, s.HitRatio(), 1e-9)

	sum := s.Add(s)
	assert.Equal(t, int64(6), sum.Hits)
	assert.Equal(t, int64(200), sum.EvictedBytes)
}
