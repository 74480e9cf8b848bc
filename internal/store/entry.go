package store

import (
	"goflare.io/filecache/models"
	"goflare.io/filecache/priority"
)

// entry represents a resident cache entry.
type entry struct {
	file        *models.File
	accessCount uint64
	recency     uint64
	priority    priority.Score
	// seq is the insertion order and breaks priority ties: the earlier entry
	// ranks lower.
	seq uint64
}

func newEntry(file *models.File, seq, recency uint64) *entry {
	return &entry{
		file:        file,
		accessCount: 1,
		recency:     recency,
		seq:         seq,
	}
}

func (e *entry) stats() priority.Stats {
	return priority.Stats{
		Path:        e.file.Path(),
		AccessCount: e.accessCount,
		Size:        e.file.Size(),
		Recency:     e.recency,
	}
}

// touch records a hit.
func (e *entry) touch(recency uint64) {
	e.accessCount++
	e.recency = recency
}

// lessEntry orders entries by ascending priority, then by insertion order.
func lessEntry(a, b *entry) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}
