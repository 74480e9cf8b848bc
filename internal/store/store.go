// Package store implements the bounded file store: size accounting, the
// priority index and the admission/eviction algorithm.
//
// A Store is not safe for concurrent use. The owning cache serializes every
// call behind one lock, because lookups mutate entry statistics.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/btree"

	"goflare.io/filecache/models"
	"goflare.io/filecache/priority"
)

const btreeDegree = 32

var (
	ErrInvalidCapacity       = errors.New("capacity must be greater than 0")
	ErrInvalidFileSizeBounds = errors.New("file size bounds must be non-negative and min must not exceed max")
	ErrNilPolicy             = errors.New("priority policy must not be nil")
	ErrInvariantViolation    = errors.New("cache invariant violated")
)

// Config holds the construction parameters of a Store.
type Config struct {
	Capacity int64
	// MinFileSize and MaxFileSize bound the size of admitted files. Zero
	// disables the bound.
	MinFileSize int64
	MaxFileSize int64
	Policy      priority.Policy
	// OnRemove, when set, is called for every entry leaving the store while
	// the caller still holds the store's lock.
	OnRemove func(file *models.File, reason RemovalReason)
}

// Store is the bounded mapping from path to resident file.
type Store struct {
	capacity    int64
	size        int64
	minFileSize int64
	maxFileSize int64
	policy      priority.Policy
	onRemove    func(*models.File, RemovalReason)

	entries map[string]*entry
	index   *btree.BTreeG[*entry]

	nextSeq uint64
	clock   uint64
}

// New creates an empty Store.
func New(cfg Config) (*Store, error) {
	if cfg.Capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if cfg.MinFileSize < 0 || cfg.MaxFileSize < 0 {
		return nil, ErrInvalidFileSizeBounds
	}
	if cfg.MaxFileSize > 0 && cfg.MinFileSize > cfg.MaxFileSize {
		return nil, ErrInvalidFileSizeBounds
	}
	if cfg.Policy == nil {
		return nil, ErrNilPolicy
	}

	return &Store{
		capacity:    cfg.Capacity,
		minFileSize: cfg.MinFileSize,
		maxFileSize: cfg.MaxFileSize,
		policy:      cfg.Policy,
		onRemove:    cfg.OnRemove,
		entries:     make(map[string]*entry),
		index:       btree.NewG(btreeDegree, lessEntry),
	}, nil
}

// Lookup returns the resident file for path if it is at least as new as
// modTime, the backing store's current modification time.
//
// A hit counts as an access and re-ranks the entry. A resident entry older
// than modTime is removed and reported as Stale.
func (s *Store) Lookup(path string, modTime time.Time) (*models.File, LookupResult) {
	e, ok := s.entries[path]
	if !ok {
		return nil, Miss
	}

	if e.file.IsStaleAt(modTime) {
		s.remove(e, RemovedStale)
		return nil, Stale
	}

	s.index.Delete(e)
	e.touch(s.tick())
	e.priority = s.policy.Score(e.stats())
	s.index.ReplaceOrInsert(e)

	return e.file, Hit
}

// TryAdmit offers a freshly read file to the store.
//
// Nothing is removed unless the file is admitted: the removal set is chosen
// and checked against the candidate's priority before any entry is touched.
func (s *Store) TryAdmit(file *models.File) Admission {
	size := file.Size()

	if e, ok := s.entries[file.Path()]; ok {
		if !e.file.IsStaleAt(file.ModTime()) {
			return Admission{Result: AlreadyResident, Priority: e.priority}
		}
		s.remove(e, RemovedStale)
	}

	if !s.admissible(size) {
		return Admission{Result: RejectedTooLarge}
	}

	recency := s.tick()

	if s.size+size <= s.capacity {
		e := s.insert(file, recency)
		return Admission{Result: Admitted, Priority: e.priority}
	}

	candidate := s.policy.Score(priority.Stats{
		Path:        file.Path(),
		AccessCount: 1,
		Size:        size,
		Recency:     recency,
	})

	need := s.size + size - s.capacity
	var (
		victims []*entry
		freed   int64
	)
	s.index.Ascend(func(e *entry) bool {
		victims = append(victims, e)
		freed += e.file.Size()
		return freed < need
	})

	if freed < need {
		// Unreachable while size <= capacity holds for the file and the store.
		return Admission{Result: RejectedTooLarge, Priority: candidate}
	}

	// Victims are in ascending order, so the last one is the most valuable
	// entry that would have to go.
	if candidate <= victims[len(victims)-1].priority {
		return Admission{Result: RejectedLowPriority, Priority: candidate}
	}

	for _, v := range victims {
		s.remove(v, RemovedEvicted)
	}
	e := s.insert(file, recency)

	return Admission{
		Result:     Admitted,
		Priority:   e.priority,
		Evicted:    len(victims),
		FreedBytes: freed,
	}
}

// Remove drops the entry for path. It reports whether one was present.
func (s *Store) Remove(path string) bool {
	e, ok := s.entries[path]
	if !ok {
		return false
	}
	s.remove(e, RemovedInvalidated)
	return true
}

// Clear drops every entry and returns how many were resident.
func (s *Store) Clear() int {
	n := len(s.entries)
	if s.onRemove != nil {
		for _, e := range s.entries {
			s.onRemove(e.file, RemovedInvalidated)
		}
	}
	s.entries = make(map[string]*entry)
	s.index.Clear(false)
	s.size = 0
	return n
}

// Resize changes the capacity and evicts the lowest-priority entries until
// the resident size fits. It returns the number of evicted entries.
func (s *Store) Resize(capacity int64) (int, error) {
	if capacity <= 0 {
		return 0, ErrInvalidCapacity
	}
	s.capacity = capacity

	evicted := 0
	for s.size > s.capacity {
		e, ok := s.index.Min()
		if !ok {
			break
		}
		s.remove(e, RemovedEvicted)
		evicted++
	}
	return evicted, nil
}

// Contains reports whether path is resident. It does not count as an access.
func (s *Store) Contains(path string) bool {
	_, ok := s.entries[path]
	return ok
}

// Priority returns the last computed score of a resident entry.
func (s *Store) Priority(path string) (priority.Score, bool) {
	e, ok := s.entries[path]
	if !ok {
		return 0, false
	}
	return e.priority, true
}

// AccessCount returns the access count of a resident entry.
func (s *Store) AccessCount(path string) (uint64, bool) {
	e, ok := s.entries[path]
	if !ok {
		return 0, false
	}
	return e.accessCount, true
}

// Keys returns the resident paths in eviction order, lowest priority first.
func (s *Store) Keys() []string {
	keys := make([]string, 0, s.index.Len())
	s.index.Ascend(func(e *entry) bool {
		keys = append(keys, e.file.Path())
		return true
	})
	return keys
}

func (s *Store) Len() int {
	return len(s.entries)
}

func (s *Store) SizeBytes() int64 {
	return s.size
}

func (s *Store) Capacity() int64 {
	return s.capacity
}

// Check recomputes the resident size from scratch and compares it with the
// running total and the capacity.
func (s *Store) Check() error {
	var sum int64
	for path, e := range s.entries {
		if e.file.Path() != path {
			return fmt.Errorf("%w: entry %q stored under %q", ErrInvariantViolation, e.file.Path(), path)
		}
		sum += e.file.Size()
	}

	switch {
	case sum != s.size:
		return fmt.Errorf("%w: size counter %d, resident sum %d", ErrInvariantViolation, s.size, sum)
	case s.size > s.capacity:
		return fmt.Errorf("%w: size %d exceeds capacity %d", ErrInvariantViolation, s.size, s.capacity)
	case s.index.Len() != len(s.entries):
		return fmt.Errorf("%w: index holds %d entries, map holds %d", ErrInvariantViolation, s.index.Len(), len(s.entries))
	}
	return nil
}

func (s *Store) admissible(size int64) bool {
	if size > s.capacity {
		return false
	}
	if s.minFileSize > 0 && size < s.minFileSize {
		return false
	}
	if s.maxFileSize > 0 && size > s.maxFileSize {
		return false
	}
	return true
}

func (s *Store) insert(file *models.File, recency uint64) *entry {
	e := newEntry(file, s.nextSeq, recency)
	s.nextSeq++
	e.priority = s.policy.Score(e.stats())

	s.entries[file.Path()] = e
	s.index.ReplaceOrInsert(e)
	s.size += file.Size()
	return e
}

// remove unlinks e. The file's buffer is left to the garbage collector, so
// the cost does not depend on its size and outstanding handles stay valid.
func (s *Store) remove(e *entry, reason RemovalReason) {
	delete(s.entries, e.file.Path())
	s.index.Delete(e)
	s.size -= e.file.Size()

	if s.onRemove != nil {
		s.onRemove(e.file, reason)
	}
}

func (s *Store) tick() uint64 {
	s.clock++
	return s.clock
}
