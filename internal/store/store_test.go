package store

import (
	"bytes"
	"math/rand/v2"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/filecache/models"
	"goflare.io/filecache/priority"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newFile(path string, size int, modTime time.Time) *models.File {
	return models.NewFile(path, bytes.Repeat([]byte{'x'}, size), modTime)
}

// tablePolicy scores each path with a fixed value, ignoring hits.
func tablePolicy(scores map[string]priority.Score) priority.Policy {
	return priority.PolicyFunc(func(s priority.Stats) priority.Score {
		return scores[s.Path]
	})
}

func mustNew(t *testing.T, cfg Config) *Store {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func admit(t *testing.T, s *Store, f *models.File) Admission {
	t.Helper()
	a := s.TryAdmit(f)
	require.NoError(t, s.Check())
	return a
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{name: "zero capacity", cfg: Config{Capacity: 0, Policy: priority.Default}, want: ErrInvalidCapacity},
		{name: "negative capacity", cfg: Config{Capacity: -1, Policy: priority.Default}, want: ErrInvalidCapacity},
		{name: "inverted bounds", cfg: Config{Capacity: 10, MinFileSize: 5, MaxFileSize: 4, Policy: priority.Default}, want: ErrInvalidFileSizeBounds},
		{name: "negative bound", cfg: Config{Capacity: 10, MinFileSize: -1, Policy: priority.Default}, want: ErrInvalidFileSizeBounds},
		{name: "nil policy", cfg: Config{Capacity: 10}, want: ErrNilPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEqualPriorityEvictsEarliestInserted(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{
		Capacity: 10,
		Policy:   tablePolicy(map[string]priority.Score{"A": 1, "B": 1, "C": 2}),
	})

	assert.Equal(t, Admitted, admit(t, s, newFile("A", 4, epoch)).Result)
	assert.Equal(t, Admitted, admit(t, s, newFile("B", 4, epoch)).Result)
	assert.Equal(t, int64(8), s.SizeBytes())

	a := admit(t, s, newFile("C", 4, epoch))
	assert.Equal(t, Admitted, a.Result)
	assert.Equal(t, 1, a.Evicted)
	assert.Equal(t, int64(4), a.FreedBytes)

	assert.False(t, s.Contains("A"))
	assert.True(t, s.Contains("B"))
	assert.True(t, s.Contains("C"))
	assert.Equal(t, int64(8), s.SizeBytes())
}

func TestLowPriorityCandidateLeavesStoreUnchanged(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{
		Capacity: 10,
		Policy:   tablePolicy(map[string]priority.Score{"A": 5, "D": 1}),
	})

	require.Equal(t, Admitted, admit(t, s, newFile("A", 8, epoch)).Result)

	a := admit(t, s, newFile("D", 4, epoch))
	assert.Equal(t, RejectedLowPriority, a.Result)
	assert.Equal(t, priority.Score(1), a.Priority)
	assert.Zero(t, a.Evicted)

	assert.Equal(t, []string{"A"}, s.Keys())
	assert.Equal(t, int64(8), s.SizeBytes())
}

func TestEqualPriorityCandidateIsRejected(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{Capacity: 8, Policy: priority.AccessCount})

	require.Equal(t, Admitted, admit(t, s, newFile("a", 8, epoch)).Result)
	assert.Equal(t, RejectedLowPriority, admit(t, s, newFile("b", 8, epoch)).Result)
	assert.True(t, s.Contains("a"))
}

func TestCandidateMustOutrankMostValuableVictim(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{
		Capacity: 10,
		Policy:   tablePolicy(map[string]priority.Score{"A": 1, "B": 4, "C": 3}),
	})

	admit(t, s, newFile("A", 5, epoch))
	admit(t, s, newFile("B", 5, epoch))

	// Evicting A alone frees too little, and C does not outrank B.
	a := admit(t, s, newFile("C", 6, epoch))
	assert.Equal(t, RejectedLowPriority, a.Result)
	assert.ElementsMatch(t, []string{"A", "B"}, s.Keys())
	assert.Equal(t, int64(10), s.SizeBytes())
}

func TestEvictionStopsOnceEnoughIsFreed(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{
		Capacity: 10,
		Policy:   tablePolicy(map[string]priority.Score{"A": 1, "B": 2, "C": 3, "D": 10}),
	})

	admit(t, s, newFile("C", 5, epoch))
	admit(t, s, newFile("A", 2, epoch))
	admit(t, s, newFile("B", 3, epoch))

	a := admit(t, s, newFile("D", 4, epoch))
	require.Equal(t, Admitted, a.Result)
	assert.Equal(t, 2, a.Evicted)
	assert.Equal(t, int64(5), a.FreedBytes)
	assert.Equal(t, []string{"C", "D"}, s.Keys())
	assert.Equal(t, int64(9), s.SizeBytes())
}

func TestAdmitIntoFreeSpace(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{Capacity: 100, Policy: priority.Default})

	a := admit(t, s, newFile("a", 100, epoch))
	assert.Equal(t, Admitted, a.Result)
	assert.Zero(t, a.Evicted)
	assert.Equal(t, int64(100), s.SizeBytes())
	assert.Equal(t, 1, s.Len())
}

func TestRejectTooLarge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		size int
	}{
		{name: "exceeds capacity", cfg: Config{Capacity: 10}, size: 11},
		{name: "below min", cfg: Config{Capacity: 10, MinFileSize: 3}, size: 2},
		{name: "above max", cfg: Config{Capacity: 10, MaxFileSize: 5}, size: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.cfg.Policy = priority.Default
			s := mustNew(t, tt.cfg)
			admit(t, s, newFile("resident", 3, epoch))

			a := admit(t, s, newFile("big", tt.size, epoch))
			assert.Equal(t, RejectedTooLarge, a.Result)
			assert.Equal(t, []string{"resident"}, s.Keys())
		})
	}
}

func TestFileSizeBoundsAreInclusive(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{Capacity: 100, MinFileSize: 2, MaxFileSize: 4, Policy: priority.Default})

	assert.Equal(t, Admitted, admit(t, s, newFile("min", 2, epoch)).Result)
	assert.Equal(t, Admitted, admit(t, s, newFile("max", 4, epoch)).Result)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{Capacity: 100, Policy: priority.AccessCount})

	f, res := s.Lookup("missing", epoch)
	assert.Nil(t, f)
	assert.Equal(t, Miss, res)

	stored := newFile("a", 10, epoch)
	admit(t, s, stored)

	for i := 0; i < 3; i++ {
		f, res = s.Lookup("a", epoch)
		require.Equal(t, Hit, res)
		assert.Same(t, stored, f)
	}

	count, ok := s.AccessCount("a")
	require.True(t, ok)
	assert.Equal(t, uint64(4), count)

	p, ok := s.Priority("a")
	require.True(t, ok)
	assert.Equal(t, priority.Score(4), p)
}

func TestLookupOlderModTimeIsAHit(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{Capacity: 100, Policy: priority.Default})
	admit(t, s, newFile("a", 10, epoch))

	_, res := s.Lookup("a", epoch.Add(-time.Hour))
	assert.Equal(t, Hit, res)
}

func TestLookupStaleRemovesEntry(t *testing.T) {
	t.Parallel()

	var removed []RemovalReason
	s := mustNew(t, Config{
		Capacity: 100,
		Policy:   priority.Default,
		OnRemove: func(_ *models.File, reason RemovalReason) { removed = append(removed, reason) },
	})
	admit(t, s, newFile("a", 10, epoch))

	f, res := s.Lookup("a", epoch.Add(time.Second))
	assert.Nil(t, f)
	assert.Equal(t, Stale, res)
	assert.False(t, s.Contains("a"))
	assert.Zero(t, s.SizeBytes())
	assert.Equal(t, []RemovalReason{RemovedStale}, removed)
	require.NoError(t, s.Check())
}

func TestHitsReorderEviction(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{Capacity: 8, Policy: priority.AccessCount})
	admit(t, s, newFile("a", 4, epoch))
	admit(t, s, newFile("b", 4, epoch))
	assert.Equal(t, []string{"a", "b"}, s.Keys())

	_, res := s.Lookup("a", epoch)
	require.Equal(t, Hit, res)
	assert.Equal(t, []string{"b", "a"}, s.Keys())
}

func TestTryAdmitAlreadyResident(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{Capacity: 100, Policy: priority.Default})
	first := newFile("a", 10, epoch)
	admit(t, s, first)

	a := admit(t, s, newFile("a", 10, epoch))
	assert.Equal(t, AlreadyResident, a.Result)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, int64(10), s.SizeBytes())

	f, _ := s.Lookup("a", epoch)
	assert.Same(t, first, f)
}

func TestTryAdmitReplacesStaleEntry(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{Capacity: 100, Policy: priority.Default})
	admit(t, s, newFile("a", 10, epoch))

	newer := newFile("a", 20, epoch.Add(time.Minute))
	a := admit(t, s, newer)
	assert.Equal(t, Admitted, a.Result)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, int64(20), s.SizeBytes())

	f, res := s.Lookup("a", epoch.Add(time.Minute))
	require.Equal(t, Hit, res)
	assert.Same(t, newer, f)
}

func TestRemoveIsIdempotent(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{Capacity: 100, Policy: priority.Default})
	admit(t, s, newFile("a", 10, epoch))
	admit(t, s, newFile("b", 10, epoch))

	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	assert.False(t, s.Remove("never"))

	assert.Equal(t, []string{"b"}, s.Keys())
	assert.Equal(t, int64(10), s.SizeBytes())
	require.NoError(t, s.Check())
}

func TestClear(t *testing.T) {
	t.Parallel()

	removed := 0
	s := mustNew(t, Config{
		Capacity: 100,
		Policy:   priority.Default,
		OnRemove: func(*models.File, RemovalReason) { removed++ },
	})
	for i := 0; i < 5; i++ {
		admit(t, s, newFile(strconv.Itoa(i), 10, epoch))
	}

	assert.Equal(t, 5, s.Clear())
	assert.Equal(t, 5, removed)
	assert.Zero(t, s.Len())
	assert.Zero(t, s.SizeBytes())
	assert.Empty(t, s.Keys())
	require.NoError(t, s.Check())

	assert.Equal(t, Admitted, admit(t, s, newFile("again", 10, epoch)).Result)
}

func TestResize(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{
		Capacity: 30,
		Policy:   tablePolicy(map[string]priority.Score{"a": 1, "b": 2, "c": 3}),
	})
	admit(t, s, newFile("a", 10, epoch))
	admit(t, s, newFile("b", 10, epoch))
	admit(t, s, newFile("c", 10, epoch))

	evicted, err := s.Resize(15)
	require.NoError(t, err)
	assert.Equal(t, 2, evicted)
	assert.Equal(t, []string{"c"}, s.Keys())
	assert.Equal(t, int64(15), s.Capacity())
	require.NoError(t, s.Check())

	evicted, err = s.Resize(100)
	require.NoError(t, err)
	assert.Zero(t, evicted)

	_, err = s.Resize(0)
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	assert.Equal(t, int64(100), s.Capacity())
}

func TestHandleOutlivesEviction(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{Capacity: 4, Policy: priority.Recency})
	want := []byte("abcd")
	admit(t, s, models.NewFile("a", bytes.Clone(want), epoch))

	held, res := s.Lookup("a", epoch)
	require.Equal(t, Hit, res)

	require.Equal(t, Admitted, admit(t, s, newFile("b", 4, epoch)).Result)
	require.False(t, s.Contains("a"))

	assert.Equal(t, want, held.Bytes())
}

func TestDefaultPolicyPrefersSmallFiles(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{Capacity: 5500, Policy: priority.Default})
	require.Equal(t, Admitted, admit(t, s, newFile("five", 5000, epoch)).Result)

	a := admit(t, s, newFile("one", 1000, epoch))
	assert.Equal(t, Admitted, a.Result)
	assert.Equal(t, []string{"one"}, s.Keys())
}

func TestBalancedPolicyNeedsRepeatedAccess(t *testing.T) {
	t.Parallel()

	s := mustNew(t, Config{Capacity: 3000, Policy: priority.Balanced})
	require.Equal(t, Admitted, admit(t, s, newFile("two", 2000, epoch)).Result)

	// floor(sqrt(1000)) = 31 does not beat floor(sqrt(2000)) = 44.
	assert.Equal(t, RejectedLowPriority, admit(t, s, newFile("one", 1001, epoch)).Result)
	assert.Equal(t, []string{"two"}, s.Keys())
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	s := mustNew(t, Config{Capacity: 1000, MaxFileSize: 400, Policy: priority.Default})

	for i := 0; i < 5000; i++ {
		path := "f" + strconv.Itoa(rng.IntN(60))
		modTime := epoch.Add(time.Duration(rng.IntN(3)) * time.Second)

		switch op := rng.IntN(10); {
		case op < 5:
			s.TryAdmit(newFile(path, rng.IntN(500), modTime))
		case op < 8:
			s.Lookup(path, modTime)
		case op < 9:
			s.Remove(path)
		default:
			_, err := s.Resize(int64(500 + rng.IntN(1000)))
			require.NoError(t, err)
		}

		require.NoError(t, s.Check(), "operation %d", i)
		require.LessOrEqual(t, s.SizeBytes(), s.Capacity())
	}
}
