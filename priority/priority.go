// Package priority defines how cache entries are ranked for eviction and
// admission.
//
// A Policy maps the statistics of one entry to a Score. Higher scores are more
// valuable: the store evicts the lowest scores first, and an incoming file is
// only admitted over residents it outranks. Policies must be pure and
// deterministic; the store calls them while holding its lock.
package priority

import "math"

// Score is a totally ordered priority value. Higher is more valuable.
type Score float64

// Stats are the inputs a Policy may rank on.
type Stats struct {
	// Path is the entry's key. Most policies ignore it.
	Path string
	// AccessCount is 1 on first insertion and grows by one on every hit.
	AccessCount uint64
	// Size is the entry's size in bytes.
	Size int64
	// Recency is the store's logical clock at the entry's last touch. Larger
	// values are more recent.
	Recency uint64
}

// Policy scores an entry.
type Policy interface {
	Score(Stats) Score
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc func(Stats) Score

// Score calls f(s).
func (f PolicyFunc) Score(s Stats) Score {
	return f(s)
}

// Default ranks by access count, and among equal counts prefers smaller
// files. The size term stays within (0, 0.5] so it can never lift an entry
// over one with a higher count.
var Default Policy = PolicyFunc(func(s Stats) Score {
	return Score(float64(s.AccessCount) + 1/(2+float64(max(s.Size, 0))))
})

// Balanced weighs access count by the square root of the size, favouring
// large hot files over small hot ones.
var Balanced Policy = PolicyFunc(func(s Stats) Score {
	return Score(math.Floor(math.Sqrt(float64(max(s.Size, 0)))) * float64(s.AccessCount))
})

// AccessCount ranks solely on the number of accesses.
var AccessCount Policy = PolicyFunc(func(s Stats) Score {
	return Score(s.AccessCount)
})

// Recency ranks the most recently touched entry highest, which makes eviction
// least-recently-used. A newly read file is always the most recent, so it is
// admitted whenever it fits under capacity at all.
var Recency Policy = PolicyFunc(func(s Stats) Score {
	return Score(s.Recency)
})

// Named returns a built-in policy by name.
func Named(name string) (Policy, bool) {
	switch name {
	case "default", "":
		return Default, true
	case "balanced":
		return Balanced, true
	case "access":
		return AccessCount, true
	case "recency":
		return Recency, true
	default:
		return nil, false
	}
}
