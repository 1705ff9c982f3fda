package memory

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"tracker/pattern"
)

// Record is the opaque trace left by one training call. Nothing reads its
// fields back except for inspection.
type Record struct {
	Cycle     uint64 `json:"cycle"`
	Iteration int    `json:"iteration"`
}

// Store is a sum-keyed associative memory. Two patterns with the same sum of
// positive ids land on the same key and cannot be told apart afterwards.
type Store struct {
	mu sync.RWMutex

	records map[int][]Record

	totalRecords int
	totalPruned  int
}

type StoreStats struct {
	Keys         int `json:"keys"`
	Records      int `json:"records"`
	TotalPruned  int `json:"total_pruned"`
	CollidedKeys int `json:"collided_keys"`
}

func NewStore() *Store {
	return &Store{
		records: make(map[int][]Record),
	}
}

// Train stores rec under the pattern's sum. Non-positive sums are never
// stored; the return value reports whether anything was written.
func (s *Store) Train(p pattern.Pattern, rec Record) bool {
	sum := p.Sum()
	if sum <= 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[sum] = append(s.records[sum], rec)
	s.totalRecords++
	return true
}

// Lookup returns the number of records stored under the pattern's sum scaled
// by contextMultiplier, or 0 when the sum is unknown. A positive result is a
// recognition event.
func (s *Store) Lookup(p pattern.Pattern, contextMultiplier int) int {
	return s.LookupSum(p.Sum(), contextMultiplier)
}

func (s *Store) LookupSum(sum int, contextMultiplier int) int {
	if sum <= 0 {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, ok := s.records[sum]
	if !ok {
		return 0
	}
	return len(recs) * contextMultiplier
}

// Prune drops floor(fraction*keys) keys picked uniformly at random.
func (s *Store) Prune(fraction float64, rng *rand.Rand) int {
	if fraction <= 0 {
		return 0
	}
	if fraction > 1 {
		fraction = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := int(math.Floor(fraction * float64(len(s.records))))
	if n == 0 {
		return 0
	}

	keys := s.sortedKeysLocked()
	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	for _, k := range keys[:n] {
		s.totalRecords -= len(s.records[k])
		delete(s.records, k)
	}
	s.totalPruned += n
	return n
}

func (s *Store) HasKnownPatterns() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k := range s.records {
		if k > 0 {
			return true
		}
	}
	return false
}

// Keys returns known sums in ascending order.
func (s *Store) Keys() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedKeysLocked()
}

func (s *Store) KeyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) RecordCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalRecords
}

func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	collided := 0
	for _, recs := range s.records {
		if len(recs) > 1 {
			collided++
		}
	}
	return StoreStats{
		Keys:         len(s.records),
		Records:      s.totalRecords,
		TotalPruned:  s.totalPruned,
		CollidedKeys: collided,
	}
}

func (s *Store) sortedKeysLocked() []int {
	keys := make([]int, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
