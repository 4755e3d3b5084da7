package playlist

import (
	"strconv"
	"strings"
	"sync"
)

// Store owns the ordered plate queue of one session. The position of an entry in the
// sequence is its generation order; there is no other ordering field.
//
// All methods are safe for concurrent use and each call is applied atomically.
type Store struct {
	mu      sync.RWMutex
	plates  []Plate
	version uint64
}

func NewStore() *Store {
	return &Store{}
}

// Append adds plates to the end of the queue in the given order with Count reset to 1.
// Inputs whose ID is empty or already queued are skipped. It returns the number of
// plates appended.
func (s *Store) Append(plates ...Plate) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(s.plates)+len(plates))
	for _, p := range s.plates {
		seen[p.ID] = struct{}{}
	}

	added := 0
	for _, p := range plates {
		if p.ID == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}

		p.Count = 1
		if p.PrintTime < 0 {
			p.PrintTime = 0
		}
		if p.Weight < 0 {
			p.Weight = 0
		}
		s.plates = append(s.plates, p)
		added++
	}
	if added > 0 {
		s.version++
	}
	return added
}

// Remove deletes the plate with the given id. Unknown ids are ignored.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}
	s.plates = append(s.plates[:idx], s.plates[idx+1:]...)
	s.version++
	return true
}

// Reorder moves the plate sourceID to the index currently held by targetID, shifting the
// plates in between by one slot. It is a no-op when the ids are equal or either is unknown.
func (s *Store) Reorder(sourceID, targetID string) bool {
	if sourceID == targetID {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.indexOf(sourceID)
	to := s.indexOf(targetID)
	if from < 0 || to < 0 {
		return false
	}

	moved := s.plates[from]
	if from < to {
		copy(s.plates[from:to], s.plates[from+1:to+1])
	} else {
		copy(s.plates[to+1:from+1], s.plates[to:from])
	}
	s.plates[to] = moved
	s.version++
	return true
}

// SetCount replaces the copy count of a plate. Non-positive values are rejected and the
// stored count is kept. It reports whether the queue changed.
func (s *Store) SetCount(id string, count int) bool {
	if count <= 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 || s.plates[idx].Count == count {
		return false
	}
	s.plates[idx].Count = count
	s.version++
	return true
}

// Clear empties the queue and reports whether it held anything.
func (s *Store) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.plates) == 0 {
		return false
	}
	s.plates = nil
	s.version++
	return true
}

// Snapshot returns a copy of the current queue.
func (s *Store) Snapshot() []Plate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Plate, len(s.plates))
	copy(out, s.plates)
	return out
}

// SnapshotVersion returns a copy of the queue together with the version it reflects.
func (s *Store) SnapshotVersion() ([]Plate, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Plate, len(s.plates))
	copy(out, s.plates)
	return out, s.version
}

// Get returns the plate with the given id.
func (s *Store) Get(id string) (Plate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return Plate{}, false
	}
	return s.plates[idx], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.plates)
}

// Version increases by one with every mutation that changed the queue.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// indexOf must be called with s.mu held.
func (s *Store) indexOf(id string) int {
	for i := range s.plates {
		if s.plates[i].ID == id {
			return i
		}
	}
	return -1
}

// ParseCount converts a raw count field into a copy count.
func ParseCount(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, ErrInvalidCount
	}
	return n, nil
}
