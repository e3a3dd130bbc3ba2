// Package codeset loads the OrphaCodes a run retains.
//
// A Set keeps insertion order so every output derived from it (merged rows,
// printed listings) is deterministic for a given input.
package codeset

// Set is an ordered set of disease codes. The zero value is not usable; use New.
type Set struct {
	codes []string
	index map[string]struct{}
}

// New creates a set holding the given codes in order, dropping duplicates.
func New(codes ...string) *Set {
	s := &Set{index: make(map[string]struct{}, len(codes))}
	for _, c := range codes {
		s.Add(c)
	}
	return s
}

// Add inserts a code. It reports false when the code was already present.
func (s *Set) Add(code string) bool {
	if _, ok := s.index[code]; ok {
		return false
	}
	s.index[code] = struct{}{}
	s.codes = append(s.codes, code)
	return true
}

// Contains reports whether code is in the set. A nil set contains nothing.
func (s *Set) Contains(code string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[code]
	return ok
}

// Len returns the number of codes.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.codes)
}

// Codes returns a copy of the codes in insertion order.
func (s *Set) Codes() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.codes))
	copy(out, s.codes)
	return out
}
