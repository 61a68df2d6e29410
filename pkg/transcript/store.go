// Package transcript holds the timestamped transcript of the active video and
// answers the correlation queries used to highlight search hits.
package transcript

import (
	"math"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/otherjamesbrown/vidtwin-cli/pkg/timecode"
)

// Segment is one timestamped unit of transcript text.
type Segment struct {
	StartSeconds float64 `json:"start" yaml:"start"`
	Duration     float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
	Text         string  `json:"text" yaml:"text"`
}

// Timestamp returns the formatted start time shown next to the segment.
func (s Segment) Timestamp() string {
	return timecode.Format(s.StartSeconds)
}

// Store is the ordered segment list for one video plus its highlight state.
// It is replaced wholesale when a new transcript loads.
type Store struct {
	mu          sync.RWMutex
	segments    []Segment
	bySecond    map[int64][]int
	highlighted map[int]struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		bySecond:    map[int64][]int{},
		highlighted: map[int]struct{}{},
	}
}

// Replace swaps in a new segment list and drops all highlight state.
// The slice is copied.
func (s *Store) Replace(segments []Segment) {
	segs := make([]Segment, len(segments))
	copy(segs, segments)

	index := make(map[int64][]int, len(segs))
	for i, seg := range segs {
		k := secondKey(seg.StartSeconds)
		index[k] = append(index[k], i)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = segs
	s.bySecond = index
	s.highlighted = map[int]struct{}{}
}

// Len returns the number of segments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments)
}

// Segments returns a copy of the segment list.
func (s *Store) Segments() []Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

// Segment returns the segment at index i.
func (s *Store) Segment(i int) (Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.segments) {
		return Segment{}, false
	}
	return s.segments[i], true
}

// FindByTimestampText returns the indices of every segment whose formatted
// start time equals formatted. Segments that format identically share a
// bucket and are all returned.
func (s *Store) FindByTimestampText(formatted string) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []int
	for i, seg := range s.segments {
		if timecode.Format(seg.StartSeconds) == formatted {
			out = append(out, i)
		}
	}
	return out
}

// FindBySecond returns the indices of every segment starting within the same
// whole second as seconds. This gives the same buckets as
// FindByTimestampText(timecode.Format(seconds)) since Format truncates.
func (s *Store) FindBySecond(seconds float64) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.bySecond[secondKey(seconds)]
	if len(idx) == 0 {
		return nil
	}
	out := make([]int, len(idx))
	copy(out, idx)
	return out
}

// SetHighlights replaces the highlighted set. Out-of-range indices are ignored.
func (s *Store) SetHighlights(indices []int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.highlighted = make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(s.segments) {
			s.highlighted[i] = struct{}{}
		}
	}
}

// ClearHighlights removes every highlight.
func (s *Store) ClearHighlights() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.highlighted = map[int]struct{}{}
}

// Highlighted returns highlighted indices in document order.
func (s *Store) Highlighted() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]int, 0, len(s.highlighted))
	for i := range s.highlighted {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// IsHighlighted reports whether segment i is highlighted.
func (s *Store) IsHighlighted(i int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.highlighted[i]
	return ok
}

// Filter returns indices of segments whose text contains phrase, ignoring
// case and Unicode normalization differences. An empty phrase matches all.
func (s *Store) Filter(phrase string) []int {
	needle := fold(strings.TrimSpace(phrase))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]int, 0, len(s.segments))
	for i, seg := range s.segments {
		if needle == "" || strings.Contains(fold(seg.Text), needle) {
			out = append(out, i)
		}
	}
	return out
}

func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

func secondKey(seconds float64) int64 {
	if math.IsNaN(seconds) || seconds < 0 {
		return 0
	}
	return int64(math.Floor(seconds))
}
