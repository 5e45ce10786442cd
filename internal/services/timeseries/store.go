package timeseries

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"FinSeries/internal/domain/models"
)

// Store keeps closed windows per (series, granularity), ordered by start
// time. Slices only ever grow at the tail; readers get copies.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[models.Granularity][]models.AggregatedWindow
}

func NewStore() *Store {
	return &Store{data: make(map[string]map[models.Granularity][]models.AggregatedWindow)}
}

// Register allocates empty sequences for every granularity of a series.
func (s *Store) Register(seriesID string, levels []models.Granularity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(map[models.Granularity][]models.AggregatedWindow, len(levels))
	for _, g := range levels {
		m[g] = nil
	}
	s.data[seriesID] = m
}

// Drop discards every window of a series.
func (s *Store) Drop(seriesID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, seriesID)
}

// Append pushes windows to the tail of their sequences. Each window must
// start at or after the end of the last stored one.
func (s *Store) Append(ws ...models.AggregatedWindow) error {
	if len(ws) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range ws {
		m, ok := s.data[w.SeriesID]
		if !ok {
			return fmt.Errorf("%w: %s", models.ErrSeriesNotFound, w.SeriesID)
		}
		seq, ok := m[w.Granularity]
		if !ok {
			return fmt.Errorf("%w: %s not configured for %s", models.ErrUnsupportedGranularity, w.Granularity, w.SeriesID)
		}
		if n := len(seq); n > 0 && w.StartTime.Before(seq[n-1].EndTime) {
			return fmt.Errorf("append %s/%s: window %s overlaps stored tail %s",
				w.SeriesID, w.Granularity, w.StartTime.Format(time.RFC3339), seq[n-1].EndTime.Format(time.RFC3339))
		}
		m[w.Granularity] = append(seq, w)
	}
	return nil
}

func (s *Store) sequence(seriesID string, g models.Granularity) ([]models.AggregatedWindow, error) {
	m, ok := s.data[seriesID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSeriesNotFound, seriesID)
	}
	seq, ok := m[g]
	if !ok {
		return nil, fmt.Errorf("%w: %s not configured for %s", models.ErrUnsupportedGranularity, g, seriesID)
	}
	return seq, nil
}

// QueryRange returns, in ascending order, the closed windows intersecting
// [start, end).
func (s *Store) QueryRange(seriesID string, g models.Granularity, start, end time.Time) ([]models.AggregatedWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq, err := s.sequence(seriesID, g)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start %s is not before end %s", models.ErrInvalidRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	// EndTime is strictly increasing along the sequence.
	lo := sort.Search(len(seq), func(i int) bool { return seq[i].EndTime.After(start) })
	hi := lo + sort.Search(len(seq)-lo, func(i int) bool { return !seq[lo+i].StartTime.Before(end) })
	out := make([]models.AggregatedWindow, hi-lo)
	copy(out, seq[lo:hi])
	return out, nil
}

// Latest returns the most recent closed window.
func (s *Store) Latest(seriesID string, g models.Granularity) (models.AggregatedWindow, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq, err := s.sequence(seriesID, g)
	if err != nil {
		return models.AggregatedWindow{}, false, err
	}
	if len(seq) == 0 {
		return models.AggregatedWindow{}, false, nil
	}
	return seq[len(seq)-1], true, nil
}

// Len returns the number of closed windows stored.
func (s *Store) Len(seriesID string, g models.Granularity) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[seriesID][g])
}
