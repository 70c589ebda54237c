package assistant

import (
	"context"
	"fmt"
	"time"
)

// ReadingStreak counts consecutive local days, ending today, with at least
// one paper marked read.
func ReadingStreak(reads []time.Time, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	days := make(map[string]bool, len(reads))
	for _, t := range reads {
		days[t.In(loc).Format(time.DateOnly)] = true
	}

	streak := 0
	day := startOfDay(now.In(loc))
	for days[day.Format(time.DateOnly)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// Stats is the dashboard and /stats view of the store.
type Stats struct {
	*StoreStats
	Streak   int
	LastScan time.Time
	HasFTS   bool
}

// CollectStats gathers row counts, the reading streak and the last scan time.
func (s *Store) CollectStats(ctx context.Context, now time.Time, loc *time.Location) (*Stats, error) {
	counts, err := s.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	reads, err := s.ReadTimes(ctx)
	if err != nil {
		return nil, err
	}
	lastScan, err := s.StateTime(ctx, StateLastScan)
	if err != nil {
		return nil, err
	}
	return &Stats{
		StoreStats: counts,
		Streak:     ReadingStreak(reads, now, loc),
		LastScan:   lastScan,
		HasFTS:     s.HasFTS(),
	}, nil
}
