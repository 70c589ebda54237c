package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	summaryTaskLimit  = 6
	summaryPaperLimit = 6
)

// Summary is the at-a-glance report behind /summary.
type Summary struct {
	Now      time.Time
	Location *time.Location

	Pending int64
	Done    int64

	// Today holds tasks due today; Upcoming is used when it is empty
	Today    []Task
	Upcoming []Task

	RecentPapers []Paper
	TotalPapers  int64
	Streak       int
}

// BuildSummary reads the summary report from the store.
func BuildSummary(ctx context.Context, s *Store, now time.Time, loc *time.Location) (*Summary, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	sum := &Summary{Now: now, Location: loc}

	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	sum.Pending, sum.Done, sum.TotalPapers = stats.PendingTasks, stats.DoneTasks, stats.TotalPapers

	from, until := startOfDay(local), endOfDay(local)
	sum.Today, err = s.ListTasks(ctx, TaskFilter{Status: TaskPending, DueFrom: &from, DueUntil: &until, Limit: summaryTaskLimit})
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	if len(sum.Today) == 0 {
		sum.Upcoming, err = s.PendingTasks(ctx, summaryTaskLimit)
		if err != nil {
			return nil, fmt.Errorf("summary: %w", err)
		}
	}

	since := now.Add(-24 * time.Hour)
	sum.RecentPapers, err = s.ListPapers(ctx, PaperFilter{Since: &since, Limit: summaryPaperLimit})
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}

	reads, err := s.ReadTimes(ctx)
	if err != nil {
		return nil, err
	}
	sum.Streak = ReadingStreak(reads, now, loc)
	return sum, nil
}

// Text renders the summary as a chat message.
func (sum *Summary) Text() string {
	var sb strings.Builder
	sb.WriteString("Summary\n")
	fmt.Fprintf(&sb, "Open tasks: %d | Done: %d\n", sum.Pending, sum.Done)
	switch {
	case len(sum.Today) > 0:
		sb.WriteString(formatTaskList("Today:", sum.Today, sum.Now, sum.Location))
	case len(sum.Upcoming) > 0:
		sb.WriteString(formatTaskList("Upcoming:", sum.Upcoming, sum.Now, sum.Location))
	default:
		sb.WriteString("No open tasks.")
	}
	sb.WriteString("\n")
	if len(sum.RecentPapers) > 0 {
		sb.WriteString("Papers from the last 24 hours:")
		for _, p := range sum.RecentPapers {
			fmt.Fprintf(&sb, "\n• %s (%s)", p.Title, p.ScoreLabel())
		}
	} else {
		sb.WriteString("No papers in the last 24 hours.")
	}
	fmt.Fprintf(&sb, "\nTotal papers: %d", sum.TotalPapers)
	if sum.Streak > 0 {
		fmt.Fprintf(&sb, "\nReading streak: %d day(s)", sum.Streak)
	}
	return sb.String()
}
