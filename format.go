package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const dueLayout = "Mon 02 Jan 15:04"

// formatDue renders a due time in loc, or "no date".
func formatDue(due *time.Time, loc *time.Location) string {
	if due == nil {
		return "no date"
	}
	if loc == nil {
		loc = time.UTC
	}
	return due.In(loc).Format(dueLayout)
}

func formatTaskLine(t *Task, loc *time.Location) string {
	return fmt.Sprintf("#%d %s (%s)", t.ID, t.Title, formatDue(t.DueAt, loc))
}

// formatTaskList renders a titled list of tasks with relative due times.
func formatTaskList(heading string, tasks []Task, now time.Time, loc *time.Location) string {
	if len(tasks) == 0 {
		return heading + "\nNothing here."
	}
	var sb strings.Builder
	sb.WriteString(heading)
	for i := range tasks {
		t := &tasks[i]
		sb.WriteString("\n• ")
		sb.WriteString(formatTaskLine(t, loc))
		if t.DueAt != nil {
			if t.Overdue(now) {
				sb.WriteString(" overdue")
			} else {
				sb.WriteString(" " + humanize.RelTime(*t.DueAt, now, "ago", "from now"))
			}
		}
	}
	return sb.String()
}

func formatPaperLine(p *Paper) string {
	line := fmt.Sprintf("#%d [%s] %s (%s)", p.ID, p.ScoreLabel(), p.Title, p.Source.Label())
	if p.Summary != "" {
		line += "\n  " + p.Summary
	}
	if link := p.Link(); link != "" {
		line += "\n  " + link
	}
	return line
}

func formatPaperList(heading string, papers []Paper) string {
	if len(papers) == 0 {
		return heading + "\nNo new papers."
	}
	var sb strings.Builder
	sb.WriteString(heading)
	for i := range papers {
		sb.WriteString("\n• ")
		sb.WriteString(formatPaperLine(&papers[i]))
	}
	sb.WriteString("\nMark one read with /read <id>.")
	return sb.String()
}

func formatGoals(goals []Goal) string {
	if len(goals) == 0 {
		return "No goals yet. Add one with /goal <year> <text>."
	}
	var sb strings.Builder
	sb.WriteString("Goals:")
	year := 0
	for _, g := range goals {
		if g.Year != year {
			year = g.Year
			fmt.Fprintf(&sb, "\n%d", year)
		}
		fmt.Fprintf(&sb, "\n• #%d %s", g.ID, g.Title)
	}
	return sb.String()
}

func formatScanResult(r *ScanResult) string {
	return fmt.Sprintf("Scan finished: %d fetched, %d new scored, %d accepted, %d below threshold, %d failed.",
		r.Fetched, r.Scored, r.Accepted, r.Rejected, r.Failed)
}
