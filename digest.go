package assistant

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Digest is the morning summary: tasks due today or earlier and papers
// discovered since the previous digest.
type Digest struct {
	Now      time.Time
	Location *time.Location

	// Since is the lower bound for paper discovery
	Since time.Time

	Tasks  []Task
	Papers []Paper
}

// ComposerOptions configures NewComposer.
type ComposerOptions struct {
	Now      func() time.Time
	Defaults Settings
}

// Composer builds digests from the store. It never writes.
type Composer struct {
	store    *Store
	now      func() time.Time
	defaults Settings
}

// NewComposer creates a digest composer.
func NewComposer(store *Store, opts *ComposerOptions) *Composer {
	if opts == nil {
		opts = &ComposerOptions{}
	}
	c := &Composer{store: store, now: opts.Now, defaults: opts.Defaults}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Compose reads the current digest. Calling it twice without store
// writes in between yields the same digest.
func (c *Composer) Compose(ctx context.Context) (*Digest, error) {
	st, err := c.store.LoadSettings(ctx, c.defaults)
	if err != nil {
		return nil, err
	}
	loc, err := st.Location()
	if err != nil {
		return nil, err
	}
	now := c.now()

	since, err := c.store.StateTime(ctx, StateLastDigest)
	if err != nil {
		return nil, err
	}
	if since.IsZero() {
		since = now.Add(-24 * time.Hour)
	}

	until := endOfDay(now.In(loc))
	tasks, err := c.store.ListTasks(ctx, TaskFilter{Status: TaskPending, DueUntil: &until})
	if err != nil {
		return nil, fmt.Errorf("digest tasks: %w", err)
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].DueAt, tasks[j].DueAt
		if !a.Equal(*b) {
			return a.Before(*b)
		}
		return tasks[i].ID < tasks[j].ID
	})

	unread := false
	papers, err := c.store.ListPapers(ctx, PaperFilter{Read: &unread, Since: &since})
	if err != nil {
		return nil, fmt.Errorf("digest papers: %w", err)
	}

	return &Digest{
		Now:      now,
		Location: loc,
		Since:    since,
		Tasks:    tasks,
		Papers:   papers,
	}, nil
}

// Empty reports whether there is nothing to send.
func (d *Digest) Empty() bool {
	return len(d.Tasks) == 0 && len(d.Papers) == 0
}

// overdue reports tasks due before today, so the marker does not change
// during the day.
func (d *Digest) overdue(t *Task) bool {
	return t.DueAt != nil && t.DueAt.Before(startOfDay(d.Now.In(d.Location)))
}

// Text renders the digest as a chat message.
func (d *Digest) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Good morning! Digest for %s\n", d.Now.In(d.Location).Format("Monday, 02 January 2006"))

	if len(d.Tasks) == 0 {
		sb.WriteString("\nNo tasks due today.")
	} else {
		sb.WriteString("\nTasks due today:")
		for i := range d.Tasks {
			t := &d.Tasks[i]
			sb.WriteString("\n• " + formatTaskLine(t, d.Location))
			if d.overdue(t) {
				sb.WriteString(" overdue")
			}
		}
	}

	if len(d.Papers) == 0 {
		sb.WriteString("\n\nNo new papers.")
	} else {
		fmt.Fprintf(&sb, "\n\nNew papers (%d):", len(d.Papers))
		for i := range d.Papers {
			sb.WriteString("\n• " + formatPaperLine(&d.Papers[i]))
		}
	}
	return sb.String()
}

// Markdown renders the digest for the dashboard preview.
func (d *Digest) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Digest for %s\n\n", d.Now.In(d.Location).Format("Monday, 02 January 2006"))

	sb.WriteString("## Tasks due today\n\n")
	if len(d.Tasks) == 0 {
		sb.WriteString("_No tasks due today._\n")
	}
	for i := range d.Tasks {
		t := &d.Tasks[i]
		fmt.Fprintf(&sb, "- **#%d** %s (%s)", t.ID, markdownEscape(t.Title), formatDue(t.DueAt, d.Location))
		if d.overdue(t) {
			sb.WriteString(" *overdue*")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n## New papers\n\n")
	if len(d.Papers) == 0 {
		sb.WriteString("_No new papers._\n")
	}
	for i := range d.Papers {
		p := &d.Papers[i]
		fmt.Fprintf(&sb, "- **%s** [%s](%s) (%s)\n", p.ScoreLabel(), markdownEscape(p.Title), p.Link(), p.Source.Label())
		if p.Summary != "" {
			fmt.Fprintf(&sb, "  %s\n", markdownEscape(p.Summary))
		}
	}
	return sb.String()
}

var markdownReplacer = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`, "`", "\\`", "<", "&lt;", ">", "&gt;",
)

func markdownEscape(s string) string {
	return markdownReplacer.Replace(s)
}

var (
	markdownOnce     sync.Once
	markdownRenderer goldmark.Markdown
)

// RenderMarkdown converts markdown to HTML. Raw HTML in the input is
// not passed through.
func RenderMarkdown(src string) (string, error) {
	markdownOnce.Do(func() {
		markdownRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
