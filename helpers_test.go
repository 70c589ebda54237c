package assistant

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
)

// Monday 10 June 2024, 10:00 UTC.
var testNow = time.Date(2024, time.June, 10, 10, 0, 0, 0, time.UTC)

var testSettings = Settings{
	ThesisTopic:   "SAR despeckling with vision-language models",
	Keywords:      []string{"SAR", "synthetic aperture radar", "despeckling"},
	PaperScanTime: "07:30",
	DigestTime:    "08:30",
	Timezone:      "UTC",
}

// testClock is a settable clock shared by the store and the component
// under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newTestStore opens a seeded store in a temporary directory.
func newTestStore(t *testing.T, clock *testClock) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), &StoreOptions{Now: clock.Now})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureSettings(context.Background(), testSettings))
	return s
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func mustCreateTask(t *testing.T, s *Store, title string, due *time.Time) *Task {
	t.Helper()
	task := &Task{Title: title, DueAt: due, Source: "test"}
	require.NoError(t, s.CreateTask(context.Background(), task))
	return task
}

func mustInsertPaper(t *testing.T, s *Store, p *Paper) *Paper {
	t.Helper()
	if p.Source == "" {
		p.Source = SourceArxiv
	}
	ok, err := s.InsertPaper(context.Background(), p)
	require.NoError(t, err)
	require.True(t, ok, "paper %s/%s already stored", p.Source, p.ExternalID)
	return p
}

// fakeNotifier records delivered messages. When fail is set every call
// returns it.
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	fail     error
}

func (n *fakeNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.messages = append(n.messages, text)
	return nil
}

func (n *fakeNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// fakeReminder is a notifier that also implements TaskReminder.
type fakeReminder struct {
	fakeNotifier
	reminded []int64
}

func (r *fakeReminder) Remind(_ context.Context, t *Task, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.reminded = append(r.reminded, t.ID)
	r.messages = append(r.messages, text)
	return nil
}
