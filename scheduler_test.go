package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestCronSpec(t *testing.T) {
	spec, err := cronSpec("07:05", "Europe/Istanbul")
	require.NoError(t, err)
	assert.Equal(t, "CRON_TZ=Europe/Istanbul 5 7 * * *", spec)

	_, err = cronSpec("25:00", "UTC")
	assert.Error(t, err)
}

func noScan(context.Context) (*ScanResult, error) {
	return &ScanResult{}, nil
}

func TestSchedulerRun(t *testing.T) {
	clock := newTestClock(testNow)
	store := newTestStore(t, clock)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewScheduler(store, &SchedulerOptions{Now: clock.Now, Defaults: testSettings, Scan: noScan})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// scan, digest and the reminder tick
	require.Eventually(t, func() bool { return len(s.cron.Entries()) == 3 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSchedulerReload(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(testNow)
	store := newTestStore(t, clock)

	s := NewScheduler(store, &SchedulerOptions{Now: clock.Now, Defaults: testSettings, Scan: noScan})
	require.NoError(t, s.Reload(ctx))

	scan, digest := s.entries[jobScan], s.entries[jobDigest]
	assert.Equal(t, "CRON_TZ=UTC 30 7 * * *", scan.spec)
	assert.Equal(t, "CRON_TZ=UTC 30 8 * * *", digest.spec)
	assert.Len(t, s.cron.Entries(), 2)

	// Nothing changed: nothing is re-registered.
	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, digest.id, s.entries[jobDigest].id)

	st := testSettings
	st.DigestTime = "09:15"
	st.Timezone = "Europe/Istanbul"
	require.NoError(t, store.SaveSettings(ctx, st))
	require.NoError(t, s.Reload(ctx))

	assert.Equal(t, "CRON_TZ=Europe/Istanbul 15 9 * * *", s.entries[jobDigest].spec)
	assert.NotEqual(t, digest.id, s.entries[jobDigest].id)
	assert.Equal(t, "CRON_TZ=Europe/Istanbul 30 7 * * *", s.entries[jobScan].spec)
	assert.Len(t, s.cron.Entries(), 2)
}

func TestSchedulerWithoutScan(t *testing.T) {
	clock := newTestClock(testNow)
	store := newTestStore(t, clock)

	s := NewScheduler(store, &SchedulerOptions{Now: clock.Now, Defaults: testSettings})
	require.NoError(t, s.Reload(context.Background()))
	assert.NotContains(t, s.entries, jobScan)
	assert.NoError(t, s.RunScan(context.Background()))
}

func TestSendDigest(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(digestNow)
	store := newTestStore(t, clock)
	mustCreateTask(t, store, "Advisor meeting", timePtr(digestNow.Add(time.Hour)))

	t.Run("delivery failure keeps last_digest", func(t *testing.T) {
		n := &fakeNotifier{fail: errors.New("network down")}
		s := NewScheduler(store, &SchedulerOptions{Now: clock.Now, Defaults: testSettings, Notifier: n})

		err := s.SendDigest(ctx)
		var svc *ExternalServiceError
		require.ErrorAs(t, err, &svc)
		assert.Equal(t, "telegram", svc.Service)

		last, err := store.StateTime(ctx, StateLastDigest)
		require.NoError(t, err)
		assert.True(t, last.IsZero())
	})

	t.Run("delivered", func(t *testing.T) {
		n := &fakeNotifier{}
		s := NewScheduler(store, &SchedulerOptions{Now: clock.Now, Defaults: testSettings, Notifier: n})
		require.NoError(t, s.SendDigest(ctx))

		sent := n.sent()
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0], "#1 Advisor meeting (Mon 10 Jun 09:30)")

		last, err := store.StateTime(ctx, StateLastDigest)
		require.NoError(t, err)
		assert.True(t, last.Equal(digestNow))
	})
}

func TestSendReminders(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(testNow)
	store := newTestStore(t, clock)

	due := mustCreateTask(t, store, "Submit draft", timePtr(testNow.Add(-time.Hour)))
	later := mustCreateTask(t, store, "Call advisor", timePtr(testNow.Add(time.Hour)))
	mustCreateTask(t, store, "Someday", nil)

	r := &fakeReminder{}
	s := NewScheduler(store, &SchedulerOptions{Now: clock.Now, Defaults: testSettings, Notifier: r})

	require.NoError(t, s.SendReminders(ctx))
	assert.Equal(t, []int64{due.ID}, r.reminded)
	assert.Equal(t, []string{"Reminder: #1 Submit draft (Mon 10 Jun 09:00)"}, r.sent())

	// Each task is reminded once.
	require.NoError(t, s.SendReminders(ctx))
	assert.Len(t, r.sent(), 1)

	clock.Advance(2 * time.Hour)
	require.NoError(t, s.SendReminders(ctx))
	assert.Equal(t, []int64{due.ID, later.ID}, r.reminded)
}

func TestSendRemindersRetriesFailedDelivery(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(testNow)
	store := newTestStore(t, clock)
	mustCreateTask(t, store, "Submit draft", timePtr(testNow.Add(-time.Hour)))

	n := &fakeNotifier{fail: errors.New("flood wait")}
	s := NewScheduler(store, &SchedulerOptions{Now: clock.Now, Defaults: testSettings, Notifier: n})
	require.NoError(t, s.SendReminders(ctx))
	assert.Empty(t, n.sent())

	n.mu.Lock()
	n.fail = nil
	n.mu.Unlock()

	require.NoError(t, s.SendReminders(ctx))
	assert.Equal(t, []string{"Reminder: #1 Submit draft (Mon 10 Jun 09:00)"}, n.sent())
}

func TestRunScan(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(testNow)
	store := newTestStore(t, clock)

	result := &ScanResult{}
	var scanErr error
	n := &fakeNotifier{}
	s := NewScheduler(store, &SchedulerOptions{
		Now:      clock.Now,
		Defaults: testSettings,
		Notifier: n,
		Scan: func(context.Context) (*ScanResult, error) {
			return result, scanErr
		},
	})

	require.NoError(t, s.RunScan(ctx))
	assert.Empty(t, n.sent(), "no message when nothing was accepted")

	*result = ScanResult{Fetched: 40, Scored: 12, Accepted: 3, Rejected: 8, Failed: 1}
	require.NoError(t, s.RunScan(ctx))
	assert.Equal(t, []string{"Scan finished: 40 fetched, 12 new scored, 3 accepted, 8 below threshold, 1 failed."}, n.sent())

	scanErr = errors.New("no sources")
	assert.ErrorContains(t, s.RunScan(ctx), "paper scan")
}
