package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tmc/assistant"
)

// Monday 10 June 2024, 10:00 UTC.
var testNow = time.Date(2024, time.June, 10, 10, 0, 0, 0, time.UTC)

var testSettings = assistant.Settings{
	ThesisTopic:   "SAR despeckling with vision-language models",
	Keywords:      []string{"SAR", "despeckling"},
	PaperScanTime: "07:30",
	DigestTime:    "08:30",
	Timezone:      "UTC",
}

func newTestServer(t *testing.T) (http.Handler, *assistant.Store) {
	t.Helper()
	now := func() time.Time { return testNow }
	store, err := assistant.Open(filepath.Join(t.TempDir(), "web.db"), &assistant.StoreOptions{Now: now})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureSettings(context.Background(), testSettings))

	old := timeNow
	timeNow = now
	t.Cleanup(func() { timeNow = old })

	srv := &server{store: store, defaults: testSettings, log: zap.NewNop()}
	return srv.routes(), store
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func post(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func listTasks(t *testing.T, h http.Handler, status string) []taskJSON {
	t.Helper()
	var tasks []taskJSON
	decodeJSON(t, get(t, h, "/tasks?format=json&status="+status), &tasks)
	return tasks
}

func TestIndex(t *testing.T) {
	h, store := newTestServer(t)
	due := testNow.Add(3 * time.Hour)
	require.NoError(t, store.CreateTask(context.Background(), &assistant.Task{Title: "Advisor meeting", DueAt: &due}))

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "1 open tasks")
	assert.Contains(t, body, "Advisor meeting")
	assert.Contains(t, body, "last scan never")

	assert.Equal(t, http.StatusNotFound, get(t, h, "/nope").Code)
}

func TestAddTask(t *testing.T) {
	h, _ := newTestServer(t)

	t.Run("explicit due", func(t *testing.T) {
		rec := post(t, h, "/tasks", url.Values{"title": {"Submit draft"}, "due": {"2024-06-10T17:00"}})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/tasks", rec.Header().Get("Location"))
	})

	t.Run("time in title", func(t *testing.T) {
		rec := post(t, h, "/tasks", url.Values{"title": {"call mom at 18:30"}})
		require.Equal(t, http.StatusSeeOther, rec.Code)
	})

	t.Run("invalid", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, post(t, h, "/tasks", url.Values{"title": {"  "}}).Code)
		assert.Equal(t, http.StatusBadRequest, post(t, h, "/tasks", url.Values{"title": {"x"}, "due": {"tomorrow"}}).Code)
	})

	tasks := listTasks(t, h, "")
	require.Len(t, tasks, 2)
	assert.Equal(t, "Submit draft", tasks[0].Title)
	assert.Equal(t, "web", tasks[0].Source)
	require.NotNil(t, tasks[0].DueAt)
	assert.True(t, tasks[0].DueAt.Equal(time.Date(2024, time.June, 10, 17, 0, 0, 0, time.UTC)))
	assert.Equal(t, "call mom", tasks[1].Title)
	require.NotNil(t, tasks[1].DueAt)
	assert.True(t, tasks[1].DueAt.Equal(time.Date(2024, time.June, 10, 18, 30, 0, 0, time.UTC)))
}

func TestTaskActions(t *testing.T) {
	h, store := newTestServer(t)
	ctx := context.Background()
	due := time.Date(2024, time.June, 10, 17, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateTask(ctx, &assistant.Task{Title: "Submit draft", DueAt: &due}))
	require.NoError(t, store.CreateTask(ctx, &assistant.Task{Title: "Someday"}))

	require.Equal(t, http.StatusSeeOther, post(t, h, "/tasks/1/snooze", url.Values{"duration": {"2 hours"}}).Code)
	task, err := store.GetTask(ctx, 1)
	require.NoError(t, err)
	assert.True(t, task.DueAt.Equal(due.Add(2*time.Hour)))

	// Undated tasks are snoozed from now.
	require.Equal(t, http.StatusSeeOther, post(t, h, "/tasks/2/snooze", nil).Code)
	task, err = store.GetTask(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, task.DueAt)
	assert.True(t, task.DueAt.Equal(testNow.Add(time.Hour)))

	assert.Equal(t, http.StatusBadRequest, post(t, h, "/tasks/1/snooze", url.Values{"duration": {"soon"}}).Code)

	require.Equal(t, http.StatusSeeOther, post(t, h, "/tasks/1/done", nil).Code)
	done := listTasks(t, h, "done")
	require.Len(t, done, 1)
	assert.Equal(t, "done", done[0].Status)

	require.Equal(t, http.StatusSeeOther, post(t, h, "/tasks/2/delete", nil).Code)
	assert.Len(t, listTasks(t, h, "all"), 1)

	assert.Equal(t, http.StatusNotFound, post(t, h, "/tasks/99/done", nil).Code)
	assert.Equal(t, http.StatusNotFound, post(t, h, "/tasks/2/delete", nil).Code)
	assert.Equal(t, http.StatusNotFound, post(t, h, "/tasks/abc/done", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, get(t, h, "/tasks/1/done").Code)
}

func TestTaskTitlesAreEscaped(t *testing.T) {
	h, store := newTestServer(t)
	require.NoError(t, store.CreateTask(context.Background(), &assistant.Task{Title: "<script>alert(1)</script>"}))

	body := get(t, h, "/tasks").Body.String()
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func seedPaper(t *testing.T, store *assistant.Store) *assistant.Paper {
	t.Helper()
	published := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)
	p := &assistant.Paper{
		Source:      assistant.SourceArxiv,
		ExternalID:  "2406.01234",
		Title:       "Speckle reduction with diffusion",
		Abstract:    "A despeckling network for SAR imagery.",
		Authors:     "Ada Lovelace",
		PublishedAt: &published,
		Score:       82,
		Tags:        "sar, diffusion",
	}
	ok, err := store.InsertPaper(context.Background(), p)
	require.NoError(t, err)
	require.True(t, ok)
	return p
}

func TestPapers(t *testing.T) {
	h, store := newTestServer(t)
	seedPaper(t, store)

	var papers []paperJSON
	decodeJSON(t, get(t, h, "/papers?format=json&status=unread"), &papers)
	require.Len(t, papers, 1)
	assert.Equal(t, "https://arxiv.org/abs/2406.01234", papers[0].URL)
	assert.Equal(t, "https://arxiv.org/pdf/2406.01234.pdf", papers[0].PDFURL)
	assert.Equal(t, []string{"sar", "diffusion"}, papers[0].Tags)

	decodeJSON(t, get(t, h, "/papers?format=json&q=despeckling"), &papers)
	assert.Len(t, papers, 1)
	decodeJSON(t, get(t, h, "/papers?format=json&q=astronomy"), &papers)
	assert.Empty(t, papers)

	require.Equal(t, http.StatusSeeOther, post(t, h, "/papers/1/read", nil).Code)
	decodeJSON(t, get(t, h, "/papers?format=json&status=unread"), &papers)
	assert.Empty(t, papers)
	decodeJSON(t, get(t, h, "/papers?format=json&status=read"), &papers)
	require.Len(t, papers, 1)
	assert.True(t, papers[0].Read)

	assert.Equal(t, http.StatusNotFound, post(t, h, "/papers/9/read", nil).Code)

	rec := get(t, h, "/papers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "82/100")
	assert.Contains(t, rec.Body.String(), `href="https://arxiv.org/pdf/2406.01234.pdf"`)
}

func TestPaperExport(t *testing.T) {
	h, store := newTestServer(t)
	seedPaper(t, store)

	rec := get(t, h, "/papers/1/bibtex")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-bibtex; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="lovelace2024speck.bib"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "@misc{lovelace2024speck,\n"))

	rec = get(t, h, "/papers/1/ris")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="lovelace2024speck.ris"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "TY  - UNPB\n"))

	assert.Equal(t, http.StatusNotFound, get(t, h, "/papers/2/ris").Code)
}

func TestGoals(t *testing.T) {
	h, _ := newTestServer(t)

	require.Equal(t, http.StatusSeeOther, post(t, h, "/goals", url.Values{"year": {"2025"}, "title": {"Publish two papers"}}).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, "/goals", url.Values{"year": {"soon"}, "title": {"x"}}).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, "/goals", url.Values{"year": {"2025"}, "title": {" "}}).Code)

	var goals []assistant.Goal
	decodeJSON(t, get(t, h, "/goals?format=json"), &goals)
	require.Len(t, goals, 1)
	assert.Equal(t, 2025, goals[0].Year)
	assert.Equal(t, "Publish two papers", goals[0].Title)

	rec := get(t, h, "/goals")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="2024"`)

	require.Equal(t, http.StatusSeeOther, post(t, h, "/goals/1/delete", nil).Code)
	assert.Equal(t, http.StatusNotFound, post(t, h, "/goals/1/delete", nil).Code)
}

func TestSettings(t *testing.T) {
	h, store := newTestServer(t)
	ctx := context.Background()

	rec := get(t, h, "/settings")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="SAR, despeckling"`)

	form := url.Values{
		"thesis_topic":        {"Radar foundation models"},
		"paper_keywords":      {"SAR, radar ,, foundation model"},
		"paper_scan_time":     {"06:00"},
		"morning_digest_time": {"07:15"},
		"timezone":            {"Europe/Istanbul"},
	}
	rec = post(t, h, "/settings", form)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	st, err := store.LoadSettings(ctx, testSettings)
	require.NoError(t, err)
	assert.Equal(t, "Radar foundation models", st.ThesisTopic)
	assert.Equal(t, []string{"SAR", "radar", "foundation model"}, st.Keywords)
	assert.Equal(t, "07:15", st.DigestTime)
	assert.Equal(t, "Europe/Istanbul", st.Timezone)

	form.Set("timezone", "Mars/Olympus")
	rec = post(t, h, "/settings", form)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "config: timezone")

	st, err = store.LoadSettings(ctx, testSettings)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Istanbul", st.Timezone)
}

func TestDigestPage(t *testing.T) {
	h, store := newTestServer(t)
	due := testNow.Add(2 * time.Hour)
	require.NoError(t, store.CreateTask(context.Background(), &assistant.Task{Title: "Advisor meeting", DueAt: &due}))

	rec := get(t, h, "/digest")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<h1>Digest for Monday, 10 June 2024</h1>")
	assert.Contains(t, body, "Advisor meeting")

	var out map[string]string
	decodeJSON(t, get(t, h, "/digest?format=json"), &out)
	assert.True(t, strings.HasPrefix(out["text"], "Good morning! Digest for Monday, 10 June 2024"))
	assert.Contains(t, out["markdown"], "## Tasks due today")
}

func TestStats(t *testing.T) {
	h, store := newTestServer(t)
	require.NoError(t, store.CreateTask(context.Background(), &assistant.Task{Title: "a"}))
	seedPaper(t, store)

	var out map[string]any
	decodeJSON(t, get(t, h, "/stats?format=json"), &out)
	assert.EqualValues(t, 1, out["pending_tasks"])
	assert.EqualValues(t, 1, out["total_papers"])
	assert.EqualValues(t, 1, out["unread_papers"])
	assert.EqualValues(t, 0, out["reading_streak"])

	rec := get(t, h, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Full-text search")
}
