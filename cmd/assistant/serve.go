package main

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/tmc/assistant"
)

var timeNow = time.Now

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"truncate": func(s string, n int) string {
		r := []rune(s)
		if len(r) <= n {
			return s
		}
		return string(r[:n]) + "..."
	},
	"due": func(t *time.Time, loc *time.Location) string {
		if t == nil {
			return "no date"
		}
		return t.In(loc).Format("Mon 02 Jan 2006 15:04")
	},
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return humanize.Time(t)
	},
	"join": strings.Join,
	// taskView pairs a task with the page's clock and location.
	"taskView": func(page map[string]any, t assistant.Task) map[string]any {
		return map[string]any{"Task": &t, "Now": page["Now"], "Location": page["Location"]}
	},
}).Parse(`
{{define "head"}}
<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>{{.Title}} - Assistant</title>
	<style>
		* { box-sizing: border-box; }
		body { font-family: system-ui, sans-serif; max-width: 900px; margin: 0 auto; padding: 1rem; line-height: 1.5; }
		a { color: #0066cc; }
		.nav { margin-bottom: 1rem; }
		.item { border-bottom: 1px solid #eee; padding: 0.75rem 0; }
		.item-id { font-family: monospace; color: #666; }
		.item-title { font-weight: 600; }
		.meta { font-size: 0.9rem; color: #666; }
		.overdue { color: #c0392b; }
		.badge { display: inline-block; background: #e0e0e0; padding: 0.1rem 0.4rem; border-radius: 3px; font-size: 0.8rem; margin-right: 0.25rem; }
		.badge-score { background: #d4edda; }
		.badge-read { background: #cce5ff; }
		.abstract { margin: 0.5rem 0; color: #333; }
		form.inline { display: inline; }
		.btn { display: inline-block; padding: 0.2rem 0.5rem; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; border: none; cursor: pointer; font-size: 0.8rem; }
		.btn-secondary { background: #6c757d; }
		.btn-danger { background: #c0392b; }
		.add-form input[type="text"] { padding: 0.4rem; width: 320px; }
		.error { background: #fdecea; color: #c0392b; padding: 0.5rem; border-radius: 4px; }
		label { display: block; margin-top: 0.5rem; }
		.stat { display: inline-block; background: #f8f9fa; padding: 0.5rem 1rem; border-radius: 4px; margin: 0.25rem; }
	</style>
</head>
<body>
<div class="nav"><a href="/">Home</a> | <a href="/tasks">Tasks</a> | <a href="/papers">Papers</a> | <a href="/goals">Goals</a> | <a href="/digest">Digest</a> | <a href="/stats">Stats</a> | <a href="/settings">Settings</a></div>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{end}}

{{define "foot"}}
</body>
</html>
{{end}}

{{define "task"}}
<div class="item">
	<span class="item-id">#{{.Task.ID}}</span>
	<span class="item-title">{{.Task.Title}}</span>
	<div class="meta{{if .Task.Overdue $.Now}} overdue{{end}}">{{due .Task.DueAt $.Location}} · {{.Task.Status}}{{if .Task.Source}} · {{.Task.Source}}{{end}}</div>
	{{if eq .Task.Status "pending"}}
	<form class="inline" method="post" action="/tasks/{{.Task.ID}}/done"><button class="btn">Done</button></form>
	<form class="inline" method="post" action="/tasks/{{.Task.ID}}/snooze"><input type="hidden" name="duration" value="1 hour"><button class="btn btn-secondary">Snooze 1h</button></form>
	{{end}}
	<form class="inline" method="post" action="/tasks/{{.Task.ID}}/delete"><button class="btn btn-danger">Delete</button></form>
</div>
{{end}}

{{define "paper"}}
<div class="item">
	<span class="item-id">#{{.ID}}</span>
	<span class="badge badge-score">{{.ScoreLabel}}</span>
	{{if .Read}}<span class="badge badge-read">read</span>{{end}}
	<div class="item-title"><a href="{{.Link}}">{{.Title}}</a></div>
	<div class="meta">{{truncate .Authors 120}} · {{.Source.Label}}{{with .TagList}} · {{join . ", "}}{{end}}</div>
	{{if .Summary}}<div class="abstract">{{.Summary}}</div>{{end}}
	{{if not .Read}}<form class="inline" method="post" action="/papers/{{.ID}}/read"><button class="btn">Mark read</button></form>{{end}}
	{{with .PDFURL}}<a class="btn btn-secondary" href="{{.}}">PDF</a>{{end}}
	<a class="btn btn-secondary" href="/papers/{{.ID}}/bibtex">BibTeX</a>
	<a class="btn btn-secondary" href="/papers/{{.ID}}/ris">RIS</a>
</div>
{{end}}

{{define "index"}}
{{template "head" .}}
<h1>Assistant</h1>
<p>
	<span class="stat">{{.Stats.PendingTasks}} open tasks</span>
	<span class="stat">{{.Stats.UnreadPapers}} unread papers</span>
	<span class="stat">{{.Stats.Streak}} day reading streak</span>
	<span class="stat">last scan {{ago .Stats.LastScan}}</span>
</p>
<h2>Due today</h2>
{{range .Tasks}}{{template "task" (taskView $ .)}}{{else}}<p>Nothing due today.</p>{{end}}
<h2>Latest papers</h2>
{{range .Papers}}{{template "paper" .}}{{else}}<p>No papers yet. Run <code>assistant scan</code>.</p>{{end}}
{{template "foot" .}}
{{end}}

{{define "tasks"}}
{{template "head" .}}
<h1>Tasks</h1>
<form class="add-form" method="post" action="/tasks">
	<input type="text" name="title" placeholder="Submit draft to advisor friday 10:00" required>
	<input type="datetime-local" name="due">
	<button class="btn" type="submit">Add</button>
</form>
<p><a href="/tasks">Pending</a> | <a href="/tasks?status=done">Done</a> | <a href="/tasks?status=all">All</a></p>
{{range .Tasks}}{{template "task" (taskView $ .)}}{{else}}<p>No tasks.</p>{{end}}
{{template "foot" .}}
{{end}}

{{define "papers"}}
{{template "head" .}}
<h1>Papers</h1>
<form method="get" action="/papers">
	<input type="text" name="q" placeholder="Search papers..." value="{{.Query}}">
	<button class="btn" type="submit">Search</button>
</form>
<p><a href="/papers">All</a> | <a href="/papers?status=unread">Unread</a> | <a href="/papers?status=read">Read</a></p>
{{range .Papers}}{{template "paper" .}}{{else}}<p>No papers.</p>{{end}}
{{template "foot" .}}
{{end}}

{{define "goals"}}
{{template "head" .}}
<h1>Goals</h1>
<form class="add-form" method="post" action="/goals">
	<input type="number" name="year" value="{{.Year}}" min="1970" max="9999">
	<input type="text" name="title" placeholder="Publish one conference paper" required>
	<button class="btn" type="submit">Add</button>
</form>
{{range .Goals}}
<div class="item">
	<span class="item-id">{{.Year}}</span> <span class="item-title">{{.Title}}</span>
	<form class="inline" method="post" action="/goals/{{.ID}}/delete"><button class="btn btn-danger">Delete</button></form>
</div>
{{else}}<p>No goals yet.</p>{{end}}
{{template "foot" .}}
{{end}}

{{define "settings"}}
{{template "head" .}}
<h1>Settings</h1>
<form method="post" action="/settings">
	<label>Thesis topic <input type="text" name="thesis_topic" value="{{.Settings.ThesisTopic}}"></label>
	<label>Keywords (comma-separated) <input type="text" name="paper_keywords" value="{{.Settings.KeywordString}}"></label>
	<label>Paper scan time <input type="text" name="paper_scan_time" value="{{.Settings.PaperScanTime}}"></label>
	<label>Morning digest time <input type="text" name="morning_digest_time" value="{{.Settings.DigestTime}}"></label>
	<label>Time zone <input type="text" name="timezone" value="{{.Settings.Timezone}}"></label>
	<p><button class="btn" type="submit">Save</button></p>
</form>
{{template "foot" .}}
{{end}}

{{define "digest"}}
{{template "head" .}}
{{.Body}}
{{template "foot" .}}
{{end}}

{{define "stats"}}
{{template "head" .}}
<h1>Stats</h1>
<table>
	<tr><td>Pending tasks</td><td>{{.Stats.PendingTasks}}</td></tr>
	<tr><td>Done tasks</td><td>{{.Stats.DoneTasks}}</td></tr>
	<tr><td>Papers</td><td>{{.Stats.TotalPapers}}</td></tr>
	<tr><td>Unread papers</td><td>{{.Stats.UnreadPapers}}</td></tr>
	<tr><td>Read papers</td><td>{{.Stats.ReadPapers}}</td></tr>
	<tr><td>Goals</td><td>{{.Stats.Goals}}</td></tr>
	<tr><td>Reading streak</td><td>{{.Stats.Streak}} days</td></tr>
	<tr><td>Last scan</td><td>{{ago .Stats.LastScan}}</td></tr>
	<tr><td>Full-text search</td><td>{{.Stats.HasFTS}}</td></tr>
</table>
{{template "foot" .}}
{{end}}
`))

func serve(ctx context.Context, store *assistant.Store, addr string) error {
	srv := &server{store: store, defaults: cfg.Settings(), log: logger.Named("web")}

	httpServer := &http.Server{Addr: addr, Handler: srv.routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	srv.log.Info("starting server", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type server struct {
	store    *assistant.Store
	defaults assistant.Settings
	log      *zap.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /tasks", s.handleTasks)
	mux.HandleFunc("POST /tasks", s.handleAddTask)
	mux.HandleFunc("POST /tasks/{id}/done", s.handleTaskDone)
	mux.HandleFunc("POST /tasks/{id}/delete", s.handleTaskDelete)
	mux.HandleFunc("POST /tasks/{id}/snooze", s.handleTaskSnooze)
	mux.HandleFunc("GET /papers", s.handlePapers)
	mux.HandleFunc("POST /papers/{id}/read", s.handlePaperRead)
	mux.HandleFunc("GET /papers/{id}/bibtex", s.handlePaperBibTeX)
	mux.HandleFunc("GET /papers/{id}/ris", s.handlePaperRIS)
	mux.HandleFunc("GET /goals", s.handleGoals)
	mux.HandleFunc("POST /goals", s.handleAddGoal)
	mux.HandleFunc("POST /goals/{id}/delete", s.handleGoalDelete)
	mux.HandleFunc("GET /settings", s.handleSettings)
	mux.HandleFunc("POST /settings", s.handleSaveSettings)
	mux.HandleFunc("GET /digest", s.handleDigest)
	mux.HandleFunc("GET /stats", s.handleStats)
	return mux
}

// render executes a page template, logging failures after headers are out.
func (s *server) render(w http.ResponseWriter, name string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error("render template", zap.String("template", name), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func wantsJSON(r *http.Request) bool {
	return r.URL.Query().Get("format") == "json"
}

// fail maps store errors to HTTP statuses.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var cerr *assistant.ConfigError
	switch {
	case errors.Is(err, assistant.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &cerr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// page loads the settings location and starts a template data map.
func (s *server) page(ctx context.Context, title string) (map[string]any, error) {
	st, err := s.store.LoadSettings(ctx, s.defaults)
	if err != nil {
		return nil, err
	}
	loc, err := st.Location()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"Title":    title,
		"Now":      timeNow(),
		"Location": loc,
		"Settings": st,
	}, nil
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := s.page(ctx, "Home")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	now, loc := data["Now"].(time.Time), data["Location"].(*time.Location)

	stats, err := s.store.CollectStats(ctx, now, loc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	until := now.In(loc)
	until = time.Date(until.Year(), until.Month(), until.Day(), 23, 59, 59, 0, loc)
	tasks, err := s.store.ListTasks(ctx, assistant.TaskFilter{Status: assistant.TaskPending, DueUntil: &until})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	papers, err := s.store.RecentPapers(ctx, 10)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data["Stats"] = stats
	data["Tasks"] = tasks
	data["Papers"] = papers
	s.render(w, "index", data)
}

type taskJSON struct {
	ID     int64      `json:"id"`
	Title  string     `json:"title"`
	DueAt  *time.Time `json:"due_at,omitempty"`
	Status string     `json:"status"`
	Source string     `json:"source,omitempty"`
}

func (s *server) handleTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := s.page(ctx, "Tasks")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	f := assistant.TaskFilter{Status: assistant.TaskPending, Limit: 200}
	switch r.URL.Query().Get("status") {
	case "done":
		f.Status = assistant.TaskDone
	case "all":
		f.Status = ""
	}
	tasks, err := s.store.ListTasks(ctx, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if wantsJSON(r) {
		out := make([]taskJSON, len(tasks))
		for i, t := range tasks {
			out[i] = taskJSON{ID: t.ID, Title: t.Title, DueAt: t.DueAt, Status: string(t.Status), Source: t.Source}
		}
		writeJSON(w, out)
		return
	}
	data["Tasks"] = tasks
	s.render(w, "tasks", data)
}

// handleAddTask creates a task from the form. Without an explicit due
// field, a time expression in the title sets the due time.
func (s *server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := s.page(ctx, "Tasks")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	now, loc := data["Now"].(time.Time), data["Location"].(*time.Location)

	title := strings.TrimSpace(r.FormValue("title"))
	t := &assistant.Task{Title: title, Source: "web"}
	if due := strings.TrimSpace(r.FormValue("due")); due != "" {
		d, err := time.ParseInLocation("2006-01-02T15:04", due, loc)
		if err != nil {
			http.Error(w, "invalid due time: "+due, http.StatusBadRequest)
			return
		}
		t.DueAt = &d
	} else if m, ok := assistant.ParseTime(title, now, loc); ok && m.Rest != "" {
		t.Title, t.DueAt = m.Rest, &m.Due
	}
	if t.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("task created", zap.Int64("task_id", t.ID))
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

func (s *server) handleTaskDone(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, err := s.store.CompleteTask(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

func (s *server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, err := s.store.DeleteTask(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

// handleTaskSnooze postpones a task by the "duration" form value, e.g.
// "2 hours". The default is one hour.
func (s *server) handleTaskSnooze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	d := time.Hour
	if v := strings.TrimSpace(r.FormValue("duration")); v != "" {
		var rest string
		d, rest, ok = assistant.FindDuration(v)
		if !ok || rest != "" {
			http.Error(w, "invalid duration: "+v, http.StatusBadRequest)
			return
		}
	}

	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	base := timeNow()
	if t.DueAt != nil {
		base = *t.DueAt
	}
	if _, err := s.store.SnoozeTask(ctx, id, base.Add(d)); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

type paperJSON struct {
	ID           int64     `json:"id"`
	Source       string    `json:"source"`
	ExternalID   string    `json:"external_id"`
	Title        string    `json:"title"`
	Authors      string    `json:"authors"`
	URL          string    `json:"url"`
	PDFURL       string    `json:"pdf_url,omitempty"`
	Score        float64   `json:"score"`
	Summary      string    `json:"summary"`
	Tags         []string  `json:"tags"`
	Read         bool      `json:"read"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

func (s *server) handlePapers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := s.page(ctx, "Papers")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	var papers []assistant.Paper
	if query != "" {
		papers, err = s.store.SearchPapers(ctx, query, 100)
	} else {
		f := assistant.PaperFilter{Limit: 200}
		switch r.URL.Query().Get("status") {
		case "unread":
			f.Read = new(bool)
		case "read":
			read := true
			f.Read = &read
		}
		papers, err = s.store.ListPapers(ctx, f)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if wantsJSON(r) {
		out := make([]paperJSON, len(papers))
		for i := range papers {
			p := &papers[i]
			out[i] = paperJSON{
				ID:           p.ID,
				Source:       string(p.Source),
				ExternalID:   p.ExternalID,
				Title:        p.Title,
				Authors:      p.Authors,
				URL:          p.Link(),
				PDFURL:       p.PDFURL(),
				Score:        p.Score,
				Summary:      p.Summary,
				Tags:         p.TagList(),
				Read:         p.Read,
				DiscoveredAt: p.DiscoveredAt,
			}
		}
		writeJSON(w, out)
		return
	}
	data["Query"] = query
	data["Papers"] = papers
	s.render(w, "papers", data)
}

func (s *server) handlePaperRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, err := s.store.MarkPaperRead(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/papers", http.StatusSeeOther)
}

func (s *server) handlePaperBibTeX(w http.ResponseWriter, r *http.Request) {
	s.exportPaper(w, r, "application/x-bibtex", ".bib", (*assistant.Paper).ToBibTeX)
}

func (s *server) handlePaperRIS(w http.ResponseWriter, r *http.Request) {
	s.exportPaper(w, r, "application/x-research-info-systems", ".ris", (*assistant.Paper).ToRIS)
}

func (s *server) exportPaper(w http.ResponseWriter, r *http.Request, contentType, ext string, format func(*assistant.Paper) string) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	p, err := s.store.GetPaper(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+p.BibTeXKey()+ext+`"`)
	w.Write([]byte(format(p)))
}

func (s *server) handleGoals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := s.page(ctx, "Goals")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	goals, err := s.store.ListGoals(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, goals)
		return
	}
	data["Goals"] = goals
	data["Year"] = data["Now"].(time.Time).In(data["Location"].(*time.Location)).Year()
	s.render(w, "goals", data)
}

func (s *server) handleAddGoal(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(strings.TrimSpace(r.FormValue("year")))
	if err != nil {
		http.Error(w, "invalid year", http.StatusBadRequest)
		return
	}
	g := &assistant.Goal{Year: year, Title: r.FormValue("title")}
	if err := s.store.CreateGoal(r.Context(), g); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, "/goals", http.StatusSeeOther)
}

func (s *server) handleGoalDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := s.store.DeleteGoal(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/goals", http.StatusSeeOther)
}

func (s *server) handleSettings(w http.ResponseWriter, r *http.Request) {
	data, err := s.page(r.Context(), "Settings")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, "settings", data)
}

// handleSaveSettings validates and stores the settings form. Invalid input
// re-renders the form with the error and stores nothing.
func (s *server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := assistant.Settings{
		ThesisTopic:   strings.TrimSpace(r.FormValue("thesis_topic")),
		Keywords:      assistant.SplitKeywords(r.FormValue("paper_keywords")),
		PaperScanTime: strings.TrimSpace(r.FormValue("paper_scan_time")),
		DigestTime:    strings.TrimSpace(r.FormValue("morning_digest_time")),
		Timezone:      strings.TrimSpace(r.FormValue("timezone")),
	}
	err := s.store.SaveSettings(ctx, st)
	var cerr *assistant.ConfigError
	if errors.As(err, &cerr) {
		w.WriteHeader(http.StatusBadRequest)
		s.render(w, "settings", map[string]any{"Title": "Settings", "Settings": st, "Error": cerr.Error()})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("settings saved", zap.Strings("keywords", st.Keywords), zap.String("timezone", st.Timezone))
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func (s *server) handleDigest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := assistant.NewComposer(s.store, &assistant.ComposerOptions{Now: timeNow, Defaults: s.defaults}).Compose(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, map[string]any{"text": d.Text(), "markdown": d.Markdown()})
		return
	}
	body, err := assistant.RenderMarkdown(d.Markdown())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, "digest", map[string]any{
		"Title": "Digest",
		// Markdown input is escaped and goldmark drops raw HTML.
		"Body": template.HTML(body),
	})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := s.page(ctx, "Stats")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	stats, err := s.store.CollectStats(ctx, data["Now"].(time.Time), data["Location"].(*time.Location))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, map[string]any{
			"pending_tasks":  stats.PendingTasks,
			"done_tasks":     stats.DoneTasks,
			"total_papers":   stats.TotalPapers,
			"unread_papers":  stats.UnreadPapers,
			"goals":          stats.Goals,
			"reading_streak": stats.Streak,
			"last_scan":      stats.LastScan,
			"fts":            stats.HasFTS,
		})
		return
	}
	data["Stats"] = stats
	s.render(w, "stats", data)
}
