package assistant

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// IntentKind is the action an Intent asks for.
type IntentKind int

const (
	IntentCreateTask IntentKind = iota + 1
	IntentCompleteTask
	IntentDeleteTask
	IntentSnoozeTask
	IntentListTasks
	IntentSummary
	IntentListPapers
	IntentMarkPaperRead
	IntentListGoals
	IntentAddGoal
	IntentTemplates
	IntentHelp
	IntentScan
	IntentSmallTalk
)

var intentNames = map[IntentKind]string{
	IntentCreateTask:    "create_task",
	IntentCompleteTask:  "complete_task",
	IntentDeleteTask:    "delete_task",
	IntentSnoozeTask:    "snooze_task",
	IntentListTasks:     "list_tasks",
	IntentSummary:       "summary",
	IntentListPapers:    "list_papers",
	IntentMarkPaperRead: "mark_paper_read",
	IntentListGoals:     "list_goals",
	IntentAddGoal:       "add_goal",
	IntentTemplates:     "templates",
	IntentHelp:          "help",
	IntentScan:          "scan",
	IntentSmallTalk:     "small_talk",
}

func (k IntentKind) String() string {
	if s, ok := intentNames[k]; ok {
		return s
	}
	return "intent(" + strconv.Itoa(int(k)) + ")"
}

// Mutates reports whether applying the intent writes to the store.
func (k IntentKind) Mutates() bool {
	switch k {
	case IntentCreateTask, IntentCompleteTask, IntentDeleteTask,
		IntentSnoozeTask, IntentMarkPaperRead, IntentAddGoal, IntentScan:
		return true
	}
	return false
}

// TaskScope selects which pending tasks a list shows.
type TaskScope string

const (
	ScopeAll   TaskScope = "all"
	ScopeToday TaskScope = "today"
	ScopeWeek  TaskScope = "week"
)

// Intent is one structured action derived from a chat message.
type Intent struct {
	Kind IntentKind

	// TaskID targets complete, delete and snooze
	TaskID int64

	// PaperID targets mark-read
	PaperID int64

	// Title is the task or goal text
	Title string

	// Due is the parsed deadline of a new task
	Due *time.Time

	// Snooze is how far to move the task's due time
	Snooze time.Duration

	Scope TaskScope

	// Year of a new goal
	Year int

	// Confirm asks the user before deleting
	Confirm bool

	// Reply is the small-talk response
	Reply string
}

// ResolveEnv is the snapshot Resolve works against.
type ResolveEnv struct {
	Now      time.Time
	Location *time.Location

	// Tasks are the pending tasks fuzzy targets are matched against
	Tasks []Task
}

func (env ResolveEnv) location() *time.Location {
	if env.Location == nil {
		return time.UTC
	}
	return env.Location
}

var (
	summaryWords  = wordSet("summary", "status", "report", "özet", "ozet", "rapor", "durum")
	templateWords = wordSet("templates", "template", "examples", "şablon", "sablon", "örnek", "ornek", "örnekler")
	deleteWords   = wordSet("delete", "remove", "sil", "silmek", "kaldır", "kaldir")
	cancelWords   = wordSet("cancel", "iptal")
	completeWords = wordSet("done", "finished", "completed",
		"tamamladım", "tamamladim", "tamamlandı", "tamamlandi", "bitirdim", "bitti")
	remindWords   = wordSet("hatırlat", "hatirlat", "hatırlatır", "hatırlatırmısın", "hatırlatsana")
	snoozeWords   = wordSet("snooze", "postpone", "delay", "ertele", "erteler")
	goalWords     = wordSet("goal", "goals", "hedef", "hedefim", "hedefi")
	listWords     = wordSet("list", "listele", "liste", "görevler", "gorevler", "görevlerim", "gorevlerim")
	greetingWords = wordSet("hello", "hi", "hey", "merhaba", "selam", "naber", "nasılsın", "nasilsin")
	thanksWords   = wordSet("thanks", "thank", "thx", "teşekkürler", "tesekkurler", "teşekkür", "tesekkur", "sağol", "sagol")
	whoWords      = wordSet("kimsin", "nesin")

	reTaskRef  = regexp.MustCompile(`#(\d+)`)
	reGoalYear = wordRE(`(20\d{2})`)
	reFiller   = regexp.MustCompile(`(?i)^\s*(?:(?:please|can you|could you)\s+)*remind\s+me(?:\s+(?:about|to|of|that))?(?:\s+|$)`)
)

// Words dropped from a new task's title.
var fillerWords = wordSet("please", "lütfen", "lutfen", "hatırlat", "hatirlat", "hatırlatır", "bana", "beni")

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// intentTokens lowercases text and splits it into words.
func intentTokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '#'
	})
}

func containsAny(tokens []string, set map[string]bool) bool {
	for _, t := range tokens {
		if set[t] {
			return true
		}
	}
	return false
}

func hasPhrase(tokens []string, phrase ...string) bool {
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j, w := range phrase {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Resolve maps one line of chat text to exactly one Intent, or returns an
// *AmbiguousIntentError describing what to clarify. It has no side effects.
func Resolve(text string, env ResolveEnv) (Intent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Intent{}, &AmbiguousIntentError{Input: text, Reason: "Send /help to see what I can do."}
	}
	if strings.HasPrefix(text, "/") {
		return resolveCommand(text, env)
	}

	tokens := intentTokens(text)
	_, hasTime := ParseTime(text, env.Now, env.location())

	// Queries never carry a deadline; "write the summary tomorrow" is a task.
	if !hasTime && containsAny(tokens, summaryWords) {
		return Intent{Kind: IntentSummary}, nil
	}
	if !hasTime && containsAny(tokens, templateWords) {
		return Intent{Kind: IntentTemplates}, nil
	}

	if containsAny(tokens, snoozeWords) {
		return resolveSnooze(text, env)
	}
	if containsAny(tokens, goalWords) {
		if m := reGoalYear.FindStringSubmatchIndex(text); m != nil {
			return resolveGoal(text, m)
		}
	}

	// A reminder request or a deadline makes the message a new task, so
	// "remind me to cancel the dentist tomorrow" never touches a stored one.
	if hasTime || isReminder(text, tokens) {
		return resolveCreate(text, env)
	}

	switch {
	case deleteRequested(tokens):
		return resolveTarget(text, IntentDeleteTask, deleteVerbs, env)
	case containsAny(tokens, completeWords):
		return resolveTarget(text, IntentCompleteTask, completeWords, env)
	}

	if !hasTime && (containsAny(tokens, listWords) || hasPhrase(tokens, "my", "tasks")) {
		return Intent{Kind: IntentListTasks, Scope: ScopeAll}, nil
	}

	if len(tokens) <= 3 {
		switch {
		case containsAny(tokens, greetingWords):
			return Intent{Kind: IntentSmallTalk, Reply: "Hello! Tell me what to remind you about, or send /help."}, nil
		case containsAny(tokens, thanksWords), hasPhrase(tokens, "sağ", "ol"), hasPhrase(tokens, "sag", "ol"):
			return Intent{Kind: IntentSmallTalk, Reply: "You're welcome. Anything else?"}, nil
		case containsAny(tokens, whoWords), hasPhrase(tokens, "who", "are", "you"):
			return Intent{Kind: IntentSmallTalk, Reply: "I track your tasks and goals and scan new papers for your thesis. Send /help for commands."}, nil
		}
	}

	return resolveCreate(text, env)
}

func isReminder(text string, tokens []string) bool {
	return reFiller.MatchString(text) || containsAny(tokens, remindWords)
}

// Words removed from a delete request before matching its target.
var deleteVerbs = wordSet("delete", "remove", "sil", "silmek", "kaldır", "kaldir", "cancel", "iptal", "et", "edin")

// deleteRequested accepts the delete verbs, and "cancel" or "iptal" only
// when they name a task: "cancel the ...", "cancel #3", "iptal et".
func deleteRequested(tokens []string) bool {
	if containsAny(tokens, deleteWords) {
		return true
	}
	for i, tok := range tokens {
		if !cancelWords[tok] || i+1 >= len(tokens) {
			continue
		}
		switch next := tokens[i+1]; {
		case next == "the", next == "task", next == "my", next == "et", next == "edin":
			return true
		case strings.HasPrefix(next, "#"):
			return true
		}
	}
	return false
}

func resolveCreate(text string, env ResolveEnv) (Intent, error) {
	intent := Intent{Kind: IntentCreateTask}
	rest := text
	if m, ok := ParseTime(text, env.Now, env.location()); ok {
		due := m.Due
		intent.Due = &due
		rest = m.Rest
	}
	intent.Title = taskTitle(rest)
	if intent.Title == "" {
		return Intent{}, &AmbiguousIntentError{Input: text, Reason: "What should I remind you about?"}
	}
	return intent, nil
}

// taskTitle strips reminder filler from the text left after time parsing.
func taskTitle(s string) string {
	s = reFiller.ReplaceAllString(s, "")
	var words []string
	for _, w := range strings.Fields(s) {
		if fillerWords[strings.ToLower(strings.Trim(w, ".,!?"))] {
			continue
		}
		words = append(words, w)
	}
	return strings.Trim(strings.Join(words, " "), " .,!?:;-")
}

// resolveTarget resolves a delete or complete request. An explicit #id is
// used as is; otherwise the remaining words pick one pending task.
func resolveTarget(text string, kind IntentKind, verbs map[string]bool, env ResolveEnv) (Intent, error) {
	if m := reTaskRef.FindStringSubmatch(text); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil && id > 0 {
			return Intent{Kind: kind, TaskID: id, Confirm: kind == IntentDeleteTask}, nil
		}
	}
	t, err := MatchTask(targetQuery(text, verbs), env.Tasks)
	if err != nil {
		var amb *AmbiguousIntentError
		if errors.As(err, &amb) {
			amb.Input = text
		}
		return Intent{}, err
	}
	return Intent{Kind: kind, TaskID: t.ID, Confirm: kind == IntentDeleteTask}, nil
}

func resolveSnooze(text string, env ResolveEnv) (Intent, error) {
	d, rest, ok := FindDuration(text)
	if !ok {
		return Intent{}, &AmbiguousIntentError{
			Input:  text,
			Reason: "For how long? e.g. \"snooze advisor meeting 2 hours\" or /snooze <id> 2 hours.",
		}
	}
	intent, err := resolveTarget(rest, IntentSnoozeTask, snoozeWords, env)
	if err != nil {
		var amb *AmbiguousIntentError
		if errors.As(err, &amb) {
			amb.Input = text
		}
		return Intent{}, err
	}
	intent.Snooze = d
	return intent, nil
}

// targetQuery removes the verbs and "#id" references from text.
func targetQuery(text string, verbs map[string]bool) string {
	var words []string
	for _, w := range strings.Fields(reTaskRef.ReplaceAllString(text, " ")) {
		if verbs[strings.ToLower(strings.Trim(w, ".,!?:;"))] {
			continue
		}
		words = append(words, w)
	}
	return strings.Join(words, " ")
}

func resolveGoal(text string, m []int) (Intent, error) {
	year, _ := strconv.Atoi(text[m[4]:m[5]])
	rest := text[:m[2]] + " " + text[m[3]:]
	var words []string
	for _, w := range strings.Fields(rest) {
		lw := strings.ToLower(strings.Trim(w, ".,!?:;"))
		if goalWords[lw] || lw == "for" || lw == "için" || lw == "icin" || lw == "new" || lw == "yeni" {
			continue
		}
		words = append(words, w)
	}
	title := strings.Trim(strings.Join(words, " "), " .,!?:;-")
	if title == "" {
		return Intent{}, &AmbiguousIntentError{Input: text, Reason: "Goal text is missing. Usage: /goal <year> <text>"}
	}
	return Intent{Kind: IntentAddGoal, Year: year, Title: title}, nil
}

// Templates are example phrases the resolver understands.
var Templates = []string{
	"remind me about advisor meeting tomorrow at 15:00",
	"finish thesis proposal this week",
	"submit the report on friday at 5pm",
	"call the lab in 2 hours",
	"done advisor meeting",
	"delete the reminder about advisor meeting",
	"snooze thesis proposal 1 day",
	"goal 2025 publish two papers",
	"Bana yarın 15:00 danışman toplantısını hatırlat",
	"Bu hafta tez önerisini bitirmeyi hatırlat",
	"summary",
}
