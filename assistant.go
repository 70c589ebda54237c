package assistant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Upper bound on the pending tasks fuzzy targets are matched against.
const matchTaskLimit = 200

// AssistantOptions configures NewAssistant.
type AssistantOptions struct {
	Logger *zap.Logger

	// Now overrides the clock
	Now func() time.Time

	// Defaults fill settings keys missing from the store
	Defaults Settings

	// Scan runs the paper pipeline for /scan; nil disables it
	Scan func(ctx context.Context) (*ScanResult, error)

	// Source is recorded on created tasks (default "telegram")
	Source string

	// Chats bounds the number of chats with open questions
	Chats int
}

// Assistant turns chat messages into store mutations. Each message is
// resolved to one Intent and applied as at most one mutation.
type Assistant struct {
	store    *Store
	log      *zap.Logger
	now      func() time.Time
	defaults Settings
	scan     func(ctx context.Context) (*ScanResult, error)
	source   string
	conv     *conversation
}

// NewAssistant creates an Assistant over store.
func NewAssistant(store *Store, opts *AssistantOptions) *Assistant {
	if opts == nil {
		opts = &AssistantOptions{}
	}
	a := &Assistant{
		store:    store,
		log:      nopIfNil(opts.Logger),
		now:      opts.Now,
		defaults: opts.Defaults,
		scan:     opts.Scan,
		source:   opts.Source,
		conv:     newConversation(opts.Chats),
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.source == "" {
		a.source = "telegram"
	}
	return a
}

// Handle processes one incoming message and returns the reply. User-level
// problems (ambiguity, unknown ids) become replies; only store and
// service failures are returned as errors.
func (a *Assistant) Handle(ctx context.Context, chatID int64, text string) (string, error) {
	now := a.now()
	loc, err := a.location(ctx)
	if err != nil {
		return "", err
	}

	if q, ok := a.conv.pending(chatID, now); ok {
		reply, handled, err := a.answer(ctx, chatID, q, text, now, loc)
		if handled || err != nil {
			return reply, err
		}
		// Anything else drops the question and is handled as usual.
		a.conv.close(chatID)
	}

	pending, err := a.store.PendingTasks(ctx, matchTaskLimit)
	if err != nil {
		return "", err
	}
	in, err := Resolve(text, ResolveEnv{Now: now, Location: loc, Tasks: pending})
	if err != nil {
		var amb *AmbiguousIntentError
		if errors.As(err, &amb) {
			a.log.Debug("needs clarification", zap.String("input", text), zap.String("reason", amb.Reason))
			return amb.Prompt(), nil
		}
		return "", err
	}
	a.log.Debug("resolved intent", zap.Int64("chat_id", chatID), zap.Stringer("intent", in.Kind))

	if in.Confirm {
		t, err := a.store.GetTask(ctx, in.TaskID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return notFoundReply(err), nil
			}
			return "", err
		}
		a.conv.ask(chatID, askConfirm, in, now)
		return fmt.Sprintf("Delete %s? Reply yes to confirm.", formatTaskLine(t, loc)), nil
	}
	if in.Kind == IntentCreateTask && in.Due == nil {
		t, err := a.createTask(ctx, in)
		if err != nil {
			return "", err
		}
		a.conv.ask(chatID, askDue, Intent{Kind: IntentSnoozeTask, TaskID: t.ID}, now)
		return "Saved " + formatTaskLine(t, loc) + "\nWhen should I remind you? e.g. \"tomorrow 10:00\", or \"no\".", nil
	}
	return a.reply(ctx, in, now, loc)
}

// Slow reports whether text starts the paper scan, which can run for
// minutes.
func (a *Assistant) Slow(text string) bool {
	if a.scan == nil || !strings.HasPrefix(strings.TrimSpace(text), "/") {
		return false
	}
	in, err := resolveCommand(strings.TrimSpace(text), ResolveEnv{})
	return err == nil && in.Kind == IntentScan
}

// answer applies a reply to an open question. handled is false when text
// is not an answer to it.
func (a *Assistant) answer(ctx context.Context, chatID int64, q question, text string, now time.Time, loc *time.Location) (reply string, handled bool, err error) {
	switch q.kind {
	case askConfirm:
		switch answerOf(text) {
		case answerYes:
			a.conv.close(chatID)
			in := q.intent
			in.Confirm = false
			reply, err = a.reply(ctx, in, now, loc)
			return reply, true, err
		case answerNo:
			a.conv.close(chatID)
			return "Cancelled, nothing was deleted.", true, nil
		}

	case askDue:
		if answerOf(text) == answerNo {
			a.conv.close(chatID)
			return fmt.Sprintf("Okay, #%d stays without a date.", q.intent.TaskID), true, nil
		}
		m, ok := ParseTime(text, now, loc)
		if !ok || taskTitle(m.Rest) != "" {
			return "", false, nil
		}
		a.conv.close(chatID)
		t, err := a.store.SnoozeTask(ctx, q.intent.TaskID, m.Due)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return notFoundReply(err), true, nil
			}
			return "", true, err
		}
		return "Reminder set: " + formatTaskLine(t, loc), true, nil
	}
	return "", false, nil
}

func (a *Assistant) reply(ctx context.Context, in Intent, now time.Time, loc *time.Location) (string, error) {
	msg, err := a.Execute(ctx, in, now, loc)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFoundReply(err), nil
		}
		var svc *ExternalServiceError
		if errors.As(err, &svc) {
			a.log.Warn("external service failed", zap.Error(err))
			return "Sorry, " + svc.Service + " is not reachable right now. Try again later.", nil
		}
		return "", err
	}
	return msg, nil
}

func notFoundReply(err error) string {
	s := err.Error()
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

// Execute applies one resolved intent and renders the reply.
func (a *Assistant) Execute(ctx context.Context, in Intent, now time.Time, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch in.Kind {
	case IntentCreateTask:
		t, err := a.createTask(ctx, in)
		if err != nil {
			return "", err
		}
		return "Saved " + formatTaskLine(t, loc), nil

	case IntentCompleteTask:
		t, err := a.store.CompleteTask(ctx, in.TaskID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Done: #%d %s", t.ID, t.Title), nil

	case IntentDeleteTask:
		t, err := a.store.DeleteTask(ctx, in.TaskID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Deleted #%d %s", t.ID, t.Title), nil

	case IntentSnoozeTask:
		t, err := a.store.GetTask(ctx, in.TaskID)
		if err != nil {
			return "", err
		}
		base := now
		if t.DueAt != nil {
			base = *t.DueAt
		}
		t, err = a.store.SnoozeTask(ctx, in.TaskID, base.Add(in.Snooze))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Snoozed by %s: %s", formatDuration(in.Snooze), formatTaskLine(t, loc)), nil

	case IntentListTasks:
		return a.listTasks(ctx, in.Scope, now, loc)

	case IntentSummary:
		sum, err := BuildSummary(ctx, a.store, now, loc)
		if err != nil {
			return "", err
		}
		return sum.Text(), nil

	case IntentListPapers:
		since := now.Add(-24 * time.Hour)
		unread := false
		papers, err := a.store.ListPapers(ctx, PaperFilter{Read: &unread, Since: &since, Limit: 10})
		if err != nil {
			return "", err
		}
		return formatPaperList("Unread papers from the last 24 hours:", papers), nil

	case IntentMarkPaperRead:
		p, err := a.store.MarkPaperRead(ctx, in.PaperID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Marked read: #%d %s", p.ID, p.Title), nil

	case IntentListGoals:
		goals, err := a.store.ListGoals(ctx)
		if err != nil {
			return "", err
		}
		return formatGoals(goals), nil

	case IntentAddGoal:
		g := &Goal{Year: in.Year, Title: in.Title}
		if err := a.store.CreateGoal(ctx, g); err != nil {
			return "", err
		}
		return fmt.Sprintf("Goal added for %d: %s", g.Year, g.Title), nil

	case IntentTemplates:
		return "Try:\n• " + strings.Join(Templates, "\n• "), nil

	case IntentHelp:
		return HelpText(), nil

	case IntentScan:
		if a.scan == nil {
			return "Paper scanning is not configured.", nil
		}
		res, err := a.scan(ctx)
		if err != nil {
			return "", err
		}
		return formatScanResult(res), nil

	case IntentSmallTalk:
		return in.Reply, nil
	}
	return "", fmt.Errorf("unhandled intent %s", in.Kind)
}

func (a *Assistant) createTask(ctx context.Context, in Intent) (*Task, error) {
	t := &Task{Title: in.Title, DueAt: in.Due, Source: a.source}
	if err := a.store.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	a.log.Info("task created", zap.Int64("task_id", t.ID), zap.String("title", t.Title))
	return t, nil
}

func (a *Assistant) listTasks(ctx context.Context, scope TaskScope, now time.Time, loc *time.Location) (string, error) {
	local := now.In(loc)
	f := TaskFilter{Status: TaskPending, Limit: 50}
	heading := "Pending tasks:"
	switch scope {
	case ScopeToday:
		until := endOfDay(local)
		f.DueUntil = &until
		heading = "Due today:"
	case ScopeWeek:
		until := endOfDay(local.AddDate(0, 0, 7))
		f.DueUntil = &until
		heading = "Due in the next 7 days:"
	}
	tasks, err := a.store.ListTasks(ctx, f)
	if err != nil {
		return "", err
	}
	return formatTaskList(heading, tasks, now, loc), nil
}

func (a *Assistant) location(ctx context.Context) (*time.Location, error) {
	st, err := a.store.LoadSettings(ctx, a.defaults)
	if err != nil {
		return nil, err
	}
	if st.Timezone == "" {
		return time.UTC, nil
	}
	return st.Location()
}

// ChatID parses a stored chat id.
func ChatID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return id, err == nil && id != 0
}
