package assistant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// command is one slash command the chat front-end understands.
type command struct {
	name    string
	aliases []string
	usage   string
	summary string
	parse   func(args []string, env ResolveEnv) (Intent, error)
}

// commandTable maps command names and aliases to commands.
type commandTable struct {
	byName  map[string]*command
	ordered []*command
}

func newCommandTable(cmds ...*command) *commandTable {
	t := &commandTable{byName: make(map[string]*command)}
	for _, c := range cmds {
		for _, name := range append([]string{c.name}, c.aliases...) {
			if _, exists := t.byName[name]; exists {
				panic("command already registered: " + name)
			}
			t.byName[name] = c
		}
		t.ordered = append(t.ordered, c)
	}
	return t
}

func (t *commandTable) find(name string) (*command, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// help renders one usage line per command in registration order.
func (t *commandTable) help() string {
	var sb strings.Builder
	sb.WriteString("Commands:")
	for _, c := range t.ordered {
		fmt.Fprintf(&sb, "\n%s - %s", c.usage, c.summary)
	}
	sb.WriteString("\n\nOr just write, e.g. \"remind me about advisor meeting tomorrow at 15:00\".")
	return sb.String()
}

var commands = newCommandTable(
	&command{
		name: "help", aliases: []string{"start", "yardim", "yardım"},
		usage: "/help", summary: "show this message",
		parse: func([]string, ResolveEnv) (Intent, error) { return Intent{Kind: IntentHelp}, nil },
	},
	&command{
		name: "tasks", aliases: []string{"list", "gorevler", "görevler"},
		usage: "/tasks", summary: "list pending tasks",
		parse: func([]string, ResolveEnv) (Intent, error) {
			return Intent{Kind: IntentListTasks, Scope: ScopeAll}, nil
		},
	},
	&command{
		name: "today", aliases: []string{"bugun", "bugün"},
		usage: "/today", summary: "tasks due today",
		parse: func([]string, ResolveEnv) (Intent, error) {
			return Intent{Kind: IntentListTasks, Scope: ScopeToday}, nil
		},
	},
	&command{
		name: "week", aliases: []string{"hafta"},
		usage: "/week", summary: "tasks due in the next 7 days",
		parse: func([]string, ResolveEnv) (Intent, error) {
			return Intent{Kind: IntentListTasks, Scope: ScopeWeek}, nil
		},
	},
	&command{
		name: "done", aliases: []string{"tamam"},
		usage: "/done <id>", summary: "complete a task",
		parse: func(args []string, _ ResolveEnv) (Intent, error) {
			id, err := commandID(args, "/done <id>")
			if err != nil {
				return Intent{}, err
			}
			return Intent{Kind: IntentCompleteTask, TaskID: id}, nil
		},
	},
	&command{
		name: "delete", aliases: []string{"sil"},
		usage: "/delete <id>", summary: "delete a task (asks first)",
		parse: func(args []string, _ ResolveEnv) (Intent, error) {
			id, err := commandID(args, "/delete <id>")
			if err != nil {
				return Intent{}, err
			}
			return Intent{Kind: IntentDeleteTask, TaskID: id, Confirm: true}, nil
		},
	},
	&command{
		name: "snooze", aliases: []string{"ertele"},
		usage: "/snooze <id> <amount> <unit>", summary: "postpone a task, e.g. /snooze 3 2 hours",
		parse: func(args []string, _ ResolveEnv) (Intent, error) {
			const usage = "/snooze <id> <amount> <unit>"
			id, err := commandID(args, usage)
			if err != nil {
				return Intent{}, err
			}
			d, rest, ok := FindDuration(strings.Join(args[1:], " "))
			if !ok || rest != "" {
				return Intent{}, usageError(usage + " (units: min, hours, days, weeks)")
			}
			return Intent{Kind: IntentSnoozeTask, TaskID: id, Snooze: d}, nil
		},
	},
	&command{
		name: "summary", aliases: []string{"ozet", "özet", "status"},
		usage: "/summary", summary: "tasks and papers at a glance",
		parse: func([]string, ResolveEnv) (Intent, error) { return Intent{Kind: IntentSummary}, nil },
	},
	&command{
		name: "papers", aliases: []string{"makaleler"},
		usage: "/papers", summary: "unread papers from the last 24 hours",
		parse: func([]string, ResolveEnv) (Intent, error) { return Intent{Kind: IntentListPapers}, nil },
	},
	&command{
		name: "read", aliases: []string{"okudum"},
		usage: "/read <id>", summary: "mark a paper read",
		parse: func(args []string, _ ResolveEnv) (Intent, error) {
			id, err := commandID(args, "/read <id>")
			if err != nil {
				return Intent{}, err
			}
			return Intent{Kind: IntentMarkPaperRead, PaperID: id}, nil
		},
	},
	&command{
		name: "goals", aliases: []string{"hedefler"},
		usage: "/goals", summary: "list goals",
		parse: func([]string, ResolveEnv) (Intent, error) { return Intent{Kind: IntentListGoals}, nil },
	},
	&command{
		name: "goal", aliases: []string{"hedef"},
		usage: "/goal <year> <text>", summary: "add a goal",
		parse: func(args []string, _ ResolveEnv) (Intent, error) {
			const usage = "/goal <year> <text>"
			if len(args) < 2 {
				return Intent{}, usageError(usage)
			}
			year, err := strconv.Atoi(args[0])
			if err != nil || year < 1970 || year > 9999 {
				return Intent{}, usageError(usage)
			}
			return Intent{Kind: IntentAddGoal, Year: year, Title: strings.Join(args[1:], " ")}, nil
		},
	},
	&command{
		name: "templates", aliases: []string{"sablon", "şablon", "examples"},
		usage: "/templates", summary: "example phrases",
		parse: func([]string, ResolveEnv) (Intent, error) { return Intent{Kind: IntentTemplates}, nil },
	},
	&command{
		name: "scan", aliases: []string{"tara"},
		usage: "/scan", summary: "scan for new papers now",
		parse: func([]string, ResolveEnv) (Intent, error) { return Intent{Kind: IntentScan}, nil },
	},
)

// HelpText lists the chat commands.
func HelpText() string {
	return commands.help()
}

// resolveCommand handles text starting with "/".
func resolveCommand(text string, env ResolveEnv) (Intent, error) {
	fields := strings.Fields(text)
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	// Group chats address commands as /name@botname.
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	c, ok := commands.find(name)
	if !ok {
		return Intent{}, &AmbiguousIntentError{
			Input:  text,
			Reason: fmt.Sprintf("Unknown command /%s. Send /help for the list.", name),
		}
	}
	intent, err := c.parse(fields[1:], env)
	if err != nil {
		var amb *AmbiguousIntentError
		if errors.As(err, &amb) {
			amb.Input = text
		}
		return Intent{}, err
	}
	return intent, nil
}

func commandID(args []string, usage string) (int64, error) {
	if len(args) == 0 {
		return 0, usageError(usage)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError(usage)
	}
	return id, nil
}

func usageError(usage string) error {
	return &AmbiguousIntentError{Reason: "Usage: " + usage}
}
