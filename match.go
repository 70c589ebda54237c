package assistant

import (
	"sort"
	"strings"
	"unicode"

	"github.com/sajari/fuzzy"
)

var matchStopwords = map[string]bool{
	"the": true, "and": true, "about": true, "that": true, "this": true,
	"with": true, "for": true, "from": true, "task": true, "tasks": true,
	"reminder": true, "remind": true, "please": true, "one": true,
	"görev": true, "görevi": true, "gorev": true, "gorevi": true,
	"hatırlatma": true, "hatırlatmayı": true, "hatirlatma": true, "hatirlatmayi": true,
	"şunu": true, "şu": true, "için": true, "icin": true, "ile": true, "olan": true,
}

// matchTokens lowercases s, splits it on anything that is not a letter or
// digit and drops stopwords and tokens shorter than three runes.
func matchTokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	var out []string
	for _, f := range fields {
		if len([]rune(f)) < 3 || matchStopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// MatchTask resolves query to exactly one of tasks. A task scores 3 when
// the whole normalized query occurs in its title, plus one per shared
// token. Zero candidates or a tie at the top score is an
// *AmbiguousIntentError; it never guesses.
func MatchTask(query string, tasks []Task) (*Task, error) {
	qTokens := matchTokens(query)
	if len(qTokens) == 0 {
		return nil, &AmbiguousIntentError{
			Input:  query,
			Reason: "Which task do you mean? Use the task id, e.g. /done 3.",
		}
	}

	titles := make([][]string, len(tasks))
	vocab := make(map[string]bool)
	var words []string
	for i, t := range tasks {
		titles[i] = matchTokens(t.Title)
		for _, w := range titles[i] {
			if !vocab[w] {
				vocab[w] = true
				words = append(words, w)
			}
		}
	}
	qTokens = correctTokens(qTokens, vocab, words)
	normalized := strings.Join(qTokens, " ")

	type scored struct {
		task  *Task
		score int
	}
	var candidates []scored
	best := 0
	for i := range tasks {
		score := 0
		if strings.Contains(strings.Join(titles[i], " "), normalized) {
			score += 3
		}
		score += sharedTokens(qTokens, titles[i])
		if score == 0 {
			continue
		}
		candidates = append(candidates, scored{task: &tasks[i], score: score})
		best = max(best, score)
	}

	var top []Task
	for _, c := range candidates {
		if c.score == best {
			top = append(top, *c.task)
		}
	}
	sort.Slice(top, func(i, j int) bool { return top[i].ID < top[j].ID })

	switch len(top) {
	case 0:
		return nil, &AmbiguousIntentError{
			Input:  query,
			Reason: "No pending task matches \"" + strings.TrimSpace(query) + "\".",
		}
	case 1:
		t := top[0]
		return &t, nil
	}
	return nil, &AmbiguousIntentError{
		Input:      query,
		Reason:     "Several tasks match. Please use the id:",
		Candidates: top,
	}
}

// correctTokens replaces query tokens missing from the task vocabulary
// with their spelling correction, when exactly one correction exists.
func correctTokens(tokens []string, vocab map[string]bool, words []string) []string {
	if len(words) == 0 {
		return tokens
	}
	model := fuzzy.NewModel()
	model.SetThreshold(1)
	model.SetDepth(1)
	model.Train(words)

	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok
		if vocab[tok] {
			continue
		}
		suggestions := model.Suggestions(tok, false)
		sort.Strings(suggestions)
		if len(suggestions) == 1 {
			out[i] = suggestions[0]
		}
	}
	return out
}

func sharedTokens(query, title []string) int {
	set := make(map[string]bool, len(title))
	for _, w := range title {
		set[w] = true
	}
	n := 0
	seen := make(map[string]bool)
	for _, w := range query {
		if set[w] && !seen[w] {
			seen[w] = true
			n++
		}
	}
	return n
}
