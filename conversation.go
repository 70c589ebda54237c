package assistant

import (
	"strings"
	"time"
)

// How long a question to the user stays open.
const confirmTTL = 10 * time.Minute

var (
	yesWords = wordSet("yes", "y", "yep", "ok", "okay", "confirm", "evet", "e", "tamam", "onayla")
	noWords  = wordSet("no", "n", "nope", "cancel", "skip", "hayır", "hayir", "vazgeç", "vazgec", "iptal", "gerek", "yok")
)

type questionKind int

const (
	// askConfirm waits for yes or no before a delete
	askConfirm questionKind = iota + 1

	// askDue waits for the due time of a task saved without one
	askDue
)

// question is something the assistant asked and is waiting on.
type question struct {
	kind    questionKind
	intent  Intent
	expires time.Time
}

// conversation holds per-chat state between messages. Only open
// questions are kept; everything else is re-read from the store.
type conversation struct {
	open *LRU[int64, question]
}

func newConversation(size int) *conversation {
	return &conversation{open: NewLRU[int64, question](size)}
}

func (c *conversation) ask(chatID int64, kind questionKind, in Intent, now time.Time) {
	c.open.Put(chatID, question{kind: kind, intent: in, expires: now.Add(confirmTTL)})
}

// pending returns the live question for chatID, dropping an expired one.
func (c *conversation) pending(chatID int64, now time.Time) (question, bool) {
	q, ok := c.open.Get(chatID)
	if !ok {
		return question{}, false
	}
	if now.After(q.expires) {
		c.open.Take(chatID)
		return question{}, false
	}
	return q, true
}

func (c *conversation) close(chatID int64) {
	c.open.Take(chatID)
}

type answer int

const (
	answerOther answer = iota
	answerYes
	answerNo
)

// answerOf classifies a short reply. Longer messages are never answers.
func answerOf(text string) answer {
	tokens := intentTokens(strings.TrimSpace(text))
	if len(tokens) == 0 || len(tokens) > 3 {
		return answerOther
	}
	switch {
	case containsAny(tokens, noWords):
		return answerNo
	case containsAny(tokens, yesWords):
		return answerYes
	}
	return answerOther
}
