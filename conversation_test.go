package assistant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnswerOf(t *testing.T) {
	tests := map[string]answer{
		"yes":                      answerYes,
		"Evet!":                    answerYes,
		"ok do it":                 answerYes,
		"no":                       answerNo,
		"no thanks":                answerNo,
		"gerek yok":                answerNo,
		"yes no":                   answerNo,
		"yes please delete it now": answerOther,
		"what?":                    answerOther,
		"/done 1":                  answerOther,
		"":                         answerOther,
	}
	for text, want := range tests {
		assert.Equal(t, want, answerOf(text), text)
	}
}

func TestConversationPending(t *testing.T) {
	del := Intent{Kind: IntentDeleteTask, TaskID: 4, Confirm: true}
	c := newConversation(8)
	c.ask(42, askConfirm, del, testNow)

	_, ok := c.pending(7, testNow)
	assert.False(t, ok, "other chats have no open question")

	// Looking does not consume the question.
	for range 2 {
		q, ok := c.pending(42, testNow.Add(time.Minute))
		assert.True(t, ok)
		assert.Equal(t, askConfirm, q.kind)
		assert.Equal(t, del, q.intent)
	}

	c.close(42)
	_, ok = c.pending(42, testNow.Add(time.Minute))
	assert.False(t, ok)
}

func TestConversationExpiry(t *testing.T) {
	c := newConversation(8)
	c.ask(42, askDue, Intent{Kind: IntentSnoozeTask, TaskID: 1}, testNow)

	_, ok := c.pending(42, testNow.Add(confirmTTL+time.Second))
	assert.False(t, ok)
	assert.Zero(t, c.open.Len())
}
