package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var matchFixture = []Task{
	{ID: 1, Title: "advisor meeting"},
	{ID: 2, Title: "advisor meeting notes"},
	{ID: 3, Title: "buy milk"},
	{ID: 4, Title: "Submit thesis proposal"},
}

func TestMatchTask(t *testing.T) {
	tests := []struct {
		query string
		want  int64
	}{
		{query: "meeting notes", want: 2},
		{query: "the milk", want: 3},
		{query: "thesis proposal", want: 4},
		{query: "PROPOSAL", want: 4},
		{query: "the task about milk please", want: 3},
		{query: "thesis propsal", want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := MatchTask(tt.query, matchFixture)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestMatchTaskTie(t *testing.T) {
	_, err := MatchTask("advisor meeting", matchFixture)
	var amb *AmbiguousIntentError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, "Several tasks match. Please use the id:", amb.Reason)
	require.Len(t, amb.Candidates, 2)
	assert.EqualValues(t, 1, amb.Candidates[0].ID)
	assert.EqualValues(t, 2, amb.Candidates[1].ID)
	assert.Equal(t, "Several tasks match. Please use the id:\n#1 advisor meeting (no date)\n#2 advisor meeting notes (no date)", amb.Prompt())
}

func TestMatchTaskNoMatch(t *testing.T) {
	_, err := MatchTask("dentist", matchFixture)
	var amb *AmbiguousIntentError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, `No pending task matches "dentist".`, amb.Reason)
	assert.Empty(t, amb.Candidates)

	_, err = MatchTask("dentist", nil)
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, `No pending task matches "dentist".`, amb.Reason)
}

func TestMatchTaskEmptyQuery(t *testing.T) {
	_, err := MatchTask("the task", matchFixture)
	var amb *AmbiguousIntentError
	require.ErrorAs(t, err, &amb)
	assert.Contains(t, amb.Reason, "Which task do you mean?")
}

func TestMatchTokens(t *testing.T) {
	assert.Equal(t, []string{"danışman", "toplantısı"}, matchTokens("Şu danışman toplantısı için"))
	assert.Equal(t, []string{"submit", "draft"}, matchTokens("Submit the draft, ok?"))
}
