package assistant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv() ResolveEnv {
	return ResolveEnv{
		Now:      testNow,
		Location: time.UTC,
		Tasks: []Task{
			{ID: 1, Title: "advisor meeting"},
			{ID: 2, Title: "thesis proposal"},
			{ID: 3, Title: "buy milk"},
		},
	}
}

func TestResolve(t *testing.T) {
	tomorrow15 := time.Date(2024, time.June, 11, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		text string
		want Intent
	}{
		{
			text: "remind me about advisor meeting tomorrow at 15:00",
			want: Intent{Kind: IntentCreateTask, Title: "advisor meeting", Due: &tomorrow15},
		},
		{
			text: "Bana yarın 15:00 danışman toplantısını hatırlat",
			want: Intent{Kind: IntentCreateTask, Title: "danışman toplantısını", Due: &tomorrow15},
		},
		{text: "buy new headphones", want: Intent{Kind: IntentCreateTask, Title: "buy new headphones"}},
		{text: "done advisor meeting", want: Intent{Kind: IntentCompleteTask, TaskID: 1}},
		{text: "I finished the thesis proposal", want: Intent{Kind: IntentCompleteTask, TaskID: 2}},
		{text: "done #3", want: Intent{Kind: IntentCompleteTask, TaskID: 3}},
		{text: "delete the reminder about milk", want: Intent{Kind: IntentDeleteTask, TaskID: 3, Confirm: true}},
		{text: "cancel the thesis proposal", want: Intent{Kind: IntentDeleteTask, TaskID: 2, Confirm: true}},
		{text: "iptal et #1", want: Intent{Kind: IntentDeleteTask, TaskID: 1, Confirm: true}},
		{text: "finish thesis proposal", want: Intent{Kind: IntentCreateTask, Title: "finish thesis proposal"}},
		{text: "cancel gym membership", want: Intent{Kind: IntentCreateTask, Title: "cancel gym membership"}},
		{text: "delete #2", want: Intent{Kind: IntentDeleteTask, TaskID: 2, Confirm: true}},
		{text: "snooze thesis proposal 1 day", want: Intent{Kind: IntentSnoozeTask, TaskID: 2, Snooze: 24 * time.Hour}},
		{text: "summary", want: Intent{Kind: IntentSummary}},
		{text: "özet", want: Intent{Kind: IntentSummary}},
		{text: "show templates", want: Intent{Kind: IntentTemplates}},
		{text: "list my tasks", want: Intent{Kind: IntentListTasks, Scope: ScopeAll}},
		{text: "goal 2025 publish two papers", want: Intent{Kind: IntentAddGoal, Year: 2025, Title: "publish two papers"}},
		{text: "new goal for 2026: defend the thesis", want: Intent{Kind: IntentAddGoal, Year: 2026, Title: "defend the thesis"}},
		{text: "/today", want: Intent{Kind: IntentListTasks, Scope: ScopeToday}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Resolve(tt.text, testEnv())
			require.NoError(t, err)
			assert.Equal(t, tt.want.Kind, got.Kind)
			assert.Equal(t, tt.want.TaskID, got.TaskID)
			assert.Equal(t, tt.want.Title, got.Title)
			assert.Equal(t, tt.want.Snooze, got.Snooze)
			assert.Equal(t, tt.want.Scope, got.Scope)
			assert.Equal(t, tt.want.Year, got.Year)
			assert.Equal(t, tt.want.Confirm, got.Confirm)
			if tt.want.Due == nil {
				assert.Nil(t, got.Due)
			} else {
				require.NotNil(t, got.Due)
				assert.True(t, got.Due.Equal(*tt.want.Due), "due = %v", got.Due)
			}
		})
	}
}

func TestResolveQueriesWithTimeAreTasks(t *testing.T) {
	got, err := Resolve("write the summary tomorrow", testEnv())
	require.NoError(t, err)
	assert.Equal(t, IntentCreateTask, got.Kind)
	assert.Equal(t, "write the summary", got.Title)
	require.NotNil(t, got.Due)
	assert.True(t, got.Due.Equal(time.Date(2024, time.June, 11, 9, 0, 0, 0, time.UTC)))
}

func TestResolveReminderNeverTouchesStoredTasks(t *testing.T) {
	env := testEnv()
	env.Tasks = append(env.Tasks, Task{ID: 4, Title: "dentist appointment"})

	tests := []struct {
		text  string
		title string
	}{
		{text: "remind me to cancel the dentist appointment tomorrow", title: "cancel the dentist appointment"},
		{text: "remind me to delete the old thesis proposal draft", title: "delete the old thesis proposal draft"},
		{text: "finish thesis proposal this week", title: "finish thesis proposal"},
		{text: "complete the thesis proposal by friday", title: "complete the thesis proposal"},
		{text: "tez önerisini bitirmeyi hatırlat", title: "tez önerisini bitirmeyi"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Resolve(tt.text, env)
			require.NoError(t, err)
			assert.Equal(t, IntentCreateTask, got.Kind)
			assert.Zero(t, got.TaskID)
			assert.Equal(t, tt.title, got.Title)
		})
	}

	// Without any pending task it is still a new task, not a clarification.
	env.Tasks = nil
	got, err := Resolve("finish thesis proposal this week", env)
	require.NoError(t, err)
	assert.Equal(t, IntentCreateTask, got.Kind)
}

func TestResolveTemplates(t *testing.T) {
	want := map[string]IntentKind{
		"remind me about advisor meeting tomorrow at 15:00": IntentCreateTask,
		"finish thesis proposal this week":                  IntentCreateTask,
		"submit the report on friday at 5pm":                IntentCreateTask,
		"call the lab in 2 hours":                           IntentCreateTask,
		"done advisor meeting":                              IntentCompleteTask,
		"delete the reminder about advisor meeting":         IntentDeleteTask,
		"snooze thesis proposal 1 day":                      IntentSnoozeTask,
		"goal 2025 publish two papers":                      IntentAddGoal,
		"Bana yarın 15:00 danışman toplantısını hatırlat":   IntentCreateTask,
		"Bu hafta tez önerisini bitirmeyi hatırlat":         IntentCreateTask,
		"summary":                                           IntentSummary,
	}
	require.Len(t, Templates, len(want))
	for _, text := range Templates {
		got, err := Resolve(text, testEnv())
		require.NoError(t, err, text)
		assert.Equal(t, want[text], got.Kind, text)
		if got.Kind == IntentDeleteTask {
			assert.True(t, got.Confirm, text)
		}
	}
}

func TestDeleteRequested(t *testing.T) {
	for _, text := range []string{"delete advisor meeting", "sil #2", "cancel the meeting", "cancel #4", "toplantıyı iptal et"} {
		assert.True(t, deleteRequested(intentTokens(text)), text)
	}
	for _, text := range []string{"cancel gym membership", "iptal", "book the lab"} {
		assert.False(t, deleteRequested(intentTokens(text)), text)
	}
}

func TestResolveSmallTalk(t *testing.T) {
	for _, text := range []string{"hello", "Merhaba!", "thanks a lot", "sağ ol", "who are you"} {
		got, err := Resolve(text, testEnv())
		require.NoError(t, err, text)
		assert.Equal(t, IntentSmallTalk, got.Kind, text)
		assert.NotEmpty(t, got.Reply, text)
		assert.False(t, got.Kind.Mutates())
	}

	// Longer messages that start with a greeting are tasks.
	got, err := Resolve("hey remember to book the lab room", testEnv())
	require.NoError(t, err)
	assert.Equal(t, IntentCreateTask, got.Kind)
}

func TestResolveAmbiguous(t *testing.T) {
	env := testEnv()
	env.Tasks = append(env.Tasks, Task{ID: 4, Title: "advisor meeting notes"})

	tests := []struct {
		text   string
		reason string
	}{
		{text: "", reason: "Send /help to see what I can do."},
		{text: "remind me", reason: "What should I remind you about?"},
		{text: "done advisor meeting", reason: "Several tasks match. Please use the id:"},
		{text: "delete dentist", reason: `No pending task matches "dentist".`},
		{text: "snooze advisor meeting", reason: "For how long?"},
		{text: "goal 2025", reason: "Goal text is missing."},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := Resolve(tt.text, env)
			var amb *AmbiguousIntentError
			require.ErrorAs(t, err, &amb)
			assert.Contains(t, amb.Reason, tt.reason)
			assert.Equal(t, tt.text, amb.Input)
		})
	}
}

func TestIntentKind(t *testing.T) {
	assert.Equal(t, "create_task", IntentCreateTask.String())
	assert.Equal(t, "intent(99)", IntentKind(99).String())
	assert.True(t, IntentDeleteTask.Mutates())
	assert.False(t, IntentListTasks.Mutates())
}
