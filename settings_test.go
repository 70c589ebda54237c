package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in           string
		hour, minute int
		wantErr      bool
	}{
		{in: "07:30", hour: 7, minute: 30},
		{in: "9", hour: 9},
		{in: " 23:59 ", hour: 23, minute: 59},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "1:2:3", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hour, h)
			assert.Equal(t, tt.minute, m)
		})
	}
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Settings)
		field string
	}{
		{name: "empty topic", edit: func(s *Settings) { s.ThesisTopic = " " }, field: "thesis_topic"},
		{name: "no keywords", edit: func(s *Settings) { s.Keywords = nil }, field: "paper_keywords"},
		{name: "bad scan time", edit: func(s *Settings) { s.PaperScanTime = "7am" }, field: "paper_scan_time"},
		{name: "bad digest time", edit: func(s *Settings) { s.DigestTime = "25:00" }, field: "morning_digest_time"},
		{name: "bad timezone", edit: func(s *Settings) { s.Timezone = "Mars/Olympus" }, field: "timezone"},
	}
	require.NoError(t, testSettings.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := testSettings
			st.Keywords = append([]string(nil), testSettings.Keywords...)
			tt.edit(&st)
			var cerr *ConfigError
			require.ErrorAs(t, st.Validate(), &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestSplitKeywords(t *testing.T) {
	assert.Equal(t, []string{"SAR", "remote sensing"}, SplitKeywords(" SAR, ,remote sensing ,"))
	assert.Nil(t, SplitKeywords(""))
}

func TestStoreSettings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestClock(testNow))

	st, err := s.LoadSettings(ctx, Settings{})
	require.NoError(t, err)
	assert.Equal(t, testSettings, st)

	t.Run("ensure keeps existing values", func(t *testing.T) {
		other := testSettings
		other.ThesisTopic = "something else"
		require.NoError(t, s.EnsureSettings(ctx, other))
		st, err := s.LoadSettings(ctx, Settings{})
		require.NoError(t, err)
		assert.Equal(t, testSettings.ThesisTopic, st.ThesisTopic)
	})

	t.Run("save replaces the record", func(t *testing.T) {
		updated := Settings{
			ThesisTopic:   "Self-supervised despeckling",
			Keywords:      []string{"despeckling", "self-supervised"},
			PaperScanTime: "06:00",
			DigestTime:    "09:15",
			Timezone:      "Europe/Istanbul",
		}
		require.NoError(t, s.SaveSettings(ctx, updated))
		st, err := s.LoadSettings(ctx, Settings{})
		require.NoError(t, err)
		assert.Equal(t, updated, st)
	})

	t.Run("invalid settings are rejected", func(t *testing.T) {
		bad := testSettings
		bad.DigestTime = "late"
		var cerr *ConfigError
		require.ErrorAs(t, s.SaveSettings(ctx, bad), &cerr)

		st, err := s.LoadSettings(ctx, Settings{})
		require.NoError(t, err)
		assert.Equal(t, "09:15", st.DigestTime)
	})
}

func TestStoreRunState(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestClock(testNow))

	v, err := s.State(ctx, StateChatID)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetState(ctx, StateChatID, "42"))
	require.NoError(t, s.SetState(ctx, StateChatID, "43"))
	v, err = s.State(ctx, StateChatID)
	require.NoError(t, err)
	assert.Equal(t, "43", v)

	at, err := s.StateTime(ctx, StateLastScan)
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	ist, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)
	require.NoError(t, s.SetStateTime(ctx, StateLastScan, testNow.In(ist)))
	at, err = s.StateTime(ctx, StateLastScan)
	require.NoError(t, err)
	assert.True(t, at.Equal(testNow))
}
