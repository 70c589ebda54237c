package assistant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Settings keys.
const (
	keyThesisTopic   = "thesis_topic"
	keyPaperKeywords = "paper_keywords"
	keyPaperScanTime = "paper_scan_time"
	keyDigestTime    = "morning_digest_time"
	keyTimezone      = "timezone"
)

// Run state keys.
const (
	StateLastScan   = "last_scan"
	StateLastDigest = "last_digest"
	StateChatID     = "chat_id"
)

// Settings is the singleton settings record. Components receive a copy at
// construction or load a fresh one at the start of each scheduled run.
type Settings struct {
	ThesisTopic   string
	Keywords      []string
	PaperScanTime string // HH:MM
	DigestTime    string // HH:MM
	Timezone      string // IANA name
}

// Location returns the configured time zone.
func (st Settings) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(st.Timezone)
	if err != nil {
		return nil, &ConfigError{Field: "timezone", Reason: err.Error()}
	}
	return loc, nil
}

// Validate checks the settings record.
func (st Settings) Validate() error {
	if strings.TrimSpace(st.ThesisTopic) == "" {
		return &ConfigError{Field: "thesis_topic", Reason: "must not be empty"}
	}
	if len(st.Keywords) == 0 {
		return &ConfigError{Field: "paper_keywords", Reason: "at least one keyword is required"}
	}
	if _, _, err := ParseClock(st.PaperScanTime); err != nil {
		return &ConfigError{Field: "paper_scan_time", Reason: err.Error()}
	}
	if _, _, err := ParseClock(st.DigestTime); err != nil {
		return &ConfigError{Field: "morning_digest_time", Reason: err.Error()}
	}
	if _, err := st.Location(); err != nil {
		return err
	}
	return nil
}

// KeywordString joins the keywords for display and storage.
func (st Settings) KeywordString() string {
	return strings.Join(st.Keywords, ", ")
}

// SplitKeywords parses a comma-separated keyword list.
func SplitKeywords(s string) []string {
	var out []string
	for _, kw := range strings.Split(s, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// ParseClock parses "HH:MM" (or "H") into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 0 || len(parts) > 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	if len(parts) == 2 {
		minute, err = strconv.Atoi(parts[1])
		if err != nil || minute < 0 || minute > 59 {
			return 0, 0, fmt.Errorf("invalid minute in %q", s)
		}
	}
	return hour, minute, nil
}

// LoadSettings reads the settings record, using defaults for missing keys.
func (s *Store) LoadSettings(ctx context.Context, defaults Settings) (Settings, error) {
	var rows []Setting
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	st := defaults
	for _, r := range rows {
		if r.Value == "" {
			continue
		}
		switch r.Key {
		case keyThesisTopic:
			st.ThesisTopic = r.Value
		case keyPaperKeywords:
			st.Keywords = SplitKeywords(r.Value)
		case keyPaperScanTime:
			st.PaperScanTime = r.Value
		case keyDigestTime:
			st.DigestTime = r.Value
		case keyTimezone:
			st.Timezone = r.Value
		}
	}
	return st, nil
}

// SaveSettings validates and writes the whole settings record.
func (s *Store) SaveSettings(ctx context.Context, st Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	rows := []Setting{
		{Key: keyThesisTopic, Value: strings.TrimSpace(st.ThesisTopic)},
		{Key: keyPaperKeywords, Value: strings.Join(st.Keywords, ",")},
		{Key: keyPaperScanTime, Value: st.PaperScanTime},
		{Key: keyDigestTime, Value: st.DigestTime},
		{Key: keyTimezone, Value: st.Timezone},
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// EnsureSettings seeds missing settings keys from defaults.
func (s *Store) EnsureSettings(ctx context.Context, defaults Settings) error {
	rows := []Setting{
		{Key: keyThesisTopic, Value: defaults.ThesisTopic},
		{Key: keyPaperKeywords, Value: strings.Join(defaults.Keywords, ",")},
		{Key: keyPaperScanTime, Value: defaults.PaperScanTime},
		{Key: keyDigestTime, Value: defaults.DigestTime},
		{Key: keyTimezone, Value: defaults.Timezone},
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return nil
}

// State returns a run-state value, or "" when unset.
func (s *Store) State(ctx context.Context, key string) (string, error) {
	var st RunState
	err := s.db.WithContext(ctx).First(&st, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get state %s: %w", key, err)
	}
	return st.Value, nil
}

// SetState writes a run-state value.
func (s *Store) SetState(ctx context.Context, key, value string) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&RunState{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}
	return nil
}

// StateTime returns a run-state timestamp, or the zero time when unset.
func (s *Store) StateTime(ctx context.Context, key string) (time.Time, error) {
	v, err := s.State(ctx, key)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("state %s: %w", key, err)
	}
	return t, nil
}

// SetStateTime writes a run-state timestamp.
func (s *Store) SetStateTime(ctx context.Context, key string, t time.Time) error {
	return s.SetState(ctx, key, t.UTC().Format(time.RFC3339))
}
