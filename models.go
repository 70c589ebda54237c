package assistant

import (
	"time"

	"gorm.io/gorm"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskDone    TaskStatus = "done"
)

// Task is a to-do item tracked through chat or the dashboard.
type Task struct {
	ID int64 `gorm:"primaryKey"`

	// Title is the free-text description
	Title string `gorm:"not null"`

	// DueAt is stored in UTC; nil means no deadline
	DueAt *time.Time `gorm:"index"`

	Status TaskStatus `gorm:"not null;default:pending;index"`

	// Source records which front-end created the task (telegram, web, cli)
	Source string

	Notes string

	// RemindedAt is set once a due reminder has been delivered
	RemindedAt *time.Time

	CreatedAt time.Time
}

func (Task) TableName() string {
	return "tasks"
}

func (t *Task) BeforeSave(*gorm.DB) error {
	t.DueAt = dbTimePtr(t.DueAt)
	t.RemindedAt = dbTimePtr(t.RemindedAt)
	if !t.CreatedAt.IsZero() {
		t.CreatedAt = dbTime(t.CreatedAt)
	}
	return nil
}

// Overdue reports whether a pending task's deadline is at or before now.
func (t *Task) Overdue(now time.Time) bool {
	return t.Status == TaskPending && t.DueAt != nil && !t.DueAt.After(now)
}

// Paper is a publication accepted by the relevance pipeline.
type Paper struct {
	ID int64 `gorm:"primaryKey"`

	Source PaperSource `gorm:"not null;uniqueIndex:idx_papers_source_external"`

	// ExternalID is the arXiv identifier (version stripped) or the
	// Semantic Scholar paperId
	ExternalID string `gorm:"not null;uniqueIndex:idx_papers_source_external"`

	Title string `gorm:"not null"`

	Abstract string `gorm:"type:text"`

	URL string

	// Authors as a single comma-separated string
	Authors string

	PublishedAt *time.Time

	// Score is the model's relevance score, 0-100
	Score float64 `gorm:"index"`

	// Summary is the model-generated one or two sentence summary
	Summary string `gorm:"type:text"`

	// Tags is a comma-separated list of short labels from the model
	Tags string

	Read bool `gorm:"not null;default:false;index"`

	ReadAt *time.Time

	DiscoveredAt time.Time `gorm:"not null;index"`
}

func (Paper) TableName() string {
	return "papers"
}

func (p *Paper) BeforeSave(*gorm.DB) error {
	p.PublishedAt = dbTimePtr(p.PublishedAt)
	p.ReadAt = dbTimePtr(p.ReadAt)
	p.DiscoveredAt = dbTime(p.DiscoveredAt)
	return nil
}

// ReadEvent records one "marked as read" action, for the reading streak.
type ReadEvent struct {
	ID      int64     `gorm:"primaryKey"`
	PaperID int64     `gorm:"not null;index"`
	ReadAt  time.Time `gorm:"not null;index"`
}

func (ReadEvent) TableName() string {
	return "reads"
}

// Goal is a yearly objective.
type Goal struct {
	ID        int64  `gorm:"primaryKey"`
	Year      int    `gorm:"not null;index"`
	Title     string `gorm:"not null"`
	CreatedAt time.Time
}

func (Goal) TableName() string {
	return "goals"
}

// Setting is one key of the settings record.
type Setting struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (Setting) TableName() string {
	return "settings"
}

// RunState stores scheduler and chat markers (last_scan, last_digest, chat_id).
type RunState struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (RunState) TableName() string {
	return "run_state"
}

// dbTime normalizes a timestamp for storage: UTC, whole seconds. Both SQLite
// drivers then write fixed-width strings that compare correctly as text.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func dbTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := dbTime(*t)
	return &v
}
