package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// TaskFilter selects tasks for ListTasks.
type TaskFilter struct {
	// Status filters by status; empty means any
	Status TaskStatus

	// DueFrom and DueUntil bound DueAt (inclusive); tasks without a due
	// time are excluded when either bound is set
	DueFrom  *time.Time
	DueUntil *time.Time

	Limit int
}

// CreateTask inserts a new pending task and fills in its ID.
func (s *Store) CreateTask(ctx context.Context, t *Task) error {
	if t.Title == "" {
		return errors.New("create task: empty title")
	}
	if t.Status == "" {
		t.Status = TaskPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask returns the task with the given id.
func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	var t Task
	err := s.db.WithContext(ctx).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return &t, nil
}

// ListTasks returns tasks ordered by due time (undated last), then newest first.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	query := s.db.WithContext(ctx).Model(&Task{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.DueFrom != nil {
		query = query.Where("due_at IS NOT NULL AND due_at >= ?", dbTime(*f.DueFrom))
	}
	if f.DueUntil != nil {
		query = query.Where("due_at IS NOT NULL AND due_at <= ?", dbTime(*f.DueUntil))
	}
	query = query.Order("due_at IS NULL, due_at ASC, created_at DESC, id ASC")
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var tasks []Task
	if err := query.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// PendingTasks returns up to limit pending tasks.
func (s *Store) PendingTasks(ctx context.Context, limit int) ([]Task, error) {
	return s.ListTasks(ctx, TaskFilter{Status: TaskPending, Limit: limit})
}

// CompleteTask marks a task done and returns it.
func (s *Store) CompleteTask(ctx context.Context, id int64) (*Task, error) {
	return s.updateTask(ctx, id, map[string]any{"status": TaskDone})
}

// SnoozeTask moves a task's due time and clears its reminder stamp.
func (s *Store) SnoozeTask(ctx context.Context, id int64, due time.Time) (*Task, error) {
	return s.updateTask(ctx, id, map[string]any{
		"due_at":      dbTime(due),
		"reminded_at": nil,
	})
}

// MarkReminded stamps the time a due reminder was delivered.
func (s *Store) MarkReminded(ctx context.Context, id int64, at time.Time) error {
	_, err := s.updateTask(ctx, id, map[string]any{"reminded_at": dbTime(at)})
	return err
}

// DeleteTask removes a task and returns the deleted row.
func (s *Store) DeleteTask(ctx context.Context, id int64) (*Task, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Delete(&Task{}, id)
	if res.Error != nil {
		return nil, fmt.Errorf("delete task %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &NotFoundError{Kind: "task", ID: id}
	}
	return t, nil
}

// DueForReminder returns pending tasks whose due time has passed and that
// have not been reminded yet.
func (s *Store) DueForReminder(ctx context.Context, now time.Time) ([]Task, error) {
	var tasks []Task
	err := s.db.WithContext(ctx).
		Where("status = ? AND due_at IS NOT NULL AND reminded_at IS NULL AND due_at <= ?", TaskPending, dbTime(now)).
		Order("due_at ASC, id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("due tasks: %w", err)
	}
	return tasks, nil
}

func (s *Store) updateTask(ctx context.Context, id int64, fields map[string]any) (*Task, error) {
	res := s.db.WithContext(ctx).Model(&Task{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, fmt.Errorf("update task %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &NotFoundError{Kind: "task", ID: id}
	}
	return s.GetTask(ctx, id)
}
