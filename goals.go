package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// CreateGoal inserts a yearly goal.
func (s *Store) CreateGoal(ctx context.Context, g *Goal) error {
	g.Title = strings.TrimSpace(g.Title)
	if g.Title == "" {
		return errors.New("create goal: empty title")
	}
	if g.Year < 1970 || g.Year > 9999 {
		return fmt.Errorf("create goal: invalid year %d", g.Year)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = dbTime(s.now())
	}
	if err := s.db.WithContext(ctx).Create(g).Error; err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	return nil
}

// ListGoals returns goals, latest year first.
func (s *Store) ListGoals(ctx context.Context) ([]Goal, error) {
	var goals []Goal
	err := s.db.WithContext(ctx).Order("year DESC, created_at DESC, id DESC").Find(&goals).Error
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

// DeleteGoal removes a goal.
func (s *Store) DeleteGoal(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&Goal{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete goal %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Kind: "goal", ID: id}
	}
	return nil
}
