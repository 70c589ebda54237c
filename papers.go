package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaperFilter selects papers for ListPapers.
type PaperFilter struct {
	// Read filters by read flag; nil means any
	Read *bool

	// Since keeps papers discovered at or after this time
	Since *time.Time

	// Source filters by source; empty means any
	Source PaperSource

	Offset int
	Limit  int
}

// InsertPaper stores an accepted paper. It reports false, with no error,
// when a paper with the same (source, external id) already exists.
func (s *Store) InsertPaper(ctx context.Context, p *Paper) (bool, error) {
	if p.DiscoveredAt.IsZero() {
		p.DiscoveredAt = s.now()
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source"}, {Name: "external_id"}},
			DoNothing: true,
		}).
		Create(p)
	if res.Error != nil {
		return false, fmt.Errorf("insert paper %s/%s: %w", p.Source, p.ExternalID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// KnownPaperIDs returns which of the external ids are already stored for source.
func (s *Store) KnownPaperIDs(ctx context.Context, source PaperSource, externalIDs []string) (map[string]bool, error) {
	known := make(map[string]bool)
	// Stay well under SQLite's bound-parameter limit.
	for start := 0; start < len(externalIDs); start += 500 {
		end := min(start+500, len(externalIDs))
		var ids []string
		err := s.db.WithContext(ctx).Model(&Paper{}).
			Where("source = ? AND external_id IN ?", source, externalIDs[start:end]).
			Pluck("external_id", &ids).Error
		if err != nil {
			return nil, fmt.Errorf("known papers: %w", err)
		}
		for _, id := range ids {
			known[id] = true
		}
	}
	return known, nil
}

// GetPaper returns the paper with the given id.
func (s *Store) GetPaper(ctx context.Context, id int64) (*Paper, error) {
	var p Paper
	err := s.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Kind: "paper", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get paper %d: %w", id, err)
	}
	return &p, nil
}

// ListPapers returns papers ordered by score (highest first), then id.
func (s *Store) ListPapers(ctx context.Context, f PaperFilter) ([]Paper, error) {
	query := s.db.WithContext(ctx).Model(&Paper{})
	if f.Read != nil {
		query = query.Where("read = ?", *f.Read)
	}
	if f.Since != nil {
		query = query.Where("discovered_at >= ?", dbTime(*f.Since))
	}
	if f.Source != "" {
		query = query.Where("source = ?", f.Source)
	}
	query = query.Order("score DESC, id ASC")
	if f.Offset > 0 {
		query = query.Offset(f.Offset)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var papers []Paper
	if err := query.Find(&papers).Error; err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	return papers, nil
}

// RecentPapers returns papers discovered most recently, newest first.
func (s *Store) RecentPapers(ctx context.Context, limit int) ([]Paper, error) {
	if limit <= 0 {
		limit = 20
	}
	var papers []Paper
	err := s.db.WithContext(ctx).
		Order("discovered_at DESC, id DESC").
		Limit(limit).
		Find(&papers).Error
	return papers, err
}

// CountPapers counts papers; read nil means all.
func (s *Store) CountPapers(ctx context.Context, read *bool) (int64, error) {
	var n int64
	query := s.db.WithContext(ctx).Model(&Paper{})
	if read != nil {
		query = query.Where("read = ?", *read)
	}
	err := query.Count(&n).Error
	return n, err
}

// MarkPaperRead sets the read flag and appends a read event in one transaction.
func (s *Store) MarkPaperRead(ctx context.Context, id int64) (*Paper, error) {
	at := dbTime(s.now())
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Paper{}).Where("id = ?", id).Updates(map[string]any{
			"read":    true,
			"read_at": at,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &NotFoundError{Kind: "paper", ID: id}
		}
		return tx.Create(&ReadEvent{PaperID: id, ReadAt: at}).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("mark paper %d read: %w", id, err)
	}
	return s.GetPaper(ctx, id)
}

// ReadTimes returns the timestamps of all read events, newest first.
func (s *Store) ReadTimes(ctx context.Context) ([]time.Time, error) {
	var events []ReadEvent
	if err := s.db.WithContext(ctx).Order("read_at DESC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	times := make([]time.Time, len(events))
	for i, e := range events {
		times[i] = e.ReadAt
	}
	return times, nil
}

// SearchPapers searches title, abstract and summary. It uses FTS5 when
// available and falls back to LIKE otherwise.
func (s *Store) SearchPapers(ctx context.Context, query string, limit int) ([]Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	if s.hasFTS {
		papers, err := s.searchFTS(ctx, query, limit)
		if err == nil {
			return papers, nil
		}
		// FTS5 rejects some user input (unbalanced quotes, bare operators).
		s.log.Debug("fts query failed, falling back to LIKE", zap.String("query", query), zap.Error(err))
	}

	pattern := likePattern(query)
	var papers []Paper
	err := s.db.WithContext(ctx).
		Where(`title LIKE ? ESCAPE '\' OR abstract LIKE ? ESCAPE '\' OR summary LIKE ? ESCAPE '\'`, pattern, pattern, pattern).
		Order("score DESC, id ASC").
		Limit(limit).
		Find(&papers).Error
	if err != nil {
		return nil, fmt.Errorf("search papers: %w", err)
	}
	return papers, nil
}

// searchFTS must use raw SQL for MATCH; GORM doesn't support FTS5.
func (s *Store) searchFTS(ctx context.Context, query string, limit int) ([]Paper, error) {
	var papers []Paper
	err := s.db.WithContext(ctx).Raw(`
		SELECT p.*
		FROM papers p
		JOIN papers_fts fts ON p.id = fts.rowid
		WHERE papers_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit).Scan(&papers).Error
	return papers, err
}
