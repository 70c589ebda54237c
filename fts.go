package assistant

import "context"

// RebuildFTSIndex rebuilds the paper search index from the papers table.
// Use this after restoring a database copied from a build without FTS5.
// Note: Uses raw SQL because GORM doesn't support FTS5 virtual tables.
func (s *Store) RebuildFTSIndex(ctx context.Context) error {
	if !s.hasFTS {
		return nil
	}
	return s.db.WithContext(ctx).Exec(`INSERT INTO papers_fts(papers_fts) VALUES ('rebuild')`).Error
}
