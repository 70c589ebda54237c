package assistant

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const (
	// DriverModernc is the pure-Go SQLite driver; FTS5 is always available.
	DriverModernc = "sqlite"
	// DriverCgo is github.com/mattn/go-sqlite3; FTS5 needs the sqlite_fts5 build tag.
	DriverCgo = "sqlite3"
)

// StoreOptions configures Open.
type StoreOptions struct {
	// Driver is DriverModernc (default) or DriverCgo
	Driver string

	Logger *zap.Logger

	// Now overrides the clock used for created/discovered/read timestamps
	Now func() time.Time
}

// Store is the persistent relational data layer for tasks, papers, goals
// and settings.
type Store struct {
	path   string
	db     *gorm.DB
	log    *zap.Logger
	now    func() time.Time
	hasFTS bool
}

// Open opens or creates the store at path.
func Open(path string, opts *StoreOptions) (*Store, error) {
	if opts == nil {
		opts = &StoreOptions{}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	driver := opts.Driver
	if driver == "" {
		driver = DriverModernc
	}
	dsn, err := storeDSN(driver, path)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Dialector{
		DriverName: driver,
		DSN:        dsn,
	}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return dbTime(now())
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{
		path: path,
		db:   db,
		log:  log,
		now:  now,
	}
	if err := s.initSchema(); err != nil {
		s.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func storeDSN(driver, path string) (string, error) {
	switch driver {
	case DriverModernc:
		return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite", nil
	case DriverCgo:
		return path + "?_foreign_keys=1&_busy_timeout=5000&_journal_mode=WAL", nil
	}
	return "", &ConfigError{Field: "DB_DRIVER", Reason: fmt.Sprintf("unknown driver %q (want %q or %q)", driver, DriverModernc, DriverCgo)}
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// HasFTS reports whether full-text paper search is available.
func (s *Store) HasFTS() bool {
	return s.hasFTS
}

func (s *Store) initSchema() error {
	if err := s.db.AutoMigrate(&Task{}, &Paper{}, &ReadEvent{}, &Goal{}, &Setting{}, &RunState{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// FTS5 virtual tables and triggers need raw SQL; GORM has no FTS5 support.
	ftsSchema := `
	CREATE VIRTUAL TABLE IF NOT EXISTS papers_fts USING fts5(
		title,
		abstract,
		summary,
		content='papers',
		content_rowid='id'
	);

	CREATE TRIGGER IF NOT EXISTS papers_ai AFTER INSERT ON papers BEGIN
		INSERT INTO papers_fts(rowid, title, abstract, summary)
		VALUES (NEW.id, NEW.title, NEW.abstract, NEW.summary);
	END;

	CREATE TRIGGER IF NOT EXISTS papers_ad AFTER DELETE ON papers BEGIN
		INSERT INTO papers_fts(papers_fts, rowid, title, abstract, summary)
		VALUES ('delete', OLD.id, OLD.title, OLD.abstract, OLD.summary);
	END;

	CREATE TRIGGER IF NOT EXISTS papers_au AFTER UPDATE OF title, abstract, summary ON papers BEGIN
		INSERT INTO papers_fts(papers_fts, rowid, title, abstract, summary)
		VALUES ('delete', OLD.id, OLD.title, OLD.abstract, OLD.summary);
		INSERT INTO papers_fts(rowid, title, abstract, summary)
		VALUES (NEW.id, NEW.title, NEW.abstract, NEW.summary);
	END;
	`
	if err := s.db.Exec(ftsSchema).Error; err != nil {
		// Search falls back to LIKE queries.
		s.log.Warn("FTS5 not available, paper search uses LIKE", zap.Error(err))
		return nil
	}
	s.hasFTS = true
	return nil
}

// Stats returns row counts for the dashboard and the stats command.
func (s *Store) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}
	db := s.db.WithContext(ctx)

	if err := db.Model(&Task{}).Where("status = ?", TaskPending).Count(&stats.PendingTasks).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Task{}).Where("status = ?", TaskDone).Count(&stats.DoneTasks).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Paper{}).Count(&stats.TotalPapers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Paper{}).Where("read = ?", false).Count(&stats.UnreadPapers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Goal{}).Count(&stats.Goals).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// StoreStats contains row counts.
type StoreStats struct {
	PendingTasks int64
	DoneTasks    int64
	TotalPapers  int64
	UnreadPapers int64
	Goals        int64
}

// ReadPapers returns the number of papers marked read.
func (st *StoreStats) ReadPapers() int64 {
	return st.TotalPapers - st.UnreadPapers
}

// likePattern escapes s for a LIKE ... ESCAPE '\' clause.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
