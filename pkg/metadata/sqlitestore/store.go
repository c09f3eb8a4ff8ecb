// Package sqlitestore implements pkg/metadata.Store on top of an embedded
// SQLite database via gorm, the way the teacher's control plane persists
// its own durable state.
package sqlitestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nimbusfs/nimbusfs/pkg/metadata"
)

// row is the gorm model backing metadata.Row. Kept distinct from
// metadata.Row so the durable schema doesn't need to track in-memory
// convenience methods like IsDir.
type row struct {
	Path         string `gorm:"primaryKey"`
	LocalPath    string
	Size         int64
	Timestamp    int64
	LastAccessed int64
	Dirty        bool
}

func (row) TableName() string { return "metadata" }

func toRow(r row) metadata.Row {
	return metadata.Row{
		Path:         r.Path,
		LocalPath:    r.LocalPath,
		Size:         r.Size,
		Timestamp:    r.Timestamp,
		LastAccessed: r.LastAccessed,
		Dirty:        r.Dirty,
	}
}

func fromRow(r metadata.Row) row {
	return row{
		Path:         r.Path,
		LocalPath:    r.LocalPath,
		Size:         r.Size,
		Timestamp:    r.Timestamp,
		LastAccessed: r.LastAccessed,
		Dirty:        r.Dirty,
	}
}

// Store is a gorm/sqlite-backed metadata.Store.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite database at dbPath and ensures the
// metadata table exists. WAL journaling and a busy timeout are enabled so
// the foreground dispatcher and background writeback/eviction workers can
// share the connection without lock contention, mirroring the teacher's
// own SQLite pragma choices for its control plane store.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, metadata.NewMetadataCorruptionError(fmt.Errorf("create metadata dir: %w", err))
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, metadata.NewMetadataCorruptionError(fmt.Errorf("open metadata db: %w", err))
	}

	if err := db.AutoMigrate(&row{}); err != nil {
		return nil, metadata.NewMetadataCorruptionError(fmt.Errorf("migrate metadata schema: %w", err))
	}

	return &Store{db: db}, nil
}

// Get implements metadata.Store.
func (s *Store) Get(path string) (metadata.Row, bool, error) {
	var r row
	err := s.db.First(&r, "path = ?", path).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return metadata.Row{}, false, nil
	}
	if err != nil {
		return metadata.Row{}, false, fmt.Errorf("metadata: get %q: %w", path, err)
	}
	return toRow(r), true, nil
}

// Put implements metadata.Store, upserting by primary key.
func (s *Store) Put(r metadata.Row) error {
	dbRow := fromRow(r)
	err := s.db.Save(&dbRow).Error
	if err != nil {
		return fmt.Errorf("metadata: put %q: %w", r.Path, err)
	}
	return nil
}

// UpdateAccessTime implements metadata.Store. A missing path is not an
// error: the update simply matches zero rows.
func (s *Store) UpdateAccessTime(path string, unixSeconds int64) error {
	err := s.db.Model(&row{}).Where("path = ?", path).
		Update("last_accessed", unixSeconds).Error
	if err != nil {
		return fmt.Errorf("metadata: update access time for %q: %w", path, err)
	}
	return nil
}

// MarkDirty implements metadata.Store. A missing path is not an error.
func (s *Store) MarkDirty(path string, dirty bool) error {
	err := s.db.Model(&row{}).Where("path = ?", path).
		Update("dirty", dirty).Error
	if err != nil {
		return fmt.Errorf("metadata: mark dirty for %q: %w", path, err)
	}
	return nil
}

// Remove implements metadata.Store: removes the row only, not on-disk
// parts or bitmaps.
func (s *Store) Remove(path string) error {
	err := s.db.Delete(&row{}, "path = ?", path).Error
	if err != nil {
		return fmt.Errorf("metadata: remove %q: %w", path, err)
	}
	return nil
}

// AllEntries implements metadata.Store.
func (s *Store) AllEntries() ([]metadata.Row, error) {
	var rows []row
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("metadata: list all entries: %w", err)
	}
	out := make([]metadata.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, toRow(r))
	}
	return out, nil
}

// Close implements metadata.Store.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ metadata.Store = (*Store)(nil)
