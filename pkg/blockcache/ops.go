package blockcache

import (
	"context"
	"time"

	"github.com/nimbusfs/nimbusfs/internal/logger"
	"github.com/nimbusfs/nimbusfs/pkg/layout"
	"github.com/nimbusfs/nimbusfs/pkg/metadata"
)

// Stat resolves path's metadata row, per spec §4.F's getattr mapping: a
// local miss falls through to a remote stat and synthesizes a row from
// the result rather than failing outright.
func (c *Cache) Stat(ctx context.Context, path string) (metadata.Row, error) {
	row, ok, err := c.meta.Get(path)
	if err != nil {
		return metadata.Row{}, err
	}
	if ok {
		return row, nil
	}

	info, err := c.remote.Stat(ctx, path)
	if err != nil {
		return metadata.Row{}, err
	}

	now := time.Now().Unix()
	row = metadata.Row{Path: path, Size: info.Size, Timestamp: info.Timestamp, LastAccessed: now}
	if !info.IsDir {
		row.LocalPath = "" // materialized lazily on first read/write, not on stat
	}
	if err := c.meta.Put(row); err != nil {
		return metadata.Row{}, err
	}
	return row, nil
}

// Open ensures a metadata row exists for path, performing no data I/O,
// per spec §4.F's open mapping.
func (c *Cache) Open(ctx context.Context, path string) error {
	_, err := c.Stat(ctx, path)
	return err
}

// CreateFile creates an empty regular file row for path, materializing
// an empty part-0 file so the row is distinguishable from a directory
// (both would otherwise read as size-zero, no-local-path).
func (c *Cache) CreateFile(ctx context.Context, path string) error {
	if row, ok, err := c.meta.Get(path); err != nil {
		return err
	} else if ok {
		if row.IsDir() {
			return metadata.NewIsDirectoryError(path)
		}
		return metadata.NewAlreadyExistsError(path)
	}

	hashHex := layout.HashPath(path)
	dataPath := layout.DataPath(c.cfg.Root, hashHex, 0)
	f, err := openPartForWrite(dataPath)
	if err != nil {
		return err
	}
	f.Close()

	now := time.Now().Unix()
	row := metadata.Row{Path: path, LocalPath: dataPath, Timestamp: now, LastAccessed: now}
	if err := c.meta.Put(row); err != nil {
		return err
	}
	logger.DebugCtx(ctx, "create", logger.Path(path), logger.HashHex(hashHex))
	return nil
}

// Mkdir creates a directory row for path (size zero, no local path).
func (c *Cache) Mkdir(ctx context.Context, path string) error {
	if _, ok, err := c.meta.Get(path); err != nil {
		return err
	} else if ok {
		return metadata.NewAlreadyExistsError(path)
	}

	now := time.Now().Unix()
	row := metadata.Row{Path: path, Timestamp: now, LastAccessed: now}
	if err := c.meta.Put(row); err != nil {
		return err
	}
	logger.DebugCtx(ctx, "mkdir", logger.Path(path))
	return nil
}

// Rmdir removes an empty directory row for path.
func (c *Cache) Rmdir(ctx context.Context, path string) error {
	row, ok, err := c.meta.Get(path)
	if err != nil {
		return err
	}
	if !ok {
		return metadata.NewNotFoundError(path)
	}
	if !row.IsDir() {
		return metadata.NewNotDirectoryError(path)
	}

	entries, err := c.meta.AllEntries()
	if err != nil {
		return err
	}
	if len(metadata.ListDir(entries, path)) > 0 {
		return metadata.NewAlreadyExistsError(path)
	}

	return c.meta.Remove(path)
}

// Readdir returns the immediate children of path.
func (c *Cache) Readdir(ctx context.Context, path string) ([]metadata.Row, error) {
	entries, err := c.meta.AllEntries()
	if err != nil {
		return nil, err
	}
	return metadata.ListDir(entries, path), nil
}
