package blockcache

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/nimbusfs/nimbusfs/internal/logger"
	"github.com/nimbusfs/nimbusfs/pkg/layout"
	"github.com/nimbusfs/nimbusfs/pkg/metadata"
)

// Rename moves oldPath to newPath, per spec §4.C: every materialized part
// and bitmap file moves to the new content-hash layout, the dirty state
// (including any in-flight in-memory bitmap) carries over unchanged, and
// the old metadata row is replaced by a new one under newPath.
func (c *Cache) Rename(ctx context.Context, oldPath, newPath string) error {
	row, ok, err := c.meta.Get(oldPath)
	if err != nil {
		return err
	}
	if !ok {
		return metadata.NewNotFoundError(oldPath)
	}

	oldHash := layout.HashPath(oldPath)
	newHash := layout.HashPath(newPath)

	if !row.IsDir() {
		lastPart := lastPartIndex(row.Size, c.cfg.PartBytes)
		for idx := int64(0); idx <= lastPart; idx++ {
			if err := moveIfExists(layout.DataPath(c.cfg.Root, oldHash, idx), layout.DataPath(c.cfg.Root, newHash, idx)); err != nil {
				return err
			}
			if err := moveIfExists(layout.BitmapPath(c.cfg.Root, oldHash, idx), layout.BitmapPath(c.cfg.Root, newHash, idx)); err != nil {
				return err
			}

			if err := c.bitmaps.LoadBitmap(oldHash, idx); err != nil {
				return err
			}
			for _, b := range c.bitmaps.DirtyBlockIndices(oldHash, idx) {
				c.bitmaps.MarkDirtyBlock(newHash, idx, b)
			}
			c.bitmaps.Forget(oldHash, idx)
		}
	}

	newRow := row
	newRow.Path = newPath
	if !row.IsDir() {
		newRow.LocalPath = layout.DataPath(c.cfg.Root, newHash, 0)
	}
	newRow.LastAccessed = time.Now().Unix()

	if err := c.meta.Put(newRow); err != nil {
		return err
	}
	if err := c.meta.Remove(oldPath); err != nil {
		return err
	}

	logger.DebugCtx(ctx, "rename", logger.OldPath(oldPath), logger.NewPath(newPath), logger.HashHex(newHash))
	return nil
}

// moveIfExists renames src to dst, creating dst's parent directory. A
// missing src is not an error.
func moveIfExists(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.Rename(src, dst)
}
