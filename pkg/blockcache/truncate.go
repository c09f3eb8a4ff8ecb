package blockcache

import (
	"context"
	"os"
	"time"

	"github.com/nimbusfs/nimbusfs/internal/logger"
	"github.com/nimbusfs/nimbusfs/pkg/layout"
	"github.com/nimbusfs/nimbusfs/pkg/metadata"
)

// Truncate adjusts path's size to newSize, per spec §4.C: parts fully
// beyond the new size are removed, the new last part is zero-filled to
// its local length, and the affected last block is marked dirty.
func (c *Cache) Truncate(ctx context.Context, path string, newSize int64) error {
	row, ok, err := c.meta.Get(path)
	if err != nil {
		return err
	}
	if !ok {
		return metadata.NewNotFoundError(path)
	}
	if row.IsDir() {
		return metadata.NewIsDirectoryError(path)
	}

	hashHex := layout.HashPath(path)
	oldLast := lastPartIndex(row.Size, c.cfg.PartBytes)
	newLast := lastPartIndex(newSize, c.cfg.PartBytes)

	for idx := newLast + 1; idx <= oldLast; idx++ {
		removePart(c.cfg.Root, hashHex, idx)
		c.bitmaps.Forget(hashHex, idx)
	}

	if newLast >= 0 {
		dataPath := layout.DataPath(c.cfg.Root, hashHex, newLast)
		partBase := newLast * c.cfg.PartBytes
		localSize := newSize - partBase

		f, err := openPartForWrite(dataPath)
		if err != nil {
			return err
		}
		err = f.Truncate(localSize)
		f.Close()
		if err != nil {
			return err
		}

		if err := c.bitmaps.LoadBitmap(hashHex, newLast); err != nil {
			return err
		}
		lastBlock := int64(0)
		if localSize > 0 {
			lastBlock = (localSize - 1) / c.cfg.BlockBytes
		}
		c.bitmaps.MarkDirtyBlock(hashHex, newLast, lastBlock)
	}

	now := time.Now().Unix()
	row.Size = newSize
	row.Dirty = true
	row.Timestamp = now
	row.LastAccessed = now
	if err := c.meta.Put(row); err != nil {
		return err
	}

	logger.DebugCtx(ctx, "truncate", logger.Path(path), logger.Size(newSize), logger.HashHex(hashHex))
	return nil
}

// removePart deletes a part's data and bitmap files; a missing file is
// not an error.
func removePart(root, hashHex string, partIdx int64) {
	_ = os.Remove(layout.DataPath(root, hashHex, partIdx))
	_ = os.Remove(layout.BitmapPath(root, hashHex, partIdx))
}
