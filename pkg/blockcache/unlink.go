package blockcache

import (
	"context"

	"github.com/nimbusfs/nimbusfs/internal/logger"
	"github.com/nimbusfs/nimbusfs/pkg/layout"
	"github.com/nimbusfs/nimbusfs/pkg/metadata"
)

// Unlink removes path locally, per spec §4.C: the object's parts,
// bitmaps, and metadata row are removed regardless of dirty state — the
// caller's intent is deletion. Whether a remote DELETE is owed is a
// dispatcher-level concern (spec §4.F), not decided here.
func (c *Cache) Unlink(ctx context.Context, path string) error {
	row, ok, err := c.meta.Get(path)
	if err != nil {
		return err
	}
	if !ok {
		return metadata.NewNotFoundError(path)
	}

	if !row.IsDir() {
		hashHex := layout.HashPath(path)
		lastPart := lastPartIndex(row.Size, c.cfg.PartBytes)
		for idx := int64(0); idx <= lastPart; idx++ {
			removePart(c.cfg.Root, hashHex, idx)
			c.bitmaps.Forget(hashHex, idx)
		}
	}

	if err := c.meta.Remove(path); err != nil {
		return err
	}

	logger.DebugCtx(ctx, "unlink", logger.Path(path))
	return nil
}
