package blockcache

import (
	"context"
	"time"

	"github.com/nimbusfs/nimbusfs/internal/logger"
	"github.com/nimbusfs/nimbusfs/pkg/layout"
	"github.com/nimbusfs/nimbusfs/pkg/metadata"
)

// WriteAt services a write of data at offset into path, per spec §4.C:
// ensure the row exists, positional-write into the covered part files
// (read-modify-write any partially-covered boundary block first), mark
// every touched block dirty, and persist the updated row.
func (c *Cache) WriteAt(ctx context.Context, path string, offset int64, data []byte) (int, error) {
	length := int64(len(data))
	if length == 0 {
		return 0, nil
	}

	now := time.Now().Unix()
	row, ok, err := c.meta.Get(path)
	if err != nil {
		return 0, err
	}
	if ok && row.IsDir() {
		return 0, metadata.NewIsDirectoryError(path)
	}
	if !ok {
		hashHex := layout.HashPath(path)
		row = metadata.Row{
			Path:      path,
			LocalPath: layout.DataPath(c.cfg.Root, hashHex, 0),
			Timestamp: now,
		}
	}

	hashHex := layout.HashPath(path)
	writeEnd := offset + length
	firstPart, lastPart := c.partSpan(offset, length)

	for partIdx := firstPart; partIdx <= lastPart; partIdx++ {
		if err := c.bitmaps.LoadBitmap(hashHex, partIdx); err != nil {
			return 0, err
		}

		dataPath := layout.DataPath(c.cfg.Root, hashHex, partIdx)
		fileSize, err := partFileSize(dataPath)
		if err != nil {
			return 0, err
		}

		partBase := partIdx * c.cfg.PartBytes
		pStart, pEnd := c.partByteRange(partIdx, offset, length)
		blockStart, blockEnd := c.blockSpan(pStart-partBase, pEnd-partBase)
		oldPartObjSize := clip(row.Size-partBase, 0, c.cfg.PartBytes)

		f, err := openPartForWrite(dataPath)
		if err != nil {
			return 0, err
		}

		for b := blockStart; b <= blockEnd; b++ {
			bStart, bEnd := c.blockByteRange(b)
			blockGlobalStart := partBase + bStart
			blockGlobalEnd := partBase + bEnd
			partial := blockGlobalStart < offset || blockGlobalEnd > writeEnd

			if partial {
				effectiveEnd := bEnd
				if effectiveEnd > oldPartObjSize {
					effectiveEnd = oldPartObjSize
				}
				alreadyPresent := fileSize >= effectiveEnd || c.bitmaps.IsBlockDirty(hashHex, partIdx, b)
				if !alreadyPresent && effectiveEnd > bStart {
					fetched, err := c.remote.Fetch(ctx, path, partBase+bStart, effectiveEnd-bStart)
					if err != nil {
						f.Close()
						return 0, err
					}
					if _, err := f.WriteAt(fetched, bStart); err != nil {
						f.Close()
						return 0, err
					}
				}
			}

			c.bitmaps.MarkDirtyBlock(hashHex, partIdx, b)
		}

		if _, err := f.WriteAt(data[pStart-offset:pEnd-offset], pStart-partBase); err != nil {
			f.Close()
			return 0, err
		}
		f.Close()
	}

	if writeEnd > row.Size {
		row.Size = writeEnd
	}
	row.Dirty = true
	row.Timestamp = now
	row.LastAccessed = now
	if err := c.meta.Put(row); err != nil {
		return 0, err
	}

	logger.DebugCtx(ctx, "write", logger.Path(path), logger.Offset(offset), logger.BytesWritten(int(length)), logger.HashHex(hashHex))
	return int(length), nil
}
