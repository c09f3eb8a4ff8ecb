package lifecycle

import (
	"fmt"
	"os"

	"github.com/nimbusfs/nimbusfs/pkg/remote"
)

// blockRange is a half-open [startBlock, endBlock) span of block indices,
// relative to one part.
type blockRange struct {
	startBlock int64
	endBlock   int64
}

// coalesceBlocks merges sorted, deduplicated dirty block indices into
// maximal runs, per spec §4.D: adjacent bits merge, and gaps of at most
// mergeGap blocks also merge to amortize per-request overhead.
func coalesceBlocks(indices []int64, blockBytes, mergeGap int64) []blockRange {
	if len(indices) == 0 {
		return nil
	}

	var out []blockRange
	start := indices[0]
	end := indices[0] + 1

	for i := 1; i < len(indices); i++ {
		if indices[i]-end <= mergeGap {
			end = indices[i] + 1
			continue
		}
		out = append(out, blockRange{start, end})
		start = indices[i]
		end = indices[i] + 1
	}
	out = append(out, blockRange{start, end})
	return out
}

// readRuns opens the part file at dataPath and reads the byte contents of
// each coalesced block range into a remote.Run, clipped to the file's
// actual length (the final block of the final part is typically shorter
// than blockBytes).
func readRuns(dataPath string, partBase int64, ranges []blockRange, blockBytes int64) ([]remote.Run, error) {
	if len(ranges) == 0 {
		return nil, nil
	}

	f, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: open part %s for flush: %w", dataPath, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("lifecycle: stat part %s for flush: %w", dataPath, err)
	}
	fileSize := fi.Size()

	runs := make([]remote.Run, 0, len(ranges))
	for _, r := range ranges {
		start := r.startBlock * blockBytes
		end := r.endBlock * blockBytes
		if start >= fileSize {
			continue
		}
		if end > fileSize {
			end = fileSize
		}
		buf := make([]byte, end-start)
		if _, err := f.ReadAt(buf, start); err != nil {
			return nil, fmt.Errorf("lifecycle: read part %s range [%d,%d) for flush: %w", dataPath, start, end, err)
		}
		runs = append(runs, remote.Run{Offset: partBase + start, Bytes: buf})
	}
	return runs, nil
}
