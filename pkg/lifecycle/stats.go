package lifecycle

import "time"

// Stats returns a point-in-time snapshot of cache occupancy, for the
// control API's status endpoint: approximate dirty bytes (the declared
// size of every dirty object, not the precise dirty-block count), clean
// bytes (on-disk bytes not accounted for by dirty objects), the
// configured capacity, and the last completed writeback pass.
func (m *Manager) Stats() (dirtyBytes, cleanBytes, capacityBytes int64, lastWriteback time.Time) {
	capacityBytes = m.cfg.CapacityBytes
	lastWriteback = m.lastWriteback()

	entries, err := m.meta.AllEntries()
	if err != nil {
		return 0, 0, capacityBytes, lastWriteback
	}
	for _, row := range entries {
		if !row.IsDir() && row.Dirty {
			dirtyBytes += row.Size
		}
	}

	total, err := m.diskUsage()
	if err != nil {
		return dirtyBytes, 0, capacityBytes, lastWriteback
	}
	cleanBytes = total - dirtyBytes
	if cleanBytes < 0 {
		cleanBytes = 0
	}
	return dirtyBytes, cleanBytes, capacityBytes, lastWriteback
}

func (m *Manager) lastWriteback() time.Time {
	unix := m.lastWritebackAt.Load()
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}
