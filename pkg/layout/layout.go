// Package layout computes the deterministic mapping from a logical mount
// path to the on-disk locations of its materialized parts, bitmaps, and
// metadata database.
package layout

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// HashPath returns the lowercase hex sha256 digest of a logical path. This
// digest, not the path itself, is the stable identity used to lay out an
// object's parts and bitmaps on disk.
func HashPath(logicalPath string) string {
	sum := sha256.Sum256([]byte(logicalPath))
	return hex.EncodeToString(sum[:])
}

// DataPath returns the on-disk location of part partIdx of the object
// identified by hashHex, rooted at root.
func DataPath(root, hashHex string, partIdx int64) string {
	return filepath.Join(fanOutDir(root, "data", hashHex), fmt.Sprintf("part_%08d", partIdx))
}

// BitmapPath returns the on-disk location of the persisted dirty bitmap for
// part partIdx of the object identified by hashHex, rooted at root.
func BitmapPath(root, hashHex string, partIdx int64) string {
	return filepath.Join(fanOutDir(root, "bitmap", hashHex), fmt.Sprintf("part_%08d.bmp", partIdx))
}

// MetaDB returns the path of the metadata database file.
func MetaDB(root string) string {
	return filepath.Join(root, "metadata.db")
}

// fanOutDir builds {root}/{kind}/{hh[0:2]}/{hh[2:4]}/{hh} — a two-level hex
// fan-out that bounds the number of entries in any one directory regardless
// of how many distinct objects the cache ever sees.
func fanOutDir(root, kind, hashHex string) string {
	if len(hashHex) < 4 {
		// Defensive only for malformed digests; sha256 hex is always 64
		// characters, but a caller-supplied hash should never panic here.
		hashHex = hashHex + "0000"
	}
	return filepath.Join(root, kind, hashHex[0:2], hashHex[2:4], hashHex)
}
