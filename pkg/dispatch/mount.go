package dispatch

import (
	"fmt"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/nimbusfs/nimbusfs/pkg/blockcache"
	"github.com/nimbusfs/nimbusfs/pkg/lifecycle"
	"github.com/nimbusfs/nimbusfs/pkg/remote"
)

// Mount starts a FUSE server rooted at mountpoint, serving the given
// cache engine. The caller owns the returned server's lifecycle (Wait,
// Unmount).
func Mount(mountpoint string, cache *blockcache.Cache, lifecyc *lifecycle.Manager, rem remote.Store, debug bool) (*fuse.Server, error) {
	d := New(cache, lifecyc, rem)

	server, err := fs.Mount(mountpoint, d.Root(), d.Options(debug))
	if err != nil {
		return nil, fmt.Errorf("dispatch: mount %s: %w", mountpoint, err)
	}
	return server, nil
}
