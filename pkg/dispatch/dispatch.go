// Package dispatch is the FUSE operation dispatcher (component F): it
// translates kernel filesystem calls into block-cache and remote-store
// calls, per spec §4.F. It owns no cache-engine state of its own — every
// node resolves its logical path from the inode tree and defers to the
// block cache and lifecycle manager for everything else.
package dispatch

import (
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/nimbusfs/nimbusfs/pkg/blockcache"
	"github.com/nimbusfs/nimbusfs/pkg/lifecycle"
	"github.com/nimbusfs/nimbusfs/pkg/remote"
)

// Dispatcher wires a block cache, lifecycle manager, and remote store
// into a FUSE node tree.
type Dispatcher struct {
	cache    *blockcache.Cache
	lifecyc  *lifecycle.Manager
	remote   remote.Store
	rootNode *Node
}

// New builds a Dispatcher. The returned value's Root method is the entry
// point for fs.Mount.
func New(cache *blockcache.Cache, lifecyc *lifecycle.Manager, rem remote.Store) *Dispatcher {
	d := &Dispatcher{cache: cache, lifecyc: lifecyc, remote: rem}
	d.rootNode = &Node{dispatcher: d}
	return d
}

// Root returns the FUSE root inode embedder.
func (d *Dispatcher) Root() fs.InodeEmbedder {
	return d.rootNode
}

// Options returns the mount options go-fuse needs, with the root node's
// StableAttr marking it as a directory. Only the file type is set there;
// the root's Getattr is resolved through the block cache like any other
// node.
func (d *Dispatcher) Options(debug bool) *fs.Options {
	return &fs.Options{
		MountOptions: fuse.MountOptions{
			Debug:  debug,
			FsName: "nimbusfs",
			Name:   "nimbusfs",
		},
		RootStableAttr: &fs.StableAttr{Mode: fuse.S_IFDIR},
	}
}
