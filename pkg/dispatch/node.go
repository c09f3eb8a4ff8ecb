package dispatch

import (
	"context"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/nimbusfs/nimbusfs/pkg/metadata"
)

const (
	regularFileMode = fuse.S_IFREG | 0o644
	directoryMode   = fuse.S_IFDIR | 0o755
)

// Node is one FUSE inode. It carries no path of its own; the logical
// path is reconstructed from the inode tree on demand, the same
// convention go-fuse's own loopback example uses, since the cache engine
// addresses objects by path rather than by inode number.
type Node struct {
	fs.Inode
	dispatcher *Dispatcher
}

var (
	_ fs.InodeEmbedder = (*Node)(nil)
	_ fs.NodeLookuper  = (*Node)(nil)
	_ fs.NodeGetattrer = (*Node)(nil)
	_ fs.NodeReaddirer = (*Node)(nil)
	_ fs.NodeOpener    = (*Node)(nil)
	_ fs.NodeReader    = (*Node)(nil)
	_ fs.NodeWriter    = (*Node)(nil)
	_ fs.NodeSetattrer = (*Node)(nil)
	_ fs.NodeCreater   = (*Node)(nil)
	_ fs.NodeMkdirer   = (*Node)(nil)
	_ fs.NodeUnlinker  = (*Node)(nil)
	_ fs.NodeRmdirer   = (*Node)(nil)
	_ fs.NodeRenamer   = (*Node)(nil)
	_ fs.NodeFlusher   = (*Node)(nil)
	_ fs.NodeFsyncer   = (*Node)(nil)
	_ fs.NodeReleaser  = (*Node)(nil)
)

// logicalPath returns this node's absolute path inside the mount.
func (n *Node) logicalPath() string {
	rel := n.Path(&n.dispatcher.rootNode.Inode)
	if rel == "" {
		return "/"
	}
	return "/" + rel
}

// childPath joins a directory's logical path with a child name.
func childPath(dirPath, name string) string {
	if dirPath == "/" {
		return "/" + name
	}
	return dirPath + "/" + name
}

// modeOf returns the FUSE mode bits for row.
func modeOf(row metadata.Row) uint32 {
	if row.IsDir() {
		return directoryMode
	}
	return regularFileMode
}

// fillAttr populates out from row.
func fillAttr(out *fuse.Attr, row metadata.Row) {
	out.Mode = modeOf(row)
	out.Size = uint64(row.Size)
	out.Mtime = uint64(row.Timestamp)
	out.Atime = uint64(row.LastAccessed)
	out.Ctime = uint64(row.Timestamp)
	out.Blocks = (out.Size + 511) / 512
}

// newChildInode wraps row as a freshly looked-up or created inode under
// parent, returning the *fs.Inode go-fuse expects from Lookup/Create/
// Mkdir.
func (n *Node) newChildInode(ctx context.Context, row metadata.Row) *fs.Inode {
	child := &Node{dispatcher: n.dispatcher}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: modeOf(row)})
}
