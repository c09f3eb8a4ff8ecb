package dispatch

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/nimbusfs/nimbusfs/internal/logger"
)

// Lookup resolves name under n, per spec §4.F's getattr mapping applied
// to a path lookup: a metadata hit returns directly, a miss falls
// through to a remote stat.
func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	path := childPath(n.logicalPath(), name)
	row, err := n.dispatcher.cache.Stat(ctx, path)
	if err != nil {
		return nil, errno(err)
	}
	fillAttr(&out.Attr, row)
	return n.newChildInode(ctx, row), 0
}

// Getattr resolves this node's own attributes.
func (n *Node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	row, err := n.dispatcher.cache.Stat(ctx, n.logicalPath())
	if err != nil {
		return errno(err)
	}
	fillAttr(&out.Attr, row)
	return 0
}

// Readdir lists n's immediate children, per spec §4.F's prefix-scan
// mapping.
func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	rows, err := n.dispatcher.cache.Readdir(ctx, n.logicalPath())
	if err != nil {
		return nil, errno(err)
	}

	entries := make([]fuse.DirEntry, 0, len(rows))
	for _, row := range rows {
		name := row.Path[len(n.logicalPath()):]
		name = trimLeadingSlash(name)
		entries = append(entries, fuse.DirEntry{Name: name, Mode: modeOf(row)})
	}
	return fs.NewListDirStream(entries), 0
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}

// Open ensures a metadata row exists for this path, per spec §4.F: no
// data I/O happens here.
func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if err := n.dispatcher.cache.Open(ctx, n.logicalPath()); err != nil {
		return nil, 0, errno(err)
	}
	return nil, 0, 0
}

// Read services a read, per spec §4.C via the block cache.
func (n *Node) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	got, err := n.dispatcher.cache.ReadAt(ctx, n.logicalPath(), off, dest)
	if err != nil {
		return nil, errno(err)
	}
	return fuse.ReadResultData(dest[:got]), 0
}

// Write services a write, per spec §4.C via the block cache.
func (n *Node) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	written, err := n.dispatcher.cache.WriteAt(ctx, n.logicalPath(), off, data)
	if err != nil {
		return 0, errno(err)
	}
	return uint32(written), 0
}

// Setattr handles attribute changes; only size changes (truncate) touch
// the cache engine, per spec §4.C's truncate algorithm.
func (n *Node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	path := n.logicalPath()

	if in.Valid&fuse.FATTR_SIZE != 0 {
		if err := n.dispatcher.cache.Truncate(ctx, path, int64(in.Size)); err != nil {
			return errno(err)
		}
	}

	row, err := n.dispatcher.cache.Stat(ctx, path)
	if err != nil {
		return errno(err)
	}
	fillAttr(&out.Attr, row)
	return 0
}

// Create makes a new regular file, per spec §4.F: a metadata row is
// created locally and the remote store is told about it immediately
// (an empty file has no byte range for the writeback path to flush).
func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	path := childPath(n.logicalPath(), name)

	if err := n.dispatcher.cache.CreateFile(ctx, path); err != nil {
		return nil, nil, 0, errno(err)
	}
	if err := n.dispatcher.remote.Create(ctx, path, false); err != nil {
		logger.WarnCtx(ctx, "create: remote create failed", logger.Path(path), logger.Err(err))
	}

	row, err := n.dispatcher.cache.Stat(ctx, path)
	if err != nil {
		return nil, nil, 0, errno(err)
	}
	fillAttr(&out.Attr, row)
	return n.newChildInode(ctx, row), nil, 0, 0
}

// Mkdir creates a directory, per spec §4.F.
func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	path := childPath(n.logicalPath(), name)

	if err := n.dispatcher.cache.Mkdir(ctx, path); err != nil {
		return nil, errno(err)
	}
	if err := n.dispatcher.remote.Create(ctx, path, true); err != nil {
		logger.WarnCtx(ctx, "mkdir: remote create failed", logger.Path(path), logger.Err(err))
	}

	row, err := n.dispatcher.cache.Stat(ctx, path)
	if err != nil {
		return nil, errno(err)
	}
	return n.newChildInode(ctx, row), 0
}

// Unlink removes a file, per spec §4.F: the local cache state is
// dropped and the remote store is told to delete it.
func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	path := childPath(n.logicalPath(), name)

	if err := n.dispatcher.cache.Unlink(ctx, path); err != nil {
		return errno(err)
	}
	if err := n.dispatcher.remote.Delete(ctx, path); err != nil {
		logger.WarnCtx(ctx, "unlink: remote delete failed", logger.Path(path), logger.Err(err))
	}
	return 0
}

// Rmdir removes an empty directory.
func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	path := childPath(n.logicalPath(), name)

	if err := n.dispatcher.cache.Rmdir(ctx, path); err != nil {
		return errno(err)
	}
	if err := n.dispatcher.remote.Delete(ctx, path); err != nil {
		logger.WarnCtx(ctx, "rmdir: remote delete failed", logger.Path(path), logger.Err(err))
	}
	return 0
}

// Rename moves a node, per spec §4.C/§4.F: local part/bitmap state
// migrates first, then the remote store is told about the rename.
func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	oldPath := childPath(n.logicalPath(), name)

	newParentNode, ok := newParent.(*Node)
	if !ok {
		return syscall.EINVAL
	}
	newPath := childPath(newParentNode.logicalPath(), newName)

	if err := n.dispatcher.cache.Rename(ctx, oldPath, newPath); err != nil {
		return errno(err)
	}
	if err := n.dispatcher.remote.Rename(ctx, oldPath, newPath); err != nil {
		logger.WarnCtx(ctx, "rename: remote rename failed", logger.OldPath(oldPath), logger.NewPath(newPath), logger.Err(err))
	}
	return 0
}

// Flush and Fsync both trigger an immediate, blocking writeback of this
// path, per spec §4.F.
func (n *Node) Flush(ctx context.Context, f fs.FileHandle) syscall.Errno {
	if err := n.dispatcher.lifecyc.FlushPath(ctx, n.logicalPath()); err != nil {
		return errno(err)
	}
	return 0
}

func (n *Node) Fsync(ctx context.Context, f fs.FileHandle, flags uint32) syscall.Errno {
	if err := n.dispatcher.lifecyc.FlushPath(ctx, n.logicalPath()); err != nil {
		return errno(err)
	}
	return 0
}

// Release performs no forced flush, per spec §4.F.
func (n *Node) Release(ctx context.Context, f fs.FileHandle) syscall.Errno {
	return 0
}
