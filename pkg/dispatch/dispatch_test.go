package dispatch

import (
	"syscall"
	"testing"

	"github.com/nimbusfs/nimbusfs/pkg/metadata"
)

func TestErrnoMapping(t *testing.T) {
	cases := []struct {
		err  error
		want syscall.Errno
	}{
		{nil, 0},
		{metadata.NewNotFoundError("/a"), syscall.ENOENT},
		{metadata.NewPermissionDeniedError("/a"), syscall.EACCES},
		{metadata.NewAlreadyExistsError("/a"), syscall.EEXIST},
		{metadata.NewNotDirectoryError("/a"), syscall.ENOTDIR},
		{metadata.NewIsDirectoryError("/a"), syscall.EISDIR},
		{metadata.NewCapacityExhaustedError("/a"), syscall.ENOSPC},
		{metadata.NewRemoteTransientError("/a", nil), syscall.EAGAIN},
		{metadata.NewRemoteFatalError("/a", nil), syscall.EIO},
		{metadata.NewIntegrityError("/a", 10, 5), syscall.EIO},
	}

	for _, c := range cases {
		if got := errno(c.err); got != c.want {
			t.Errorf("errno(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestChildPath(t *testing.T) {
	cases := []struct {
		dir, name, want string
	}{
		{"/", "a.txt", "/a.txt"},
		{"/dir", "b.txt", "/dir/b.txt"},
		{"/a/b", "c", "/a/b/c"},
	}
	for _, c := range cases {
		if got := childPath(c.dir, c.name); got != c.want {
			t.Errorf("childPath(%q, %q) = %q, want %q", c.dir, c.name, got, c.want)
		}
	}
}

func TestTrimLeadingSlash(t *testing.T) {
	if got := trimLeadingSlash("/foo"); got != "foo" {
		t.Errorf("trimLeadingSlash(/foo) = %q, want foo", got)
	}
	if got := trimLeadingSlash("foo"); got != "foo" {
		t.Errorf("trimLeadingSlash(foo) = %q, want foo", got)
	}
}

func TestModeOf(t *testing.T) {
	dir := metadata.Row{Path: "/d"}
	file := metadata.Row{Path: "/f", LocalPath: "/cache/f/0", Size: 5}
	if modeOf(dir) != directoryMode {
		t.Errorf("modeOf(dir) = %o, want %o", modeOf(dir), directoryMode)
	}
	if modeOf(file) != regularFileMode {
		t.Errorf("modeOf(file) = %o, want %o", modeOf(file), regularFileMode)
	}
}
