//go:build linux || darwin

package local

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	vfs "github.com/worldiety/forestvfs"
)

func errnoKind(err error) (vfs.Kind, bool) {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return vfs.KindUnknown, false
	}
	switch errno {
	case unix.ENOTDIR:
		return vfs.KindNotADirectory, true
	case unix.EISDIR:
		return vfs.KindNotAFile, true
	case unix.ENOTEMPTY:
		return vfs.KindDirNotEmpty, true
	case unix.EROFS:
		return vfs.KindReadOnlyPath, true
	}
	return vfs.KindUnknown, false
}

func statFS(prefix string) (vfs.FilesystemStats, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(prefix, &st); err != nil {
		return vfs.FilesystemStats{}, errors.Wrapf(err, "statfs %s", prefix)
	}
	bsize := uint64(st.Bsize)
	return vfs.FilesystemStats{
		TotalBytes: st.Blocks * bsize,
		FreeBytes:  st.Bavail * bsize,
		TotalFiles: st.Files,
		FreeFiles:  st.Ffree,
	}, nil
}
